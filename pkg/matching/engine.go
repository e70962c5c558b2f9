package matching

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/thistle/pkg/appcontext"
	"github.com/Ramsey-B/thistle/pkg/metrics"
	"github.com/Ramsey-B/thistle/pkg/models"
	"github.com/Ramsey-B/thistle/pkg/tracing"
)

// DetectionQuery is the full set of inputs that shape one detection run. It
// doubles as the cache key for cached group results.
type DetectionQuery struct {
	MinScore      float64  `json:"min_score"`
	Strategy      Strategy `json:"strategy"`
	ExcludeMerged bool     `json:"exclude_merged"`
}

// PartSource loads the parts of a tenant with their part numbers attached.
type PartSource interface {
	ListForMatching(ctx context.Context, tenantID string) ([]models.Part, error)
}

// GroupCache stores computed duplicate groups keyed by tenant and query.
type GroupCache interface {
	Get(ctx context.Context, tenantID string, q DetectionQuery) ([]models.DuplicateGroup, bool, error)
	Set(ctx context.Context, tenantID string, q DetectionQuery, groups []models.DuplicateGroup) error
}

// Service runs duplicate detection end to end: load, score, group, cache.
type Service struct {
	parts    PartSource
	cache    GroupCache
	grouper  *Grouper
	maxParts int
	logger   ectologger.Logger
}

// NewService creates the detection service. maxParts caps how many parts a
// single detection run will score; zero disables the cap.
func NewService(parts PartSource, cache GroupCache, grouper *Grouper, maxParts int, logger ectologger.Logger) *Service {
	return &Service{
		parts:    parts,
		cache:    cache,
		grouper:  grouper,
		maxParts: maxParts,
		logger:   logger,
	}
}

// FindDuplicates returns the duplicate groups for the tenant in ctx. Results
// are served from cache when an identical query was computed recently.
func (s *Service) FindDuplicates(ctx context.Context, q DetectionQuery) ([]models.DuplicateGroup, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Service.FindDuplicates")
	defer span.End()

	tenantID := appcontext.GetTenantID(ctx)

	if s.cache != nil {
		groups, hit, err := s.cache.Get(ctx, tenantID, q)
		if err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Detection cache read failed")
		} else if hit {
			metrics.DetectionCacheHits.WithLabelValues("hit").Inc()
			return groups, nil
		}
		metrics.DetectionCacheHits.WithLabelValues("miss").Inc()
	}

	start := time.Now()
	parts, err := s.parts.ListForMatching(ctx, tenantID)
	if err != nil {
		metrics.DetectionRunsTotal.WithLabelValues(tenantID, string(q.Strategy), "error").Inc()
		return nil, err
	}

	if s.maxParts > 0 && len(parts) > s.maxParts {
		metrics.DetectionRunsTotal.WithLabelValues(tenantID, string(q.Strategy), "error").Inc()
		return nil, httperror.NewHTTPErrorf(http.StatusUnprocessableEntity, "tenant has %d parts which exceeds the detection limit of %d", len(parts), s.maxParts)
	}

	groups := s.grouper.GroupDuplicates(parts, q.MinScore, q.ExcludeMerged, q.Strategy)

	metrics.DetectionRunsTotal.WithLabelValues(tenantID, string(q.Strategy), "success").Inc()
	metrics.DetectionDuration.WithLabelValues(tenantID, string(q.Strategy)).Observe(time.Since(start).Seconds())
	metrics.DetectionGroupsFound.WithLabelValues(tenantID).Observe(float64(len(groups)))

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"parts":     len(parts),
		"groups":    len(groups),
		"strategy":  q.Strategy,
		"min_score": q.MinScore,
	}).Info("Duplicate detection complete")

	if s.cache != nil {
		if err := s.cache.Set(ctx, tenantID, q, groups); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Detection cache write failed")
		}
	}

	return groups, nil
}
