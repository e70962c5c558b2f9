// Package duplicates exposes duplicate-group detection over HTTP.
package duplicates

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/thistle/config"
	"github.com/Ramsey-B/thistle/pkg/appcontext"
	"github.com/Ramsey-B/thistle/pkg/matching"
	"github.com/Ramsey-B/thistle/pkg/models"
)

// Register registers duplicate detection routes
func Register(g *echo.Group) {
	g.GET("", ListDuplicates)
}

// GroupsResponse wraps the detected duplicate groups.
type GroupsResponse struct {
	Groups []models.DuplicateGroup `json:"groups"`
}

// ListDuplicates computes the tenant's duplicate groups.
func ListDuplicates(c echo.Context) error {
	ctx := c.Request().Context()

	if appcontext.GetTenantID(ctx) == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	ctx, cfg, err := ectoinject.GetContext[*config.Config](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	query := matching.DetectionQuery{
		MinScore:      cfg.DefaultMinScore,
		ExcludeMerged: true,
	}

	// minScore with minSimilarity as a legacy alias.
	rawScore := c.QueryParam("minScore")
	if rawScore == "" {
		rawScore = c.QueryParam("minSimilarity")
	}
	if rawScore != "" {
		score, err := strconv.ParseFloat(rawScore, 64)
		if err != nil || score < 0 || score > 1 {
			return httperror.NewHTTPError(http.StatusBadRequest, "minScore must be a number between 0 and 1")
		}
		query.MinScore = score
	}

	algo := c.QueryParam("algo")
	if algo == "" {
		algo = cfg.DetectionStrategy
	}
	strategy, err := matching.ParseStrategy(algo)
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	query.Strategy = strategy

	if raw := c.QueryParam("excludeMerged"); raw != "" {
		exclude, err := strconv.ParseBool(raw)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "excludeMerged must be a boolean")
		}
		query.ExcludeMerged = exclude
	}

	ctx, svc, err := ectoinject.GetContext[*matching.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	groups, err := svc.FindDuplicates(ctx, query)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, GroupsResponse{Groups: groups})
}
