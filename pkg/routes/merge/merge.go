// Package merge exposes merge preview and execution over HTTP.
package merge

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/thistle/pkg/appcontext"
	"github.com/Ramsey-B/thistle/pkg/merging"
	"github.com/Ramsey-B/thistle/pkg/models"
)

var validate = validator.New()

// Register registers merge routes
func Register(g *echo.Group) {
	g.POST("/preview", PreviewMerge)
	g.POST("", ExecuteMerge)
}

// PreviewRequest asks for a read-only impact projection of one merge.
type PreviewRequest struct {
	KeepPartID   int64             `json:"keepPartId" validate:"required,gt=0"`
	MergePartIDs []int64           `json:"mergePartIds" validate:"required,min=1,dive,gt=0"`
	Rules        models.MergeRules `json:"rules"`
}

// ExecuteRequest performs a merge. conflictResolutions carries the
// operator-chosen values for conflicting fields.
type ExecuteRequest struct {
	TargetPartID        int64          `json:"targetPartId" validate:"required,gt=0"`
	SourcePartIDs       []int64        `json:"sourcePartIds" validate:"required,min=1,dive,gt=0"`
	ConflictResolutions map[string]any `json:"conflictResolutions"`
	MergeNotes          string         `json:"mergeNotes"`
	PreserveAliases     bool           `json:"preserveAliases"`
	MergeApplications   bool           `json:"mergeApplications"`
	MergeTags           bool           `json:"mergeTags"`
	PreserveHistory     bool           `json:"preserveHistory"`
}

// PreviewMerge computes the impact of a prospective merge without mutating
// anything.
func PreviewMerge(c echo.Context) error {
	ctx := c.Request().Context()

	if appcontext.GetTenantID(ctx) == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req PreviewRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, planner, err := ectoinject.GetContext[*merging.Planner](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	preview, err := planner.PlanMerge(ctx, req.KeepPartID, req.MergePartIDs, req.Rules)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, preview)
}

// ExecuteMerge runs the transactional merge of sourcePartIds into
// targetPartId.
func ExecuteMerge(c echo.Context) error {
	ctx := c.Request().Context()

	if appcontext.GetTenantID(ctx) == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	var req ExecuteRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rules := models.MergeRules{
		MergePartNumbers:  req.PreserveAliases,
		MergeApplications: req.MergeApplications,
		MergeTags:         req.MergeTags,
		PreserveHistory:   req.PreserveHistory,
		FieldOverrides:    req.ConflictResolutions,
	}

	ctx, executor, err := ectoinject.GetContext[*merging.Executor](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := executor.ExecuteMerge(ctx, req.TargetPartID, req.SourcePartIDs, rules, req.MergeNotes)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}
