// Package mergeaudit exposes the history of completed merges.
package mergeaudit

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/thistle/internal/repositories/mergeaudit"
	"github.com/Ramsey-B/thistle/pkg/appcontext"
)

const defaultPageSize = 50

// Register registers merge audit routes
func Register(g *echo.Group) {
	g.GET("", ListMerges)
	g.GET("/:id", GetMerge)
}

// ListMerges returns the tenant's merge history, newest first.
func ListMerges(c echo.Context) error {
	ctx := c.Request().Context()

	if appcontext.GetTenantID(ctx) == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	limit := defaultPageSize
	if raw := c.QueryParam("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 500 {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 500")
		}
		limit = v
	}

	offset := 0
	if raw := c.QueryParam("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return httperror.NewHTTPError(http.StatusBadRequest, "offset must be a non-negative integer")
		}
		offset = v
	}

	ctx, repo, err := ectoinject.GetContext[*mergeaudit.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	merges, err := repo.List(ctx, limit, offset)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, merges)
}

// GetMerge returns a single merge audit record.
func GetMerge(c echo.Context) error {
	ctx := c.Request().Context()

	if appcontext.GetTenantID(ctx) == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, "id must be a positive integer")
	}

	ctx, repo, err := ectoinject.GetContext[*mergeaudit.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	m, err := repo.Get(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, m)
}
