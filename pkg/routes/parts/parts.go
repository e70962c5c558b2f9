// Package parts exposes read access to part records.
package parts

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/thistle/internal/repositories/part"
	"github.com/Ramsey-B/thistle/pkg/appcontext"
)

const defaultPageSize = 100

// Register registers part routes
func Register(g *echo.Group) {
	g.GET("", ListParts)
	g.GET("/:id", GetPart)
}

// ListParts returns a page of the tenant's parts.
func ListParts(c echo.Context) error {
	ctx := c.Request().Context()

	if appcontext.GetTenantID(ctx) == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	limit := defaultPageSize
	if raw := c.QueryParam("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 1000 {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 1000")
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

	includeInactive := false
	if raw := c.QueryParam("includeInactive"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "includeInactive must be a boolean")
		}
		includeInactive = v
	}

	ctx, repo, err := ectoinject.GetContext[*part.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	parts, err := repo.List(ctx, includeInactive, limit, offset)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, parts)
}

// GetPart returns one part with its part numbers.
func GetPart(c echo.Context) error {
	ctx := c.Request().Context()

	if appcontext.GetTenantID(ctx) == "" {
		return httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return httperror.NewHTTPError(http.StatusBadRequest, "id must be a positive integer")
	}

	ctx, repo, err := ectoinject.GetContext[*part.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	p, err := repo.Get(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, p)
}
