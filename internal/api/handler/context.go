package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/taskboard/task-system/internal/core/domain"
)

// ctxIdentity extracts the caller injected by the Auth middleware and
// performs a fast-fail check before any service call: a missing or
// malformed identity means the middleware did not run.
func ctxIdentity(c echo.Context) (domain.Identity, error) {
	id, _ := c.Get("user_id").(int64)
	role, _ := c.Get("role").(string)

	identity := domain.Identity{ID: id, Role: domain.Role(role)}
	if !identity.Authenticated() {
		return domain.Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return identity, nil
}

// pathID parses the numeric :id route parameter.
func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}
