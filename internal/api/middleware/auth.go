package middleware

import (
	"math"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/taskboard/task-system/internal/core/domain"
)

// Auth validates the JWT and injects the caller identity into context under
// "user_id" (int64), "role" and "username". Any failure is a 401.
func Auth(jwtSecret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims := jwt.MapClaims{}
			tkn, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
				if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !tkn.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			userID, ok := claimID(claims["id"])
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
			}
			role, _ := claims["role"].(string)
			if !domain.Role(role).Valid() {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
			}
			username, _ := claims["username"].(string)

			c.Set("user_id", userID)
			c.Set("role", role)
			c.Set("username", username)

			return next(c)
		}
	}
}

// claimID reads the numeric id claim. JSON numbers decode as float64, and
// float64(math.MaxInt64) is 2^63, so the upper bound is exclusive.
func claimID(v any) (int64, bool) {
	f, ok := v.(float64)
	if !ok || f < 1 || f != math.Trunc(f) || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
