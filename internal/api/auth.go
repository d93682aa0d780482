package api

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Spok95/campus-attendance/internal/apperr"
	"github.com/Spok95/campus-attendance/internal/attendance"
	"github.com/Spok95/campus-attendance/internal/ctxutil"
	"github.com/Spok95/campus-attendance/internal/identity"
	"github.com/Spok95/campus-attendance/internal/models"
)

func extractBearer(c echo.Context) (string, error) {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if h == "" {
		return "", fmt.Errorf("%w: missing authorization header", apperr.ErrUnauthenticated)
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", fmt.Errorf("%w: want a bearer token", apperr.ErrUnauthenticated)
	}
	return strings.TrimSpace(parts[1]), nil
}

// requireAuth resolves the bearer token to a principal and records the
// caller's address and user agent for audit entries.
func requireAuth(p identity.Provider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tok, err := extractBearer(c)
			if err != nil {
				return err
			}
			ctx := c.Request().Context()
			principal, err := p.ResolvePrincipal(ctx, tok)
			if err != nil {
				return err
			}
			ctx = ctxutil.WithPrincipal(ctx, principal)
			ctx = ctxutil.WithCaller(ctx, models.Caller{
				IPAddress: c.RealIP(),
				UserAgent: c.Request().UserAgent(),
			})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func requireStaff(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := attendance.RequireStaff(principal(c)); err != nil {
			return err
		}
		return next(c)
	}
}

func requireClassReviewer(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := attendance.CanViewClass(principal(c)); err != nil {
			return err
		}
		return next(c)
	}
}

func principal(c echo.Context) models.Principal {
	p, _ := ctxutil.Principal(c.Request().Context())
	return p
}

func caller(c echo.Context) models.Caller { return ctxutil.Caller(c.Request().Context()) }
