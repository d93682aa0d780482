package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/Spok95/campus-attendance/internal/ctxutil"
	"github.com/Spok95/campus-attendance/internal/logging"
	"github.com/Spok95/campus-attendance/internal/metrics"
)

// requestID takes X-Request-ID from the client or generates one, and names
// the operation after the matched route.
func requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Request().Header.Get(echo.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Response().Header().Set(echo.HeaderXRequestID, id)
		ctx := ctxutil.WithRequestID(c.Request().Context(), id)
		ctx = ctxutil.WithOp(ctx, c.Request().Method+" "+c.Path())
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func requestLogger(log *zap.Logger, quiet bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			elapsed := time.Since(start)
			req, res := c.Request(), c.Response()

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.ObserveHTTP(req.Method, route, res.Status, elapsed)
			if !quiet {
				logging.FromContext(req.Context(), log).Info("http request",
					zap.String("method", req.Method),
					zap.String("path", req.URL.Path),
					zap.Int("status", res.Status),
					zap.Duration("latency", elapsed),
				)
			}
			return nil
		}
	}
}

// recoverer turns a handler panic into a 500. The error handler reports it.
func recoverer(log *zap.Logger) echo.MiddlewareFunc {
	return middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logging.FromContext(c.Request().Context(), log).Error("handler panic",
				zap.Error(err),
				zap.ByteString("stack", stack),
			)
			return err
		},
	})
}
