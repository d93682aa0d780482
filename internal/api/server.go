// Package api serves the attendance service over HTTP with echo.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/Spok95/campus-attendance/internal/attendance"
	"github.com/Spok95/campus-attendance/internal/identity"
	"github.com/Spok95/campus-attendance/internal/metrics"
)

type Options struct {
	Service  *attendance.Service
	Identity identity.Provider
	Campus   attendance.Campus
	// RequireWithinBounds rejects geolocation check-ins outside the campus
	// radius with 403. The evidence is stored either way.
	RequireWithinBounds bool
	Logger              *zap.Logger
	// DisableReqLogs silences the per-request log line.
	DisableReqLogs bool
}

type Server struct {
	opts Options
	app  *echo.Echo
	log  *zap.Logger
}

func NewServer(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{opts: opts, app: echo.New(), log: log}
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.HidePort = true
	s.app.Validator = newValidator(s.opts.Service.Validator())
	s.app.HTTPErrorHandler = newErrorHandler(s.log)

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(requestID)
	s.app.Use(requestLogger(s.log, s.opts.DisableReqLogs))
	s.app.Use(recoverer(s.log))

	s.app.GET("/healthz", s.healthz)
	s.app.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	h := &handler{svc: s.opts.Service, campus: s.opts.Campus}
	if s.opts.RequireWithinBounds {
		h.geoPolicy = attendance.RequireWithinBounds
	}
	v1 := s.app.Group("/api/v1")
	registerAttendance(v1.Group("/attendance", requireAuth(s.opts.Identity)), h)
}

func registerAttendance(g *echo.Group, h *handler) {
	g.GET("/time-frames", h.timeFrames)

	g.POST("", h.createRecord, requireStaff)
	g.GET("/:id", h.getRecord)
	g.PUT("/:id", h.updateRecord, requireStaff)
	g.GET("/:id/audit", h.listAudit, requireStaff)
	g.GET("/student/:id", h.studentRecords)

	g.POST("/qr", h.issueQR, requireStaff)
	g.GET("/qr/verify/:code", h.verifyQR)
	g.POST("/qr/checkin", h.qrCheckIn)
	g.GET("/qr/:code/image", h.qrImage, requireStaff)

	g.POST("/geolocation", h.geolocation)

	g.POST("/sync", h.submitSync, requireStaff)
	g.GET("/sync/:batchId", h.getBatch, requireStaff)
	g.POST("/sync/:batchId/process", h.processBatch, requireStaff)

	g.GET("/summary/student/:id", h.studentSummary)
	g.GET("/summary/class/:id", h.classSummary, requireClassReviewer)
	g.GET("/summary/class/:id/export", h.classExport, requireClassReviewer)

	g.POST("/notifications", h.createNotification, requireStaff)
	g.GET("/notifications/pending", h.pendingNotifications, requireStaff)
	g.PUT("/notifications/:id", h.updateNotification, requireStaff)
}

// ServeHTTP lets tests drive the router without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.app.ServeHTTP(w, r) }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http listening", zap.String("addr", addr))
		errCh <- s.app.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return s.app.Shutdown(shCtx)
	}
}

func (s *Server) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 800*time.Millisecond)
	defer cancel()
	if err := s.opts.Service.Ping(ctx); err != nil {
		return c.String(http.StatusServiceUnavailable, "storage not ok: "+err.Error())
	}
	return c.String(http.StatusOK, "ok")
}
