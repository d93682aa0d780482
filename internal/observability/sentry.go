package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/Spok95/campus-attendance/internal/ctxutil"
)

func InitSentry(dsn, env, release string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		Release:     release,
	}); err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

func CaptureErr(err error) {
	if err != nil {
		sentry.CaptureException(err)
	}
}

// CaptureCtxErr reports err tagged with the request id and principal of ctx.
func CaptureCtxErr(ctx context.Context, err error) {
	if err == nil {
		return
	}
	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		if id, ok := ctxutil.RequestID(ctx); ok {
			scope.SetTag("request_id", id)
		}
		if op, ok := ctxutil.Op(ctx); ok {
			scope.SetTag("op", op)
		}
		if p, ok := ctxutil.Principal(ctx); ok {
			scope.SetUser(sentry.User{ID: fmt.Sprint(p.ID), Username: p.Name})
			scope.SetTag("role", string(p.Role))
		}
	})
	hub.CaptureException(err)
}

// Recover reports a panic in a background job and keeps the process alive.
// Use as: defer observability.Recover(log, "job").
func Recover(log *zap.Logger, name string) {
	r := recover()
	if r == nil {
		return
	}
	err := fmt.Errorf("panic in %s: %v", name, r)
	if log != nil {
		log.Error("recovered panic", zap.String("job", name), zap.Any("panic", r), zap.Stack("stack"))
	}
	sentry.CurrentHub().Recover(r)
	CaptureErr(err)
}
