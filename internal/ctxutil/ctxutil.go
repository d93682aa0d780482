package ctxutil

import (
	"context"
	"time"

	"github.com/Spok95/campus-attendance/internal/models"
)

// private keys to avoid collisions
type key int

const (
	keyPrincipal key = iota
	keyCaller
	keyRequestID
	keyOpName
)

// WithPrincipal / Principal carry the authenticated caller.
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, keyPrincipal, p)
}

func Principal(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(keyPrincipal).(models.Principal)
	return p, ok
}

// WithCaller / Caller carry the network address and user-agent for audit entries.
func WithCaller(ctx context.Context, c models.Caller) context.Context {
	return context.WithValue(ctx, keyCaller, c)
}

func Caller(ctx context.Context) models.Caller {
	c, _ := ctx.Value(keyCaller).(models.Caller)
	return c
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

func RequestID(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(keyRequestID).(string)
	return s, ok && s != ""
}

// WithOp / Op name the operation for logs and traces.
func WithOp(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyOpName, name)
}

func Op(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(keyOpName).(string)
	return s, ok
}

// DefaultDBTimeout is overridden from config at startup.
var DefaultDBTimeout = 5 * time.Second

// WithDBTimeout bounds a storage call. A parent with less time left keeps its
// own deadline.
func WithDBTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	if dl, ok := parent.Deadline(); ok {
		if remain := time.Until(dl); remain < DefaultDBTimeout {
			return context.WithDeadline(parent, dl)
		}
	}
	return context.WithTimeout(parent, DefaultDBTimeout)
}

// Detached keeps the values of parent but drops its cancellation, bounded by
// DefaultDBTimeout. Used to record an outcome after the caller went away.
func Detached(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), DefaultDBTimeout)
}
