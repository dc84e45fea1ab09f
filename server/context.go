package server

import (
	"context"

	"github.com/localrivet/gomcp/internal/logx"
	"github.com/localrivet/gomcp/protocol"
)

// Context is the value every tool, resource and prompt handler receives.
// It embeds context.Context directly so handlers can pass it anywhere a
// plain context is expected, and layers on session identity, the
// server's logger, and progress reporting tied back to the request that
// invoked the handler.
type Context struct {
	context.Context
	session *Session
	meta    *protocol.RequestMeta
}

func newContext(ctx context.Context, sess *Session, meta *protocol.RequestMeta) *Context {
	return &Context{Context: ctx, session: sess, meta: meta}
}

// Session returns the connection this handler is executing on.
func (c *Context) Session() *Session { return c.session }

// Logger returns the server-wide logger.
func (c *Context) Logger() logx.Logger { return c.session.server.logger }

// ReportProgress emits notifications/progress for the in-flight request,
// a no-op if the caller didn't opt in via a _meta.progressToken.
func (c *Context) ReportProgress(progress, total float64, message string) error {
	if c.meta == nil || c.meta.ProgressToken == nil {
		return nil
	}
	return c.session.engine.Notification(c.Context, protocol.NotificationProgress, protocol.ProgressParams{
		ProgressToken: c.meta.ProgressToken,
		Progress:      progress,
		Total:         total,
		Message:       message,
	}, "")
}
