// Package progress provides a small helper for tool handlers that want
// to report incremental progress without reaching into server.Context
// directly at every call site.
package progress

import (
	"fmt"

	"github.com/localrivet/gomcp/server"
)

// Reporter wraps a server.Context to give handlers a narrower, named
// surface for progress reporting.
type Reporter struct {
	ctx *server.Context
}

func NewReporter(ctx *server.Context) *Reporter {
	return &Reporter{ctx: ctx}
}

// Report sends a progress update carrying only a message.
func (r *Reporter) Report(message string) error {
	return r.ctx.ReportProgress(0, 0, message)
}

// Reportf formats message before sending it.
func (r *Reporter) Reportf(format string, args ...interface{}) error {
	return r.Report(fmt.Sprintf(format, args...))
}

// ReportPercent sends a progress update expressed as progress/total.
func (r *Reporter) ReportPercent(message string, progress, total float64) error {
	return r.ctx.ReportProgress(progress, total, message)
}
