// Package logx provides the leveled Logger interface shared across the
// runtime, in the shape of the logging package this module's teacher
// carries, backed by a log/slog.Logger instead of a bare *log.Logger so
// structured fields survive into whatever handler the host process wires
// up (text for a terminal, JSON for aggregation).
package logx

import (
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/localrivet/gomcp/protocol"
)

// Logger is the interface every component in this module logs through.
// It mirrors protocol.Logger and notify.Logger so either package can take
// a *Default directly without an adapter.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	SetLevel(level protocol.LoggingLevel)
	IsLevelEnabled(level protocol.LoggingLevel) bool
}

// Default wraps a *slog.Logger with the session-level filtering the MCP
// logging/setLevel method needs: SetLevel changes what Debug/Info/etc.
// actually emit without requiring callers to check IsLevelEnabled
// themselves first (though they may, to skip building an expensive log
// line).
type Default struct {
	slog  *slog.Logger
	level atomic.Int32
}

// NewDefault builds a Logger writing text-formatted records to stderr at
// LogInfo and above, matching the teacher's own stderr-by-default
// convention.
func NewDefault() *Default {
	d := &Default{slog: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))}
	d.level.Store(int32(protocol.Severity(protocol.LogInfo)))
	return d
}

// NewFromSlog wraps an existing *slog.Logger, for hosts that already have
// their own handler (JSON, OTel, etc.) configured.
func NewFromSlog(base *slog.Logger) *Default {
	d := &Default{slog: base}
	d.level.Store(int32(protocol.Severity(protocol.LogInfo)))
	return d
}

func (d *Default) SetLevel(level protocol.LoggingLevel) {
	d.level.Store(int32(protocol.Severity(level)))
}

func (d *Default) IsLevelEnabled(level protocol.LoggingLevel) bool {
	return int32(protocol.Severity(level)) >= d.level.Load()
}

func (d *Default) Debug(msg string, args ...interface{}) {
	if d.IsLevelEnabled(protocol.LogDebug) {
		d.slog.Debug(msg, args...)
	}
}

func (d *Default) Info(msg string, args ...interface{}) {
	if d.IsLevelEnabled(protocol.LogInfo) {
		d.slog.Info(msg, args...)
	}
}

func (d *Default) Warn(msg string, args ...interface{}) {
	if d.IsLevelEnabled(protocol.LogWarning) {
		d.slog.Warn(msg, args...)
	}
}

func (d *Default) Error(msg string, args ...interface{}) {
	if d.IsLevelEnabled(protocol.LogError) {
		d.slog.Error(msg, args...)
	}
}

var _ Logger = (*Default)(nil)
