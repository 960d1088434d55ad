// Package audit provides the append-only audit event stream.
//
// Every session state transition and AI interaction is written as one JSON
// event {timestamp, level, message, details} to the audit file and mirrored
// to the local syslog. The sink is single-writer; sessions are strictly
// sequential so no locking is required beyond what zerolog provides.
package audit

import (
	"fmt"
	"log/syslog"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Logger is the audit sink handed to every component.
type Logger struct {
	log zerolog.Logger
}

// Open creates (or appends to) the audit file at path and connects the
// syslog mirror. The syslog connection is best-effort: on systems without a
// syslog daemon the file sink still works.
func Open(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}

	var w zerolog.LevelWriter = zerolog.MultiLevelWriter(f)
	if sw, err := syslog.New(syslog.LOG_INFO|syslog.LOG_LOCAL0, "diskdiag"); err == nil {
		w = zerolog.MultiLevelWriter(f, zerolog.SyslogLevelWriter(sw))
	}

	return &Logger{log: zerolog.New(w).With().Timestamp().Logger()}, nil
}

// NewWithLogger wraps an existing zerolog.Logger, used by tests.
func NewWithLogger(l zerolog.Logger) *Logger {
	return &Logger{log: l}
}

// Info writes an informational audit event.
func (a *Logger) Info(msg string, details map[string]interface{}) {
	if a == nil {
		return
	}
	a.event(a.log.Info(), msg, details)
}

// Warn writes a warning audit event.
func (a *Logger) Warn(msg string, details map[string]interface{}) {
	if a == nil {
		return
	}
	a.event(a.log.Warn(), msg, details)
}

// Error writes an error audit event.
func (a *Logger) Error(msg string, details map[string]interface{}) {
	if a == nil {
		return
	}
	a.event(a.log.Error(), msg, details)
}

func (a *Logger) event(ev *zerolog.Event, msg string, details map[string]interface{}) {
	if len(details) > 0 {
		ev = ev.Fields(details)
	}
	ev.Msg(msg)
}

// Interaction records one AI interaction event (proposal, approval,
// rejection, execution, completion) for a host.
func (a *Logger) Interaction(action, host, command string, approved *bool, responseLen int) {
	if a == nil {
		return
	}
	ev := a.log.Info().
		Str("action", action).
		Str("host", host).
		Str("user", userName()).
		Int("response_length", responseLen)
	if command != "" {
		ev = ev.Str("command", command)
	}
	if approved != nil {
		ev = ev.Bool("approved", *approved)
	}
	ev.Msg("AI_" + action + ": " + host)
}

func userName() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}
