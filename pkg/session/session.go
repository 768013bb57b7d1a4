package session

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Session is one run of the application process
type Session struct {
	ID        string
	StartTime time.Time
	Logger    *slog.Logger
}

// NewSession creates a new session with a random ID
func NewSession(logger *slog.Logger) *Session {
	id := uuid.NewString()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{
		ID:        id,
		StartTime: time.Now(),
		Logger:    logger.With("session", id),
	}
}

// Uptime returns the time elapsed since the session started
func (s *Session) Uptime() time.Duration {
	return time.Since(s.StartTime)
}

// NewLogger builds a slog logger writing to w. format is "text" or "json".
func NewLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// ParseLevel maps a level name to a slog.Level
func ParseLevel(level string) (slog.Level, error) {
	var lvl slog.Level
	if level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
	return lvl, nil
}
