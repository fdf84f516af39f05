package log

import (
	"fmt"
	"log/slog"
	"strings"
)

// Logger is a slog.Logger tagged with the component that owns it.
type Logger struct {
	*slog.Logger
	base      *slog.Logger
	component string
}

// New tags base with component.
func New(base *slog.Logger, component string) *Logger {
	return &Logger{
		Logger:    base.With(FieldComponent, component),
		base:      base,
		component: component,
	}
}

// Default tags the process default logger, so LOG_LEVEL applies.
func Default(component string) *Logger {
	return New(slog.Default(), component)
}

// ParseLevel maps debug, info, warn/warning and error onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// With keeps the component and adds args to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		base:      l.base.With(args...),
		component: l.component,
	}
}

// WithComponent retags the logger. Attributes added through With are kept.
func (l *Logger) WithComponent(component string) *Logger {
	if component == l.component {
		return l
	}
	return New(l.base, component)
}
