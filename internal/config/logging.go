package config

import (
	"fmt"
	"io"
	log "log/slog"
	"strings"

	"github.com/lmittmann/tint"
)

// LevelTrace sits below debug and is used for full request/response payloads.
const LevelTrace = log.Level(-8)

var logLevelMap = map[string]log.Level{
	"trace":   LevelTrace,
	"debug":   log.LevelDebug,
	"":        log.LevelInfo,
	"info":    log.LevelInfo,
	"warn":    log.LevelWarn,
	"warning": log.LevelWarn,
	"error":   log.LevelError,
}

// ParseLogLevel converts a case-insensitive level name to a slog level.
func ParseLogLevel(s string) (log.Level, error) {
	level, ok := logLevelMap[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return log.LevelInfo, fmt.Errorf("unknown log level %q (valid: trace, debug, info, warn, error)", s)
	}
	return level, nil
}

// NewLogger builds the tint handler used by every binary. Output goes to w,
// which is stderr for the interactive assistant so the chat stays readable.
func NewLogger(w io.Writer, level log.Level) *log.Logger {
	return log.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05",
		ReplaceAttr: func(groups []string, a log.Attr) log.Attr {
			if a.Key == log.LevelKey {
				if lvl, ok := a.Value.Any().(log.Level); ok && lvl == LevelTrace {
					a.Value = log.StringValue("TRC")
				}
			}
			return a
		},
	}))
}
