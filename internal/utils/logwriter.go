package utils

import (
	"strings"

	"github.com/rs/zerolog"
)

// LogWriterCtx bridges a subprocess error stream into zerolog.
type LogWriterCtx struct {
	logger zerolog.Logger
}

func LogWriter(l zerolog.Logger) *LogWriterCtx {
	return &LogWriterCtx{
		logger: l,
	}
}

func (l *LogWriterCtx) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		l.logger.Warn().Msg(msg)
	}
	return len(p), nil
}
