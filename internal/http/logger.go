package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/rs/zerolog"
)

type logformatter struct {
	logger zerolog.Logger
}

func (l *logformatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	req := map[string]interface{}{}

	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		req["id"] = reqID
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	req["scheme"] = scheme
	req["proto"] = r.Proto
	req["method"] = r.Method
	req["remote"] = r.RemoteAddr
	req["agent"] = r.UserAgent()
	req["uri"] = r.RequestURI

	return &logentry{
		logger: l.logger.With().Fields(req).Logger(),
	}
}

type logentry struct {
	logger zerolog.Logger
	err    error
}

func (e *logentry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
	res := map[string]interface{}{}
	res["time"] = time.Now().UTC().Format(time.RFC1123)
	res["status"] = status
	res["bytes"] = bytes
	res["elapsed"] = float64(elapsed.Nanoseconds()) / 1000000.0 // in milliseconds

	logger := e.logger.With().Fields(res).Logger()

	if e.err != nil {
		logger.Err(e.err).Msgf("request failed (%d)", status)
	} else if status >= 500 {
		logger.Warn().Msgf("request failed (%d)", status)
	} else {
		logger.Debug().Msg("request complete")
	}
}

func (e *logentry) Panic(v interface{}, stack []byte) {
	if err, ok := v.(error); ok {
		e.err = err
	} else {
		e.logger = e.logger.With().Interface("panic", v).Logger()
	}
}
