package api

import (
	"net"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web-emcee/emcee/hls"
	"github.com/web-emcee/emcee/internal/config"
	"github.com/web-emcee/emcee/library"
)

type ApiManagerCtx struct {
	logger zerolog.Logger
	config *config.Server

	prober   *hls.Prober
	producer *hls.Producer
	sessions *hls.SessionManager

	library *library.Library
	thumbs  *library.Thumbnailer
}

func New(config *config.Server) *ApiManagerCtx {
	policy := hls.CodecPolicy{AllowCopy: config.HLS.AllowCopy}

	return &ApiManagerCtx{
		logger: log.With().Str("module", "api").Logger(),
		config: config,

		prober: hls.NewProber(config.HLS.FFprobeBinary, config.HLS.ProbeTimeout),
		producer: hls.NewProducer(hls.ProducerConfig{
			FFmpegBinary:     config.HLS.FFmpegBinary,
			KeyframeInterval: config.HLS.KeyframeInterval,
			CodecPolicy:      policy,
			GraceTimeout:     config.HLS.GraceTimeout,
			ReapTimeout:      config.HLS.ReapTimeout,
		}),
		sessions: hls.NewSessionManager(hls.SessionConfig{
			FFmpegBinary:  config.HLS.FFmpegBinary,
			RootDir:       config.HLS.SessionDir,
			SegmentLength: config.HLS.SegmentLength,
			CodecPolicy:   policy,
			StartTimeout:  config.HLS.SessionTimeout,
			GraceTimeout:  config.HLS.GraceTimeout,
		}),

		library: library.New(config.MediaDir, library.NewDetector()),
		thumbs:  library.NewThumbnailer(),
	}
}

func (a *ApiManagerCtx) Mount(r *chi.Mux) {
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		//nolint
		w.Write([]byte("pong"))
	})

	r.Get("/get_ip", a.GetIP)

	a.Browser(r)
	a.Watch(r)
	a.RawMedia(r)

	registerSessionsGauge(a.sessions)
}

// Shutdown stops all continuous transcode jobs. On-demand segment jobs are
// bound to their request context and need no extra teardown.
func (a *ApiManagerCtx) Shutdown() {
	a.sessions.Shutdown()
}

// GetIP reports the server address the client reached, so a page can build
// absolute URLs castable to devices on the same network.
func (a *ApiManagerCtx) GetIP(w http.ResponseWriter, r *http.Request) {
	addr, ok := r.Context().Value(http.LocalAddrContextKey).(net.Addr)
	if !ok {
		http.Error(w, "500 local address unknown", http.StatusInternalServerError)
		return
	}

	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		host = addr.String()
	}

	//nolint
	w.Write([]byte(host))
}
