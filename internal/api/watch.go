package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"io/fs"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/rs/zerolog"

	"github.com/web-emcee/emcee/hls"
)

//go:embed player.html
var playerPage []byte

// relative segment names a continuous job writes into its manifest
var sessionSegmentRe = regexp.MustCompile(`^hls-segment-(\d+)\.ts$`)

func (a *ApiManagerCtx) Watch(r chi.Router) {
	r.Get("/watch/*", func(w http.ResponseWriter, r *http.Request) {
		logger := a.logger.With().Str("path", r.URL.Path).Logger()

		urlPath, err := url.PathUnescape(r.URL.Path[len("/watch/"):])
		if err != nil {
			http.Error(w, "400 invalid path", http.StatusBadRequest)
			return
		}

		lastSlash := strings.LastIndex(urlPath, "/")
		if lastSlash == -1 {
			a.servePlayer(w, r)
			return
		}

		resource := urlPath[lastSlash+1:]
		mediaPath := urlPath[:lastSlash]

		switch {
		case resource == "hls-manifest.m3u8":
			a.serveManifest(w, r, logger, mediaPath)
		case resource == "hls-segment.ts":
			a.serveSegment(w, r, logger, mediaPath)
		case resource == "duration":
			a.serveDuration(w, r, logger, mediaPath)
		case resource == "caption-tracks.json":
			a.serveCaptionTracks(w, r, logger, mediaPath)
		case resource == "captions.vtt":
			a.serveCaptions(w, r, logger, mediaPath)
		case sessionSegmentRe.MatchString(resource):
			a.serveSessionSegment(w, r, logger, mediaPath, resource)
		default:
			// anything else is part of the media path itself
			a.servePlayer(w, r)
		}
	})
}

func (a *ApiManagerCtx) servePlayer(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	//nolint
	w.Write(playerPage)
}

func (a *ApiManagerCtx) serveManifest(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, mediaPath string) {
	source, err := a.library.Resolve(mediaPath)
	if err != nil {
		a.httpError(w, logger, err)
		return
	}

	media, err := a.probeMedia(r.Context(), mediaPath, source)
	if err != nil {
		a.httpError(w, logger, err)
		return
	}

	if a.config.HLS.Mode == "session" {
		if err := a.sessions.EnsureStarted(r.Context(), mediaPath, source, media); err != nil {
			a.httpError(w, logger, err)
			return
		}

		manifest, err := a.sessions.ManifestPath(mediaPath)
		if err != nil {
			a.httpError(w, logger, err)
			return
		}

		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		http.ServeFile(w, r, manifest)
		return
	}

	plan, err := hls.Plan(media.Container.Duration, a.config.HLS.SegmentLength)
	if err != nil {
		a.httpError(w, logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	//nolint
	w.Write([]byte(hls.RenderManifest(plan)))
}

func (a *ApiManagerCtx) serveSegment(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, mediaPath string) {
	seg, err := segmentFromQuery(r.URL.Query())
	if err != nil {
		a.httpError(w, logger, err)
		return
	}

	source, err := a.library.Resolve(mediaPath)
	if err != nil {
		a.httpError(w, logger, err)
		return
	}

	media, err := a.probeMedia(r.Context(), mediaPath, source)
	if err != nil {
		a.httpError(w, logger, err)
		return
	}

	stream, err := a.producer.Produce(r.Context(), source, seg, media)
	if err != nil {
		a.httpError(w, logger, err)
		return
	}
	defer stream.Close()

	segmentsStarted.Inc()

	w.Header().Set("Content-Type", "video/mp2t")

	if _, err := stream.WriteTo(r.Context(), w); err != nil {
		segmentsFailed.Inc()
		logger.Err(err).Msg("segment stream failed")
		return
	}

	segmentsCompleted.Inc()
}

func (a *ApiManagerCtx) serveSessionSegment(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, mediaPath, resource string) {
	index, err := strconv.Atoi(sessionSegmentRe.FindStringSubmatch(resource)[1])
	if err != nil {
		http.Error(w, "400 invalid segment index", http.StatusBadRequest)
		return
	}

	segment, err := a.sessions.SegmentPath(mediaPath, index)
	if err != nil {
		a.httpError(w, logger, err)
		return
	}

	w.Header().Set("Content-Type", "video/mp2t")
	http.ServeFile(w, r, segment)
}

func (a *ApiManagerCtx) serveDuration(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, mediaPath string) {
	source, err := a.library.Resolve(mediaPath)
	if err != nil {
		a.httpError(w, logger, err)
		return
	}

	media, err := a.probeMedia(r.Context(), mediaPath, source)
	if err != nil {
		a.httpError(w, logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	//nolint
	w.Write([]byte(strconv.FormatFloat(media.Container.Duration, 'f', -1, 64)))
}

func (a *ApiManagerCtx) serveCaptionTracks(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, mediaPath string) {
	source, err := a.library.Resolve(mediaPath)
	if err != nil {
		a.httpError(w, logger, err)
		return
	}

	tracks, err := a.prober.CaptionTracks(r.Context(), source)
	if err != nil {
		a.httpError(w, logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(tracks); err != nil {
		logger.Err(err).Msg("unable to encode caption tracks")
	}
}

func (a *ApiManagerCtx) serveCaptions(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, mediaPath string) {
	index := 0
	if v := r.URL.Query().Get("index"); v != "" {
		var err error
		index, err = strconv.Atoi(v)
		if err != nil || index < 0 {
			http.Error(w, "400 invalid caption index", http.StatusBadRequest)
			return
		}
	}

	source, err := a.library.Resolve(mediaPath)
	if err != nil {
		a.httpError(w, logger, err)
		return
	}

	data, err := a.prober.ExtractWebVTT(r.Context(), a.config.HLS.FFmpegBinary, source, index)
	if err != nil {
		a.httpError(w, logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/vtt")
	//nolint
	w.Write(data)
}

func segmentFromQuery(query url.Values) (hls.Segment, error) {
	index, err := strconv.Atoi(query.Get("index"))
	if err != nil || index < 0 {
		return hls.Segment{}, &hls.InvalidConfigurationError{Reason: "invalid segment index"}
	}

	// ParseFloat accepts NaN and infinities, none of which describe a
	// playable slice of media
	offset, err := strconv.ParseFloat(query.Get("offset"), 64)
	if err != nil || math.IsNaN(offset) || math.IsInf(offset, 0) {
		return hls.Segment{}, &hls.InvalidConfigurationError{Reason: "invalid segment offset"}
	}

	length, err := strconv.ParseFloat(query.Get("length"), 64)
	if err != nil || math.IsNaN(length) || math.IsInf(length, 0) {
		return hls.Segment{}, &hls.InvalidConfigurationError{Reason: "invalid segment length"}
	}

	return hls.Segment{Index: index, Offset: offset, Length: length}, nil
}

// probeMedia runs the prober, consulting the on-disk cache when enabled.
func (a *ApiManagerCtx) probeMedia(ctx context.Context, mediaPath, source string) (*hls.MediaInfo, error) {
	start := time.Now()
	defer func() {
		probeDuration.Observe(time.Since(start).Seconds())
	}()

	if a.config.HLS.Cache {
		if media, err := a.cachedMediaInfo(source); err == nil {
			return media, nil
		}
	}

	media, err := a.prober.Probe(ctx, source)
	if err != nil {
		return nil, err
	}

	if a.config.HLS.Cache {
		if err := a.saveMediaInfo(source, media); err != nil {
			a.logger.Warn().Err(err).Str("media", mediaPath).Msg("unable to save probe cache")
		}
	}

	return media, nil
}

// httpError translates domain errors into status codes. Unknown errors stay
// opaque to the client, the details go to the log.
func (a *ApiManagerCtx) httpError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	var (
		notFound    *hls.NotFoundError
		unsupported *hls.UnsupportedMediaError
		invalidDur  *hls.InvalidDurationError
		invalidCfg  *hls.InvalidConfigurationError
		timeout     *hls.ManifestTimeoutError
	)

	switch {
	case errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound):
		http.Error(w, "404 media not found", http.StatusNotFound)
	case errors.As(err, &unsupported):
		logger.Warn().Err(err).Msg("unsupported media")
		http.Error(w, "415 unsupported media", http.StatusUnsupportedMediaType)
	case errors.As(err, &invalidDur) || errors.As(err, &invalidCfg):
		http.Error(w, "400 "+err.Error(), http.StatusBadRequest)
	case errors.As(err, &timeout):
		logger.Warn().Err(err).Msg("session startup timed out")
		http.Error(w, "504 transcode session timed out", http.StatusGatewayTimeout)
	case errors.Is(err, context.Canceled):
		// client went away, nothing to answer
	default:
		logger.Err(err).Msg("request failed")
		http.Error(w, "500 internal server error", http.StatusInternalServerError)
	}
}
