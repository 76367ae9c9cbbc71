package api

import (
	_ "embed"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi"
	"github.com/rs/zerolog"

	"github.com/web-emcee/emcee/library"
)

//go:embed browser.html
var browserPage []byte

type listedEntry struct {
	IsFile   bool   `json:"is_file"`
	MimeType string `json:"mimetype,omitempty"`
	Name     string `json:"name"`
	Path     string `json:"path"`
	SortKey  string `json:"sortkey"`
	Preview  string `json:"preview,omitempty"`
}

func (a *ApiManagerCtx) Browser(r chi.Router) {
	r.Get("/browser", func(w http.ResponseWriter, r *http.Request) {
		a.serveBrowser(w, r)
	})

	r.Get("/browser/*", func(w http.ResponseWriter, r *http.Request) {
		urlPath, err := url.PathUnescape(r.URL.Path[len("/browser/"):])
		if err != nil {
			http.Error(w, "400 invalid path", http.StatusBadRequest)
			return
		}

		if urlPath == "ls.json" || strings.HasSuffix(urlPath, "/ls.json") {
			dir := strings.TrimSuffix(strings.TrimSuffix(urlPath, "ls.json"), "/")
			a.serveListing(w, r, dir)
			return
		}

		a.serveBrowser(w, r)
	})
}

func (a *ApiManagerCtx) serveBrowser(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	//nolint
	w.Write(browserPage)
}

func (a *ApiManagerCtx) serveListing(w http.ResponseWriter, r *http.Request, dir string) {
	logger := a.logger.With().Str("dir", dir).Logger()

	entries, err := a.library.List(dir)
	if err != nil {
		a.httpError(w, logger, err)
		return
	}

	listed := make([]listedEntry, 0, len(entries))
	for _, e := range entries {
		listed = append(listed, listedEntry{
			IsFile:   e.IsFile(),
			MimeType: e.MimeType,
			Name:     e.Name,
			Path:     e.Path,
			SortKey:  e.SortKey,
			Preview:  a.renderPreview(logger, e.Preview),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(listed); err != nil {
		logger.Err(err).Msg("unable to encode listing")
	}
}

// renderPreview turns an entry's poster image into an inline thumbnail. A
// broken image only costs the preview, never the listing.
func (a *ApiManagerCtx) renderPreview(logger zerolog.Logger, preview *library.Entry) string {
	if preview == nil {
		return ""
	}

	full, err := a.library.Resolve(preview.Path)
	if err != nil {
		return ""
	}

	data, err := a.thumbs.Render(full)
	if err != nil {
		logger.Warn().Err(err).Str("image", preview.Path).Msg("unable to render thumbnail")
		return ""
	}

	return data
}

func (a *ApiManagerCtx) RawMedia(r chi.Router) {
	r.Get("/raw_media/*", func(w http.ResponseWriter, r *http.Request) {
		logger := a.logger.With().Str("path", r.URL.Path).Logger()

		urlPath, err := url.PathUnescape(r.URL.Path[len("/raw_media/"):])
		if err != nil {
			http.Error(w, "400 invalid path", http.StatusBadRequest)
			return
		}

		full, err := a.library.Resolve(urlPath)
		if err != nil {
			a.httpError(w, logger, err)
			return
		}

		http.ServeFile(w, r, full)
	})
}
