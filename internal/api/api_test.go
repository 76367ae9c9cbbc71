package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web-emcee/emcee/internal/config"
)

const fakeProbeOutput = `{
	"streams": [
		{"index": 0, "codec_name": "h264", "codec_type": "video", "r_frame_rate": "25/1"},
		{"index": 1, "codec_name": "aac", "codec_type": "audio", "channels": 2}
	],
	"format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "25.000000"}
}`

func writeFakeProbe(t *testing.T, output string) string {
	t.Helper()

	script := fmt.Sprintf("#!/bin/sh\ncat <<'EOF'\n%s\nEOF\n", output)
	path := filepath.Join(t.TempDir(), "ffprobe")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	mediaDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(mediaDir, "movie.mp4"), []byte("not really an mp4"), 0644))

	cfg := &config.Server{
		MediaDir: mediaDir,
		HLS: config.HLS{
			Mode:          "ondemand",
			SegmentLength: 10,
			ProbeTimeout:  5 * time.Second,
			FFprobeBinary: writeFakeProbe(t, fakeProbeOutput),
		},
	}

	router := chi.NewRouter()
	New(cfg).Mount(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, mediaDir
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()

	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, body
}

func TestApi(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("ping", func(t *testing.T) {
		res, body := get(t, srv.URL+"/ping")
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, "pong", string(body))
	})

	t.Run("manifest", func(t *testing.T) {
		res, body := get(t, srv.URL+"/watch/movie.mp4/hls-manifest.m3u8")
		require.Equal(t, http.StatusOK, res.StatusCode)

		manifest := string(body)
		assert.Contains(t, manifest, "#EXTM3U")
		assert.Contains(t, manifest, "#EXT-X-PLAYLIST-TYPE:VOD")
		assert.Contains(t, manifest, "#EXT-X-TARGETDURATION:11")
		assert.Contains(t, manifest, "hls-segment.ts?index=2&offset=20.000000&length=5.000000")
		assert.Contains(t, manifest, "#EXT-X-ENDLIST")
	})

	t.Run("manifest for missing media", func(t *testing.T) {
		res, _ := get(t, srv.URL+"/watch/missing.mp4/hls-manifest.m3u8")
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
	})

	t.Run("segment with bad descriptor", func(t *testing.T) {
		res, _ := get(t, srv.URL+"/watch/movie.mp4/hls-segment.ts?index=abc&offset=0&length=10")
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("segment with non-finite descriptor", func(t *testing.T) {
		for _, query := range []string{
			"index=0&offset=NaN&length=10",
			"index=0&offset=0&length=NaN",
			"index=0&offset=Inf&length=10",
			"index=0&offset=0&length=-Inf",
		} {
			res, _ := get(t, srv.URL+"/watch/movie.mp4/hls-segment.ts?"+query)
			assert.Equal(t, http.StatusBadRequest, res.StatusCode, query)
		}
	})

	t.Run("duration", func(t *testing.T) {
		res, body := get(t, srv.URL+"/watch/movie.mp4/duration")
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, "25", string(body))
	})

	t.Run("player page", func(t *testing.T) {
		res, body := get(t, srv.URL+"/watch/movie.mp4")
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.Contains(t, string(body), "hls-manifest.m3u8")
	})

	t.Run("listing", func(t *testing.T) {
		res, body := get(t, srv.URL+"/browser/ls.json")
		require.Equal(t, http.StatusOK, res.StatusCode)

		var listed []listedEntry
		require.NoError(t, json.Unmarshal(body, &listed))
		require.Len(t, listed, 1)
		assert.Equal(t, "movie.mp4", listed[0].Name)
		assert.True(t, listed[0].IsFile)
	})

	t.Run("raw media", func(t *testing.T) {
		res, body := get(t, srv.URL+"/raw_media/movie.mp4")
		require.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, "not really an mp4", string(body))
	})

	t.Run("raw media traversal", func(t *testing.T) {
		res, _ := get(t, srv.URL+"/raw_media/..%2f..%2fetc%2fpasswd")
		assert.NotEqual(t, http.StatusOK, res.StatusCode)
	})
}
