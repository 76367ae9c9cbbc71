package api

import (
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"os"
	"path"

	"github.com/web-emcee/emcee/hls"
)

// probe results are stored as JSON, either next to the media file or in the
// configured cache directory keyed by a hash of the media path
func (a *ApiManagerCtx) cachePath(source string) string {
	if a.config.HLS.CacheDir == "" {
		return fmt.Sprintf("%s.emcee-cache", source)
	}

	h := sha1.New()
	h.Write([]byte(source))
	hash := h.Sum(nil)

	return path.Join(a.config.HLS.CacheDir, fmt.Sprintf("%x.emcee-cache", hash))
}

func (a *ApiManagerCtx) cachedMediaInfo(source string) (*hls.MediaInfo, error) {
	cachePath := a.cachePath(source)

	data, err := os.ReadFile(cachePath)
	if err != nil {
		return nil, err
	}

	media := &hls.MediaInfo{}
	if err := json.Unmarshal(data, media); err != nil {
		return nil, err
	}

	a.logger.Debug().Str("path", cachePath).Msg("probe cache hit")
	return media, nil
}

func (a *ApiManagerCtx) saveMediaInfo(source string, media *hls.MediaInfo) error {
	data, err := json.Marshal(media)
	if err != nil {
		return err
	}

	return os.WriteFile(a.cachePath(source), data, 0644)
}
