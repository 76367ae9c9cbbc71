package hls

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fake continuous transcoder counting its launches, then producing a
// manifest and one segment in its working directory
func writeFakeSessionTranscoder(t *testing.T, countFile string) string {
	t.Helper()

	script := fmt.Sprintf("#!/bin/sh\n"+
		"echo launched >> %s\n"+
		"sleep 0.2\n"+
		"printf 'x' > hls-segment-00000.ts\n"+
		"echo '#EXTM3U' > manifest.m3u8\n"+
		"i=0\n"+
		"while [ $i -lt 100 ]; do sleep 0.1; i=$((i+1)); done\n", countFile)

	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte(script), 0755))
	return path
}

func TestEnsureStartedLaunchesOnce(t *testing.T) {
	rootDir := t.TempDir()
	countFile := filepath.Join(t.TempDir(), "count")

	manager := NewSessionManager(SessionConfig{
		FFmpegBinary: writeFakeSessionTranscoder(t, countFile),
		RootDir:      rootDir,
		StartTimeout: 10 * time.Second,
	})
	defer manager.Shutdown()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = manager.EnsureStarted(context.Background(), "movie.mkv", "/media/movie.mkv", nil)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	count, err := os.ReadFile(countFile)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(count), "launched"), "concurrent requests must share one job")

	manifest, err := manager.ManifestPath("movie.mkv")
	require.NoError(t, err)
	assert.FileExists(t, manifest)

	segment, err := manager.SegmentPath("movie.mkv", 0)
	require.NoError(t, err)
	assert.FileExists(t, segment)

	// beyond what was produced
	_, err = manager.SegmentPath("movie.mkv", 42)
	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
}

func TestEnsureStartedExistingManifestIsNoop(t *testing.T) {
	rootDir := t.TempDir()
	dir := filepath.Join(rootDir, "movie.mkv")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, SessionManifestName), []byte("#EXTM3U\n"), 0644))

	// binary that would fail instantly if it were ever launched
	manager := NewSessionManager(SessionConfig{
		FFmpegBinary: "/bin/false",
		RootDir:      rootDir,
	})

	require.NoError(t, manager.EnsureStarted(context.Background(), "movie.mkv", "/media/movie.mkv", nil))
}

func TestEnsureStartedManifestTimeout(t *testing.T) {
	script := "#!/bin/sh\ni=0\nwhile [ $i -lt 100 ]; do sleep 0.1; i=$((i+1)); done\n"
	binary := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(binary, []byte(script), 0755))

	manager := NewSessionManager(SessionConfig{
		FFmpegBinary: binary,
		RootDir:      t.TempDir(),
		StartTimeout: 500 * time.Millisecond,
		GraceTimeout: 500 * time.Millisecond,
	})

	start := time.Now()
	err := manager.EnsureStarted(context.Background(), "movie.mkv", "/media/movie.mkv", nil)

	var timeoutErr *ManifestTimeoutError
	require.True(t, errors.As(err, &timeoutErr), "got %v", err)
	assert.Less(t, time.Since(start), 10*time.Second, "the wait must not run past its bound")
}

func TestEnsureStartedProcessFailure(t *testing.T) {
	script := "#!/bin/sh\necho 'no such file' >&2\nexit 2\n"
	binary := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(binary, []byte(script), 0755))

	manager := NewSessionManager(SessionConfig{
		FFmpegBinary: binary,
		RootDir:      t.TempDir(),
		StartTimeout: 10 * time.Second,
	})

	err := manager.EnsureStarted(context.Background(), "movie.mkv", "/media/missing.mkv", nil)

	var transcodeErr *TranscodeError
	require.True(t, errors.As(err, &transcodeErr), "got %v", err)
	assert.Equal(t, 2, transcodeErr.ExitCode)
	assert.Contains(t, transcodeErr.Stderr, "no such file")
}

func TestSegmentPathUnknownKey(t *testing.T) {
	manager := NewSessionManager(SessionConfig{RootDir: t.TempDir()})

	var notFound *NotFoundError

	_, err := manager.ManifestPath("nope.mkv")
	require.True(t, errors.As(err, &notFound))

	_, err = manager.SegmentPath("nope.mkv", 0)
	require.True(t, errors.As(err, &notFound))

	_, err = manager.SegmentPath("nope.mkv", -1)
	require.True(t, errors.As(err, &notFound))
}
