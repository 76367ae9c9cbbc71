package library

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimal file contents carrying real magic numbers so sniffing works
var (
	mp4Header = append([]byte{0x00, 0x00, 0x00, 0x18}, []byte("ftypisom\x00\x00\x02\x00isomiso2avc1mp41")...)
	pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestListCollapsesVideoAndPoster(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Alien.mp4"), mp4Header)
	writeFile(t, filepath.Join(root, "Alien.png"), pngHeader)
	writeFile(t, filepath.Join(root, "Notes.txt"), []byte("plain text notes\n"))
	writeFile(t, filepath.Join(root, ".hidden.mp4"), mp4Header)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Series"), 0755))

	lib := New(root, NewDetector())

	entries, err := lib.List("")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// directories sort first
	assert.Equal(t, KindFolder, entries[0].Kind)
	assert.Equal(t, "Series", entries[0].Name)

	video := entries[1]
	assert.Equal(t, KindVideo, video.Kind)
	assert.Equal(t, "Alien.mp4", video.Name)
	assert.Equal(t, "video/mp4", video.MimeType)
	require.NotNil(t, video.Preview, "the poster must ride along as preview")
	assert.Equal(t, KindImage, video.Preview.Kind)
	assert.Equal(t, "Alien.png", video.Preview.Name)

	assert.Equal(t, KindMetadata, entries[2].Kind)
}

func TestListFolderArt(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Series", "folder.png"), pngHeader)

	lib := New(root, NewDetector())

	entries, err := lib.List("")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Preview)
	assert.Equal(t, "Series/folder.png", entries[0].Preview.Path)
}

func TestResolve(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Alien.mp4"), mp4Header)

	lib := New(root, NewDetector())

	full, err := lib.Resolve("Alien.mp4")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Alien.mp4"), full)
	assert.Equal(t, "file:"+full, lib.LocalURI(full))

	_, err = lib.Resolve("missing.mp4")
	assert.Error(t, err)

	// directories are not media files
	_, err = lib.Resolve(".")
	assert.Error(t, err)

	// path traversal stays inside the root
	_, err = lib.Resolve("../../../etc/passwd")
	assert.Error(t, err)
}

func TestThumbnailer(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 560, 360))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	root := t.TempDir()
	posterPath := filepath.Join(root, "poster.png")
	writeFile(t, posterPath, buf.Bytes())

	thumb := NewThumbnailer()
	data, err := thumb.Render(posterPath)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestFitBox(t *testing.T) {
	cases := []struct {
		w, h         int
		wantW, wantH int
	}{
		{560, 360, 280, 180},
		{100, 100, 100, 100},
		{2800, 180, 280, 18},
		{280, 1800, 28, 180},
	}

	for _, tc := range cases {
		w, h := fitBox(tc.w, tc.h, defaultThumbWidth, defaultThumbHeight)
		assert.Equal(t, tc.wantW, w)
		assert.Equal(t, tc.wantH, h)
	}
}
