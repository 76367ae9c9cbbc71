package library

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Library lists and resolves files under a single media root. Paths going
// in and out are always relative to that root; Resolve is the only place
// they become absolute, and it refuses to escape.
type Library struct {
	logger   zerolog.Logger
	root     string
	detector *Detector
}

func New(root string, detector *Detector) *Library {
	return &Library{
		logger:   log.With().Str("module", "library").Logger(),
		root:     root,
		detector: detector,
	}
}

func (l *Library) Root() string {
	return l.root
}

// Resolve turns a request path into an absolute path inside the root. A
// missing file or a directory where a file is expected yields fs.ErrNotExist.
func (l *Library) Resolve(relPath string) (string, error) {
	full := filepath.Join(l.root, filepath.Clean("/"+relPath))

	info, err := os.Stat(full)
	if err != nil {
		return "", fmt.Errorf("no such media file %q: %w", relPath, fs.ErrNotExist)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%q is a directory: %w", relPath, fs.ErrNotExist)
	}

	return full, nil
}

// LocalURI is the form handed to the transcoder tools.
func (l *Library) LocalURI(fullPath string) string {
	return "file:" + fullPath
}

// List returns the entries of one directory, sorted, with same-stem files
// collapsed: a video and its poster image become one entry carrying the
// image as preview.
func (l *Library) List(relDir string) ([]Entry, error) {
	dir := filepath.Join(l.root, filepath.Clean("/"+relDir))

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	// group directory entries sharing a sort key
	groups := map[string][]fs.DirEntry{}
	keys := []string{}
	for _, de := range dirEntries {
		if strings.HasPrefix(de.Name(), ".") {
			continue
		}
		// skip anything that is neither file nor directory (broken symlinks)
		if _, err := de.Info(); err != nil {
			continue
		}

		key := SortKey(de.Name(), !de.IsDir())
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], de)
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		entry, ok := l.collapseGroup(relDir, dir, key, groups[key])
		if ok {
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

// collapseGroup turns the files sharing one sort key into a single entry.
func (l *Library) collapseGroup(relDir, dir, key string, group []fs.DirEntry) (Entry, bool) {
	if len(group) == 1 && group[0].IsDir() {
		return l.folderEntry(relDir, dir, key, group[0]), true
	}

	var video, img, other *Entry
	for _, de := range group {
		if de.IsDir() {
			// a directory never shares a stem with files, keys embed the type
			continue
		}

		e := l.fileEntry(relDir, dir, key, de)
		switch e.Kind {
		case KindVideo:
			video = &e
		case KindImage:
			img = &e
		default:
			if other == nil {
				other = &e
			}
		}
	}

	switch {
	case video != nil && img != nil:
		video.Preview = img
		return *video, true
	case video != nil:
		return *video, true
	case img != nil:
		return *img, true
	case other != nil && len(group) == 1:
		return *other, true
	}

	// unrecognised leftovers are not worth listing
	return Entry{}, false
}

func (l *Library) fileEntry(relDir, dir, key string, de fs.DirEntry) Entry {
	full := filepath.Join(dir, de.Name())

	mime, err := l.detector.Detect(full)
	if err != nil {
		l.logger.Warn().Err(err).Str("path", full).Msg("unable to sniff file type")
	}

	return Entry{
		Kind:     classify(mime),
		Name:     de.Name(),
		Path:     path.Join(relDir, de.Name()),
		MimeType: mime,
		SortKey:  key,
	}
}

// poster images a folder may carry for its own listing entry
var folderArtNames = []string{
	"folder.jpg", ".folder.jpg", "folder.JPG", ".folder.JPG",
	"folder.png", ".folder.png", "folder.PNG", ".folder.PNG",
	"folder.jpeg", ".folder.jpeg", "folder.JPEG", ".folder.JPEG",
	"folder.gif", ".folder.gif", "folder.GIF", ".folder.GIF",
}

func (l *Library) folderEntry(relDir, dir, key string, de fs.DirEntry) Entry {
	entry := Entry{
		Kind:    KindFolder,
		Name:    de.Name(),
		Path:    path.Join(relDir, de.Name()),
		SortKey: key,
	}

	for _, name := range folderArtNames {
		full := filepath.Join(dir, de.Name(), name)
		if _, err := os.Stat(full); err != nil {
			continue
		}

		entry.Preview = &Entry{
			Kind:    KindImage,
			Name:    name,
			Path:    path.Join(relDir, de.Name(), name),
			SortKey: SortKey(name, true),
		}
		break
	}

	return entry
}
