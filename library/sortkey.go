package library

import (
	"path/filepath"
	"strings"
)

// SortKey builds the ordering key for a directory entry: folders before
// files, leading articles moved to the back ("The Truman Show" sorts as
// "Truman Show, The") and file extensions ignored so a video and its poster
// image share a key.
func SortKey(name string, isFile bool) string {
	if isFile {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}

	first, rest, found := strings.Cut(name, " ")
	if found {
		switch strings.ToLower(first) {
		case "the", "an", "a":
			name = rest + ", " + first
		}
	}

	prefix := "0:"
	if isFile {
		prefix = "1:"
	}

	return prefix + name
}
