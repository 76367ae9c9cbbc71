package library

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Detector sniffs file content types. One instance is safe for concurrent
// use and can be shared by every component that needs sniffing.
type Detector struct{}

func NewDetector() *Detector {
	// content sniffing only needs the header, keep directory listings cheap
	mimetype.SetLimit(3072)
	return &Detector{}
}

func (d *Detector) Detect(path string) (string, error) {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	return m.String(), nil
}

// classify maps a sniffed mimetype onto an entry kind. Plain text rides
// along as metadata, matching the .info sidecar files the library uses.
func classify(mime string) Kind {
	switch {
	case strings.HasPrefix(mime, "video/"):
		return KindVideo
	case strings.HasPrefix(mime, "image/"):
		return KindImage
	case strings.HasPrefix(mime, "text/"):
		return KindMetadata
	default:
		return KindFile
	}
}
