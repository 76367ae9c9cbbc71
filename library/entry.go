package library

// Kind tags the variant of a directory entry. Dispatch on it is an
// exhaustive switch at the use sites.
type Kind int

const (
	KindFolder Kind = iota
	KindFile
	KindVideo
	KindImage
	KindMetadata
)

func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindFile:
		return "file"
	case KindVideo:
		return "video"
	case KindImage:
		return "image"
	case KindMetadata:
		return "metadata"
	}
	return "unknown"
}

// Entry is one item of a media library listing.
type Entry struct {
	Kind     Kind
	Name     string
	Path     string // relative to the library root
	MimeType string
	SortKey  string

	// Preview is the poster image paired with a video or folder, if any.
	Preview *Entry
}

func (e Entry) IsFile() bool {
	return e.Kind != KindFolder
}

func (e Entry) Hidden() bool {
	return len(e.Name) > 0 && e.Name[0] == '.'
}
