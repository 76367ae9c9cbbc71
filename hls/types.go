package hls

// MediaInfo is the probed summary of a single source file. It is produced
// fresh for every probe call, callers may cache it by path if they want to.
type MediaInfo struct {
	Container ContainerInfo `json:"container"`
	Video     []VideoStream `json:"video"`
	Audio     []AudioStream `json:"audio"`
}

type ContainerInfo struct {
	Format   string  `json:"format"`
	Duration float64 `json:"duration"`
}

type VideoStream struct {
	Codec string  `json:"codec"`
	FPS   float64 `json:"fps"`
}

type AudioStream struct {
	Codec    string `json:"codec"`
	Channels int    `json:"channels"`
	Language string `json:"language"`
}

// Segment describes one planned slice of the source. Segments covering the
// same (duration, segmentLength) pair are always identical, both the
// manifest and the producer derive them from the same plan.
type Segment struct {
	Index  int
	Offset float64
	Length float64
}
