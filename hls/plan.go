package hls

import (
	"fmt"
	"math"
	"strings"
)

// Plan slices [0, duration) into contiguous, non-overlapping segments of the
// nominal length. The last segment absorbs the remainder and may be shorter.
func Plan(duration, segmentLength float64) ([]Segment, error) {
	if duration <= 0 {
		return nil, &InvalidDurationError{Duration: duration}
	}
	if segmentLength <= 0 {
		return nil, &InvalidConfigurationError{
			Reason: fmt.Sprintf("segment length must be positive, got %f", segmentLength),
		}
	}

	count := int(math.Ceil(duration / segmentLength))

	plan := make([]Segment, 0, count)
	for i := 0; i < count; i++ {
		offset := segmentLength * float64(i)
		length := segmentLength

		// the last segment absorbs the remainder
		if i == count-1 {
			length = duration - offset
		}

		plan = append(plan, Segment{
			Index:  i,
			Offset: offset,
			Length: length,
		})
	}

	return plan, nil
}

// RenderManifest turns a plan into a VOD playlist. Output is deterministic,
// identical plans render byte-for-byte identical text.
func RenderManifest(plan []Segment) string {
	var maxLength float64
	for _, seg := range plan {
		if seg.Length > maxLength {
			maxLength = seg.Length
		}
	}

	// target duration must be at least the longest segment, going one
	// second over keeps strict players happy
	targetDuration := int(math.Ceil(maxLength)) + 1

	manifest := []string{
		"#EXTM3U",
		"#EXT-X-VERSION:3",
		"#EXT-X-PLAYLIST-TYPE:VOD",
		fmt.Sprintf("#EXT-X-TARGETDURATION:%d", targetDuration),
		"#EXT-X-MEDIA-SEQUENCE:0",
	}

	for _, seg := range plan {
		manifest = append(manifest,
			fmt.Sprintf("#EXTINF:%.6f,", seg.Length),
			SegmentURI(seg),
		)
	}

	manifest = append(manifest, "#EXT-X-ENDLIST")

	return strings.Join(manifest, "\n") + "\n"
}

// SegmentURI renders the relative segment URL. The query parameters carry
// everything the producer needs, segment requests are stateless.
func SegmentURI(seg Segment) string {
	return fmt.Sprintf("hls-segment.ts?index=%d&offset=%.6f&length=%.6f", seg.Index, seg.Offset, seg.Length)
}
