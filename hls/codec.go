package hls

// Codecs a cast receiver is known to play back natively. Anything else
// gets re-encoded.
var (
	playableVideoCodecs = map[string]bool{
		"h264": true,
		"vp8":  true,
	}

	playableAudioCodecs = map[string]bool{
		"aac":    true,
		"flac":   true,
		"mp3":    true,
		"opus":   true,
		"vorbis": true,
	}
)

// CodecPolicy decides between pass-through copy and re-encoding per stream.
type CodecPolicy struct {
	// AllowCopy enables pass-through when the probed codec is already
	// playable. When false everything is re-encoded.
	AllowCopy bool
}

func (p CodecPolicy) videoArgs(media *MediaInfo) []string {
	if p.AllowCopy && media != nil && len(media.Video) == 1 && playableVideoCodecs[media.Video[0].Codec] {
		return []string{"-vcodec", "copy"}
	}
	return []string{"-vcodec", "libx264"}
}

func (p CodecPolicy) videoCopied(media *MediaInfo) bool {
	return p.AllowCopy && media != nil && len(media.Video) == 1 && playableVideoCodecs[media.Video[0].Codec]
}

func (p CodecPolicy) audioArgs(media *MediaInfo) []string {
	if p.AllowCopy && media != nil && len(media.Audio) == 1 && playableAudioCodecs[media.Audio[0].Codec] {
		// aac is playable, but not with more than two channels
		if media.Audio[0].Codec != "aac" || media.Audio[0].Channels <= 2 {
			return []string{"-acodec", "copy"}
		}
	}
	return []string{"-acodec", "aac"}
}
