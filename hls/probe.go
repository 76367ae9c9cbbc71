package hls

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// default bound for a single ffprobe run, media on slow or broken storage
// must not hang the request forever
const defaultProbeTimeout = 30 * time.Second

type Prober struct {
	logger zerolog.Logger

	FFprobeBinary string
	Timeout       time.Duration
}

func NewProber(ffprobeBinary string, timeout time.Duration) *Prober {
	if ffprobeBinary == "" {
		ffprobeBinary = "ffprobe"
	}
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}

	return &Prober{
		logger: log.With().Str("module", "hls").Str("submodule", "prober").Logger(),

		FFprobeBinary: ffprobeBinary,
		Timeout:       timeout,
	}
}

// Probe runs ffprobe against the source and classifies its streams. Sources
// with more than one video or audio stream, or with streams that are neither,
// are rejected with UnsupportedMediaError.
func (p *Prober) Probe(ctx context.Context, source string) (*MediaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	args := []string{
		"-loglevel", "error",
		"-show_entries", "stream=index,codec_name,codec_type,channels,r_frame_rate:stream_tags:format=format_name,duration",
		"-print_format", "json",
		"-i", source,
	}

	cmd := exec.CommandContext(ctx, p.FFprobeBinary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &ProbeError{Err: fmt.Errorf("ffprobe timed out after %s", p.Timeout)}
		}
		return nil, &ProbeError{Err: fmt.Errorf("ffprobe: %v: %s", err, strings.TrimSpace(stderr.String()))}
	}

	info, err := parseProbeOutput(stdout.Bytes())
	if err != nil {
		return nil, err
	}

	p.logger.Debug().
		Str("source", source).
		Dur("elapsed", time.Since(start)).
		Float64("duration", info.Container.Duration).
		Msg("probe completed")

	return info, nil
}

// Duration is a convenience wrapper for callers that only care about the
// container duration.
func (p *Prober) Duration(ctx context.Context, source string) (float64, error) {
	info, err := p.Probe(ctx, source)
	if err != nil {
		return 0, err
	}

	return info.Container.Duration, nil
}

func parseProbeOutput(data []byte) (*MediaInfo, error) {
	out := struct {
		Streams []struct {
			Index      int               `json:"index"`
			CodecName  string            `json:"codec_name"`
			CodecType  string            `json:"codec_type"`
			Channels   int               `json:"channels"`
			RFrameRate string            `json:"r_frame_rate"`
			Tags       map[string]string `json:"tags"`
		} `json:"streams"`
		Format struct {
			FormatName string `json:"format_name"`
			Duration   string `json:"duration"`
		} `json:"format"`
	}{}

	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &ProbeError{Err: fmt.Errorf("unable to parse ffprobe output: %w", err)}
	}

	// ffprobe reports duration as a string, a missing field is a hard
	// failure rather than a zero-length movie
	if out.Format.Duration == "" {
		return nil, &ProbeError{Err: fmt.Errorf("no duration in probed format %q", out.Format.FormatName)}
	}

	duration, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return nil, &ProbeError{Err: fmt.Errorf("unable to parse duration %q: %w", out.Format.Duration, err)}
	}

	// classification must not depend on the order ffprobe emits streams
	sort.Slice(out.Streams, func(i, j int) bool {
		return out.Streams[i].Index < out.Streams[j].Index
	})

	info := &MediaInfo{
		Container: ContainerInfo{
			Format:   out.Format.FormatName,
			Duration: duration,
		},
	}

	for _, stream := range out.Streams {
		switch stream.CodecType {
		case "video":
			if len(info.Video) > 0 {
				return nil, &UnsupportedMediaError{Reason: "multiple video streams"}
			}

			fps, err := parseFrameRate(stream.RFrameRate)
			if err != nil {
				return nil, &ProbeError{Err: err}
			}

			info.Video = append(info.Video, VideoStream{
				Codec: stream.CodecName,
				FPS:   fps,
			})
		case "audio":
			if len(info.Audio) > 0 {
				return nil, &UnsupportedMediaError{Reason: "multiple audio streams"}
			}

			info.Audio = append(info.Audio, AudioStream{
				Codec:    stream.CodecName,
				Channels: stream.Channels,
				// language tag may be missing, or there may be no tags at all
				Language: stream.Tags["language"],
			})
		default:
			return nil, &UnsupportedMediaError{
				Reason: fmt.Sprintf("streams of type %q", stream.CodecType),
			}
		}
	}

	return info, nil
}

// parseFrameRate converts ffprobe's rational "num/den" frame rate.
func parseFrameRate(raw string) (float64, error) {
	num, den, found := strings.Cut(raw, "/")
	if !found {
		return strconv.ParseFloat(raw, 64)
	}

	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("unable to parse frame rate %q: %w", raw, err)
	}

	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("unable to parse frame rate %q", raw)
	}

	return n / d, nil
}
