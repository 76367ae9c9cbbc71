package hls

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CaptionTrack identifies one subtitle stream inside the container. The
// index is relative to the subtitle streams, matching ffmpeg's 0:s:<n>
// selector.
type CaptionTrack struct {
	Index    int    `json:"index"`
	Codec    string `json:"codec"`
	Language string `json:"language"`
	Title    string `json:"title"`
}

// CaptionTracks lists the subtitle streams of a source. Subtitle streams are
// rejected by Probe, this is the separate path that handles them.
func (p *Prober) CaptionTracks(ctx context.Context, source string) ([]CaptionTrack, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	args := []string{
		"-loglevel", "error",
		"-show_entries", "stream=index,codec_name:stream_tags=language,title",
		"-select_streams", "s",
		"-print_format", "json",
		"-i", source,
	}

	cmd := exec.CommandContext(ctx, p.FFprobeBinary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &ProbeError{Err: fmt.Errorf("ffprobe: %v: %s", err, strings.TrimSpace(stderr.String()))}
	}

	out := struct {
		Streams []struct {
			Index     int               `json:"index"`
			CodecName string            `json:"codec_name"`
			Tags      map[string]string `json:"tags"`
		} `json:"streams"`
	}{}

	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, &ProbeError{Err: fmt.Errorf("unable to parse ffprobe output: %w", err)}
	}

	tracks := make([]CaptionTrack, 0, len(out.Streams))
	for i, stream := range out.Streams {
		tracks = append(tracks, CaptionTrack{
			Index:    i,
			Codec:    stream.CodecName,
			Language: stream.Tags["language"],
			Title:    stream.Tags["title"],
		})
	}

	return tracks, nil
}

// ExtractWebVTT converts one subtitle track to WebVTT text, whatever the
// input format.
func (p *Prober) ExtractWebVTT(ctx context.Context, ffmpegBinary, source string, index int) ([]byte, error) {
	if index < 0 {
		return nil, &NotFoundError{Resource: fmt.Sprintf("caption track %d", index)}
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}

	args := []string{
		"-loglevel", "error",
		"-nostdin",
		"-i", source,
		"-map", fmt.Sprintf("0:s:%d", index),
		"-f", "webvtt",
		"pipe:1",
	}

	cmd := exec.CommandContext(ctx, ffmpegBinary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		code := -1
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return nil, &TranscodeError{ExitCode: code, Stderr: strings.TrimSpace(stderr.String())}
	}

	return stdout.Bytes(), nil
}
