package hls

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web-emcee/emcee/internal/utils"
)

// how long a cancelled transcoder gets to exit on SIGINT before SIGKILL
const defaultGraceTimeout = 4 * time.Second

// how long a finished transcoder gets to exit after closing its output
const defaultReapTimeout = 2 * time.Second

// capacity of the channel between the stdout reader and the consumer
const streamChanSize = 8

// how much stderr to keep for error reports
const stderrTailLimit = 8 * 1024

type ProducerConfig struct {
	FFmpegBinary string

	// spacing of forced keyframes when re-encoding, zero forces one only
	// at the segment start
	KeyframeInterval float64

	CodecPolicy CodecPolicy

	GraceTimeout time.Duration
	ReapTimeout  time.Duration
}

// Producer launches one transcoder process per requested segment and hands
// its output back as a SegmentStream.
type Producer struct {
	logger zerolog.Logger
	config ProducerConfig
}

func NewProducer(config ProducerConfig) *Producer {
	if config.FFmpegBinary == "" {
		config.FFmpegBinary = "ffmpeg"
	}
	if config.GraceTimeout <= 0 {
		config.GraceTimeout = defaultGraceTimeout
	}
	if config.ReapTimeout <= 0 {
		config.ReapTimeout = defaultReapTimeout
	}

	return &Producer{
		logger: log.With().Str("module", "hls").Str("submodule", "producer").Logger(),
		config: config,
	}
}

// Produce starts a transcoder that seeks to the segment offset, emits at
// most the segment length and re-stamps output timestamps so the player
// does not treat the data as already played. The stream must be drained or
// closed by the caller, otherwise the subprocess leaks.
//
// media may be nil, in which case everything is re-encoded.
func (p *Producer) Produce(ctx context.Context, source string, seg Segment, media *MediaInfo) (*SegmentStream, error) {
	if seg.Length <= 0 {
		return nil, &InvalidConfigurationError{
			Reason: fmt.Sprintf("segment length must be positive, got %f", seg.Length),
		}
	}
	if seg.Offset < 0 {
		return nil, &InvalidConfigurationError{
			Reason: fmt.Sprintf("segment offset must not be negative, got %f", seg.Offset),
		}
	}

	args := []string{
		"-loglevel", "error",
		"-nostdin",
		// fractional seconds matter here, rounding them off makes the
		// produced segment drift away from the manifest boundaries
		"-ss", fmt.Sprintf("%.6f", seg.Offset),
		"-t", fmt.Sprintf("%.6f", seg.Length),
		"-i", source,
		"-output_ts_offset", fmt.Sprintf("%.6f", seg.Offset),
		"-sn",
	}

	args = append(args, p.config.CodecPolicy.audioArgs(media)...)
	args = append(args, p.config.CodecPolicy.videoArgs(media)...)

	// each segment must start on a keyframe to be independently decodable,
	// copied video keeps whatever keyframes the source has
	if !p.config.CodecPolicy.videoCopied(media) {
		args = append(args, "-force_key_frames", forceKeyFramesExpr(p.config.KeyframeInterval))
	}

	args = append(args, "-f", "mpegts", "pipe:1")

	logger := p.logger.With().
		Str("job", uuid.NewString()).
		Str("source", source).
		Int("index", seg.Index).
		Logger()

	cmd := exec.CommandContext(ctx, p.config.FFmpegBinary, args...)
	cmd.WaitDelay = p.config.GraceTimeout

	stderr := utils.TailWriter(stderrTailLimit)
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	s := &SegmentStream{
		logger:   logger,
		cmd:      cmd,
		stderr:   stderr,
		out:      make(chan []byte, streamChanSize),
		readDone: make(chan struct{}),
		waitDone: make(chan struct{}),
		grace:    p.config.GraceTimeout,
		reap:     p.config.ReapTimeout,
	}

	// the context path goes through the same graceful signal as Close, and
	// records the kill so the exit status is not misread as a failure
	cmd.Cancel = func() error {
		s.mu.Lock()
		s.killed = true
		s.mu.Unlock()

		return cmd.Process.Signal(os.Interrupt)
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	logger.Debug().Float64("offset", seg.Offset).Float64("length", seg.Length).Msg("transcode process started")

	// dedicated reader feeding a bounded channel, the consumer can poll
	// for data without ever blocking on the pipe itself
	go func() {
		defer close(s.out)
		defer close(s.readDone)

		buf := make([]byte, 32*1024)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				s.out <- chunk
			}
			if err != nil {
				return
			}
		}
	}()

	go func() {
		// the pipe must be fully read before reaping
		<-s.readDone
		s.setWaitErr(cmd.Wait())
		close(s.waitDone)
	}()

	return s, nil
}

func forceKeyFramesExpr(interval float64) string {
	if interval <= 0 {
		return "0"
	}
	return fmt.Sprintf("expr:if(isnan(prev_forced_t),eq(t,t),gte(t,prev_forced_t+%.6f))", interval)
}

// SegmentStream is a finite, non-restartable byte stream backed by one
// transcoder process. Next yields chunks until io.EOF, Close cancels the
// underlying process. Exactly one of the two must bring the stream to an
// end, both are safe to call afterwards.
type SegmentStream struct {
	logger zerolog.Logger
	cmd    *exec.Cmd
	stderr *utils.TailWriterCtx

	out      chan []byte
	readDone chan struct{}
	waitDone chan struct{}

	grace time.Duration
	reap  time.Duration

	mu      sync.Mutex
	waitErr error
	killed  bool
	closed  bool
}

func (s *SegmentStream) setWaitErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waitErr = err
}

// Next returns the next chunk of transport-stream data. It returns io.EOF
// after the process closed its output and exited cleanly, or TranscodeError
// when it died on its own with a non-zero status.
func (s *SegmentStream) Next(ctx context.Context) ([]byte, error) {
	select {
	case chunk, ok := <-s.out:
		if ok {
			return chunk, nil
		}

		if err := s.reapProcess(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// reapProcess waits for the exited process with a bound and translates its
// exit status. Called once the output channel is drained.
func (s *SegmentStream) reapProcess() error {
	select {
	case <-s.waitDone:
	case <-time.After(s.reap):
		// output is closed but the process lingers, put it down
		s.logger.Warn().Msg("transcode process did not exit after closing output")
		_ = s.cmd.Process.Kill()
		<-s.waitDone
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.waitErr == nil || s.killed {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(s.waitErr, &exitErr) {
		return &TranscodeError{
			ExitCode: exitErr.ExitCode(),
			Stderr:   s.stderr.String(),
		}
	}

	return s.waitErr
}

// Close terminates the stream before it is drained, typically because the
// HTTP client went away. The process gets a SIGINT first (which ffmpeg
// honours, unlike SIGTERM), a bounded grace period, and only then SIGKILL.
// The kill is recorded so cleanup does not misreport it as a failure.
func (s *SegmentStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true

	finished := false
	select {
	case <-s.waitDone:
		finished = true
	default:
		s.killed = true
	}
	s.mu.Unlock()

	if finished {
		return nil
	}

	s.logger.Debug().Msg("segment cancelled, stopping transcode process")

	// unblock the reader so the process can flush and die
	go func() {
		for range s.out {
		}
	}()

	_ = s.cmd.Process.Signal(os.Interrupt)

	select {
	case <-s.waitDone:
	case <-time.After(s.grace):
		s.logger.Warn().Msg("transcode process ignored interrupt, killing")
		_ = s.cmd.Process.Kill()
		<-s.waitDone
	}

	return nil
}

// WriteTo drains the stream into w, flushing between chunks when w supports
// it. A write failure (client disconnect) closes the stream, which cancels
// the transcoder; that is not reported as an error.
func (s *SegmentStream) WriteTo(ctx context.Context, w io.Writer) (int64, error) {
	flusher, _ := w.(http.Flusher)

	var written int64
	for {
		chunk, err := s.Next(ctx)
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			_ = s.Close()
			if errors.Is(err, context.Canceled) {
				return written, nil
			}
			return written, err
		}

		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			_ = s.Close()
			return written, nil
		}

		if flusher != nil {
			flusher.Flush()
		}
	}
}
