package hls

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/web-emcee/emcee/internal/utils"
)

// name of the playlist a continuous job writes into its output directory
const SessionManifestName = "manifest.m3u8"

// how long a continuous job gets to produce its manifest
const defaultSessionTimeout = 60 * time.Second

type SessionConfig struct {
	FFmpegBinary string

	// RootDir is the base directory all output keys resolve under.
	RootDir string

	SegmentLength float64
	CodecPolicy   CodecPolicy

	// StartTimeout bounds the wait for the manifest file to appear.
	StartTimeout time.Duration
	GraceTimeout time.Duration
}

// SessionManager tracks one whole-file transcode job per output directory.
// Two requests for the same key never race into two ffmpeg processes
// writing over each other.
type SessionManager struct {
	logger zerolog.Logger
	config SessionConfig

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	key string
	dir string
	cmd *exec.Cmd

	// closed once the manifest exists or the job failed, err is set before
	ready chan struct{}
	err   error

	// closed when the process has been reaped
	done    chan struct{}
	waitErr error

	stderr *utils.TailWriterCtx
}

func NewSessionManager(config SessionConfig) *SessionManager {
	if config.FFmpegBinary == "" {
		config.FFmpegBinary = "ffmpeg"
	}
	if config.SegmentLength <= 0 {
		config.SegmentLength = 10
	}
	if config.StartTimeout <= 0 {
		config.StartTimeout = defaultSessionTimeout
	}
	if config.GraceTimeout <= 0 {
		config.GraceTimeout = defaultGraceTimeout
	}

	return &SessionManager{
		logger:   log.With().Str("module", "hls").Str("submodule", "session").Logger(),
		config:   config,
		sessions: make(map[string]*session),
	}
}

func (m *SessionManager) keyDir(key string) string {
	return filepath.Join(m.config.RootDir, filepath.Clean("/"+key))
}

// ManifestPath returns the playlist file for a key, once EnsureStarted has
// succeeded.
func (m *SessionManager) ManifestPath(key string) (string, error) {
	p := filepath.Join(m.keyDir(key), SessionManifestName)
	if _, err := os.Stat(p); err != nil {
		return "", &NotFoundError{Resource: "manifest for " + key}
	}
	return p, nil
}

// SegmentPath returns the file for one numbered segment. Asking for a
// segment the job has not produced yet is a NotFoundError, never a wait.
func (m *SessionManager) SegmentPath(key string, index int) (string, error) {
	if index < 0 {
		return "", &NotFoundError{Resource: fmt.Sprintf("segment %d", index)}
	}

	p := filepath.Join(m.keyDir(key), sessionSegmentName(index))
	if _, err := os.Stat(p); err != nil {
		return "", &NotFoundError{Resource: fmt.Sprintf("segment %d of %s", index, key)}
	}
	return p, nil
}

func sessionSegmentName(index int) string {
	return fmt.Sprintf("hls-segment-%05d.ts", index)
}

// EnsureStarted makes sure exactly one transcode job exists for the key and
// returns once its manifest file is on disk. It is a no-op when the manifest
// already exists, joins an in-flight job when there is one, and otherwise
// launches a new process. Waiting is bounded by StartTimeout; on timeout the
// job is terminated and ManifestTimeoutError returned.
func (m *SessionManager) EnsureStarted(ctx context.Context, key string, source string, media *MediaInfo) error {
	m.mu.Lock()

	s, ok := m.sessions[key]
	if !ok {
		dir := m.keyDir(key)

		// finished on a previous run
		if _, err := os.Stat(filepath.Join(dir, SessionManifestName)); err == nil {
			m.mu.Unlock()
			return nil
		}

		var err error
		s, err = m.launch(key, dir, source, media)
		if err != nil {
			m.mu.Unlock()
			return err
		}
		m.sessions[key] = s
	}
	m.mu.Unlock()

	select {
	case <-s.ready:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *SessionManager) launch(key, dir, source string, media *MediaInfo) (*session, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	// the watcher must be in place before the process starts, otherwise a
	// fast job could write the manifest into an unobserved window
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	args := []string{
		"-loglevel", "error",
		"-nostdin",
		"-i", source,
	}

	args = append(args, m.config.CodecPolicy.audioArgs(media)...)
	args = append(args, m.config.CodecPolicy.videoArgs(media)...)

	if !m.config.CodecPolicy.videoCopied(media) {
		args = append(args, "-force_key_frames", fmt.Sprintf("expr:gte(t,n_forced*%.6f)", m.config.SegmentLength))
	}

	args = append(args,
		"-sn",
		"-f", "segment",
		"-segment_time", fmt.Sprintf("%.6f", m.config.SegmentLength),
		"-segment_format", "mpegts",
		"-segment_list_type", "m3u8",
		"-segment_list", SessionManifestName,
		"-segment_start_number", "0",
		"hls-segment-%05d.ts",
	)

	logger := m.logger.With().
		Str("job", uuid.NewString()).
		Str("key", key).
		Str("source", source).
		Logger()

	cmd := exec.Command(m.config.FFmpegBinary, args...)
	cmd.Dir = dir
	cmd.SysProcAttr = processGroupAttr()

	// stderr goes to the log as it happens and into the tail capture for
	// the error report
	stderr := utils.TailWriter(stderrTailLimit)
	cmd.Stderr = io.MultiWriter(stderr, utils.LogWriter(logger))

	if err := cmd.Start(); err != nil {
		watcher.Close()
		return nil, err
	}

	s := &session{
		key:    key,
		dir:    dir,
		cmd:    cmd,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
		stderr: stderr,
	}

	logger.Info().Str("dir", dir).Msg("continuous transcode started")

	go func() {
		s.waitErr = cmd.Wait()
		close(s.done)
	}()

	go m.supervise(s, watcher, logger)

	return s, nil
}

// supervise waits for the manifest to appear, bounded by StartTimeout. A
// failing process surfaces immediately, a stuck one is put down.
func (m *SessionManager) supervise(s *session, watcher *fsnotify.Watcher, logger zerolog.Logger) {
	defer watcher.Close()

	manifestPath := filepath.Join(s.dir, SessionManifestName)
	deadline := time.NewTimer(m.config.StartTimeout)
	defer deadline.Stop()

	// the manifest may have appeared between MkdirAll and watcher.Add
	if _, err := os.Stat(manifestPath); err == nil {
		m.finishReady(s, nil, logger)
		return
	}

	for {
		select {
		case ev := <-watcher.Events:
			if ev.Name != manifestPath {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}

			m.finishReady(s, nil, logger)
			return

		case err := <-watcher.Errors:
			logger.Err(err).Msg("manifest watcher error")

		case <-s.done:
			// process gone before the manifest was seen; a clean exit
			// may still have produced one (short files finish fast)
			if s.waitErr == nil {
				if _, err := os.Stat(manifestPath); err == nil {
					m.finishReady(s, nil, logger)
					return
				}
			}

			m.finishReady(s, m.exitError(s), logger)
			return

		case <-deadline.C:
			logger.Warn().Dur("timeout", m.config.StartTimeout).Msg("no manifest in time, stopping job")
			m.stopProcess(s, logger)
			m.finishReady(s, &ManifestTimeoutError{Key: s.key, Timeout: m.config.StartTimeout}, logger)
			return
		}
	}
}

func (m *SessionManager) exitError(s *session) error {
	var exitErr *exec.ExitError
	if errors.As(s.waitErr, &exitErr) {
		return &TranscodeError{
			ExitCode: exitErr.ExitCode(),
			Stderr:   s.stderr.String(),
		}
	}
	if s.waitErr != nil {
		return s.waitErr
	}
	return &TranscodeError{ExitCode: 0, Stderr: "job exited without producing a manifest"}
}

// finishReady publishes the startup outcome. Failed sessions leave the
// registry so a later request may try again.
func (m *SessionManager) finishReady(s *session, err error, logger zerolog.Logger) {
	if err != nil {
		m.mu.Lock()
		delete(m.sessions, s.key)
		m.mu.Unlock()

		logger.Err(err).Msg("continuous transcode failed to start")
	} else {
		logger.Info().Msg("manifest available")
	}

	s.err = err
	close(s.ready)
}

// stopProcess sends the graceful signal first and escalates after the grace
// period, same sequence as segment cancellation.
func (m *SessionManager) stopProcess(s *session, logger zerolog.Logger) {
	select {
	case <-s.done:
		return
	default:
	}

	signalProcessGroup(s.cmd, os.Interrupt)

	select {
	case <-s.done:
	case <-time.After(m.config.GraceTimeout):
		logger.Warn().Msg("job ignored interrupt, killing")
		killProcessGroup(s.cmd)
		<-s.done
	}
}

// Count reports how many sessions are currently tracked.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sessions)
}

// Shutdown terminates every running session. Client disconnects never stop
// a session, this is only for whole-server teardown.
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	for _, s := range sessions {
		m.stopProcess(s, m.logger)
	}
}
