package hls

import (
	"fmt"
	"time"
)

// ProbeError means the analysis tool failed or returned data we could not
// make sense of. It is permanent, probing is not retried.
type ProbeError struct {
	Err error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe failed: %v", e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// UnsupportedMediaError is returned for stream layouts outside what the
// player pipeline handles: more than one video or audio track, or streams
// that are neither.
type UnsupportedMediaError struct {
	Reason string
}

func (e *UnsupportedMediaError) Error() string {
	return "unsupported media: " + e.Reason
}

type InvalidDurationError struct {
	Duration float64
}

func (e *InvalidDurationError) Error() string {
	return fmt.Sprintf("invalid media duration: %f", e.Duration)
}

type InvalidConfigurationError struct {
	Reason string
}

func (e *InvalidConfigurationError) Error() string {
	return "invalid configuration: " + e.Reason
}

// TranscodeError carries the exit code and captured stderr of a transcoder
// process that died on its own. Intentionally killed processes never produce
// this error.
type TranscodeError struct {
	ExitCode int
	Stderr   string
}

func (e *TranscodeError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("transcode failed with exit code %d", e.ExitCode)
	}
	return fmt.Sprintf("transcode failed with exit code %d: %s", e.ExitCode, e.Stderr)
}

// ManifestTimeoutError means a continuous session did not produce its
// manifest file within the configured bound. The job has already been
// terminated by the time this surfaces.
type ManifestTimeoutError struct {
	Key     string
	Timeout time.Duration
}

func (e *ManifestTimeoutError) Error() string {
	return fmt.Sprintf("no manifest for %q after %s", e.Key, e.Timeout)
}

type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}
