package utils

import "sync"

// TailWriterCtx keeps the last bytes written to it, for attaching a
// subprocess's stderr to an error report without letting a chatty process
// grow the capture without bound.
type TailWriterCtx struct {
	mu    sync.Mutex
	limit int
	data  []byte
}

func TailWriter(limit int) *TailWriterCtx {
	return &TailWriterCtx{limit: limit}
}

func (t *TailWriterCtx) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data = append(t.data, p...)
	if len(t.data) > t.limit {
		t.data = t.data[len(t.data)-t.limit:]
	}
	return len(p), nil
}

func (t *TailWriterCtx) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return string(t.data)
}
