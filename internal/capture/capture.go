// Package capture provides in-memory stdout and stderr buffers for a single
// runner invocation.
//
// A Capture is acquired before the runner starts and must be released once
// its content was copied out, typically via defer so the release happens on
// every path including a killed process:
//
//	c := capture.Acquire(limit)
//	defer c.Release()
//	cmd.Stdout, cmd.Stderr = c.Stdout(), c.Stderr()
package capture

import (
	"bytes"
	"io"
	"sync"
)

// DefaultLimit caps each captured stream.
const DefaultLimit = 8 * 1024 * 1024

var buffers = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

type Capture struct {
	mx       sync.Mutex
	stdout   *limitWriter
	stderr   *limitWriter
	released bool
}

// Acquire takes two buffers from the pool. limit <= 0 means DefaultLimit.
func Acquire(limit int) *Capture {
	if limit <= 0 {
		limit = DefaultLimit
	}
	c := &Capture{}
	c.stdout = &limitWriter{c: c, buf: buffers.Get().(*bytes.Buffer), limit: limit}
	c.stderr = &limitWriter{c: c, buf: buffers.Get().(*bytes.Buffer), limit: limit}
	return c
}

func (c *Capture) Stdout() io.Writer {
	return c.stdout
}

func (c *Capture) Stderr() io.Writer {
	return c.stderr
}

// StdoutBytes returns a copy of captured stdout.
func (c *Capture) StdoutBytes() []byte {
	return c.stdout.bytes()
}

// StderrBytes returns a copy of captured stderr.
func (c *Capture) StderrBytes() []byte {
	return c.stderr.bytes()
}

// Truncated reports whether any stream exceeded the limit.
func (c *Capture) Truncated() bool {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.stdout.truncated || c.stderr.truncated
}

// Release returns the buffers to the pool. It is safe to call more than once,
// writes after Release are discarded.
func (c *Capture) Release() {
	c.mx.Lock()
	defer c.mx.Unlock()
	if c.released {
		return
	}
	c.released = true
	for _, w := range []*limitWriter{c.stdout, c.stderr} {
		w.buf.Reset()
		buffers.Put(w.buf)
		w.buf = nil
	}
}

// limitWriter writes up to limit bytes, then silently discards the rest.
// All writers of one Capture share its mutex, exec.Cmd may copy stdout and
// stderr from two goroutines.
type limitWriter struct {
	c         *Capture
	buf       *bytes.Buffer
	limit     int
	truncated bool
}

func (w *limitWriter) Write(p []byte) (int, error) {
	w.c.mx.Lock()
	defer w.c.mx.Unlock()
	if w.buf == nil {
		return len(p), nil
	}
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		if len(p) > 0 {
			w.truncated = true
		}
		return len(p), nil
	}
	if len(p) > remaining {
		// report all bytes as consumed to avoid short write errors from io.Copy
		w.buf.Write(p[:remaining])
		w.truncated = true
		return len(p), nil
	}
	return w.buf.Write(p)
}

func (w *limitWriter) bytes() []byte {
	w.c.mx.Lock()
	defer w.c.mx.Unlock()
	if w.buf == nil {
		return nil
	}
	return bytes.Clone(w.buf.Bytes())
}
