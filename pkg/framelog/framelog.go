// Package framelog provides the append-only, ordered log of inbound frames
// captured by a connection's receive loop.
//
// One writer (the receive loop) appends while any number of readers scan.
// Readers never mutate shared state: each keeps its own cursor and asks for
// everything at or after it. A mutex guards the append and slice-copy
// boundary; the length is also published atomically so Len never blocks.
package framelog

import (
	"sync"
	"sync/atomic"

	"github.com/papercomputeco/neolink/pkg/neo"
)

// Log is an append-only frame log. The zero value is ready to use.
type Log struct {
	mu     sync.Mutex
	frames []neo.Frame
	length atomic.Int64
}

// New returns an empty log.
func New() *Log {
	return &Log{}
}

// Append stores the frame at the end of the log, stamping its Seq with its
// position, and returns that position.
func (l *Log) Append(f neo.Frame) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	f.Seq = len(l.frames)
	l.frames = append(l.frames, f)
	l.length.Store(int64(len(l.frames)))

	return f.Seq
}

// Len returns the number of frames appended so far. It is the cursor a new
// pending operation should start from.
func (l *Log) Len() int {
	return int(l.length.Load())
}

// Since returns a copy of all frames at positions >= cursor, in arrival
// order. A cursor past the end yields nil.
func (l *Log) Since(cursor int) []neo.Frame {
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= l.Len() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if cursor >= len(l.frames) {
		return nil
	}

	out := make([]neo.Frame, len(l.frames)-cursor)
	copy(out, l.frames[cursor:])
	return out
}
