package stream

import (
	"sync"
)

// RingBuffer keeps the most recent frames for event preroll. Single writer
// (the capture loop), any number of snapshot readers. A snapshot is a copy of
// the buffered slice headers taken under the lock, so it never observes a
// push in progress.
type RingBuffer struct {
	mu       sync.Mutex
	frames   []Frame
	capacity int
}

func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer{
		frames:   make([]Frame, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a frame, evicting the oldest when the buffer is full.
func (b *RingBuffer) Push(f Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.frames) == b.capacity {
		copy(b.frames, b.frames[1:])
		b.frames[len(b.frames)-1] = f
		return
	}
	b.frames = append(b.frames, f)
}

// Current returns the most recently pushed frame, or false before the first
// push.
func (b *RingBuffer) Current() (Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.frames) == 0 {
		return Frame{}, false
	}
	return b.frames[len(b.frames)-1], true
}

// Snapshot returns the buffered frames oldest first. The returned slice is
// owned by the caller.
func (b *RingBuffer) Snapshot() []Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Frame, len(b.frames))
	copy(out, b.frames)
	return out
}

func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

func (b *RingBuffer) Cap() int {
	return b.capacity
}
