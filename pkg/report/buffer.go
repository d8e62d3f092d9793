package report

import (
	"sync"

	"github.com/roffe/candiag"
)

// FrameBuffer is an append-only frame store shared by the scan loop and the
// background listener. Frames leave it only through a single Drain.
type FrameBuffer struct {
	mu      sync.Mutex
	frames  []*candiag.CANFrame
	drained bool
	dropped int
}

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

// Append adds frames in the given order. Appends after Drain are counted as
// dropped.
func (b *FrameBuffer) Append(frames ...*candiag.CANFrame) {
	if len(frames) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.drained {
		b.dropped += len(frames)
		return
	}
	b.frames = append(b.frames, frames...)
}

func (b *FrameBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// Dropped returns how many frames arrived after the buffer was drained.
func (b *FrameBuffer) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Drain hands out every buffered frame. Only the first call returns frames.
func (b *FrameBuffer) Drain() []*candiag.CANFrame {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.drained {
		return nil
	}
	b.drained = true
	out := b.frames
	b.frames = nil
	return out
}
