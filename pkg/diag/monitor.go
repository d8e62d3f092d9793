package diag

import (
	"context"
	"sync"
	"time"

	"github.com/roffe/candiag"
)

// FrameSeq is a one-shot sequence of received frames. The receive behind it
// runs on the first call to Next and the sequence cannot be restarted.
type FrameSeq struct {
	once  sync.Once
	fetch func() ([]*candiag.CANFrame, error)

	mu     sync.Mutex
	frames []*candiag.CANFrame
	pos    int
	err    error
}

func newFrameSeq(fetch func() ([]*candiag.CANFrame, error)) *FrameSeq {
	return &FrameSeq{fetch: fetch}
}

func (s *FrameSeq) load() {
	s.once.Do(func() {
		frames, err := s.fetch()
		s.mu.Lock()
		s.frames, s.err = frames, err
		s.fetch = nil
		s.mu.Unlock()
	})
}

// Next returns the next frame in arrival order.
func (s *FrameSeq) Next() (*candiag.CANFrame, bool) {
	s.load()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.frames) {
		s.frames = nil
		return nil, false
	}
	f := s.frames[s.pos]
	s.frames[s.pos] = nil
	s.pos++
	return f, true
}

// Err is the receive error, if any. Valid once Next returned false.
func (s *FrameSeq) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Collect consumes the rest of the sequence.
func (s *FrameSeq) Collect() ([]*candiag.CANFrame, error) {
	var out []*candiag.CANFrame
	for {
		f, ok := s.Next()
		if !ok {
			return out, s.Err()
		}
		out = append(out, f)
	}
}

// PassiveMonitor listens without transmitting for duration. Nothing happens
// until the returned sequence is first read.
func (e *Engine) PassiveMonitor(ctx context.Context, duration time.Duration) *FrameSeq {
	return newFrameSeq(func() ([]*candiag.CANFrame, error) {
		e.setState(StateMonitoring)
		defer e.setState(StateIdle)
		return e.monitor(ctx, duration)
	})
}

func (e *Engine) monitor(ctx context.Context, duration time.Duration) ([]*candiag.CANFrame, error) {
	e.emit(candiag.EventTypeInfo, -1, "monitoring bus for %s", duration)
	return e.receive(ctx, duration, -1)
}
