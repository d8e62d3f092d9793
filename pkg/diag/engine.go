package diag

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/roffe/candiag"
)

// Engine runs diagnostic sessions against one transport. The transport must
// not be shared with anything else while a session is running.
type Engine struct {
	t       candiag.Transport
	cfg     Config
	onEvent candiag.EventHandler
	start   time.Time

	// held for the whole duration of a transport Send
	sendSem chan struct{}

	mu         sync.Mutex
	state      State
	last       *candiag.BusStatus
	recoveries int
}

type Option func(*Engine)

// WithEventHandler receives state changes, retries and scan progress.
func WithEventHandler(h candiag.EventHandler) Option {
	return func(e *Engine) {
		e.onEvent = h
	}
}

func New(t candiag.Transport, cfg Config, opts ...Option) (*Engine, error) {
	if t == nil {
		return nil, errors.New("diag: transport is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("diag: %w", err)
	}
	e := &Engine{
		t:       t,
		cfg:     cfg,
		start:   time.Now(),
		sendSem: make(chan struct{}, 1),
		onEvent: func(candiag.Event) {},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Recoveries counts successful bus-off recoveries.
func (e *Engine) Recoveries() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recoveries
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	prev := e.state
	e.state = s
	e.mu.Unlock()
	if prev != s {
		e.emit(candiag.EventTypeState, -1, "%s -> %s", prev, s)
	}
}

func (e *Engine) emit(t candiag.EventType, address int, format string, args ...interface{}) {
	e.onEvent(candiag.Event{
		Time:    time.Now(),
		Type:    t,
		Address: address,
		Details: fmt.Sprintf(format, args...),
	})
}

// millis is the session clock used to stamp frames.
func (e *Engine) millis() int64 {
	return time.Since(e.start).Milliseconds()
}

// abandon runs fn and returns as soon as ctx is done, without waiting for fn
// to finish. A late result is discarded.
func abandon[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, candiag.ErrInvalidFrame) || errors.Is(err, context.Canceled) {
		return false
	}
	return candiag.IsRecoverable(err)
}

// withRetry retries fn on transport level failures. A node that simply does
// not answer is not a failure and never gets here.
func (e *Engine) withRetry(ctx context.Context, op string, address int, fn func() error) error {
	delayType := retry.FixedDelay
	if e.cfg.Backoff == BackoffExponential {
		delayType = retry.BackOffDelay
	}
	err := retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(e.cfg.MaxRetries+1),
		retry.Delay(e.cfg.RetryDelay),
		retry.DelayType(delayType),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return retryable(ctx, err)
		}),
		retry.OnRetry(func(n uint, err error) {
			e.emit(candiag.EventTypeWarning, address, "%s attempt #%d failed: %v", op, n+1, err)
		}),
	)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %v", candiag.ErrSessionCancelled, ctx.Err())
	}
	return err
}

// timeoutErr turns an expired per call deadline into a transport error so it
// is retried like any other transport failure.
func (e *Engine) timeoutErr(ctx, callCtx context.Context, op string, err error) error {
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return &candiag.TransportError{Op: op, Transport: e.t.Name(), Err: fmt.Errorf("no reply within deadline: %w", err)}
	}
	return err
}

func (e *Engine) send(ctx context.Context, frame *candiag.CANFrame) error {
	return e.withRetry(ctx, "send", int(frame.Destination), func() error {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
		defer cancel()
		// an abandoned send may still hold the semaphore
		select {
		case e.sendSem <- struct{}{}:
		case <-callCtx.Done():
			return e.timeoutErr(ctx, callCtx, "send", callCtx.Err())
		}
		stamped := frame.WithTimestamp(e.millis())
		_, err := abandon(callCtx, func(c context.Context) (struct{}, error) {
			defer func() { <-e.sendSem }()
			return struct{}{}, e.t.Send(c, stamped)
		})
		return e.timeoutErr(ctx, callCtx, "send", err)
	})
}

func (e *Engine) receive(ctx context.Context, timeout time.Duration, address int) ([]*candiag.CANFrame, error) {
	var frames []*candiag.CANFrame
	err := e.withRetry(ctx, "receive", address, func() error {
		callCtx, cancel := context.WithTimeout(ctx, timeout+e.cfg.RequestTimeout)
		defer cancel()
		got, err := abandon(callCtx, func(c context.Context) ([]*candiag.CANFrame, error) {
			return e.t.Receive(c, timeout)
		})
		if err != nil {
			return e.timeoutErr(ctx, callCtx, "receive", err)
		}
		frames = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	now := e.millis()
	out := make([]*candiag.CANFrame, 0, len(frames))
	for _, f := range frames {
		if f == nil {
			continue
		}
		if f.Timestamp == 0 {
			f = f.WithTimestamp(now)
		}
		out = append(out, f)
	}
	return out, nil
}

func (e *Engine) status(ctx context.Context) (candiag.BusStatus, error) {
	var st candiag.BusStatus
	err := e.withRetry(ctx, "status", -1, func() error {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
		defer cancel()
		got, err := abandon(callCtx, e.t.Status)
		if err != nil {
			return e.timeoutErr(ctx, callCtx, "status", err)
		}
		st = got
		return nil
	})
	return st, err
}

func (e *Engine) reinit(ctx context.Context) error {
	return e.reinitPins(ctx, e.cfg.TxPin, e.cfg.RxPin)
}

func (e *Engine) reinitPins(ctx context.Context, txPin, rxPin int) error {
	return e.withRetry(ctx, "reinit", -1, func() error {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
		defer cancel()
		_, err := abandon(callCtx, func(c context.Context) (struct{}, error) {
			return struct{}{}, e.t.Reinit(c, txPin, rxPin)
		})
		return e.timeoutErr(ctx, callCtx, "reinit", err)
	})
}
