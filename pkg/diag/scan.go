package diag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roffe/candiag"
	"github.com/roffe/candiag/pkg/report"
)

// ScanAddresses polls every address of rng in ascending order, exactly once.
//
// Each poll is a send, a pause of interPollDelay and one receive of
// perAddressTimeout. Whatever arrives in that window is attributed to the
// polled address. A failed send marks the address as not responding and the
// scan moves on. An invalid template is rejected before any I/O.
//
// On cancellation the results gathered so far are returned together with an
// error matching candiag.ErrSessionCancelled.
func (e *Engine) ScanAddresses(ctx context.Context, rng AddressRange, tmpl PollTemplate, perAddressTimeout, interPollDelay time.Duration) (map[uint8]*report.ScanResult, error) {
	out := make(map[uint8]*report.ScanResult)
	e.setState(StateScanning)
	defer e.setState(StateIdle)
	err := e.scan(ctx, rng, tmpl, perAddressTimeout, interPollDelay, func(res *report.ScanResult) {
		out[res.Address] = res
	})
	return out, err
}

func (e *Engine) scan(ctx context.Context, rng AddressRange, tmpl PollTemplate, perAddressTimeout, interPollDelay time.Duration, onResult func(*report.ScanResult)) error {
	if err := rng.validate(); err != nil {
		return err
	}
	if _, err := tmpl.Frame(rng.First); err != nil {
		return fmt.Errorf("poll template: %w", err)
	}
	for _, addr := range rng.Addresses() {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", candiag.ErrSessionCancelled, ctx.Err())
		}
		res, err := e.pollAddress(ctx, addr, tmpl, perAddressTimeout, interPollDelay)
		if errors.Is(err, candiag.ErrSessionCancelled) {
			return err
		}
		onResult(res)
		if res.Responded {
			e.emit(candiag.EventTypeProgress, int(addr), "%d frame(s) in %s", len(res.Frames), res.RoundTrip.Round(time.Millisecond))
		} else if res.Failed {
			e.emit(candiag.EventTypeProgress, int(addr), "failed: %v", res.Err)
		} else {
			e.emit(candiag.EventTypeProgress, int(addr), "no response")
		}
	}
	return nil
}

func (e *Engine) pollAddress(ctx context.Context, addr uint8, tmpl PollTemplate, perAddressTimeout, interPollDelay time.Duration) (*report.ScanResult, error) {
	res := &report.ScanResult{Address: addr}
	frame, err := tmpl.Frame(addr)
	if err != nil {
		res.Failed, res.Err = true, err
		return res, nil
	}

	start := time.Now()
	if err := e.send(ctx, frame); err != nil {
		if errors.Is(err, candiag.ErrSessionCancelled) {
			return nil, err
		}
		res.Failed, res.Err = true, err
		return res, nil
	}

	if err := sleep(ctx, interPollDelay); err != nil {
		return nil, fmt.Errorf("%w: %v", candiag.ErrSessionCancelled, err)
	}

	frames, err := e.receive(ctx, perAddressTimeout, int(addr))
	res.RoundTrip = time.Since(start)
	if err != nil {
		if errors.Is(err, candiag.ErrSessionCancelled) {
			return nil, err
		}
		res.Failed, res.Err = true, err
		return res, nil
	}
	res.Frames = frames
	res.Responded = len(frames) > 0
	return res, nil
}

// listen keeps receiving in windows of ListenWindow until ctx is done and
// appends everything to buf. A receive cut short by ctx is discarded.
func (e *Engine) listen(ctx context.Context, buf *report.FrameBuffer) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		frames, err := e.receive(ctx, e.cfg.ListenWindow, -1)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			if !candiag.IsRecoverable(err) {
				return fmt.Errorf("listener: %w", err)
			}
			e.emit(candiag.EventTypeWarning, -1, "listener: %v", err)
			if sleep(ctx, e.cfg.ListenWindow) != nil {
				return nil
			}
			continue
		}
		buf.Append(frames...)
	}
}
