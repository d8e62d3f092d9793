package diag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roffe/candiag"
	"github.com/roffe/candiag/pkg/report"
)

// PinPair is a TX/RX GPIO assignment for the node's CAN controller.
type PinPair struct {
	Tx int
	Rx int
}

func (p PinPair) String() string {
	return fmt.Sprintf("TX=%d RX=%d", p.Tx, p.Rx)
}

// DefaultPinPairs are the ESP32-S3 CAN pin assignments tried in the field,
// each with its swapped counterpart.
func DefaultPinPairs() []PinPair {
	return []PinPair{
		{Tx: 20, Rx: 19},
		{Tx: 19, Rx: 20},
		{Tx: 21, Rx: 22},
		{Tx: 22, Rx: 21},
		{Tx: 4, Rx: 5},
		{Tx: 5, Rx: 4},
	}
}

// PinResult is the outcome of listening on one pin pair.
type PinResult struct {
	Pins           PinPair
	Classification report.Classification
	Frames         int
	Status         candiag.BusStatus
	// Reinit, status or receive failure behind a TransportUnreachable result
	Err error
}

// PinSweep reinitializes the controller on every pair in order, checks the
// status, listens for listen without transmitting and classifies what it saw.
// A pair the node reports bus-off on is not listened to.
//
// When the sweep is done the controller is put back on the first Healthy pair,
// or on the configured pins if none was. On cancellation the results so far are
// returned with an error matching candiag.ErrSessionCancelled.
func (e *Engine) PinSweep(ctx context.Context, pairs []PinPair, listen time.Duration) ([]*PinResult, error) {
	if len(pairs) == 0 {
		return nil, errors.New("diag: no pin pairs to sweep")
	}
	if listen <= 0 {
		return nil, errors.New("diag: pin sweep listen window must be > 0")
	}
	e.setState(StateRecovering)
	defer e.setState(StateIdle)

	var out []*PinResult
	for _, p := range pairs {
		if ctx.Err() != nil {
			return out, fmt.Errorf("%w: %v", candiag.ErrSessionCancelled, ctx.Err())
		}
		res, err := e.tryPins(ctx, p, listen)
		if err != nil {
			return out, err
		}
		out = append(out, res)
		if res.Err != nil {
			e.emit(candiag.EventTypeWarning, -1, "%s: %s: %v", p, res.Classification, res.Err)
		} else {
			e.emit(candiag.EventTypeInfo, -1, "%s: %s, %d frame(s)", p, res.Classification, res.Frames)
		}
	}

	restore := PinPair{Tx: e.cfg.TxPin, Rx: e.cfg.RxPin}
	for _, res := range out {
		if res.Classification == report.Healthy {
			restore = res.Pins
			break
		}
	}
	if err := e.reinitPins(ctx, restore.Tx, restore.Rx); err != nil {
		if errors.Is(err, candiag.ErrSessionCancelled) {
			return out, err
		}
		e.emit(candiag.EventTypeWarning, -1, "could not restore %s: %v", restore, err)
	}
	e.mu.Lock()
	e.last = nil
	e.mu.Unlock()
	return out, nil
}

// tryPins only returns an error on cancellation, other failures are recorded
// in the result.
func (e *Engine) tryPins(ctx context.Context, p PinPair, listen time.Duration) (*PinResult, error) {
	res := &PinResult{Pins: p}
	fail := func(err error) (*PinResult, error) {
		if errors.Is(err, candiag.ErrSessionCancelled) {
			return nil, err
		}
		res.Classification = report.TransportUnreachable
		res.Err = err
		return res, nil
	}

	if err := e.reinitPins(ctx, p.Tx, p.Rx); err != nil {
		return fail(err)
	}
	if err := sleep(ctx, e.cfg.RecoveryDelay); err != nil {
		return nil, fmt.Errorf("%w: %v", candiag.ErrSessionCancelled, err)
	}
	before, err := e.status(ctx)
	if err != nil {
		return fail(err)
	}
	res.Status = before
	in := report.Inputs{Before: before, After: before}

	if !before.IsBusOff() {
		frames, err := e.receive(ctx, listen, -1)
		if err != nil {
			return fail(err)
		}
		after, err := e.status(ctx)
		if err != nil {
			return fail(err)
		}
		res.Frames = len(frames)
		res.Status = after
		in.After, in.Frames = after, len(frames)
	}
	res.Classification = report.Classify(in, e.cfg.Thresholds)
	return res, nil
}
