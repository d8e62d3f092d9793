package diag

import (
	"context"
	"fmt"

	"github.com/roffe/candiag"
)

// HealthCheck fetches one status snapshot and compares its error counters
// with the previous one.
//
// When the node reports bus-off, or either counter grew by more than the
// error threshold, the returned status is marked StateBusOff, the engine
// runs a recovery and a *candiag.ProtocolFault is returned. A status that
// cannot be fetched after retries yields a *candiag.TransportError.
func (e *Engine) HealthCheck(ctx context.Context) (candiag.BusStatus, error) {
	st, err := e.status(ctx)
	if err != nil {
		return st, err
	}

	e.mu.Lock()
	prev := e.last
	snap := st
	e.last = &snap
	e.mu.Unlock()

	var reason string
	switch {
	case st.IsBusOff():
		reason = "node reports bus-off"
	case prev != nil && e.cfg.Thresholds.Error > 0:
		tx, rx := st.Delta(*prev)
		if tx > e.cfg.Thresholds.Error || rx > e.cfg.Thresholds.Error {
			reason = fmt.Sprintf("error counters grew tx +%d rx +%d, threshold %d", tx, rx, e.cfg.Thresholds.Error)
		}
	}
	if reason == "" {
		e.emit(candiag.EventTypeDebug, -1, "status %s", st)
		return st, nil
	}

	st.State = candiag.StateBusOff
	e.emit(candiag.EventTypeError, -1, "%s (%s)", reason, st)
	fault := &candiag.ProtocolFault{Status: st, Reason: reason}
	if err := e.recover(ctx); err != nil {
		fault.Err = err
	} else {
		fault.Recovered = true
	}
	return st, fault
}

// recover reinitializes the controller and waits for it to settle.
func (e *Engine) recover(ctx context.Context) error {
	e.setState(StateRecovering)
	defer e.setState(StateIdle)

	if err := e.reinit(ctx); err != nil {
		e.emit(candiag.EventTypeError, -1, "reinit failed: %v", err)
		return err
	}
	if err := sleep(ctx, e.cfg.RecoveryDelay); err != nil {
		return fmt.Errorf("%w: %v", candiag.ErrSessionCancelled, err)
	}

	e.mu.Lock()
	e.recoveries++
	// counters restart from zero after a reinit
	e.last = nil
	e.mu.Unlock()
	e.emit(candiag.EventTypeInfo, -1, "controller reinitialized on tx %d rx %d", e.cfg.TxPin, e.cfg.RxPin)
	return nil
}
