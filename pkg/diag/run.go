package diag

import (
	"context"
	"errors"
	"fmt"

	"github.com/roffe/candiag"
	"github.com/roffe/candiag/pkg/report"
	"golang.org/x/sync/errgroup"
)

// RunFull runs a complete session: health check, address scan (with the
// optional background listener), optional broadcast poll, passive monitor and
// a final health check.
//
// It never fails. Step failures, cancellation and an unreachable node all end
// up in the returned report.
func (e *Engine) RunFull(ctx context.Context) *report.Report {
	agg := report.NewAggregator(e.cfg.Thresholds)
	e.setState(StateIdle)
	defer e.setState(StateDone)

	if !e.checkHealth(ctx, agg) {
		return e.finish(ctx, agg)
	}

	e.setState(StateScanning)
	if err := e.scanWithListener(ctx, agg); err != nil {
		if errors.Is(err, candiag.ErrSessionCancelled) {
			return e.finish(ctx, agg)
		}
		agg.RecordFailure("scan", err)
	}

	if e.cfg.BroadcastPoll {
		if err := e.broadcastPoll(ctx, agg.Buffer()); err != nil {
			if errors.Is(err, candiag.ErrSessionCancelled) {
				return e.finish(ctx, agg)
			}
			agg.RecordFailure("broadcast", err)
		}
	}

	if e.cfg.MonitorDuration > 0 {
		e.setState(StateMonitoring)
		frames, err := e.monitor(ctx, e.cfg.MonitorDuration)
		if err != nil {
			if errors.Is(err, candiag.ErrSessionCancelled) {
				return e.finish(ctx, agg)
			}
			agg.RecordFailure("monitor", err)
		}
		agg.Buffer().Append(frames...)
	}

	e.checkHealth(ctx, agg)
	return e.finish(ctx, agg)
}

func (e *Engine) finish(ctx context.Context, agg *report.Aggregator) *report.Report {
	if ctx.Err() != nil {
		agg.MarkCancelled()
		e.emit(candiag.EventTypeWarning, -1, "session cancelled: %v", ctx.Err())
	}
	r := agg.Finish()
	e.emit(candiag.EventTypeInfo, -1, "classification %s", r.Classification)
	return r
}

// checkHealth feeds one health check into agg and reports whether the session
// can go on.
func (e *Engine) checkHealth(ctx context.Context, agg *report.Aggregator) bool {
	st, err := e.HealthCheck(ctx)
	var fault *candiag.ProtocolFault
	switch {
	case err == nil:
		agg.ObserveStatus(st)
		return true
	case errors.As(err, &fault):
		agg.ObserveStatus(fault.Status)
		agg.MarkBusOff()
		if fault.Recovered {
			agg.MarkRecovered()
			return true
		}
		if errors.Is(fault.Err, candiag.ErrSessionCancelled) {
			return false
		}
		agg.RecordFailure("recover", fault.Err)
		return true
	case errors.Is(err, candiag.ErrSessionCancelled):
		return false
	default:
		agg.MarkUnreachable(err)
		return false
	}
}

func (e *Engine) scanWithListener(ctx context.Context, agg *report.Aggregator) error {
	listenCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(listenCtx)
	if e.cfg.ConcurrentListener {
		g.Go(func() error {
			return e.listen(gctx, agg.Buffer())
		})
	}

	err := e.scan(ctx, e.cfg.Addresses, e.cfg.Poll, e.cfg.PerAddressTimeout, e.cfg.InterPollDelay, agg.RecordScan)

	stop()
	if lerr := g.Wait(); lerr != nil {
		agg.RecordFailure("listen", lerr)
	}
	return err
}

func (e *Engine) broadcastPoll(ctx context.Context, buf *report.FrameBuffer) error {
	frame, err := e.cfg.Poll.Frame(candiag.BroadcastAddress)
	if err != nil {
		return err
	}
	if err := e.send(ctx, frame); err != nil {
		return err
	}
	if err := sleep(ctx, e.cfg.InterPollDelay); err != nil {
		return fmt.Errorf("%w: %v", candiag.ErrSessionCancelled, err)
	}
	frames, err := e.receive(ctx, e.cfg.PerAddressTimeout, candiag.BroadcastAddress)
	if err != nil {
		return err
	}
	buf.Append(frames...)
	return nil
}
