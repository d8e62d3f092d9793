package diag

import (
	"context"
	"errors"
	"testing"

	"github.com/roffe/candiag"
	"github.com/roffe/candiag/pkg/report"
)

func TestRunFullClassification(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*testing.T, *adapterSim)
		want  report.Classification
	}{
		{
			name: "healthy",
			setup: func(t *testing.T, s *adapterSim) {
				s.Echo(5, 0xFF42, []byte{1})
			},
			want: report.Healthy,
		},
		{
			name:  "no signal",
			setup: func(t *testing.T, s *adapterSim) {},
			want:  report.NoSignal,
		},
		{
			name: "invalid signal",
			setup: func(t *testing.T, s *adapterSim) {
				s.ScriptStatus(running(0, 0), running(0, 20))
			},
			want: report.InvalidSignal,
		},
		{
			name: "noisy replies",
			setup: func(t *testing.T, s *adapterSim) {
				s.Echo(5, 0xFF42, []byte{1})
				s.ScriptStatus(running(0, 0), running(0, 20))
			},
			want: report.InvalidSignal,
		},
		{
			name: "bus off",
			setup: func(t *testing.T, s *adapterSim) {
				s.ScriptStatus(running(0, 0), running(150, 0))
			},
			want: report.BusOff,
		},
		{
			name: "unreachable",
			setup: func(t *testing.T, s *adapterSim) {
				s.FailNext("status", 100, nil)
			},
			want: report.TransportUnreachable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := newSim(t)
			tt.setup(t, sim)
			e, _ := newTestEngine(t, sim, testConfig())
			r := e.RunFull(context.Background())
			if r.Classification != tt.want {
				t.Errorf("classification = %s, want %s (failures %v)", r.Classification, tt.want, r.Failures)
			}
			if e.State() != StateDone {
				t.Errorf("state = %s", e.State())
			}
			if r.Cancelled {
				t.Error("report marked cancelled")
			}
		})
	}
}

func TestRunFullHealthyReport(t *testing.T) {
	sim := newSim(t)
	sim.Echo(5, 0xFF42, []byte{1})
	e, _ := newTestEngine(t, sim, testConfig())

	r := e.RunFull(context.Background())
	if got := r.Responders(); len(got) != 1 || got[0] != 5 {
		t.Errorf("responders = %v", got)
	}
	if len(r.Addresses()) != 16 {
		t.Errorf("scanned = %v", r.Addresses())
	}
	if len(r.Failures) != 0 {
		t.Errorf("failures = %v", r.Failures)
	}
	if r.InitialStatus.State != candiag.StateRunning {
		t.Errorf("initial status = %s", r.InitialStatus)
	}
}

func TestRunFullBusOffRecovery(t *testing.T) {
	sim := newSim(t)
	sim.ScriptStatus(running(0, 0), running(150, 0))
	e, _ := newTestEngine(t, sim, testConfig())

	r := e.RunFull(context.Background())
	if !r.BusOffSeen || r.Recoveries != 1 {
		t.Errorf("bus-off seen %v, recoveries %d", r.BusOffSeen, r.Recoveries)
	}
	if len(sim.Reinits()) != 1 {
		t.Errorf("reinits = %v", sim.Reinits())
	}
	if r.FinalStatus.State != candiag.StateBusOff {
		t.Errorf("final status = %s", r.FinalStatus)
	}
}

func TestRunFullUnreachable(t *testing.T) {
	sim := newSim(t)
	sim.FailNext("status", 100, nil)
	e, _ := newTestEngine(t, sim, testConfig())

	r := e.RunFull(context.Background())
	if sim.Calls("send") != 0 {
		t.Errorf("sent %d frames to an unreachable node", sim.Calls("send"))
	}
	if len(r.Failures) != 1 || r.Failures[0].Step != "status" || !candiag.IsTransportError(r.Failures[0].Err) {
		t.Errorf("failures = %v", r.Failures)
	}
}

func TestRunFullCancelled(t *testing.T) {
	sim := newSim(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e, err := New(sim, testConfig(), WithEventHandler(func(ev candiag.Event) {
		if ev.Type == candiag.EventTypeProgress && ev.Address == 3 {
			cancel()
		}
	}))
	if err != nil {
		t.Fatal(err)
	}

	r := e.RunFull(ctx)
	if !r.Cancelled {
		t.Fatal("report not marked cancelled")
	}
	if e.State() != StateDone {
		t.Errorf("state = %s", e.State())
	}
	if len(r.Scanned) != 3 {
		t.Errorf("scanned %d addresses", len(r.Scanned))
	}
	var found bool
	for _, f := range r.Failures {
		if errors.Is(f.Err, candiag.ErrSessionCancelled) {
			found = true
		}
	}
	if !found {
		t.Errorf("failures = %v", r.Failures)
	}
}

func TestRunFullListener(t *testing.T) {
	sim := newSim(t)
	sim.AddTraffic(candiag.Decode(0x0CF00400, []byte{1, 2}))
	cfg := testConfig()
	cfg.ConcurrentListener = true
	cfg.MonitorDuration = 0
	e, _ := newTestEngine(t, sim, cfg)

	r := e.RunFull(context.Background())
	if len(r.PassiveFrames) == 0 {
		t.Fatal("listener collected nothing")
	}
	for _, f := range r.PassiveFrames {
		if f.Identifier != 0x0CF00400 {
			t.Errorf("unexpected passive frame %s", f)
		}
	}
	if len(r.Scanned) != 16 {
		t.Errorf("scanned %d addresses", len(r.Scanned))
	}
}

func TestRunFullBroadcastPoll(t *testing.T) {
	sim := newSim(t)
	sim.Echo(3, 0xFF42, nil)
	sim.Echo(7, 0xFF42, nil)
	cfg := testConfig()
	cfg.BroadcastPoll = true
	cfg.MonitorDuration = 0
	e, _ := newTestEngine(t, sim, cfg)

	r := e.RunFull(context.Background())
	if len(r.PassiveFrames) != 2 {
		t.Fatalf("passive frames = %v", r.PassiveFrames)
	}
	last := sim.Sent()[len(sim.Sent())-1]
	if !last.IsBroadcast() {
		t.Errorf("last poll went to %d", last.Destination)
	}
}
