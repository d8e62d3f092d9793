package diag

import (
	"context"
	"errors"
	"testing"

	"github.com/roffe/candiag"
)

func running(tx, rx uint32) candiag.BusStatus {
	return candiag.BusStatus{State: candiag.StateRunning, Ready: true, TxErrors: tx, RxErrors: rx}
}

func TestHealthCheckCounterGrowth(t *testing.T) {
	sim := newSim(t)
	sim.ScriptStatus(running(0, 0), running(150, 0), running(150, 0))
	e, log := newTestEngine(t, sim, testConfig())

	if _, err := e.HealthCheck(context.Background()); err != nil {
		t.Fatal(err)
	}

	st, err := e.HealthCheck(context.Background())
	var fault *candiag.ProtocolFault
	if !errors.As(err, &fault) {
		t.Fatalf("expected ProtocolFault, got %v", err)
	}
	if !fault.Recovered || fault.Err != nil {
		t.Errorf("fault = %+v", fault)
	}
	if st.State != candiag.StateBusOff || fault.Status.State != candiag.StateBusOff {
		t.Errorf("status = %s", st)
	}
	if r := sim.Reinits(); len(r) != 1 || r[0] != [2]int{19, 20} {
		t.Errorf("reinits = %v", r)
	}
	if e.Recoveries() != 1 {
		t.Errorf("recoveries = %d", e.Recoveries())
	}

	var sawRecovering bool
	for _, ev := range log.ofType(candiag.EventTypeState) {
		if ev.Details == "IDLE -> RECOVERING" {
			sawRecovering = true
		}
	}
	if !sawRecovering {
		t.Error("engine never entered RECOVERING")
	}
	if e.State() != StateIdle {
		t.Errorf("state after recovery = %s", e.State())
	}

	// counters start over after a reinit
	if _, err := e.HealthCheck(context.Background()); err != nil {
		t.Errorf("check after recovery: %v", err)
	}
}

func TestHealthCheckThreshold(t *testing.T) {
	tests := []struct {
		name   string
		before candiag.BusStatus
		after  candiag.BusStatus
		fault  bool
	}{
		{"at threshold", running(0, 0), running(100, 0), false},
		{"tx over", running(0, 0), running(101, 0), true},
		{"rx over", running(0, 10), running(0, 111), true},
		{"counter reset", running(200, 0), running(50, 0), false},
		{"node bus-off", running(0, 0), candiag.BusStatus{State: candiag.StateBusOff}, true},
		{"bus-off flag", running(0, 0), candiag.BusStatus{State: candiag.StateRunning, BusOff: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := newSim(t)
			sim.ScriptStatus(tt.before, tt.after)
			e, _ := newTestEngine(t, sim, testConfig())
			if _, err := e.HealthCheck(context.Background()); err != nil && !tt.before.IsBusOff() {
				t.Fatal(err)
			}
			_, err := e.HealthCheck(context.Background())
			var fault *candiag.ProtocolFault
			if got := errors.As(err, &fault); got != tt.fault {
				t.Errorf("fault = %v, want %v (err %v)", got, tt.fault, err)
			}
		})
	}
}

func TestHealthCheckRecoveryFails(t *testing.T) {
	sim := newSim(t)
	sim.ScriptStatus(candiag.BusStatus{State: candiag.StateBusOff})
	sim.FailNext("reinit", 1, candiag.Unrecoverable(candiag.ErrUnsupported))
	e, _ := newTestEngine(t, sim, testConfig())

	_, err := e.HealthCheck(context.Background())
	var fault *candiag.ProtocolFault
	if !errors.As(err, &fault) {
		t.Fatalf("expected ProtocolFault, got %v", err)
	}
	if fault.Recovered || !errors.Is(fault.Err, candiag.ErrUnsupported) {
		t.Errorf("fault = %+v", fault)
	}
	if sim.Calls("reinit") != 1 {
		t.Errorf("reinit calls = %d", sim.Calls("reinit"))
	}
	if e.Recoveries() != 0 {
		t.Errorf("recoveries = %d", e.Recoveries())
	}
}

func TestHealthCheckUnreachable(t *testing.T) {
	sim := newSim(t)
	sim.FailNext("status", 100, nil)
	e, _ := newTestEngine(t, sim, testConfig())
	_, err := e.HealthCheck(context.Background())
	if !candiag.IsTransportError(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	var fault *candiag.ProtocolFault
	if errors.As(err, &fault) {
		t.Error("unreachable node is not a protocol fault")
	}
}
