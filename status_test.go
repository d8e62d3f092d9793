package candiag

import "testing"

func TestBusStateFromWire(t *testing.T) {
	tests := []struct {
		wire int
		want BusState
	}{
		{0, StateStopped},
		{1, StateRunning},
		{2, StateBusOff},
		{3, StateBusOff},
		{-1, StateStopped},
		{42, StateStopped},
	}
	for _, tt := range tests {
		if got := BusStateFromWire(tt.wire); got != tt.want {
			t.Errorf("wire %d = %s, want %s", tt.wire, got, tt.want)
		}
	}
	for _, s := range []BusState{StateStopped, StateRunning, StateBusOff} {
		if BusStateFromWire(s.Wire()) != s {
			t.Errorf("%s does not survive the wire", s)
		}
	}
}

func TestBusStatusDelta(t *testing.T) {
	tests := []struct {
		name           string
		prev, cur      BusStatus
		wantTx, wantRx uint32
	}{
		{"unchanged", BusStatus{TxErrors: 5, RxErrors: 5}, BusStatus{TxErrors: 5, RxErrors: 5}, 0, 0},
		{"grew", BusStatus{}, BusStatus{TxErrors: 150, RxErrors: 3}, 150, 3},
		{"reset", BusStatus{TxErrors: 200, RxErrors: 90}, BusStatus{TxErrors: 10, RxErrors: 95}, 10, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, rx := tt.cur.Delta(tt.prev)
			if tx != tt.wantTx || rx != tt.wantRx {
				t.Errorf("delta = %d/%d, want %d/%d", tx, rx, tt.wantTx, tt.wantRx)
			}
		})
	}
}

func TestIsBusOff(t *testing.T) {
	if (BusStatus{State: StateRunning}).IsBusOff() {
		t.Error("running bus reported bus-off")
	}
	if !(BusStatus{State: StateBusOff}).IsBusOff() || !(BusStatus{State: StateRunning, BusOff: true}).IsBusOff() {
		t.Error("bus-off not detected")
	}
}
