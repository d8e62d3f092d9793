package candiag

import "fmt"

type BusState int

const (
	StateStopped BusState = iota
	StateRunning
	StateBusOff
)

func (s BusState) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateRunning:
		return "RUNNING"
	case StateBusOff:
		return "BUS_OFF"
	default:
		return "UNKNOWN"
	}
}

// BusStateFromWire maps the controller state number reported by the node.
// The controller's own "recovering" state (3) is still unusable and is
// reported as StateBusOff.
func BusStateFromWire(v int) BusState {
	switch v {
	case 1:
		return StateRunning
	case 2, 3:
		return StateBusOff
	default:
		return StateStopped
	}
}

// Wire returns the number used for s on the node's status endpoint.
func (s BusState) Wire() int {
	return int(s)
}

// BusStatus is one snapshot of the CAN controller. Error counters only grow
// until the controller is reinitialized.
type BusStatus struct {
	State    BusState
	Ready    bool
	BusOff   bool
	TxErrors uint32
	RxErrors uint32
	TxQueue  uint32
	RxQueue  uint32
}

// IsBusOff reports whether the node flagged bus-off either way.
func (s BusStatus) IsBusOff() bool {
	return s.State == StateBusOff || s.BusOff
}

// Delta returns how much the error counters grew since prev. A counter lower
// than in prev means the controller was reinitialized in between, the current
// value is then the growth.
func (s BusStatus) Delta(prev BusStatus) (tx, rx uint32) {
	return counterDelta(prev.TxErrors, s.TxErrors), counterDelta(prev.RxErrors, s.RxErrors)
}

func counterDelta(prev, cur uint32) uint32 {
	if cur < prev {
		return cur
	}
	return cur - prev
}

func (s BusStatus) String() string {
	return fmt.Sprintf("state: %s ready: %v bus-off: %v tx errors: %d rx errors: %d tx queue: %d rx queue: %d",
		s.State, s.Ready, s.BusOff, s.TxErrors, s.RxErrors, s.TxQueue, s.RxQueue)
}
