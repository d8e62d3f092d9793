package diag

type State int

const (
	StateIdle State = iota
	StateScanning
	StateMonitoring
	StateRecovering
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateScanning:
		return "SCANNING"
	case StateMonitoring:
		return "MONITORING"
	case StateRecovering:
		return "RECOVERING"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}
