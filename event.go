package candiag

import (
	"fmt"
	"time"
)

type EventType int

func (et EventType) String() string {
	switch et {
	case EventTypeError:
		return "ERROR"
	case EventTypeWarning:
		return "WARN"
	case EventTypeInfo:
		return "INFO"
	case EventTypeDebug:
		return "DEBUG"
	case EventTypeState:
		return "STATE"
	case EventTypeProgress:
		return "PROGRESS"
	default:
		return "UNKNOWN"
	}
}

const (
	EventTypeError EventType = iota
	EventTypeWarning
	EventTypeInfo
	EventTypeDebug
	// State transitions of a diagnostic session
	EventTypeState
	// One address of a scan finished
	EventTypeProgress
)

type Event struct {
	Time    time.Time
	Type    EventType
	Address int // scanned address for progress events, -1 otherwise
	Details string
}

func (e Event) String() string {
	if e.Address >= 0 {
		return fmt.Sprintf("[%s] %02X %s", e.Type.String(), e.Address, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Type.String(), e.Details)
}

type EventHandler func(Event)
