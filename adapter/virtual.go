package adapter

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/roffe/candiag"
)

func init() {
	if err := candiag.RegisterTransport(&candiag.TransportInfo{
		Name:        "virtual",
		Description: "in-memory bus simulator",
		New:         NewVirtual,
	}); err != nil {
		panic(err)
	}
}

var errInjected = errors.New("injected failure")

// Responder produces the frames a simulated node sends back for req.
type Responder func(req *candiag.CANFrame) []*candiag.CANFrame

// Virtual simulates a node and its bus in memory. A receive always lasts the
// full window, like the real console.
type Virtual struct {
	BaseAdapter

	mu         sync.Mutex
	opened     bool
	responders map[uint8]Responder
	traffic    []*candiag.CANFrame
	pending    []*candiag.CANFrame
	statuses   []candiag.BusStatus
	statusPos  int
	failures   map[string][]error
	sent       []*candiag.CANFrame
	reinits    [][2]int
	calls      map[string]int

	// when set, frames only arrive while the controller runs on these pins
	wired *[2]int
	pins  [2]int
}

func NewVirtual(cfg *candiag.TransportConfig) (candiag.Transport, error) {
	return newVirtual(cfg), nil
}

func newVirtual(cfg *candiag.TransportConfig) *Virtual {
	return &Virtual{
		BaseAdapter: NewBaseAdapter("virtual", cfg),
		responders:  make(map[uint8]Responder),
		failures:    make(map[string][]error),
		calls:       make(map[string]int),
	}
}

// NewSimulator returns a ready to configure virtual transport.
func NewSimulator() *Virtual {
	return newVirtual(&candiag.TransportConfig{})
}

// Respond installs r as the node at address.
func (v *Virtual) Respond(address uint8, r Responder) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.responders[address] = r
}

// Echo installs a node at address that answers every request with one frame
// built from pgn and data, sourced from address.
func (v *Virtual) Echo(address uint8, pgn uint32, data []byte) error {
	reply, err := candiag.Encode(6, pgn, address, candiag.BroadcastAddress, data, candiag.ForceBroadcast())
	if err != nil {
		return err
	}
	v.Respond(address, func(*candiag.CANFrame) []*candiag.CANFrame {
		return []*candiag.CANFrame{reply}
	})
	return nil
}

// AddTraffic adds frames that show up in every receive window.
func (v *Virtual) AddTraffic(frames ...*candiag.CANFrame) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.traffic = append(v.traffic, frames...)
}

// WirePins makes the bus reachable only after a Reinit with txPin and rxPin.
// Until then every receive window stays empty.
func (v *Virtual) WirePins(txPin, rxPin int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.wired = &[2]int{txPin, rxPin}
}

// ScriptStatus sets the snapshots returned by successive Status calls. The
// last one repeats.
func (v *Virtual) ScriptStatus(snapshots ...candiag.BusStatus) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.statuses = append([]candiag.BusStatus(nil), snapshots...)
	v.statusPos = 0
}

// FailNext makes the next n calls of op ("send", "receive", "status",
// "reinit") fail with err, or with a generic error when err is nil.
func (v *Virtual) FailNext(op string, n int, err error) {
	if err == nil {
		err = errInjected
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	op = strings.ToLower(op)
	for i := 0; i < n; i++ {
		v.failures[op] = append(v.failures[op], err)
	}
}

// Sent returns every frame accepted by Send.
func (v *Virtual) Sent() []*candiag.CANFrame {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]*candiag.CANFrame(nil), v.sent...)
}

// Reinits returns the tx/rx pins of every successful Reinit.
func (v *Virtual) Reinits() [][2]int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([][2]int(nil), v.reinits...)
}

// Calls counts invocations of op, failed ones included.
func (v *Virtual) Calls(op string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls[op]
}

func (v *Virtual) Open(ctx context.Context) error {
	if err := v.checkOpen("open"); err != nil {
		return err
	}
	v.mu.Lock()
	v.opened = true
	v.mu.Unlock()
	v.debugf("virtual bus up")
	return nil
}

func (v *Virtual) Close() error {
	v.mu.Lock()
	v.opened = false
	v.mu.Unlock()
	return v.BaseAdapter.Close()
}

// enter counts the call and pops an injected failure. Must hold v.mu.
func (v *Virtual) enter(op string) error {
	v.calls[op]++
	if v.closed() || !v.opened {
		return v.errorf(op, candiag.Unrecoverable(candiag.ErrTransportNotReady))
	}
	if q := v.failures[op]; len(q) > 0 {
		err := q[0]
		v.failures[op] = q[1:]
		return v.errorf(op, err)
	}
	return nil
}

func (v *Virtual) Send(ctx context.Context, frame *candiag.CANFrame) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enter("send"); err != nil {
		return err
	}
	v.sent = append(v.sent, frame)
	v.debugf("send %s", frame)

	if frame.IsBroadcast() {
		addrs := make([]int, 0, len(v.responders))
		for a := range v.responders {
			addrs = append(addrs, int(a))
		}
		sort.Ints(addrs)
		for _, a := range addrs {
			v.pending = append(v.pending, v.responders[uint8(a)](frame)...)
		}
		return nil
	}
	if r, ok := v.responders[frame.Destination]; ok {
		v.pending = append(v.pending, r(frame)...)
	}
	return nil
}

func (v *Virtual) Receive(ctx context.Context, timeout time.Duration) ([]*candiag.CANFrame, error) {
	v.mu.Lock()
	err := v.enter("receive")
	v.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		return []*candiag.CANFrame{}, nil
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.wired != nil && v.pins != *v.wired {
		v.pending = nil
		return []*candiag.CANFrame{}, nil
	}
	out := make([]*candiag.CANFrame, 0, len(v.pending)+len(v.traffic))
	for _, f := range v.pending {
		if f != nil {
			out = append(out, f)
		}
	}
	v.pending = nil
	for _, f := range v.traffic {
		out = append(out, f.WithTimestamp(0))
	}
	return out, nil
}

func (v *Virtual) Status(ctx context.Context) (candiag.BusStatus, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enter("status"); err != nil {
		return candiag.BusStatus{}, err
	}
	if len(v.statuses) == 0 {
		return candiag.BusStatus{State: candiag.StateRunning, Ready: true}, nil
	}
	st := v.statuses[v.statusPos]
	if v.statusPos < len(v.statuses)-1 {
		v.statusPos++
	}
	return st, nil
}

func (v *Virtual) Reinit(ctx context.Context, txPin, rxPin int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.enter("reinit"); err != nil {
		return err
	}
	v.reinits = append(v.reinits, [2]int{txPin, rxPin})
	v.pins = [2]int{txPin, rxPin}
	v.pending = nil
	v.debugf("reinit tx %d rx %d", txPin, rxPin)
	return nil
}
