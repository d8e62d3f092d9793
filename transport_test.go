package candiag

import (
	"context"
	"errors"
	"testing"
	"time"
)

type nopTransport struct{ name string }

func (n *nopTransport) Name() string                          { return n.name }
func (n *nopTransport) Open(context.Context) error            { return nil }
func (n *nopTransport) Close() error                          { return nil }
func (n *nopTransport) Send(context.Context, *CANFrame) error { return nil }
func (n *nopTransport) Receive(context.Context, time.Duration) ([]*CANFrame, error) {
	return nil, nil
}
func (n *nopTransport) Status(context.Context) (BusStatus, error) { return BusStatus{}, nil }
func (n *nopTransport) Reinit(context.Context, int, int) error    { return nil }

func TestTransportRegistry(t *testing.T) {
	info := &TransportInfo{
		Name:        "Loopback-Test",
		Description: "test",
		New: func(cfg *TransportConfig) (Transport, error) {
			if cfg.OnMessage == nil {
				return nil, errors.New("OnMessage not defaulted")
			}
			return &nopTransport{name: "loopback-test"}, nil
		},
	}
	if err := RegisterTransport(info); err != nil {
		t.Fatal(err)
	}
	if err := RegisterTransport(info); err == nil {
		t.Error("duplicate registration accepted")
	}

	tr, err := NewTransport("loopback-TEST", &TransportConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if tr.Name() != "loopback-test" {
		t.Errorf("name = %s", tr.Name())
	}

	var found bool
	for _, n := range ListTransportNames() {
		if n == "Loopback-Test" {
			found = true
		}
	}
	if !found {
		t.Errorf("names = %v", ListTransportNames())
	}

	if _, err := NewTransport("nope", &TransportConfig{}); !errors.Is(err, ErrUnknownTransport) {
		t.Errorf("expected ErrUnknownTransport, got %v", err)
	}
}

func TestErrors(t *testing.T) {
	base := errors.New("connection refused")
	te := &TransportError{Op: "status", Transport: "http", Err: base}
	if !errors.Is(te, base) || !IsTransportError(te) || !IsRecoverable(te) {
		t.Error("transport error does not unwrap")
	}
	if te.Error() != "http status: connection refused" {
		t.Errorf("message = %q", te.Error())
	}
	un := &TransportError{Op: "reinit", Transport: "serial", Err: Unrecoverable(ErrUnsupported)}
	if IsRecoverable(un) || !errors.Is(un, ErrUnsupported) {
		t.Error("unrecoverable error lost")
	}
	pf := &ProtocolFault{Reason: "bus off", Err: un}
	if !errors.Is(pf, ErrUnsupported) {
		t.Error("protocol fault does not unwrap")
	}
}
