package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roffe/candiag"
)

func TestVirtualRegistered(t *testing.T) {
	names := candiag.ListTransportNames()
	want := []string{"http", "serial", "virtual"}
	if len(names) != len(want) {
		t.Fatalf("registered %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("got %v, want %v", names, want)
		}
	}
	tr, err := candiag.NewTransport("VIRTUAL", &candiag.TransportConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if tr.Name() != "virtual" {
		t.Errorf("name = %s", tr.Name())
	}
	if _, err := candiag.NewTransport("pcan", &candiag.TransportConfig{}); !errors.Is(err, candiag.ErrUnknownTransport) {
		t.Errorf("expected ErrUnknownTransport, got %v", err)
	}
}

func TestVirtualRespond(t *testing.T) {
	v := NewSimulator()
	if err := v.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer v.Close()
	if err := v.Echo(5, 0xFF42, []byte{1}); err != nil {
		t.Fatal(err)
	}

	poll, _ := candiag.Encode(6, 0xEF00, 0x63, 5, nil)
	if err := v.Send(context.Background(), poll); err != nil {
		t.Fatal(err)
	}
	frames, err := v.Receive(context.Background(), time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 || frames[0].Source != 5 || frames[0].PGN != 0xFF42 {
		t.Fatalf("frames = %v", frames)
	}

	other, _ := candiag.Encode(6, 0xEF00, 0x63, 6, nil)
	v.Send(context.Background(), other)
	frames, _ = v.Receive(context.Background(), time.Millisecond)
	if len(frames) != 0 {
		t.Errorf("address 6 should be silent, got %v", frames)
	}
	if len(v.Sent()) != 2 {
		t.Errorf("sent = %d", len(v.Sent()))
	}
}

func TestVirtualBroadcast(t *testing.T) {
	v := NewSimulator()
	v.Open(context.Background())
	v.Echo(9, 0xFF42, nil)
	v.Echo(2, 0xFF42, nil)
	poll, _ := candiag.Encode(6, 0xFF41, 0x63, candiag.BroadcastAddress, nil)
	v.Send(context.Background(), poll)
	frames, _ := v.Receive(context.Background(), time.Millisecond)
	if len(frames) != 2 || frames[0].Source != 2 || frames[1].Source != 9 {
		t.Fatalf("frames = %v", frames)
	}
}

func TestVirtualTraffic(t *testing.T) {
	v := NewSimulator()
	v.Open(context.Background())
	v.AddTraffic(candiag.Decode(0x0CF00400, []byte{1, 2}))
	for i := 0; i < 2; i++ {
		frames, err := v.Receive(context.Background(), time.Millisecond)
		if err != nil {
			t.Fatal(err)
		}
		if len(frames) != 1 || frames[0].Identifier != 0x0CF00400 {
			t.Fatalf("window %d: %v", i, frames)
		}
	}
}

func TestVirtualScriptStatus(t *testing.T) {
	v := NewSimulator()
	v.Open(context.Background())
	v.ScriptStatus(
		candiag.BusStatus{State: candiag.StateRunning, TxErrors: 0},
		candiag.BusStatus{State: candiag.StateRunning, TxErrors: 150},
	)
	want := []uint32{0, 150, 150}
	for i, w := range want {
		st, err := v.Status(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if st.TxErrors != w {
			t.Errorf("call %d: tx %d, want %d", i, st.TxErrors, w)
		}
	}
}

func TestVirtualFailNext(t *testing.T) {
	v := NewSimulator()
	v.Open(context.Background())
	v.FailNext("status", 2, nil)
	for i := 0; i < 2; i++ {
		if _, err := v.Status(context.Background()); !candiag.IsTransportError(err) {
			t.Fatalf("call %d: expected transport error, got %v", i, err)
		}
	}
	if _, err := v.Status(context.Background()); err != nil {
		t.Fatal(err)
	}
	if v.Calls("status") != 3 {
		t.Errorf("calls = %d", v.Calls("status"))
	}
}

func TestVirtualNotOpen(t *testing.T) {
	v := NewSimulator()
	if _, err := v.Receive(context.Background(), 0); !errors.Is(err, candiag.ErrTransportNotReady) {
		t.Fatalf("expected not ready, got %v", err)
	}
}

func TestVirtualReceiveCancelled(t *testing.T) {
	v := NewSimulator()
	v.Open(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, err := v.Receive(ctx, time.Minute); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("receive did not honour the context")
	}
}

func TestVirtualReinit(t *testing.T) {
	v := NewSimulator()
	v.Open(context.Background())
	if err := v.Reinit(context.Background(), 19, 20); err != nil {
		t.Fatal(err)
	}
	if r := v.Reinits(); len(r) != 1 || r[0] != [2]int{19, 20} {
		t.Errorf("reinits = %v", r)
	}
}

func TestVirtualWirePins(t *testing.T) {
	v := NewSimulator()
	v.Open(context.Background())
	v.AddTraffic(candiag.Decode(0x0CF00400, []byte{1}))
	v.WirePins(21, 22)

	frames, _ := v.Receive(context.Background(), time.Millisecond)
	if len(frames) != 0 {
		t.Errorf("frames before reinit = %v", frames)
	}
	v.Reinit(context.Background(), 22, 21)
	frames, _ = v.Receive(context.Background(), time.Millisecond)
	if len(frames) != 0 {
		t.Errorf("frames on swapped pins = %v", frames)
	}
	v.Reinit(context.Background(), 21, 22)
	frames, _ = v.Receive(context.Background(), time.Millisecond)
	if len(frames) != 1 {
		t.Errorf("frames on wired pins = %v", frames)
	}
}
