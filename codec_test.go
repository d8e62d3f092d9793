package candiag

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeScenarios(t *testing.T) {
	tests := []struct {
		name     string
		priority uint8
		pgn      uint32
		source   uint8
		dest     uint8
		opts     []EncodeOption
		want     uint32
		wantDest uint8
	}{
		{"pdu2 forced broadcast", 6, 0xFF41, 0x63, 0x01, []EncodeOption{ForceBroadcast()}, 0x18FF4163, 0xFF},
		{"pdu1 peer to peer", 3, 0xEA00, 0xF9, 0x05, nil, 0x0CEA05F9, 0x05},
		{"pdu1 low byte dropped", 3, 0xEA42, 0xF9, 0x05, nil, 0x0CEA05F9, 0x05},
		{"pdu2 broadcast", 6, 0xFEF1, 0x00, 0xFF, nil, 0x18FEF100, 0xFF},
		{"pf 239", 7, 0xEF00, 0x10, 0x20, nil, 0x1CEF2010, 0x20},
		{"pf 240", 7, 0xF004, 0x10, 0xFF, nil, 0x1CF00410, 0xFF},
		{"data page", 0, 0x1FEF1, 0x01, 0xFF, nil, 0x01FEF101, 0xFF},
		{"extended data page", 0, 0x2EF00, 0x01, 0x02, nil, 0x02EF0201, 0x02},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Encode(tt.priority, tt.pgn, tt.source, tt.dest, []byte{1, 2}, tt.opts...)
			if err != nil {
				t.Fatal(err)
			}
			if f.Identifier != tt.want {
				t.Errorf("identifier = %08X, want %08X", f.Identifier, tt.want)
			}
			if f.Destination != tt.wantDest {
				t.Errorf("destination = %02X, want %02X", f.Destination, tt.wantDest)
			}
			if f.Priority != tt.priority || f.Source != tt.source {
				t.Errorf("frame = %+v", f)
			}
		})
	}
}

func TestEncodeRejects(t *testing.T) {
	tests := []struct {
		name     string
		priority uint8
		pgn      uint32
		dest     uint8
		data     []byte
		field    string
	}{
		{"priority", 8, 0xEA00, 1, nil, "priority"},
		{"pgn", 6, 0x40000, 1, nil, "pgn"},
		{"data", 6, 0xEA00, 1, make([]byte, 9), "data"},
		{"pdu2 destination", 6, 0xFF41, 1, nil, "destination"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.priority, tt.pgn, 0x63, tt.dest, tt.data)
			if !errors.Is(err, ErrInvalidFrame) {
				t.Fatalf("expected ErrInvalidFrame, got %v", err)
			}
			var ife *InvalidFrameError
			if !errors.As(err, &ife) || ife.Field != tt.field {
				t.Errorf("field = %v, want %s", err, tt.field)
			}
		})
	}
}

func TestEncodeCopiesData(t *testing.T) {
	data := []byte{1, 2, 3}
	f, err := Encode(6, 0xEA00, 1, 2, data)
	if err != nil {
		t.Fatal(err)
	}
	data[0] = 9
	if f.Data[0] != 1 {
		t.Error("frame shares caller's payload")
	}
	g := f.WithTimestamp(42)
	g.Data[1] = 9
	if f.Data[1] != 2 || f.Timestamp != 0 || g.Timestamp != 42 {
		t.Error("WithTimestamp did not copy")
	}
}

func TestPDUBoundary(t *testing.T) {
	for pf := uint32(0); pf <= 0xFF; pf++ {
		f := Decode(6<<26|pf<<16|0x41<<8|0x63, nil)
		if pf < 240 {
			if !f.IsPDU1() || f.Destination != 0x41 || f.PGN != pf<<8 {
				t.Errorf("pf %d: %+v", pf, f)
			}
		} else {
			if f.IsPDU1() || !f.IsBroadcast() || f.PGN != pf<<8|0x41 {
				t.Errorf("pf %d: %+v", pf, f)
			}
		}
	}
}

func TestRoundTrip(t *testing.T) {
	pgns := []uint32{0x0000, 0xEA00, 0xEF00, 0xF004, 0xFEF1, 0xFF41, 0x1EA00, 0x1FFFF, 0x2F000, 0x3FFFF}
	addrs := []uint8{0x00, 0x05, 0x63, 0xFE, 0xFF}
	for prio := uint8(0); prio <= MaxPriority; prio++ {
		for _, pgn := range pgns {
			for _, src := range addrs {
				for _, dst := range addrs {
					data := []byte{prio, src, dst}
					f, err := Encode(prio, pgn, src, dst, data, ForceBroadcast())
					if err != nil {
						t.Fatalf("encode %d %05X %02X %02X: %v", prio, pgn, src, dst, err)
					}
					got := Decode(f.Identifier, data)
					wantPGN, wantDst := pgn, dst
					if isPDU2(pgn) {
						wantDst = BroadcastAddress
					} else {
						wantPGN = pgn &^ 0xFF
					}
					if got.Priority != prio || got.PGN != wantPGN || got.Source != src || got.Destination != wantDst || !bytes.Equal(got.Data, data) {
						t.Errorf("round trip %d %05X %02X %02X: got %+v", prio, pgn, src, dst, got)
					}
				}
			}
		}
	}
}

func TestDecodeIdempotent(t *testing.T) {
	ids := []uint32{0, 0x18FF4163, 0x0CEA05F9, 0x1FFFFFFF, 0x03EF0001, 0x1CF00410}
	for id := uint32(0); id <= MaxIdentifier; id += 0x00F1E3D7 {
		ids = append(ids, id)
	}
	for _, id := range ids {
		got, err := Decode(id, nil).Reencode()
		if err != nil {
			t.Fatalf("%08X: %v", id, err)
		}
		if got != id {
			t.Errorf("reencode %08X = %08X", id, got)
		}
	}
}

func TestDecodeMasks(t *testing.T) {
	f := Decode(0xE0000000|0x18FF4163, nil)
	if f.Identifier != 0x18FF4163 {
		t.Errorf("identifier = %08X", f.Identifier)
	}
}

func TestFrameString(t *testing.T) {
	f := Decode(0x18FF4163, []byte{0x11, 0x00})
	want := "       0 || 0x18FF4163 || p6 0FF41 63>FF || 2 || 11 00                  "
	if got := f.String(); got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}
