package candiag

const (
	MaxPriority   = 7
	MaxPGN        = 0x3FFFF
	MaxIdentifier = 0x1FFFFFFF
	MaxDataLength = 8

	// BroadcastAddress is the J1939 global destination.
	BroadcastAddress = 0xFF

	pdu2Threshold = 240
)

type encodeOptions struct {
	forceBroadcast bool
}

type EncodeOption func(*encodeOptions)

// ForceBroadcast makes Encode coerce the destination of a PDU2 frame to the
// global address instead of rejecting it.
func ForceBroadcast() EncodeOption {
	return func(o *encodeOptions) {
		o.forceBroadcast = true
	}
}

// Encode builds a frame from its J1939 fields.
//
// For PDU1 groups (PF < 240) the destination is carried in PS and the low byte
// of pgn is dropped from the stored PGN. For PDU2 groups (PF >= 240) PS is the
// group extension and the destination must be BroadcastAddress.
func Encode(priority uint8, pgn uint32, source, destination uint8, data []byte, opts ...EncodeOption) (*CANFrame, error) {
	var o encodeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if len(data) > MaxDataLength {
		return nil, &InvalidFrameError{Field: "data", Value: uint32(len(data)), Reason: "payload longer than 8 bytes"}
	}
	if isPDU2(pgn) && destination != BroadcastAddress && o.forceBroadcast {
		destination = BroadcastAddress
	}
	id, err := Identifier(priority, pgn, source, destination)
	if err != nil {
		return nil, err
	}
	return Decode(id, data), nil
}

// Identifier returns the 29-bit extended identifier for the given fields.
func Identifier(priority uint8, pgn uint32, source, destination uint8) (uint32, error) {
	if priority > MaxPriority {
		return 0, &InvalidFrameError{Field: "priority", Value: uint32(priority), Reason: "priority above 7"}
	}
	if pgn > MaxPGN {
		return 0, &InvalidFrameError{Field: "pgn", Value: pgn, Reason: "pgn outside 18-bit range"}
	}
	pf := (pgn >> 8) & 0xFF
	ps := pgn & 0xFF
	if pf < pdu2Threshold {
		ps = uint32(destination)
	} else if destination != BroadcastAddress {
		return 0, &InvalidFrameError{Field: "destination", Value: uint32(destination), Reason: "PDU2 group requires broadcast destination"}
	}
	// bit 25 is only set by pgns with bit 17 set, which no standard group uses
	page := (pgn >> 16) & 0x3
	return uint32(priority)<<26 |
		page<<24 |
		pf<<16 |
		ps<<8 |
		uint32(source), nil
}

// Decode interprets any 29-bit identifier. It never fails: bits above 28 are
// ignored and PDU2 frames report the broadcast destination.
func Decode(identifier uint32, data []byte) *CANFrame {
	id := identifier & MaxIdentifier
	page := (id >> 24) & 0x3
	pf := (id >> 16) & 0xFF
	ps := (id >> 8) & 0xFF

	f := &CANFrame{
		Identifier: id,
		Priority:   uint8((id >> 26) & MaxPriority),
		PGN:        page<<16 | pf<<8,
		Source:     uint8(id),
		Data:       append([]byte(nil), data...),
	}
	if pf < pdu2Threshold {
		f.Destination = uint8(ps)
	} else {
		f.PGN |= ps
		f.Destination = BroadcastAddress
	}
	return f
}

func isPDU2(pgn uint32) bool {
	return (pgn>>8)&0xFF >= pdu2Threshold
}
