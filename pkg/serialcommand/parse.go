package serialcommand

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roffe/candiag"
)

// ParseFrameLine picks a frame out of one line of monitor output. The
// identifier is the value of an "ID" field or else the first token of eight
// hex digits, the data is the run of two digit hex tokens after it.
func ParseFrameLine(line string) (id uint32, data []byte, ok bool) {
	tokens := strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ',' || r == '|' || r == '\r'
	})

	idx := -1
	for i, tok := range tokens {
		key, val, found := cutField(tok)
		if !found || !strings.EqualFold(key, "id") {
			continue
		}
		if val == "" && i+1 < len(tokens) {
			val = tokens[i+1]
			i++
		}
		if v, good := parseID(val); good {
			id, idx = v, i
			break
		}
	}
	if idx < 0 {
		for i, tok := range tokens {
			if v, good := parseID(tok); good {
				id, idx = v, i
				break
			}
		}
	}
	if idx < 0 {
		return 0, nil, false
	}

	skip := false
	for _, tok := range tokens[idx+1:] {
		if len(data) == 8 {
			break
		}
		if skip {
			skip = false
			continue
		}
		key, val, found := cutField(tok)
		if found {
			isData := strings.EqualFold(key, "data")
			if val == "" {
				// "DLC: 8" style, the next token is the value
				skip = !isData
				continue
			}
			if !isData {
				continue
			}
			tok = val
		}
		if len(tok) != 2 {
			continue
		}
		b, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			continue
		}
		data = append(data, byte(b))
	}
	return id, data, true
}

func cutField(tok string) (key, val string, found bool) {
	if i := strings.IndexAny(tok, ":="); i >= 0 {
		return tok[:i], tok[i+1:], true
	}
	return tok, "", false
}

func parseID(tok string) (uint32, bool) {
	tok = strings.TrimSuffix(tok, ":")
	tok = strings.TrimPrefix(strings.TrimPrefix(tok, "0x"), "0X")
	if len(tok) != 8 {
		return 0, false
	}
	v, err := strconv.ParseUint(tok, 16, 32)
	if err != nil || v > candiag.MaxIdentifier {
		return 0, false
	}
	return uint32(v), true
}

// ParseStatus reads "key: value" lines of the canstatus response.
func ParseStatus(lines []string) (candiag.BusStatus, error) {
	var st candiag.BusStatus
	known := 0
	for _, line := range lines {
		line = stripTags(line)
		key, val, found := cutField(line)
		if !found {
			continue
		}
		val = strings.TrimSpace(val)
		switch normalizeKey(key) {
		case "state", "busstate":
			s, err := parseState(val)
			if err != nil {
				return st, err
			}
			st.State = s
		case "ready", "initialized":
			st.Ready = parseBool(val)
		case "busoff":
			st.BusOff = parseBool(val)
		case "txerrors", "txerrorcounter", "txerr":
			n, err := parseCounter(key, val)
			if err != nil {
				return st, err
			}
			st.TxErrors = n
		case "rxerrors", "rxerrorcounter", "rxerr":
			n, err := parseCounter(key, val)
			if err != nil {
				return st, err
			}
			st.RxErrors = n
		case "txqueue", "msgstotx":
			n, err := parseCounter(key, val)
			if err != nil {
				return st, err
			}
			st.TxQueue = n
		case "rxqueue", "msgstorx":
			n, err := parseCounter(key, val)
			if err != nil {
				return st, err
			}
			st.RxQueue = n
		default:
			continue
		}
		known++
	}
	if known == 0 {
		return st, fmt.Errorf("no status fields in response")
	}
	if st.State == candiag.StateBusOff {
		st.BusOff = true
	}
	return st, nil
}

// stripTags removes "[CanManager]" style prefixes.
func stripTags(line string) string {
	line = strings.TrimSpace(line)
	for strings.HasPrefix(line, "[") {
		i := strings.Index(line, "]")
		if i < 0 {
			break
		}
		line = strings.TrimSpace(line[i+1:])
	}
	return line
}

func normalizeKey(key string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(key) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func parseState(val string) (candiag.BusState, error) {
	if n, err := strconv.Atoi(firstField(val)); err == nil {
		return candiag.BusStateFromWire(n), nil
	}
	switch normalizeKey(firstField(val)) {
	case "stopped":
		return candiag.StateStopped, nil
	case "running":
		return candiag.StateRunning, nil
	case "busoff", "recovering":
		return candiag.StateBusOff, nil
	}
	return candiag.StateStopped, fmt.Errorf("unknown bus state %q", val)
}

func parseBool(val string) bool {
	switch strings.ToLower(firstField(val)) {
	case "1", "yes", "true", "on", "y":
		return true
	}
	return false
}

func parseCounter(key, val string) (uint32, error) {
	n, err := strconv.ParseUint(firstField(val), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad %s value %q", strings.TrimSpace(key), val)
	}
	return uint32(n), nil
}

func firstField(val string) string {
	f := strings.Fields(val)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}
