package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/roffe/candiag"
)

func init() {
	if err := candiag.RegisterTransport(&candiag.TransportInfo{
		Name:        "http",
		Description: "node REST API (/api/can/*)",
		New:         NewHTTP,
	}); err != nil {
		panic(err)
	}
}

const defaultRequestTimeout = 3 * time.Second

// HTTP talks to the node's REST API. Received frames are polled, the node
// buffers them between calls.
type HTTP struct {
	BaseAdapter
	base   *url.URL
	client *http.Client
	slack  time.Duration
}

func NewHTTP(cfg *candiag.TransportConfig) (candiag.Transport, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("http transport requires a base url")
	}
	raw := cfg.BaseURL
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	slack := cfg.RequestTimeout
	if slack <= 0 {
		slack = defaultRequestTimeout
	}
	return &HTTP{
		BaseAdapter: NewBaseAdapter("http", cfg),
		base:        u,
		client:      &http.Client{},
		slack:       slack,
	}, nil
}

func (h *HTTP) Open(ctx context.Context) error {
	if _, err := h.Status(ctx); err != nil {
		return err
	}
	h.debugf("connected to %s", h.base)
	return nil
}

type sendRequest struct {
	PGN         uint32 `json:"pgn"`
	Priority    uint8  `json:"priority"`
	Source      uint8  `json:"source"`
	Destination uint8  `json:"destination"`
	Data        []int  `json:"data"`
}

type ackResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type reinitRequest struct {
	TxPin int `json:"tx_pin"`
	RxPin int `json:"rx_pin"`
}

type receiveResponse struct {
	Count    int              `json:"count"`
	Messages []receiveMessage `json:"messages"`
}

type receiveMessage struct {
	ID        json.RawMessage `json:"id"`
	Data      []int           `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type statusResponse struct {
	Ready    bool            `json:"ready"`
	State    json.RawMessage `json:"state"`
	TxErrors uint32          `json:"tx_errors"`
	RxErrors uint32          `json:"rx_errors"`
	TxQueue  uint32          `json:"tx_queue"`
	RxQueue  uint32          `json:"rx_queue"`
	BusOff   bool            `json:"bus_off"`
}

func (h *HTTP) Send(ctx context.Context, frame *candiag.CANFrame) error {
	if err := h.checkOpen("send"); err != nil {
		return err
	}
	req := sendRequest{
		PGN:         frame.PGN,
		Priority:    frame.Priority,
		Source:      frame.Source,
		Destination: frame.Destination,
		Data:        make([]int, len(frame.Data)),
	}
	for i, b := range frame.Data {
		req.Data[i] = int(b)
	}
	var ack ackResponse
	if err := h.do(ctx, "send", http.MethodPost, "/api/can/send", nil, req, &ack, h.slack); err != nil {
		return err
	}
	return h.acked("send", ack)
}

func (h *HTTP) Receive(ctx context.Context, timeout time.Duration) ([]*candiag.CANFrame, error) {
	if err := h.checkOpen("receive"); err != nil {
		return nil, err
	}
	if timeout < 0 {
		timeout = 0
	}
	q := url.Values{}
	q.Set("timeout", strconv.FormatInt(timeout.Milliseconds(), 10))
	var resp receiveResponse
	if err := h.do(ctx, "receive", http.MethodGet, "/api/can/receive", q, nil, &resp, timeout+h.slack); err != nil {
		return nil, err
	}
	frames := make([]*candiag.CANFrame, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		f, err := m.frame()
		if err != nil {
			return nil, h.errorf("receive", err)
		}
		frames = append(frames, f)
	}
	sort.SliceStable(frames, func(i, j int) bool {
		return frames[i].Timestamp < frames[j].Timestamp
	})
	h.debugf("received %d frame(s)", len(frames))
	return frames, nil
}

func (h *HTTP) Status(ctx context.Context) (candiag.BusStatus, error) {
	if err := h.checkOpen("status"); err != nil {
		return candiag.BusStatus{}, err
	}
	var resp statusResponse
	if err := h.do(ctx, "status", http.MethodGet, "/api/can/status", nil, nil, &resp, h.slack); err != nil {
		return candiag.BusStatus{}, err
	}
	state, err := parseWireState(resp.State)
	if err != nil {
		return candiag.BusStatus{}, h.errorf("status", err)
	}
	return candiag.BusStatus{
		State:    state,
		Ready:    resp.Ready,
		BusOff:   resp.BusOff,
		TxErrors: resp.TxErrors,
		RxErrors: resp.RxErrors,
		TxQueue:  resp.TxQueue,
		RxQueue:  resp.RxQueue,
	}, nil
}

func (h *HTTP) Reinit(ctx context.Context, txPin, rxPin int) error {
	if err := h.checkOpen("reinit"); err != nil {
		return err
	}
	var ack ackResponse
	if err := h.do(ctx, "reinit", http.MethodPost, "/api/can/reinit", nil, reinitRequest{TxPin: txPin, RxPin: rxPin}, &ack, h.slack); err != nil {
		return err
	}
	return h.acked("reinit", ack)
}

func (h *HTTP) acked(op string, ack ackResponse) error {
	if ack.Success {
		return nil
	}
	if ack.Error != "" {
		return h.errorf(op, fmt.Errorf("%w: %s", candiag.ErrNotAcknowledged, ack.Error))
	}
	return h.errorf(op, candiag.ErrNotAcknowledged)
}

func (h *HTTP) do(ctx context.Context, op, method, path string, query url.Values, body, out interface{}, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u := *h.base
	u.Path += path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return h.errorf(op, candiag.Unrecoverable(err))
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return h.errorf(op, candiag.Unrecoverable(err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	h.debugf("%s %s", method, u.String())
	resp, err := h.client.Do(req)
	if err != nil {
		return h.errorf(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return h.errorf(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return h.errorf(op, fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(data))))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return h.errorf(op, fmt.Errorf("malformed response: %w", err))
	}
	return nil
}

func (m receiveMessage) frame() (*candiag.CANFrame, error) {
	id, err := parseWireID(m.ID)
	if err != nil {
		return nil, err
	}
	if len(m.Data) > candiag.MaxDataLength {
		return nil, fmt.Errorf("message %08X carries %d data bytes", id, len(m.Data))
	}
	data := make([]byte, len(m.Data))
	for i, v := range m.Data {
		if v < 0 || v > 0xFF {
			return nil, fmt.Errorf("message %08X data byte %d out of range: %d", id, i, v)
		}
		data[i] = byte(v)
	}
	f := candiag.Decode(id, data)
	f.Timestamp = m.Timestamp
	return f, nil
}

// parseWireID accepts the id as a hex string, with or without 0x, or as a
// plain JSON number.
func parseWireID(raw json.RawMessage) (uint32, error) {
	if len(raw) == 0 {
		return 0, errors.New("message without id")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
		v, err := strconv.ParseUint(s, 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid message id %q", s)
		}
		return uint32(v), nil
	}
	var n uint32
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("invalid message id %s", string(raw))
	}
	return n, nil
}

func parseWireState(raw json.RawMessage) (candiag.BusState, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return candiag.StateStopped, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return candiag.BusStateFromWire(n), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return candiag.StateStopped, fmt.Errorf("invalid state %s", string(raw))
	}
	switch strings.ToLower(strings.ReplaceAll(s, "_", "")) {
	case "stopped":
		return candiag.StateStopped, nil
	case "running":
		return candiag.StateRunning, nil
	case "busoff", "recovering":
		return candiag.StateBusOff, nil
	}
	return candiag.StateStopped, fmt.Errorf("invalid state %q", s)
}
