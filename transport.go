package candiag

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// Transport is the only way the diagnostic core reaches a node. A session owns
// its transport exclusively: Send is never called concurrently, Receive may be.
type Transport interface {
	Name() string
	Open(context.Context) error
	Close() error
	Send(ctx context.Context, frame *CANFrame) error
	// Receive returns the frames that arrived within timeout in arrival order.
	// An empty result is not an error.
	Receive(ctx context.Context, timeout time.Duration) ([]*CANFrame, error)
	Status(ctx context.Context) (BusStatus, error)
	Reinit(ctx context.Context, txPin, rxPin int) error
}

// AddressPoller is implemented by transports that can ask the node to poll an
// address on its own.
type AddressPoller interface {
	Poll(ctx context.Context, address uint8, timeout time.Duration) ([]*CANFrame, error)
}

type TransportInfo struct {
	Name               string
	Description        string
	RequiresSerialPort bool
	New                func(*TransportConfig) (Transport, error)
}

func (t *TransportInfo) String() string {
	return fmt.Sprintf("%s | %s, requires serial port: %v", t.Name, t.Description, t.RequiresSerialPort)
}

type TransportConfig struct {
	Debug        bool
	Port         string
	PortBaudrate int
	// Node address for the HTTP transport, e.g. http://192.168.7.116
	BaseURL string
	// Slack added on top of every HTTP request and serial command timeout
	RequestTimeout time.Duration
	// Silence that ends a serial command response
	QuietPeriod time.Duration
	OnMessage   func(string)
}

var (
	transportMu  sync.RWMutex
	transportMap = make(map[string]*TransportInfo)
)

func NewTransport(name string, cfg *TransportConfig) (Transport, error) {
	if cfg.OnMessage == nil {
		cfg.OnMessage = func(msg string) {
			_, file, no, ok := runtime.Caller(1)
			if ok {
				log.Printf("%s#%d %v", filepath.Base(file), no, msg)
			} else {
				log.Println(msg)
			}
		}
	}
	transportMu.RLock()
	info, found := transportMap[strings.ToLower(name)]
	transportMu.RUnlock()
	if !found {
		return nil, fmt.Errorf("%w %q", ErrUnknownTransport, name)
	}
	return info.New(cfg)
}

func RegisterTransport(info *TransportInfo) error {
	transportMu.Lock()
	defer transportMu.Unlock()
	key := strings.ToLower(info.Name)
	if _, found := transportMap[key]; found {
		return fmt.Errorf("transport %s already registered", info.Name)
	}
	transportMap[key] = info
	return nil
}

func ListTransportNames() []string {
	transportMu.RLock()
	defer transportMu.RUnlock()
	var out []string
	for _, info := range transportMap {
		out = append(out, info.Name)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}

func ListTransports() []TransportInfo {
	transportMu.RLock()
	defer transportMu.RUnlock()
	var out []TransportInfo
	for _, info := range transportMap {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out
}
