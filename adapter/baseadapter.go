package adapter

import (
	"fmt"
	"sync"

	"github.com/roffe/candiag"
)

type BaseAdapter struct {
	name  string
	cfg   *candiag.TransportConfig
	close chan struct{}
	once  *sync.Once
}

func NewBaseAdapter(name string, cfg *candiag.TransportConfig) BaseAdapter {
	if cfg.OnMessage == nil {
		cfg.OnMessage = func(string) {}
	}
	return BaseAdapter{
		name:  name,
		cfg:   cfg,
		close: make(chan struct{}),
		once:  new(sync.Once),
	}
}

func (base *BaseAdapter) Name() string {
	return base.name
}

func (base *BaseAdapter) Close() error {
	base.once.Do(func() {
		close(base.close)
	})
	return nil
}

func (base *BaseAdapter) closed() bool {
	select {
	case <-base.close:
		return true
	default:
		return false
	}
}

func (base *BaseAdapter) debugf(format string, args ...interface{}) {
	if base.cfg.Debug {
		base.cfg.OnMessage(fmt.Sprintf(format, args...))
	}
}

func (base *BaseAdapter) errorf(op string, err error) error {
	return &candiag.TransportError{Op: op, Transport: base.name, Err: err}
}

func (base *BaseAdapter) checkOpen(op string) error {
	if base.closed() {
		return base.errorf(op, candiag.Unrecoverable(candiag.ErrTransportNotReady))
	}
	return nil
}
