package config

import (
	"time"

	"github.com/roffe/candiag"
	"github.com/roffe/candiag/pkg/diag"
	"github.com/roffe/candiag/pkg/report"
)

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// EngineConfig converts a validated profile.
func (p *Profile) EngineConfig() diag.Config {
	data := make([]byte, len(p.Poll.Data))
	for i, v := range p.Poll.Data {
		data[i] = byte(v)
	}
	backoff := diag.BackoffFixed
	if p.Retry.Backoff == "exponential" {
		backoff = diag.BackoffExponential
	}
	return diag.Config{
		Addresses: diag.AddressRange{First: uint8(p.Scan.First), Last: uint8(p.Scan.Last)},
		Poll: diag.PollTemplate{
			Priority:       uint8(p.Poll.Priority),
			PGN:            uint32(p.Poll.PGN),
			Source:         uint8(p.Poll.Source),
			Data:           data,
			ForceBroadcast: p.Poll.ForceBroadcast,
		},
		PerAddressTimeout:  ms(p.Scan.PerAddressTimeoutMs),
		InterPollDelay:     ms(p.Scan.InterPollDelayMs),
		BroadcastPoll:      p.Scan.BroadcastPoll,
		MonitorDuration:    ms(p.Monitor.DurationMs),
		ConcurrentListener: p.Monitor.Listener,
		ListenWindow:       ms(p.Monitor.ListenWindowMs),
		MaxRetries:         uint(p.Retry.MaxRetries),
		RetryDelay:         ms(p.Retry.DelayMs),
		Backoff:            backoff,
		RequestTimeout:     ms(p.Transport.RequestTimeoutMs),
		Thresholds: report.Thresholds{
			Noise: uint32(p.Thresholds.Noise),
			Error: uint32(p.Thresholds.Error),
		},
		TxPin:         p.Recovery.TxPin,
		RxPin:         p.Recovery.RxPin,
		RecoveryDelay: ms(p.Recovery.DelayMs),
	}
}

func (p *Profile) TransportConfig(onMessage func(string)) *candiag.TransportConfig {
	return &candiag.TransportConfig{
		Debug:          p.Transport.Debug,
		Port:           p.Transport.Port,
		PortBaudrate:   p.Transport.Baudrate,
		BaseURL:        p.Transport.URL,
		RequestTimeout: ms(p.Transport.RequestTimeoutMs),
		QuietPeriod:    ms(p.Transport.QuietPeriodMs),
		OnMessage:      onMessage,
	}
}
