package config

import "github.com/roffe/candiag/pkg/diag"

// Default mirrors diag.DefaultConfig talking to the node over HTTP.
func Default() *Profile {
	d := diag.DefaultConfig()
	data := make([]int, len(d.Poll.Data))
	for i, b := range d.Poll.Data {
		data[i] = int(b)
	}
	return &Profile{
		Transport: TransportConfig{
			Name:             "http",
			URL:              "http://192.168.7.116",
			Baudrate:         115200,
			RequestTimeoutMs: int(d.RequestTimeout.Milliseconds()),
			QuietPeriodMs:    100,
		},
		Scan: ScanConfig{
			First:               int(d.Addresses.First),
			Last:                int(d.Addresses.Last),
			PerAddressTimeoutMs: int(d.PerAddressTimeout.Milliseconds()),
			InterPollDelayMs:    int(d.InterPollDelay.Milliseconds()),
			BroadcastPoll:       d.BroadcastPoll,
		},
		Poll: PollConfig{
			Priority:       int(d.Poll.Priority),
			PGN:            int(d.Poll.PGN),
			Source:         int(d.Poll.Source),
			Data:           data,
			ForceBroadcast: d.Poll.ForceBroadcast,
		},
		Monitor: MonitorConfig{
			DurationMs:     int(d.MonitorDuration.Milliseconds()),
			Listener:       d.ConcurrentListener,
			ListenWindowMs: int(d.ListenWindow.Milliseconds()),
		},
		Retry: RetryConfig{
			MaxRetries: int(d.MaxRetries),
			DelayMs:    int(d.RetryDelay.Milliseconds()),
			Backoff:    d.Backoff.String(),
		},
		Thresholds: ThresholdsConfig{
			Noise: int(d.Thresholds.Noise),
			Error: int(d.Thresholds.Error),
		},
		Recovery: RecoveryConfig{
			TxPin:   d.TxPin,
			RxPin:   d.RxPin,
			DelayMs: int(d.RecoveryDelay.Milliseconds()),
		},
	}
}
