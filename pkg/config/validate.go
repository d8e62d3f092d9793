package config

import (
	"fmt"
	"strings"
)

// Validate checks a profile without changing it.
func Validate(p *Profile) error {
	if p == nil {
		return fmt.Errorf("nil profile")
	}

	switch strings.ToLower(p.Transport.Name) {
	case "":
		return fmt.Errorf("transport.name is required")
	case "http":
		if p.Transport.URL == "" {
			return fmt.Errorf("transport.url is required for the http transport")
		}
	case "serial":
		if p.Transport.Port == "" {
			return fmt.Errorf("transport.port is required for the serial transport")
		}
	}
	if p.Transport.Baudrate < 0 {
		return fmt.Errorf("transport.baudrate must not be negative")
	}
	if p.Transport.RequestTimeoutMs <= 0 {
		return fmt.Errorf("transport.request_timeout_ms must be > 0")
	}

	if p.Scan.First < 1 || p.Scan.Last > 254 || p.Scan.First > p.Scan.Last {
		return fmt.Errorf("scan range %d-%d must be a non-empty range within 1-254", p.Scan.First, p.Scan.Last)
	}

	if p.Poll.Priority < 0 || p.Poll.Priority > 7 {
		return fmt.Errorf("poll.priority %d outside 0-7", p.Poll.Priority)
	}
	if p.Poll.PGN < 0 || p.Poll.PGN > 0x3FFFF {
		return fmt.Errorf("poll.pgn 0x%X outside 18 bits", p.Poll.PGN)
	}
	if p.Poll.Source < 0 || p.Poll.Source > 0xFF {
		return fmt.Errorf("poll.source %d is not an address", p.Poll.Source)
	}
	if len(p.Poll.Data) > 8 {
		return fmt.Errorf("poll.data has %d bytes, max 8", len(p.Poll.Data))
	}
	for i, v := range p.Poll.Data {
		if v < 0 || v > 0xFF {
			return fmt.Errorf("poll.data[%d] = %d is not a byte", i, v)
		}
	}

	for name, v := range map[string]int{
		"scan.per_address_timeout_ms": p.Scan.PerAddressTimeoutMs,
		"scan.inter_poll_delay_ms":    p.Scan.InterPollDelayMs,
		"monitor.duration_ms":         p.Monitor.DurationMs,
		"monitor.listen_window_ms":    p.Monitor.ListenWindowMs,
		"retry.max_retries":           p.Retry.MaxRetries,
		"retry.delay_ms":              p.Retry.DelayMs,
		"thresholds.noise":            p.Thresholds.Noise,
		"thresholds.error":            p.Thresholds.Error,
		"recovery.delay_ms":           p.Recovery.DelayMs,
		"transport.quiet_period_ms":   p.Transport.QuietPeriodMs,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if p.Monitor.Listener && p.Monitor.ListenWindowMs == 0 {
		return fmt.Errorf("monitor.listen_window_ms must be > 0 when the listener is enabled")
	}

	switch strings.ToLower(p.Retry.Backoff) {
	case "fixed", "exponential":
	default:
		return fmt.Errorf("retry.backoff %q must be fixed or exponential", p.Retry.Backoff)
	}

	if in := p.Export.InfluxDB; in != nil {
		if in.Host == "" || in.Database == "" {
			return fmt.Errorf("export.influxdb needs host and database")
		}
	}
	if ch := p.Export.ClickHouse; ch != nil {
		if len(ch.Addr) == 0 || ch.Database == "" {
			return fmt.Errorf("export.clickhouse needs addr and database")
		}
	}
	return nil
}
