package config

import "strings"

// Normalize tidies a validated profile in place.
func Normalize(p *Profile) {
	if p == nil {
		return
	}
	p.Transport.Name = strings.ToLower(strings.TrimSpace(p.Transport.Name))
	p.Transport.URL = strings.TrimSuffix(strings.TrimSpace(p.Transport.URL), "/")
	p.Retry.Backoff = strings.ToLower(p.Retry.Backoff)

	if in := p.Export.InfluxDB; in != nil && in.Measurement == "" {
		in.Measurement = "can_diagnostics"
	}
	if ch := p.Export.ClickHouse; ch != nil && ch.Table == "" {
		ch.Table = "can_diagnostics"
	}
}
