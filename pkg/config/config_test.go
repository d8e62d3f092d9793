package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/roffe/candiag/pkg/diag"
)

func TestDefaultMatchesEngine(t *testing.T) {
	p := Default()
	if err := Validate(p); err != nil {
		t.Fatalf("default profile invalid: %v", err)
	}
	Normalize(p)
	if got, want := p.EngineConfig(), diag.DefaultConfig(); !reflect.DeepEqual(got, want) {
		t.Errorf("engine config\n got %+v\nwant %+v", got, want)
	}
}

func TestParse(t *testing.T) {
	p, err := Parse([]byte(`
transport:
  name: Serial
  port: /dev/ttyUSB0
scan:
  first: 4
  last: 8
poll:
  pgn: 0xEF00
  data: [0x22, 1]
  force_broadcast: false
retry:
  backoff: FIXED
export:
  clickhouse:
    addr: ["127.0.0.1:9000"]
    database: can
`))
	if err != nil {
		t.Fatal(err)
	}
	if err := Validate(p); err != nil {
		t.Fatal(err)
	}
	Normalize(p)

	if p.Transport.Name != "serial" || p.Retry.Backoff != "fixed" {
		t.Errorf("not normalized: %+v", p)
	}
	if p.Export.ClickHouse.Table != "can_diagnostics" || p.Export.InfluxDB != nil {
		t.Errorf("export = %+v", p.Export)
	}

	cfg := p.EngineConfig()
	if cfg.Addresses != (diag.AddressRange{First: 4, Last: 8}) {
		t.Errorf("addresses = %+v", cfg.Addresses)
	}
	if cfg.Poll.PGN != 0xEF00 || cfg.Poll.Priority != 6 || cfg.Poll.Source != 0x63 {
		t.Errorf("poll = %+v", cfg.Poll)
	}
	if !reflect.DeepEqual(cfg.Poll.Data, []byte{0x22, 1}) {
		t.Errorf("data = %X", cfg.Poll.Data)
	}
	if cfg.Backoff != diag.BackoffFixed {
		t.Errorf("backoff = %s", cfg.Backoff)
	}
	if cfg.PerAddressTimeout != 200*time.Millisecond {
		t.Errorf("per address timeout = %s", cfg.PerAddressTimeout)
	}

	tc := p.TransportConfig(nil)
	if tc.Port != "/dev/ttyUSB0" || tc.PortBaudrate != 115200 || tc.RequestTimeout != 3*time.Second {
		t.Errorf("transport config = %+v", tc)
	}
}

func TestParseEmpty(t *testing.T) {
	p, err := Parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(p, Default()) {
		t.Error("empty profile differs from the default")
	}
}

func TestParseUnknownKey(t *testing.T) {
	if _, err := Parse([]byte("scan:\n  frist: 2\n")); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"no transport", func(p *Profile) { p.Transport.Name = "" }},
		{"http without url", func(p *Profile) { p.Transport.URL = "" }},
		{"serial without port", func(p *Profile) { p.Transport.Name = "serial" }},
		{"zero request timeout", func(p *Profile) { p.Transport.RequestTimeoutMs = 0 }},
		{"range order", func(p *Profile) { p.Scan.First, p.Scan.Last = 9, 3 }},
		{"range zero", func(p *Profile) { p.Scan.First = 0 }},
		{"range high", func(p *Profile) { p.Scan.Last = 255 }},
		{"priority", func(p *Profile) { p.Poll.Priority = 8 }},
		{"pgn", func(p *Profile) { p.Poll.PGN = 0x40000 }},
		{"source", func(p *Profile) { p.Poll.Source = 256 }},
		{"data length", func(p *Profile) { p.Poll.Data = make([]int, 9) }},
		{"data byte", func(p *Profile) { p.Poll.Data = []int{300} }},
		{"negative duration", func(p *Profile) { p.Monitor.DurationMs = -1 }},
		{"listener window", func(p *Profile) { p.Monitor.Listener, p.Monitor.ListenWindowMs = true, 0 }},
		{"backoff", func(p *Profile) { p.Retry.Backoff = "random" }},
		{"influx", func(p *Profile) { p.Export.InfluxDB = &InfluxDBConfig{Host: "http://localhost:8181"} }},
		{"clickhouse", func(p *Profile) { p.Export.ClickHouse = &ClickHouseConfig{Database: "can"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.mutate(p)
			if err := Validate(p); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte("monitor:\n  duration_ms: 1000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Monitor.DurationMs != 1000 || p.Scan.Last != 16 {
		t.Errorf("profile = %+v", p)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
