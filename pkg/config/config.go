// Package config loads the read-only YAML run profile used by the command
// line front-end. Profiles are never written back.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type Profile struct {
	Transport  TransportConfig  `yaml:"transport"`
	Scan       ScanConfig       `yaml:"scan"`
	Poll       PollConfig       `yaml:"poll"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Retry      RetryConfig      `yaml:"retry"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
	Recovery   RecoveryConfig   `yaml:"recovery"`
	Export     ExportConfig     `yaml:"export"`
}

// ---- TRANSPORT ----

type TransportConfig struct {
	Name             string `yaml:"name"`
	URL              string `yaml:"url"`
	Port             string `yaml:"port"`
	Baudrate         int    `yaml:"baudrate"`
	RequestTimeoutMs int    `yaml:"request_timeout_ms"`
	QuietPeriodMs    int    `yaml:"quiet_period_ms"`
	Debug            bool   `yaml:"debug"`
}

// ---- SCAN ----

type ScanConfig struct {
	First               int  `yaml:"first"`
	Last                int  `yaml:"last"`
	PerAddressTimeoutMs int  `yaml:"per_address_timeout_ms"`
	InterPollDelayMs    int  `yaml:"inter_poll_delay_ms"`
	BroadcastPoll       bool `yaml:"broadcast_poll"`
}

type PollConfig struct {
	Priority       int   `yaml:"priority"`
	PGN            int   `yaml:"pgn"`
	Source         int   `yaml:"source"`
	Data           []int `yaml:"data"`
	ForceBroadcast bool  `yaml:"force_broadcast"`
}

// ---- MONITOR ----

type MonitorConfig struct {
	DurationMs     int  `yaml:"duration_ms"`
	Listener       bool `yaml:"listener"`
	ListenWindowMs int  `yaml:"listen_window_ms"`
}

// ---- RETRY / HEALTH ----

type RetryConfig struct {
	MaxRetries int    `yaml:"max_retries"`
	DelayMs    int    `yaml:"delay_ms"`
	Backoff    string `yaml:"backoff"` // fixed | exponential
}

type ThresholdsConfig struct {
	Noise int `yaml:"noise"`
	Error int `yaml:"error"`
}

type RecoveryConfig struct {
	TxPin   int `yaml:"tx_pin"`
	RxPin   int `yaml:"rx_pin"`
	DelayMs int `yaml:"delay_ms"`
}

// ---- EXPORT ----

type ExportConfig struct {
	InfluxDB   *InfluxDBConfig   `yaml:"influxdb"`
	ClickHouse *ClickHouseConfig `yaml:"clickhouse"`
}

type InfluxDBConfig struct {
	Host        string `yaml:"host"`
	Token       string `yaml:"token"`
	Database    string `yaml:"database"`
	Measurement string `yaml:"measurement"`
}

type ClickHouseConfig struct {
	Addr     []string `yaml:"addr"`
	Database string   `yaml:"database"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	Table    string   `yaml:"table"`
}

// Load reads a profile from path. Keys missing from the file keep their
// default value, unknown keys are an error.
func Load(path string) (*Profile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func Parse(b []byte) (*Profile, error) {
	p := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return p, nil
}
