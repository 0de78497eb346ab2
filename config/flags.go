package config

import "time"

// Overrides holds the subset of Config fields settable from the CLI mask
// spec.md §6 names (`-n host`, `-t server`, `-p poll`, ...); zero values
// mean "not set on the command line, keep whatever Load produced".
type Overrides struct {
	Hostname      string
	TimeServer    string
	PollingPeriod time.Duration
	NetworkDevice string
	SyncInPcap    string
	SyncInAscii   string
	SyncOutPcap   string
	SyncOutAscii  string
	AlgoOut       string
	UDPPort       int
	MonitorPort   int
}

// ApplyOverrides merges o onto cfg, CLI flags taking precedence over the
// config file (spec.md §6's CLI mask).
func ApplyOverrides(cfg *Config, o Overrides) {
	if o.Hostname != "" {
		cfg.Hostname = o.Hostname
	}
	if o.TimeServer != "" {
		cfg.TimeServers = append([]string{o.TimeServer}, cfg.TimeServers...)
	}
	if o.PollingPeriod != 0 {
		cfg.PollingPeriod = o.PollingPeriod
	}
	if o.NetworkDevice != "" {
		cfg.NetworkDevice = o.NetworkDevice
	}
	if o.SyncInPcap != "" {
		cfg.SyncInPcap = o.SyncInPcap
	}
	if o.SyncInAscii != "" {
		cfg.SyncInAscii = o.SyncInAscii
	}
	if o.SyncOutPcap != "" {
		cfg.SyncOutPcap = o.SyncOutPcap
	}
	if o.SyncOutAscii != "" {
		cfg.SyncOutAscii = o.SyncOutAscii
	}
	if o.AlgoOut != "" {
		cfg.AlgoOut = o.AlgoOut
	}
	if o.UDPPort != 0 {
		cfg.UDPPort = o.UDPPort
	}
	if o.MonitorPort != 0 {
		cfg.MonitorPort = o.MonitorPort
	}
}
