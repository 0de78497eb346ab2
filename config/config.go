// Package config loads and rewrites RADclock's key=value ASCII
// configuration file (spec.md §6).
package config

import (
	"fmt"
	"time"

	"github.com/facebook/radclock/algo"
)

// CurrentVersion is written into fresh/rewritten config files and checked
// against on load (spec.md §6: "on version mismatch, file is rewritten in
// place with current defaults preserved").
const CurrentVersion = "1.0.0"

// VerboseLevel is verbose_level's enumerated domain.
type VerboseLevel string

const (
	VerboseQuiet  VerboseLevel = "quiet"
	VerboseNormal VerboseLevel = "normal"
	VerboseHigh   VerboseLevel = "high"
)

// SyncType is synchronization_type's enumerated domain.
type SyncType string

const (
	SyncSpy      SyncType = "spy"
	SyncPiggy    SyncType = "piggy"
	SyncNTP      SyncType = "ntp"
	SyncIEEE1588 SyncType = "ieee1588"
	SyncPPS      SyncType = "pps"
	SyncVMUDP    SyncType = "vm_udp"
	SyncXen      SyncType = "xen"
	SyncVMware   SyncType = "vmware"
)

// TemperatureQuality is temperature_quality's enumerated domain: a preset
// selector for the algo.Params tuning constants.
type TemperatureQuality string

const (
	TempPoor      TemperatureQuality = "poor"
	TempGood      TemperatureQuality = "good"
	TempExcellent TemperatureQuality = "excellent"
)

// Config is the parsed, validated configuration file plus any CLI
// overrides applied on top of it.
type Config struct {
	Version string

	VerboseLevel       VerboseLevel
	SyncType           SyncType
	IPCServer          bool
	NTPServer          bool
	AdjustFFClock      bool
	AdjustFBClock      bool
	PollingPeriod      time.Duration
	TemperatureQuality TemperatureQuality
	InitPeriodEstimate float64

	Hostname      string
	TimeServers   []string
	NTC           string
	NetworkDevice string

	SyncInPcap      string
	SyncInAscii     string
	SyncOutPcap     string
	SyncOutAscii    string
	ClockOutputAscii string

	// AlgoOut is the SUPPLEMENTED -o algo_out trace path.
	AlgoOut string

	// UDPPort and MonitorPort are the SUPPLEMENTED -U/-D CLI flags: the
	// downstream NTP responder's data and control/monitoring ports. The
	// responder itself is a collaborator interface out of scope; these
	// are threaded through Config for whatever process launches it.
	UDPPort     int
	MonitorPort int

	// MetricsPort is the Prometheus /metrics listen port. Zero disables
	// the exporter.
	MetricsPort int

	// ServerTrust persists the per-server trust bitmap (spec.md §3's
	// servertrust, 1 = do not trust) across a SIGHUP rehash.
	ServerTrust map[string]bool
}

// Default returns a Config matching the "good" temperature_quality
// preset and all other documented defaults (spec.md §6).
func Default() *Config {
	return &Config{
		Version:            CurrentVersion,
		VerboseLevel:       VerboseNormal,
		SyncType:           SyncNTP,
		IPCServer:          true,
		NTPServer:          false,
		AdjustFFClock:      true,
		AdjustFBClock:      false,
		PollingPeriod:      16 * time.Second,
		TemperatureQuality: TempGood,
		InitPeriodEstimate: 1e-9,
		UDPPort:            123,
		MonitorPort:        9123,
		MetricsPort:        9144,
		ServerTrust:        map[string]bool{},
	}
}

// AlgoParams returns the algo.Params this config implies: the
// temperature_quality preset, with InitPeriodEstimate overridden from the
// config file if set (spec.md §6).
func (c *Config) AlgoParams() algo.Params {
	p := presetForQuality(c.TemperatureQuality)
	if c.InitPeriodEstimate > 0 {
		p.InitPeriodEstimate = c.InitPeriodEstimate
	}
	return p
}

// presetForQuality implements temperature_quality's override of
// ts_limit, skm_scale, rate_error_bound, best_skm_rate, offset_ratio,
// plocal_quality (spec.md §6). "good" is algo.DefaultParams(); poor
// widens every bound, excellent tightens them.
func presetForQuality(q TemperatureQuality) algo.Params {
	base := algo.DefaultParams()
	switch q {
	case TempPoor:
		base.TSLIMIT *= 10
		base.RateErrBound *= 10
		base.BestSKMRate *= 10
		base.PlocalQuality *= 10
	case TempExcellent:
		base.TSLIMIT /= 10
		base.RateErrBound /= 10
		base.BestSKMRate /= 10
		base.PlocalQuality /= 10
	}
	return base
}

// Validate checks the bounded fields spec.md §6 names and reports the
// first violation found.
func (c *Config) Validate() error {
	if c.PollingPeriod < time.Second || c.PollingPeriod > 1024*time.Second {
		return fmt.Errorf("config: polling_period %s out of range [1,1024]s", c.PollingPeriod)
	}
	if c.InitPeriodEstimate != 0 && (c.InitPeriodEstimate <= 0 || c.InitPeriodEstimate > 1) {
		return fmt.Errorf("config: init_period_estimate %g out of range (0,1]", c.InitPeriodEstimate)
	}
	if c.NetworkDevice != "" {
		if _, err := ResolveNetworkDevice(c.NetworkDevice); err != nil {
			return err
		}
	}
	return nil
}
