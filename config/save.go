package config

import (
	"fmt"
	"strconv"

	"github.com/go-ini/ini"
)

// Save rewrites path with cfg's current values (spec.md §6's version-
// mismatch rewrite, and the SUPPLEMENTED servertrust persistence across a
// SIGHUP rehash), matching the teacher's pretty-printing-off ini.File
// round-trip (calnex/api/ini.go's ToBuffer).
func Save(cfg *Config, path string) error {
	f := ini.Empty(ini.LoadOptions{AllowShadows: true})
	ini.PrettyFormat = false
	sec := f.Section("")

	set := func(key, val string) { sec.Key(key).SetValue(val) }

	set("version", cfg.Version)
	set("verbose_level", string(cfg.VerboseLevel))
	set("synchronization_type", string(cfg.SyncType))
	set("ipc_server", boolToOnOff(cfg.IPCServer))
	set("ntp_server", boolToOnOff(cfg.NTPServer))
	set("adjust_FFclock", boolToOnOff(cfg.AdjustFFClock))
	set("adjust_FBclock", boolToOnOff(cfg.AdjustFBClock))
	set("polling_period", strconv.Itoa(int(cfg.PollingPeriod.Seconds())))
	set("temperature_quality", string(cfg.TemperatureQuality))
	set("init_period_estimate", strconv.FormatFloat(cfg.InitPeriodEstimate, 'g', -1, 64))
	set("hostname", cfg.Hostname)
	set("ntc", cfg.NTC)
	set("network_device", cfg.NetworkDevice)
	set("sync_in_pcap", cfg.SyncInPcap)
	set("sync_in_ascii", cfg.SyncInAscii)
	set("sync_out_pcap", cfg.SyncOutPcap)
	set("sync_out_ascii", cfg.SyncOutAscii)
	set("clock_output_ascii", cfg.ClockOutputAscii)
	set("algo_out", cfg.AlgoOut)
	set("metrics_port", strconv.Itoa(cfg.MetricsPort))

	for _, ts := range cfg.TimeServers {
		if err := sec.Key("time_server").AddShadow(ts); err != nil {
			return fmt.Errorf("config: saving time_server: %w", err)
		}
	}
	first := true
	for id, untrusted := range cfg.ServerTrust {
		entry := fmt.Sprintf("%s=%d", id, boolToInt(untrusted))
		if first {
			set("servertrust", entry)
			first = false
			continue
		}
		if err := sec.Key("servertrust").AddShadow(entry); err != nil {
			return fmt.Errorf("config: saving servertrust: %w", err)
		}
	}

	return f.SaveTo(path)
}

func boolToOnOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
