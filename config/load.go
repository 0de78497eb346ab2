package config

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash"
	"github.com/go-ini/ini"
	version "github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"
)

// recognizedKeys lists every key=value name spec.md §6 names, so Load can
// warn on anything else rather than silently ignoring a typo.
var recognizedKeys = map[string]bool{
	"version": true, "verbose_level": true, "synchronization_type": true,
	"ipc_server": true, "ntp_server": true, "adjust_FFclock": true, "adjust_FBclock": true,
	"polling_period": true, "temperature_quality": true, "init_period_estimate": true,
	"hostname": true, "time_server": true, "ntc": true, "network_device": true,
	"sync_in_pcap": true, "sync_in_ascii": true, "sync_out_pcap": true, "sync_out_ascii": true,
	"clock_output_ascii": true, "algo_out": true, "servertrust": true,
	"metrics_port": true,
}

// Load parses path's key=value ASCII config (spec.md §6) via go-ini.
// Unknown keys warn; invalid values fall back to the documented default;
// a version mismatch rewrites the file in place with current defaults
// preserved, matching the teacher's config-rewrite idiom
// (calnex/config/config.go's ini.Section set-and-mark-changed pattern).
func Load(path string) (*Config, error) {
	f, err := ini.LoadSources(ini.LoadOptions{AllowShadows: true}, path)
	if err != nil {
		return nil, err
	}
	sec := f.Section("")
	cfg := Default()

	for _, k := range sec.Keys() {
		if !recognizedKeys[k.Name()] {
			log.Warnf("config: unrecognized key %q, ignoring", k.Name())
		}
	}

	cfg.Version = sec.Key("version").MustString(CurrentVersion)
	cfg.VerboseLevel = VerboseLevel(sec.Key("verbose_level").MustString(string(cfg.VerboseLevel)))
	if !validVerbose(cfg.VerboseLevel) {
		log.Warnf("config: invalid verbose_level %q, using default", cfg.VerboseLevel)
		cfg.VerboseLevel = VerboseNormal
	}

	cfg.SyncType = SyncType(sec.Key("synchronization_type").MustString(string(cfg.SyncType)))
	if !validSyncType(cfg.SyncType) {
		log.Warnf("config: invalid synchronization_type %q, using default", cfg.SyncType)
		cfg.SyncType = SyncNTP
	}

	cfg.IPCServer = onOff(sec.Key("ipc_server").MustString(""), cfg.IPCServer)
	cfg.NTPServer = onOff(sec.Key("ntp_server").MustString(""), cfg.NTPServer)
	cfg.AdjustFFClock = onOff(sec.Key("adjust_FFclock").MustString(""), cfg.AdjustFFClock)
	cfg.AdjustFBClock = onOff(sec.Key("adjust_FBclock").MustString(""), cfg.AdjustFBClock)

	if secs, err := sec.Key("polling_period").Int(); err == nil {
		d := time.Duration(secs) * time.Second
		if d >= time.Second && d <= 1024*time.Second {
			cfg.PollingPeriod = d
		} else {
			log.Warnf("config: polling_period %ds out of range, using default", secs)
		}
	}

	cfg.TemperatureQuality = TemperatureQuality(sec.Key("temperature_quality").MustString(string(cfg.TemperatureQuality)))
	if !validTemperatureQuality(cfg.TemperatureQuality) {
		log.Warnf("config: invalid temperature_quality %q, using default", cfg.TemperatureQuality)
		cfg.TemperatureQuality = TempGood
	}

	if v, err := sec.Key("init_period_estimate").Float64(); err == nil {
		if v > 0 && v <= 1 {
			cfg.InitPeriodEstimate = v
		} else {
			log.Warnf("config: init_period_estimate %g out of range, using default", v)
		}
	}

	cfg.Hostname = sec.Key("hostname").String()
	cfg.TimeServers = sec.Key("time_server").ValueWithShadows()
	cfg.NTC = sec.Key("ntc").String()
	cfg.NetworkDevice = sec.Key("network_device").String()
	cfg.SyncInPcap = sec.Key("sync_in_pcap").String()
	cfg.SyncInAscii = sec.Key("sync_in_ascii").String()
	cfg.SyncOutPcap = sec.Key("sync_out_pcap").String()
	cfg.SyncOutAscii = sec.Key("sync_out_ascii").String()
	cfg.ClockOutputAscii = sec.Key("clock_output_ascii").String()
	cfg.AlgoOut = sec.Key("algo_out").String()
	cfg.ServerTrust = parseServerTrust(sec.Key("servertrust").ValueWithShadows())
	if port, err := sec.Key("metrics_port").Int(); err == nil && port > 0 {
		cfg.MetricsPort = port
	}

	if !versionMatches(cfg.Version) {
		log.Warnf("config: version %q != %q, rewriting %s with current defaults", cfg.Version, CurrentVersion, path)
		cfg.Version = CurrentVersion
		if err := Save(cfg, path); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// versionMatches compares raw against CurrentVersion as semantic
// versions (not raw strings), so "1.0" and "1.0.0" are treated as the
// same on-disk format.
func versionMatches(raw string) bool {
	current, err := version.NewVersion(CurrentVersion)
	if err != nil {
		return raw == CurrentVersion
	}
	fileVer, err := version.NewVersion(raw)
	if err != nil {
		return false
	}
	return fileVer.Equal(current)
}

// Hash returns a hash of a config file's raw content, for SIGHUP rehash logic to decide
// whether the file actually changed since it was last loaded.
func Hash(content []byte) uint64 {
	return xxhash.Sum64(content)
}

func validVerbose(v VerboseLevel) bool {
	switch v {
	case VerboseQuiet, VerboseNormal, VerboseHigh:
		return true
	}
	return false
}

func validSyncType(s SyncType) bool {
	switch s {
	case SyncSpy, SyncPiggy, SyncNTP, SyncIEEE1588, SyncPPS, SyncVMUDP, SyncXen, SyncVMware:
		return true
	}
	return false
}

func validTemperatureQuality(q TemperatureQuality) bool {
	switch q {
	case TempPoor, TempGood, TempExcellent:
		return true
	}
	return false
}

func onOff(s string, fallback bool) bool {
	switch s {
	case "on":
		return true
	case "off":
		return false
	default:
		return fallback
	}
}

func parseServerTrust(entries []string) map[string]bool {
	out := map[string]bool{}
	for _, e := range entries {
		id, untrusted, ok := splitTrustEntry(e)
		if !ok {
			continue
		}
		out[id] = untrusted
	}
	return out
}

// splitTrustEntry parses one "serverID=0|1" servertrust entry (1 = do not
// trust, spec.md §3).
func splitTrustEntry(e string) (id string, untrusted bool, ok bool) {
	for i := 0; i < len(e); i++ {
		if e[i] == '=' {
			v, err := strconv.Atoi(e[i+1:])
			if err != nil {
				return "", false, false
			}
			return e[:i], v != 0, true
		}
	}
	return "", false, false
}
