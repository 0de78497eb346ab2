// Command radclockd is the RADclock feed-forward NTP synchronization
// daemon (spec.md §1-§2): it reads a config file, runs one TRIGGER loop
// per configured time_server plus the PROC consumer, and publishes the
// elected preferred server's clock data to a shared-memory segment.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	log "github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/facebook/radclock/config"
	"github.com/facebook/radclock/daemon"
	"github.com/facebook/radclock/stats"
)

// defaultSMSPath is where the published clock data is mmap'd for readers;
// spec.md names the SMS layout but not a configurable path, so this is a
// fixed location rather than a CLI/config knob.
const defaultSMSPath = "/var/run/radclock.sms"

func main() {
	var (
		daemonize   bool
		oneShot     bool
		verbose     bool
		showVersion bool
		showHelp    bool
		cfgPath     string
		logPath     string
		iface       string
		hostname    string
		timeServer  string
		poll        int
		pcapIn      string
		asciiIn     string
		pcapOut     string
		asciiOut    string
		algoOut     string
		pidFile     string
		udpPort     int
		monitorPort int
	)

	flags := pflag.NewFlagSet("radclockd", pflag.ContinueOnError)
	flags.BoolVarP(&daemonize, "daemonize", "d", false, "log to a file instead of the terminal (the process is not detached)")
	flags.BoolVarP(&oneShot, "one-shot", "x", false, "exit after every server clears warmup, printing the preferred server's data")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug-level logging and a startup list of tracked servers")
	flags.BoolVarP(&showVersion, "version", "V", false, "print version and exit")
	flags.BoolVarP(&showHelp, "help", "h", false, "print usage and exit")
	flags.StringVarP(&cfgPath, "config", "c", "/etc/radclock.conf", "config file path")
	flags.StringVarP(&logPath, "log", "l", "", "log file path (default stderr)")
	flags.StringVarP(&iface, "iface", "i", "", "override network_device")
	flags.StringVarP(&hostname, "hostname", "n", "", "override hostname")
	flags.StringVarP(&timeServer, "server", "t", "", "prepend a time_server")
	flags.IntVarP(&poll, "poll", "p", 0, "override polling_period, seconds")
	flags.StringVarP(&pcapIn, "pcap-in", "r", "", "override sync_in_pcap")
	flags.StringVarP(&asciiIn, "ascii-in", "s", "", "override sync_in_ascii")
	flags.StringVarP(&pcapOut, "pcap-out", "w", "", "override sync_out_pcap")
	flags.StringVarP(&asciiOut, "ascii-out", "a", "", "override sync_out_ascii")
	flags.StringVarP(&algoOut, "algo-out", "o", "", "override algo_out")
	flags.StringVarP(&pidFile, "pidfile", "P", "", "write the daemon's pid to this file")
	flags.IntVarP(&udpPort, "udp-port", "U", 0, "override the NTP responder's data port")
	flags.IntVarP(&monitorPort, "monitor-port", "D", 0, "override the NTP responder's monitor port")

	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}

	if showHelp {
		fmt.Fprintln(os.Stderr, "radclockd [-dxvVh] [-c conf] [-l log] [-i iface] [-n host] [-t server] [-p poll] [-r pcap_in] [-s ascii_in] [-w pcap_out] [-a ascii_out] [-o algo_out] [-P pidfile] [-U port] [-D port]")
		flags.PrintDefaults()
		return
	}
	if showVersion {
		fmt.Println(config.CurrentVersion)
		return
	}

	// Go has no direct daemon(3) equivalent (no double-fork/session
	// detach in the pack either); -d is honored as "never write to the
	// controlling terminal", defaulting the log to a file instead.
	if daemonize && logPath == "" {
		logPath = "/var/log/radclockd.log"
	}
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Fatalf("radclockd: opening log file: %v", err)
		}
		log.SetOutput(f)
	}
	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("radclockd: loading config: %v", err)
	}
	switch {
	case verbose || cfg.VerboseLevel == config.VerboseHigh:
		log.SetLevel(log.DebugLevel)
	case cfg.VerboseLevel == config.VerboseQuiet:
		log.SetLevel(log.WarnLevel)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("radclockd: invalid config: %v", err)
	}
	config.ApplyOverrides(cfg, config.Overrides{
		Hostname:      hostname,
		TimeServer:    timeServer,
		PollingPeriod: time.Duration(poll) * time.Second,
		NetworkDevice: iface,
		SyncInPcap:    pcapIn,
		SyncInAscii:   asciiIn,
		SyncOutPcap:   pcapOut,
		SyncOutAscii:  asciiOut,
		AlgoOut:       algoOut,
		UDPPort:       udpPort,
		MonitorPort:   monitorPort,
	})

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644); err != nil {
			log.Fatalf("radclockd: writing pidfile: %v", err)
		}
		defer os.Remove(pidFile)
	}

	smsPath := ""
	if cfg.IPCServer {
		smsPath = defaultSMSPath
	}
	h, err := daemon.New(cfg, cfgPath, smsPath, logPath)
	if err != nil {
		log.Fatalf("radclockd: %v", err)
	}
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if oneShot {
		snap, err := h.RunOneShot(ctx)
		if err != nil {
			log.Fatalf("radclockd: one-shot run failed: %v", err)
		}
		printOneShotResult(snap)
		return
	}

	if verbose {
		printStartupTable(h)
	}

	if cfg.MetricsPort != 0 {
		exporter := stats.NewPrometheusExporter(h.Stats(), cfg.MetricsPort, 10*time.Second)
		go exporter.Start()
	}

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGTERM, syscall.SIGINT)

	go h.HandleSignals(ctx)

	runErr := make(chan error, 1)
	go func() { runErr <- h.Run(ctx) }()

	if err := daemon.NotifyReady(); err != nil {
		log.Warningf("radclockd: sd_notify failed: %v", err)
	}

	select {
	case <-stopCh:
		log.Info("radclockd: received shutdown signal")
		cancel()
	case err := <-runErr:
		if err != nil && err != context.Canceled {
			log.Errorf("radclockd: exited: %v", err)
			os.Exit(1)
		}
	}
}

func printOneShotResult(snap stats.ServerSnapshot) {
	fmt.Printf("server=%s phat=%.9g ca=%.9g error_bound=%.9g status=%s\n",
		snap.ServerID, snap.Data.Phat, snap.Data.Ca, snap.Err.ErrorBound, snap.Data.Status)
}

func printStartupTable(h *daemon.Handle) {
	useColor := term.IsTerminal(int(os.Stdout.Fd()))
	if useColor {
		fmt.Println(color.GreenString("radclockd starting, tracked servers:"))
	} else {
		fmt.Println("radclockd starting, tracked servers:")
	}
	ids := h.ServerIDs()
	for _, id := range ids {
		fmt.Println(" -", id)
	}
}
