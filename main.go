package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// DebugMode is set from --debug or NOVASDR_DEBUG; StatsMode is set from
// NOVASDR_STATS only. No code reads either flag, so neither changes what
// is logged.
var DebugMode bool
var StatsMode bool

var StartTime time.Time

func main() {
	serverConfigPath := flag.String("c", "config.yaml", "server configuration file")
	receiversConfigPath := flag.String("r", "receivers.yaml", "receivers configuration file")
	debug := flag.Bool("debug", false, "enable debug logging")
	noFileLog := flag.Bool("no-file-log", false, "disable logging to file even if configured")
	flag.Parse()

	if os.Getenv("NOVASDR_DEBUG") != "" {
		*debug = true
	}
	DebugMode = *debug
	StatsMode = os.Getenv("NOVASDR_STATS") != ""
	StartTime = time.Now()

	args := flag.Args()
	if len(args) > 0 {
		switch args[0] {
		case "setup", "configure":
			if err := runConfigWizard(*serverConfigPath, *receiversConfigPath); err != nil {
				log.Fatalf("configure: %v", err)
			}
			return
		default:
			log.Fatalf("unknown subcommand %q", args[0])
		}
	}

	cfg, err := LoadServerConfig(*serverConfigPath)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	if !*noFileLog && cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Fatalf("startup: open log file: %v", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	receivers, err := LoadReceiversConfig(*receiversConfigPath)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	if cfg.ActiveReceiverID == "" {
		for id := range receivers {
			cfg.ActiveReceiverID = id
			break
		}
	}
	if _, ok := receivers[cfg.ActiveReceiverID]; !ok {
		log.Fatalf("startup: active_receiver %q not found in %s", cfg.ActiveReceiverID, *receiversConfigPath)
	}

	srv := NewServer(*cfg, receivers, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.StartReceivers(ctx); err != nil {
		log.Fatalf("startup: %v", err)
	}

	go srv.overlay.Run(ctx)
	go srv.RunMetricsReporter(ctx)

	mux := http.NewServeMux()
	srv.Routes(mux)
	httpServer := &http.Server{Addr: cfg.Listen, Handler: mux}

	go func() {
		log.Printf("novasdr listening on %s", cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Printf("shutting down")
	cancel()
	srv.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

// runConfigWizard is the minimal interactive setup/configure flow named
// by spec.md §6's CLI surface: it prompts for the fields a fresh
// deployment needs and writes both config files.
func runConfigWizard(serverPath, receiversPath string) error {
	reader := bufio.NewReader(os.Stdin)
	prompt := func(label, def string) string {
		fmt.Printf("%s [%s]: ", label, def)
		line, _ := reader.ReadString('\n')
		line = trimNewline(line)
		if line == "" {
			return def
		}
		return line
	}

	name := prompt("Station name", "NovaSDR")
	operator := prompt("Operator", "")
	listen := prompt("Listen address", ":8073")

	serverYAML := fmt.Sprintf("listen: %q\nname: %q\noperator: %q\nactive_receiver: rx1\nhtml_root: html\nlimits:\n  audio: 50\n  waterfall: 50\n  events: 50\n  chat: 50\n  ws_per_ip: 10\n",
		listen, name, operator)
	if err := os.WriteFile(serverPath, []byte(serverYAML), 0644); err != nil {
		return fmt.Errorf("write %s: %w", serverPath, err)
	}

	receiversYAML := "receivers:\n  rx1:\n    display_name: \"Receiver 1\"\n    sps: 2048000\n    frequency: 100900000\n    signal: iq\n    fft_size: 131072\n    audio_sps: 12000\n    waterfall_size: 1024\n    accelerator: none\n    source_kind: stdin\n    source_format: cs16\n    audio_codec: 1\n    defaults:\n      mod: USB\n      freq: 100900000\n      ssb_low: 300\n      ssb_high: 3000\n      squelch: true\n"
	if err := os.WriteFile(receiversPath, []byte(receiversYAML), 0644); err != nil {
		return fmt.Errorf("write %s: %w", receiversPath, err)
	}

	fmt.Printf("wrote %s and %s\n", serverPath, receiversPath)
	return nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
