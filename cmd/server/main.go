package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/andy6609/chat-relay/internal/chat"
	"github.com/andy6609/chat-relay/internal/config"
	"github.com/andy6609/chat-relay/internal/monitor"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to a TOML config file")
	metricsAddr := flag.String("metrics-addr", "", "metrics listen address (overrides config)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <port>\nExample: %s 5000\n", os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return 1
	}
	port, err := strconv.Atoi(flag.Arg(0))
	if err != nil || port < 0 || port > 65535 {
		fmt.Fprintf(os.Stderr, "invalid port %q\n", flag.Arg(0))
		flag.Usage()
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *metricsAddr != "" {
		cfg.Server.MetricsAddr = *metricsAddr
	}

	logger, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeLog()

	shutdown := chat.NewShutdown(logger)
	srv := chat.NewServer(fmt.Sprintf(":%d", port), cfg.ServerOptions(), shutdown, logger)
	if err := srv.Start(); err != nil {
		logger.Error("failed to start server", "error", err)
		fmt.Fprintf(os.Stderr, "Error: could not start the server on port %d: %v\n", port, err)
		return 1
	}

	metricsSrv := startMetrics(cfg.Server.MetricsAddr, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			shutdown.Trigger(sig.String())
		case <-shutdown.Done():
		}
	}()

	monitorDone := make(chan struct{})
	var console *monitor.Terminal
	if cfg.Monitor.Enabled {
		console, err = monitor.OpenTerminal(os.Stdin, os.Stdout)
		if err != nil {
			logger.Warn("monitor input unavailable", "error", err)
			console = nil
		}
		opts := monitor.Options{Interval: cfg.RefreshInterval(), Out: os.Stdout}
		if console != nil {
			opts.Keys = console.Keys()
			opts.Width = console.Width
		}
		mon := monitor.New(srv.Registry(), srv.Activity(), shutdown, opts, logger)
		go func() {
			defer close(monitorDone)
			mon.Run(context.Background())
		}()
	} else {
		close(monitorDone)
	}

	<-shutdown.Done()
	<-monitorDone
	if console != nil {
		if err := console.Restore(); err != nil {
			logger.Warn("restore terminal failed", "error", err)
		}
	}

	srv.Stop()

	if metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = metricsSrv.Shutdown(ctx)
		cancel()
	}

	fmt.Println("Server closed.")
	return 0
}

// newLogger builds the JSON logger. While the monitor draws on stdout the
// log goes to a file; "-" sends it to stderr.
func newLogger(cfg config.LogSection) (*slog.Logger, func(), error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer = os.Stderr
	closeFn := func() {}
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	return logger, closeFn, nil
}

func startMetrics(addr string, logger *slog.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}
