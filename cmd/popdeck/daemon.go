package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"golang.org/x/term"

	"github.com/1broseidon/popdeck/internal/app"
	"github.com/1broseidon/popdeck/internal/config"
	"github.com/1broseidon/popdeck/internal/daemon"
	"github.com/1broseidon/popdeck/internal/hotkeys"
	"github.com/1broseidon/popdeck/internal/ipc"
)

func runDaemon(args []string) int {
	if len(args) > 0 && (args[0] == "help" || args[0] == "-h" || args[0] == "--help") {
		fmt.Fprintln(os.Stdout, "Usage: popdeck daemon")
		fmt.Fprintln(os.Stdout, "")
		fmt.Fprintln(os.Stdout, "Runs in the foreground. On a terminal it asks for screen roles when")
		fmt.Fprintln(os.Stdout, "they are missing; otherwise use 'popdeck roles assign'.")
		return 0
	}
	if len(args) > 0 {
		fmt.Fprintln(os.Stderr, "daemon takes no arguments")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Usage: popdeck daemon")
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	ctx := newLoggingContext(cfg.LogLevel)
	defer belt.Flush(ctx)

	if err := serveDaemon(ctx, cfg); err != nil {
		logger.Errorf(ctx, "%v", err)
		return 1
	}
	return 0
}

func serveDaemon(ctx context.Context, cfg *config.Config) error {
	if cfg.Display != "" {
		os.Setenv("DISPLAY", cfg.Display)
	}
	if cfg.XAuthority != "" {
		os.Setenv("XAUTHORITY", cfg.XAuthority)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, app.Overrides{})
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer a.Close()

	if term.IsTerminal(int(os.Stdin.Fd())) {
		if err := startRolePrompt(ctx, a, os.Stdin, os.Stdout); err != nil {
			logger.Warnf(ctx, "role prompt disabled: %v", err)
		}
	}

	state, err := a.Coordinator.Initialize(ctx)
	if err != nil {
		logger.Warnf(ctx, "role store: %v", err)
	}
	logger.Infof(ctx, "popdeck daemon started (%s)", state)

	ipcServer, err := ipc.NewServer(ctx, a)
	if err != nil {
		return err
	}
	if err := ipcServer.Start(); err != nil {
		return err
	}
	defer ipcServer.Stop()

	relay := &http.Server{
		Addr:              cfg.Relay.Listen,
		Handler:           a.Relay.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	relayErr := make(chan error, 1)
	go func() {
		logger.Infof(ctx, "relay listening on %s", cfg.Relay.Listen)
		if err := relay.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			relayErr <- err
		}
	}()

	if cfg.Daemon.DisplayWatchInterval > 0 {
		watcher := daemon.NewReconciler(daemon.ReconcilerConfig{
			Interval: cfg.Daemon.DisplayWatchInterval,
		}, a.Detector, a.Coordinator)
		go watcher.Run(ctx)
	}

	if backend := a.Backend(); backend != nil && len(cfg.Hotkeys) > 0 {
		bindings := make([]hotkeys.Binding, len(cfg.Hotkeys))
		for i, hk := range cfg.Hotkeys {
			bindings[i] = hotkeys.Binding{Keys: hk.Keys, View: hk.View, ID: hk.ID}
		}
		if err := hotkeys.NewHandler(ctx, backend, a).Register(bindings); err != nil {
			logger.Warnf(ctx, "%v", err)
		}
		go backend.RunEvents(ctx)
	}

	select {
	case <-ctx.Done():
		logger.Infof(ctx, "shutting down popdeck daemon")
	case err := <-relayErr:
		return fmt.Errorf("relay server: %w", err)
	}

	shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer done()
	return relay.Shutdown(shutdownCtx)
}
