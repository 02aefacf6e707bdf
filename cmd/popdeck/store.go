package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/1broseidon/popdeck/internal/config"
	"github.com/1broseidon/popdeck/internal/rolestore"
)

func printStoreUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: popdeck store serve [--listen ADDR]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Serve the screen role API from memory. Bearer tokens come from")
	fmt.Fprintln(w, "store_server.tokens in the config, plus the resolved client token.")
}

func runStore(args []string) int {
	if len(args) == 0 {
		printStoreUsage(os.Stderr)
		return 2
	}
	switch args[0] {
	case "serve":
	case "help", "-h", "--help":
		printStoreUsage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown store command: %s\n\n", args[0])
		printStoreUsage(os.Stderr)
		return 2
	}

	fs := flag.NewFlagSet("store serve", flag.ContinueOnError)
	listen := fs.String("listen", "", "Listen address (default: store_server.listen)")
	fs.Usage = func() { printStoreUsage(os.Stderr) }
	if code, ok := parseFlags(fs, args[1:]); !ok {
		return code
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *listen == "" {
		*listen = cfg.StoreServer.Listen
	}
	ctx := newLoggingContext(cfg.LogLevel)
	defer belt.Flush(ctx)

	tokens := append([]string(nil), cfg.StoreServer.Tokens...)
	if tok, err := cfg.ResolveToken(); err != nil {
		logger.Warnf(ctx, "%v", err)
	} else if tok != "" {
		tokens = append(tokens, tok)
	}
	if len(tokens) == 0 {
		logger.Warnf(ctx, "no tokens configured, every role request will be rejected")
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	handler := rolestore.NewServer(ctx, rolestore.NewStore(), tokens).Handler()
	srv := &http.Server{
		Addr:              *listen,
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof(ctx, "role store listening on %s", *listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf(ctx, "role store: %v", err)
			return 1
		}
	}
	shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf(ctx, "role store shutdown: %v", err)
		return 1
	}
	return 0
}
