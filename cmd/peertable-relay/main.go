// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

// peertable-relay runs the signaling relay that bootstraps peertable
// sessions. It forwards small JSON envelopes between websocket
// connections in the same room and carries no game traffic: once two
// peers finish negotiating, their data flows directly over WebRTC and
// the relay never sees it again. State is a per-room connection map
// in memory, so one relay process serves any number of rooms and a
// restart only interrupts sessions still negotiating.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/peertable/peertable/signaling"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	var listen string
	var verbose bool
	flagSet := pflag.NewFlagSet("peertable-relay", pflag.ContinueOnError)
	flagSet.StringVar(&listen, "listen", ":8090", "address to listen on")
	flagSet.BoolVar(&verbose, "verbose", false, "debug logging")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintf(os.Stderr, "peertable-relay: %v\n", err)
		return 2
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	server := &http.Server{
		Addr:    listen,
		Handler: signaling.NewServer(logger),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		logger.Info("relay listening", "addr", listen)
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "peertable-relay: %v\n", err)
			return 1
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}
	return 0
}
