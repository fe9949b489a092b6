// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/peertable/peertable/host"
	"github.com/peertable/peertable/lib/clock"
	"github.com/peertable/peertable/player"
)

func runHost(args []string) error {
	var session sessionFlags
	flagSet := pflag.NewFlagSet("peertable host", pflag.ContinueOnError)
	session.addFlags(flagSet)
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return fmt.Errorf("unexpected argument: %s", extra[0])
	}

	cfg, err := session.loadConfig()
	if err != nil {
		return err
	}
	logger := session.logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The host plays seat 0; its own projections arrive through the
	// local consumer rather than a network channel.
	var consumer *player.Consumer
	consumer = player.NewConsumer(func([]byte) error { return nil }, func() {
		if state := consumer.State(); state != nil {
			renderProjection(os.Stdout, state)
		}
		if winners := consumer.Settlement(); winners != nil {
			renderSettlement(os.Stdout, winners)
		}
	}, logger)

	tableHost := host.New(host.Options{
		RelayURL:       cfg.Relay.URL,
		Room:           cfg.Session.Room,
		ICEServers:     iceServers(cfg),
		SmallBlind:     cfg.Game.SmallBlind,
		BigBlind:       cfg.Game.BigBlind,
		BuyIn:          cfg.Game.BuyIn,
		MaxSeats:       cfg.Game.MaxSeats,
		OnLocalMessage: consumer.HandleMessage,
		Clock:          clock.Real(),
		Logger:         logger,
	})
	if err := tableHost.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to relay: %w", err)
	}
	defer tableHost.Shutdown()

	fmt.Printf("hosting room %s on %s\n", cfg.Session.Room, cfg.Relay.URL)
	fmt.Println("commands: players, start, deal, fold/check/call/bet <n>/raise <n>, quit")

	lines := readLines(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if done := hostCommand(tableHost, line); done {
				return nil
			}
		}
	}
}

// hostCommand executes one console line. Returns true on quit.
func hostCommand(tableHost *host.Host, line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return false
	case "quit", "exit":
		return true
	case "players":
		for _, participant := range tableHost.Players() {
			fmt.Println(" ", participant)
		}
		return false
	case "start":
		if err := tableHost.StartGame(); err != nil {
			fmt.Println("cannot start:", err)
		} else {
			fmt.Println("seats are locked; \"deal\" starts a hand")
		}
		return false
	case "deal":
		if err := tableHost.StartHand(); err != nil {
			fmt.Println("cannot deal:", err)
		}
		return false
	}

	action, amount, err := parseAction(line)
	if err != nil {
		fmt.Println(err)
		return false
	}
	tableHost.Synchronizer().Act(0, action, amount)
	return false
}

// readLines feeds stdin lines to a channel so the command loop can
// also watch for signal-driven shutdown.
func readLines(ctx context.Context) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
