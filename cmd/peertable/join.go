// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/peertable/peertable/lib/clock"
	"github.com/peertable/peertable/player"
)

func runJoin(args []string) error {
	var session sessionFlags
	var identity string
	flagSet := pflag.NewFlagSet("peertable join", pflag.ContinueOnError)
	session.addFlags(flagSet)
	flagSet.StringVar(&identity, "identity", "", "name to play under (default: generated)")
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
	if identity == "" {
		identity = cfg.Session.Identity
	}
	if identity == "" {
		identity = generateIdentity()
	}
	logger := session.logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var client *player.Client
	client = player.NewClient(player.Options{
		RelayURL:   cfg.Relay.URL,
		Room:       cfg.Session.Room,
		Identity:   identity,
		ICEServers: iceServers(cfg),
		OnUpdate: func() {
			consumer := client.Consumer()
			if consumer.GameEnded() {
				fmt.Println("\nthe host ended the game")
				return
			}
			if state := consumer.State(); state != nil {
				renderProjection(os.Stdout, state)
			}
			if winners := consumer.Settlement(); winners != nil {
				renderSettlement(os.Stdout, winners)
			}
		},
		OnDisconnected: func() {
			fmt.Println("\ndisconnected from host")
			stop()
		},
		Clock:  clock.Real(),
		Logger: logger,
	})
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("joining room: %w", err)
	}
	defer client.Disconnect()

	fmt.Printf("joined room %s as %s; waiting for the host to deal\n", cfg.Session.Room, identity)
	fmt.Println("commands: fold, check, call, bet <n>, raise <n>, quit")

	lines := readLines(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			trimmed := strings.ToLower(strings.TrimSpace(line))
			if trimmed == "" {
				continue
			}
			if trimmed == "quit" || trimmed == "exit" {
				return nil
			}
			action, amount, err := parseAction(line)
			if err != nil {
				fmt.Println(err)
				continue
			}
			if err := client.Consumer().TakeAction(action, amount); err != nil {
				fmt.Println("cannot act:", err)
			}
		}
	}
}
