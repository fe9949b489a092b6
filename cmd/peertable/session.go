// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/spf13/pflag"

	"github.com/peertable/peertable/lib/config"
)

// sessionFlags are the flags host and join share. Flag values beat
// the config file, which beats the built-in defaults.
type sessionFlags struct {
	configPath string
	relayURL   string
	room       string
	verbose    bool
}

func (f *sessionFlags) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.configPath, "config", "", "YAML config file (default: $PEERTABLE_CONFIG)")
	flagSet.StringVar(&f.relayURL, "relay-url", "", "signaling relay websocket endpoint")
	flagSet.StringVar(&f.room, "room", "", "room code shared by all participants")
	flagSet.BoolVar(&f.verbose, "verbose", false, "debug logging")
}

// loadConfig builds the effective configuration: file (if any), then
// flag overrides, then validation.
func (f *sessionFlags) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case f.configPath != "":
		cfg, err = config.LoadFile(f.configPath)
	case os.Getenv("PEERTABLE_CONFIG") != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, err
	}

	if f.relayURL != "" {
		cfg.Relay.URL = f.relayURL
	}
	if f.room != "" {
		cfg.Session.Room = f.room
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (f *sessionFlags) logger() *slog.Logger {
	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// iceServers converts the config form to the pion form.
func iceServers(cfg *config.Config) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(cfg.ICEServers))
	for _, server := range cfg.ICEServers {
		servers = append(servers, webrtc.ICEServer{
			URLs:       server.URLs,
			Username:   server.Username,
			Credential: server.Credential,
		})
	}
	return servers
}

// generateIdentity returns a short unique player name for joiners who
// did not pick one.
func generateIdentity() string {
	return "player-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
}
