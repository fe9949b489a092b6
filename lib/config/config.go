// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for peertable commands.
//
// Configuration is loaded from a single YAML file specified by:
//   - PEERTABLE_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery; every value a session
// runs with either came from the file or is a documented default.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for a peertable session.
type Config struct {
	// Relay configures the signaling relay.
	Relay RelayConfig `yaml:"relay"`

	// Session configures this participant's identity and room.
	Session SessionConfig `yaml:"session"`

	// Game configures the table rules a host runs with. Ignored when
	// joining: the host's table is authoritative.
	Game GameConfig `yaml:"game"`

	// ICEServers lists STUN/TURN servers used during negotiation.
	// Empty means host-candidate-only, which works on a LAN.
	ICEServers []ICEServerConfig `yaml:"ice_servers,omitempty"`
}

// RelayConfig configures the signaling relay connection.
type RelayConfig struct {
	// URL is the websocket endpoint of the relay, e.g.
	// wss://relay.example.com/signal or ws://localhost:8090 for a
	// locally run peertable-relay.
	URL string `yaml:"url"`
}

// SessionConfig identifies this participant within a room.
type SessionConfig struct {
	// Room is the shared code players exchange out of band. Everyone
	// in the same room on the same relay ends up at the same table.
	Room string `yaml:"room"`

	// Identity is the name this participant signals and plays under.
	// Must be unique within the room and must not contain whitespace.
	// Empty means the command generates one.
	Identity string `yaml:"identity,omitempty"`
}

// GameConfig configures the table a host deals.
type GameConfig struct {
	// SmallBlind is the forced bet posted left of the button.
	SmallBlind int `yaml:"small_blind"`

	// BigBlind is the forced bet posted left of the small blind.
	BigBlind int `yaml:"big_blind"`

	// BuyIn is the stack every seat starts with.
	BuyIn int `yaml:"buy_in"`

	// MaxSeats caps the table size, host included.
	MaxSeats int `yaml:"max_seats"`
}

// ICEServerConfig describes one STUN or TURN server.
type ICEServerConfig struct {
	// URLs lists the server endpoints, e.g. stun:stun.example.com:3478.
	URLs []string `yaml:"urls"`

	// Username and Credential authenticate against TURN servers.
	Username   string `yaml:"username,omitempty"`
	Credential string `yaml:"credential,omitempty"`
}

// Default returns the configuration used when the file leaves a
// section out.
func Default() *Config {
	return &Config{
		Relay: RelayConfig{
			URL: "ws://localhost:8090",
		},
		Game: GameConfig{
			SmallBlind: 5,
			BigBlind:   10,
			BuyIn:      1000,
			MaxSeats:   9,
		},
	}
}

// Load reads the config file named by PEERTABLE_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv("PEERTABLE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("PEERTABLE_CONFIG environment variable not set; " +
			"set it to the path of your peertable.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile reads the config file at path, layered over Default().
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the loaded configuration for values that would fail
// later in confusing ways. Collects every problem instead of stopping
// at the first.
func (c *Config) Validate() error {
	var errs []error

	if c.Relay.URL == "" {
		errs = append(errs, fmt.Errorf("relay.url is required"))
	} else if !strings.HasPrefix(c.Relay.URL, "ws://") && !strings.HasPrefix(c.Relay.URL, "wss://") {
		errs = append(errs, fmt.Errorf("relay.url must be a ws:// or wss:// endpoint, got %q", c.Relay.URL))
	}

	if c.Session.Room == "" {
		errs = append(errs, fmt.Errorf("session.room is required"))
	} else if strings.ContainsAny(c.Session.Room, " \t\n") {
		errs = append(errs, fmt.Errorf("session.room must not contain whitespace"))
	}

	if c.Session.Identity != "" && strings.ContainsAny(c.Session.Identity, " \t\n") {
		errs = append(errs, fmt.Errorf("session.identity must not contain whitespace"))
	}

	if c.Game.SmallBlind <= 0 {
		errs = append(errs, fmt.Errorf("game.small_blind must be positive"))
	}
	if c.Game.BigBlind < c.Game.SmallBlind {
		errs = append(errs, fmt.Errorf("game.big_blind must be at least the small blind"))
	}
	if c.Game.BuyIn < c.Game.BigBlind {
		errs = append(errs, fmt.Errorf("game.buy_in must cover at least one big blind"))
	}
	if c.Game.MaxSeats < 2 {
		errs = append(errs, fmt.Errorf("game.max_seats must be at least 2"))
	}

	for i, server := range c.ICEServers {
		if len(server.URLs) == 0 {
			errs = append(errs, fmt.Errorf("ice_servers[%d].urls is required", i))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
