// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

// peertable is the command-line client for a peer-to-peer card table.
//
// A session needs one relay (see peertable-relay) and a room code the
// participants agree on out of band. One player hosts:
//
//	peertable host --relay-url ws://relay:8090 --room KITCHEN
//
// and everyone else joins:
//
//	peertable join --relay-url ws://relay:8090 --room KITCHEN --identity dana
//
// The relay is only used to bootstrap; once the WebRTC channels are
// up, all game traffic flows directly between the players and the
// host. Configuration can also come from a YAML file named by
// PEERTABLE_CONFIG or --config, with flags overriding the file.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	os.Exit(run())
}

func run() int {
	// A .env next to the binary may carry PEERTABLE_CONFIG or TURN
	// credentials. Absence is fine.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		return 2
	}

	var err error
	switch os.Args[1] {
	case "host":
		err = runHost(os.Args[2:])
	case "join":
		err = runJoin(os.Args[2:])
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "peertable: unknown command %q\n\n", os.Args[1])
		printUsage()
		return 2
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "peertable: %v\n", err)
		return 1
	}
	return 0
}

func printUsage() {
	fmt.Fprint(os.Stderr, `peertable — peer-to-peer no-limit hold'em over WebRTC.

Usage:
  peertable host [flags]    host a table and deal the cards
  peertable join [flags]    join a hosted table

Common flags:
  --config path       YAML config file (default: $PEERTABLE_CONFIG)
  --relay-url url     signaling relay websocket endpoint
  --room code         room code shared by all participants
  --verbose           debug logging

Join flags:
  --identity name     name to play under (default: generated)

Run "peertable host --help" or "peertable join --help" for details.
`)
}
