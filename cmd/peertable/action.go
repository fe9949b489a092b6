// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/peertable/peertable/poker"
)

// parseAction turns a console line like "raise 40" into a betting
// action. Bet and raise take the total to put the bet at; fold, check
// and call take nothing.
func parseAction(line string) (poker.Action, int, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", 0, fmt.Errorf("empty action")
	}

	action := poker.Action(strings.ToLower(fields[0]))
	switch action {
	case poker.ActionFold, poker.ActionCheck, poker.ActionCall:
		if len(fields) > 1 {
			return "", 0, fmt.Errorf("%s takes no amount", action)
		}
		return action, 0, nil
	case poker.ActionBet, poker.ActionRaise:
		if len(fields) != 2 {
			return "", 0, fmt.Errorf("usage: %s <amount>", action)
		}
		amount, err := strconv.Atoi(fields[1])
		if err != nil || amount <= 0 {
			return "", 0, fmt.Errorf("amount must be a positive number, got %q", fields[1])
		}
		return action, amount, nil
	default:
		return "", 0, fmt.Errorf("unknown action %q (fold, check, call, bet <n>, raise <n>)", fields[0])
	}
}
