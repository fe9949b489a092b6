// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/peertable/peertable/poker"
	"github.com/peertable/peertable/protocol"
)

func renderCards(cards []poker.Card) string {
	if len(cards) == 0 {
		return "--"
	}
	parts := make([]string, len(cards))
	for i, card := range cards {
		parts[i] = card.String()
	}
	return strings.Join(parts, " ")
}

// renderProjection prints one seat's view of the table.
func renderProjection(w io.Writer, state *protocol.PlayerProjection) {
	fmt.Fprintf(w, "\nboard: %s   pot: %d\n", renderCards(state.CommunityCards), state.Pot)
	if len(state.HoleCards) > 0 {
		fmt.Fprintf(w, "your hand: %s\n", renderCards(state.HoleCards))
	}

	for _, player := range state.Players {
		markers := ""
		if player.SeatIndex == state.ButtonSeat {
			markers += " (button)"
		}
		if player.SeatIndex == state.MySeatIndex {
			markers += " (you)"
		}
		if state.PlayerToAct != nil && *state.PlayerToAct == player.SeatIndex {
			markers += " <- to act"
		}
		fmt.Fprintf(w, "  seat %d: stack %d  bet %d  %s%s\n",
			player.SeatIndex, player.Stack, player.CurrentBet, player.Status, markers)
	}

	if state.PlayerToAct != nil && *state.PlayerToAct == state.MySeatIndex {
		prompt := make([]string, 0, len(state.AvailableActions))
		for _, action := range state.AvailableActions {
			switch {
			case action == poker.ActionCall && state.AmountToCall != nil:
				prompt = append(prompt, fmt.Sprintf("call %d", *state.AmountToCall))
			case (action == poker.ActionBet || action == poker.ActionRaise) && state.ChipRange != nil:
				prompt = append(prompt, fmt.Sprintf("%s %d-%d", action, state.ChipRange.Min, state.ChipRange.Max))
			default:
				prompt = append(prompt, string(action))
			}
		}
		fmt.Fprintf(w, "your move: %s\n", strings.Join(prompt, ", "))
	}
}

// renderSettlement prints who collected what when a hand ends.
func renderSettlement(w io.Writer, winners []protocol.PotSettlement) {
	for _, winner := range winners {
		fmt.Fprintf(w, "seat %d collects %d\n", winner.SeatIndex, winner.Amount)
	}
}
