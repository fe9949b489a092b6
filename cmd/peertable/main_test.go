// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"strings"
	"testing"

	"github.com/peertable/peertable/poker"
	"github.com/peertable/peertable/protocol"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		line    string
		action  poker.Action
		amount  int
		wantErr bool
	}{
		{line: "fold", action: poker.ActionFold},
		{line: "  CHECK  ", action: poker.ActionCheck},
		{line: "call", action: poker.ActionCall},
		{line: "bet 40", action: poker.ActionBet, amount: 40},
		{line: "raise 120", action: poker.ActionRaise, amount: 120},
		{line: "", wantErr: true},
		{line: "call 10", wantErr: true},
		{line: "bet", wantErr: true},
		{line: "bet zero", wantErr: true},
		{line: "bet -5", wantErr: true},
		{line: "shove", wantErr: true},
	}

	for _, tt := range tests {
		action, amount, err := parseAction(tt.line)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseAction(%q): expected error, got %s %d", tt.line, action, amount)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseAction(%q): %v", tt.line, err)
			continue
		}
		if action != tt.action || amount != tt.amount {
			t.Errorf("parseAction(%q) = %s %d, want %s %d", tt.line, action, amount, tt.action, tt.amount)
		}
	}
}

func TestRenderProjection(t *testing.T) {
	actor := 1
	toCall := 10
	state := &protocol.PlayerProjection{
		MySeatIndex: 1,
		HoleCards: []poker.Card{
			{Rank: poker.RankAce, Suit: poker.SuitSpades},
			{Rank: poker.RankKing, Suit: poker.SuitHearts},
		},
		PlayerToAct:      &actor,
		AvailableActions: []poker.Action{poker.ActionFold, poker.ActionCall, poker.ActionRaise},
		ChipRange:        &poker.ChipRange{Min: 20, Max: 495},
		AmountToCall:     &toCall,
		ButtonSeat:       0,
		Pot:              15,
		Players: []protocol.PlayerInfo{
			{SeatIndex: 0, Stack: 495, CurrentBet: 5, Status: protocol.StatusActive},
			{SeatIndex: 1, Stack: 490, CurrentBet: 10, Status: protocol.StatusActive},
		},
	}

	var out strings.Builder
	renderProjection(&out, state)
	text := out.String()

	for _, want := range []string{
		"pot: 15",
		"(button)",
		"(you)",
		"<- to act",
		"call 10",
		"raise 20-495",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("rendered view missing %q:\n%s", want, text)
		}
	}
	// The board is empty preflop.
	if !strings.Contains(text, "board: --") {
		t.Errorf("expected an empty board marker:\n%s", text)
	}
}

func TestRenderProjectionHidesDecisionFieldsForBystander(t *testing.T) {
	actor := 0
	state := &protocol.PlayerProjection{
		MySeatIndex: 1,
		PlayerToAct: &actor,
		Players: []protocol.PlayerInfo{
			{SeatIndex: 0, Stack: 500, Status: protocol.StatusActive},
			{SeatIndex: 1, Stack: 500, Status: protocol.StatusActive},
		},
	}

	var out strings.Builder
	renderProjection(&out, state)
	if strings.Contains(out.String(), "your move") {
		t.Errorf("bystander view offered actions:\n%s", out.String())
	}
}
