// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol defines the JSON messages exchanged over an
// established data channel between the host and one player, and the
// per-seat projection of the authoritative table state they carry.
//
// Host to player: game-state, end-hand, game_end.
// Player to host: player-action.
// Both directions: ping and pong, which the liveness monitor consumes
// before messages reach the application layer.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/peertable/peertable/poker"
)

// Message type tags on the wire.
const (
	TypeGameState    = "game-state"
	TypeEndHand      = "end-hand"
	TypeGameEnd      = "game_end"
	TypePlayerAction = "player-action"
	TypePing         = "ping"
	TypePong         = "pong"
)

// PlayerStatus is the public state of a seat in a projection.
type PlayerStatus string

const (
	StatusActive PlayerStatus = "active"
	StatusFolded PlayerStatus = "folded"
	StatusAllIn  PlayerStatus = "all-in"
)

// PlayerInfo is the public view of one seated player. It never
// carries hole cards.
type PlayerInfo struct {
	SeatIndex  int          `json:"seatIndex"`
	Stack      int          `json:"stack"`
	CurrentBet int          `json:"currentBet"`
	Status     PlayerStatus `json:"status"`
}

// PlayerProjection is the complete per-seat view of the table. A
// projection built for seat S carries hole cards for S only; every
// other player appears through PlayerInfo's public fields.
type PlayerProjection struct {
	MySeatIndex      int              `json:"mySeatIndex"`
	HoleCards        []poker.Card     `json:"holeCards,omitempty"`
	CommunityCards   []poker.Card     `json:"communityCards"`
	PlayerToAct      *int             `json:"playerToAct,omitempty"`
	AvailableActions []poker.Action   `json:"availableActions,omitempty"`
	ChipRange        *poker.ChipRange `json:"chipRange,omitempty"`
	AmountToCall     *int             `json:"amountToCall,omitempty"`
	ButtonSeat       int              `json:"buttonSeat"`
	Pot              int              `json:"pot"`
	Players          []PlayerInfo     `json:"players"`
}

// PotSettlement is one seat's winnings at hand end.
type PotSettlement struct {
	SeatIndex int `json:"seatIndex"`
	Amount    int `json:"amount"`
}

// GameState carries a versioned projection. Versions are, per
// recipient, strictly increasing at the source; receivers keep a
// last-applied watermark and drop anything at or below it, so
// out-of-order arrivals never roll the view back.
type GameState struct {
	Type    string           `json:"type"`
	Version uint64           `json:"version"`
	State   PlayerProjection `json:"state"`
}

// EndHand announces the settlement for the hand that just finished.
type EndHand struct {
	Type    string          `json:"type"`
	Winners []PotSettlement `json:"winners"`
}

// GameEnd tells players the host is tearing the table down.
type GameEnd struct {
	Type string `json:"type"`
}

// PlayerAction is a player's fire-and-forget action request. BetSize
// is meaningful for bet and raise only.
type PlayerAction struct {
	Type    string       `json:"type"`
	Action  poker.Action `json:"action"`
	BetSize int          `json:"betSize,omitempty"`
}

// Ping and Pong are the liveness probes. Timestamp is the sender's
// unix-millisecond clock and is echoed for symmetry with the original
// protocol; receivers do not interpret it.
type Ping struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type Pong struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// EncodeGameEnd returns an encoded game_end message.
func EncodeGameEnd() ([]byte, error) {
	return json.Marshal(GameEnd{Type: TypeGameEnd})
}

// envelope peeks at the discriminating type tag.
type envelope struct {
	Type string `json:"type"`
}

// PeekType returns the message's type tag without decoding the body.
func PeekType(data []byte) (string, error) {
	var raw envelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", fmt.Errorf("decoding message envelope: %w", err)
	}
	if raw.Type == "" {
		return "", fmt.Errorf("message has no type tag")
	}
	return raw.Type, nil
}

// Decode parses a data-channel message into its typed form.
func Decode(data []byte) (any, error) {
	messageType, err := PeekType(data)
	if err != nil {
		return nil, err
	}

	var message any
	switch messageType {
	case TypeGameState:
		message = &GameState{}
	case TypeEndHand:
		message = &EndHand{}
	case TypeGameEnd:
		message = &GameEnd{}
	case TypePlayerAction:
		message = &PlayerAction{}
	case TypePing:
		message = &Ping{}
	case TypePong:
		message = &Pong{}
	default:
		return nil, fmt.Errorf("unknown message type %q", messageType)
	}
	if err := json.Unmarshal(data, message); err != nil {
		return nil, fmt.Errorf("decoding %s message: %w", messageType, err)
	}
	return message, nil
}
