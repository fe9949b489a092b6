// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

// Package player implements the joining side of a table session: the
// relay-bootstrapped connection to the host and the state consumer
// that tracks the host's projections.
package player

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/peertable/peertable/poker"
	"github.com/peertable/peertable/protocol"
)

// Consumer applies the host's pushes to a local view. Projections are
// complete snapshots, so applying one is plain replacement — no merge
// logic. A per-connection version watermark drops anything that
// arrives at or below the last applied version, which keeps delivery
// monotonic even if the transport reorders.
type Consumer struct {
	send     func(data []byte) error
	onUpdate func()
	logger   *slog.Logger

	mu          sync.Mutex
	state       *protocol.PlayerProjection
	lastVersion uint64
	settlement  []protocol.PotSettlement
	gameEnded   bool
}

// NewConsumer creates a consumer. send carries action requests to the
// host; onUpdate (optional) fires after every applied message.
func NewConsumer(send func(data []byte) error, onUpdate func(), logger *slog.Logger) *Consumer {
	return &Consumer{
		send:     send,
		onUpdate: onUpdate,
		logger:   logger,
	}
}

// HandleMessage applies one inbound data-channel message.
func (c *Consumer) HandleMessage(data []byte) {
	message, err := protocol.Decode(data)
	if err != nil {
		c.logger.Warn("dropping undecodable message", "error", err)
		return
	}

	switch m := message.(type) {
	case *protocol.GameState:
		c.applyState(m)
	case *protocol.EndHand:
		c.applySettlement(m)
	case *protocol.GameEnd:
		c.mu.Lock()
		c.gameEnded = true
		c.mu.Unlock()
		c.logger.Info("host ended the game")
		c.notify()
	default:
		c.logger.Warn("dropping unexpected message", "type", fmt.Sprintf("%T", message))
	}
}

func (c *Consumer) applyState(state *protocol.GameState) {
	c.mu.Lock()
	if state.Version <= c.lastVersion {
		c.mu.Unlock()
		c.logger.Debug("dropping stale projection",
			"version", state.Version, "watermark", c.lastVersion)
		return
	}
	c.lastVersion = state.Version
	projection := state.State
	c.state = &projection

	// A fresh projection with a pending decision means the next hand
	// is underway; the previous hand's settlement is stale.
	if projection.PlayerToAct != nil {
		c.settlement = nil
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Consumer) applySettlement(settlement *protocol.EndHand) {
	c.mu.Lock()
	mySeat := -1
	if c.state != nil {
		mySeat = c.state.MySeatIndex
	}
	for _, winner := range settlement.Winners {
		if winner.SeatIndex == mySeat {
			c.settlement = settlement.Winners
			break
		}
	}
	c.mu.Unlock()
	c.notify()
}

// TakeAction sends an action request to the host. Fire-and-forget:
// acceptance shows up as the next projection, rejection as silence.
func (c *Consumer) TakeAction(action poker.Action, betSize int) error {
	data, err := json.Marshal(protocol.PlayerAction{
		Type:    protocol.TypePlayerAction,
		Action:  action,
		BetSize: betSize,
	})
	if err != nil {
		return fmt.Errorf("encoding action: %w", err)
	}
	if err := c.send(data); err != nil {
		return fmt.Errorf("sending action: %w", err)
	}
	return nil
}

// State returns the last applied projection, or nil before the first
// push arrives.
func (c *Consumer) State() *protocol.PlayerProjection {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == nil {
		return nil
	}
	projection := *c.state
	return &projection
}

// Version returns the watermark: the version of the last applied
// projection.
func (c *Consumer) Version() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastVersion
}

// Settlement returns the most recent settlement naming this
// participant's seat, or nil once a new hand's projection arrives.
func (c *Consumer) Settlement() []protocol.PotSettlement {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.PotSettlement(nil), c.settlement...)
}

// GameEnded reports whether the host announced the end of the game.
func (c *Consumer) GameEnded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gameEnded
}

func (c *Consumer) notify() {
	if c.onUpdate != nil {
		c.onUpdate()
	}
}
