// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

// Package host implements the authoritative side of a table session:
// the state synchronizer that owns the rules engine, and the Host
// that bootstraps player connections through the relay and feeds the
// synchronizer.
package host

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/peertable/peertable/lib/clock"
	"github.com/peertable/peertable/poker"
	"github.com/peertable/peertable/protocol"
)

// roundAdvanceDelay is how long the table lingers on a finished
// betting round before dealing the next street or running the
// showdown, so players see the closing action before the board moves.
const roundAdvanceDelay = 500 * time.Millisecond

// SendFunc delivers one encoded message to the participant in a seat.
// Failures are the synchronizer's to log, never to propagate: a dead
// recipient must not stall the table.
type SendFunc func(seatIndex int, data []byte) error

// Synchronizer is the single owner of the authoritative table. Every
// mutation funnels through its mutex: apply to the engine, bump the
// version counter, and push fresh per-seat projections — exactly one
// broadcast per version, all inside the critical section, so no two
// versions can ever interleave on the wire in the wrong order.
type Synchronizer struct {
	clk    clock.Clock
	send   SendFunc
	logger *slog.Logger

	mu             sync.Mutex
	table          *poker.Table
	version        uint64
	seated         []int
	advanceTimer   *clock.Timer
	settlementSent bool
	closed         bool
}

// NewSynchronizer wraps a table. The table must not be touched by
// anyone else afterwards.
func NewSynchronizer(table *poker.Table, clk clock.Clock, send SendFunc, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		clk:    clk,
		send:   send,
		logger: logger,
		table:  table,
	}
}

// Version returns the current state version.
func (s *Synchronizer) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Seat sits a participant down with a buy-in and announces the new
// roster to everyone.
func (s *Synchronizer) Seat(seatIndex, buyIn int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.table.SitDown(seatIndex, buyIn); err != nil {
		return fmt.Errorf("seating participant at %d: %w", seatIndex, err)
	}
	s.seated = append(s.seated, seatIndex)
	sort.Ints(s.seated)
	s.commitLocked()
	return nil
}

// StartHand deals the next hand. Any settlement from the previous
// hand is cleared.
func (s *Synchronizer) StartHand() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelAdvanceLocked()
	if err := s.table.StartHand(); err != nil {
		return fmt.Errorf("starting hand: %w", err)
	}
	s.settlementSent = false
	s.commitLocked()
	return nil
}

// Act applies a participant's action. Out-of-turn and out-of-phase
// actions are dropped without a version change or broadcast: they are
// usually benign races against a projection already in flight and
// self-correct on the next broadcast, so the sender is not told.
func (s *Synchronizer) Act(seatIndex int, action poker.Action, betSize int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.table.IsHandInProgress() || !s.table.IsBettingRoundInProgress() {
		s.logger.Info("dropping action outside betting round",
			"seat", seatIndex, "action", action)
		return
	}
	if s.table.PlayerToAct() != seatIndex {
		s.logger.Info("dropping out-of-turn action",
			"seat", seatIndex, "actor", s.table.PlayerToAct(), "action", action)
		return
	}

	if err := s.table.ActionTaken(action, betSize); err != nil {
		s.logger.Info("dropping illegal action",
			"seat", seatIndex, "action", action, "betSize", betSize, "error", err)
		return
	}

	s.commitLocked()

	if !s.table.IsHandInProgress() {
		// Everyone else folded.
		s.broadcastSettlementLocked()
		return
	}
	if !s.table.IsBettingRoundInProgress() {
		s.scheduleAdvanceLocked()
	}
}

// EndBettingRound deals the next street immediately, outside the
// scheduled delay. The timer path uses the same transition.
func (s *Synchronizer) EndBettingRound() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelAdvanceLocked()
	return s.endBettingRoundLocked()
}

// Showdown evaluates the hand immediately, outside the scheduled
// delay.
func (s *Synchronizer) Showdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelAdvanceLocked()
	return s.showdownLocked()
}

// Shutdown stops the synchronizer: the pending round-advance timer is
// cancelled and every later call becomes a no-op.
func (s *Synchronizer) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cancelAdvanceLocked()
}

func (s *Synchronizer) endBettingRoundLocked() error {
	if err := s.table.EndBettingRound(); err != nil {
		return fmt.Errorf("advancing betting round: %w", err)
	}
	s.commitLocked()
	if !s.table.IsBettingRoundInProgress() {
		// All-in runout: nobody can act, keep the streets coming.
		s.scheduleAdvanceLocked()
	}
	return nil
}

func (s *Synchronizer) showdownLocked() error {
	if err := s.table.Showdown(); err != nil {
		return fmt.Errorf("running showdown: %w", err)
	}
	s.commitLocked()
	s.broadcastSettlementLocked()
	return nil
}

// advance is the delayed round transition. It re-checks the table
// under the lock because the world may have moved while the timer was
// pending.
func (s *Synchronizer) advance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.table.IsHandInProgress() || s.table.IsBettingRoundInProgress() {
		return
	}

	var err error
	if s.table.AreBettingRoundsCompleted() {
		err = s.showdownLocked()
	} else {
		err = s.endBettingRoundLocked()
	}
	if err != nil {
		s.logger.Error("scheduled round advance failed", "error", err)
	}
}

func (s *Synchronizer) scheduleAdvanceLocked() {
	s.cancelAdvanceLocked()
	s.advanceTimer = s.clk.AfterFunc(roundAdvanceDelay, s.advance)
}

func (s *Synchronizer) cancelAdvanceLocked() {
	if s.advanceTimer != nil {
		s.advanceTimer.Stop()
		s.advanceTimer = nil
	}
}

// commitLocked increments the version and pushes the projection for
// that version to every seated participant. Callers hold s.mu, which
// is what makes "at most one broadcast per version" hold.
func (s *Synchronizer) commitLocked() {
	if s.closed {
		return
	}
	s.version++

	for _, seatIndex := range s.seated {
		state := protocol.GameState{
			Type:    protocol.TypeGameState,
			Version: s.version,
			State:   buildProjection(s.table, seatIndex),
		}
		data, err := json.Marshal(state)
		if err != nil {
			s.logger.Error("encoding projection failed", "seat", seatIndex, "error", err)
			continue
		}
		if err := s.send(seatIndex, data); err != nil {
			s.logger.Warn("pushing projection failed",
				"seat", seatIndex, "version", s.version, "error", err)
		}
	}
}

// broadcastSettlementLocked announces the finished hand's settlement.
// At most once per hand; StartHand re-arms it.
func (s *Synchronizer) broadcastSettlementLocked() {
	if s.closed || s.settlementSent {
		return
	}
	s.settlementSent = true

	settlement := computeSettlement(s.table)
	message := protocol.EndHand{Type: protocol.TypeEndHand, Winners: settlement}
	data, err := json.Marshal(message)
	if err != nil {
		s.logger.Error("encoding settlement failed", "error", err)
		return
	}
	for _, seatIndex := range s.seated {
		if err := s.send(seatIndex, data); err != nil {
			s.logger.Warn("pushing settlement failed", "seat", seatIndex, "error", err)
		}
	}
}

// computeSettlement turns the engine's pot and winner records into
// per-seat amounts.
func computeSettlement(table *poker.Table) []protocol.PotSettlement {
	return settle(table.Pots(), table.Winners())
}

// settle distributes each pot. After a showdown (winners non-nil)
// each pot's size is split by floor division among its winner group,
// matched pot index to group index; remainders stay undistributed.
// When the hand ended with everyone folding, each pot's single
// eligible seat collects it whole.
func settle(pots []poker.Pot, winners [][]int) []protocol.PotSettlement {
	amounts := make(map[int]int)

	if winners != nil {
		for potIndex, pot := range pots {
			group := winners[potIndex]
			if len(group) == 0 {
				continue
			}
			share := pot.Size / len(group)
			for _, seatIndex := range group {
				amounts[seatIndex] += share
			}
		}
	} else {
		for _, pot := range pots {
			share := pot.Size / len(pot.EligiblePlayers)
			for _, seatIndex := range pot.EligiblePlayers {
				amounts[seatIndex] += share
			}
		}
	}

	seatIndexes := make([]int, 0, len(amounts))
	for seatIndex := range amounts {
		seatIndexes = append(seatIndexes, seatIndex)
	}
	sort.Ints(seatIndexes)

	settlement := make([]protocol.PotSettlement, 0, len(seatIndexes))
	for _, seatIndex := range seatIndexes {
		settlement = append(settlement, protocol.PotSettlement{
			SeatIndex: seatIndex,
			Amount:    amounts[seatIndex],
		})
	}
	return settlement
}
