// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/peertable/peertable/lib/clock"
	"github.com/peertable/peertable/poker"
	"github.com/peertable/peertable/protocol"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// syncHarness captures everything the synchronizer pushes, per seat.
// Delivery is synchronous, so tests read captures immediately after
// each mutation.
type syncHarness struct {
	clk   *clock.FakeClock
	table *poker.Table
	sync  *Synchronizer

	mu   sync.Mutex
	sent map[int][][]byte
}

func newSyncHarness(t *testing.T, numSeats int, seed int64) *syncHarness {
	t.Helper()
	h := &syncHarness{
		clk:  clock.Fake(time.Unix(1000, 0)),
		sent: make(map[int][][]byte),
	}
	h.table = poker.NewTable(5, 10, numSeats, rand.New(rand.NewSource(seed)))
	h.sync = NewSynchronizer(h.table, h.clk, func(seatIndex int, data []byte) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		buf := make([]byte, len(data))
		copy(buf, data)
		h.sent[seatIndex] = append(h.sent[seatIndex], buf)
		return nil
	}, testLogger())
	return h
}

func (h *syncHarness) seatPlayers(t *testing.T, count, buyIn int) {
	t.Helper()
	for seatIndex := 0; seatIndex < count; seatIndex++ {
		if err := h.sync.Seat(seatIndex, buyIn); err != nil {
			t.Fatalf("seating %d: %v", seatIndex, err)
		}
	}
}

// gameStates decodes every game-state pushed to a seat, in order.
func (h *syncHarness) gameStates(t *testing.T, seatIndex int) []protocol.GameState {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	var states []protocol.GameState
	for _, data := range h.sent[seatIndex] {
		messageType, err := protocol.PeekType(data)
		if err != nil {
			t.Fatalf("undecodable push: %v", err)
		}
		if messageType != protocol.TypeGameState {
			continue
		}
		var state protocol.GameState
		if err := json.Unmarshal(data, &state); err != nil {
			t.Fatalf("decoding game-state: %v", err)
		}
		states = append(states, state)
	}
	return states
}

func (h *syncHarness) endHands(t *testing.T, seatIndex int) []protocol.EndHand {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	var settlements []protocol.EndHand
	for _, data := range h.sent[seatIndex] {
		if messageType, _ := protocol.PeekType(data); messageType != protocol.TypeEndHand {
			continue
		}
		var settlement protocol.EndHand
		if err := json.Unmarshal(data, &settlement); err != nil {
			t.Fatalf("decoding end-hand: %v", err)
		}
		settlements = append(settlements, settlement)
	}
	return settlements
}

func (h *syncHarness) latestState(t *testing.T, seatIndex int) protocol.GameState {
	t.Helper()
	states := h.gameStates(t, seatIndex)
	if len(states) == 0 {
		t.Fatalf("seat %d received no game-state", seatIndex)
	}
	return states[len(states)-1]
}

func TestVersionIncrementsOncePerMutation(t *testing.T) {
	h := newSyncHarness(t, 2, 1)
	h.seatPlayers(t, 2, 500)
	if err := h.sync.StartHand(); err != nil {
		t.Fatalf("start hand: %v", err)
	}
	h.sync.Act(h.table.PlayerToAct(), poker.ActionCall, 0)

	if got := h.sync.Version(); got != 4 {
		t.Fatalf("version = %d after 4 mutations, want 4", got)
	}

	// Each seat observes strictly increasing versions with no
	// duplicates, and both seats converge on the same final version.
	for seatIndex := 0; seatIndex < 2; seatIndex++ {
		states := h.gameStates(t, seatIndex)
		previous := uint64(0)
		for _, state := range states {
			if state.Version <= previous {
				t.Fatalf("seat %d saw version %d after %d", seatIndex, state.Version, previous)
			}
			previous = state.Version
		}
		if previous != 4 {
			t.Errorf("seat %d final version = %d, want 4", seatIndex, previous)
		}
	}
}

func TestSeatBroadcastsOnlyToSeated(t *testing.T) {
	h := newSyncHarness(t, 3, 1)
	if err := h.sync.Seat(0, 500); err != nil {
		t.Fatalf("seat: %v", err)
	}

	if got := len(h.gameStates(t, 0)); got != 1 {
		t.Errorf("seat 0 received %d states, want 1", got)
	}
	if got := len(h.gameStates(t, 1)); got != 0 {
		t.Errorf("unseated seat 1 received %d states, want 0", got)
	}
}

func TestOutOfTurnActionIsIgnored(t *testing.T) {
	h := newSyncHarness(t, 2, 1)
	h.seatPlayers(t, 2, 500)
	if err := h.sync.StartHand(); err != nil {
		t.Fatalf("start hand: %v", err)
	}

	actor := h.table.PlayerToAct()
	other := 1 - actor
	versionBefore := h.sync.Version()
	h.mu.Lock()
	pushesBefore := len(h.sent[0]) + len(h.sent[1])
	h.mu.Unlock()

	h.sync.Act(other, poker.ActionCall, 0)

	if got := h.sync.Version(); got != versionBefore {
		t.Errorf("version moved %d -> %d on out-of-turn action", versionBefore, got)
	}
	h.mu.Lock()
	pushesAfter := len(h.sent[0]) + len(h.sent[1])
	h.mu.Unlock()
	if pushesAfter != pushesBefore {
		t.Errorf("out-of-turn action produced %d pushes", pushesAfter-pushesBefore)
	}

	// The rightful actor is unaffected by the dropped action.
	h.sync.Act(actor, poker.ActionCall, 0)
	if got := h.sync.Version(); got != versionBefore+1 {
		t.Errorf("in-turn action after drop: version = %d, want %d", got, versionBefore+1)
	}
}

func TestFoldSettlementReturnsBlindsToRemainingSeat(t *testing.T) {
	h := newSyncHarness(t, 2, 1)
	h.seatPlayers(t, 2, 500)
	if err := h.sync.StartHand(); err != nil {
		t.Fatalf("start hand: %v", err)
	}

	// Heads-up the button posts the small blind and acts first; its
	// fold ends the hand and the big blind collects both blinds.
	h.sync.Act(0, poker.ActionFold, 0)

	for seatIndex := 0; seatIndex < 2; seatIndex++ {
		settlements := h.endHands(t, seatIndex)
		if len(settlements) != 1 {
			t.Fatalf("seat %d received %d settlements, want 1", seatIndex, len(settlements))
		}
		want := []protocol.PotSettlement{{SeatIndex: 1, Amount: 15}}
		if !reflect.DeepEqual(settlements[0].Winners, want) {
			t.Fatalf("settlement = %+v, want %+v", settlements[0].Winners, want)
		}
	}

	// The settlement is broadcast once per hand, and the next hand
	// re-arms it.
	h.sync.Act(1, poker.ActionFold, 0)
	if got := len(h.endHands(t, 0)); got != 1 {
		t.Fatalf("settlement broadcast %d times, want 1", got)
	}
	if err := h.sync.StartHand(); err != nil {
		t.Fatalf("second hand: %v", err)
	}
	h.sync.Act(h.table.PlayerToAct(), poker.ActionFold, 0)
	if got := len(h.endHands(t, 0)); got != 2 {
		t.Fatalf("settlements after second fold = %d, want 2", got)
	}
}

func TestDelayedAdvanceDealsStreetsAndRunsShowdown(t *testing.T) {
	h := newSyncHarness(t, 2, 7)
	h.seatPlayers(t, 2, 500)
	if err := h.sync.StartHand(); err != nil {
		t.Fatalf("start hand: %v", err)
	}

	// Preflop: button calls, big blind checks. The round closes but
	// the flop waits out the scheduled delay.
	h.sync.Act(0, poker.ActionCall, 0)
	h.sync.Act(1, poker.ActionCheck, 0)

	if state := h.latestState(t, 0); state.State.PlayerToAct != nil {
		t.Fatalf("playerToAct = %v while waiting for flop, want nil", *state.State.PlayerToAct)
	}
	if got := len(h.latestState(t, 0).State.CommunityCards); got != 0 {
		t.Fatalf("flop dealt before the delay elapsed: %d cards", got)
	}

	h.clk.Advance(roundAdvanceDelay)
	if got := len(h.latestState(t, 0).State.CommunityCards); got != 3 {
		t.Fatalf("community after flop = %d cards, want 3", got)
	}
	if state := h.latestState(t, 0); state.State.PlayerToAct == nil || *state.State.PlayerToAct != 1 {
		t.Fatal("big blind must act first after the flop")
	}

	// Check down the remaining streets.
	for _, wantCards := range []int{4, 5} {
		h.sync.Act(1, poker.ActionCheck, 0)
		h.sync.Act(0, poker.ActionCheck, 0)
		h.clk.Advance(roundAdvanceDelay)
		if got := len(h.latestState(t, 0).State.CommunityCards); got != wantCards {
			t.Fatalf("community = %d cards, want %d", got, wantCards)
		}
	}

	// River betting is closed; the next delay runs the showdown.
	h.sync.Act(1, poker.ActionCheck, 0)
	h.sync.Act(0, poker.ActionCheck, 0)
	h.clk.Advance(roundAdvanceDelay)

	if h.table.IsHandInProgress() {
		t.Fatal("hand still in progress after showdown delay")
	}
	settlements := h.endHands(t, 0)
	if len(settlements) != 1 {
		t.Fatalf("received %d settlements, want 1", len(settlements))
	}
	settled := 0
	for _, winner := range settlements[0].Winners {
		settled += winner.Amount
	}
	if settled != 20 {
		t.Errorf("settled %d chips, want the 20-chip pot", settled)
	}

	// Chip conservation across the whole hand.
	total := 0
	for _, view := range h.table.Seats() {
		total += view.TotalChips
	}
	if total != 1000 {
		t.Errorf("total chips = %d, want 1000", total)
	}
}

func TestShutdownCancelsPendingAdvance(t *testing.T) {
	h := newSyncHarness(t, 2, 1)
	h.seatPlayers(t, 2, 500)
	if err := h.sync.StartHand(); err != nil {
		t.Fatalf("start hand: %v", err)
	}
	h.sync.Act(0, poker.ActionCall, 0)
	h.sync.Act(1, poker.ActionCheck, 0)

	h.sync.Shutdown()
	h.mu.Lock()
	pushesBefore := len(h.sent[0]) + len(h.sent[1])
	h.mu.Unlock()

	h.clk.Advance(10 * roundAdvanceDelay)

	h.mu.Lock()
	pushesAfter := len(h.sent[0]) + len(h.sent[1])
	h.mu.Unlock()
	if pushesAfter != pushesBefore {
		t.Errorf("shutdown synchronizer pushed %d messages", pushesAfter-pushesBefore)
	}
}

func TestSettlementFloorDivision(t *testing.T) {
	// Showdown: pot matched to its winner group by index.
	got := settle(
		[]poker.Pot{{Size: 100, EligiblePlayers: []int{0, 1}}},
		[][]int{{0}},
	)
	if want := []protocol.PotSettlement{{SeatIndex: 0, Amount: 100}}; !reflect.DeepEqual(got, want) {
		t.Errorf("single winner: got %+v, want %+v", got, want)
	}

	// Split pot: 101 splits 50/50, the odd chip stays undistributed.
	got = settle(
		[]poker.Pot{{Size: 101, EligiblePlayers: []int{0, 1}}},
		[][]int{{0, 1}},
	)
	want := []protocol.PotSettlement{{SeatIndex: 0, Amount: 50}, {SeatIndex: 1, Amount: 50}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("split pot: got %+v, want %+v", got, want)
	}

	// Fold-ended hand: no winner groups, each pot goes to its single
	// eligible seat.
	got = settle(
		[]poker.Pot{{Size: 15, EligiblePlayers: []int{1}}},
		nil,
	)
	if want := []protocol.PotSettlement{{SeatIndex: 1, Amount: 15}}; !reflect.DeepEqual(got, want) {
		t.Errorf("fold settlement: got %+v, want %+v", got, want)
	}

	// Side pots accumulate per seat across pots.
	got = settle(
		[]poker.Pot{
			{Size: 120, EligiblePlayers: []int{0, 1, 2}},
			{Size: 120, EligiblePlayers: []int{0, 2}},
		},
		[][]int{{1}, {0, 2}},
	)
	want = []protocol.PotSettlement{
		{SeatIndex: 0, Amount: 60},
		{SeatIndex: 1, Amount: 120},
		{SeatIndex: 2, Amount: 60},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("side pots: got %+v, want %+v", got, want)
	}
}

// TestProjectionsNeverLeakForeignHoleCards plays randomized hands and
// asserts no pushed projection ever contains another seat's hole
// cards, byte-for-byte.
func TestProjectionsNeverLeakForeignHoleCards(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		numSeats := 2 + rng.Intn(3)

		h := newSyncHarness(t, numSeats, seed)
		h.seatPlayers(t, numSeats, 200+rng.Intn(400))
		if err := h.sync.StartHand(); err != nil {
			t.Fatalf("seed %d: start hand: %v", seed, err)
		}
		holeCards := h.table.HoleCards()

		for step := 0; step < 40 && h.table.IsHandInProgress(); step++ {
			if !h.table.IsBettingRoundInProgress() {
				h.clk.Advance(roundAdvanceDelay)
				continue
			}
			actor := h.table.PlayerToAct()
			legal := h.table.LegalActions()
			action := legal.Actions[rng.Intn(len(legal.Actions))]
			betSize := 0
			if action == poker.ActionBet || action == poker.ActionRaise {
				betSize = legal.ChipRange.Min + rng.Intn(legal.ChipRange.Max-legal.ChipRange.Min+1)
			}
			h.sync.Act(actor, action, betSize)
		}

		h.mu.Lock()
		for seatIndex, pushes := range h.sent {
			for otherSeat, cards := range holeCards {
				if otherSeat == seatIndex || cards == nil {
					continue
				}
				for _, card := range cards {
					cardJSON, err := json.Marshal(card)
					if err != nil {
						t.Fatalf("marshal card: %v", err)
					}
					for _, push := range pushes {
						if messageType, _ := protocol.PeekType(push); messageType != protocol.TypeGameState {
							continue
						}
						if bytes.Contains(push, cardJSON) {
							t.Fatalf("seed %d: projection for seat %d leaks seat %d's card %s: %s",
								seed, seatIndex, otherSeat, cardJSON, push)
						}
					}
				}
			}
		}
		h.mu.Unlock()
	}
}
