// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

// Package poker implements the no-limit hold'em rules engine the host
// consumes: a table of seats with blinds, betting rounds, side pots,
// and showdown evaluation. The host treats it as an opaque component
// exposing deal/act/advance/query operations; nothing in this package
// knows about participants, transports, or projections.
package poker

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

// Action is a betting action.
type Action string

const (
	ActionFold  Action = "fold"
	ActionCheck Action = "check"
	ActionCall  Action = "call"
	ActionBet   Action = "bet"
	ActionRaise Action = "raise"
)

// Round identifies a betting street.
type Round int

const (
	RoundPreflop Round = iota
	RoundFlop
	RoundTurn
	RoundRiver
)

func (r Round) String() string {
	switch r {
	case RoundPreflop:
		return "preflop"
	case RoundFlop:
		return "flop"
	case RoundTurn:
		return "turn"
	case RoundRiver:
		return "river"
	default:
		return fmt.Sprintf("round(%d)", int(r))
	}
}

// ChipRange bounds the total a player may bet or raise to.
type ChipRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// LegalActions describes what the player to act may do. ChipRange is
// nil when neither bet nor raise is available.
type LegalActions struct {
	Actions   []Action
	ChipRange *ChipRange
}

// Pot is a main or side pot. EligiblePlayers holds the seat indices
// still contesting it, in ascending order.
type Pot struct {
	Size            int   `json:"size"`
	EligiblePlayers []int `json:"eligiblePlayers"`
}

// SeatView is a read-only snapshot of one occupied seat.
type SeatView struct {
	Stack      int  // chips behind
	BetSize    int  // committed this betting round
	TotalChips int  // stack plus current-round bet
	Folded     bool
	AllIn      bool
}

var (
	ErrSeatOccupied      = errors.New("seat occupied")
	ErrSeatOutOfRange    = errors.New("seat out of range")
	ErrHandInProgress    = errors.New("hand in progress")
	ErrNoHandInProgress  = errors.New("no hand in progress")
	ErrNotEnoughPlayers  = errors.New("need at least 2 players with chips")
	ErrBettingClosed     = errors.New("betting round not in progress")
	ErrBettingOpen       = errors.New("betting round still in progress")
	ErrRoundsIncomplete  = errors.New("betting rounds not completed")
	ErrIllegalAction     = errors.New("illegal action")
	ErrIllegalBetSize    = errors.New("illegal bet size")
)

// seat is the mutable per-seat state while a player is sitting.
type seat struct {
	stack     int
	betSize   int // committed this betting round
	totalBet  int // committed this hand, across rounds
	inHand    bool
	folded    bool
	allIn     bool
	acted     bool // acted since the last bet or raise this round
	holeCards []Card
}

// Table is the authoritative hold'em table. It is not safe for
// concurrent use; the host serializes every call through its
// synchronizer.
type Table struct {
	smallBlind int
	bigBlind   int
	rng        *rand.Rand

	seats  []*seat // nil entries are empty seats
	button int

	firstHandDealt         bool
	handInProgress         bool
	bettingRoundInProgress bool
	round                  Round
	playerToAct            int

	deck      []Card
	community []Card

	currentBet    int
	lastRaiseSize int

	// frozenPots and winners are set by Showdown and survive until the
	// next StartHand so settlement can be computed after the hand ends.
	frozenPots []Pot
	winners    [][]int
}

// NewTable creates a table with the given forced bets and seat count.
// The rand source drives shuffling; inject a seeded source for
// reproducible deals.
func NewTable(smallBlind, bigBlind, numSeats int, rng *rand.Rand) *Table {
	if smallBlind <= 0 || bigBlind < smallBlind {
		panic("poker: invalid blinds")
	}
	if numSeats < 2 {
		panic("poker: table needs at least 2 seats")
	}
	return &Table{
		smallBlind: smallBlind,
		bigBlind:   bigBlind,
		rng:        rng,
		seats:      make([]*seat, numSeats),
	}
}

// SitDown seats a player with the given buy-in. Seating during a hand
// is rejected; the mapping from participants to seats is fixed before
// the first deal.
func (t *Table) SitDown(seatIndex, buyIn int) error {
	if seatIndex < 0 || seatIndex >= len(t.seats) {
		return ErrSeatOutOfRange
	}
	if t.handInProgress {
		return ErrHandInProgress
	}
	if t.seats[seatIndex] != nil {
		return ErrSeatOccupied
	}
	if buyIn <= 0 {
		return errors.New("buy-in must be positive")
	}
	t.seats[seatIndex] = &seat{stack: buyIn}
	return nil
}

// StartHand deals a new hand: resets seats, advances the button,
// posts blinds, deals hole cards, and opens the preflop betting round.
func (t *Table) StartHand() error {
	if t.handInProgress {
		return ErrHandInProgress
	}

	var dealt []int
	for index, st := range t.seats {
		if st == nil {
			continue
		}
		st.betSize = 0
		st.totalBet = 0
		st.folded = false
		st.allIn = false
		st.acted = false
		st.holeCards = nil
		st.inHand = st.stack > 0
		if st.inHand {
			dealt = append(dealt, index)
		}
	}
	if len(dealt) < 2 {
		return ErrNotEnoughPlayers
	}

	t.frozenPots = nil
	t.winners = nil
	t.community = nil
	t.deck = newDeck(t.rng)

	if !t.firstHandDealt {
		t.button = dealt[0]
		t.firstHandDealt = true
	} else {
		t.button = t.nextInHand(t.button)
	}

	// Heads-up the button posts the small blind and acts first
	// preflop; otherwise the blinds sit left of the button.
	var smallBlindSeat, bigBlindSeat int
	if len(dealt) == 2 {
		smallBlindSeat = t.button
		bigBlindSeat = t.nextInHand(t.button)
	} else {
		smallBlindSeat = t.nextInHand(t.button)
		bigBlindSeat = t.nextInHand(smallBlindSeat)
	}
	t.postBlind(smallBlindSeat, t.smallBlind)
	t.postBlind(bigBlindSeat, t.bigBlind)

	for _, index := range dealt {
		st := t.seats[index]
		st.holeCards = []Card{t.draw(), t.draw()}
	}

	t.round = RoundPreflop
	t.currentBet = t.bigBlind
	t.lastRaiseSize = t.bigBlind
	t.handInProgress = true

	if len(dealt) == 2 {
		t.playerToAct = smallBlindSeat
	} else {
		t.playerToAct = t.nextInHand(bigBlindSeat)
	}
	if !t.eligible(t.playerToAct) {
		t.playerToAct = t.nextEligible(t.playerToAct)
	}
	t.bettingRoundInProgress = !t.roundComplete()
	return nil
}

// ActionTaken applies the player-to-act's action. For bet and raise,
// betSize is the total the player is betting to this round, matching
// the range from LegalActions.
func (t *Table) ActionTaken(action Action, betSize int) error {
	if !t.handInProgress {
		return ErrNoHandInProgress
	}
	if !t.bettingRoundInProgress {
		return ErrBettingClosed
	}

	seatIndex := t.playerToAct
	st := t.seats[seatIndex]

	switch action {
	case ActionFold:
		st.folded = true
		st.acted = true
		if t.remainingInHand() == 1 {
			// Everyone else folded; the hand ends with no showdown and
			// the last player standing collects every pot.
			pots := t.computePots()
			for _, pot := range pots {
				share := pot.Size / len(pot.EligiblePlayers)
				for _, winner := range pot.EligiblePlayers {
					t.seats[winner].stack += share
				}
			}
			t.frozenPots = pots
			t.bettingRoundInProgress = false
			t.handInProgress = false
			return nil
		}

	case ActionCheck:
		if st.betSize != t.currentBet {
			return ErrIllegalAction
		}
		st.acted = true

	case ActionCall:
		need := t.currentBet - st.betSize
		if need <= 0 || st.stack == 0 {
			return ErrIllegalAction
		}
		t.commit(st, min(need, st.stack))
		st.acted = true

	case ActionBet:
		if t.currentBet != 0 {
			return ErrIllegalAction
		}
		maxTotal := st.betSize + st.stack
		minTotal := min(t.bigBlind, maxTotal)
		if betSize < minTotal || betSize > maxTotal {
			return ErrIllegalBetSize
		}
		t.commit(st, betSize-st.betSize)
		t.lastRaiseSize = betSize
		t.currentBet = betSize
		st.acted = true
		t.reopenBetting(seatIndex)

	case ActionRaise:
		if t.currentBet == 0 {
			return ErrIllegalAction
		}
		maxTotal := st.betSize + st.stack
		minTotal := t.currentBet + t.lastRaiseSize
		if maxTotal <= t.currentBet {
			return ErrIllegalAction
		}
		// An all-in below the minimum raise is always allowed.
		if betSize != maxTotal && (betSize < minTotal || betSize > maxTotal) {
			return ErrIllegalBetSize
		}
		if betSize <= t.currentBet {
			return ErrIllegalBetSize
		}
		t.commit(st, betSize-st.betSize)
		t.lastRaiseSize = betSize - t.currentBet
		t.currentBet = betSize
		st.acted = true
		t.reopenBetting(seatIndex)

	default:
		return fmt.Errorf("%w: %q", ErrIllegalAction, action)
	}

	if t.roundComplete() {
		t.bettingRoundInProgress = false
	} else {
		t.playerToAct = t.nextEligible(seatIndex)
	}
	return nil
}

// EndBettingRound advances to the next street: deals the flop, turn,
// or river and opens the next betting round (or leaves it closed when
// at most one player can still act).
func (t *Table) EndBettingRound() error {
	if !t.handInProgress {
		return ErrNoHandInProgress
	}
	if t.bettingRoundInProgress {
		return ErrBettingOpen
	}
	if t.round == RoundRiver {
		return errors.New("river betting complete; call Showdown")
	}

	switch t.round {
	case RoundPreflop:
		t.community = append(t.community, t.draw(), t.draw(), t.draw())
	case RoundFlop, RoundTurn:
		t.community = append(t.community, t.draw())
	}
	t.round++

	for _, st := range t.seats {
		if st == nil {
			continue
		}
		st.betSize = 0
		st.acted = false
	}
	t.currentBet = 0
	t.lastRaiseSize = t.bigBlind

	first := t.nextEligible(t.button)
	if first >= 0 {
		t.playerToAct = first
	}
	t.bettingRoundInProgress = t.countEligible() >= 2
	return nil
}

// Showdown evaluates the hand after river betting completes, freezes
// the pot composition, records per-pot winner groups, and credits
// each winner its floor share of the pot.
func (t *Table) Showdown() error {
	if !t.handInProgress {
		return ErrNoHandInProgress
	}
	if t.bettingRoundInProgress {
		return ErrBettingOpen
	}
	if !t.AreBettingRoundsCompleted() {
		return ErrRoundsIncomplete
	}

	pots := t.computePots()
	winners := make([][]int, len(pots))
	for potIndex, pot := range pots {
		group, err := t.bestHands(pot.EligiblePlayers)
		if err != nil {
			return err
		}
		winners[potIndex] = group
		if len(group) == 0 {
			continue
		}
		share := pot.Size / len(group)
		for _, seatIndex := range group {
			t.seats[seatIndex].stack += share
		}
	}

	t.frozenPots = pots
	t.winners = winners
	t.handInProgress = false
	return nil
}

// Queries.

func (t *Table) IsHandInProgress() bool         { return t.handInProgress }
func (t *Table) IsBettingRoundInProgress() bool { return t.bettingRoundInProgress }

// AreBettingRoundsCompleted reports whether every street has been
// dealt and its betting closed.
func (t *Table) AreBettingRoundsCompleted() bool {
	return t.handInProgress && t.round == RoundRiver && !t.bettingRoundInProgress
}

// PlayerToAct returns the acting seat. Only meaningful while a betting
// round is in progress.
func (t *Table) PlayerToAct() int { return t.playerToAct }

func (t *Table) Button() int          { return t.button }
func (t *Table) RoundOfBetting() Round { return t.round }
func (t *Table) NumSeats() int        { return len(t.seats) }

// CommunityCards returns the board dealt so far.
func (t *Table) CommunityCards() []Card {
	out := make([]Card, len(t.community))
	copy(out, t.community)
	return out
}

// HoleCards returns per-seat hole cards; nil entries are seats that
// were empty or not dealt in.
func (t *Table) HoleCards() [][]Card {
	out := make([][]Card, len(t.seats))
	for index, st := range t.seats {
		if st == nil || st.holeCards == nil {
			continue
		}
		cards := make([]Card, len(st.holeCards))
		copy(cards, st.holeCards)
		out[index] = cards
	}
	return out
}

// Seats returns a snapshot of every seat; nil entries are empty.
func (t *Table) Seats() []*SeatView {
	out := make([]*SeatView, len(t.seats))
	for index, st := range t.seats {
		if st == nil {
			continue
		}
		out[index] = &SeatView{
			Stack:      st.stack,
			BetSize:    st.betSize,
			TotalChips: st.stack + st.betSize,
			Folded:     st.folded,
			AllIn:      st.allIn,
		}
	}
	return out
}

// HandPlayers returns seat snapshots for players dealt into the
// current or most recent hand; other entries are nil.
func (t *Table) HandPlayers() []*SeatView {
	out := t.Seats()
	for index, st := range t.seats {
		if st == nil || !st.inHand {
			out[index] = nil
		}
	}
	return out
}

// LegalActions returns the action set and chip range for the player
// to act.
func (t *Table) LegalActions() LegalActions {
	if !t.bettingRoundInProgress {
		return LegalActions{}
	}
	st := t.seats[t.playerToAct]

	legal := LegalActions{Actions: []Action{ActionFold}}
	if st.betSize == t.currentBet {
		legal.Actions = append(legal.Actions, ActionCheck)
	}
	if t.currentBet > st.betSize && st.stack > 0 {
		legal.Actions = append(legal.Actions, ActionCall)
	}

	maxTotal := st.betSize + st.stack
	if t.currentBet == 0 && st.stack > 0 {
		legal.Actions = append(legal.Actions, ActionBet)
		legal.ChipRange = &ChipRange{Min: min(t.bigBlind, maxTotal), Max: maxTotal}
	} else if t.currentBet > 0 && maxTotal > t.currentBet {
		legal.Actions = append(legal.Actions, ActionRaise)
		legal.ChipRange = &ChipRange{
			Min: min(t.currentBet+t.lastRaiseSize, maxTotal),
			Max: maxTotal,
		}
	}
	return legal
}

// Pots returns the current pot composition: contributions from every
// player dealt in, with eligibility restricted to players who have
// not folded. After a showdown the composition frozen at evaluation
// time is returned; it remains valid until the next StartHand.
func (t *Table) Pots() []Pot {
	if t.frozenPots != nil {
		out := make([]Pot, len(t.frozenPots))
		copy(out, t.frozenPots)
		return out
	}
	return t.computePots()
}

// Winners returns the per-pot winner seat groups recorded by the last
// Showdown, index-aligned with Pots. Nil when the last hand ended
// without a showdown.
func (t *Table) Winners() [][]int {
	if t.winners == nil {
		return nil
	}
	out := make([][]int, len(t.winners))
	for index, group := range t.winners {
		out[index] = append([]int(nil), group...)
	}
	return out
}

// Internal helpers.

func (t *Table) draw() Card {
	card := t.deck[len(t.deck)-1]
	t.deck = t.deck[:len(t.deck)-1]
	return card
}

func (t *Table) commit(st *seat, amount int) {
	st.stack -= amount
	st.betSize += amount
	st.totalBet += amount
	if st.stack == 0 {
		st.allIn = true
	}
}

func (t *Table) postBlind(seatIndex, amount int) {
	st := t.seats[seatIndex]
	t.commit(st, min(amount, st.stack))
}

// reopenBetting marks everyone except the aggressor as needing to act
// again.
func (t *Table) reopenBetting(aggressor int) {
	for index, st := range t.seats {
		if st == nil || index == aggressor {
			continue
		}
		st.acted = false
	}
}

func (t *Table) eligible(seatIndex int) bool {
	st := t.seats[seatIndex]
	return st != nil && st.inHand && !st.folded && !st.allIn
}

func (t *Table) countEligible() int {
	count := 0
	for index := range t.seats {
		if t.eligible(index) {
			count++
		}
	}
	return count
}

func (t *Table) remainingInHand() int {
	count := 0
	for _, st := range t.seats {
		if st != nil && st.inHand && !st.folded {
			count++
		}
	}
	return count
}

// roundComplete reports whether no eligible player still owes an
// action: everyone has acted since the last aggression and matched
// the current bet.
func (t *Table) roundComplete() bool {
	for index, st := range t.seats {
		if !t.eligible(index) {
			continue
		}
		if !st.acted || st.betSize < t.currentBet {
			return false
		}
	}
	return true
}

// nextInHand returns the next seat clockwise from seatIndex that was
// dealt into the hand.
func (t *Table) nextInHand(seatIndex int) int {
	for offset := 1; offset <= len(t.seats); offset++ {
		index := (seatIndex + offset) % len(t.seats)
		st := t.seats[index]
		if st != nil && st.inHand {
			return index
		}
	}
	return seatIndex
}

// nextEligible returns the next seat clockwise that can still act, or
// -1 when none can.
func (t *Table) nextEligible(seatIndex int) int {
	for offset := 1; offset <= len(t.seats); offset++ {
		index := (seatIndex + offset) % len(t.seats)
		if t.eligible(index) {
			return index
		}
	}
	return -1
}

// computePots builds the main and side pots from each dealt-in
// player's total contribution. Contributions are sliced only at
// all-in levels among players still contesting, plus one open pot at
// the highest live contribution: an unmatched live bet never opens a
// side pot, since its owner-to-be will match it or fold. Folded
// players' chips stay in whichever slice they reach but the folded
// player is never eligible.
func (t *Table) computePots() []Pot {
	var levels []int
	seen := map[int]bool{}
	top := 0
	for _, st := range t.seats {
		if st == nil || !st.inHand || st.folded || st.totalBet == 0 {
			continue
		}
		if st.allIn && !seen[st.totalBet] {
			seen[st.totalBet] = true
			levels = append(levels, st.totalBet)
		}
		if st.totalBet > top {
			top = st.totalBet
		}
	}
	if top == 0 {
		return nil
	}
	if !seen[top] {
		levels = append(levels, top)
	}
	sort.Ints(levels)

	var pots []Pot
	previous := 0
	for _, level := range levels {
		size := 0
		var eligiblePlayers []int
		for index, st := range t.seats {
			if st == nil || !st.inHand {
				continue
			}
			size += min(st.totalBet, level) - min(st.totalBet, previous)
			// A live player below the level is still eligible: they
			// must match the level or fold before the pot is decided.
			if !st.folded && (st.totalBet >= level || !st.allIn) {
				eligiblePlayers = append(eligiblePlayers, index)
			}
		}
		if size > 0 {
			pots = append(pots, Pot{Size: size, EligiblePlayers: eligiblePlayers})
		}
		previous = level
	}

	// Chips committed beyond the highest contesting level (a fold
	// after larger streets-earlier bets) belong to the last pot.
	leftover := 0
	for _, st := range t.seats {
		if st == nil || !st.inHand {
			continue
		}
		if st.totalBet > previous {
			leftover += st.totalBet - previous
		}
	}
	if leftover > 0 && len(pots) > 0 {
		pots[len(pots)-1].Size += leftover
	}
	return pots
}
