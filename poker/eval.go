// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

package poker

import (
	"fmt"

	handeval "github.com/paulhankin/poker"
)

// bestHands scores each eligible seat's best 7-card hand against the
// full board and returns the seats sharing the top score, in ascending
// seat order.
func (t *Table) bestHands(eligiblePlayers []int) ([]int, error) {
	if len(t.community) != 5 {
		return nil, fmt.Errorf("showdown with %d community cards", len(t.community))
	}

	best := int16(-1)
	var group []int
	for _, seatIndex := range eligiblePlayers {
		st := t.seats[seatIndex]
		if st == nil || len(st.holeCards) != 2 {
			continue
		}

		var hand [7]handeval.Card
		for cardIndex, card := range t.community {
			converted, err := evalCard(card)
			if err != nil {
				return nil, err
			}
			hand[cardIndex] = converted
		}
		for cardIndex, card := range st.holeCards {
			converted, err := evalCard(card)
			if err != nil {
				return nil, err
			}
			hand[5+cardIndex] = converted
		}

		score := handeval.Eval7(&hand)
		switch {
		case score > best:
			best = score
			group = []int{seatIndex}
		case score == best:
			group = append(group, seatIndex)
		}
	}
	return group, nil
}

// evalCard converts to the evaluator's representation, which counts
// the ace as rank 1.
func evalCard(card Card) (handeval.Card, error) {
	rank := int(card.Rank)
	if card.Rank == RankAce {
		rank = 1
	}
	converted, err := handeval.MakeCard(handeval.Suit(card.Suit), handeval.Rank(rank))
	if err != nil {
		var zero handeval.Card
		return zero, fmt.Errorf("converting %s: %w", card, err)
	}
	return converted, nil
}
