// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

package poker

import "math/rand"

// newDeck returns a full 52-card deck shuffled with the supplied
// source. The table owns the source so deals are reproducible in
// tests; production wiring seeds it from the process entropy the
// caller chooses.
func newDeck(r *rand.Rand) []Card {
	deck := make([]Card, 0, 52)
	for suit := SuitClubs; suit <= SuitSpades; suit++ {
		for rank := RankTwo; rank <= RankAce; rank++ {
			deck = append(deck, Card{Rank: rank, Suit: suit})
		}
	}
	r.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
	return deck
}
