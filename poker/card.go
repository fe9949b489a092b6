// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

package poker

import (
	"encoding/json"
	"fmt"
)

// Suit is a card suit. The zero-based order matches the wire encoding
// used by the data-channel protocol.
type Suit uint8

const (
	SuitClubs Suit = iota
	SuitDiamonds
	SuitHearts
	SuitSpades
)

var suitNames = [...]string{"clubs", "diamonds", "hearts", "spades"}

func (s Suit) String() string {
	if int(s) < len(suitNames) {
		return suitNames[s]
	}
	return fmt.Sprintf("suit(%d)", uint8(s))
}

// Rank is a card rank, 2 through 14 with the ace high.
type Rank uint8

const (
	RankTwo Rank = iota + 2
	RankThree
	RankFour
	RankFive
	RankSix
	RankSeven
	RankEight
	RankNine
	RankTen
	RankJack
	RankQueen
	RankKing
	RankAce
)

var rankNames = map[Rank]string{
	RankTwo: "2", RankThree: "3", RankFour: "4", RankFive: "5",
	RankSix: "6", RankSeven: "7", RankEight: "8", RankNine: "9",
	RankTen: "T", RankJack: "J", RankQueen: "Q", RankKing: "K",
	RankAce: "A",
}

func (r Rank) String() string {
	if name, ok := rankNames[r]; ok {
		return name
	}
	return fmt.Sprintf("rank(%d)", uint8(r))
}

// Card is a playing card. Its JSON form is the object the data-channel
// protocol carries: {"rank":"A","suit":"spades"}.
type Card struct {
	Rank Rank
	Suit Suit
}

func (c Card) String() string { return c.Rank.String() + c.Suit.String() }

type cardJSON struct {
	Rank string `json:"rank"`
	Suit string `json:"suit"`
}

func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(cardJSON{Rank: c.Rank.String(), Suit: c.Suit.String()})
}

func (c *Card) UnmarshalJSON(data []byte) error {
	var raw cardJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	rank, ok := rankFromName(raw.Rank)
	if !ok {
		return fmt.Errorf("unknown card rank %q", raw.Rank)
	}
	suit, ok := suitFromName(raw.Suit)
	if !ok {
		return fmt.Errorf("unknown card suit %q", raw.Suit)
	}
	c.Rank = rank
	c.Suit = suit
	return nil
}

func rankFromName(name string) (Rank, bool) {
	for rank, rankName := range rankNames {
		if rankName == name {
			return rank, true
		}
	}
	return 0, false
}

func suitFromName(name string) (Suit, bool) {
	for index, suitName := range suitNames {
		if suitName == name {
			return Suit(index), true
		}
	}
	return 0, false
}
