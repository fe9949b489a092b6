// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"github.com/peertable/peertable/poker"
	"github.com/peertable/peertable/protocol"
)

// buildProjection derives the view of the table that seatIndex is
// allowed to see. Hole cards of every other seat are withheld, and
// the decision fields (available actions, chip range, amount to call)
// are present only on the projection of the seat whose turn it is.
func buildProjection(table *poker.Table, seatIndex int) protocol.PlayerProjection {
	projection := protocol.PlayerProjection{
		MySeatIndex:    seatIndex,
		CommunityCards: table.CommunityCards(),
		ButtonSeat:     table.Button(),
	}

	if cards := table.HoleCards()[seatIndex]; cards != nil {
		projection.HoleCards = cards
	}

	seats := table.Seats()
	currentBet := 0
	for index, view := range seats {
		if view == nil {
			continue
		}
		if view.BetSize > currentBet {
			currentBet = view.BetSize
		}
		projection.Players = append(projection.Players, protocol.PlayerInfo{
			SeatIndex:  index,
			Stack:      view.Stack,
			CurrentBet: view.BetSize,
			Status:     seatStatus(view),
		})
	}

	for _, pot := range table.Pots() {
		projection.Pot += pot.Size
	}

	if table.IsBettingRoundInProgress() {
		actor := table.PlayerToAct()
		projection.PlayerToAct = &actor

		if actor == seatIndex {
			legal := table.LegalActions()
			projection.AvailableActions = legal.Actions
			projection.ChipRange = legal.ChipRange
			if toCall := currentBet - seats[seatIndex].BetSize; toCall > 0 {
				projection.AmountToCall = &toCall
			}
		}
	}

	return projection
}

func seatStatus(view *poker.SeatView) protocol.PlayerStatus {
	switch {
	case view.Folded:
		return protocol.StatusFolded
	case view.AllIn:
		return protocol.StatusAllIn
	default:
		return protocol.StatusActive
	}
}
