// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/peertable/peertable/lib/clock"
	"github.com/peertable/peertable/poker"
	"github.com/peertable/peertable/protocol"
	"github.com/peertable/peertable/signaling"
	"github.com/peertable/peertable/transport"
)

// ErrGameStarted reports an operation that is only valid before the
// seat map is frozen.
var ErrGameStarted = errors.New("game already started")

// Options configure a Host.
type Options struct {
	RelayURL   string
	Room       string
	ICEServers []webrtc.ICEServer

	SmallBlind int
	BigBlind   int
	BuyIn      int
	MaxSeats   int

	// Rand drives shuffling. Nil seeds from the global source.
	Rand *rand.Rand

	// OnLocalMessage receives the host's own seat traffic: the host
	// plays seat 0, and its projections and settlements are delivered
	// here instead of over a network channel.
	OnLocalMessage func(data []byte)

	Clock  clock.Clock
	Logger *slog.Logger
}

// Host runs the authoritative side of one table session. It accepts
// joins through the relay, negotiates a peer session per player,
// freezes the seat map when the game starts, and from then on only
// moves chips through the synchronizer.
type Host struct {
	options  Options
	relay    *signaling.Client
	registry *transport.Registry
	sync     *Synchronizer
	logger   *slog.Logger

	mu                sync.Mutex
	establishedOrder  []string
	seatByParticipant map[string]int
	participantBySeat map[int]string
	started           bool
}

// New creates a host for a fresh table. Call Connect to open the
// relay connection and begin accepting joins.
func New(options Options) *Host {
	if options.Rand == nil {
		options.Rand = rand.New(rand.NewSource(rand.Int63()))
	}

	h := &Host{
		options:           options,
		logger:            options.Logger,
		seatByParticipant: make(map[string]int),
		participantBySeat: make(map[int]string),
	}

	table := poker.NewTable(options.SmallBlind, options.BigBlind, options.MaxSeats, options.Rand)
	h.sync = NewSynchronizer(table, options.Clock, h.sendToSeat, options.Logger)

	h.registry = transport.NewRegistry(h.newSession, options.Clock, transport.RegistryCallbacks{
		OnEstablished: h.participantEstablished,
		OnClosed:      h.participantClosed,
		OnMessage:     h.participantMessage,
	}, options.Logger)

	h.relay = signaling.NewClient(options.RelayURL, h.handleEnvelope, options.Logger)
	return h
}

// Connect opens the relay control connection under the reserved host
// identity.
func (h *Host) Connect(ctx context.Context) error {
	return h.relay.Connect(ctx, signaling.HostID, h.options.Room)
}

// Synchronizer exposes the table's serialized mutation surface.
func (h *Host) Synchronizer() *Synchronizer { return h.sync }

// Players returns the established players in join order, excluding
// the host itself.
func (h *Host) Players() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.establishedOrder...)
}

// StartGame freezes the seat map — the host at seat 0, then every
// established player in the order their channels opened — and buys
// everyone in. Joins arriving afterwards can still connect but never
// receive a seat.
func (h *Host) StartGame() error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return ErrGameStarted
	}
	players := append([]string(nil), h.establishedOrder...)
	if len(players)+1 > h.options.MaxSeats {
		h.mu.Unlock()
		return fmt.Errorf("%d players for %d seats", len(players)+1, h.options.MaxSeats)
	}
	h.started = true
	h.assignSeat(0, signaling.HostID)
	for index, participantID := range players {
		h.assignSeat(index+1, participantID)
	}
	h.mu.Unlock()

	if err := h.sync.Seat(0, h.options.BuyIn); err != nil {
		return err
	}
	for index := range players {
		if err := h.sync.Seat(index+1, h.options.BuyIn); err != nil {
			return err
		}
	}
	h.logger.Info("game started", "players", len(players)+1)
	return nil
}

// StartHand deals the next hand.
func (h *Host) StartHand() error {
	return h.sync.StartHand()
}

// Shutdown ends the session: players are told the game is over on a
// best-effort basis, every peer session is closed, and the relay
// connection is dropped.
func (h *Host) Shutdown() {
	h.sync.Shutdown()

	if data, err := protocol.EncodeGameEnd(); err == nil {
		h.registry.Broadcast(data)
		h.deliverLocal(data)
	}

	h.registry.CloseAll()
	h.relay.Disconnect()
	h.logger.Info("host shut down")
}

// newSession is the registry's session factory: it creates the
// offering side toward one player and routes the resulting offer and
// candidates back through the relay.
func (h *Host) newSession(participantID string, callbacks transport.SessionCallbacks) (*transport.PeerSession, error) {
	callbacks.OnLocalDescription = func(description signaling.SessionDescription) {
		h.sendEnvelope(signaling.TypeOffer, participantID, description)
	}
	callbacks.OnLocalCandidate = func(candidate signaling.ICECandidate) {
		h.sendEnvelope(signaling.TypeICECandidate, participantID, candidate)
	}
	return transport.NewHostSession(participantID, h.options.ICEServers, callbacks, h.logger)
}

// handleEnvelope processes relay traffic addressed to the host.
func (h *Host) handleEnvelope(envelope signaling.Envelope) {
	switch envelope.Type {
	case signaling.TypeJoin:
		if envelope.SenderID == "" {
			h.logger.Warn("dropping join without sender")
			return
		}
		if err := h.registry.OnJoin(envelope.SenderID); err != nil {
			h.logger.Error("creating session for join failed",
				"participant", envelope.SenderID, "error", err)
		}

	case signaling.TypeAnswer:
		session := h.registry.Session(envelope.SenderID)
		if session == nil {
			h.logger.Warn("dropping answer from unknown participant", "participant", envelope.SenderID)
			return
		}
		var description signaling.SessionDescription
		if err := signaling.DecodePayload(envelope, &description); err != nil {
			h.logger.Warn("dropping malformed answer", "participant", envelope.SenderID, "error", err)
			return
		}
		if err := session.HandleAnswer(description); err != nil {
			h.logger.Error("applying answer failed", "participant", envelope.SenderID, "error", err)
		}

	case signaling.TypeICECandidate:
		session := h.registry.Session(envelope.SenderID)
		if session == nil {
			// Candidates can only legitimately arrive for joined
			// players; anything else is a stray.
			h.logger.Warn("dropping candidate for unknown participant", "participant", envelope.SenderID)
			return
		}
		var candidate signaling.ICECandidate
		if err := signaling.DecodePayload(envelope, &candidate); err != nil {
			h.logger.Warn("dropping malformed candidate", "participant", envelope.SenderID, "error", err)
			return
		}
		if err := session.AddRemoteCandidate(candidate); err != nil {
			h.logger.Warn("adding candidate failed", "participant", envelope.SenderID, "error", err)
		}

	case signaling.TypeError:
		var payload signaling.ErrorPayload
		if err := signaling.DecodePayload(envelope, &payload); err == nil {
			h.logger.Error("relay reported error", "code", payload.Code, "message", payload.Message)
		}

	default:
		h.logger.Warn("dropping unexpected envelope", "type", envelope.Type)
	}
}

// participantEstablished records join order and announces the
// newcomer to everyone already connected.
func (h *Host) participantEstablished(participantID string) {
	h.mu.Lock()
	h.establishedOrder = append(h.establishedOrder, participantID)
	others := make([]string, 0, len(h.establishedOrder)-1)
	for _, other := range h.establishedOrder {
		if other != participantID {
			others = append(others, other)
		}
	}
	h.mu.Unlock()

	for _, other := range others {
		h.sendEnvelope(signaling.TypePlayerConnected, other, signaling.PlayerConnected{PlayerID: participantID})
	}
}

func (h *Host) participantClosed(participantID string) {
	h.mu.Lock()
	for index, other := range h.establishedOrder {
		if other == participantID {
			h.establishedOrder = append(h.establishedOrder[:index], h.establishedOrder[index+1:]...)
			break
		}
	}
	seatIndex, seated := h.seatByParticipant[participantID]
	h.mu.Unlock()

	// A seated player keeps their chips; their seat simply stops
	// producing actions until they are folded by the turn clock of a
	// future hand. Reconnection is out of scope for a session.
	if seated {
		h.logger.Warn("seated player disconnected", "participant", participantID, "seat", seatIndex)
	}
}

func (h *Host) participantMessage(participantID string, data []byte) {
	message, err := protocol.Decode(data)
	if err != nil {
		h.logger.Warn("dropping undecodable message", "participant", participantID, "error", err)
		return
	}
	action, ok := message.(*protocol.PlayerAction)
	if !ok {
		h.logger.Warn("dropping unexpected message from player",
			"participant", participantID, "type", fmt.Sprintf("%T", message))
		return
	}

	h.mu.Lock()
	seatIndex, seated := h.seatByParticipant[participantID]
	h.mu.Unlock()
	if !seated {
		h.logger.Info("dropping action from unseated participant", "participant", participantID)
		return
	}

	h.sync.Act(seatIndex, action.Action, action.BetSize)
}

// sendToSeat is the synchronizer's delivery path: seat 0 is the host
// itself, every other seat maps to a peer channel.
func (h *Host) sendToSeat(seatIndex int, data []byte) error {
	h.mu.Lock()
	participantID, ok := h.participantBySeat[seatIndex]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("no participant in seat %d", seatIndex)
	}
	if participantID == signaling.HostID {
		h.deliverLocal(data)
		return nil
	}
	return h.registry.SendTo(participantID, data)
}

func (h *Host) deliverLocal(data []byte) {
	if h.options.OnLocalMessage != nil {
		h.options.OnLocalMessage(data)
	}
}

func (h *Host) sendEnvelope(envelopeType, targetID string, payload any) {
	envelope, err := signaling.EncodePayload(envelopeType, targetID, payload)
	if err != nil {
		h.logger.Error("encoding envelope failed", "type", envelopeType, "error", err)
		return
	}
	if err := h.relay.Send(envelope); err != nil {
		h.logger.Warn("sending envelope failed", "type", envelopeType, "target", targetID, "error", err)
	}
}

// assignSeat records both directions of the seat map. Caller holds
// h.mu.
func (h *Host) assignSeat(seatIndex int, participantID string) {
	h.seatByParticipant[participantID] = seatIndex
	h.participantBySeat[seatIndex] = participantID
}
