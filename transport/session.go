// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/peertable/peertable/signaling"
)

// SessionState is the lifecycle of a PeerSession. Transitions are
// one-way: negotiating → established → closed, and closed is terminal.
type SessionState int32

const (
	SessionNegotiating SessionState = iota
	SessionEstablished
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionNegotiating:
		return "negotiating"
	case SessionEstablished:
		return "established"
	case SessionClosed:
		return "closed"
	default:
		return fmt.Sprintf("SessionState(%d)", int32(s))
	}
}

// gameChannelLabel is the single ordered, reliable data channel each
// session carries.
const gameChannelLabel = "game-data"

// SessionCallbacks connect a PeerSession to its owner. Local
// descriptions and candidates are handed over for relay delivery as
// they are produced; candidates arrive one at a time in discovery
// order. OnEstablished fires only when the data channel opens, and
// OnClosed fires exactly once when the session dies.
type SessionCallbacks struct {
	OnLocalDescription func(signaling.SessionDescription)
	OnLocalCandidate   func(signaling.ICECandidate)
	OnEstablished      func(Channel)
	OnClosed           func()
}

// PeerSession owns the negotiated transport to one remote participant
// and the data channel on it. The host side is the offerer: creating
// the session opens the channel and immediately produces an offer.
// The player side answers the host's offer and adopts the channel the
// host opened.
//
// Establishment is keyed to the data channel opening, never to ICE
// connectivity. ICE "failed" and "disconnected" are transient path
// signals and are deliberately ignored; only data-channel close (or
// the liveness monitor acting on the registry) retires a session.
type PeerSession struct {
	participantID string
	offerer       bool
	callbacks     SessionCallbacks
	logger        *slog.Logger

	mu             sync.Mutex
	state          SessionState
	connection     *webrtc.PeerConnection
	channel        *dataChannel
	remoteDescSet  bool
	pendingRemote  []webrtc.ICECandidateInit
	closedCallback bool
}

// NewHostSession creates the offering side of a session for one
// joined participant. Before it returns, the callbacks have received
// the local offer; candidates follow asynchronously.
func NewHostSession(participantID string, iceServers []webrtc.ICEServer, callbacks SessionCallbacks, logger *slog.Logger) (*PeerSession, error) {
	s, err := newSession(participantID, true, iceServers, callbacks, logger)
	if err != nil {
		return nil, err
	}

	ordered := true
	channel, err := s.connection.CreateDataChannel(gameChannelLabel, &webrtc.DataChannelInit{
		Ordered: &ordered,
	})
	if err != nil {
		s.connection.Close()
		return nil, fmt.Errorf("creating data channel for %s: %w", participantID, err)
	}
	s.adoptChannel(channel)

	offer, err := s.connection.CreateOffer(nil)
	if err != nil {
		s.connection.Close()
		return nil, fmt.Errorf("creating offer for %s: %w", participantID, err)
	}
	if err := s.connection.SetLocalDescription(offer); err != nil {
		s.connection.Close()
		return nil, fmt.Errorf("setting local description for %s: %w", participantID, err)
	}

	s.logger.Info("peer session negotiating", "participant", participantID, "role", "offerer")
	if callbacks.OnLocalDescription != nil {
		callbacks.OnLocalDescription(signaling.SessionDescription{Type: "offer", SDP: offer.SDP})
	}
	return s, nil
}

// NewPlayerSession creates the answering side of a session toward the
// host. It produces nothing until the host's offer arrives via
// HandleOffer.
func NewPlayerSession(hostID string, iceServers []webrtc.ICEServer, callbacks SessionCallbacks, logger *slog.Logger) (*PeerSession, error) {
	s, err := newSession(hostID, false, iceServers, callbacks, logger)
	if err != nil {
		return nil, err
	}

	s.connection.OnDataChannel(func(channel *webrtc.DataChannel) {
		if channel.Label() != gameChannelLabel {
			s.logger.Warn("ignoring unexpected data channel", "label", channel.Label())
			return
		}
		s.adoptChannel(channel)
	})

	s.logger.Info("peer session negotiating", "participant", hostID, "role", "answerer")
	return s, nil
}

func newSession(participantID string, offerer bool, iceServers []webrtc.ICEServer, callbacks SessionCallbacks, logger *slog.Logger) (*PeerSession, error) {
	// Loopback candidates are needed when both ends run on one
	// machine, which is the common local-table and test setup.
	settingEngine := webrtc.SettingEngine{}
	settingEngine.SetIncludeLoopbackCandidate(true)
	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))

	connection, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, fmt.Errorf("creating peer connection for %s: %w", participantID, err)
	}

	s := &PeerSession{
		participantID: participantID,
		offerer:       offerer,
		callbacks:     callbacks,
		logger:        logger,
		state:         SessionNegotiating,
		connection:    connection,
	}

	// Trickle ICE: hand each candidate over as it is discovered.
	// pion invokes this serially, so discovery order is preserved.
	connection.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		if s.callbacks.OnLocalCandidate == nil {
			return
		}
		init := candidate.ToJSON()
		s.callbacks.OnLocalCandidate(signaling.ICECandidate{
			Candidate:     init.Candidate,
			SDPMid:        init.SDPMid,
			SDPMLineIndex: init.SDPMLineIndex,
		})
	})

	connection.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		// failed/disconnected left alone on purpose: a transport-level
		// reconnect must not force renegotiation.
		s.logger.Info("ICE state change", "participant", participantID, "state", state.String())
	})

	return s, nil
}

// ParticipantID returns the remote participant's identity.
func (s *PeerSession) ParticipantID() string { return s.participantID }

// State returns the session's current lifecycle state.
func (s *PeerSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Channel returns the game channel, or nil before establishment.
func (s *PeerSession) Channel() Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channel == nil {
		return nil
	}
	return s.channel
}

// HandleOffer applies the remote offer and responds with an answer
// through the callbacks. Offers arriving on the offering side are
// logged and dropped.
func (s *PeerSession) HandleOffer(description signaling.SessionDescription) error {
	if s.offerer {
		s.logger.Warn("dropping offer received on offering side", "participant", s.participantID)
		return nil
	}
	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: description.SDP}
	if err := s.applyRemoteDescription(remote); err != nil {
		return err
	}

	answer, err := s.connection.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("creating answer for %s: %w", s.participantID, err)
	}
	if err := s.connection.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("setting local description for %s: %w", s.participantID, err)
	}
	if s.callbacks.OnLocalDescription != nil {
		s.callbacks.OnLocalDescription(signaling.SessionDescription{Type: "answer", SDP: answer.SDP})
	}
	return nil
}

// HandleAnswer applies the remote answer to a previously produced
// offer. Answers arriving on the answering side are logged and
// dropped.
func (s *PeerSession) HandleAnswer(description signaling.SessionDescription) error {
	if !s.offerer {
		s.logger.Warn("dropping answer received on answering side", "participant", s.participantID)
		return nil
	}
	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: description.SDP}
	return s.applyRemoteDescription(remote)
}

// applyRemoteDescription sets the remote description and replays any
// candidates buffered while it was missing, in arrival order.
func (s *PeerSession) applyRemoteDescription(remote webrtc.SessionDescription) error {
	if err := s.connection.SetRemoteDescription(remote); err != nil {
		return fmt.Errorf("setting remote description for %s: %w", s.participantID, err)
	}

	s.mu.Lock()
	s.remoteDescSet = true
	pending := s.pendingRemote
	s.pendingRemote = nil
	s.mu.Unlock()

	for _, candidate := range pending {
		if err := s.connection.AddICECandidate(candidate); err != nil {
			s.logger.Warn("replaying buffered ICE candidate failed",
				"participant", s.participantID, "error", err)
		}
	}
	return nil
}

// AddRemoteCandidate applies a relayed ICE candidate, buffering it in
// FIFO order while the remote description is still missing.
func (s *PeerSession) AddRemoteCandidate(candidate signaling.ICECandidate) error {
	init := webrtc.ICECandidateInit{
		Candidate:     candidate.Candidate,
		SDPMid:        candidate.SDPMid,
		SDPMLineIndex: candidate.SDPMLineIndex,
	}

	s.mu.Lock()
	if s.state == SessionClosed {
		s.mu.Unlock()
		return nil
	}
	if !s.remoteDescSet {
		s.pendingRemote = append(s.pendingRemote, init)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.connection.AddICECandidate(init); err != nil {
		return fmt.Errorf("adding ICE candidate for %s: %w", s.participantID, err)
	}
	return nil
}

// PendingRemoteCandidates reports how many candidates are buffered
// waiting for a remote description.
func (s *PeerSession) PendingRemoteCandidates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pendingRemote)
}

// adoptChannel wires the game channel into the session lifecycle.
// The session becomes established only when the channel opens.
func (s *PeerSession) adoptChannel(raw *webrtc.DataChannel) {
	wrapped := newDataChannel(raw)

	raw.OnOpen(func() {
		s.mu.Lock()
		if s.state != SessionNegotiating {
			s.mu.Unlock()
			raw.Close()
			return
		}
		s.state = SessionEstablished
		s.channel = wrapped
		s.mu.Unlock()

		s.logger.Info("peer session established", "participant", s.participantID)
		if s.callbacks.OnEstablished != nil {
			s.callbacks.OnEstablished(wrapped)
		}
	})

	raw.OnClose(func() {
		s.logger.Info("data channel closed", "participant", s.participantID)
		s.Close()
	})
}

// Close retires the session. Idempotent; fires OnClosed exactly once.
func (s *PeerSession) Close() {
	s.mu.Lock()
	if s.state == SessionClosed {
		s.mu.Unlock()
		return
	}
	s.state = SessionClosed
	channel := s.channel
	fireClosed := !s.closedCallback
	s.closedCallback = true
	s.mu.Unlock()

	if channel != nil {
		channel.fireClose()
	}
	s.connection.Close()

	if fireClosed && s.callbacks.OnClosed != nil {
		s.callbacks.OnClosed()
	}
}
