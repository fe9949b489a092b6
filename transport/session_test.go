// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"testing"
	"time"

	"github.com/peertable/peertable/signaling"
)

func TestHostSessionProducesOfferImmediately(t *testing.T) {
	offers := make(chan signaling.SessionDescription, 1)
	session, err := NewHostSession("alice", nil, SessionCallbacks{
		OnLocalDescription: func(d signaling.SessionDescription) { offers <- d },
	}, testLogger())
	if err != nil {
		t.Fatalf("creating host session: %v", err)
	}
	defer session.Close()

	select {
	case offer := <-offers:
		if offer.Type != "offer" || offer.SDP == "" {
			t.Fatalf("got %+v, want a non-empty offer", offer)
		}
	default:
		t.Fatal("no offer produced before NewHostSession returned")
	}
	if got := session.State(); got != SessionNegotiating {
		t.Errorf("state = %v, want negotiating", got)
	}
}

func TestMismatchedDescriptionsAreDropped(t *testing.T) {
	host, err := NewHostSession("alice", nil, SessionCallbacks{}, testLogger())
	if err != nil {
		t.Fatalf("creating host session: %v", err)
	}
	defer host.Close()

	player, err := NewPlayerSession(signaling.HostID, nil, SessionCallbacks{}, testLogger())
	if err != nil {
		t.Fatalf("creating player session: %v", err)
	}
	defer player.Close()

	// An offer on the offering side and an answer on the answering
	// side are both protocol violations; the session ignores them.
	if err := host.HandleOffer(signaling.SessionDescription{Type: "offer", SDP: "v=0"}); err != nil {
		t.Errorf("offer on offering side: %v, want silent drop", err)
	}
	if err := player.HandleAnswer(signaling.SessionDescription{Type: "answer", SDP: "v=0"}); err != nil {
		t.Errorf("answer on answering side: %v, want silent drop", err)
	}
	if host.State() != SessionNegotiating || player.State() != SessionNegotiating {
		t.Error("dropped descriptions must not change session state")
	}
}

func TestRemoteCandidatesBufferUntilDescription(t *testing.T) {
	player, err := NewPlayerSession(signaling.HostID, nil, SessionCallbacks{}, testLogger())
	if err != nil {
		t.Fatalf("creating player session: %v", err)
	}
	defer player.Close()

	for i := 0; i < 3; i++ {
		if err := player.AddRemoteCandidate(signaling.ICECandidate{Candidate: "candidate"}); err != nil {
			t.Fatalf("buffering candidate %d: %v", i, err)
		}
	}
	if got := player.PendingRemoteCandidates(); got != 3 {
		t.Errorf("pending candidates = %d, want 3", got)
	}
}

func TestClosedSessionDropsCandidates(t *testing.T) {
	closed := make(chan struct{}, 2)
	session, err := NewPlayerSession(signaling.HostID, nil, SessionCallbacks{
		OnClosed: func() { closed <- struct{}{} },
	}, testLogger())
	if err != nil {
		t.Fatalf("creating player session: %v", err)
	}

	session.Close()
	session.Close()

	if got := session.State(); got != SessionClosed {
		t.Fatalf("state = %v, want closed", got)
	}
	if len(closed) != 1 {
		t.Fatalf("OnClosed fired %d times, want exactly once", len(closed))
	}
	if err := session.AddRemoteCandidate(signaling.ICECandidate{Candidate: "late"}); err != nil {
		t.Errorf("candidate after close: %v, want silent drop", err)
	}
	if got := session.PendingRemoteCandidates(); got != 0 {
		t.Errorf("closed session buffered %d candidates", got)
	}
}

// TestNegotiationOverLoopback runs a real offer/answer/candidate
// exchange between two in-process sessions and verifies the game
// channel carries traffic both ways. Candidates for the player are
// deliberately delivered before the offer to exercise the buffer.
func TestNegotiationOverLoopback(t *testing.T) {
	if testing.Short() {
		t.Skip("real ICE negotiation in -short mode")
	}

	offers := make(chan signaling.SessionDescription, 1)
	answers := make(chan signaling.SessionDescription, 1)
	hostCandidates := make(chan signaling.ICECandidate, 64)
	playerCandidates := make(chan signaling.ICECandidate, 64)
	hostEstablished := make(chan Channel, 1)
	playerEstablished := make(chan Channel, 1)
	hostClosed := make(chan struct{}, 1)
	playerReceived := make(chan string, 4)
	hostReceived := make(chan string, 4)

	player, err := NewPlayerSession(signaling.HostID, nil, SessionCallbacks{
		OnLocalDescription: func(d signaling.SessionDescription) { answers <- d },
		OnLocalCandidate:   func(c signaling.ICECandidate) { playerCandidates <- c },
		OnEstablished: func(channel Channel) {
			channel.OnMessage(func(data []byte) { playerReceived <- string(data) })
			playerEstablished <- channel
		},
	}, testLogger())
	if err != nil {
		t.Fatalf("creating player session: %v", err)
	}
	defer player.Close()

	host, err := NewHostSession("alice", nil, SessionCallbacks{
		OnLocalDescription: func(d signaling.SessionDescription) { offers <- d },
		OnLocalCandidate:   func(c signaling.ICECandidate) { hostCandidates <- c },
		OnEstablished: func(channel Channel) {
			channel.OnMessage(func(data []byte) { hostReceived <- string(data) })
			hostEstablished <- channel
		},
		OnClosed: func() { hostClosed <- struct{}{} },
	}, testLogger())
	if err != nil {
		t.Fatalf("creating host session: %v", err)
	}
	defer host.Close()

	offer := <-offers

	// Hold the offer back until at least one host candidate has been
	// buffered by the player.
	select {
	case candidate := <-hostCandidates:
		if err := player.AddRemoteCandidate(candidate); err != nil {
			t.Fatalf("buffering early candidate: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("host produced no candidates")
	}
	if got := player.PendingRemoteCandidates(); got != 1 {
		t.Fatalf("pending candidates = %d, want 1 before offer applied", got)
	}

	if err := player.HandleOffer(offer); err != nil {
		t.Fatalf("applying offer: %v", err)
	}
	if got := player.PendingRemoteCandidates(); got != 0 {
		t.Fatalf("pending candidates = %d, want 0 after offer applied", got)
	}

	// Pump the remaining signaling until both sides establish.
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case answer := <-answers:
				if err := host.HandleAnswer(answer); err != nil {
					t.Errorf("applying answer: %v", err)
				}
			case candidate := <-hostCandidates:
				if err := player.AddRemoteCandidate(candidate); err != nil {
					t.Errorf("adding host candidate: %v", err)
				}
			case candidate := <-playerCandidates:
				if err := host.AddRemoteCandidate(candidate); err != nil {
					t.Errorf("adding player candidate: %v", err)
				}
			case <-done:
				return
			}
		}
	}()

	var hostChannel, playerChannel Channel
	for hostChannel == nil || playerChannel == nil {
		select {
		case hostChannel = <-hostEstablished:
		case playerChannel = <-playerEstablished:
		case <-time.After(30 * time.Second):
			t.Fatalf("negotiation did not complete (host=%v player=%v)", host.State(), player.State())
		}
	}
	if host.State() != SessionEstablished || player.State() != SessionEstablished {
		t.Fatalf("states = %v/%v, want established", host.State(), player.State())
	}

	if err := hostChannel.Send([]byte(`{"type":"game_end"}`)); err != nil {
		t.Fatalf("host send: %v", err)
	}
	select {
	case got := <-playerReceived:
		if got != `{"type":"game_end"}` {
			t.Fatalf("player received %q", got)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("host message never arrived")
	}

	if err := playerChannel.Send([]byte(`{"type":"player-action","action":"check"}`)); err != nil {
		t.Fatalf("player send: %v", err)
	}
	select {
	case got := <-hostReceived:
		if got != `{"type":"player-action","action":"check"}` {
			t.Fatalf("host received %q", got)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("player message never arrived")
	}

	// Closing the player retires the host side through channel close.
	player.Close()
	select {
	case <-hostClosed:
	case <-time.After(10 * time.Second):
		t.Fatal("host never observed the channel closing")
	}
}
