// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/peertable/peertable/lib/clock"
)

// ErrNotConnected reports a point-to-point send to a participant with
// no established session.
var ErrNotConnected = errors.New("participant not connected")

// SessionFactory creates the peer session for one joined participant.
// The host supplies it so the registry stays ignorant of signaling;
// implementations must pass the given callbacks through to the
// session so lifecycle transitions reach the registry.
type SessionFactory func(participantID string, callbacks SessionCallbacks) (*PeerSession, error)

// RegistryCallbacks notify the registry's owner. OnEstablished and
// OnClosed fire exactly once per session, OnClosed only for sessions
// that were established. OnMessage delivers application traffic,
// already stripped of probe messages.
type RegistryCallbacks struct {
	OnEstablished func(participantID string)
	OnClosed      func(participantID string)
	OnMessage     func(participantID string, data []byte)
}

// Registry tracks every live peer session on the host. It is the
// single owner of session lifecycles for the whole game session and
// outlives any view of the roster: joins create sessions, channel
// opens promote them to the roster, and channel closes or liveness
// timeouts retire them.
type Registry struct {
	factory   SessionFactory
	clk       clock.Clock
	callbacks RegistryCallbacks
	logger    *slog.Logger

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	session     *PeerSession
	channel     Channel
	heartbeat   *Heartbeat
	established bool
	closed      bool
}

// NewRegistry returns an empty registry.
func NewRegistry(factory SessionFactory, clk clock.Clock, callbacks RegistryCallbacks, logger *slog.Logger) *Registry {
	return &Registry{
		factory:   factory,
		clk:       clk,
		callbacks: callbacks,
		logger:    logger,
		entries:   make(map[string]*registryEntry),
	}
}

// OnJoin creates a peer session for a newly joined participant. A
// join for a participant that already has a session is ignored, not
// an error: the relay may redeliver, and a stale player retry must
// not clobber a live negotiation.
func (r *Registry) OnJoin(participantID string) error {
	r.mu.Lock()
	if _, ok := r.entries[participantID]; ok {
		r.mu.Unlock()
		r.logger.Info("ignoring duplicate join", "participant", participantID)
		return nil
	}
	// Reserve the slot before releasing the lock so a racing join
	// sees it.
	entry := &registryEntry{}
	r.entries[participantID] = entry
	r.mu.Unlock()

	session, err := r.factory(participantID, SessionCallbacks{
		OnEstablished: func(channel Channel) { r.sessionEstablished(participantID, channel) },
		OnClosed:      func() { r.sessionClosed(participantID) },
	})
	if err != nil {
		r.mu.Lock()
		delete(r.entries, participantID)
		r.mu.Unlock()
		return fmt.Errorf("creating session for %s: %w", participantID, err)
	}

	r.mu.Lock()
	entry.session = session
	r.mu.Unlock()
	return nil
}

// Session returns the live session for a participant, or nil. Used
// to route relayed answers and candidates.
func (r *Registry) Session(participantID string) *PeerSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.entries[participantID]
	if entry == nil {
		return nil
	}
	return entry.session
}

// Participants returns the established roster, sorted.
func (r *Registry) Participants() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var roster []string
	for id, entry := range r.entries {
		if entry.established && !entry.closed {
			roster = append(roster, id)
		}
	}
	sort.Strings(roster)
	return roster
}

// Broadcast sends data to every established participant. A failed
// send is logged and does not stop delivery to the others.
func (r *Registry) Broadcast(data []byte) {
	r.mu.Lock()
	channels := make(map[string]Channel)
	for id, entry := range r.entries {
		if entry.established && !entry.closed {
			channels[id] = entry.channel
		}
	}
	r.mu.Unlock()

	for id, channel := range channels {
		if err := channel.Send(data); err != nil {
			r.logger.Warn("broadcast to participant failed", "participant", id, "error", err)
		}
	}
}

// SendTo sends data to one established participant.
func (r *Registry) SendTo(participantID string, data []byte) error {
	r.mu.Lock()
	entry := r.entries[participantID]
	if entry == nil || !entry.established || entry.closed {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotConnected, participantID)
	}
	channel := entry.channel
	r.mu.Unlock()

	return channel.Send(data)
}

// Retire forcibly closes one participant's session. The liveness
// monitor calls this on timeout.
func (r *Registry) Retire(participantID string) {
	r.mu.Lock()
	entry := r.entries[participantID]
	r.mu.Unlock()
	if entry == nil || entry.session == nil {
		return
	}
	entry.session.Close()
}

// CloseAll closes every session and empties the registry. Used on
// host-initiated game end.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*PeerSession, 0, len(r.entries))
	for _, entry := range r.entries {
		if entry.session != nil {
			sessions = append(sessions, entry.session)
		}
	}
	r.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}

	r.mu.Lock()
	r.entries = make(map[string]*registryEntry)
	r.mu.Unlock()
}

func (r *Registry) sessionEstablished(participantID string, channel Channel) {
	r.mu.Lock()
	entry := r.entries[participantID]
	if entry == nil || entry.established || entry.closed {
		r.mu.Unlock()
		return
	}
	entry.established = true
	entry.channel = channel

	heartbeat := NewHeartbeat(channel, r.clk, func() {
		r.logger.Warn("liveness timeout, retiring participant", "participant", participantID)
		r.Retire(participantID)
	}, r.logger)
	entry.heartbeat = heartbeat
	r.mu.Unlock()

	heartbeat.OnMessage(func(data []byte) {
		if r.callbacks.OnMessage != nil {
			r.callbacks.OnMessage(participantID, data)
		}
	})
	heartbeat.Start()

	r.logger.Info("participant established", "participant", participantID)
	if r.callbacks.OnEstablished != nil {
		r.callbacks.OnEstablished(participantID)
	}
}

func (r *Registry) sessionClosed(participantID string) {
	r.mu.Lock()
	entry := r.entries[participantID]
	if entry == nil || entry.closed {
		r.mu.Unlock()
		return
	}
	entry.closed = true
	wasEstablished := entry.established
	heartbeat := entry.heartbeat
	delete(r.entries, participantID)
	r.mu.Unlock()

	if heartbeat != nil {
		heartbeat.Stop()
	}

	r.logger.Info("participant retired", "participant", participantID)
	if wasEstablished && r.callbacks.OnClosed != nil {
		r.callbacks.OnClosed(participantID)
	}
}
