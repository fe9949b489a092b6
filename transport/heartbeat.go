// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/peertable/peertable/lib/clock"
	"github.com/peertable/peertable/protocol"
)

const (
	// heartbeatInterval is how often a ping is sent.
	heartbeatInterval = 3 * time.Second

	// maxMissedPongs is how many unanswered pings are tolerated. The
	// interval after the tolerance is exhausted declares the peer dead.
	maxMissedPongs = 3
)

// Heartbeat monitors liveness of one channel. It owns the channel's
// inbound dispatch: pings are answered, pongs reset the miss counter,
// and everything else is forwarded to the application handler, so the
// application never sees probe traffic.
//
// When a tick pushes the unanswered count past maxMissedPongs, the
// monitor sends that final ping, stops itself, and fires onTimeout
// exactly once — on the same tick. The timeout callback is expected
// to retire the session through the registry; the monitor itself
// touches nothing but the channel.
type Heartbeat struct {
	channel   Channel
	clk       clock.Clock
	onTimeout func()
	logger    *slog.Logger

	mu          sync.Mutex
	appHandler  func([]byte)
	missedPongs int
	ticker      *clock.Ticker
	done        chan struct{}
	stopped     bool
}

// NewHeartbeat wraps channel with a liveness monitor. onTimeout may
// be nil. Call OnMessage to receive application traffic, then Start.
func NewHeartbeat(channel Channel, clk clock.Clock, onTimeout func(), logger *slog.Logger) *Heartbeat {
	return &Heartbeat{
		channel:   channel,
		clk:       clk,
		onTimeout: onTimeout,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// OnMessage registers the handler for non-probe traffic.
func (h *Heartbeat) OnMessage(handler func([]byte)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appHandler = handler
}

// Start takes over the channel's inbound dispatch and begins pinging.
func (h *Heartbeat) Start() {
	h.channel.OnMessage(h.handleMessage)

	h.mu.Lock()
	h.ticker = h.clk.NewTicker(heartbeatInterval)
	ticker := h.ticker
	h.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				h.tick()
			case <-h.done:
				return
			}
		}
	}()
}

// Stop halts pinging. Safe to call repeatedly; a stopped monitor
// never fires onTimeout.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopLocked()
}

func (h *Heartbeat) stopLocked() {
	if h.stopped {
		return
	}
	h.stopped = true
	if h.ticker != nil {
		h.ticker.Stop()
	}
	close(h.done)
}

// MissedPongs reports the current count of unanswered pings.
func (h *Heartbeat) MissedPongs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.missedPongs
}

func (h *Heartbeat) tick() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.missedPongs++
	missed := h.missedPongs
	dead := missed > maxMissedPongs
	if dead {
		h.stopLocked()
	}
	h.mu.Unlock()

	// The fatal tick still sends its ping before declaring the peer
	// dead, as the peer may be waking up.
	h.send(protocol.Ping{Type: protocol.TypePing, Timestamp: h.clk.Now().UnixMilli()})

	if dead {
		h.logger.Warn("peer unresponsive, declaring dead", "missedPongs", missed)
		if h.onTimeout != nil {
			h.onTimeout()
		}
	}
}

func (h *Heartbeat) handleMessage(data []byte) {
	messageType, err := protocol.PeekType(data)
	if err != nil {
		h.logger.Warn("dropping undecodable message", "error", err)
		return
	}

	switch messageType {
	case protocol.TypePing:
		h.send(protocol.Pong{Type: protocol.TypePong, Timestamp: h.clk.Now().UnixMilli()})
	case protocol.TypePong:
		h.mu.Lock()
		h.missedPongs = 0
		h.mu.Unlock()
	default:
		h.mu.Lock()
		handler := h.appHandler
		h.mu.Unlock()
		if handler != nil {
			handler(data)
		}
	}
}

func (h *Heartbeat) send(message any) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}
	if err := h.channel.Send(data); err != nil {
		h.logger.Debug("heartbeat send failed", "error", err)
	}
}
