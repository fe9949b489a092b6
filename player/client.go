// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

package player

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/peertable/peertable/lib/clock"
	"github.com/peertable/peertable/signaling"
	"github.com/peertable/peertable/transport"
)

// Options configure a player Client.
type Options struct {
	RelayURL   string
	Room       string
	Identity   string
	ICEServers []webrtc.ICEServer

	// OnUpdate fires after every applied state change.
	OnUpdate func()

	// OnDisconnected fires once when the session to the host dies,
	// whether by channel close, liveness timeout, or a fatal relay
	// error.
	OnDisconnected func()

	Clock  clock.Clock
	Logger *slog.Logger
}

// Client is one player's end of a session: a relay connection used
// only to bootstrap, the peer session to the host, the liveness
// monitor on its channel, and the state consumer.
type Client struct {
	options  Options
	relay    *signaling.Client
	consumer *Consumer
	logger   *slog.Logger

	mu        sync.Mutex
	session   *transport.PeerSession
	channel   transport.Channel
	heartbeat *transport.Heartbeat

	disconnectedOnce sync.Once
}

// reportDisconnected fires OnDisconnected at most once, regardless of
// which path killed the session.
func (c *Client) reportDisconnected() {
	c.disconnectedOnce.Do(func() {
		if c.options.OnDisconnected != nil {
			c.options.OnDisconnected()
		}
	})
}

// NewClient creates a player client. Call Connect to join a room.
func NewClient(options Options) *Client {
	c := &Client{
		options: options,
		logger:  options.Logger,
	}
	c.consumer = NewConsumer(c.sendToHost, options.OnUpdate, options.Logger)
	c.relay = signaling.NewClient(options.RelayURL, c.handleEnvelope, options.Logger)
	return c
}

// Consumer returns the client's state consumer.
func (c *Client) Consumer() *Consumer { return c.consumer }

// Connect opens the relay connection, announces the join, and waits
// for the host's offer in the background. Establishment is reported
// through OnUpdate once projections start arriving.
func (c *Client) Connect(ctx context.Context) error {
	session, err := transport.NewPlayerSession(signaling.HostID, c.options.ICEServers, transport.SessionCallbacks{
		OnLocalDescription: func(description signaling.SessionDescription) {
			c.sendEnvelope(signaling.TypeAnswer, signaling.HostID, description)
		},
		OnLocalCandidate: func(candidate signaling.ICECandidate) {
			c.sendEnvelope(signaling.TypeICECandidate, signaling.HostID, candidate)
		},
		OnEstablished: c.channelEstablished,
		OnClosed:      c.sessionClosed,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("creating peer session: %w", err)
	}

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	if err := c.relay.Connect(ctx, c.options.Identity, c.options.Room); err != nil {
		session.Close()
		return err
	}
	if err := c.relay.Send(signaling.Envelope{Type: signaling.TypeJoin}); err != nil {
		session.Close()
		c.relay.Disconnect()
		return fmt.Errorf("announcing join: %w", err)
	}
	return nil
}

// Connected reports whether the channel to the host is established.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel != nil
}

// Disconnect tears everything down. Safe to call repeatedly.
func (c *Client) Disconnect() {
	c.mu.Lock()
	session := c.session
	heartbeat := c.heartbeat
	c.mu.Unlock()

	if heartbeat != nil {
		heartbeat.Stop()
	}
	if session != nil {
		session.Close()
	}
	c.relay.Disconnect()
}

func (c *Client) channelEstablished(channel transport.Channel) {
	heartbeat := transport.NewHeartbeat(channel, c.options.Clock, func() {
		c.logger.Warn("host unresponsive, closing session")
		c.mu.Lock()
		session := c.session
		c.mu.Unlock()
		if session != nil {
			session.Close()
		}
	}, c.logger)
	heartbeat.OnMessage(c.consumer.HandleMessage)

	c.mu.Lock()
	c.channel = channel
	c.heartbeat = heartbeat
	c.mu.Unlock()

	heartbeat.Start()
	c.logger.Info("connected to host")
}

func (c *Client) sessionClosed() {
	c.mu.Lock()
	heartbeat := c.heartbeat
	c.channel = nil
	c.heartbeat = nil
	c.mu.Unlock()

	if heartbeat != nil {
		heartbeat.Stop()
	}
	c.logger.Info("session to host closed")
	c.reportDisconnected()
}

func (c *Client) handleEnvelope(envelope signaling.Envelope) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	switch envelope.Type {
	case signaling.TypeOffer:
		if session == nil {
			c.logger.Warn("dropping offer with no session")
			return
		}
		var description signaling.SessionDescription
		if err := signaling.DecodePayload(envelope, &description); err != nil {
			c.logger.Warn("dropping malformed offer", "error", err)
			return
		}
		if err := session.HandleOffer(description); err != nil {
			c.logger.Error("applying offer failed", "error", err)
		}

	case signaling.TypeICECandidate:
		if session == nil {
			c.logger.Warn("dropping candidate with no session")
			return
		}
		var candidate signaling.ICECandidate
		if err := signaling.DecodePayload(envelope, &candidate); err != nil {
			c.logger.Warn("dropping malformed candidate", "error", err)
			return
		}
		if err := session.AddRemoteCandidate(candidate); err != nil {
			c.logger.Warn("adding candidate failed", "error", err)
		}

	case signaling.TypePlayerConnected:
		var connected signaling.PlayerConnected
		if err := signaling.DecodePayload(envelope, &connected); err == nil {
			c.logger.Info("another player connected", "player", connected.PlayerID)
		}

	case signaling.TypeError:
		// Fatal to the connection attempt. Teardown runs outside this
		// handler because the relay client does not allow Disconnect
		// from its own delivery path.
		var payload signaling.ErrorPayload
		if err := signaling.DecodePayload(envelope, &payload); err == nil {
			c.logger.Error("relay rejected the join", "code", payload.Code, "message", payload.Message)
		}
		go func() {
			c.Disconnect()
			c.reportDisconnected()
		}()

	default:
		c.logger.Warn("dropping unexpected envelope", "type", envelope.Type)
	}
}

func (c *Client) sendToHost(data []byte) error {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()
	if channel == nil {
		return transport.ErrNotConnected
	}
	return channel.Send(data)
}

func (c *Client) sendEnvelope(envelopeType, targetID string, payload any) {
	envelope, err := signaling.EncodePayload(envelopeType, targetID, payload)
	if err != nil {
		c.logger.Error("encoding envelope failed", "type", envelopeType, "error", err)
		return
	}
	if err := c.relay.Send(envelope); err != nil {
		c.logger.Warn("sending envelope failed", "type", envelopeType, "error", err)
	}
}
