// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

package signaling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

var (
	// ErrInvalidIdentity reports a malformed participant identity.
	ErrInvalidIdentity = errors.New("invalid participant identity")

	// ErrInvalidRoom reports a malformed room code.
	ErrInvalidRoom = errors.New("invalid room code")

	// ErrNotConnected reports a send on a client with no control
	// connection.
	ErrNotConnected = errors.New("not connected to relay")
)

// Handler receives inbound envelopes from the relay. The client
// invokes it from a single goroutine, without holding any client
// lock, so a handler may call Send to answer an envelope. After
// Disconnect returns it is never invoked again. A handler must not
// call Disconnect on its own client: Disconnect waits for in-flight
// deliveries.
type Handler func(Envelope)

// Client maintains one control connection to the relay for a single
// participant. It exists only to bootstrap peer sessions: once direct
// channels are up, nothing else flows through it.
type Client struct {
	relayURL string
	logger   *slog.Logger

	// mu guards conn and handler. Deliveries happen outside the
	// lock; the WaitGroup lets Disconnect wait for the one that may
	// be in flight, so none is observed after Disconnect returns.
	mu      sync.Mutex
	conn    *websocket.Conn
	handler Handler

	deliveries sync.WaitGroup

	writeMu sync.Mutex
}

// NewClient returns a client that will dial relayURL. The handler
// receives every inbound envelope once Connect succeeds.
func NewClient(relayURL string, handler Handler, logger *slog.Logger) *Client {
	return &Client{
		relayURL: relayURL,
		logger:   logger,
		handler:  handler,
	}
}

// Connect opens the control connection, identifying as identity in
// room roomCode. Calling Connect while already connected logs and
// returns nil without opening a second connection.
func (c *Client) Connect(ctx context.Context, identity, roomCode string) error {
	if !validToken(identity) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentity, identity)
	}
	if !validToken(roomCode) {
		return fmt.Errorf("%w: %q", ErrInvalidRoom, roomCode)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.logger.Info("already connected to relay, ignoring connect",
			"identity", identity, "room", roomCode)
		return nil
	}

	endpoint, err := url.Parse(c.relayURL)
	if err != nil {
		return fmt.Errorf("parsing relay URL: %w", err)
	}
	query := endpoint.Query()
	query.Set("playerId", identity)
	query.Set("gameId", roomCode)
	endpoint.RawQuery = query.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("dialing relay %s: %w", endpoint.Host, err)
	}
	c.conn = conn
	c.logger.Info("connected to relay", "identity", identity, "room", roomCode)

	go c.readLoop(conn)
	return nil
}

// Send routes an envelope through the relay.
func (c *Client) Send(envelope Envelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(envelope); err != nil {
		return fmt.Errorf("sending %s envelope: %w", envelope.Type, err)
	}
	return nil
}

// Disconnect closes the control connection and clears the handler.
// Once it returns, no further envelopes are delivered. Safe to call
// repeatedly.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.handler = nil
	c.mu.Unlock()

	// A delivery that started before the teardown finishes first.
	c.deliveries.Wait()
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var envelope Envelope
		if err := conn.ReadJSON(&envelope); err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.logger.Info("relay connection closed", "error", err)
				c.conn.Close()
				c.conn = nil
			}
			c.mu.Unlock()
			return
		}

		// Snapshot the handler and deliver unlocked: handlers answer
		// offers and candidates by calling Send on this same client.
		c.mu.Lock()
		if c.conn != conn || c.handler == nil {
			c.mu.Unlock()
			return
		}
		handler := c.handler
		c.deliveries.Add(1)
		c.mu.Unlock()

		handler(envelope)
		c.deliveries.Done()
	}
}

// validToken accepts non-empty identifiers without whitespace. Room
// codes and identities are opaque to the relay beyond this.
func validToken(s string) bool {
	return s != "" && !strings.ContainsAny(s, " \t\r\n")
}
