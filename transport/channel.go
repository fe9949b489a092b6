// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport owns the direct peer-to-peer path: the WebRTC
// peer session negotiated through the relay, the message channel it
// carries, the liveness monitor that guards it, and the host-side
// registry of all live sessions.
package transport

import (
	"errors"
	"sync"
)

// ErrChannelClosed reports a send on a closed channel.
var ErrChannelClosed = errors.New("data channel closed")

// Channel is an ordered, reliable, message-framed pipe to one remote
// participant. Handlers are invoked from a single goroutine per
// channel; OnMessage and OnClose must be registered before the first
// message can arrive.
type Channel interface {
	// Send transmits one message. It fails once the channel is closed.
	Send(data []byte) error

	// OnMessage registers the inbound message handler.
	OnMessage(handler func(data []byte))

	// OnClose registers a handler invoked once when the channel
	// closes, whether locally or by the remote end.
	OnClose(handler func())

	// Close tears the channel down. Safe to call repeatedly.
	Close() error
}

// memoryChannel is an in-process Channel half. Two halves created by
// NewMemoryChannelPair deliver to each other in send order.
type memoryChannel struct {
	peer *memoryChannel

	mu        sync.Mutex
	onMessage func([]byte)
	onClose   func()
	closed    bool

	inbox chan []byte
	done  chan struct{}
}

// NewMemoryChannelPair returns two connected in-process channels.
// Messages sent on one are delivered, in order, to the other's
// OnMessage handler. Closing either side closes both.
func NewMemoryChannelPair() (Channel, Channel) {
	a := &memoryChannel{inbox: make(chan []byte, 256), done: make(chan struct{})}
	b := &memoryChannel{inbox: make(chan []byte, 256), done: make(chan struct{})}
	a.peer, b.peer = b, a
	go a.pump()
	go b.pump()
	return a, b
}

func (c *memoryChannel) pump() {
	for {
		select {
		case data := <-c.inbox:
			c.mu.Lock()
			handler := c.onMessage
			c.mu.Unlock()
			if handler != nil {
				handler(data)
			}
		case <-c.done:
			return
		}
	}
}

func (c *memoryChannel) Send(data []byte) error {
	c.peer.mu.Lock()
	closed := c.peer.closed
	c.peer.mu.Unlock()
	if closed {
		return ErrChannelClosed
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	select {
	case c.peer.inbox <- buf:
		return nil
	case <-c.peer.done:
		return ErrChannelClosed
	}
}

func (c *memoryChannel) OnMessage(handler func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = handler
}

func (c *memoryChannel) OnClose(handler func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = handler
}

func (c *memoryChannel) Close() error {
	c.closeHalf()
	c.peer.closeHalf()
	return nil
}

func (c *memoryChannel) closeHalf() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	handler := c.onClose
	c.mu.Unlock()

	close(c.done)
	if handler != nil {
		handler()
	}
}
