// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

// dataChannel adapts a pion data channel to the Channel interface.
// Messages are sent as text frames so a browser peer sees strings.
type dataChannel struct {
	raw *webrtc.DataChannel

	mu        sync.Mutex
	onMessage func([]byte)
	onClose   func()

	closeOnce sync.Once
}

func newDataChannel(raw *webrtc.DataChannel) *dataChannel {
	c := &dataChannel{raw: raw}
	raw.OnMessage(func(message webrtc.DataChannelMessage) {
		c.mu.Lock()
		handler := c.onMessage
		c.mu.Unlock()
		if handler != nil {
			handler(message.Data)
		}
	})
	return c
}

func (c *dataChannel) Send(data []byte) error {
	if c.raw.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrChannelClosed
	}
	if err := c.raw.SendText(string(data)); err != nil {
		return fmt.Errorf("sending on data channel: %w", err)
	}
	return nil
}

func (c *dataChannel) OnMessage(handler func([]byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = handler
}

func (c *dataChannel) OnClose(handler func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = handler
}

func (c *dataChannel) Close() error {
	err := c.raw.Close()
	c.fireClose()
	return err
}

// fireClose invokes the registered close handler exactly once. The
// owning session calls it when the channel dies from either end.
func (c *dataChannel) fireClose() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		handler := c.onClose
		c.mu.Unlock()
		if handler != nil {
			handler()
		}
	})
}
