// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestMemoryChannelDeliversInOrder(t *testing.T) {
	left, right := NewMemoryChannelPair()
	defer left.Close()

	received := make(chan string, 16)
	right.OnMessage(func(data []byte) { received <- string(data) })

	for i := 0; i < 5; i++ {
		if err := left.Send([]byte(fmt.Sprintf("message-%d", i))); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}

	for i := 0; i < 5; i++ {
		select {
		case got := <-received:
			want := fmt.Sprintf("message-%d", i)
			if got != want {
				t.Fatalf("message %d = %q, want %q", i, got, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestMemoryChannelCloseStopsBothSides(t *testing.T) {
	left, right := NewMemoryChannelPair()

	leftClosed := make(chan struct{}, 1)
	rightClosed := make(chan struct{}, 1)
	left.OnClose(func() { leftClosed <- struct{}{} })
	right.OnClose(func() { rightClosed <- struct{}{} })

	if err := left.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for name, ch := range map[string]chan struct{}{"left": leftClosed, "right": rightClosed} {
		select {
		case <-ch:
		case <-time.After(5 * time.Second):
			t.Fatalf("%s close handler never fired", name)
		}
	}

	if err := left.Send([]byte("late")); !errors.Is(err, ErrChannelClosed) {
		t.Errorf("send after close: got %v, want ErrChannelClosed", err)
	}
	// Closing again is a no-op.
	if err := right.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
