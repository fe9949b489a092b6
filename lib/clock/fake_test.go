// Copyright 2026 The Peertable Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

func TestFakeAfterFuncFiresInOrder(t *testing.T) {
	c := Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	var order []int
	c.AfterFunc(2*time.Second, func() { order = append(order, 2) })
	c.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	c.AfterFunc(3*time.Second, func() { order = append(order, 3) })

	c.Advance(3 * time.Second)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("fire order = %v, want [1 2 3]", order)
	}
}

func TestFakeAfterFuncStop(t *testing.T) {
	c := Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("Stop() = false for a pending timer")
	}
	c.Advance(2 * time.Second)
	if fired {
		t.Fatal("stopped timer fired")
	}
	if timer.Stop() {
		t.Fatal("second Stop() = true")
	}
}

func TestFakeAfterFuncImmediate(t *testing.T) {
	c := Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	fired := false
	c.AfterFunc(0, func() { fired = true })
	if !fired {
		t.Fatal("AfterFunc(0) did not run synchronously")
	}
}

func TestFakeTickerFiresPerInterval(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Fake(start)

	ticker := c.NewTicker(time.Second)
	defer ticker.Stop()

	// Advance fires synchronously into the one-slot buffer, so each
	// tick must be drained before the next advance or it is dropped.
	// Drain in lockstep and check the stamped fire time.
	for i := 1; i <= 3; i++ {
		c.Advance(time.Second)
		select {
		case tick := <-ticker.C:
			if want := start.Add(time.Duration(i) * time.Second); !tick.Equal(want) {
				t.Errorf("tick %d stamped %v, want %v", i, tick, want)
			}
		default:
			t.Fatalf("tick %d not delivered after advance", i)
		}
	}

	// An advance spanning several intervals overflows the buffer:
	// exactly one tick is observable, matching time.Ticker.
	c.Advance(3 * time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("no tick delivered for a multi-interval advance")
	}
	select {
	case tick := <-ticker.C:
		t.Fatalf("dropped tick %v was delivered", tick)
	default:
	}
}

func TestFakeTickerStop(t *testing.T) {
	c := Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	ticker := c.NewTicker(time.Second)
	ticker.Stop()
	c.Advance(5 * time.Second)

	select {
	case <-ticker.C:
		t.Fatal("stopped ticker delivered a tick")
	default:
	}
	if c.PendingCount() != 0 {
		t.Fatalf("PendingCount() = %d after stop, want 0", c.PendingCount())
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	c := Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	registered := make(chan struct{})
	go func() {
		c.AfterFunc(time.Second, func() {})
		close(registered)
	}()

	c.WaitForTimers(1)
	<-registered

	if c.PendingCount() != 1 {
		t.Fatalf("PendingCount() = %d, want 1", c.PendingCount())
	}
}
