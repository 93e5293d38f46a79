package loop

import (
	"testing"
	"time"
)

func TestDriverStopsWhenStepReportsMatchOver(t *testing.T) {
	ticks := 0
	step := func() ([]interface{}, bool) {
		ticks++
		return nil, ticks >= 3
	}

	done := make(chan struct{})
	var tickCount int
	d := New(1000, step, func(events []interface{}) { tickCount++ }, func() { close(done) })

	go d.Run()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("driver never stopped after step reported match over")
	}

	if ticks != 3 {
		t.Errorf("step called %d times, want 3", ticks)
	}
	if tickCount != 3 {
		t.Errorf("onTick called %d times, want 3", tickCount)
	}
}

func TestDriverStopIsIdempotentAndUnblocks(t *testing.T) {
	step := func() ([]interface{}, bool) { return nil, false }
	d := New(1000, step, nil, nil)

	go d.Run()
	time.Sleep(20 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		d.Stop() // second call must not panic or deadlock
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestDriverOnStopCalledExactlyOnce(t *testing.T) {
	step := func() ([]interface{}, bool) { return nil, false }
	calls := 0
	d := New(1000, step, nil, func() { calls++ })

	go d.Run()
	time.Sleep(20 * time.Millisecond)
	d.Stop()

	if calls != 1 {
		t.Errorf("onStop called %d times, want 1", calls)
	}
}

func TestDriverRecoversStepPanicAndStops(t *testing.T) {
	step := func() ([]interface{}, bool) { panic("boom") }

	var recovered interface{}
	onStop := make(chan struct{})
	d := New(1000, step, nil, func() { close(onStop) })
	d.SetOnPanic(func(r interface{}) { recovered = r })

	go d.Run()

	select {
	case <-onStop:
	case <-time.After(2 * time.Second):
		t.Fatal("driver never stopped after step panicked")
	}

	if recovered != "boom" {
		t.Errorf("onPanic got %v, want %q", recovered, "boom")
	}
}

func TestDriverOnTickReceivesStepEvents(t *testing.T) {
	marker := "tick-event"
	first := true
	step := func() ([]interface{}, bool) {
		if first {
			first = false
			return []interface{}{marker}, true
		}
		return nil, true
	}

	received := make(chan []interface{}, 1)
	done := make(chan struct{})
	d := New(1000, step, func(events []interface{}) {
		select {
		case received <- events:
		default:
		}
	}, func() { close(done) })

	go d.Run()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("driver never stopped")
	}

	select {
	case events := <-received:
		if len(events) != 1 || events[0] != marker {
			t.Errorf("got events %+v, want [%q]", events, marker)
		}
	default:
		t.Fatal("onTick was never called with the step's events")
	}
}
