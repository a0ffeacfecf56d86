package events

import (
	"testing"
	"time"
)

func TestSinkFunc(t *testing.T) {
	var gotName string
	var gotPayload any

	var s Sink = SinkFunc(func(name string, payload any) {
		gotName = name
		gotPayload = payload
	})
	s.Emit(DeviceDiscovered, 42)

	if gotName != DeviceDiscovered || gotPayload != 42 {
		t.Errorf("got (%q, %v), want (%q, 42)", gotName, gotPayload, DeviceDiscovered)
	}
}

func TestMulti(t *testing.T) {
	var calls []string
	a := SinkFunc(func(name string, _ any) { calls = append(calls, "a:"+name) })
	b := SinkFunc(func(name string, _ any) { calls = append(calls, "b:"+name) })

	Multi(a, nil, b).Emit("x", nil)

	if len(calls) != 2 || calls[0] != "a:x" || calls[1] != "b:x" {
		t.Errorf("calls = %v, want [a:x b:x]", calls)
	}
}

func TestHub_Broadcast(t *testing.T) {
	h := NewHub()
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	ch1, cancel1 := h.Subscribe(1)
	defer cancel1()
	ch2, cancel2 := h.Subscribe(1)
	defer cancel2()

	if h.Subscribers() != 2 {
		t.Fatalf("Subscribers() = %d, want 2", h.Subscribers())
	}

	h.Emit(DeviceDiscovered, "payload")

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Name != DeviceDiscovered || ev.Payload != "payload" || !ev.Time.Equal(fixed) {
				t.Errorf("subscriber %d got %+v", i, ev)
			}
		default:
			t.Errorf("subscriber %d received nothing", i)
		}
	}
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.Emit("tick", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a full subscriber")
	}

	ev := <-ch
	if ev.Payload != 0 {
		t.Errorf("first event payload = %v, want 0", ev.Payload)
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(0)

	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel still open after unsubscribe")
	}
	if h.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", h.Subscribers())
	}

	// Emitting with no subscribers is fine
	h.Emit("x", nil)
}
