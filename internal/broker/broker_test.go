package broker

import (
	"context"
	"testing"
	"time"
)

func TestTrySend_FullChannel(t *testing.T) {
	c := make(chan int, 1)
	if !TrySend(c, 1) {
		t.Fatal("Expected first send to succeed")
	}
	if TrySend(c, 2) {
		t.Error("Expected send on full channel to fail")
	}
}

func TestDrain_PreservesPostOrder(t *testing.T) {
	b := New()
	var got []string

	b.Subscribe(func(ev any) {
		s := ev.(string)
		got = append(got, s)
		// Posting from inside a subscriber queues behind what is already pending
		if s == "captured" {
			b.Post("playlist-changed")
		}
	})

	b.Send("captured")
	b.Post("first")
	b.Drain()

	want := []string{"first", "captured", "playlist-changed"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, got)
			break
		}
	}
}

func TestSend_CountsDrops(t *testing.T) {
	b := &Broker{ToCoordinator: make(chan any, 1)}
	b.Send(1)
	b.Send(2)
	if b.Dropped() != 1 {
		t.Errorf("Expected 1 dropped message, got %d", b.Dropped())
	}
}

func TestCall_RunsOnCoordinator(t *testing.T) {
	b := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	delivered := make(chan any, 1)
	b.Subscribe(func(ev any) { delivered <- ev })

	ran := false
	callCtx, callCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer callCancel()
	err := b.Call(callCtx, func() {
		ran = true
		b.Post("done")
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !ran {
		t.Error("Expected function to run")
	}

	// Posted notifications are dispatched before Call returns
	select {
	case ev := <-delivered:
		if ev != "done" {
			t.Errorf("Expected 'done', got %v", ev)
		}
	default:
		t.Error("Expected notification to be dispatched before Call returned")
	}
}
