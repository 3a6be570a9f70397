package processor

import (
	"context"
	"sync"
	"testing"
	"time"

	"botfleet/internal/event"
)

type chanHandler struct {
	mu        sync.Mutex
	processed []event.Inbound
	done      chan struct{}
	panicOn   string
}

func (h *chanHandler) Process(_ context.Context, ev event.Inbound) error {
	defer func() { h.done <- struct{}{} }()
	if ev.Text == h.panicOn {
		panic("handler blew up")
	}
	h.mu.Lock()
	h.processed = append(h.processed, ev)
	h.mu.Unlock()
	return nil
}

func TestEnqueueReportsFullQueue(t *testing.T) {
	t.Parallel()

	p := NewPool(1, 1, &chanHandler{done: make(chan struct{}, 8)})
	// Workers not started: the buffered slot fills and stays full.
	if !p.Enqueue(event.Inbound{Text: "a"}) {
		t.Fatal("first enqueue must succeed")
	}
	if p.Enqueue(event.Inbound{Text: "b"}) {
		t.Fatal("second enqueue must report a full queue, not block")
	}
}

func TestPanicDoesNotKillWorker(t *testing.T) {
	t.Parallel()

	h := &chanHandler{done: make(chan struct{}, 8), panicOn: "boom"}
	p := NewPool(1, 8, h)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	p.Enqueue(event.Inbound{Kind: event.KindMessage, Text: "boom"})
	p.Enqueue(event.Inbound{Kind: event.KindMessage, Text: "after"})

	for i := 0; i < 2; i++ {
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Fatal("worker stalled after panic")
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.processed) != 1 || h.processed[0].Text != "after" {
		t.Errorf("processed=%v, want the event after the panic", h.processed)
	}
}

func TestWorkersStopOnCancel(t *testing.T) {
	t.Parallel()

	p := NewPool(4, 8, &chanHandler{done: make(chan struct{}, 8)})
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	cancel()

	stopped := make(chan struct{})
	go func() {
		p.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not stop on context cancel")
	}
}
