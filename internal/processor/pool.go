// Package processor executes business logic for normalized inbound events on
// a worker pool, decoupled from the webhook request that enqueued them. One
// event's failure never affects sibling events; there is no redelivery at
// this layer — recovery relies on the platform's own webhook redelivery plus
// the idempotent recount.
package processor

import (
	"context"
	"log"
	"sync"

	"botfleet/internal/event"
	"botfleet/internal/metrics"
)

type EventHandler interface {
	Process(ctx context.Context, ev event.Inbound) error
}

type Pool struct {
	queue   chan event.Inbound
	workers int
	handler EventHandler
	wg      sync.WaitGroup
}

func NewPool(workers, queueSize int, handler EventHandler) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Pool{
		queue:   make(chan event.Inbound, queueSize),
		workers: workers,
		handler: handler,
	}
}

// Enqueue hands one event to the pool without blocking. False means the
// queue was full and the event was dropped; the caller counts and logs it.
func (p *Pool) Enqueue(ev event.Inbound) bool {
	select {
	case p.queue <- ev:
		metrics.QueueDepth.Set(float64(len(p.queue)))
		return true
	default:
		return false
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	log.Printf("Background processor started with %d workers", p.workers)
}

// Wait blocks until all workers have exited after their context is canceled.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.queue:
			metrics.QueueDepth.Set(float64(len(p.queue)))
			p.run(ctx, ev)
		}
	}
}

func (p *Pool) run(ctx context.Context, ev event.Inbound) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic processing %s event tenant=%d actor=%d: %v",
				ev.Kind, ev.TenantID, ev.ActorExternalID, r)
			metrics.EventsProcessedTotal.WithLabelValues(string(ev.Kind), "panic").Inc()
		}
	}()

	if err := p.handler.Process(ctx, ev); err != nil {
		log.Printf("Failed to process %s event tenant=%d actor=%d: %v",
			ev.Kind, ev.TenantID, ev.ActorExternalID, err)
		metrics.EventsProcessedTotal.WithLabelValues(string(ev.Kind), "error").Inc()
		return
	}
	metrics.EventsProcessedTotal.WithLabelValues(string(ev.Kind), "ok").Inc()
}
