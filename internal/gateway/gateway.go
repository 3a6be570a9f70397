// Package gateway accepts platform webhook callbacks, acknowledges them
// immediately and hands the normalized event to the background processor.
// Nothing here blocks on outbound delivery or heavy database writes: the
// handler's only jobs are tenant resolution, payload normalization and a
// non-blocking enqueue.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/mymmrac/telego"

	"botfleet/internal/event"
	"botfleet/internal/metrics"
	"botfleet/internal/models"
	"botfleet/internal/utils"
)

// Resolver resolves a webhook credential to an active tenant.
// (nil, nil) means unknown or inactive.
type Resolver interface {
	Resolve(ctx context.Context, secret string) (*models.Tenant, error)
}

// Queue is the processor side of the hand-off. Enqueue must not block;
// it reports false when the queue is full.
type Queue interface {
	Enqueue(ev event.Inbound) bool
}

type Gateway struct {
	tenants      Resolver
	queue        Queue
	allowedCIDRs []string
}

func New(tenants Resolver, queue Queue, allowedCIDRs []string) *Gateway {
	return &Gateway{
		tenants:      tenants,
		queue:        queue,
		allowedCIDRs: allowedCIDRs,
	}
}

type ackResponse struct {
	OK bool `json:"ok"`
}

// Handle serves POST /webhook/{secret}. The response is always HTTP 200 with
// {"ok":bool}; failures are never surfaced as HTTP errors to the platform,
// which would only turn into retry storms.
func (g *Gateway) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if len(g.allowedCIDRs) > 0 && !utils.IsAllowedIP(utils.ClientIP(r), g.allowedCIDRs) {
		metrics.WebhooksTotal.WithLabelValues("rejected").Inc()
		writeAck(w, false)
		return
	}

	secret := strings.TrimPrefix(r.URL.Path, "/webhook/")
	tn, err := g.tenants.Resolve(r.Context(), secret)
	if err != nil {
		log.Printf("Tenant resolution failed: %v", err)
		metrics.WebhooksTotal.WithLabelValues("rejected").Inc()
		writeAck(w, false)
		return
	}
	if tn == nil {
		metrics.WebhooksTotal.WithLabelValues("rejected").Inc()
		writeAck(w, false)
		return
	}

	var upd telego.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		log.Printf("Malformed webhook payload for tenant %d: %v", tn.ID, err)
		metrics.WebhooksTotal.WithLabelValues("rejected").Inc()
		writeAck(w, false)
		return
	}

	ev, ok := Normalize(tn, &upd)
	if !ok {
		// Structurally valid update of a kind this pipeline ignores.
		metrics.WebhooksTotal.WithLabelValues("ok").Inc()
		writeAck(w, true)
		return
	}

	if !g.queue.Enqueue(ev) {
		log.Printf("Processor queue full, dropping %s event for tenant %d", ev.Kind, tn.ID)
		metrics.WebhooksTotal.WithLabelValues("dropped").Inc()
		writeAck(w, true)
		return
	}

	metrics.WebhooksTotal.WithLabelValues("ok").Inc()
	writeAck(w, true)
}

func writeAck(w http.ResponseWriter, ok bool) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(ackResponse{OK: ok})
}
