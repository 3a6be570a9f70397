package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"botfleet/internal/event"
	"botfleet/internal/models"
)

type fakeResolver struct {
	tenants map[string]*models.Tenant
	err     error
}

func (f *fakeResolver) Resolve(_ context.Context, secret string) (*models.Tenant, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tenants[secret], nil
}

type fakeQueue struct {
	events []event.Inbound
	full   bool
}

func (f *fakeQueue) Enqueue(ev event.Inbound) bool {
	if f.full {
		return false
	}
	f.events = append(f.events, ev)
	return true
}

const messageBody = `{"update_id":1,"message":{"message_id":2,"from":{"id":42,"first_name":"Ann"},"chat":{"id":42,"type":"private"},"text":"/start ref_100"}}`

func post(t *testing.T, g *Gateway, path, body string) (*httptest.ResponseRecorder, ackResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	g.Handle(w, req)

	var ack ackResponse
	if err := json.NewDecoder(w.Body).Decode(&ack); err != nil {
		t.Fatalf("response is not an ack: %v", err)
	}
	return w, ack
}

func TestHandleEnqueuesAndAcks(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{}
	g := New(&fakeResolver{tenants: map[string]*models.Tenant{
		"s3cret": {ID: 7, BotToken: "tok", Active: true},
	}}, queue, nil)

	w, ack := post(t, g, "/webhook/s3cret", messageBody)
	if w.Code != http.StatusOK || !ack.OK {
		t.Fatalf("code=%d ack=%+v, want 200 {ok:true}", w.Code, ack)
	}
	// The ack was written with the event sitting in the queue: no
	// processing, and in particular no outbound delivery, has run yet.
	if len(queue.events) != 1 {
		t.Fatalf("enqueued %d events, want 1", len(queue.events))
	}
	if queue.events[0].Kind != event.KindMessage || queue.events[0].TenantID != 7 {
		t.Errorf("queued event wrong: %+v", queue.events[0])
	}
}

func TestHandleUnknownTenant(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{}
	g := New(&fakeResolver{tenants: map[string]*models.Tenant{}}, queue, nil)

	w, ack := post(t, g, "/webhook/nope", messageBody)
	if w.Code != http.StatusOK {
		t.Errorf("code=%d, unknown tenant must still get HTTP 200", w.Code)
	}
	if ack.OK {
		t.Error("unknown tenant must ack {ok:false}")
	}
	if len(queue.events) != 0 {
		t.Error("unknown tenant must have no side effects")
	}
}

func TestHandleMalformedPayload(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{}
	g := New(&fakeResolver{tenants: map[string]*models.Tenant{
		"s3cret": {ID: 7},
	}}, queue, nil)

	w, ack := post(t, g, "/webhook/s3cret", "{not json")
	if w.Code != http.StatusOK || ack.OK {
		t.Errorf("code=%d ack=%+v, want 200 {ok:false}", w.Code, ack)
	}
	if len(queue.events) != 0 {
		t.Error("malformed payload must not enqueue")
	}
}

func TestHandleQueueFull(t *testing.T) {
	t.Parallel()

	g := New(&fakeResolver{tenants: map[string]*models.Tenant{
		"s3cret": {ID: 7},
	}}, &fakeQueue{full: true}, nil)

	// A full queue is an internal concern; the platform still gets its
	// ack, otherwise it would retry into an already overloaded pipeline.
	w, ack := post(t, g, "/webhook/s3cret", messageBody)
	if w.Code != http.StatusOK || !ack.OK {
		t.Errorf("code=%d ack=%+v, want 200 {ok:true} despite the drop", w.Code, ack)
	}
}

func TestHandleIgnoredUpdateKind(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{}
	g := New(&fakeResolver{tenants: map[string]*models.Tenant{
		"s3cret": {ID: 7},
	}}, queue, nil)

	_, ack := post(t, g, "/webhook/s3cret", `{"update_id":1}`)
	if !ack.OK {
		t.Error("structurally valid but ignored update must ack {ok:true}")
	}
	if len(queue.events) != 0 {
		t.Error("ignored update must not enqueue")
	}
}

func TestHandleSourceFilter(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{}
	g := New(&fakeResolver{tenants: map[string]*models.Tenant{
		"s3cret": {ID: 7},
	}}, queue, []string{"149.154.160.0/20"})

	req := httptest.NewRequest(http.MethodPost, "/webhook/s3cret", strings.NewReader(messageBody))
	req.RemoteAddr = "10.0.0.1:5000"
	w := httptest.NewRecorder()
	g.Handle(w, req)

	var ack ackResponse
	json.NewDecoder(w.Body).Decode(&ack)
	if ack.OK || len(queue.events) != 0 {
		t.Error("request from outside the platform ranges must be rejected")
	}

	req = httptest.NewRequest(http.MethodPost, "/webhook/s3cret", strings.NewReader(messageBody))
	req.RemoteAddr = "149.154.167.220:443"
	w = httptest.NewRecorder()
	g.Handle(w, req)
	json.NewDecoder(w.Body).Decode(&ack)
	if !ack.OK || len(queue.events) != 1 {
		t.Error("request from the platform ranges must pass")
	}
}

func TestHandleMethodNotAllowed(t *testing.T) {
	t.Parallel()

	g := New(&fakeResolver{}, &fakeQueue{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/webhook/s3cret", nil)
	w := httptest.NewRecorder()
	g.Handle(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("code=%d, want 405", w.Code)
	}
}
