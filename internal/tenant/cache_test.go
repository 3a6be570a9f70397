package tenant

import (
	"context"
	"errors"
	"testing"
	"time"

	"botfleet/internal/models"
)

type fakeLookup struct {
	tenants map[string]*models.Tenant
	err     error
	calls   int
}

func (f *fakeLookup) ByWebhookSecret(_ context.Context, secret string) (*models.Tenant, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.tenants[secret], nil
}

// Without Redis the cache degrades to a plain read-through to the store.
func TestResolveWithoutRedis(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	lookup := &fakeLookup{tenants: map[string]*models.Tenant{
		"s3cret": {ID: 7, Name: "acme", Active: true},
	}}
	c := NewCache(lookup, nil, 60*time.Second)

	tn, err := c.Resolve(ctx, "s3cret")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if tn == nil || tn.ID != 7 {
		t.Fatalf("tenant=%+v, want id 7", tn)
	}

	tn, err = c.Resolve(ctx, "unknown")
	if err != nil {
		t.Fatalf("resolve unknown: %v", err)
	}
	if tn != nil {
		t.Errorf("unknown secret resolved to %+v", tn)
	}
}

func TestResolveSurfacesStoreErrors(t *testing.T) {
	t.Parallel()

	lookup := &fakeLookup{err: errors.New("db down")}
	c := NewCache(lookup, nil, 60*time.Second)

	if _, err := c.Resolve(context.Background(), "s3cret"); err == nil {
		t.Error("database unavailability must be surfaced")
	}
}
