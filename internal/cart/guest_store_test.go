package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/frostlinehq/frostline-backend/pkg/redis"
)

type fakeKV struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	value, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeKV) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	}
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
		delete(f.ttls, key)
	}
	return nil
}

func (f *fakeKV) GuestCartKey(token string) string {
	return "fl:cart:guest:" + token
}

func newTestGuestStore(t *testing.T) (*GuestStore, *fakeKV) {
	t.Helper()
	kv := newFakeKV()
	store, err := NewGuestStore(kv, 30*time.Minute)
	if err != nil {
		t.Fatalf("new guest store: %v", err)
	}
	return store, kv
}

func TestGuestStoreMissingDocumentIsEmptyCart(t *testing.T) {
	store, _ := newTestGuestStore(t)

	state, err := store.Load(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(state.Lines) != 0 || state.CouponCode != nil {
		t.Fatalf("expected empty state, got %+v", state)
	}
}

func TestGuestStoreUpsertAndReload(t *testing.T) {
	store, kv := newTestGuestStore(t)
	productID := uuid.New()

	err := store.UpsertLine(context.Background(), "tok-1", Line{
		ProductID:      productID,
		Name:           "Ribeye 16oz",
		UnitPriceCents: 2899,
		Quantity:       2,
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	state, err := store.Load(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(state.Lines) != 1 || state.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected state %+v", state)
	}
	if kv.ttls["fl:cart:guest:tok-1"] != 30*time.Minute {
		t.Fatalf("write should refresh the ttl")
	}

	// same product updates in place
	err = store.UpsertLine(context.Background(), "tok-1", Line{
		ProductID:      productID,
		Name:           "Ribeye 16oz",
		UnitPriceCents: 2899,
		Quantity:       5,
	})
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	state, _ = store.Load(context.Background(), "tok-1")
	if len(state.Lines) != 1 || state.Lines[0].Quantity != 5 {
		t.Fatalf("unexpected state after update %+v", state)
	}
}

func TestGuestStoreRemoveAndClear(t *testing.T) {
	store, kv := newTestGuestStore(t)
	keep := uuid.New()
	drop := uuid.New()

	for _, line := range []Line{
		{ProductID: keep, Name: "Ribeye", UnitPriceCents: 2899, Quantity: 1},
		{ProductID: drop, Name: "Brisket", UnitPriceCents: 4599, Quantity: 1},
	} {
		if err := store.UpsertLine(context.Background(), "tok-1", line); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	if err := store.RemoveLine(context.Background(), "tok-1", drop); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	state, _ := store.Load(context.Background(), "tok-1")
	if len(state.Lines) != 1 || state.Lines[0].ProductID != keep {
		t.Fatalf("unexpected state %+v", state)
	}

	if err := store.Clear(context.Background(), "tok-1"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if _, ok := kv.values["fl:cart:guest:tok-1"]; ok {
		t.Fatalf("clear should delete the document")
	}
}

func TestGuestStoreCoupon(t *testing.T) {
	store, _ := newTestGuestStore(t)
	code := "10OFF"

	if err := store.SetCoupon(context.Background(), "tok-1", &code); err != nil {
		t.Fatalf("set coupon failed: %v", err)
	}
	state, _ := store.Load(context.Background(), "tok-1")
	if state.CouponCode == nil || *state.CouponCode != "10OFF" {
		t.Fatalf("coupon not stored: %+v", state)
	}

	if err := store.SetCoupon(context.Background(), "tok-1", nil); err != nil {
		t.Fatalf("clear coupon failed: %v", err)
	}
	state, _ = store.Load(context.Background(), "tok-1")
	if state.CouponCode != nil {
		t.Fatalf("coupon should be cleared, got %+v", state.CouponCode)
	}
}

func TestGuestStoreCorruptDocumentStartsFresh(t *testing.T) {
	store, kv := newTestGuestStore(t)
	kv.values["fl:cart:guest:tok-1"] = "{not json"

	state, err := store.Load(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(state.Lines) != 0 {
		t.Fatalf("expected fresh state, got %+v", state)
	}
}

func TestGuestStoreRequiresToken(t *testing.T) {
	store, _ := newTestGuestStore(t)

	if _, err := store.Load(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for blank token")
	}
}
