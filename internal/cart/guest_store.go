package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/frostlinehq/frostline-backend/pkg/errors"
	"github.com/frostlinehq/frostline-backend/pkg/redis"
)

type guestKV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	GuestCartKey(token string) string
}

type guestCartDoc struct {
	State
	UpdatedAt time.Time `json:"updated_at"`
}

// GuestStore persists anonymous carts as JSON documents in Redis. A missing
// document is an empty cart, never an error. Every write refreshes the TTL so
// an active guest keeps their cart alive.
type GuestStore struct {
	kv  guestKV
	ttl time.Duration
	now func() time.Time
}

// NewGuestStore wires the guest cart adapter.
func NewGuestStore(kv guestKV, ttl time.Duration) (*GuestStore, error) {
	if kv == nil {
		return nil, fmt.Errorf("redis kv is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("guest cart ttl must be positive")
	}
	return &GuestStore{kv: kv, ttl: ttl, now: time.Now}, nil
}

// Load returns the guest cart state for a token.
func (s *GuestStore) Load(ctx context.Context, owner string) (State, error) {
	doc, err := s.load(ctx, owner)
	if err != nil {
		return State{}, err
	}
	return doc.State, nil
}

// UpsertLine sets the absolute quantity for a product, inserting the line
// when the product is not in the cart yet.
func (s *GuestStore) UpsertLine(ctx context.Context, owner string, line Line) error {
	doc, err := s.load(ctx, owner)
	if err != nil {
		return err
	}
	if existing := doc.FindLine(line.ProductID); existing != nil {
		existing.Quantity = line.Quantity
		existing.Name = line.Name
		existing.UnitPriceCents = line.UnitPriceCents
	} else {
		doc.Lines = append(doc.Lines, line)
	}
	return s.save(ctx, owner, doc)
}

// RemoveLine drops a product from the cart. Removing an absent line is a
// no-op.
func (s *GuestStore) RemoveLine(ctx context.Context, owner string, productID uuid.UUID) error {
	doc, err := s.load(ctx, owner)
	if err != nil {
		return err
	}
	kept := doc.Lines[:0]
	for _, line := range doc.Lines {
		if line.ProductID != productID {
			kept = append(kept, line)
		}
	}
	doc.Lines = kept
	return s.save(ctx, owner, doc)
}

// SetCoupon attaches or clears the coupon code.
func (s *GuestStore) SetCoupon(ctx context.Context, owner string, code *string) error {
	doc, err := s.load(ctx, owner)
	if err != nil {
		return err
	}
	doc.CouponCode = code
	return s.save(ctx, owner, doc)
}

// Clear deletes the guest cart document entirely.
func (s *GuestStore) Clear(ctx context.Context, owner string) error {
	token, err := cleanToken(owner)
	if err != nil {
		return err
	}
	if err := s.kv.Del(ctx, s.kv.GuestCartKey(token)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clearing guest cart")
	}
	return nil
}

func (s *GuestStore) load(ctx context.Context, owner string) (*guestCartDoc, error) {
	token, err := cleanToken(owner)
	if err != nil {
		return nil, err
	}
	raw, err := s.kv.Get(ctx, s.kv.GuestCartKey(token))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &guestCartDoc{}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading guest cart")
	}
	var doc guestCartDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		// a corrupt document is unrecoverable, start the guest fresh
		return &guestCartDoc{}, nil
	}
	return &doc, nil
}

func (s *GuestStore) save(ctx context.Context, owner string, doc *guestCartDoc) error {
	token, err := cleanToken(owner)
	if err != nil {
		return err
	}
	doc.UpdatedAt = s.now()
	payload, err := json.Marshal(doc)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding guest cart")
	}
	if err := s.kv.Set(ctx, s.kv.GuestCartKey(token), payload, s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving guest cart")
	}
	return nil
}

func cleanToken(owner string) (string, error) {
	token := strings.TrimSpace(owner)
	if token == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "guest token is required")
	}
	return token, nil
}
