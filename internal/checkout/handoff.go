package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/frostlinehq/frostline-backend/internal/cart"
	"github.com/frostlinehq/frostline-backend/internal/pricing"
	"github.com/frostlinehq/frostline-backend/pkg/delivery"
	"github.com/frostlinehq/frostline-backend/pkg/enums"
	pkgerrors "github.com/frostlinehq/frostline-backend/pkg/errors"
	"github.com/frostlinehq/frostline-backend/pkg/redis"
	"github.com/frostlinehq/frostline-backend/pkg/types"
)

// DeliveryMethod is how the order leaves the warehouse.
type DeliveryMethod string

const (
	MethodPickup  DeliveryMethod = "pickup"
	MethodCourier DeliveryMethod = "courier"
)

// IsValid reports whether the method is one we fulfil.
func (m DeliveryMethod) IsValid() bool {
	return m == MethodPickup || m == MethodCourier
}

// ShippingInfo is the stage-one handoff: who the buyer is and where the
// shipment lands, with the geocoded pin confirmed.
type ShippingInfo struct {
	Email    string            `json:"email"`
	Phone    string            `json:"phone,omitempty"`
	Address  types.Address     `json:"address"`
	Location types.Coordinates `json:"location"`
	SavedAt  time.Time         `json:"saved_at"`
}

// Selection is the stage-two handoff: the chosen fulfilment plus a snapshot
// of the cart the shopper saw when choosing. The payment stage prices this
// snapshot, not the live cart.
type Selection struct {
	Info          ShippingInfo    `json:"info"`
	Method        DeliveryMethod  `json:"method"`
	Quote         *delivery.Quote `json:"quote,omitempty"`
	Lines         []cart.Line     `json:"lines"`
	CouponCode    *string         `json:"coupon_code,omitempty"`
	SubtotalCents int             `json:"subtotal_cents"`
	SavedAt       time.Time       `json:"saved_at"`
}

// OrderDraft is everything the completion reconciler needs to land the order
// without touching the live cart.
type OrderDraft struct {
	Lines       []cart.Line    `json:"lines"`
	Email       string         `json:"email"`
	Address     *types.Address `json:"address,omitempty"`
	ServiceTier string         `json:"service_tier"`
	EtaMinutes  int            `json:"eta_minutes"`
	CouponCode  *string        `json:"coupon_code,omitempty"`
	Totals      pricing.Totals `json:"totals"`
	Currency    string         `json:"currency"`
}

// PaymentHandoff is the stage-three handoff: the open hosted-checkout session
// and the frozen order draft it will settle.
type PaymentHandoff struct {
	SessionID      string     `json:"session_id"`
	PaymentLinkID  string     `json:"payment_link_id"`
	PaymentLinkURL string     `json:"payment_link_url"`
	SquareOrderID  string     `json:"square_order_id"`
	Draft          OrderDraft `json:"draft"`
	SavedAt        time.Time  `json:"saved_at"`
}

type handoffKV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	HandoffKey(stage, customerID string) string
}

// HandoffStore keeps the per-stage checkout payloads in Redis. Payloads are
// ephemeral: they expire on their own and are drained once the saga lands.
type HandoffStore struct {
	kv  handoffKV
	ttl time.Duration
	now func() time.Time
}

// NewHandoffStore wires the stage payload store.
func NewHandoffStore(kv handoffKV, ttl time.Duration) (*HandoffStore, error) {
	if kv == nil {
		return nil, fmt.Errorf("redis kv is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("handoff ttl must be positive")
	}
	return &HandoffStore{kv: kv, ttl: ttl, now: time.Now}, nil
}

// SaveShipping stores the stage-one payload.
func (s *HandoffStore) SaveShipping(ctx context.Context, customerID string, info ShippingInfo) error {
	info.SavedAt = s.now()
	return s.save(ctx, enums.CheckoutStageInformation, customerID, info)
}

// LoadShipping returns the stage-one payload, or nil when absent.
func (s *HandoffStore) LoadShipping(ctx context.Context, customerID string) (*ShippingInfo, error) {
	var info ShippingInfo
	ok, err := s.load(ctx, enums.CheckoutStageInformation, customerID, &info)
	if err != nil || !ok {
		return nil, err
	}
	return &info, nil
}

// SaveSelection stores the stage-two payload.
func (s *HandoffStore) SaveSelection(ctx context.Context, customerID string, selection Selection) error {
	selection.SavedAt = s.now()
	return s.save(ctx, enums.CheckoutStageShipping, customerID, selection)
}

// LoadSelection returns the stage-two payload, or nil when absent.
func (s *HandoffStore) LoadSelection(ctx context.Context, customerID string) (*Selection, error) {
	var selection Selection
	ok, err := s.load(ctx, enums.CheckoutStageShipping, customerID, &selection)
	if err != nil || !ok {
		return nil, err
	}
	return &selection, nil
}

// SavePayment stores the stage-three payload.
func (s *HandoffStore) SavePayment(ctx context.Context, customerID string, handoff PaymentHandoff) error {
	handoff.SavedAt = s.now()
	return s.save(ctx, enums.CheckoutStagePayment, customerID, handoff)
}

// LoadPayment returns the stage-three payload, or nil when absent.
func (s *HandoffStore) LoadPayment(ctx context.Context, customerID string) (*PaymentHandoff, error) {
	var handoff PaymentHandoff
	ok, err := s.load(ctx, enums.CheckoutStagePayment, customerID, &handoff)
	if err != nil || !ok {
		return nil, err
	}
	return &handoff, nil
}

// DeletePayment drops only the stage-three payload.
func (s *HandoffStore) DeletePayment(ctx context.Context, customerID string) error {
	id, err := cleanCustomerID(customerID)
	if err != nil {
		return err
	}
	key := s.kv.HandoffKey(enums.CheckoutStagePayment.String(), id)
	if err := s.kv.Del(ctx, key); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deleting payment handoff")
	}
	return nil
}

// Drain removes every stage payload for a customer once the saga lands.
func (s *HandoffStore) Drain(ctx context.Context, customerID string) error {
	id, err := cleanCustomerID(customerID)
	if err != nil {
		return err
	}
	keys := []string{
		s.kv.HandoffKey(enums.CheckoutStageInformation.String(), id),
		s.kv.HandoffKey(enums.CheckoutStageShipping.String(), id),
		s.kv.HandoffKey(enums.CheckoutStagePayment.String(), id),
	}
	if err := s.kv.Del(ctx, keys...); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "draining checkout handoffs")
	}
	return nil
}

func (s *HandoffStore) save(ctx context.Context, stage enums.CheckoutStage, customerID string, payload any) error {
	id, err := cleanCustomerID(customerID)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding checkout handoff")
	}
	key := s.kv.HandoffKey(stage.String(), id)
	if err := s.kv.Set(ctx, key, encoded, s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "saving checkout handoff")
	}
	return nil
}

func (s *HandoffStore) load(ctx context.Context, stage enums.CheckoutStage, customerID string, out any) (bool, error) {
	id, err := cleanCustomerID(customerID)
	if err != nil {
		return false, err
	}
	raw, err := s.kv.Get(ctx, s.kv.HandoffKey(stage.String(), id))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading checkout handoff")
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		// a corrupt payload is as good as a missing one, the stage re-runs
		return false, nil
	}
	return true, nil
}

func cleanCustomerID(customerID string) (string, error) {
	id := strings.TrimSpace(customerID)
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "customer id is required")
	}
	return id, nil
}
