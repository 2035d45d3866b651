package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/frostlinehq/frostline-backend/internal/pricing"
	"github.com/frostlinehq/frostline-backend/internal/stock"
	"github.com/frostlinehq/frostline-backend/pkg/db/models"
	pkgerrors "github.com/frostlinehq/frostline-backend/pkg/errors"
	"github.com/frostlinehq/frostline-backend/pkg/logger"
	"github.com/frostlinehq/frostline-backend/pkg/metrics"
)

const mutationLockTTL = 3 * time.Second

type adapter interface {
	Load(ctx context.Context, owner string) (State, error)
	UpsertLine(ctx context.Context, owner string, line Line) error
	RemoveLine(ctx context.Context, owner string, productID uuid.UUID) error
	SetCoupon(ctx context.Context, owner string, code *string) error
	Clear(ctx context.Context, owner string) error
}

type boundAdapter interface {
	adapter
	SaveTotals(ctx context.Context, owner string, totals pricing.Totals) error
	MarkMerged(ctx context.Context, customerID uuid.UUID) error
}

type productLoader interface {
	GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
}

type couponValidator interface {
	Validate(ctx context.Context, code string, subtotalCents int) (*pricing.Discount, error)
}

type mutationLocker interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	MutationLockKey(identity, productID string) string
}

// Service is the single cart API over both persistence modes. Guest carts
// live in Redis under an opaque token; bound carts live in Postgres under the
// customer id. Every mutation re-checks live stock, and every returned view
// carries freshly computed totals.
type Service struct {
	guest    adapter
	bound    boundAdapter
	products productLoader
	coupons  couponValidator
	locks    mutationLocker
	calc     *pricing.Calculator
	metrics  *metrics.CheckoutMetrics
	logger   *logger.Logger
}

// NewService wires the cart service.
func NewService(
	guest adapter,
	bound boundAdapter,
	products productLoader,
	coupons couponValidator,
	locks mutationLocker,
	calc *pricing.Calculator,
	checkoutMetrics *metrics.CheckoutMetrics,
	logg *logger.Logger,
) (*Service, error) {
	if guest == nil {
		return nil, fmt.Errorf("guest store is required")
	}
	if bound == nil {
		return nil, fmt.Errorf("bound store is required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader is required")
	}
	if coupons == nil {
		return nil, fmt.Errorf("coupon validator is required")
	}
	if locks == nil {
		return nil, fmt.Errorf("mutation locker is required")
	}
	if calc == nil {
		return nil, fmt.Errorf("pricing calculator is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{
		guest:    guest,
		bound:    bound,
		products: products,
		coupons:  coupons,
		locks:    locks,
		calc:     calc,
		metrics:  checkoutMetrics,
		logger:   logg,
	}, nil
}

// Get returns the current cart snapshot with recomputed totals.
func (s *Service) Get(ctx context.Context, identity Identity) (*View, error) {
	target, err := s.resolve(identity)
	if err != nil {
		return nil, err
	}
	state, err := s.loadWithFallback(ctx, identity, target)
	if err != nil {
		return nil, err
	}
	view := s.buildView(ctx, target.mode, state)
	return &view, nil
}

// AddLine adds one unit of a product. The stock guard runs against live
// availability; a denial leaves the cart untouched and reports why.
func (s *Service) AddLine(ctx context.Context, identity Identity, productID uuid.UUID) (*MutationResult, error) {
	result, err := s.mutateLine(ctx, identity, productID, "add", func(product *models.Product, current int) (stock.Outcome, int) {
		return stock.Check(product.AvailableQty, current, 1), current + 1
	})
	s.metrics.IncCartMutation("add", err == nil && result != nil && result.Outcome.Allowed())
	return result, err
}

// SetQuantity sets the absolute quantity for a product. Zero removes the
// line. A quantity above live availability is rejected, never clamped.
func (s *Service) SetQuantity(ctx context.Context, identity Identity, productID uuid.UUID, quantity int) (*MutationResult, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	if quantity == 0 {
		return s.RemoveLine(ctx, identity, productID)
	}
	result, err := s.mutateLine(ctx, identity, productID, "set_quantity", func(product *models.Product, current int) (stock.Outcome, int) {
		return stock.CheckAbsolute(product.AvailableQty, quantity), quantity
	})
	s.metrics.IncCartMutation("set_quantity", err == nil && result != nil && result.Outcome.Allowed())
	return result, err
}

// RemoveLine drops a product from the cart. Removing a line that is not
// there succeeds quietly.
func (s *Service) RemoveLine(ctx context.Context, identity Identity, productID uuid.UUID) (*MutationResult, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	target, err := s.resolve(identity)
	if err != nil {
		return nil, err
	}
	unlock, err := s.lock(ctx, identity, productID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = s.withFallback(ctx, identity, target, func(a adapter, owner string) error {
		return a.RemoveLine(ctx, owner, productID)
	})
	s.metrics.IncCartMutation("remove", err == nil)
	if err != nil {
		return nil, err
	}
	return s.finishMutation(ctx, identity, target, stock.OutcomeAllow)
}

// ApplyCoupon validates a code against the current subtotal and attaches it.
func (s *Service) ApplyCoupon(ctx context.Context, identity Identity, code string) (*View, error) {
	target, err := s.resolve(identity)
	if err != nil {
		return nil, err
	}
	state, err := s.loadWithFallback(ctx, identity, target)
	if err != nil {
		return nil, err
	}

	subtotal := s.calc.Compute(pricingLines(state.Lines), nil, 0).SubtotalCents
	discount, err := s.coupons.Validate(ctx, code, subtotal)
	if err != nil {
		s.metrics.IncCartMutation("apply_coupon", false)
		return nil, err
	}

	err = s.withFallback(ctx, identity, target, func(a adapter, owner string) error {
		return a.SetCoupon(ctx, owner, &discount.Code)
	})
	s.metrics.IncCartMutation("apply_coupon", err == nil)
	if err != nil {
		return nil, err
	}
	result, err := s.finishMutation(ctx, identity, target, stock.OutcomeAllow)
	if err != nil {
		return nil, err
	}
	return &result.Cart, nil
}

// RemoveCoupon detaches any coupon from the cart.
func (s *Service) RemoveCoupon(ctx context.Context, identity Identity) (*View, error) {
	target, err := s.resolve(identity)
	if err != nil {
		return nil, err
	}
	err = s.withFallback(ctx, identity, target, func(a adapter, owner string) error {
		return a.SetCoupon(ctx, owner, nil)
	})
	s.metrics.IncCartMutation("remove_coupon", err == nil)
	if err != nil {
		return nil, err
	}
	result, err := s.finishMutation(ctx, identity, target, stock.OutcomeAllow)
	if err != nil {
		return nil, err
	}
	return &result.Cart, nil
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, identity Identity) error {
	target, err := s.resolve(identity)
	if err != nil {
		return err
	}
	err = s.withFallback(ctx, identity, target, func(a adapter, owner string) error {
		return a.Clear(ctx, owner)
	})
	s.metrics.IncCartMutation("clear", err == nil)
	return err
}

type resolved struct {
	store adapter
	owner string
	mode  Mode
}

func (s *Service) resolve(identity Identity) (resolved, error) {
	if identity.Operator() {
		return resolved{}, pkgerrors.New(pkgerrors.CodeForbidden, "operator accounts do not carry a cart")
	}
	if identity.Bound() {
		return resolved{store: s.bound, owner: identity.CustomerID.String(), mode: ModeBound}, nil
	}
	if identity.Key() == "" {
		return resolved{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "a guest token or sign-in is required")
	}
	return resolved{store: s.guest, owner: identity.Key(), mode: ModeGuest}, nil
}

// withFallback runs op against the resolved store. A bound operation that
// fails with an auth or not-found class error retries against guest storage
// when a guest token is available; the reported mode stays bound.
func (s *Service) withFallback(ctx context.Context, identity Identity, target resolved, op func(a adapter, owner string) error) error {
	err := op(target.store, target.owner)
	if err == nil || target.mode != ModeBound {
		return err
	}
	if !pkgerrors.IsAuthOrNotFound(err) || identity.GuestToken == "" {
		return err
	}
	warnCtx := s.logger.WithCustomerID(ctx, identity.CustomerID.String())
	s.logger.Warn(warnCtx, "bound cart unavailable, falling back to guest storage")
	return op(s.guest, identity.GuestToken)
}

func (s *Service) loadWithFallback(ctx context.Context, identity Identity, target resolved) (State, error) {
	var state State
	err := s.withFallback(ctx, identity, target, func(a adapter, owner string) error {
		loaded, err := a.Load(ctx, owner)
		if err != nil {
			return err
		}
		state = loaded
		return nil
	})
	return state, err
}

func (s *Service) mutateLine(
	ctx context.Context,
	identity Identity,
	productID uuid.UUID,
	op string,
	decide func(product *models.Product, current int) (stock.Outcome, int),
) (*MutationResult, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	target, err := s.resolve(identity)
	if err != nil {
		return nil, err
	}
	unlock, err := s.lock(ctx, identity, productID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is no longer available")
	}

	state, err := s.loadWithFallback(ctx, identity, target)
	if err != nil {
		return nil, err
	}
	current := 0
	if line := state.FindLine(productID); line != nil {
		current = line.Quantity
	}

	outcome, nextQty := decide(product, current)
	if !outcome.Allowed() {
		view := s.buildView(ctx, target.mode, state)
		return &MutationResult{Outcome: outcome, Cart: view}, nil
	}

	err = s.withFallback(ctx, identity, target, func(a adapter, owner string) error {
		return a.UpsertLine(ctx, owner, Line{
			ProductID:      productID,
			Name:           product.Name,
			UnitPriceCents: product.PriceCents,
			Quantity:       nextQty,
		})
	})
	if err != nil {
		s.logger.Error(s.logger.WithField(ctx, "op", op), "cart mutation failed", err)
		return nil, err
	}
	return s.finishMutation(ctx, identity, target, stock.OutcomeAllow)
}

// finishMutation reloads the cart, recomputes totals, and for bound carts
// writes the cached breakdown back to the record.
func (s *Service) finishMutation(ctx context.Context, identity Identity, target resolved, outcome stock.Outcome) (*MutationResult, error) {
	state, err := s.loadWithFallback(ctx, identity, target)
	if err != nil {
		return nil, err
	}
	view := s.buildView(ctx, target.mode, state)
	if target.mode == ModeBound {
		if err := s.bound.SaveTotals(ctx, target.owner, view.Totals); err != nil && !pkgerrors.IsAuthOrNotFound(err) {
			return nil, err
		}
	}
	return &MutationResult{Outcome: outcome, Cart: view}, nil
}

// buildView reconciles the stored snapshot with the live catalog: each line
// gains its current stock status, the coupon is revalidated against today's
// subtotal, and totals come out of the calculator. A coupon that no longer
// validates contributes no discount but stays attached for the shopper to see.
func (s *Service) buildView(ctx context.Context, mode Mode, state State) View {
	view := View{
		Mode:       mode,
		Lines:      make([]LineView, 0, len(state.Lines)),
		CouponCode: state.CouponCode,
	}
	for _, line := range state.Lines {
		lineView := LineView{
			Line:           line,
			LineTotalCents: line.UnitPriceCents * line.Quantity,
		}
		if product, err := s.products.GetProduct(ctx, line.ProductID); err == nil {
			lineView.StockStatus = product.StockStatus()
		}
		view.Lines = append(view.Lines, lineView)
	}

	var discount *pricing.Discount
	if state.CouponCode != nil {
		subtotal := s.calc.Compute(pricingLines(state.Lines), nil, 0).SubtotalCents
		if validated, err := s.coupons.Validate(ctx, *state.CouponCode, subtotal); err == nil {
			discount = validated
		}
	}
	view.Totals = s.calc.Compute(pricingLines(state.Lines), discount, 0)
	return view
}

func (s *Service) lock(ctx context.Context, identity Identity, productID uuid.UUID) (func(), error) {
	key := s.locks.MutationLockKey(identity.Key(), productID.String())
	acquired, err := s.locks.SetNX(ctx, key, "1", mutationLockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquiring cart mutation lock")
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "another mutation for this product is in flight")
	}
	return func() {
		if err := s.locks.Del(ctx, key); err != nil {
			s.logger.Warn(s.logger.WithField(ctx, "key", key), "releasing cart mutation lock failed")
		}
	}, nil
}
