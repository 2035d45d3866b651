package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/frostlinehq/frostline-backend/internal/cart"
	"github.com/frostlinehq/frostline-backend/internal/pricing"
	"github.com/frostlinehq/frostline-backend/pkg/config"
	"github.com/frostlinehq/frostline-backend/pkg/db/models"
	"github.com/frostlinehq/frostline-backend/pkg/delivery"
	"github.com/frostlinehq/frostline-backend/pkg/enums"
	pkgerrors "github.com/frostlinehq/frostline-backend/pkg/errors"
	"github.com/frostlinehq/frostline-backend/pkg/geocode"
	"github.com/frostlinehq/frostline-backend/pkg/logger"
	"github.com/frostlinehq/frostline-backend/pkg/metrics"
	"github.com/frostlinehq/frostline-backend/pkg/square"
	"github.com/frostlinehq/frostline-backend/pkg/types"
)

const pickupServiceTier = "pickup"

type squareLinkParams = square.PaymentLinkCreateParams

type cartReader interface {
	Get(ctx context.Context, identity cart.Identity) (*cart.View, error)
}

type cartConverter interface {
	ConvertActive(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) error
}

type productLoader interface {
	GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
}

type couponValidator interface {
	Validate(ctx context.Context, code string, subtotalCents int) (*pricing.Discount, error)
}

type geocoder interface {
	Resolve(ctx context.Context, address string) (*geocode.Result, error)
}

type courier interface {
	Quotes(ctx context.Context, req delivery.QuoteRequest) ([]delivery.Quote, error)
}

type paymentProvider interface {
	CreatePaymentLink(ctx context.Context, params squareLinkParams) (*sq.PaymentLink, error)
	DeletePaymentLink(ctx context.Context, paymentLinkID string) error
	GetOrder(ctx context.Context, orderID string) (*sq.Order, error)
	GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error)
}

type orderStore interface {
	Create(ctx context.Context, tx *gorm.DB, order *models.Order) error
	GetByPaymentSession(ctx context.Context, sessionID string) (*models.Order, error)
}

type stockDecrementer interface {
	DecrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type completionLatch interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	CompletionKey(sessionID string) string
}

// ServiceParams collects the checkout saga's dependencies.
type ServiceParams struct {
	Handoffs *HandoffStore
	Carts    cartReader
	CartRepo cartConverter
	Products productLoader
	Coupons  couponValidator
	Geocoder geocoder
	Courier  courier
	Payments paymentProvider
	Orders   orderStore
	Stock    stockDecrementer
	Tx       txRunner
	Latch    completionLatch
	Calc     *pricing.Calculator
	Config   config.CheckoutConfig
	Metrics  *metrics.CheckoutMetrics
	Logger   *logger.Logger
}

// Service runs the three-stage checkout saga. Each stage validates its
// prerequisite handoff and persists its own; a missing prerequisite comes
// back as a redirect to the earliest incomplete stage.
type Service struct {
	handoffs *HandoffStore
	carts    cartReader
	cartRepo cartConverter
	products productLoader
	coupons  couponValidator
	geocoder geocoder
	courier  courier
	payments paymentProvider
	orders   orderStore
	stock    stockDecrementer
	tx       txRunner
	latch    completionLatch
	calc     *pricing.Calculator
	cfg      config.CheckoutConfig
	metrics  *metrics.CheckoutMetrics
	logger   *logger.Logger
	now      func() time.Time
}

// NewService wires the checkout service.
func NewService(p ServiceParams) (*Service, error) {
	if p.Handoffs == nil {
		return nil, fmt.Errorf("handoff store is required")
	}
	if p.Carts == nil {
		return nil, fmt.Errorf("cart reader is required")
	}
	if p.CartRepo == nil {
		return nil, fmt.Errorf("cart repository is required")
	}
	if p.Products == nil {
		return nil, fmt.Errorf("product loader is required")
	}
	if p.Coupons == nil {
		return nil, fmt.Errorf("coupon validator is required")
	}
	if p.Geocoder == nil {
		return nil, fmt.Errorf("geocoder is required")
	}
	if p.Courier == nil {
		return nil, fmt.Errorf("courier client is required")
	}
	if p.Payments == nil {
		return nil, fmt.Errorf("payment provider is required")
	}
	if p.Orders == nil {
		return nil, fmt.Errorf("order store is required")
	}
	if p.Stock == nil {
		return nil, fmt.Errorf("stock decrementer is required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if p.Latch == nil {
		return nil, fmt.Errorf("completion latch is required")
	}
	if p.Calc == nil {
		return nil, fmt.Errorf("pricing calculator is required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Service{
		handoffs: p.Handoffs,
		carts:    p.Carts,
		cartRepo: p.CartRepo,
		products: p.Products,
		coupons:  p.Coupons,
		geocoder: p.Geocoder,
		courier:  p.Courier,
		payments: p.Payments,
		orders:   p.Orders,
		stock:    p.Stock,
		tx:       p.Tx,
		latch:    p.Latch,
		calc:     p.Calc,
		cfg:      p.Config,
		metrics:  p.Metrics,
		logger:   p.Logger,
		now:      time.Now,
	}, nil
}

// InformationInput is the stage-one submission.
type InformationInput struct {
	Email   string             `json:"email" validate:"required,email"`
	Phone   string             `json:"phone,omitempty"`
	Address types.Address      `json:"address" validate:"required"`
	Pin     *types.Coordinates `json:"pin,omitempty"`
}

// ShippingInput is the stage-two submission.
type ShippingInput struct {
	Method  DeliveryMethod `json:"method" validate:"required"`
	QuoteID string         `json:"quote_id,omitempty"`
}

// PaymentSession is what stage three hands the client: where to pay and for
// how much.
type PaymentSession struct {
	SessionID  string         `json:"session_id"`
	PaymentURL string         `json:"payment_url"`
	CancelURL  string         `json:"cancel_url,omitempty"`
	Totals     pricing.Totals `json:"totals"`
}

// SubmitInformation runs stage one: the cart must hold something and the
// shopper must confirm the delivery pin. Without a pin the call returns the
// geocoded candidate instead of saving the handoff.
func (s *Service) SubmitInformation(ctx context.Context, customerID uuid.UUID, input InformationInput) (*ShippingInfo, error) {
	started := s.now()
	defer func() {
		s.metrics.ObserveStageDuration(enums.CheckoutStageInformation.String(), s.now().Sub(started))
	}()

	if _, err := s.nonEmptyCart(ctx, customerID); err != nil {
		s.metrics.IncStage(enums.CheckoutStageInformation.String(), false)
		return nil, err
	}

	input.Address.Normalize()
	if err := input.Address.Validate(); err != nil {
		s.metrics.IncStage(enums.CheckoutStageInformation.String(), false)
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}

	location, err := s.confirmLocation(ctx, input)
	if err != nil {
		s.metrics.IncStage(enums.CheckoutStageInformation.String(), false)
		return nil, err
	}

	info := ShippingInfo{
		Email:    input.Email,
		Phone:    input.Phone,
		Address:  input.Address,
		Location: location,
	}
	if err := s.handoffs.SaveShipping(ctx, customerID.String(), info); err != nil {
		s.metrics.IncStage(enums.CheckoutStageInformation.String(), false)
		return nil, err
	}
	s.metrics.IncStage(enums.CheckoutStageInformation.String(), true)

	saved, err := s.handoffs.LoadShipping(ctx, customerID.String())
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// SavedInformation returns the stage-one handoff for saga re-entry. A missing
// handoff redirects the client back to the information stage.
func (s *Service) SavedInformation(ctx context.Context, customerID uuid.UUID) (*ShippingInfo, error) {
	info, err := s.handoffs.LoadShipping(ctx, customerID.String())
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, redirectTo(enums.CheckoutStageInformation)
	}
	return info, nil
}

// SavedSelection returns the stage-two handoff for saga re-entry.
func (s *Service) SavedSelection(ctx context.Context, customerID uuid.UUID) (*Selection, error) {
	selection, err := s.handoffs.LoadSelection(ctx, customerID.String())
	if err != nil {
		return nil, err
	}
	if selection == nil {
		return nil, redirectTo(enums.CheckoutStageShipping)
	}
	return selection, nil
}

// CourierQuotes prices delivery for the stage-one destination. Stage one must
// have run first.
func (s *Service) CourierQuotes(ctx context.Context, customerID uuid.UUID) ([]delivery.Quote, error) {
	info, err := s.handoffs.LoadShipping(ctx, customerID.String())
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, redirectTo(enums.CheckoutStageInformation)
	}
	view, err := s.nonEmptyCart(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return s.quoteFor(ctx, info, view)
}

// SubmitShipping runs stage two: choose pickup or a courier quote and freeze
// the cart snapshot the payment stage will price.
func (s *Service) SubmitShipping(ctx context.Context, customerID uuid.UUID, input ShippingInput) (*Selection, error) {
	started := s.now()
	defer func() {
		s.metrics.ObserveStageDuration(enums.CheckoutStageShipping.String(), s.now().Sub(started))
	}()

	if !input.Method.IsValid() {
		s.metrics.IncStage(enums.CheckoutStageShipping.String(), false)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery method must be pickup or courier")
	}

	info, err := s.handoffs.LoadShipping(ctx, customerID.String())
	if err != nil {
		return nil, err
	}
	if info == nil {
		s.metrics.IncStage(enums.CheckoutStageShipping.String(), false)
		return nil, redirectTo(enums.CheckoutStageInformation)
	}

	view, err := s.nonEmptyCart(ctx, customerID)
	if err != nil {
		s.metrics.IncStage(enums.CheckoutStageShipping.String(), false)
		return nil, err
	}

	selection := Selection{
		Info:          *info,
		Method:        input.Method,
		Lines:         snapshotLines(view),
		CouponCode:    view.CouponCode,
		SubtotalCents: view.Totals.SubtotalCents,
	}

	if input.Method == MethodCourier {
		quotes, err := s.quoteFor(ctx, info, view)
		if err != nil {
			s.metrics.IncStage(enums.CheckoutStageShipping.String(), false)
			return nil, err
		}
		quote := pickQuote(quotes, input.QuoteID)
		if quote == nil {
			s.metrics.IncStage(enums.CheckoutStageShipping.String(), false)
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "requested delivery quote is not available")
		}
		selection.Quote = quote
	}

	if err := s.handoffs.SaveSelection(ctx, customerID.String(), selection); err != nil {
		s.metrics.IncStage(enums.CheckoutStageShipping.String(), false)
		return nil, err
	}
	s.metrics.IncStage(enums.CheckoutStageShipping.String(), true)

	saved, err := s.handoffs.LoadSelection(ctx, customerID.String())
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// SubmitPayment runs stage three: price the frozen snapshot, open the hosted
// checkout session, and persist the payment handoff the reconciler will land.
func (s *Service) SubmitPayment(ctx context.Context, customerID uuid.UUID) (*PaymentSession, error) {
	started := s.now()
	defer func() {
		s.metrics.ObserveStageDuration(enums.CheckoutStagePayment.String(), s.now().Sub(started))
	}()

	selection, err := s.handoffs.LoadSelection(ctx, customerID.String())
	if err != nil {
		return nil, err
	}
	if selection == nil {
		s.metrics.IncStage(enums.CheckoutStagePayment.String(), false)
		return nil, redirectTo(enums.CheckoutStageShipping)
	}
	if selection.Method == MethodCourier {
		if selection.Quote == nil || !selection.Quote.Fresh(s.now(), s.cfg.QuoteMaxAge) {
			s.metrics.IncStage(enums.CheckoutStagePayment.String(), false)
			return nil, redirectTo(enums.CheckoutStageShipping)
		}
	}
	if len(selection.Lines) == 0 {
		s.metrics.IncStage(enums.CheckoutStagePayment.String(), false)
		return nil, redirectTo(enums.CheckoutStageInformation)
	}

	// price the snapshot, not the live cart; the coupon is revalidated and
	// silently dropped if it no longer applies
	var discount *pricing.Discount
	if selection.CouponCode != nil {
		if validated, err := s.coupons.Validate(ctx, *selection.CouponCode, selection.SubtotalCents); err == nil {
			discount = validated
		}
	}
	feeCents := 0
	serviceTier := pickupServiceTier
	etaMinutes := 0
	if selection.Method == MethodCourier && selection.Quote != nil {
		feeCents = selection.Quote.FeeCents
		serviceTier = selection.Quote.ServiceTier
		etaMinutes = selection.Quote.EtaMinutes
	}
	totals := s.calc.Compute(pricingLinesFromCart(selection.Lines), discount, feeCents)

	sessionID := uuid.NewString()
	params := squareLinkParams{
		ReferenceID:      sessionID,
		Description:      "Frostline order",
		BuyerEmail:       selection.Info.Email,
		RedirectURL:      s.cfg.SuccessRedirectURL,
		Currency:         s.cfg.Currency,
		LineItems:        paymentLineItems(selection.Lines),
		DiscountCents:    int64(totals.DiscountCents),
		TaxCents:         int64(totals.TaxCents),
		DeliveryFeeCents: int64(totals.DeliveryFeeCents),
	}

	link, err := s.payments.CreatePaymentLink(ctx, params)
	if err != nil {
		s.metrics.IncStage(enums.CheckoutStagePayment.String(), false)
		return nil, err
	}

	draft := OrderDraft{
		Lines:       selection.Lines,
		Email:       selection.Info.Email,
		ServiceTier: serviceTier,
		EtaMinutes:  etaMinutes,
		CouponCode:  selection.CouponCode,
		Totals:      totals,
		Currency:    s.cfg.Currency,
	}
	if selection.Method == MethodCourier {
		address := selection.Info.Address
		draft.Address = &address
	}

	handoff := PaymentHandoff{
		SessionID:      sessionID,
		PaymentLinkID:  stringValue(link.GetID()),
		PaymentLinkURL: stringValue(link.GetURL()),
		SquareOrderID:  stringValue(link.GetOrderID()),
		Draft:          draft,
	}
	if err := s.handoffs.SavePayment(ctx, customerID.String(), handoff); err != nil {
		s.metrics.IncStage(enums.CheckoutStagePayment.String(), false)
		return nil, err
	}
	s.metrics.IncStage(enums.CheckoutStagePayment.String(), true)

	return &PaymentSession{
		SessionID:  sessionID,
		PaymentURL: handoff.PaymentLinkURL,
		CancelURL:  s.cfg.CancelRedirectURL,
		Totals:     totals,
	}, nil
}

func (s *Service) nonEmptyCart(ctx context.Context, customerID uuid.UUID) (*cart.View, error) {
	view, err := s.carts.Get(ctx, cart.Identity{CustomerID: customerID, Role: enums.ActorRoleCustomer})
	if err != nil {
		return nil, err
	}
	if view.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	return view, nil
}

// confirmLocation turns the address into a confirmed pin. The stage only
// advances on a pin the shopper has echoed back: an address string alone
// yields the geocoded candidate as a validation error so the client can show
// the map and resubmit with the pin.
func (s *Service) confirmLocation(ctx context.Context, input InformationInput) (types.Coordinates, error) {
	if input.Pin != nil && !input.Pin.IsZero() {
		return *input.Pin, nil
	}
	result, err := s.geocoder.Resolve(ctx, input.Address.OneLine())
	if err != nil {
		return types.Coordinates{}, err
	}
	if result.Partial {
		return types.Coordinates{}, pkgerrors.New(pkgerrors.CodeValidation, "address could not be located precisely, confirm the pin on the map")
	}
	return types.Coordinates{}, pkgerrors.New(pkgerrors.CodeValidation, "confirm the delivery pin").WithDetails(map[string]any{
		"pin":               result.Location,
		"formatted_address": result.FormattedAddress,
	})
}

func (s *Service) quoteFor(ctx context.Context, info *ShippingInfo, view *cart.View) ([]delivery.Quote, error) {
	items := make([]delivery.QuoteItem, 0, len(view.Lines))
	for _, line := range view.Lines {
		item := delivery.QuoteItem{
			ProductID: line.ProductID.String(),
			Quantity:  line.Quantity,
		}
		if product, err := s.products.GetProduct(ctx, line.ProductID); err == nil {
			item.WeightGrams = product.WeightGrams * line.Quantity
		}
		items = append(items, item)
	}
	return s.courier.Quotes(ctx, delivery.QuoteRequest{
		Destination: info.Location,
		PostalCode:  info.Address.PostalCode,
		Items:       items,
	})
}

func pickQuote(quotes []delivery.Quote, quoteID string) *delivery.Quote {
	if len(quotes) == 0 {
		return nil
	}
	if quoteID == "" {
		quote := quotes[0]
		return &quote
	}
	for _, quote := range quotes {
		if quote.QuoteID == quoteID {
			picked := quote
			return &picked
		}
	}
	return nil
}

func snapshotLines(view *cart.View) []cart.Line {
	lines := make([]cart.Line, 0, len(view.Lines))
	for _, line := range view.Lines {
		lines = append(lines, line.Line)
	}
	return lines
}

func pricingLinesFromCart(lines []cart.Line) []pricing.Line {
	out := make([]pricing.Line, 0, len(lines))
	for _, line := range lines {
		out = append(out, pricing.Line{
			ProductID:      line.ProductID,
			UnitPriceCents: line.UnitPriceCents,
			Quantity:       line.Quantity,
		})
	}
	return out
}

func paymentLineItems(lines []cart.Line) []square.PaymentLinkLineItem {
	items := make([]square.PaymentLinkLineItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, square.PaymentLinkLineItem{
			Name:           line.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: int64(line.UnitPriceCents),
		})
	}
	return items
}

// redirectTo signals the earliest incomplete stage the client must revisit.
func redirectTo(stage enums.CheckoutStage) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "an earlier checkout stage is incomplete").
		WithDetails(map[string]string{"redirect_stage": stage.String()})
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
