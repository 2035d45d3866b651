package checkout

import (
	"context"
	"testing"
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
	"github.com/frostlinehq/frostline-backend/pkg/redis"
	"github.com/frostlinehq/frostline-backend/pkg/types"
)

type fakeKV struct {
	values map[string]string
}

func newFakeKV() *fakeKV { return &fakeKV{values: map[string]string{}} }

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
	return nil
}

func (f *fakeKV) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func (f *fakeKV) HandoffKey(stage, customerID string) string {
	return "fl:checkout:handoff:" + stage + ":" + customerID
}

type fakeLatch struct {
	held map[string]bool
}

func newFakeLatch() *fakeLatch { return &fakeLatch{held: map[string]bool{}} }

func (f *fakeLatch) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if f.held[key] {
		return false, nil
	}
	f.held[key] = true
	return true, nil
}

func (f *fakeLatch) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.held, key)
	}
	return nil
}

func (f *fakeLatch) CompletionKey(sessionID string) string {
	return "fl:checkout:complete:" + sessionID
}

type stubCarts struct {
	view *cart.View
	err  error
}

func (s *stubCarts) Get(ctx context.Context, identity cart.Identity) (*cart.View, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.view, nil
}

type stubConverter struct {
	converted []uuid.UUID
}

func (s *stubConverter) ConvertActive(ctx context.Context, tx *gorm.DB, customerID uuid.UUID) error {
	s.converted = append(s.converted, customerID)
	return nil
}

type stubProducts struct {
	products map[uuid.UUID]*models.Product
}

func (s *stubProducts) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if product, ok := s.products[id]; ok {
		return product, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

type stubCoupons struct {
	discount *pricing.Discount
	err      error
}

func (s *stubCoupons) Validate(ctx context.Context, code string, subtotalCents int) (*pricing.Discount, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.discount != nil {
		return s.discount, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is not recognized")
}

type stubGeocoder struct {
	result *geocode.Result
	err    error
}

func (s *stubGeocoder) Resolve(ctx context.Context, address string) (*geocode.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubCourier struct {
	quotes  []delivery.Quote
	err     error
	lastReq delivery.QuoteRequest
}

func (s *stubCourier) Quotes(ctx context.Context, req delivery.QuoteRequest) ([]delivery.Quote, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.quotes, nil
}

type stubPayments struct {
	link          *sq.PaymentLink
	createErr     error
	order         *sq.Order
	orderErr      error
	payment       *sq.Payment
	deletedLinks  []string
	createdParams []squareLinkParams
}

func (s *stubPayments) CreatePaymentLink(ctx context.Context, params squareLinkParams) (*sq.PaymentLink, error) {
	s.createdParams = append(s.createdParams, params)
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.link, nil
}

func (s *stubPayments) DeletePaymentLink(ctx context.Context, paymentLinkID string) error {
	s.deletedLinks = append(s.deletedLinks, paymentLinkID)
	return nil
}

func (s *stubPayments) GetOrder(ctx context.Context, orderID string) (*sq.Order, error) {
	if s.orderErr != nil {
		return nil, s.orderErr
	}
	return s.order, nil
}

func (s *stubPayments) GetPayment(ctx context.Context, paymentID string) (*sq.Payment, error) {
	return s.payment, nil
}

type stubOrders struct {
	bySession map[string]*models.Order
	createErr error
}

func newStubOrders() *stubOrders { return &stubOrders{bySession: map[string]*models.Order{}} }

func (s *stubOrders) Create(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if s.createErr != nil {
		return s.createErr
	}
	if _, ok := s.bySession[order.PaymentSessionID]; ok {
		return pkgerrors.New(pkgerrors.CodeConflict, "order already exists for this payment session")
	}
	s.bySession[order.PaymentSessionID] = order
	return nil
}

func (s *stubOrders) GetByPaymentSession(ctx context.Context, sessionID string) (*models.Order, error) {
	if order, ok := s.bySession[sessionID]; ok {
		return order, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

type stubStock struct {
	decrements map[uuid.UUID]int
	err        error
}

func newStubStock() *stubStock { return &stubStock{decrements: map[uuid.UUID]int{}} }

func (s *stubStock) DecrementStock(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if s.err != nil {
		return s.err
	}
	s.decrements[productID] += qty
	return nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func ptr[T any](v T) *T { return &v }

type checkoutFixture struct {
	svc       *Service
	kv        *fakeKV
	latch     *fakeLatch
	carts     *stubCarts
	converter *stubConverter
	products  *stubProducts
	coupons   *stubCoupons
	geocoder  *stubGeocoder
	courier   *stubCourier
	payments  *stubPayments
	orders    *stubOrders
	stock     *stubStock
	clock     time.Time
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()

	kv := newFakeKV()
	handoffs, err := NewHandoffStore(kv, 24*time.Hour)
	if err != nil {
		t.Fatalf("new handoff store: %v", err)
	}
	calc, err := pricing.NewCalculator("0.10")
	if err != nil {
		t.Fatalf("new calculator: %v", err)
	}

	productID := uuid.New()
	f := &checkoutFixture{
		kv:    kv,
		latch: newFakeLatch(),
		carts: &stubCarts{view: &cart.View{
			Mode: cart.ModeBound,
			Lines: []cart.LineView{{
				Line: cart.Line{
					ProductID:      productID,
					Name:           "Ribeye 16oz",
					UnitPriceCents: 2500,
					Quantity:       4,
				},
				LineTotalCents: 10000,
			}},
			Totals: pricing.Totals{SubtotalCents: 10000, TaxCents: 1000, TotalCents: 11000},
		}},
		converter: &stubConverter{},
		products: &stubProducts{products: map[uuid.UUID]*models.Product{
			productID: {ID: productID, Name: "Ribeye 16oz", PriceCents: 2500, AvailableQty: 10, WeightGrams: 450, IsActive: true},
		}},
		coupons:  &stubCoupons{},
		geocoder: &stubGeocoder{result: &geocode.Result{Location: types.Coordinates{Lat: 44.98, Lng: -93.26}}},
		courier: &stubCourier{quotes: []delivery.Quote{{
			QuoteID:     "q-1",
			ServiceTier: "same_day",
			FeeCents:    1500,
			EtaMinutes:  120,
			ObtainedAt:  time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC),
		}}},
		payments: &stubPayments{
			link: &sq.PaymentLink{
				ID:      ptr("plink-1"),
				URL:     ptr("https://square.link/u/abc"),
				OrderID: ptr("sqorder-1"),
			},
			order: &sq.Order{
				State:   ptr(sq.OrderStateCompleted),
				Tenders: []*sq.Tender{{PaymentID: ptr("pay-1")}},
			},
			payment: &sq.Payment{Status: ptr("COMPLETED")},
		},
		orders: newStubOrders(),
		stock:  newStubStock(),
		clock:  time.Date(2025, 8, 10, 12, 0, 0, 0, time.UTC),
	}

	svc, err := NewService(ServiceParams{
		Handoffs: handoffs,
		Carts:    f.carts,
		CartRepo: f.converter,
		Products: f.products,
		Coupons:  f.coupons,
		Geocoder: f.geocoder,
		Courier:  f.courier,
		Payments: f.payments,
		Orders:   f.orders,
		Stock:    f.stock,
		Tx:       stubTx{},
		Latch:    f.latch,
		Calc:     calc,
		Config: config.CheckoutConfig{
			TaxRate:            "0.10",
			Currency:           "USD",
			HandoffTTL:         24 * time.Hour,
			QuoteMaxAge:        10 * time.Minute,
			CompletionLatchTTL: 168 * time.Hour,
			SuccessRedirectURL: "https://frostline.example/checkout/success",
		},
		Metrics: metrics.NewCheckoutMetrics(nil),
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	svc.now = func() time.Time { return f.clock }
	handoffs.now = svc.now
	f.svc = svc
	return f
}

func (f *checkoutFixture) productID() uuid.UUID {
	return f.carts.view.Lines[0].ProductID
}

func testAddress() types.Address {
	return types.Address{
		Line1:      "150 Cold Chain Ave",
		City:       "Minneapolis",
		State:      "MN",
		PostalCode: "55401",
	}
}

func infoInput() InformationInput {
	return InformationInput{
		Email:   "shopper@example.com",
		Address: testAddress(),
		Pin:     &types.Coordinates{Lat: 44.98, Lng: -93.26},
	}
}

func addressOnlyInput() InformationInput {
	input := infoInput()
	input.Pin = nil
	return input
}

func expectRedirect(t *testing.T, err error, stage enums.CheckoutStage) {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected stage redirect, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok || details["redirect_stage"] != stage.String() {
		t.Fatalf("expected redirect to %s, got %v", stage, typed.Details())
	}
}

func TestSubmitInformationStoresHandoff(t *testing.T) {
	f := newCheckoutFixture(t)
	customerID := uuid.New()

	info, err := f.svc.SubmitInformation(context.Background(), customerID, infoInput())
	if err != nil {
		t.Fatalf("submit information failed: %v", err)
	}
	if info.Location.Lat != 44.98 {
		t.Fatalf("expected confirmed pin, got %+v", info.Location)
	}
	if info.SavedAt.IsZero() {
		t.Fatalf("handoff should carry a timestamp")
	}
}

func TestSubmitInformationRequiresNonEmptyCart(t *testing.T) {
	f := newCheckoutFixture(t)
	f.carts.view = &cart.View{Mode: cart.ModeBound}

	_, err := f.svc.SubmitInformation(context.Background(), uuid.New(), infoInput())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitInformationPartialMatchNeedsPin(t *testing.T) {
	f := newCheckoutFixture(t)
	f.geocoder.result = &geocode.Result{Location: types.Coordinates{Lat: 1, Lng: 1}, Partial: true}
	customerID := uuid.New()

	_, err := f.svc.SubmitInformation(context.Background(), customerID, addressOnlyInput())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	// an explicit pin overrides the partial geocode
	input := infoInput()
	input.Pin = &types.Coordinates{Lat: 45.01, Lng: -93.3}
	info, err := f.svc.SubmitInformation(context.Background(), customerID, input)
	if err != nil {
		t.Fatalf("submit with pin failed: %v", err)
	}
	if info.Location.Lat != 45.01 {
		t.Fatalf("pin should win, got %+v", info.Location)
	}
}

func TestSubmitInformationAddressAloneReturnsCandidate(t *testing.T) {
	f := newCheckoutFixture(t)
	customerID := uuid.New()

	_, err := f.svc.SubmitInformation(context.Background(), customerID, addressOnlyInput())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected candidate details, got %v", typed.Details())
	}
	candidate, ok := details["pin"].(types.Coordinates)
	if !ok || candidate.Lat != 44.98 {
		t.Fatalf("expected geocoded candidate, got %v", details["pin"])
	}

	// nothing may be saved until the shopper echoes the pin back
	_, err = f.svc.SavedInformation(context.Background(), customerID)
	expectRedirect(t, err, enums.CheckoutStageInformation)

	input := addressOnlyInput()
	input.Pin = &candidate
	info, err := f.svc.SubmitInformation(context.Background(), customerID, input)
	if err != nil {
		t.Fatalf("submit with confirmed pin failed: %v", err)
	}
	if info.Location != candidate {
		t.Fatalf("expected confirmed pin, got %+v", info.Location)
	}
}

func TestSavedStageDataRedirectsWhenMissing(t *testing.T) {
	f := newCheckoutFixture(t)
	customerID := uuid.New()

	_, err := f.svc.SavedInformation(context.Background(), customerID)
	expectRedirect(t, err, enums.CheckoutStageInformation)

	_, err = f.svc.SavedSelection(context.Background(), customerID)
	expectRedirect(t, err, enums.CheckoutStageShipping)
}

func TestSavedInformationReturnsHandoff(t *testing.T) {
	f := newCheckoutFixture(t)
	customerID := uuid.New()

	if _, err := f.svc.SubmitInformation(context.Background(), customerID, infoInput()); err != nil {
		t.Fatalf("submit information failed: %v", err)
	}

	info, err := f.svc.SavedInformation(context.Background(), customerID)
	if err != nil {
		t.Fatalf("saved information failed: %v", err)
	}
	if info.Email != infoInput().Email {
		t.Fatalf("expected stored contact, got %+v", info)
	}
}

func TestSubmitShippingWithoutInformationRedirects(t *testing.T) {
	f := newCheckoutFixture(t)

	_, err := f.svc.SubmitShipping(context.Background(), uuid.New(), ShippingInput{Method: MethodCourier})
	expectRedirect(t, err, enums.CheckoutStageInformation)
}

func TestSubmitShippingCourierSnapshotsQuote(t *testing.T) {
	f := newCheckoutFixture(t)
	customerID := uuid.New()

	if _, err := f.svc.SubmitInformation(context.Background(), customerID, infoInput()); err != nil {
		t.Fatalf("information failed: %v", err)
	}
	selection, err := f.svc.SubmitShipping(context.Background(), customerID, ShippingInput{Method: MethodCourier, QuoteID: "q-1"})
	if err != nil {
		t.Fatalf("shipping failed: %v", err)
	}
	if selection.Quote == nil || selection.Quote.FeeCents != 1500 {
		t.Fatalf("quote not snapshotted: %+v", selection.Quote)
	}
	if selection.SubtotalCents != 10000 || len(selection.Lines) != 1 {
		t.Fatalf("cart snapshot missing: %+v", selection)
	}
	if f.courier.lastReq.Items[0].WeightGrams != 1800 {
		t.Fatalf("expected shipment weight 1800, got %d", f.courier.lastReq.Items[0].WeightGrams)
	}
}

func TestSubmitShippingPickupNeedsNoQuote(t *testing.T) {
	f := newCheckoutFixture(t)
	customerID := uuid.New()

	if _, err := f.svc.SubmitInformation(context.Background(), customerID, infoInput()); err != nil {
		t.Fatalf("information failed: %v", err)
	}
	selection, err := f.svc.SubmitShipping(context.Background(), customerID, ShippingInput{Method: MethodPickup})
	if err != nil {
		t.Fatalf("shipping failed: %v", err)
	}
	if selection.Quote != nil {
		t.Fatalf("pickup must not carry a quote")
	}
}

func TestSubmitPaymentWithoutSelectionRedirects(t *testing.T) {
	f := newCheckoutFixture(t)

	_, err := f.svc.SubmitPayment(context.Background(), uuid.New())
	expectRedirect(t, err, enums.CheckoutStageShipping)
}

func TestSubmitPaymentStaleQuoteRedirects(t *testing.T) {
	f := newCheckoutFixture(t)
	customerID := uuid.New()

	if _, err := f.svc.SubmitInformation(context.Background(), customerID, infoInput()); err != nil {
		t.Fatalf("information failed: %v", err)
	}
	if _, err := f.svc.SubmitShipping(context.Background(), customerID, ShippingInput{Method: MethodCourier}); err != nil {
		t.Fatalf("shipping failed: %v", err)
	}

	f.clock = f.clock.Add(11 * time.Minute)
	_, err := f.svc.SubmitPayment(context.Background(), customerID)
	expectRedirect(t, err, enums.CheckoutStageShipping)
}

func TestSubmitPaymentOpensHostedSession(t *testing.T) {
	f := newCheckoutFixture(t)
	customerID := uuid.New()

	if _, err := f.svc.SubmitInformation(context.Background(), customerID, infoInput()); err != nil {
		t.Fatalf("information failed: %v", err)
	}
	if _, err := f.svc.SubmitShipping(context.Background(), customerID, ShippingInput{Method: MethodCourier}); err != nil {
		t.Fatalf("shipping failed: %v", err)
	}

	session, err := f.svc.SubmitPayment(context.Background(), customerID)
	if err != nil {
		t.Fatalf("payment failed: %v", err)
	}
	if session.PaymentURL != "https://square.link/u/abc" {
		t.Fatalf("unexpected payment url %q", session.PaymentURL)
	}
	// 10000 subtotal + 1000 tax + 1500 delivery
	if session.Totals.TotalCents != 12500 {
		t.Fatalf("unexpected total %d", session.Totals.TotalCents)
	}
	if len(f.payments.createdParams) != 1 {
		t.Fatalf("expected one payment link request")
	}
	params := f.payments.createdParams[0]
	if params.TaxCents != 1000 || params.DeliveryFeeCents != 1500 {
		t.Fatalf("unexpected params %+v", params)
	}

	handoff, err := f.svc.handoffs.LoadPayment(context.Background(), customerID.String())
	if err != nil || handoff == nil {
		t.Fatalf("payment handoff missing: %v", err)
	}
	if handoff.SessionID != session.SessionID || handoff.SquareOrderID != "sqorder-1" {
		t.Fatalf("unexpected handoff %+v", handoff)
	}
}

func TestSubmitPaymentRecomputesFromSnapshot(t *testing.T) {
	f := newCheckoutFixture(t)
	customerID := uuid.New()

	if _, err := f.svc.SubmitInformation(context.Background(), customerID, infoInput()); err != nil {
		t.Fatalf("information failed: %v", err)
	}
	if _, err := f.svc.SubmitShipping(context.Background(), customerID, ShippingInput{Method: MethodPickup}); err != nil {
		t.Fatalf("shipping failed: %v", err)
	}

	// the live cart changes after the snapshot; payment must ignore it
	f.carts.view.Lines[0].Quantity = 99

	session, err := f.svc.SubmitPayment(context.Background(), customerID)
	if err != nil {
		t.Fatalf("payment failed: %v", err)
	}
	if session.Totals.SubtotalCents != 10000 {
		t.Fatalf("payment must price the snapshot, got %+v", session.Totals)
	}
}
