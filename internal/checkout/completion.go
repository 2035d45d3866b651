package checkout

import (
	"context"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/frostlinehq/frostline-backend/pkg/db/models"
	"github.com/frostlinehq/frostline-backend/pkg/enums"
	pkgerrors "github.com/frostlinehq/frostline-backend/pkg/errors"
)

// CompletionOutcome says how a success landing resolved.
type CompletionOutcome string

const (
	CompletionLanded    CompletionOutcome = "landed"
	CompletionDuplicate CompletionOutcome = "duplicate"
)

// CompletionResult is the landed (or previously landed) order.
type CompletionResult struct {
	Outcome CompletionOutcome `json:"outcome"`
	Order   *models.Order     `json:"order"`
}

// Complete is the success landing: it confirms settlement with the payment
// processor and lands the order exactly once. The Redis latch plus the unique
// payment session column make replays and double-deliveries converge on the
// same order.
func (s *Service) Complete(ctx context.Context, customerID uuid.UUID, sessionID string) (*CompletionResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment session id is required")
	}
	ctx = s.logger.WithStage(s.logger.WithCustomerID(ctx, customerID.String()), "completion")

	// a session that already landed resolves immediately, but only for the
	// customer it landed for
	if existing, err := s.orders.GetByPaymentSession(ctx, sessionID); err == nil {
		if existing.CustomerID != customerID {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no open payment session for this completion")
		}
		s.metrics.IncCompletion(string(CompletionDuplicate))
		return &CompletionResult{Outcome: CompletionDuplicate, Order: existing}, nil
	} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		return nil, err
	}

	handoff, err := s.handoffs.LoadPayment(ctx, customerID.String())
	if err != nil {
		return nil, err
	}
	if handoff == nil || handoff.SessionID != sessionID {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no open payment session for this completion")
	}

	latchKey := s.latch.CompletionKey(sessionID)
	acquired, err := s.latch.SetNX(ctx, latchKey, "1", s.cfg.CompletionLatchTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquiring completion latch")
	}
	if !acquired {
		if existing, err := s.orders.GetByPaymentSession(ctx, sessionID); err == nil {
			if existing.CustomerID != customerID {
				return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no open payment session for this completion")
			}
			s.metrics.IncCompletion(string(CompletionDuplicate))
			return &CompletionResult{Outcome: CompletionDuplicate, Order: existing}, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "completion for this session is already in flight")
	}

	order, err := s.settleAndPersist(ctx, customerID, sessionID, handoff)
	if err != nil {
		// release the latch so a retry can land once the cause clears
		if delErr := s.latch.Del(ctx, latchKey); delErr != nil {
			s.logger.Warn(ctx, "releasing completion latch failed")
		}
		s.metrics.IncCompletion("failed")
		return nil, err
	}

	if err := s.handoffs.Drain(ctx, customerID.String()); err != nil {
		s.logger.Warn(ctx, "draining checkout handoffs failed")
	}
	s.metrics.IncCompletion(string(CompletionLanded))
	s.logger.Info(ctx, "order landed")
	return &CompletionResult{Outcome: CompletionLanded, Order: order}, nil
}

// Cancel is the cancel landing. It tears down the hosted session best-effort
// and drops only the payment handoff. The cart and the earlier stage payloads
// stay so the shopper can resume.
func (s *Service) Cancel(ctx context.Context, customerID uuid.UUID, sessionID string) error {
	ctx = s.logger.WithStage(s.logger.WithCustomerID(ctx, customerID.String()), "cancel")

	handoff, err := s.handoffs.LoadPayment(ctx, customerID.String())
	if err != nil {
		return err
	}
	if handoff == nil {
		return nil
	}
	if sessionID != "" && handoff.SessionID != strings.TrimSpace(sessionID) {
		return nil
	}

	if handoff.PaymentLinkID != "" {
		if err := s.payments.DeletePaymentLink(ctx, handoff.PaymentLinkID); err != nil {
			s.logger.Warn(ctx, "deleting payment link failed")
		}
	}
	if err := s.handoffs.DeletePayment(ctx, customerID.String()); err != nil {
		return err
	}
	s.metrics.IncCompletion("canceled")
	s.logger.Info(ctx, "payment session canceled")
	return nil
}

func (s *Service) settleAndPersist(ctx context.Context, customerID uuid.UUID, sessionID string, handoff *PaymentHandoff) (*models.Order, error) {
	paymentID, err := s.confirmSettlement(ctx, handoff)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order := &models.Order{
		CustomerID:       customerID,
		PaymentSessionID: sessionID,
		Status:           enums.OrderStatusPaid,
		Email:            handoff.Draft.Email,
		ShippingAddress:  handoff.Draft.Address,
		ServiceTier:      handoff.Draft.ServiceTier,
		EtaMinutes:       handoff.Draft.EtaMinutes,
		Currency:         enums.Currency(handoff.Draft.Currency),
		CouponCode:       handoff.Draft.CouponCode,
		SubtotalCents:    handoff.Draft.Totals.SubtotalCents,
		DiscountCents:    handoff.Draft.Totals.DiscountCents,
		TaxCents:         handoff.Draft.Totals.TaxCents,
		DeliveryFeeCents: handoff.Draft.Totals.DeliveryFeeCents,
		TotalCents:       handoff.Draft.Totals.TotalCents,
		PaidAt:           &now,
	}
	if paymentID != "" {
		order.PaymentID = &paymentID
	}
	for _, line := range handoff.Draft.Lines {
		order.Lines = append(order.Lines, models.OrderLine{
			ProductID:      line.ProductID,
			NameSnapshot:   line.Name,
			UnitPriceCents: line.UnitPriceCents,
			Quantity:       line.Quantity,
			LineTotalCents: line.UnitPriceCents * line.Quantity,
		})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.Create(ctx, tx, order); err != nil {
			return err
		}
		for _, line := range handoff.Draft.Lines {
			if err := s.stock.DecrementStock(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}
		return s.cartRepo.ConvertActive(ctx, tx, customerID)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// confirmSettlement checks with the processor that the hosted session really
// settled before anything is persisted.
func (s *Service) confirmSettlement(ctx context.Context, handoff *PaymentHandoff) (string, error) {
	if handoff.SquareOrderID == "" {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "payment session has no processor order")
	}
	sqOrder, err := s.payments.GetOrder(ctx, handoff.SquareOrderID)
	if err != nil {
		return "", err
	}
	state := sqOrder.GetState()
	if state == nil || *state != sq.OrderStateCompleted {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "payment has not settled")
	}

	paymentID := firstTenderPaymentID(sqOrder)
	if paymentID == "" {
		return "", nil
	}
	payment, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return "", err
	}
	if status := stringValue(payment.GetStatus()); status != "" && status != "COMPLETED" {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "payment has not settled")
	}
	return paymentID, nil
}

func firstTenderPaymentID(order *sq.Order) string {
	for _, tender := range order.GetTenders() {
		if tender == nil {
			continue
		}
		if id := stringValue(tender.GetPaymentID()); id != "" {
			return id
		}
	}
	return ""
}
