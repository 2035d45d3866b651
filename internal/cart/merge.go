package cart

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/frostlinehq/frostline-backend/internal/stock"
	pkgerrors "github.com/frostlinehq/frostline-backend/pkg/errors"
)

// MergeSkip reports a guest line that could not be carried over in full.
type MergeSkip struct {
	ProductID uuid.UUID     `json:"product_id"`
	Requested int           `json:"requested"`
	Merged    int           `json:"merged"`
	Reason    stock.Outcome `json:"reason"`
}

// MergeResult is the bound cart after a merge plus anything left behind.
type MergeResult struct {
	Cart    View        `json:"cart"`
	Skipped []MergeSkip `json:"skipped,omitempty"`
}

// Merge replays a guest cart into the customer's bound cart at sign-in. Each
// guest line is added one unit at a time so the stock guard rules on every
// unit; whatever fits merges and the rest is reported, not failed. The guest
// document is cleared no matter what so a stale token can never resurrect
// merged lines.
func (s *Service) Merge(ctx context.Context, identity Identity) (*MergeResult, error) {
	if !identity.Bound() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "merge requires a signed-in customer")
	}
	if identity.GuestToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest token is required")
	}
	if identity.Operator() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "operator accounts do not carry a cart")
	}

	guestState, err := s.guest.Load(ctx, identity.GuestToken)
	if err != nil {
		return nil, err
	}

	owner := identity.CustomerID.String()
	boundState, err := s.bound.Load(ctx, owner)
	if err != nil {
		return nil, err
	}

	var replayErrs error
	var skipped []MergeSkip
	for _, guestLine := range guestState.Lines {
		merged, reason, err := s.replayLine(ctx, owner, boundState, guestLine)
		if err != nil {
			replayErrs = multierr.Append(replayErrs, err)
			continue
		}
		if merged < guestLine.Quantity {
			skipped = append(skipped, MergeSkip{
				ProductID: guestLine.ProductID,
				Requested: guestLine.Quantity,
				Merged:    merged,
				Reason:    reason,
			})
		}
	}

	// the guest coupon follows only when the bound cart has none of its own
	if guestState.CouponCode != nil && boundState.CouponCode == nil {
		if err := s.bound.SetCoupon(ctx, owner, guestState.CouponCode); err != nil {
			replayErrs = multierr.Append(replayErrs, err)
		}
	}

	// drain guest storage unconditionally, merged lines must not come back
	if err := s.guest.Clear(ctx, identity.GuestToken); err != nil {
		s.logger.Warn(ctx, "clearing guest cart after merge failed")
	}

	s.metrics.IncMergeReplay()
	if replayErrs != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, replayErrs, "merging guest cart")
	}

	if err := s.bound.MarkMerged(ctx, identity.CustomerID); err != nil {
		return nil, err
	}

	finalState, err := s.bound.Load(ctx, owner)
	if err != nil {
		return nil, err
	}
	view := s.buildView(ctx, ModeBound, finalState)
	if err := s.bound.SaveTotals(ctx, owner, view.Totals); err != nil {
		return nil, err
	}
	return &MergeResult{Cart: view, Skipped: skipped}, nil
}

// replayLine adds guest units onto the bound line one at a time, stopping at
// the first stock denial. Returns how many units landed and why it stopped.
func (s *Service) replayLine(ctx context.Context, owner string, boundState State, guestLine Line) (int, stock.Outcome, error) {
	product, err := s.products.GetProduct(ctx, guestLine.ProductID)
	if err != nil {
		if pkgerrors.IsAuthOrNotFound(err) {
			return 0, stock.OutcomeOutOfStock, nil
		}
		return 0, "", err
	}
	if !product.IsActive {
		return 0, stock.OutcomeOutOfStock, nil
	}

	current := 0
	if line := boundState.FindLine(guestLine.ProductID); line != nil {
		current = line.Quantity
	}

	merged := 0
	reason := stock.OutcomeAllow
	for unit := 0; unit < guestLine.Quantity; unit++ {
		outcome := stock.Check(product.AvailableQty, current+merged, 1)
		if !outcome.Allowed() {
			reason = outcome
			break
		}
		merged++
	}
	if merged == 0 {
		return 0, reason, nil
	}

	err = s.bound.UpsertLine(ctx, owner, Line{
		ProductID:      guestLine.ProductID,
		Name:           product.Name,
		UnitPriceCents: product.PriceCents,
		Quantity:       current + merged,
	})
	if err != nil {
		return 0, "", err
	}
	return merged, reason, nil
}
