package cart

import (
	"strings"

	"github.com/google/uuid"

	"github.com/frostlinehq/frostline-backend/internal/pricing"
	"github.com/frostlinehq/frostline-backend/internal/stock"
	"github.com/frostlinehq/frostline-backend/pkg/enums"
)

// Mode names which persistence target a cart operation landed on.
type Mode string

const (
	ModeGuest Mode = "guest"
	ModeBound Mode = "bound"
)

// Identity is the cart owner for one request. A bound identity carries a
// customer id; a guest identity carries only the opaque guest token. Both may
// be present right after sign-in, which is what merge consumes.
type Identity struct {
	CustomerID uuid.UUID
	GuestToken string
	Role       enums.ActorRole
}

// Bound reports whether operations should target the server-backed cart.
func (i Identity) Bound() bool {
	return i.CustomerID != uuid.Nil
}

// Operator reports whether the identity belongs to a back-office role.
// Operator accounts never carry a shopping cart.
func (i Identity) Operator() bool {
	return i.Role.IsOperator()
}

// Key returns the stable owner key used for serialization locks.
func (i Identity) Key() string {
	if i.Bound() {
		return i.CustomerID.String()
	}
	return strings.TrimSpace(i.GuestToken)
}

// Line is one cart entry, independent of persistence mode. Name and unit
// price are snapshots taken at add time.
type Line struct {
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	UnitPriceCents int       `json:"unit_price_cents"`
	Quantity       int       `json:"quantity"`
}

// LineView augments a line with live availability for display.
type LineView struct {
	Line
	LineTotalCents int               `json:"line_total_cents"`
	StockStatus    enums.StockStatus `json:"stock_status"`
}

// View is the cart snapshot returned after every read or mutation. Totals
// are recomputed on each call so observers always see consistent money.
type View struct {
	Mode       Mode           `json:"mode"`
	Lines      []LineView     `json:"lines"`
	CouponCode *string        `json:"coupon_code,omitempty"`
	Totals     pricing.Totals `json:"totals"`
}

// IsEmpty reports whether the cart holds no lines.
func (v View) IsEmpty() bool {
	return len(v.Lines) == 0
}

// State is the persisted cart shape both adapters agree on.
type State struct {
	Lines      []Line  `json:"lines"`
	CouponCode *string `json:"coupon_code,omitempty"`
}

// FindLine returns the line for a product, or nil when absent.
func (s State) FindLine(productID uuid.UUID) *Line {
	for idx := range s.Lines {
		if s.Lines[idx].ProductID == productID {
			return &s.Lines[idx]
		}
	}
	return nil
}

// MutationResult carries the stock-guard outcome alongside the post-mutation
// snapshot. Capacity denials are data, not errors: the cart is unchanged and
// Outcome says why.
type MutationResult struct {
	Outcome stock.Outcome `json:"outcome"`
	Cart    View          `json:"cart"`
}

func pricingLines(lines []Line) []pricing.Line {
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
