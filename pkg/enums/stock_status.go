package enums

// StockStatus is the tri-state availability signal surfaced on product
// listings and cart lines.
type StockStatus string

const (
	StockStatusInStock  StockStatus = "in_stock"
	StockStatusLowStock StockStatus = "low_stock"
	StockStatusOut      StockStatus = "out_of_stock"
)

// String implements fmt.Stringer.
func (s StockStatus) String() string {
	return string(s)
}
