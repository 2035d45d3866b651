package types

// Coordinates is a resolved geographic point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the point was never resolved.
func (c Coordinates) IsZero() bool {
	return c.Lat == 0 && c.Lng == 0
}
