package domain

import "fmt"

// Pair is an unordered pair of user ids stored as (Low, High).
type Pair struct {
	Low  int64
	High int64
}

// NewPair normalizes two distinct user ids into their canonical order.
// NewPair(x, y) == NewPair(y, x).
func NewPair(x, y int64) (Pair, error) {
	if x == y {
		return Pair{}, fmt.Errorf("%w: a user cannot converse with themselves", ErrInvalidInput)
	}
	if x < y {
		return Pair{Low: x, High: y}, nil
	}
	return Pair{Low: y, High: x}, nil
}
