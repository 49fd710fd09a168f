package cash

import (
	"github.com/veil-one/veil/errors"
)

var (
	// ErrNotOperator is returned when an account tries to move funds
	// of another account without an active delegation.
	ErrNotOperator = errors.Register(1010, "not an operator")
)
