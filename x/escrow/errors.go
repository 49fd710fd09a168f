package escrow

import (
	"github.com/veil-one/veil/errors"
)

var (
	// ErrInvalidBeneficiary is returned when an escrow is created with
	// a missing or malformed beneficiary.
	ErrInvalidBeneficiary = errors.Register(1020, "invalid beneficiary")

	// ErrInvalidReleaseTime is returned when the refund deadline is not
	// in the future at creation time.
	ErrInvalidReleaseTime = errors.Register(1021, "invalid release time")

	// ErrInvalidStatus is returned when an operation is attempted on an
	// escrow whose status does not permit it.
	ErrInvalidStatus = errors.Register(1022, "invalid status")

	// ErrNoEscrow is returned when referencing an escrow id that does
	// not exist.
	ErrNoEscrow = errors.Register(1023, "no escrow")

	// ErrTimeoutNotReached is returned when a refund is requested
	// before the deadline.
	ErrTimeoutNotReached = errors.Register(1024, "timeout not reached")
)
