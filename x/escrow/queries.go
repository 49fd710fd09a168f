package escrow

import (
	"github.com/veil-one/veil"
	"github.com/veil-one/veil/errors"
	"github.com/veil-one/veil/x/fhe"
)

// Details is the public part of an escrow record. The amount is
// deliberately excluded; it is available only as an opaque handle via
// GetAmountHandle.
type Details struct {
	Depositor    veil.Address
	Beneficiary  veil.Address
	ReleaseAfter veil.UnixTime
	Status       Status
}

// GetStatus returns the status of the escrow with given id. A missing
// record reports StatusNone, never an error.
func GetStatus(db veil.ReadOnlyKVStore, escrowID []byte) (Status, error) {
	switch esc, err := loadEscrow(db, NewBucket(), escrowID); {
	case err == nil:
		return esc.Status, nil
	case ErrNoEscrow.Is(err):
		return StatusNone, nil
	default:
		return StatusNone, err
	}
}

// GetDetails returns the public details of the escrow with given id.
func GetDetails(db veil.ReadOnlyKVStore, escrowID []byte) (*Details, error) {
	esc, err := loadEscrow(db, NewBucket(), escrowID)
	if err != nil {
		return nil, err
	}
	return &Details{
		Depositor:    esc.Depositor,
		Beneficiary:  esc.Beneficiary,
		ReleaseAfter: esc.ReleaseAfter,
		Status:       esc.Status,
	}, nil
}

// GetAmountHandle returns the handle of the escrow amount. Fetching
// the handle is not gated: the handle alone discloses nothing and
// decryption requires a permission entry checked by the oracle.
func GetAmountHandle(db veil.ReadOnlyKVStore, escrowID []byte) (fhe.Handle, error) {
	esc, err := loadEscrow(db, NewBucket(), escrowID)
	if err != nil {
		return nil, err
	}
	return esc.Amount, nil
}

// CanRefund reports whether a refund would be admitted right now:
// the escrow is funded and the deadline has passed. A missing record
// reports false.
func CanRefund(ctx veil.Context, db veil.ReadOnlyKVStore, escrowID []byte) (bool, error) {
	switch esc, err := loadEscrow(db, NewBucket(), escrowID); {
	case err == nil:
		return esc.Status == StatusFunded && veil.IsExpired(ctx, esc.ReleaseAfter), nil
	case ErrNoEscrow.Is(err):
		return false, nil
	default:
		return false, err
	}
}

// TimeUntilRefund returns the number of seconds until the escrow
// becomes refundable, zero if it already is. A released or refunded
// escrow can never be refunded and reports ErrInvalidStatus, in
// agreement with CanRefund.
func TimeUntilRefund(ctx veil.Context, db veil.ReadOnlyKVStore, escrowID []byte) (int64, error) {
	esc, err := loadEscrow(db, NewBucket(), escrowID)
	if err != nil {
		return 0, err
	}
	switch esc.Status {
	case StatusReleased, StatusRefunded:
		return 0, errors.Wrapf(ErrInvalidStatus, "%s escrow cannot be refunded", esc.Status)
	}
	now, err := veil.BlockTime(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "block time")
	}
	remaining := int64(esc.ReleaseAfter) - int64(veil.AsUnixTime(now))
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}
