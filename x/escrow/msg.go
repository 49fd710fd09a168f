package escrow

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/veil-one/veil"
	"github.com/veil-one/veil/errors"
)

const (
	pathCreateMsg  = "escrow/create"
	pathDepositMsg = "escrow/deposit"
	pathReleaseMsg = "escrow/release"
	pathRefundMsg  = "escrow/refund"
)

var _ veil.Msg = (*CreateMsg)(nil)

// CreateMsg opens a new escrow. The main transaction signer becomes
// the depositor. The agreed amount travels as an externally encrypted
// bundle with an attestation proof.
type CreateMsg struct {
	Beneficiary  veil.Address  `cbor:"1,keyasint"`
	AmountBundle []byte        `cbor:"2,keyasint"`
	AmountProof  []byte        `cbor:"3,keyasint"`
	ReleaseAfter veil.UnixTime `cbor:"4,keyasint"`
}

func (m *CreateMsg) Marshal() ([]byte, error) {
	return cbor.Marshal(m)
}

func (m *CreateMsg) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, m)
}

func (CreateMsg) Path() string {
	return pathCreateMsg
}

func (m *CreateMsg) Validate() error {
	var errs error
	if err := m.Beneficiary.Validate(); err != nil {
		errs = errors.AppendField(errs, "Beneficiary", ErrInvalidBeneficiary)
	}
	if len(m.AmountBundle) == 0 {
		errs = errors.AppendField(errs, "AmountBundle", errors.ErrEmpty)
	}
	if len(m.AmountProof) == 0 {
		errs = errors.AppendField(errs, "AmountProof", errors.ErrEmpty)
	}
	if m.ReleaseAfter <= 0 {
		errs = errors.AppendField(errs, "ReleaseAfter", ErrInvalidReleaseTime)
	}
	return errs
}

var _ veil.Msg = (*DepositMsg)(nil)

// DepositMsg funds a created escrow from the depositor's wallet.
type DepositMsg struct {
	EscrowID []byte `cbor:"1,keyasint"`
}

func (m *DepositMsg) Marshal() ([]byte, error) {
	return cbor.Marshal(m)
}

func (m *DepositMsg) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, m)
}

func (DepositMsg) Path() string {
	return pathDepositMsg
}

func (m *DepositMsg) Validate() error {
	return validateEscrowID(m.EscrowID)
}

var _ veil.Msg = (*ReleaseMsg)(nil)

// ReleaseMsg pays a funded escrow out to the beneficiary.
type ReleaseMsg struct {
	EscrowID []byte `cbor:"1,keyasint"`
}

func (m *ReleaseMsg) Marshal() ([]byte, error) {
	return cbor.Marshal(m)
}

func (m *ReleaseMsg) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, m)
}

func (ReleaseMsg) Path() string {
	return pathReleaseMsg
}

func (m *ReleaseMsg) Validate() error {
	return validateEscrowID(m.EscrowID)
}

var _ veil.Msg = (*RefundMsg)(nil)

// RefundMsg returns the funds of a funded escrow to the depositor
// once the deadline has passed.
type RefundMsg struct {
	EscrowID []byte `cbor:"1,keyasint"`
}

func (m *RefundMsg) Marshal() ([]byte, error) {
	return cbor.Marshal(m)
}

func (m *RefundMsg) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, m)
}

func (RefundMsg) Path() string {
	return pathRefundMsg
}

func (m *RefundMsg) Validate() error {
	return validateEscrowID(m.EscrowID)
}

func validateEscrowID(id []byte) error {
	if len(id) != 8 {
		return errors.Wrapf(errors.ErrInput, "escrow id must be 8 bytes, got %d", len(id))
	}
	return nil
}
