package cash

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/veil-one/veil"
	"github.com/veil-one/veil/errors"
)

const (
	pathSendMsg        = "cash/send"
	pathSetOperatorMsg = "cash/set_operator"
)

var _ veil.Msg = (*SendMsg)(nil)

// SendMsg requests a confidential transfer from the source wallet to
// the destination wallet. The amount travels as an externally
// encrypted bundle together with an attestation proof; it is converted
// into an internal handle before the transfer.
type SendMsg struct {
	// Source is the wallet to take funds from. When empty, the main
	// transaction signer is used.
	Source       veil.Address `cbor:"1,keyasint,omitempty"`
	Destination  veil.Address `cbor:"2,keyasint"`
	AmountBundle []byte       `cbor:"3,keyasint"`
	AmountProof  []byte       `cbor:"4,keyasint"`
}

func (m *SendMsg) Marshal() ([]byte, error) {
	return cbor.Marshal(m)
}

func (m *SendMsg) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, m)
}

func (SendMsg) Path() string {
	return pathSendMsg
}

func (m *SendMsg) Validate() error {
	var errs error
	if m.Source != nil {
		errs = errors.AppendField(errs, "Source", m.Source.Validate())
	}
	errs = errors.AppendField(errs, "Destination", m.Destination.Validate())
	if len(m.AmountBundle) == 0 {
		errs = errors.AppendField(errs, "AmountBundle", errors.ErrEmpty)
	}
	if len(m.AmountProof) == 0 {
		errs = errors.AppendField(errs, "AmountProof", errors.ErrEmpty)
	}
	return errs
}

var _ veil.Msg = (*SetOperatorMsg)(nil)

// SetOperatorMsg delegates spending from the main transaction signer
// to the spender, until the given deadline. Submitting a deadline in
// the past revokes an existing delegation.
type SetOperatorMsg struct {
	Spender veil.Address  `cbor:"1,keyasint"`
	Until   veil.UnixTime `cbor:"2,keyasint"`
}

func (m *SetOperatorMsg) Marshal() ([]byte, error) {
	return cbor.Marshal(m)
}

func (m *SetOperatorMsg) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, m)
}

func (SetOperatorMsg) Path() string {
	return pathSetOperatorMsg
}

func (m *SetOperatorMsg) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Spender", m.Spender.Validate())
	errs = errors.AppendField(errs, "Until", m.Until.Validate())
	return errs
}
