package escrow

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/veil-one/veil"
	"github.com/veil-one/veil/errors"
	"github.com/veil-one/veil/orm"
	"github.com/veil-one/veil/x/fhe"
)

// Status is the lifecycle state of an escrow. The zero value None
// doubles as "does not exist"; a missing record and status None are
// one and the same.
type Status int8

const (
	StatusNone     Status = 0
	StatusCreated  Status = 1
	StatusFunded   Status = 2
	StatusReleased Status = 3
	StatusRefunded Status = 4
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusCreated:
		return "created"
	case StatusFunded:
		return "funded"
	case StatusReleased:
		return "released"
	case StatusRefunded:
		return "refunded"
	default:
		return fmt.Sprintf("invalid(%d)", int8(s))
	}
}

// Validate returns an error if this is not a known status of an
// existing escrow.
func (s Status) Validate() error {
	if s < StatusCreated || s > StatusRefunded {
		return errors.Wrapf(errors.ErrState, "status %d", int8(s))
	}
	return nil
}

// Escrow is a single escrow record. The amount is a ciphertext handle;
// the record itself never holds a plaintext value.
type Escrow struct {
	Depositor    veil.Address  `cbor:"1,keyasint"`
	Beneficiary  veil.Address  `cbor:"2,keyasint"`
	Amount       fhe.Handle    `cbor:"3,keyasint"`
	ReleaseAfter veil.UnixTime `cbor:"4,keyasint"`
	Status       Status        `cbor:"5,keyasint"`
}

var _ orm.Model = (*Escrow)(nil)

func (e *Escrow) Marshal() ([]byte, error) {
	return cbor.Marshal(e)
}

func (e *Escrow) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, e)
}

// Validate ensures the escrow is valid.
func (e *Escrow) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Depositor", e.Depositor.Validate())
	errs = errors.AppendField(errs, "Beneficiary", e.Beneficiary.Validate())
	errs = errors.AppendField(errs, "Amount", e.Amount.Validate())
	errs = errors.AppendField(errs, "ReleaseAfter", e.ReleaseAfter.Validate())
	errs = errors.AppendField(errs, "Status", e.Status.Validate())
	return errs
}

// Condition derives the condition guarding the funds of the escrow
// with given id.
func Condition(id []byte) veil.Condition {
	return veil.NewCondition("escrow", "seq", id)
}

// NewBucket returns a bucket for keeping escrow records. Ids are
// assigned by a sequence, starting at 1, and are never reused.
// Secondary indexes allow listing escrows by either party.
func NewBucket() orm.ModelBucket {
	return orm.NewModelBucket("esc", &Escrow{},
		orm.WithIDSequence(orm.NewSequence("esc", "id")),
		orm.WithIndex("depositor", func(m orm.Model) ([]byte, error) {
			return m.(*Escrow).Depositor, nil
		}),
		orm.WithIndex("beneficiary", func(m orm.Model) ([]byte, error) {
			return m.(*Escrow).Beneficiary, nil
		}),
	)
}
