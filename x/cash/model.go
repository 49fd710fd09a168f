package cash

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/veil-one/veil"
	"github.com/veil-one/veil/errors"
	"github.com/veil-one/veil/orm"
	"github.com/veil-one/veil/x/fhe"
)

// Balance is the wallet of a single account. The amount is a handle to
// an encrypted value, never a plaintext number.
type Balance struct {
	Owner  veil.Address `cbor:"1,keyasint"`
	Amount fhe.Handle   `cbor:"2,keyasint"`
}

var _ orm.Model = (*Balance)(nil)

func (b *Balance) Marshal() ([]byte, error) {
	return cbor.Marshal(b)
}

func (b *Balance) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, b)
}

// Validate ensures the balance is valid.
func (b *Balance) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Owner", b.Owner.Validate())
	errs = errors.AppendField(errs, "Amount", b.Amount.Validate())
	return errs
}

// Operator is a spending delegation from a holder to another account.
// It stays active until the deadline, exclusive.
type Operator struct {
	Holder  veil.Address  `cbor:"1,keyasint"`
	Spender veil.Address  `cbor:"2,keyasint"`
	Until   veil.UnixTime `cbor:"3,keyasint"`
}

var _ orm.Model = (*Operator)(nil)

func (o *Operator) Marshal() ([]byte, error) {
	return cbor.Marshal(o)
}

func (o *Operator) Unmarshal(raw []byte) error {
	return cbor.Unmarshal(raw, o)
}

// Validate ensures the delegation is valid.
func (o *Operator) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Holder", o.Holder.Validate())
	errs = errors.AppendField(errs, "Spender", o.Spender.Validate())
	errs = errors.AppendField(errs, "Until", o.Until.Validate())
	return errs
}

// NewBalanceBucket returns a bucket for keeping account balances,
// keyed by the owner address.
func NewBalanceBucket() orm.ModelBucket {
	return orm.NewModelBucket("cash", &Balance{})
}

// NewOperatorBucket returns a bucket for keeping spending delegations,
// keyed by holder and spender addresses.
func NewOperatorBucket() orm.ModelBucket {
	return orm.NewModelBucket("oper", &Operator{})
}

// operatorKey is the primary key of a delegation.
func operatorKey(holder, spender veil.Address) []byte {
	return append(holder.Clone(), spender...)
}
