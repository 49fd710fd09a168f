package cash

import (
	"github.com/veil-one/veil"
	"github.com/veil-one/veil/errors"
	"github.com/veil-one/veil/orm"
	"github.com/veil-one/veil/x/fhe"
)

var supplyKey = []byte("_c.cash.supply")

// ledgerCondition guards the ledger's own access to the balance
// handles it maintains. Every balance handle is granted to this
// address in addition to its owner.
var ledgerCondition = veil.NewCondition("cash", "book", []byte("main"))

// LedgerAddress returns the address the ledger acts under.
func LedgerAddress() veil.Address {
	return ledgerCondition.Address()
}

// Controller is the functionality needed by handlers and by other
// extensions that move confidential funds. This allows us to define
// the full ledger logic in one place and to plug in a mock for tests.
type Controller interface {
	// ConfidentialTransfer moves amount from one wallet to the other.
	// The amount actually moved is selected without branching: the full
	// amount when the source balance covers it, an encrypted zero
	// otherwise. A handle to the moved amount is returned. The caller
	// is responsible for authorizing the source account.
	ConfidentialTransfer(db veil.KVStore, from, to veil.Address, amount fhe.Handle) (fhe.Handle, error)

	// ConfidentialTransferFrom is ConfidentialTransfer on behalf of the
	// holder. The caller must be the holder or hold an active operator
	// delegation, otherwise ErrNotOperator is returned.
	ConfidentialTransferFrom(ctx veil.Context, db veil.KVStore, caller, from, to veil.Address, amount fhe.Handle) (fhe.Handle, error)

	// SetOperator stores a spending delegation from the holder to the
	// spender, active until the given deadline. A deadline in the past
	// revokes the delegation.
	SetOperator(db veil.KVStore, holder, spender veil.Address, until veil.UnixTime) error

	// IsOperator checks if the spender holds an active delegation from
	// the holder at the current block time.
	IsOperator(ctx veil.Context, db veil.ReadOnlyKVStore, holder, spender veil.Address) (bool, error)

	// OperatorExpiration returns the deadline of the delegation from
	// the holder to the spender, or zero when none was ever set.
	OperatorExpiration(db veil.ReadOnlyKVStore, holder, spender veil.Address) (veil.UnixTime, error)

	// ConfidentialBalanceOf returns the handle of the account balance.
	// Accounts that never received funds have no handle and a nil
	// handle is returned.
	ConfidentialBalanceOf(db veil.ReadOnlyKVStore, owner veil.Address) (fhe.Handle, error)

	// ConfidentialTotalSupply returns the handle of the total amount of
	// funds issued at genesis.
	ConfidentialTotalSupply(db veil.ReadOnlyKVStore) (fhe.Handle, error)
}

// CashController is the standard Controller implementation on top of
// the fhe oracle.
type CashController struct {
	oracle    fhe.Oracle
	balances  orm.ModelBucket
	operators orm.ModelBucket
}

var _ Controller = CashController{}

// NewController returns a ledger backed by the given oracle.
func NewController(oracle fhe.Oracle) CashController {
	return CashController{
		oracle:    oracle,
		balances:  NewBalanceBucket(),
		operators: NewOperatorBucket(),
	}
}

func (c CashController) ConfidentialTransfer(db veil.KVStore, from, to veil.Address, amount fhe.Handle) (fhe.Handle, error) {
	if err := from.Validate(); err != nil {
		return nil, errors.Wrap(err, "source")
	}
	if err := to.Validate(); err != nil {
		return nil, errors.Wrap(err, "destination")
	}
	if err := amount.Validate(); err != nil {
		return nil, errors.Wrap(err, "amount")
	}

	src, err := c.balanceHandle(db, from)
	if err != nil {
		return nil, errors.Wrap(err, "source balance")
	}
	dst, err := c.balanceHandle(db, to)
	if err != nil {
		return nil, errors.Wrap(err, "destination balance")
	}

	// The conditional transfer law. Candidate balances are computed
	// unconditionally and committed through select, so an insufficient
	// balance does not fail the transfer but keeps both balances at
	// their previous value. Both outcomes rewrite the same state and
	// are indistinguishable from the outside.
	sufficient, err := c.oracle.Ge(db, src, amount)
	if err != nil {
		return nil, err
	}
	// the underflowing candidate is discarded by the select below
	subbed, err := c.oracle.Sub(db, src, amount)
	if err != nil {
		return nil, err
	}
	added, err := c.oracle.Add(db, dst, amount)
	if err != nil {
		return nil, err
	}
	newSrc, err := c.oracle.Select(db, sufficient, subbed, src)
	if err != nil {
		return nil, err
	}
	newDst, err := c.oracle.Select(db, sufficient, added, dst)
	if err != nil {
		return nil, err
	}
	zero, err := c.oracle.Zero(db)
	if err != nil {
		return nil, err
	}
	transferred, err := c.oracle.Select(db, sufficient, amount, zero)
	if err != nil {
		return nil, err
	}

	if err := c.setBalance(db, from, newSrc); err != nil {
		return nil, errors.Wrap(err, "source balance")
	}
	if err := c.setBalance(db, to, newDst); err != nil {
		return nil, errors.Wrap(err, "destination balance")
	}

	// Fresh handles carry no permissions. Both parties may learn what
	// was actually moved, and each owner may read its new balance.
	if err := c.oracle.Grant(db, transferred, from); err != nil {
		return nil, err
	}
	if err := c.oracle.Grant(db, transferred, to); err != nil {
		return nil, err
	}
	return transferred, nil
}

func (c CashController) ConfidentialTransferFrom(ctx veil.Context, db veil.KVStore, caller, from, to veil.Address, amount fhe.Handle) (fhe.Handle, error) {
	if !caller.Equals(from) {
		ok, err := c.IsOperator(ctx, db, from, caller)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.Wrapf(ErrNotOperator, "%s for %s", caller, from)
		}
	}
	return c.ConfidentialTransfer(db, from, to, amount)
}

func (c CashController) SetOperator(db veil.KVStore, holder, spender veil.Address, until veil.UnixTime) error {
	op := Operator{
		Holder:  holder,
		Spender: spender,
		Until:   until,
	}
	_, err := c.operators.Put(db, operatorKey(holder, spender), &op)
	return err
}

func (c CashController) IsOperator(ctx veil.Context, db veil.ReadOnlyKVStore, holder, spender veil.Address) (bool, error) {
	var op Operator
	switch err := c.operators.One(db, operatorKey(holder, spender), &op); {
	case err == nil:
		// delegation is active strictly before the deadline
		return !veil.IsExpired(ctx, op.Until), nil
	case errors.ErrNotFound.Is(err):
		return false, nil
	default:
		return false, err
	}
}

func (c CashController) OperatorExpiration(db veil.ReadOnlyKVStore, holder, spender veil.Address) (veil.UnixTime, error) {
	var op Operator
	switch err := c.operators.One(db, operatorKey(holder, spender), &op); {
	case err == nil:
		return op.Until, nil
	case errors.ErrNotFound.Is(err):
		return 0, nil
	default:
		return 0, err
	}
}

func (c CashController) ConfidentialBalanceOf(db veil.ReadOnlyKVStore, owner veil.Address) (fhe.Handle, error) {
	var b Balance
	switch err := c.balances.One(db, owner, &b); {
	case err == nil:
		return b.Amount, nil
	case errors.ErrNotFound.Is(err):
		return nil, nil
	default:
		return nil, err
	}
}

func (c CashController) ConfidentialTotalSupply(db veil.ReadOnlyKVStore) (fhe.Handle, error) {
	raw, err := db.Get(supplyKey)
	if err != nil {
		return nil, err
	}
	return fhe.Handle(raw), nil
}

// balanceHandle loads the balance of an account, lazily initializing
// accounts that never received funds with an encrypted zero.
func (c CashController) balanceHandle(db veil.KVStore, owner veil.Address) (fhe.Handle, error) {
	var b Balance
	switch err := c.balances.One(db, owner, &b); {
	case err == nil:
		return b.Amount, nil
	case errors.ErrNotFound.Is(err):
		return c.oracle.Zero(db)
	default:
		return nil, err
	}
}

// setBalance stores the new balance handle and rebuilds its
// permissions. Handles minted by the oracle start with an empty
// permission set, so without the re-grant the owner would lose read
// access to its own balance.
func (c CashController) setBalance(db veil.KVStore, owner veil.Address, amount fhe.Handle) error {
	b := Balance{Owner: owner, Amount: amount}
	if _, err := c.balances.Put(db, owner, &b); err != nil {
		return err
	}
	if err := c.oracle.Grant(db, amount, owner); err != nil {
		return err
	}
	return c.oracle.Grant(db, amount, LedgerAddress())
}
