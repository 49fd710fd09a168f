package cash

import (
	"github.com/veil-one/veil"
	"github.com/veil-one/veil/errors"
	"github.com/veil-one/veil/x/fhe"
)

// Initializer fulfils the Initializer interface to load data from the
// genesis file.
type Initializer struct {
	Minter fhe.Machine
}

var _ veil.Initializer = (*Initializer)(nil)

// FromGenesis issues the initial balances. Genesis amounts are the
// only plaintext amounts this extension ever sees; they are sealed
// immediately and the sum is recorded as the total supply. Expected
// format:
//
//	"cash": [
//	  {"address": "<hex>", "amount": 1000},
//	  ...
//	]
func (i *Initializer) FromGenesis(opts veil.Options, db veil.KVStore) error {
	var wallets []struct {
		Address veil.Address `json:"address"`
		Amount  uint64       `json:"amount"`
	}
	if err := opts.ReadOptions("cash", &wallets); err != nil {
		return errors.Wrap(err, "cannot read cash options")
	}

	balances := NewBalanceBucket()
	var supply uint64
	for idx, w := range wallets {
		if err := w.Address.Validate(); err != nil {
			return errors.Wrapf(err, "wallet %d", idx)
		}
		h, err := i.Minter.Mint(db, w.Amount)
		if err != nil {
			return errors.Wrapf(err, "wallet %d", idx)
		}
		if err := i.Minter.Grant(db, h, w.Address); err != nil {
			return errors.Wrapf(err, "wallet %d", idx)
		}
		b := Balance{Owner: w.Address, Amount: h}
		if _, err := balances.Put(db, w.Address, &b); err != nil {
			return errors.Wrapf(err, "wallet %d", idx)
		}
		supply += w.Amount
	}
	if len(wallets) == 0 {
		return nil
	}

	total, err := i.Minter.Mint(db, supply)
	if err != nil {
		return errors.Wrap(err, "total supply")
	}
	return db.Set(supplyKey, total)
}
