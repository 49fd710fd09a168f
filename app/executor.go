package app

import (
	"github.com/veil-one/veil"
	"github.com/veil-one/veil/errors"
)

// Executor runs transactions against the application state. Every
// transaction executes on a cache wrap of the store that is committed
// only on success, so each operation is all or nothing and a failed
// precondition leaves the prior state fully intact. Operations are
// serialized by the caller; there is no internal locking.
type Executor struct {
	db      veil.CacheableKVStore
	handler veil.Handler
}

func NewExecutor(db veil.CacheableKVStore, handler veil.Handler) *Executor {
	return &Executor{db: db, handler: handler}
}

// CheckTx runs the handler's Check on a throwaway cache. State written
// during the check is always discarded.
func (e *Executor) CheckTx(ctx veil.Context, tx veil.Tx) (*veil.CheckResult, error) {
	cache := e.db.CacheWrap()
	defer cache.Discard()
	return e.handler.Check(ctx, cache, tx)
}

// DeliverTx runs the handler's Deliver atomically. On success the
// cache is written through to the backing store; on failure it is
// discarded and the error returned.
func (e *Executor) DeliverTx(ctx veil.Context, tx veil.Tx) (*veil.DeliverResult, error) {
	cache := e.db.CacheWrap()
	res, err := e.handler.Deliver(ctx, cache, tx)
	if err != nil {
		cache.Discard()
		return nil, err
	}
	if err := cache.Write(); err != nil {
		return nil, errors.Wrap(err, "cannot commit")
	}
	return res, nil
}
