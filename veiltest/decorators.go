package veiltest

import "github.com/veil-one/veil"

// Decorator is a mock implementation of the veil.Decorator interface.
//
// Set CheckErr or DeliverErr to force error response for corresponding method.
// If error attributes are not set then wrapped handler method is called and
// its result returned.
// Each method call is counted. Regardless of the method call result the
// counter is incremented.
type Decorator struct {
	checkCall int
	// CheckErr if set is returned by the Check method before calling
	// the wrapped handler.
	CheckErr error

	deliverCall int
	// DeliverErr if set is returned by the Deliver method before calling
	// the wrapped handler.
	DeliverErr error
}

var _ veil.Decorator = (*Decorator)(nil)

func (d *Decorator) Check(ctx veil.Context, db veil.KVStore, tx veil.Tx, next veil.Checker) (*veil.CheckResult, error) {
	d.checkCall++

	if d.CheckErr != nil {
		return &veil.CheckResult{}, d.CheckErr
	}
	return next.Check(ctx, db, tx)
}

func (d *Decorator) Deliver(ctx veil.Context, db veil.KVStore, tx veil.Tx, next veil.Deliverer) (*veil.DeliverResult, error) {
	d.deliverCall++

	if d.DeliverErr != nil {
		return &veil.DeliverResult{}, d.DeliverErr
	}
	return next.Deliver(ctx, db, tx)
}

func (d *Decorator) CheckCallCount() int {
	return d.checkCall
}

func (d *Decorator) DeliverCallCount() int {
	return d.deliverCall
}

func (d *Decorator) CallCount() int {
	return d.checkCall + d.deliverCall
}

// Decorate wraps the handler with one decorator and returns it as a
// single handler.
func Decorate(h veil.Handler, d veil.Decorator) veil.Handler {
	return &decoratedHandler{hn: h, dc: d}
}

type decoratedHandler struct {
	hn veil.Handler
	dc veil.Decorator
}

var _ veil.Handler = (*decoratedHandler)(nil)

func (d *decoratedHandler) Check(ctx veil.Context, db veil.KVStore, tx veil.Tx) (*veil.CheckResult, error) {
	return d.dc.Check(ctx, db, tx, d.hn)
}

func (d *decoratedHandler) Deliver(ctx veil.Context, db veil.KVStore, tx veil.Tx) (*veil.DeliverResult, error) {
	return d.dc.Deliver(ctx, db, tx, d.hn)
}
