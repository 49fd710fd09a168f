package veiltest

import "github.com/veil-one/veil"

// Handler is a mock implementation of the veil.Handler interface.
//
// Set CheckResult, DeliverResult or the error attributes to control
// what the method calls return. Each method call is counted.
type Handler struct {
	checkCall   int
	CheckResult veil.CheckResult
	CheckErr    error

	deliverCall   int
	DeliverResult veil.DeliverResult
	DeliverErr    error
}

var _ veil.Handler = (*Handler)(nil)

func (h *Handler) Check(ctx veil.Context, db veil.KVStore, tx veil.Tx) (*veil.CheckResult, error) {
	h.checkCall++
	return &h.CheckResult, h.CheckErr
}

func (h *Handler) Deliver(ctx veil.Context, db veil.KVStore, tx veil.Tx) (*veil.DeliverResult, error) {
	h.deliverCall++
	return &h.DeliverResult, h.DeliverErr
}

func (h *Handler) CheckCallCount() int {
	return h.checkCall
}

func (h *Handler) DeliverCallCount() int {
	return h.deliverCall
}

func (h *Handler) CallCount() int {
	return h.checkCall + h.deliverCall
}
