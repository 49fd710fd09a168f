package app

import (
	"fmt"
	"regexp"

	"github.com/veil-one/veil"
	"github.com/veil-one/veil/errors"
)

// isPath matches the (extension)/(type) message path format.
var isPath = regexp.MustCompile(`^[a-z0-9_]+/[a-z0-9_]+$`).MatchString

// Router is a veil.Registry that dispatches transactions to the
// handler registered for the message path.
type Router struct {
	handlers map[string]veil.Handler
}

var _ veil.Registry = (*Router)(nil)
var _ veil.Handler = (*Router)(nil)

func NewRouter() *Router {
	return &Router{
		handlers: make(map[string]veil.Handler),
	}
}

// Handle registers a handler for all messages of the same type as the
// given one. Handle panics on an invalid path or a duplicate
// registration, as both are programming errors.
func (r *Router) Handle(m veil.Msg, h veil.Handler) {
	path := m.Path()
	if !isPath(path) {
		panic(fmt.Sprintf("invalid message path: %q", path))
	}
	if _, ok := r.handlers[path]; ok {
		panic(fmt.Sprintf("re-registering handler for path %q", path))
	}
	r.handlers[path] = h
}

// Handler returns the handler registered for given path, or nil.
func (r *Router) Handler(path string) veil.Handler {
	return r.handlers[path]
}

func (r *Router) Check(ctx veil.Context, db veil.KVStore, tx veil.Tx) (*veil.CheckResult, error) {
	h, err := r.resolve(tx)
	if err != nil {
		return nil, err
	}
	return h.Check(ctx, db, tx)
}

func (r *Router) Deliver(ctx veil.Context, db veil.KVStore, tx veil.Tx) (*veil.DeliverResult, error) {
	h, err := r.resolve(tx)
	if err != nil {
		return nil, err
	}
	return h.Deliver(ctx, db, tx)
}

func (r *Router) resolve(tx veil.Tx) (veil.Handler, error) {
	path := veil.GetPath(tx)
	h, ok := r.handlers[path]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "no handler for path %q", path)
	}
	return h, nil
}
