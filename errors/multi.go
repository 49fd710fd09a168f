package errors

import (
	"strings"
)

// Append clubs together all provided errors. Nil values are ignored.
//
// If given error implements the unpacker interface, it is flattened
// and its content is incorporated directly instead.
func Append(errs ...error) error {
	var res multiError
	for _, e := range errs {
		if isNilErr(e) {
			continue
		}
		if u, ok := e.(unpacker); ok {
			res = append(res, u.Unpack()...)
		} else {
			res = append(res, e)
		}
	}
	if len(res) == 0 {
		return nil
	}
	return res
}

type multiError []error

func (errs multiError) Error() string {
	switch len(errs) {
	case 0:
		return "<nil>"
	case 1:
		return errs[0].Error()
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unpack implements the unpacker interface.
func (errs multiError) Unpack() []error {
	return errs
}

// Cause returns the first error of the collection, consistent with the
// fail-fast approach of handlers.
func (errs multiError) Cause() error {
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}

// unpacker is implemented by an error that represents a collection of
// errors. Unlike causer, which is a chain, unpacker groups errors on
// the same level.
type unpacker interface {
	Unpack() []error
}
