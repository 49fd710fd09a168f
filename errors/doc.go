/*
Package errors implements custom error interfaces for veil.

The idea is to reuse as many errors from this package as possible and
define custom package errors only when necessary.

Use the Register function to declare a new error kind. Each error kind
is bound to a unique code. Never create Error instances directly, so
that code uniqueness can be guaranteed.

Use the Wrap function to attach context to an error being returned up
the stack. Test errors with the Is method of the registered kind:

	if errors.ErrNotFound.Is(err) { ... }
*/
package errors
