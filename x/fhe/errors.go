package fhe

import (
	"github.com/veil-one/veil/errors"
)

var (
	// ErrInvalidProof is returned when an external bundle is submitted
	// with an attestation that does not verify.
	ErrInvalidProof = errors.Register(1200, "invalid proof")

	// ErrUnknownHandle is returned when an operation references a
	// handle that does not exist in the store.
	ErrUnknownHandle = errors.Register(1201, "unknown handle")

	// ErrDecryptDenied is returned when a principal without a
	// permission entry requests decryption of a handle.
	ErrDecryptDenied = errors.Register(1202, "decryption denied")
)
