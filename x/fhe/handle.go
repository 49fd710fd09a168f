package fhe

import (
	"bytes"
	"encoding/hex"
	"strings"

	"github.com/veil-one/veil/errors"
)

// HandleSize is the byte length of every ciphertext handle.
const HandleSize = 32

// Handle is an opaque reference to an encrypted value. The handle
// itself discloses nothing; fetching a handle requires no
// authorization, only decryption does.
type Handle []byte

// Equals checks if two handles reference the same ciphertext.
func (h Handle) Equals(o Handle) bool {
	return bytes.Equal(h, o)
}

// IsZero returns true for the nil handle, meaning "no value".
func (h Handle) IsZero() bool {
	return len(h) == 0
}

// Clone provides an independent copy of a handle.
func (h Handle) Clone() Handle {
	if h == nil {
		return nil
	}
	cpy := make(Handle, len(h))
	copy(cpy, h)
	return cpy
}

// Validate returns an error if the handle is not the proper size.
func (h Handle) Validate() error {
	if len(h) == 0 {
		return errors.Wrap(errors.ErrEmpty, "handle")
	}
	if len(h) != HandleSize {
		return errors.Wrapf(errors.ErrInput, "handle must be %d bytes", HandleSize)
	}
	return nil
}

// String returns a human readable hex representation.
func (h Handle) String() string {
	if len(h) == 0 {
		return "(nil)"
	}
	return strings.ToUpper(hex.EncodeToString(h))
}
