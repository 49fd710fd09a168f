/*
Package fhe provides the encrypted-value capability used by the
confidential ledger and the escrow extension.

Values are referenced through opaque handles. A handle reveals nothing
about the value it points to. The value behind a handle can only be
obtained through an authorized Decrypt call, gated by the per-handle
permission set.

The Machine implements the homomorphic operations (Add, Sub, Ge,
Select) as a trusted oracle: values are sealed at rest and are opened
only inside the oracle boundary. Every operation mints a fresh handle
with an empty permission set, so callers must re-grant access on every
derived value.

Select is the only conditional primitive. Code outside this package
must never branch on the plaintext of a comparison result, as that
would leak the comparison through control flow.
*/
package fhe
