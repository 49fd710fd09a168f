/*
Package cash implements a confidential value ledger.

Balances are never stored or transported in the clear. Every account
balance is a ciphertext handle managed by the fhe oracle and only the
account owner is granted decryption of its own balance.

Transfers follow a fixed, branchless law. Whether the source balance
covers the requested amount is computed as an encrypted bit and the
moved amount is selected from it: the full amount when sufficient, an
encrypted zero otherwise. The state transition is identical in shape
either way, so an observer cannot tell a successful transfer from a
silent zero transfer.

Accounts may delegate spending to an operator until a deadline. An
operator moves funds on behalf of the holder through the same transfer
law.
*/
package cash
