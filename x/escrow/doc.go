/*
Package escrow implements a deposit-then-release-or-refund workflow
over confidential amounts.

An escrow binds a depositor and a beneficiary to an encrypted amount
and a refund deadline. Its lifecycle is a strictly monotonic status
machine:

	None -> Created -> Funded -> {Released | Refunded}

Funds under escrow are held by an address derived from the escrow id,
so every escrow has its own wallet on the confidential ledger. Moving
funds in and out goes through the ledger's conditional transfer, which
means an underfunded deposit silently moves an encrypted zero instead
of failing. That trade-off is deliberate: a hard failure would reveal
the depositor's balance through control flow.

Notifications emitted by this package never carry an amount or
anything derived from one.
*/
package escrow
