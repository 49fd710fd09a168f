/*
Package veil defines the common interfaces that tie together the
confidential escrow module: stores, transactions, handlers, conditions
and block context.

The root package holds only declarations shared by every extension.
Implementations live in subpackages: errors for coded errors, orm for
typed buckets, store for the btree-backed key value store, app for
routing and atomic execution, and the x/ extensions for the actual
business logic (x/fhe, x/cash, x/escrow).
*/
package veil
