/*
Package veiltest provides mocks and helpers for testing extensions.

Mocks follow the "zero value is usable" rule. Instantiate them with
only those attributes set that your test requires.
*/
package veiltest
