/*
Package app assembles handlers into an application: a message path
router, a decorator chain builder, genesis initialization chaining and
an executor that runs every transaction as a single atomic step.
*/
package app
