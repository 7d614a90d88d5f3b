// Package core implements the kestrel actor runtime: named actors with
// private mailboxes, fire-and-forget sends, session-correlated asks, and
// a runtime that owns every actor lifecycle from spawn to asynchronous,
// completion-reported shutdown.
package core
