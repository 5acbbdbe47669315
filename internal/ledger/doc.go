// Package ledger records every run and the outcome of every dispatched
// patch in a SQLite database under the state directory.
//
// The ledger never lives inside the destination tree, so it does not
// interfere with the idempotency check that treats an existing destination
// file as completed work. Schema changes ship as embedded, ordered SQL
// migrations applied on Open.
package ledger
