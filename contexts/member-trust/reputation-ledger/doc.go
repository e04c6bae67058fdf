// Package reputationledger scores member trustworthiness from payment and
// participation history. Scores live in [0,100], start at 50 and move by a
// fixed per-action delta; every change is recorded in an append-only event
// ledger so the current score can always be recomputed from history.
package reputationledger
