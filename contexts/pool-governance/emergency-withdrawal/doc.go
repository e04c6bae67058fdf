// Package emergencywithdrawal implements the emergency withdrawal request,
// vote and resolution lifecycle inside the pool-governance context.
//
// The module owns request creation, the one-current-vote-per-member ledger
// with atomic vote switching, deterministic quorum resolution into terminal
// states, and the penalty/net-payout split. Fund movement and membership
// are external collaborators reached through ports; activity events flow
// through the outbox.
package emergencywithdrawal
