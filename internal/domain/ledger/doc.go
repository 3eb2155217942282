// Package ledger provides the domain model for the credit ledger of the compute platform.
//
// The ledger is the single source of truth for how many credits a user can spend:
//   - Transaction: immutable, append-only record of a signed credit movement
//   - UserBalance: running balance derived from the transactions of one user
//   - Entry: a request to append a transaction, optionally guarded by an idempotency key
//
// A Store owns both records and is the only component allowed to change them.
// Every write appends exactly one Transaction and applies the same signed amount
// to the UserBalance in one atomic unit, so that for every user the balance equals
// the sum of the transaction amounts. The balance update is a relative increment,
// which makes concurrent writes for the same user commutative.
//
// Balances may become negative: usage is debited without checking the balance first,
// and callers that want to gate work on funds use the quota guard before allocation.
package ledger
