// Package subscription implements the subscription ledger: the aggregate that
// owns a customer's paid-plan state over time, the status machine that guards
// its lifecycle, and the synchronous operations (create, change tier, cancel,
// pause, resume, add credit, search) through which every mutation funnels.
//
// # State machine
//
// Lifecycle edges are defined once in a transition table and enforced by a
// single internal transition hook; no code path assigns Status directly:
//
//	incomplete -> trialing | active | incomplete_expired
//	trialing   -> active | past_due | canceled
//	active     -> past_due | paused | canceled
//	past_due   -> active (recovered) | canceled | unpaid
//	paused     -> active
//
// Canceled and incomplete_expired are terminal. Cancel-at-period-end is a flag
// on an active subscription, not a state; the renewal processor performs the
// actual transition when it reaches the period boundary.
//
// # Audit trails
//
// Modifications, Renewals, and Credits are append-only and never truncated or
// reordered. They are the only source of historical amounts: the aggregate's
// Amount field is just the current effective price.
//
// # Concurrency
//
// Every aggregate carries a Version token. Store.Save is a compare-and-set on
// that token, which serializes all writers of one subscription: a concurrent
// tier change and renewal can never both commit against the same snapshot,
// and sub-ledgers are therefore appended in commit order.
//
// Two Store implementations ship with the package: MemoryStore for tests and
// local development, and PostgresStore (pgx, JSONB aggregate with indexed
// selection columns) for production.
package subscription
