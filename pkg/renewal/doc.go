// Package renewal implements the periodic billing batch. Once per billing-day
// tick the processor selects due subscriptions, charges them through the
// payment gateway, advances their billing period on success, and degrades
// them to past_due with a scheduled retry on failure.
//
// The central correctness property is idempotence under re-invocation: each
// item is re-loaded and re-checked for eligibility inside its own optimistic
// write, so a crashed batch can be re-run against the same due set without
// double-charging anyone. Per-item failures are collected into the run
// summary and never abort the rest of the batch.
package renewal
