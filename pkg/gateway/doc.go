// Package gateway defines the payment processor collaborator interface the
// billing engine charges through. Declined charges are results, not errors;
// the WithTimeout decorator converts deadline expiry into a failed result so
// the renewal processor treats timeouts exactly like declines and retries only
// on the next scheduled tick.
package gateway
