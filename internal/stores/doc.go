// Package stores provides Redis-backed, short-lived record stores for the
// verification core: active verification challenges and pending sign-up
// profiles awaiting email confirmation.
//
// # Design
//
// Each store persists a versioned, binary-encoded record in Redis with a TTL.
// Challenge failure accounting uses WATCH/MULTI optimistic transactions with
// automatic retry on contention. Challenge records are single-use: deleted on
// successful verification or superseded by a resend, and they enforce an
// attempt limit to resist brute force. Pending profiles expire on their own
// TTL so an abandoned sign-up never leaks an entry.
//
// # Architecture boundaries
//
// This package owns persistence and concurrency control for transient flow
// records. It does NOT issue codes, talk to the identity gateway, or make
// flow decisions; those responsibilities belong to the AuthFlow transitions
// in the root package.
//
// # What this package must NOT do
//
//   - Import sessioncore or any sibling internal package.
//   - Store passwords or OTP codes; records carry only addressing metadata.
package stores
