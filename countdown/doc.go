// Package countdown provides a monotonic-clock countdown for challenge
// validity and resend cooldown windows.
//
// # Design
//
// A Countdown is recomputed from an absolute deadline on every query instead
// of being driven by a repeating callback, so correctness does not depend on
// any timer firing on schedule. Reaching zero is a one-way transition:
// an expired countdown stays expired until an explicit Reset, which is only
// legal when moving to a new challenge.
//
// # What this package must NOT do
//
//   - Spawn goroutines or arm runtime timers.
//   - Import any other package of this module.
package countdown
