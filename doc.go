// Package sessioncore implements the session and verification core of a
// companion-chatbot front end: the authentication state machine (credential
// checks, one-time-passcode issuance and expiry, password reset) and the
// lifecycle primitives it shares with chat session orchestration.
//
// The package is designed for event-driven UI workloads: an [Engine] is built
// once through [Builder.Build] and is safe for concurrent use; each UI session
// obtains one [AuthFlow] via [Engine.NewFlow].
//
// # Architecture boundaries
//
// sessioncore is the public surface. It exposes [Engine], [Builder], [Config],
// [AuthFlow], and the collaborator interfaces ([IdentityGateway],
// [ProfileStore]). Challenge and pending-profile persistence lives under
// internal/ and is never exported. Chat orchestration lives in the chat
// subpackage; countdown and token are leaf subpackages.
//
// # What this package must NOT do
//
//   - Implement identity-provider internals: password hashing, token signing,
//     and OTP delivery belong to the [IdentityGateway] implementation.
//   - Persist credentials. Passwords pass through to the gateway and are
//     never written to any store.
//   - Trust the gateway for challenge expiry. Expiry and attempt limits are
//     enforced locally and in the challenge store, independent of whether the
//     gateway also enforces them.
package sessioncore
