// Package chat orchestrates companion-chat conversations against a remote
// completion endpoint.
//
// # Design
//
// An [Orchestrator] owns the message buffer and session pointer for one UI
// session. Sessions are created lazily by the endpoint on the first send;
// concurrent first sends share a single creation. A send in flight can be
// cancelled at any time and a cancelled or superseded result is discarded,
// never applied to the buffer.
//
// # Architecture boundaries
//
// The caller's identity comes from an [IdentitySource]; the remote endpoint
// is consumed through the [API] interface, with [Client] as the concrete
// HTTP implementation.
//
// # What this package must NOT do
//
//   - Authenticate users. An absent identity is reported as
//     [ErrAuthRequired], never resolved here.
//   - Expose system-role messages. They are filtered before any message
//     leaves the package.
//   - Persist conversations locally. The endpoint owns session storage.
package chat
