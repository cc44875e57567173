// Package token extracts a verified identity from the access token the
// identity gateway attaches to its sessions.
//
// The gateway signs HS256 access tokens; this package parses them, enforces
// expiry (with configurable leeway), and surfaces the subject and email
// claims. It issues nothing: token creation is identity-provider internals.
package token
