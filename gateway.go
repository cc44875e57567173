package sessioncore

import (
	"context"
	"time"
)

// Purpose identifies which flow a verification challenge belongs to. Exactly
// one canonical purpose exists per flow; mapping to a provider-specific OTP
// type ("email", "signup", "recovery", ...) is the gateway's concern.
type Purpose uint8

const (
	// PurposeSignIn is the second factor after a successful password check.
	PurposeSignIn Purpose = iota + 1
	// PurposeSignUp confirms control of the address given at registration.
	PurposeSignUp
	// PurposeReset authorizes a password update without a password.
	PurposeReset
)

func (p Purpose) String() string {
	switch p {
	case PurposeSignIn:
		return "signin"
	case PurposeSignUp:
		return "signup"
	case PurposeReset:
		return "reset"
	default:
		return "unknown"
	}
}

// GatewaySession is the authenticated-identity context held by the gateway
// after all verification steps for a flow succeed.
type GatewaySession struct {
	UserID      string
	Email       string
	AccessToken string
	ExpiresAt   time.Time
}

// IdentityGateway is the external authentication service consumed by the
// core: password checks, OTP issuance and verification, password updates,
// OAuth redirects. The core never implements these.
//
// Implementations signal recognized conditions with the package sentinels:
// ErrInvalidCredentials for a rejected password check, ErrAccountExists for a
// duplicate sign-up, ErrUserNotFound for an unknown account, and
// ErrChallengeInvalid for a wrong code. Any other error is treated as a
// transport failure and wrapped in ErrGatewayUnavailable.
type IdentityGateway interface {
	// SignInWithPassword checks the credentials. A success MAY leave a live
	// session behind; the sign-in flow compensates with SignOut before the
	// second factor.
	SignInWithPassword(ctx context.Context, email, password string) (*GatewaySession, error)
	// SignUp registers a new identity and returns its id. No session results
	// until the sign-up challenge is verified.
	SignUp(ctx context.Context, email, password string) (string, error)
	// SendOTP dispatches a one-time code to the address for the given purpose.
	SendOTP(ctx context.Context, email string, purpose Purpose) error
	// VerifyOTP checks a code. On success the returned session is non-nil for
	// purposes that establish one.
	VerifyOTP(ctx context.Context, email, code string, purpose Purpose) (*GatewaySession, error)
	// UpdatePassword replaces the password of the identity behind the current
	// gateway session. The returned session may be nil if the provider does
	// not re-authenticate on update.
	UpdatePassword(ctx context.Context, newPassword string) (*GatewaySession, error)
	// SignOut ends the current gateway session, if any.
	SignOut(ctx context.Context) error
	// SignInWithOAuth triggers a provider redirect. The core only delegates.
	SignInWithOAuth(ctx context.Context, provider, redirectTo string) error
	// Session returns the current gateway session, or nil when signed out.
	Session(ctx context.Context) (*GatewaySession, error)
}

// Profile is the persisted record owned by an authenticated identity,
// one-to-one with its identity id. Never deleted by this core.
type Profile struct {
	ID          string
	Email       string
	FirstName   string
	LastName    string
	DateOfBirth string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SignUpProfile carries the non-secret sign-up fields held pending until
// email confirmation permits persisting them as a Profile.
type SignUpProfile struct {
	Email       string
	FirstName   string
	LastName    string
	DateOfBirth string
}

// ProfileStore is the external profile persistence consumed by the core.
// Lookup methods return (nil, nil) when no record exists.
type ProfileStore interface {
	UpsertProfile(ctx context.Context, p Profile) error
	GetProfile(ctx context.Context, id string) (*Profile, error)
	FindProfileByEmail(ctx context.Context, email string) (*Profile, error)
}
