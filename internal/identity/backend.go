package identity

import (
	"context"
)

// OobKind selects the out-of-band email the backend sends
type OobKind string

const (
	OobPasswordReset OobKind = "PASSWORD_RESET"
	OobVerifyEmail   OobKind = "VERIFY_EMAIL"
)

// Backend is the identity provider's account API.
// The Identity Toolkit implementation lives in toolkit.go; tests supply fakes.
//
// Every method that accepts linkIDToken links the credential to the account
// owning that ID token instead of signing in, when linkIDToken is non-empty.
type Backend interface {
	// SignUp creates an account. Empty email and password create an anonymous account.
	SignUp(ctx context.Context, email, password string) (*Tokens, error)

	// SignInWithPassword signs in with an email and password
	SignInWithPassword(ctx context.Context, email, password string) (*Tokens, error)

	// SignInWithCustomToken exchanges a custom token minted by a trusted server
	SignInWithCustomToken(ctx context.Context, token string) (*Tokens, error)

	// SignInWithIdp exchanges an identity provider assertion (form-encoded post body)
	SignInWithIdp(ctx context.Context, postBody, linkIDToken string) (*Tokens, error)

	// SignInWithPhoneNumber redeems a verification ID and SMS code
	SignInWithPhoneNumber(ctx context.Context, verificationID, code, linkIDToken string) (*Tokens, error)

	// LinkEmailPassword attaches an email and password to the account owning idToken
	LinkEmailPassword(ctx context.Context, idToken, email, password string) (*Tokens, error)

	// LookupAccount returns the account owning idToken
	LookupAccount(ctx context.Context, idToken string) (*User, error)

	// UpdateProfile changes the profile of the account owning idToken.
	// It may return fresh tokens, or nil when the backend issued none.
	UpdateProfile(ctx context.Context, idToken string, req ProfileChangeRequest) (*Tokens, error)

	// SendOobCode sends a password reset (by email) or verification email (by idToken)
	SendOobCode(ctx context.Context, kind OobKind, email, idToken string) error

	// FetchProviders lists the provider IDs registered for email
	FetchProviders(ctx context.Context, email string) ([]string, error)

	// SendVerificationCode sends an SMS code and returns the verification ID
	SendVerificationCode(ctx context.Context, phoneNumber string) (string, error)

	// RefreshToken exchanges a refresh token for fresh tokens
	RefreshToken(ctx context.Context, refreshToken string) (*Tokens, error)
}
