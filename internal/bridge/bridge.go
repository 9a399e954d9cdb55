// Package bridge translates channel method calls into identity SDK calls and
// SDK results and callbacks back into channel responses and events.
//
// One Bridge serves one channel connection. Its listener and resend-token
// tables live as long as the connection; Close detaches everything it
// registered with the SDK.
package bridge

import (
	"context"
	"time"

	"github.com/otiai10/authbridge/internal/channel"
	"github.com/otiai10/authbridge/internal/identity"
	"github.com/otiai10/authbridge/internal/registry"
	"github.com/otiai10/authbridge/internal/security"
)

// Inbound method names
const (
	MethodCurrentUser                    = "currentUser"
	MethodSignInAnonymously              = "signInAnonymously"
	MethodCreateUserWithEmailAndPassword = "createUserWithEmailAndPassword"
	MethodFetchProvidersForEmail         = "fetchProvidersForEmail"
	MethodSendPasswordResetEmail         = "sendPasswordResetEmail"
	MethodSendEmailVerification          = "sendEmailVerification"
	MethodReload                         = "reload"
	MethodSignInWithEmailAndPassword     = "signInWithEmailAndPassword"
	MethodSignInWithGoogle               = "signInWithGoogle"
	MethodSignInWithCustomToken          = "signInWithCustomToken"
	MethodSignInWithFacebook             = "signInWithFacebook"
	MethodSignInWithTwitter              = "signInWithTwitter"
	MethodSignOut                        = "signOut"
	MethodGetIDToken                     = "getIdToken"
	MethodLinkWithEmailAndPassword       = "linkWithEmailAndPassword"
	MethodLinkWithGoogleCredential       = "linkWithGoogleCredential"
	MethodLinkWithFacebookCredential     = "linkWithFacebookCredential"
	MethodUpdateProfile                  = "updateProfile"
	MethodStartListeningAuthState        = "startListeningAuthState"
	MethodStopListeningAuthState         = "stopListeningAuthState"
	MethodVerifyPhoneNumber              = "verifyPhoneNumber"
	MethodSignInWithPhoneNumber          = "signInWithPhoneNumber"
)

// Session is the per-connection SDK session the bridge forwards to.
// *identity.Auth implements it.
type Session interface {
	CurrentUser() *identity.User
	AddAuthStateListener(fn identity.AuthStateListener) *identity.ListenerRegistration

	SignInAnonymously(ctx context.Context) (*identity.User, error)
	CreateUserWithEmailAndPassword(ctx context.Context, email, password string) (*identity.User, error)
	SignInWithEmailAndPassword(ctx context.Context, email, password string) (*identity.User, error)
	SignInWithCustomToken(ctx context.Context, token string) (*identity.User, error)
	SignInWithCredential(ctx context.Context, cred identity.Credential) (*identity.User, error)
	LinkWithCredential(ctx context.Context, cred identity.Credential) (*identity.User, error)

	FetchProvidersForEmail(ctx context.Context, email string) ([]string, error)
	SendPasswordResetEmail(ctx context.Context, email string) error
	SendEmailVerification(ctx context.Context) error
	Reload(ctx context.Context) error
	GetIDToken(ctx context.Context, forceRefresh bool) (string, error)
	UpdateProfile(ctx context.Context, req identity.ProfileChangeRequest) error
	SignOut()
}

// PhoneVerifier starts phone number verification.
// *identity.PhoneAuthProvider implements it.
type PhoneVerifier interface {
	VerifyPhoneNumber(ctx context.Context, phoneNumber string, timeout time.Duration, token *identity.ForceResendingToken, callbacks identity.PhoneVerificationCallbacks)
}

// EventSink delivers outbound events to the peer.
// *channel.Channel implements it.
type EventSink interface {
	InvokeMethod(method string, arguments any) error
}

// handlerFunc handles one method with its decoded arguments
type handlerFunc func(ctx context.Context, args arguments, result channel.Result)

// Bridge dispatches method calls for one connection
type Bridge struct {
	auth  Session
	phone PhoneVerifier
	sink  EventSink

	listeners    *registry.Table[*identity.ListenerRegistration]
	resendTokens *registry.Table[*identity.ForceResendingToken]

	validatePhotoURL func(string) error
	handlers         map[string]handlerFunc
}

// Option configures a Bridge
type Option func(*Bridge)

// WithPhotoURLValidator replaces the check applied to updateProfile's photoUrl
func WithPhotoURLValidator(fn func(string) error) Option {
	return func(b *Bridge) { b.validatePhotoURL = fn }
}

// New creates a Bridge forwarding to auth and phone and emitting events to sink
func New(auth Session, phone PhoneVerifier, sink EventSink, opts ...Option) *Bridge {
	b := &Bridge{
		auth:         auth,
		phone:        phone,
		sink:         sink,
		listeners:    registry.New[*identity.ListenerRegistration](),
		resendTokens: registry.New[*identity.ForceResendingToken](),
		validatePhotoURL: func(u string) error {
			return security.ValidatePhotoURL(u, false)
		},
	}
	for _, opt := range opts {
		opt(b)
	}

	b.handlers = map[string]handlerFunc{
		MethodCurrentUser:                    b.handleCurrentUser,
		MethodSignInAnonymously:              b.handleSignInAnonymously,
		MethodCreateUserWithEmailAndPassword: b.handleCreateUserWithEmailAndPassword,
		MethodFetchProvidersForEmail:         b.handleFetchProvidersForEmail,
		MethodSendPasswordResetEmail:         b.handleSendPasswordResetEmail,
		MethodSendEmailVerification:          b.handleSendEmailVerification,
		MethodReload:                         b.handleReload,
		MethodSignInWithEmailAndPassword:     b.handleSignInWithEmailAndPassword,
		MethodSignInWithGoogle:               b.handleSignInWithGoogle,
		MethodSignInWithCustomToken:          b.handleSignInWithCustomToken,
		MethodSignInWithFacebook:             b.handleSignInWithFacebook,
		MethodSignInWithTwitter:              b.handleSignInWithTwitter,
		MethodSignOut:                        b.handleSignOut,
		MethodGetIDToken:                     b.handleGetIDToken,
		MethodLinkWithEmailAndPassword:       b.handleLinkWithEmailAndPassword,
		MethodLinkWithGoogleCredential:       b.handleLinkWithGoogleCredential,
		MethodLinkWithFacebookCredential:     b.handleLinkWithFacebookCredential,
		MethodUpdateProfile:                  b.handleUpdateProfile,
		MethodStartListeningAuthState:        b.handleStartListeningAuthState,
		MethodStopListeningAuthState:         b.handleStopListeningAuthState,
		MethodVerifyPhoneNumber:              b.handleVerifyPhoneNumber,
		MethodSignInWithPhoneNumber:          b.handleSignInWithPhoneNumber,
	}
	return b
}

// HandleCall implements channel.Handler
func (b *Bridge) HandleCall(ctx context.Context, call *channel.MethodCall, result channel.Result) {
	h, ok := b.handlers[call.Method]
	if !ok {
		result.NotImplemented()
		return
	}
	h(ctx, arguments(call.Arguments), result)
}

// Close removes every auth-state listener registered through this bridge
// and forgets its resend tokens
func (b *Bridge) Close() {
	for _, reg := range b.listeners.Drain() {
		reg.Remove()
	}
	b.resendTokens.Drain()
}
