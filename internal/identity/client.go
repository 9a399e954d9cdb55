package identity

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ClientConfig holds configuration for NewClient
type ClientConfig struct {
	APIKey          string
	ProjectID       string
	TenantID        string // Optional: for multi-tenant Identity Platform
	EmulatorHost    string // host:port of the Auth emulator; disables token verification
	CredentialsPath string
	VerifyTokens    bool

	ResendWindow time.Duration
	TestNumbers  map[string]string // phone number -> fixed SMS code

	// AutoRetrievalDelay delays test number codes; 0 returns them at once
	AutoRetrievalDelay time.Duration

	HTTPClient *http.Client
}

// Client holds the process-wide SDK state shared by every session
type Client struct {
	backend      Backend
	claims       ClaimsDecoder
	retriever    CodeRetriever
	resendWindow time.Duration
	now          func() time.Time
}

// Option configures a Client
type Option func(*Client)

// WithClaimsDecoder sets the decoder used to read ID token claims
func WithClaimsDecoder(d ClaimsDecoder) Option {
	return func(c *Client) { c.claims = d }
}

// WithCodeRetriever sets the automatic SMS code retriever
func WithCodeRetriever(r CodeRetriever) Option {
	return func(c *Client) { c.retriever = r }
}

// WithResendWindow sets how long a sent SMS is reused for the same number
func WithResendWindow(d time.Duration) Option {
	return func(c *Client) { c.resendWindow = d }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClientWithBackend creates a Client on top of an existing Backend
func NewClientWithBackend(b Backend, opts ...Option) *Client {
	c := &Client{
		backend:      b,
		resendWindow: DefaultResendWindow,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClient creates a Client talking to the Identity Toolkit described by cfg
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	backend, err := newToolkitBackend(ctx, toolkitConfig{
		APIKey:       cfg.APIKey,
		TenantID:     cfg.TenantID,
		EmulatorHost: cfg.EmulatorHost,
		HTTPClient:   cfg.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create identity toolkit backend: %w", err)
	}

	var claims ClaimsDecoder
	if cfg.VerifyTokens && cfg.EmulatorHost == "" {
		claims, err = NewFirebaseClaimsDecoder(ctx, FirebaseClaimsDecoderConfig{
			ProjectID:       cfg.ProjectID,
			CredentialsPath: cfg.CredentialsPath,
			TenantID:        cfg.TenantID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create claims decoder: %w", err)
		}
	} else {
		claims = NewUnverifiedClaimsDecoder()
	}

	opts := []Option{WithClaimsDecoder(claims)}
	if len(cfg.TestNumbers) > 0 {
		var retriever CodeRetriever = StaticCodeRetriever(cfg.TestNumbers)
		if cfg.AutoRetrievalDelay > 0 {
			retriever = DelayedCodeRetriever{Retriever: retriever, Delay: cfg.AutoRetrievalDelay}
		}
		opts = append(opts, WithCodeRetriever(retriever))
	}
	if cfg.ResendWindow > 0 {
		opts = append(opts, WithResendWindow(cfg.ResendWindow))
	}

	return NewClientWithBackend(backend, opts...), nil
}

// NewAuth starts a new, signed-out session
func (c *Client) NewAuth() *Auth {
	return &Auth{
		backend: c.backend,
		claims:  c.claims,
		now:     c.now,
	}
}

// NewPhoneAuthProvider creates a phone verification provider for one
// session. Pending verifications and resend windows are not shared between
// providers.
func (c *Client) NewPhoneAuthProvider() *PhoneAuthProvider {
	return &PhoneAuthProvider{
		backend:      c.backend,
		retriever:    c.retriever,
		resendWindow: c.resendWindow,
		now:          c.now,
		pending:      make(map[string]pendingVerification),
	}
}
