package identity

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	firebaseAuth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/api/option"
)

// signInProviderAnonymous is the firebase.sign_in_provider of anonymous sessions
const signInProviderAnonymous = "anonymous"

// Claims holds the ID token claims the session checks: the account the
// token belongs to and how it signed in
type Claims struct {
	UID            string
	SignInProvider string
}

// ClaimsDecoder turns an ID token into Claims
type ClaimsDecoder interface {
	Decode(ctx context.Context, idToken string) (*Claims, error)
}

// idTokenVerifier is an interface for verifying ID tokens
// Both firebaseAuth.Client and firebaseAuth.TenantClient implement this
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseAuth.Token, error)
}

// FirebaseClaimsDecoder verifies ID tokens with the Firebase Admin SDK
type FirebaseClaimsDecoder struct {
	verifier idTokenVerifier
}

// Ensure FirebaseClaimsDecoder implements ClaimsDecoder
var _ ClaimsDecoder = (*FirebaseClaimsDecoder)(nil)

// FirebaseClaimsDecoderConfig holds configuration for FirebaseClaimsDecoder
type FirebaseClaimsDecoderConfig struct {
	ProjectID       string
	CredentialsPath string
	TenantID        string // Optional: for multi-tenant Identity Platform
}

// NewFirebaseClaimsDecoder creates a decoder backed by the Firebase Admin SDK.
// Verification only needs the project ID; credentials are optional.
func NewFirebaseClaimsDecoder(ctx context.Context, cfg FirebaseClaimsDecoderConfig) (*FirebaseClaimsDecoder, error) {
	var opts []option.ClientOption
	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID: cfg.ProjectID,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get auth client: %w", err)
	}

	var verifier idTokenVerifier

	if cfg.TenantID != "" {
		tenantClient, err := authClient.TenantManager.AuthForTenant(cfg.TenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to get tenant auth client for %s: %w", cfg.TenantID, err)
		}
		verifier = tenantClient
	} else {
		verifier = authClient
	}

	return &FirebaseClaimsDecoder{verifier: verifier}, nil
}

// Decode verifies idToken and returns its claims
func (d *FirebaseClaimsDecoder) Decode(ctx context.Context, idToken string) (*Claims, error) {
	token, err := d.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	return &Claims{
		UID:            token.UID,
		SignInProvider: token.Firebase.SignInProvider,
	}, nil
}

// UnverifiedClaimsDecoder reads ID token claims without checking the
// signature. It serves the Auth emulator, whose tokens are unsigned, and
// deployments that turn verification off.
type UnverifiedClaimsDecoder struct {
	parser *jwt.Parser
}

// Ensure UnverifiedClaimsDecoder implements ClaimsDecoder
var _ ClaimsDecoder = (*UnverifiedClaimsDecoder)(nil)

// NewUnverifiedClaimsDecoder creates an UnverifiedClaimsDecoder
func NewUnverifiedClaimsDecoder() *UnverifiedClaimsDecoder {
	return &UnverifiedClaimsDecoder{parser: jwt.NewParser()}
}

// Decode parses idToken and returns its claims
func (d *UnverifiedClaimsDecoder) Decode(_ context.Context, idToken string) (*Claims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := d.parser.ParseUnverified(idToken, claims); err != nil {
		return nil, fmt.Errorf("failed to parse ID token: %w", err)
	}

	uid := getStringClaim(claims, "user_id")
	if uid == "" {
		uid = getStringClaim(claims, "sub")
	}

	result := &Claims{UID: uid}
	if fb, ok := claims["firebase"].(map[string]any); ok {
		result.SignInProvider = getStringClaim(fb, "sign_in_provider")
	}
	return result, nil
}

// getStringClaim safely extracts a string claim from the claims map
func getStringClaim(claims map[string]any, key string) string {
	val, ok := claims[key]
	if !ok {
		return ""
	}
	str, ok := val.(string)
	if !ok {
		return ""
	}
	return str
}
