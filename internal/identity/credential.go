package identity

import (
	"context"
	"net/url"
)

// Credential is a provider-specific proof of identity.
// Values are created by the constructors in this file and redeemed by Auth.
type Credential interface {
	// Provider returns the provider ID the credential belongs to
	Provider() string

	// redeem signs in, or links to the account owning linkIDToken when non-empty
	redeem(ctx context.Context, b Backend, linkIDToken string) (*Tokens, error)
}

type emailCredential struct {
	email    string
	password string
}

// EmailCredential returns a credential for an email and password
func EmailCredential(email, password string) Credential {
	return emailCredential{email: email, password: password}
}

func (c emailCredential) Provider() string { return ProviderPassword }

func (c emailCredential) redeem(ctx context.Context, b Backend, linkIDToken string) (*Tokens, error) {
	if linkIDToken != "" {
		return b.LinkEmailPassword(ctx, linkIDToken, c.email, c.password)
	}
	return b.SignInWithPassword(ctx, c.email, c.password)
}

// idpCredential is an OAuth assertion redeemed through the backend's IdP endpoint
type idpCredential struct {
	providerID string
	params     url.Values
}

// GoogleCredential returns a credential for a Google ID token and access token.
// Either token may be empty, but not both.
func GoogleCredential(idToken, accessToken string) Credential {
	params := url.Values{}
	if idToken != "" {
		params.Set("id_token", idToken)
	}
	if accessToken != "" {
		params.Set("access_token", accessToken)
	}
	return idpCredential{providerID: ProviderGoogle, params: params}
}

// FacebookCredential returns a credential for a Facebook access token
func FacebookCredential(accessToken string) Credential {
	params := url.Values{}
	params.Set("access_token", accessToken)
	return idpCredential{providerID: ProviderFacebook, params: params}
}

// TwitterCredential returns a credential for a Twitter OAuth 1.0a token pair
func TwitterCredential(token, secret string) Credential {
	params := url.Values{}
	params.Set("access_token", token)
	params.Set("oauth_token_secret", secret)
	return idpCredential{providerID: ProviderTwitter, params: params}
}

func (c idpCredential) Provider() string { return c.providerID }

// postBody encodes the assertion the way the backend's verifyAssertion expects
func (c idpCredential) postBody() string {
	params := url.Values{}
	for k, v := range c.params {
		params[k] = v
	}
	params.Set("providerId", c.providerID)
	return params.Encode()
}

func (c idpCredential) redeem(ctx context.Context, b Backend, linkIDToken string) (*Tokens, error) {
	return b.SignInWithIdp(ctx, c.postBody(), linkIDToken)
}

type phoneCredential struct {
	verificationID string
	code           string
}

// PhoneCredential returns a credential for a verification ID and the SMS code
func PhoneCredential(verificationID, code string) Credential {
	return phoneCredential{verificationID: verificationID, code: code}
}

func (c phoneCredential) Provider() string { return ProviderPhone }

func (c phoneCredential) redeem(ctx context.Context, b Backend, linkIDToken string) (*Tokens, error) {
	return b.SignInWithPhoneNumber(ctx, c.verificationID, c.code, linkIDToken)
}
