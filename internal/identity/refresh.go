package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

const secureTokenURL = "https://securetoken.googleapis.com/v1/token"

// defaultTokenLifetime applies when the token endpoint omits expires_in
const defaultTokenLifetime = time.Hour

// tokenRefresher exchanges refresh tokens at the Secure Token endpoint
type tokenRefresher struct {
	config     *oauth2.Config
	httpClient *http.Client
}

func newTokenRefresher(apiKey, tokenURL string, httpClient *http.Client) *tokenRefresher {
	if tokenURL == "" {
		tokenURL = secureTokenURL
	}
	u, err := url.Parse(tokenURL)
	if err == nil {
		q := u.Query()
		q.Set("key", apiKey)
		u.RawQuery = q.Encode()
		tokenURL = u.String()
	}

	return &tokenRefresher{
		config: &oauth2.Config{
			Endpoint: oauth2.Endpoint{
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: httpClient,
	}
}

// Refresh returns fresh tokens for refreshToken
func (r *tokenRefresher) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	if refreshToken == "" {
		return nil, backendError(http.StatusBadRequest, ReasonInvalidRefreshToken, nil)
	}
	if r.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	}

	tok, err := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, refreshError(err)
	}

	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		idToken = tok.AccessToken
	}
	userID, _ := tok.Extra("user_id").(string)

	return &Tokens{
		LocalID:      userID,
		IDToken:      idToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    tokenLifetime(tok),
	}, nil
}

// tokenLifetime reads expires_in, which the Secure Token endpoint sends as a string
func tokenLifetime(tok *oauth2.Token) time.Duration {
	switch v := tok.Extra("expires_in").(type) {
	case string:
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	case float64:
		if v > 0 {
			return time.Duration(v) * time.Second
		}
	}
	if !tok.Expiry.IsZero() {
		if d := time.Until(tok.Expiry); d > 0 {
			return d
		}
	}
	return defaultTokenLifetime
}

// refreshError converts a token endpoint failure into an SDK error
func refreshError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if !errors.As(err, &retrieveErr) {
		return networkError(err)
	}

	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	status := http.StatusBadRequest
	if retrieveErr.Response != nil {
		status = retrieveErr.Response.StatusCode
	}
	if jsonErr := json.Unmarshal(retrieveErr.Body, &body); jsonErr != nil || body.Error.Message == "" {
		return backendError(status, ReasonInvalidRefreshToken, err)
	}
	return backendError(status, body.Error.Message, err)
}
