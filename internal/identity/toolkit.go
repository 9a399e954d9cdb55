package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

// idpRequestURI is the continue URI sent with IdP assertions. The backend
// requires one but does not use it for token-based credentials.
const idpRequestURI = "http://localhost"

// Attributes accepted by setAccountInfo's deleteAttribute
const (
	deleteAttributeDisplayName = "DISPLAY_NAME"
	deleteAttributePhotoURL    = "PHOTO_URL"
)

type toolkitConfig struct {
	APIKey       string
	TenantID     string
	EmulatorHost string
	HTTPClient   *http.Client

	// Endpoint and TokenURL override the production URLs
	Endpoint string
	TokenURL string
}

// toolkitBackend implements Backend on the Identity Toolkit v3 API
type toolkitBackend struct {
	rp       *identitytoolkit.RelyingpartyService
	tenantID string
	refresh  *tokenRefresher
}

// Ensure toolkitBackend implements Backend
var _ Backend = (*toolkitBackend)(nil)

func newToolkitBackend(ctx context.Context, cfg toolkitConfig) (*toolkitBackend, error) {
	endpoint := cfg.Endpoint
	tokenURL := cfg.TokenURL
	if cfg.EmulatorHost != "" {
		if endpoint == "" {
			endpoint = "http://" + cfg.EmulatorHost + "/www.googleapis.com/identitytoolkit/v3/relyingparty/"
		}
		if tokenURL == "" {
			tokenURL = "http://" + cfg.EmulatorHost + "/securetoken.googleapis.com/v1/token"
		}
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	svc, err := identitytoolkit.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create identitytoolkit service: %w", err)
	}

	return &toolkitBackend{
		rp:       svc.Relyingparty,
		tenantID: cfg.TenantID,
		refresh:  newTokenRefresher(cfg.APIKey, tokenURL, cfg.HTTPClient),
	}, nil
}

func (b *toolkitBackend) SignUp(ctx context.Context, email, password string) (*Tokens, error) {
	resp, err := b.rp.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:    email,
		Password: password,
		TenantId: b.tenantID,
	}).Context(ctx).Do()
	if err != nil {
		return nil, toolkitError(err)
	}
	return newTokens(resp.LocalId, resp.IdToken, resp.RefreshToken, resp.ExpiresIn), nil
}

func (b *toolkitBackend) SignInWithPassword(ctx context.Context, email, password string) (*Tokens, error) {
	resp, err := b.rp.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
		TenantId:          b.tenantID,
	}).Context(ctx).Do()
	if err != nil {
		return nil, toolkitError(err)
	}
	return newTokens(resp.LocalId, resp.IdToken, resp.RefreshToken, resp.ExpiresIn), nil
}

func (b *toolkitBackend) SignInWithCustomToken(ctx context.Context, token string) (*Tokens, error) {
	resp, err := b.rp.VerifyCustomToken(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyCustomTokenRequest{
		Token:             token,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, toolkitError(err)
	}
	return newTokens("", resp.IdToken, resp.RefreshToken, resp.ExpiresIn), nil
}

func (b *toolkitBackend) SignInWithIdp(ctx context.Context, postBody, linkIDToken string) (*Tokens, error) {
	resp, err := b.rp.VerifyAssertion(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyAssertionRequest{
		PostBody:          postBody,
		RequestUri:        idpRequestURI,
		IdToken:           linkIDToken,
		ReturnSecureToken: true,
		TenantId:          b.tenantID,
	}).Context(ctx).Do()
	if err != nil {
		return nil, toolkitError(err)
	}
	// Some rejections come back as 200 with errorMessage set
	if resp.ErrorMessage != "" {
		return nil, backendError(http.StatusBadRequest, resp.ErrorMessage, nil)
	}
	return newTokens(resp.LocalId, resp.IdToken, resp.RefreshToken, resp.ExpiresIn), nil
}

func (b *toolkitBackend) SignInWithPhoneNumber(ctx context.Context, verificationID, code, linkIDToken string) (*Tokens, error) {
	resp, err := b.rp.VerifyPhoneNumber(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPhoneNumberRequest{
		SessionInfo: verificationID,
		Code:        code,
		IdToken:     linkIDToken,
	}).Context(ctx).Do()
	if err != nil {
		return nil, toolkitError(err)
	}
	return newTokens(resp.LocalId, resp.IdToken, resp.RefreshToken, resp.ExpiresIn), nil
}

func (b *toolkitBackend) LinkEmailPassword(ctx context.Context, idToken, email, password string) (*Tokens, error) {
	resp, err := b.rp.SetAccountInfo(&identitytoolkit.IdentitytoolkitRelyingpartySetAccountInfoRequest{
		IdToken:           idToken,
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, toolkitError(err)
	}
	return newTokens(resp.LocalId, resp.IdToken, resp.RefreshToken, resp.ExpiresIn), nil
}

func (b *toolkitBackend) LookupAccount(ctx context.Context, idToken string) (*User, error) {
	resp, err := b.rp.GetAccountInfo(&identitytoolkit.IdentitytoolkitRelyingpartyGetAccountInfoRequest{
		IdToken: idToken,
	}).Context(ctx).Do()
	if err != nil {
		return nil, toolkitError(err)
	}
	if len(resp.Users) == 0 {
		return nil, backendError(http.StatusBadRequest, ReasonUserNotFound, nil)
	}
	return userFromAccount(resp.Users[0]), nil
}

func (b *toolkitBackend) UpdateProfile(ctx context.Context, idToken string, req ProfileChangeRequest) (*Tokens, error) {
	body := &identitytoolkit.IdentitytoolkitRelyingpartySetAccountInfoRequest{
		IdToken:           idToken,
		ReturnSecureToken: true,
	}
	// An empty value removes the attribute
	if req.DisplayName != nil {
		if *req.DisplayName == "" {
			body.DeleteAttribute = append(body.DeleteAttribute, deleteAttributeDisplayName)
		} else {
			body.DisplayName = *req.DisplayName
		}
	}
	if req.PhotoURL != nil {
		if *req.PhotoURL == "" {
			body.DeleteAttribute = append(body.DeleteAttribute, deleteAttributePhotoURL)
		} else {
			body.PhotoUrl = *req.PhotoURL
		}
	}

	resp, err := b.rp.SetAccountInfo(body).Context(ctx).Do()
	if err != nil {
		return nil, toolkitError(err)
	}
	if resp.IdToken == "" {
		return nil, nil
	}
	return newTokens(resp.LocalId, resp.IdToken, resp.RefreshToken, resp.ExpiresIn), nil
}

func (b *toolkitBackend) SendOobCode(ctx context.Context, kind OobKind, email, idToken string) error {
	_, err := b.rp.GetOobConfirmationCode(&identitytoolkit.Relyingparty{
		RequestType: string(kind),
		Email:       email,
		IdToken:     idToken,
	}).Context(ctx).Do()
	if err != nil {
		return toolkitError(err)
	}
	return nil
}

func (b *toolkitBackend) FetchProviders(ctx context.Context, email string) ([]string, error) {
	resp, err := b.rp.CreateAuthUri(&identitytoolkit.IdentitytoolkitRelyingpartyCreateAuthUriRequest{
		Identifier:  email,
		ContinueUri: idpRequestURI,
		TenantId:    b.tenantID,
	}).Context(ctx).Do()
	if err != nil {
		return nil, toolkitError(err)
	}
	return resp.AllProviders, nil
}

func (b *toolkitBackend) SendVerificationCode(ctx context.Context, phoneNumber string) (string, error) {
	resp, err := b.rp.SendVerificationCode(&identitytoolkit.IdentitytoolkitRelyingpartySendVerificationCodeRequest{
		PhoneNumber: phoneNumber,
	}).Context(ctx).Do()
	if err != nil {
		return "", toolkitError(err)
	}
	// The session info doubles as the verification ID
	return resp.SessionInfo, nil
}

func (b *toolkitBackend) RefreshToken(ctx context.Context, refreshToken string) (*Tokens, error) {
	return b.refresh.Refresh(ctx, refreshToken)
}

// toolkitError converts a failed API call into an SDK error
func toolkitError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return backendError(apiErr.Code, apiErr.Message, err)
	}
	return networkError(err)
}

func newTokens(localID, idToken, refreshToken string, expiresIn int64) *Tokens {
	return &Tokens{
		LocalID:      localID,
		IDToken:      idToken,
		RefreshToken: refreshToken,
		ExpiresIn:    time.Duration(expiresIn) * time.Second,
	}
}

// userFromAccount maps an account record to a User
func userFromAccount(account *identitytoolkit.UserInfo) *User {
	user := &User{
		UserInfo: UserInfo{
			ProviderID:  ProviderFirebase,
			UID:         account.LocalId,
			DisplayName: account.DisplayName,
			PhotoURL:    account.PhotoUrl,
			Email:       account.Email,
			PhoneNumber: account.PhoneNumber,
		},
		EmailVerified: account.EmailVerified,
		ProviderData:  make([]UserInfo, 0, len(account.ProviderUserInfo)),
	}

	for _, p := range account.ProviderUserInfo {
		if p == nil {
			continue
		}
		uid := p.RawId
		if uid == "" {
			uid = p.FederatedId
		}
		user.ProviderData = append(user.ProviderData, UserInfo{
			ProviderID:  p.ProviderId,
			UID:         uid,
			DisplayName: p.DisplayName,
			PhotoURL:    p.PhotoUrl,
			Email:       p.Email,
			PhoneNumber: p.PhoneNumber,
		})
	}
	return user
}
