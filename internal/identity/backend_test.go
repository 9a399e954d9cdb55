package identity

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// fakeAccount is an account held by fakeBackend
type fakeAccount struct {
	user     *User
	password string
}

// fakeBackend is an in-memory Backend that also decodes the ID tokens it mints
type fakeBackend struct {
	mu sync.Mutex

	nextUID   int
	nextToken int
	nextVerif int

	accounts      map[string]*fakeAccount // uid -> account
	byEmail       map[string]string       // email -> uid
	idTokens      map[string]string       // ID token -> uid
	providers     map[string]string       // ID token -> sign_in_provider
	refreshTokens map[string]string       // refresh token -> uid
	codes         map[string]string       // verification ID -> code

	errs  map[string]error // method -> forced error
	calls []string
}

// Ensure fakeBackend implements Backend and ClaimsDecoder
var (
	_ Backend       = (*fakeBackend)(nil)
	_ ClaimsDecoder = (*fakeBackend)(nil)
)

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		accounts:      make(map[string]*fakeAccount),
		byEmail:       make(map[string]string),
		idTokens:      make(map[string]string),
		providers:     make(map[string]string),
		refreshTokens: make(map[string]string),
		codes:         make(map[string]string),
		errs:          make(map[string]error),
	}
}

func (f *fakeBackend) failWith(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[method] = err
}

func (f *fakeBackend) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

// enter records a call and returns the forced error for method, if any.
// Callers hold f.mu.
func (f *fakeBackend) enter(method string) error {
	f.calls = append(f.calls, method)
	return f.errs[method]
}

func (f *fakeBackend) mintLocked(uid, provider string) *Tokens {
	f.nextToken++
	idToken := fmt.Sprintf("id-%s-%d", uid, f.nextToken)
	refreshToken := fmt.Sprintf("refresh-%s-%d", uid, f.nextToken)
	f.idTokens[idToken] = uid
	f.providers[idToken] = provider
	f.refreshTokens[refreshToken] = uid
	return &Tokens{LocalID: uid, IDToken: idToken, RefreshToken: refreshToken, ExpiresIn: time.Hour}
}

func (f *fakeBackend) newAccountLocked() *fakeAccount {
	f.nextUID++
	uid := fmt.Sprintf("uid%d", f.nextUID)
	acct := &fakeAccount{user: &User{UserInfo: UserInfo{ProviderID: ProviderFirebase, UID: uid}}}
	f.accounts[uid] = acct
	return acct
}

func (f *fakeBackend) accountForLocked(idToken string) (*fakeAccount, error) {
	uid, ok := f.idTokens[idToken]
	if !ok {
		return nil, backendError(http.StatusBadRequest, ReasonInvalidIDToken, nil)
	}
	return f.accounts[uid], nil
}

func addPasswordProvider(acct *fakeAccount, email, password string) {
	acct.user.Email = email
	acct.password = password
	acct.user.ProviderData = append(acct.user.ProviderData, UserInfo{
		ProviderID: ProviderPassword,
		UID:        acct.user.UID,
		Email:      email,
	})
}

func (f *fakeBackend) SignUp(_ context.Context, email, password string) (*Tokens, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SignUp"); err != nil {
		return nil, err
	}

	if email == "" && password == "" {
		acct := f.newAccountLocked()
		return f.mintLocked(acct.user.UID, signInProviderAnonymous), nil
	}
	if _, exists := f.byEmail[email]; exists {
		return nil, backendError(http.StatusBadRequest, ReasonEmailExists, nil)
	}
	if len(password) < 6 {
		return nil, backendError(http.StatusBadRequest, "WEAK_PASSWORD : Password should be at least 6 characters", nil)
	}

	acct := f.newAccountLocked()
	addPasswordProvider(acct, email, password)
	f.byEmail[email] = acct.user.UID
	return f.mintLocked(acct.user.UID, ProviderPassword), nil
}

func (f *fakeBackend) SignInWithPassword(_ context.Context, email, password string) (*Tokens, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SignInWithPassword"); err != nil {
		return nil, err
	}

	uid, ok := f.byEmail[email]
	if !ok {
		return nil, backendError(http.StatusBadRequest, ReasonEmailNotFound, nil)
	}
	if f.accounts[uid].password != password {
		return nil, backendError(http.StatusBadRequest, ReasonInvalidPassword, nil)
	}
	return f.mintLocked(uid, ProviderPassword), nil
}

func (f *fakeBackend) SignInWithCustomToken(_ context.Context, token string) (*Tokens, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SignInWithCustomToken"); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, backendError(http.StatusBadRequest, ReasonInvalidCustomToken, nil)
	}

	acct := f.newAccountLocked()
	return f.mintLocked(acct.user.UID, "custom"), nil
}

func (f *fakeBackend) SignInWithIdp(_ context.Context, postBody, linkIDToken string) (*Tokens, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SignInWithIdp"); err != nil {
		return nil, err
	}

	var acct *fakeAccount
	if linkIDToken != "" {
		var err error
		if acct, err = f.accountForLocked(linkIDToken); err != nil {
			return nil, err
		}
	} else {
		acct = f.newAccountLocked()
	}
	acct.user.ProviderData = append(acct.user.ProviderData, UserInfo{
		ProviderID: ProviderGoogle,
		UID:        "google-" + acct.user.UID,
	})
	return f.mintLocked(acct.user.UID, ProviderGoogle), nil
}

func (f *fakeBackend) SignInWithPhoneNumber(_ context.Context, verificationID, code, linkIDToken string) (*Tokens, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SignInWithPhoneNumber"); err != nil {
		return nil, err
	}

	want, ok := f.codes[verificationID]
	if !ok {
		return nil, backendError(http.StatusBadRequest, ReasonInvalidSessionInfo, nil)
	}
	if want != code {
		return nil, backendError(http.StatusBadRequest, ReasonInvalidCode, nil)
	}

	acct := f.newAccountLocked()
	acct.user.PhoneNumber = "+15555550100"
	acct.user.ProviderData = append(acct.user.ProviderData, UserInfo{
		ProviderID:  ProviderPhone,
		UID:         "+15555550100",
		PhoneNumber: "+15555550100",
	})
	return f.mintLocked(acct.user.UID, ProviderPhone), nil
}

func (f *fakeBackend) LinkEmailPassword(_ context.Context, idToken, email, password string) (*Tokens, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("LinkEmailPassword"); err != nil {
		return nil, err
	}

	acct, err := f.accountForLocked(idToken)
	if err != nil {
		return nil, err
	}
	if _, exists := f.byEmail[email]; exists {
		return nil, backendError(http.StatusBadRequest, ReasonEmailExists, nil)
	}
	addPasswordProvider(acct, email, password)
	f.byEmail[email] = acct.user.UID
	return f.mintLocked(acct.user.UID, ProviderPassword), nil
}

func (f *fakeBackend) LookupAccount(_ context.Context, idToken string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("LookupAccount"); err != nil {
		return nil, err
	}

	acct, err := f.accountForLocked(idToken)
	if err != nil {
		return nil, err
	}
	return acct.user.Copy(), nil
}

func (f *fakeBackend) UpdateProfile(_ context.Context, idToken string, req ProfileChangeRequest) (*Tokens, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateProfile"); err != nil {
		return nil, err
	}

	acct, err := f.accountForLocked(idToken)
	if err != nil {
		return nil, err
	}
	if req.DisplayName != nil {
		acct.user.DisplayName = *req.DisplayName
	}
	if req.PhotoURL != nil {
		acct.user.PhotoURL = *req.PhotoURL
	}
	return nil, nil
}

func (f *fakeBackend) SendOobCode(_ context.Context, kind OobKind, email, idToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SendOobCode:" + string(kind)); err != nil {
		return err
	}

	switch kind {
	case OobPasswordReset:
		if _, ok := f.byEmail[email]; !ok {
			return backendError(http.StatusBadRequest, ReasonEmailNotFound, nil)
		}
	case OobVerifyEmail:
		if _, err := f.accountForLocked(idToken); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeBackend) FetchProviders(_ context.Context, email string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("FetchProviders"); err != nil {
		return nil, err
	}

	uid, ok := f.byEmail[email]
	if !ok {
		return nil, nil
	}
	var providers []string
	for _, p := range f.accounts[uid].user.ProviderData {
		providers = append(providers, p.ProviderID)
	}
	return providers, nil
}

func (f *fakeBackend) SendVerificationCode(_ context.Context, phoneNumber string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SendVerificationCode"); err != nil {
		return "", err
	}
	if phoneNumber == "" {
		return "", backendError(http.StatusBadRequest, ReasonMissingPhoneNumber, nil)
	}

	f.nextVerif++
	verificationID := fmt.Sprintf("verif-%d", f.nextVerif)
	f.codes[verificationID] = "123456"
	return verificationID, nil
}

func (f *fakeBackend) RefreshToken(_ context.Context, refreshToken string) (*Tokens, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("RefreshToken"); err != nil {
		return nil, err
	}

	uid, ok := f.refreshTokens[refreshToken]
	if !ok {
		return nil, backendError(http.StatusBadRequest, ReasonInvalidRefreshToken, nil)
	}
	tokens := f.mintLocked(uid, "refreshed")
	tokens.RefreshToken = ""
	return tokens, nil
}

// Decode implements ClaimsDecoder for the tokens minted above
func (f *fakeBackend) Decode(_ context.Context, idToken string) (*Claims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	uid, ok := f.idTokens[idToken]
	if !ok {
		return nil, fmt.Errorf("unknown token %q", idToken)
	}
	return &Claims{UID: uid, SignInProvider: f.providers[idToken]}, nil
}
