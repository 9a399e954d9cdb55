package identity

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// tokenExpirySkew refreshes ID tokens slightly before they expire
const tokenExpirySkew = 5 * time.Minute

// AuthStateListener receives the signed-in user (nil when signed out)
type AuthStateListener func(user *User)

// listenerEntry guards a listener so that it is never invoked after Remove
type listenerEntry struct {
	mu      sync.Mutex
	fn      AuthStateListener
	removed bool
}

func (e *listenerEntry) invoke(user *User) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return
	}
	e.fn(user.Copy())
}

// ListenerRegistration is returned by AddAuthStateListener
type ListenerRegistration struct {
	auth  *Auth
	entry *listenerEntry
}

// Remove detaches the listener. Once Remove returns the listener is never
// invoked again; a callback already running finishes first, so Remove must
// not be called from inside the listener itself.
func (r *ListenerRegistration) Remove() {
	r.entry.mu.Lock()
	r.entry.removed = true
	r.entry.mu.Unlock()

	r.auth.listenersMu.Lock()
	defer r.auth.listenersMu.Unlock()
	for i, e := range r.auth.listeners {
		if e == r.entry {
			r.auth.listeners = append(r.auth.listeners[:i], r.auth.listeners[i+1:]...)
			break
		}
	}
}

// Auth is one authentication session: the signed-in user, its tokens and
// the auth-state listeners attached to it.
//
// Auth is safe for concurrent use by multiple goroutines.
type Auth struct {
	backend Backend
	claims  ClaimsDecoder
	now     func() time.Time

	mu        sync.Mutex
	user      *User
	tokens    *Tokens
	expiresAt time.Time

	listenersMu sync.Mutex
	listeners   []*listenerEntry

	queue serialQueue
}

// CurrentUser returns a snapshot of the signed-in user, or nil
func (a *Auth) CurrentUser() *User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user.Copy()
}

// AddAuthStateListener attaches a listener. It is called asynchronously with
// the current state right away, then after every sign-in and sign-out.
func (a *Auth) AddAuthStateListener(fn AuthStateListener) *ListenerRegistration {
	entry := &listenerEntry{fn: fn}

	a.listenersMu.Lock()
	a.listeners = append(a.listeners, entry)
	a.listenersMu.Unlock()

	a.mu.Lock()
	user := a.user.Copy()
	a.queue.enqueue(func() { entry.invoke(user) })
	a.mu.Unlock()

	return &ListenerRegistration{auth: a, entry: entry}
}

// notifyLocked schedules a notification of all listeners. Callers hold a.mu
// so that notifications are queued in the order state changes happened.
func (a *Auth) notifyLocked() {
	user := a.user.Copy()
	a.queue.enqueue(func() {
		a.listenersMu.Lock()
		entries := make([]*listenerEntry, len(a.listeners))
		copy(entries, a.listeners)
		a.listenersMu.Unlock()

		for _, e := range entries {
			e.invoke(user)
		}
	})
}

// SignInAnonymously creates and signs in an anonymous account
func (a *Auth) SignInAnonymously(ctx context.Context) (*User, error) {
	return a.signIn(ctx, func(ctx context.Context) (*Tokens, error) {
		return a.backend.SignUp(ctx, "", "")
	})
}

// CreateUserWithEmailAndPassword creates an account and signs it in
func (a *Auth) CreateUserWithEmailAndPassword(ctx context.Context, email, password string) (*User, error) {
	return a.signIn(ctx, func(ctx context.Context) (*Tokens, error) {
		return a.backend.SignUp(ctx, email, password)
	})
}

// SignInWithEmailAndPassword signs in with an email and password
func (a *Auth) SignInWithEmailAndPassword(ctx context.Context, email, password string) (*User, error) {
	return a.SignInWithCredential(ctx, EmailCredential(email, password))
}

// SignInWithCustomToken signs in with a custom token minted by a trusted server
func (a *Auth) SignInWithCustomToken(ctx context.Context, token string) (*User, error) {
	return a.signIn(ctx, func(ctx context.Context) (*Tokens, error) {
		return a.backend.SignInWithCustomToken(ctx, token)
	})
}

// SignInWithCredential signs in with any provider credential
func (a *Auth) SignInWithCredential(ctx context.Context, cred Credential) (*User, error) {
	return a.signIn(ctx, func(ctx context.Context) (*Tokens, error) {
		return cred.redeem(ctx, a.backend, "")
	})
}

// LinkWithCredential links cred to the signed-in user
func (a *Auth) LinkWithCredential(ctx context.Context, cred Credential) (*User, error) {
	idToken, err := a.GetIDToken(ctx, false)
	if err != nil {
		return nil, err
	}

	tokens, err := cred.redeem(ctx, a.backend, idToken)
	if err != nil {
		return nil, err
	}

	user, err := a.loadUser(ctx, tokens)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.user == nil || a.user.UID != user.UID {
		return nil, noCurrentUser()
	}
	a.user = user
	a.setTokensLocked(tokens)
	return user.Copy(), nil
}

// FetchProvidersForEmail lists the providers registered for email
func (a *Auth) FetchProvidersForEmail(ctx context.Context, email string) ([]string, error) {
	providers, err := a.backend.FetchProviders(ctx, email)
	if err != nil {
		return nil, err
	}
	if providers == nil {
		providers = []string{}
	}
	return providers, nil
}

// SendPasswordResetEmail asks the backend to email a password reset link
func (a *Auth) SendPasswordResetEmail(ctx context.Context, email string) error {
	return a.backend.SendOobCode(ctx, OobPasswordReset, email, "")
}

// SendEmailVerification asks the backend to email a verification link to the signed-in user
func (a *Auth) SendEmailVerification(ctx context.Context) error {
	idToken, err := a.GetIDToken(ctx, false)
	if err != nil {
		return err
	}
	return a.backend.SendOobCode(ctx, OobVerifyEmail, "", idToken)
}

// Reload refreshes the signed-in user's profile from the backend
func (a *Auth) Reload(ctx context.Context) error {
	idToken, err := a.GetIDToken(ctx, false)
	if err != nil {
		return err
	}

	user, err := a.backend.LookupAccount(ctx, idToken)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.user == nil || a.user.UID != user.UID {
		return noCurrentUser()
	}
	user.ProviderID = ProviderFirebase
	user.Anonymous = a.user.Anonymous && len(user.ProviderData) == 0
	a.user = user
	return nil
}

// UpdateProfile changes the signed-in user's display name and photo URL.
// An empty request succeeds without contacting the backend.
func (a *Auth) UpdateProfile(ctx context.Context, req ProfileChangeRequest) error {
	if req.IsEmpty() {
		a.mu.Lock()
		signedIn := a.user != nil
		a.mu.Unlock()
		if !signedIn {
			return noCurrentUser()
		}
		return nil
	}

	idToken, err := a.GetIDToken(ctx, false)
	if err != nil {
		return err
	}

	tokens, err := a.backend.UpdateProfile(ctx, idToken, req)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.user == nil {
		return noCurrentUser()
	}
	updated := a.user.Copy()
	if req.DisplayName != nil {
		updated.DisplayName = *req.DisplayName
	}
	if req.PhotoURL != nil {
		updated.PhotoURL = *req.PhotoURL
	}
	a.user = updated
	if tokens != nil && tokens.IDToken != "" {
		a.setTokensLocked(tokens)
	}
	return nil
}

// GetIDToken returns the signed-in user's ID token, refreshing it when
// forceRefresh is set or the cached token is about to expire.
func (a *Auth) GetIDToken(ctx context.Context, forceRefresh bool) (string, error) {
	a.mu.Lock()
	if a.user == nil || a.tokens == nil {
		a.mu.Unlock()
		return "", noCurrentUser()
	}
	uid := a.user.UID
	current := *a.tokens
	fresh := a.now().Before(a.expiresAt.Add(-tokenExpirySkew))
	a.mu.Unlock()

	if !forceRefresh && fresh {
		return current.IDToken, nil
	}

	refreshed, err := a.backend.RefreshToken(ctx, current.RefreshToken)
	if err != nil {
		return "", err
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = current.RefreshToken
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.user == nil || a.user.UID != uid {
		return "", noCurrentUser()
	}
	a.setTokensLocked(refreshed)
	return refreshed.IDToken, nil
}

// SignOut forgets the signed-in user. It never fails.
func (a *Auth) SignOut() {
	a.mu.Lock()
	defer a.mu.Unlock()

	wasSignedIn := a.user != nil
	a.user = nil
	a.tokens = nil
	a.expiresAt = time.Time{}
	if wasSignedIn {
		a.notifyLocked()
	}
}

// signIn redeems tokens, loads the account and makes it the signed-in user
func (a *Auth) signIn(ctx context.Context, redeem func(context.Context) (*Tokens, error)) (*User, error) {
	tokens, err := redeem(ctx)
	if err != nil {
		return nil, err
	}

	user, err := a.loadUser(ctx, tokens)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.user = user
	a.setTokensLocked(tokens)
	a.notifyLocked()
	return user.Copy(), nil
}

// loadUser fetches the account owning tokens and derives the anonymous flag
func (a *Auth) loadUser(ctx context.Context, tokens *Tokens) (*User, error) {
	if tokens == nil || tokens.IDToken == "" {
		return nil, internalError("backend returned no ID token")
	}

	user, err := a.backend.LookupAccount(ctx, tokens.IDToken)
	if err != nil {
		return nil, err
	}
	user.ProviderID = ProviderFirebase

	if a.claims != nil {
		claims, err := a.claims.Decode(ctx, tokens.IDToken)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryAuth, reasonMessages[ReasonInvalidIDToken]).
				WithTextCode(ReasonInvalidIDToken)
		}
		if claims.UID != "" && claims.UID != user.UID {
			return nil, goerrors.New(reasonMessages[ReasonInvalidIDToken], goerrors.CategoryAuth).
				WithTextCode(ReasonInvalidIDToken).
				WithMetadata(map[string]any{"token_uid": claims.UID, "account_uid": user.UID})
		}
		user.Anonymous = claims.SignInProvider == signInProviderAnonymous && len(user.ProviderData) == 0
	} else {
		user.Anonymous = len(user.ProviderData) == 0 && user.Email == "" && user.PhoneNumber == ""
	}

	return user, nil
}

func (a *Auth) setTokensLocked(tokens *Tokens) {
	t := *tokens
	if t.RefreshToken == "" && a.tokens != nil {
		t.RefreshToken = a.tokens.RefreshToken
	}
	a.tokens = &t
	a.expiresAt = a.now().Add(t.ExpiresIn)
}

// serialQueue runs queued functions one at a time, in order, on a goroutine
// that exits when the queue is empty.
type serialQueue struct {
	mu      sync.Mutex
	pending []func()
	running bool
}

func (q *serialQueue) enqueue(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = append(q.pending, fn)
	if q.running {
		return
	}
	q.running = true
	go q.drain()
}

func (q *serialQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		fn := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		fn()
	}
}
