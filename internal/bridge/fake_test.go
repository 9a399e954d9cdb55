package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/otiai10/authbridge/internal/channel"
	"github.com/otiai10/authbridge/internal/identity"
	"github.com/stretchr/testify/require"
)

func sdkError(category goerrors.Category, reason, message string) error {
	return goerrors.New(message, category).WithTextCode(reason)
}

// memoryBackend is a small identity.Backend keeping accounts in memory
type memoryBackend struct {
	mu       sync.Mutex
	next     int
	users    map[string]*identity.User // uid -> user
	byEmail  map[string]string
	password map[string]string
	tokens   map[string]string // ID or refresh token -> uid
	calls    map[string]int
	rejects  map[string]error // method -> forced error

	phoneErr error
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{
		users:    make(map[string]*identity.User),
		byEmail:  make(map[string]string),
		password: make(map[string]string),
		tokens:   make(map[string]string),
		calls:    make(map[string]int),
		rejects:  make(map[string]error),
	}
}

// rejectWith makes method fail with err from now on
func (m *memoryBackend) rejectWith(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejects[method] = err
}

// enter records a call and returns the forced error for method, if any.
// Callers hold m.mu.
func (m *memoryBackend) enter(method string) error {
	m.calls[method]++
	return m.rejects[method]
}

func (m *memoryBackend) count(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *memoryBackend) mint(uid string) *identity.Tokens {
	m.next++
	id := fmt.Sprintf("id-%d", m.next)
	refresh := fmt.Sprintf("refresh-%d", m.next)
	m.tokens[id] = uid
	m.tokens[refresh] = uid
	return &identity.Tokens{LocalID: uid, IDToken: id, RefreshToken: refresh, ExpiresIn: time.Hour}
}

func (m *memoryBackend) newUser() *identity.User {
	m.next++
	uid := fmt.Sprintf("user%d", m.next)
	u := &identity.User{UserInfo: identity.UserInfo{ProviderID: identity.ProviderFirebase, UID: uid}}
	m.users[uid] = u
	return u
}

func (m *memoryBackend) userFor(idToken string) (*identity.User, error) {
	uid, ok := m.tokens[idToken]
	if !ok {
		return nil, sdkError(goerrors.CategoryAuth, identity.ReasonInvalidIDToken, "The user's credential is no longer valid. The user must sign in again.")
	}
	return m.users[uid], nil
}

func (m *memoryBackend) SignUp(_ context.Context, email, password string) (*identity.Tokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("SignUp"); err != nil {
		return nil, err
	}

	if email != "" {
		if _, ok := m.byEmail[email]; ok {
			return nil, sdkError(goerrors.CategoryAuth, identity.ReasonEmailExists, "The email address is already in use by another account.")
		}
	}
	u := m.newUser()
	if email != "" {
		u.Email = email
		u.ProviderData = append(u.ProviderData, identity.UserInfo{ProviderID: identity.ProviderPassword, UID: u.UID, Email: email})
		m.byEmail[email] = u.UID
		m.password[u.UID] = password
	}
	return m.mint(u.UID), nil
}

func (m *memoryBackend) SignInWithPassword(_ context.Context, email, password string) (*identity.Tokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("SignInWithPassword"); err != nil {
		return nil, err
	}

	uid, ok := m.byEmail[email]
	if !ok || m.password[uid] != password {
		return nil, sdkError(goerrors.CategoryAuth, identity.ReasonInvalidPassword, "The password is invalid or the user does not have a password.")
	}
	return m.mint(uid), nil
}

func (m *memoryBackend) SignInWithCustomToken(_ context.Context, token string) (*identity.Tokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("SignInWithCustomToken"); err != nil {
		return nil, err
	}

	u := m.newUser()
	u.DisplayName = token
	return m.mint(u.UID), nil
}

func (m *memoryBackend) SignInWithIdp(_ context.Context, postBody, linkIDToken string) (*identity.Tokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("SignInWithIdp"); err != nil {
		return nil, err
	}

	var u *identity.User
	if linkIDToken != "" {
		var err error
		if u, err = m.userFor(linkIDToken); err != nil {
			return nil, err
		}
	} else {
		u = m.newUser()
	}
	u.ProviderData = append(u.ProviderData, identity.UserInfo{ProviderID: "idp", UID: postBody})
	return m.mint(u.UID), nil
}

func (m *memoryBackend) SignInWithPhoneNumber(_ context.Context, verificationID, code, _ string) (*identity.Tokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("SignInWithPhoneNumber"); err != nil {
		return nil, err
	}

	if code != "123456" {
		return nil, sdkError(goerrors.CategoryAuth, identity.ReasonInvalidCode, "The sms verification code used to create the phone auth credential is invalid.")
	}
	u := m.newUser()
	u.PhoneNumber = "+15555550100"
	u.ProviderData = append(u.ProviderData, identity.UserInfo{ProviderID: identity.ProviderPhone, UID: "+15555550100", PhoneNumber: "+15555550100"})
	return m.mint(u.UID), nil
}

func (m *memoryBackend) LinkEmailPassword(_ context.Context, idToken, email, password string) (*identity.Tokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("LinkEmailPassword"); err != nil {
		return nil, err
	}

	u, err := m.userFor(idToken)
	if err != nil {
		return nil, err
	}
	u.Email = email
	u.ProviderData = append(u.ProviderData, identity.UserInfo{ProviderID: identity.ProviderPassword, UID: u.UID, Email: email})
	m.byEmail[email] = u.UID
	m.password[u.UID] = password
	return m.mint(u.UID), nil
}

func (m *memoryBackend) LookupAccount(_ context.Context, idToken string) (*identity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["LookupAccount"]++

	u, err := m.userFor(idToken)
	if err != nil {
		return nil, err
	}
	return u.Copy(), nil
}

func (m *memoryBackend) UpdateProfile(_ context.Context, idToken string, req identity.ProfileChangeRequest) (*identity.Tokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["UpdateProfile"]++

	u, err := m.userFor(idToken)
	if err != nil {
		return nil, err
	}
	if req.DisplayName != nil {
		u.DisplayName = *req.DisplayName
	}
	if req.PhotoURL != nil {
		u.PhotoURL = *req.PhotoURL
	}
	return nil, nil
}

func (m *memoryBackend) SendOobCode(_ context.Context, kind identity.OobKind, email, idToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["SendOobCode"]++

	if kind == identity.OobPasswordReset {
		if _, ok := m.byEmail[email]; !ok {
			return sdkError(goerrors.CategoryAuth, identity.ReasonEmailNotFound, "There is no user record corresponding to this identifier. The user may have been deleted.")
		}
		return nil
	}
	_, err := m.userFor(idToken)
	return err
}

func (m *memoryBackend) FetchProviders(_ context.Context, email string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["FetchProviders"]++

	uid, ok := m.byEmail[email]
	if !ok {
		return nil, nil
	}
	var providers []string
	for _, p := range m.users[uid].ProviderData {
		providers = append(providers, p.ProviderID)
	}
	return providers, nil
}

func (m *memoryBackend) SendVerificationCode(_ context.Context, phoneNumber string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["SendVerificationCode"]++

	if m.phoneErr != nil {
		return "", m.phoneErr
	}
	return fmt.Sprintf("verification-%d", m.calls["SendVerificationCode"]), nil
}

func (m *memoryBackend) RefreshToken(_ context.Context, refreshToken string) (*identity.Tokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["RefreshToken"]++

	uid, ok := m.tokens[refreshToken]
	if !ok {
		return nil, sdkError(goerrors.CategoryAuth, identity.ReasonInvalidRefreshToken, "The user's credential is no longer valid. The user must sign in again.")
	}
	return m.mint(uid), nil
}

// event is one outbound event captured by recordingSink
type event struct {
	name string
	args map[string]any
}

// recordingSink captures events as JSON-decoded maps
type recordingSink struct {
	events chan event
}

func newRecordingSink() *recordingSink {
	return &recordingSink{events: make(chan event, 32)}
}

func (s *recordingSink) InvokeMethod(method string, arguments any) error {
	data, err := json.Marshal(arguments)
	if err != nil {
		return err
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	s.events <- event{name: method, args: decoded}
	return nil
}

func (s *recordingSink) next(t *testing.T) event {
	t.Helper()
	select {
	case e := <-s.events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return event{}
	}
}

func (s *recordingSink) none(t *testing.T) {
	t.Helper()
	select {
	case e := <-s.events:
		t.Fatalf("unexpected event %s %v", e.name, e.args)
	case <-time.After(100 * time.Millisecond):
	}
}

// recordingResult captures replies, JSON-encoding success values
type recordingResult struct {
	mu             sync.Mutex
	replies        int
	result         string
	code           string
	message        string
	notImplemented bool
}

func (r *recordingResult) Success(result any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies++
	data, _ := json.Marshal(result)
	r.result = string(data)
}

func (r *recordingResult) Error(code, message string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies++
	r.code = code
	r.message = message
}

func (r *recordingResult) NotImplemented() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies++
	r.notImplemented = true
}

// harness wires a Bridge to a real session over memoryBackend
type harness struct {
	backend *memoryBackend
	sink    *recordingSink
	bridge  *Bridge
}

func newHarness(t *testing.T, opts ...identity.Option) *harness {
	t.Helper()
	backend := newMemoryBackend()
	client := identity.NewClientWithBackend(backend, opts...)
	sink := newRecordingSink()
	b := New(client.NewAuth(), client.NewPhoneAuthProvider(), sink)
	t.Cleanup(b.Close)
	return &harness{backend: backend, sink: sink, bridge: b}
}

// call invokes method with arguments given as JSON
func (h *harness) call(t *testing.T, method, argsJSON string) *recordingResult {
	t.Helper()
	args := map[string]any{}
	if argsJSON != "" {
		dec := json.NewDecoder(strings.NewReader(argsJSON))
		dec.UseNumber()
		require.NoError(t, dec.Decode(&args))
	}

	r := &recordingResult{}
	h.bridge.HandleCall(context.Background(), &channel.MethodCall{Method: method, Arguments: args}, r)
	require.Equal(t, 1, r.replies, "%s must reply exactly once", method)
	return r
}
