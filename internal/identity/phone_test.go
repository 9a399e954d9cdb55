package identity

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// phoneOutcome records which callback fired
type phoneOutcome struct {
	kind           string
	verificationID string
	token          *ForceResendingToken
	cred           Credential
	err            error
}

func collectPhone() (PhoneVerificationCallbacks, <-chan phoneOutcome) {
	ch := make(chan phoneOutcome, 4)
	return PhoneVerificationCallbacks{
		OnVerificationCompleted: func(cred Credential) {
			ch <- phoneOutcome{kind: "completed", cred: cred}
		},
		OnVerificationFailed: func(err error) {
			ch <- phoneOutcome{kind: "failed", err: err}
		},
		OnCodeSent: func(verificationID string, token *ForceResendingToken) {
			ch <- phoneOutcome{kind: "codeSent", verificationID: verificationID, token: token}
		},
		OnCodeAutoRetrievalTimeout: func(verificationID string) {
			ch <- phoneOutcome{kind: "timeout", verificationID: verificationID}
		},
	}, ch
}

func recvPhone(t *testing.T, ch <-chan phoneOutcome) phoneOutcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for phone verification outcome")
		return phoneOutcome{}
	}
}

// blockingRetriever never yields a code
type blockingRetriever struct{}

func (blockingRetriever) RetrieveCode(ctx context.Context, _, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestPhoneAuthProvider_CodeSent(t *testing.T) {
	backend := newFakeBackend()
	phone := NewClientWithBackend(backend).NewPhoneAuthProvider()

	cb, ch := collectPhone()
	phone.VerifyPhoneNumber(context.Background(), "+15555550123", time.Second, nil, cb)

	got := recvPhone(t, ch)
	assert.Equal(t, "codeSent", got.kind)
	assert.Equal(t, "verif-1", got.verificationID)
	assert.NotNil(t, got.token)

	// The code sent by SMS signs in
	auth := NewClientWithBackend(backend, WithClaimsDecoder(backend)).NewAuth()
	user, err := auth.SignInWithCredential(context.Background(), PhoneCredential(got.verificationID, "123456"))
	require.NoError(t, err)
	assert.Equal(t, "+15555550100", user.PhoneNumber)
}

func TestPhoneAuthProvider_Completed(t *testing.T) {
	backend := newFakeBackend()
	phone := NewClientWithBackend(backend,
		WithCodeRetriever(StaticCodeRetriever{"+15555550100": "123456"}),
	).NewPhoneAuthProvider()

	cb, ch := collectPhone()
	phone.VerifyPhoneNumber(context.Background(), "+15555550100", time.Second, nil, cb)

	got := recvPhone(t, ch)
	require.Equal(t, "completed", got.kind)
	assert.Equal(t, ProviderPhone, got.cred.Provider())
	assert.Equal(t, phoneCredential{verificationID: "verif-1", code: "123456"}, got.cred)
}

func TestPhoneAuthProvider_RetrieverDoesNotServeNumber(t *testing.T) {
	phone := NewClientWithBackend(newFakeBackend(),
		WithCodeRetriever(StaticCodeRetriever{"+15555550100": "123456"}),
	).NewPhoneAuthProvider()

	cb, ch := collectPhone()
	phone.VerifyPhoneNumber(context.Background(), "+15555550199", time.Second, nil, cb)

	assert.Equal(t, "codeSent", recvPhone(t, ch).kind)
}

func TestPhoneAuthProvider_AutoRetrievalTimeout(t *testing.T) {
	phone := NewClientWithBackend(newFakeBackend(), WithCodeRetriever(blockingRetriever{})).NewPhoneAuthProvider()

	cb, ch := collectPhone()
	phone.VerifyPhoneNumber(context.Background(), "+15555550100", 20*time.Millisecond, nil, cb)

	got := recvPhone(t, ch)
	assert.Equal(t, "timeout", got.kind)
	assert.Equal(t, "verif-1", got.verificationID)
}

func TestPhoneAuthProvider_Failed(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		number string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "missing number",
			number: "",
			check: func(t *testing.T, err error) {
				assert.True(t, IsInvalidCredential(err))
			},
		},
		{
			name:   "quota",
			number: "+15555550100",
			err:    backendError(http.StatusBadRequest, ReasonQuotaExceeded, nil),
			check: func(t *testing.T, err error) {
				assert.True(t, IsQuotaExceeded(err))
			},
		},
		{
			name:   "network",
			number: "+15555550100",
			err:    networkError(errors.New("dial tcp: connection refused")),
			check: func(t *testing.T, err error) {
				assert.Equal(t, ReasonNetworkError, Reason(err))
				assert.False(t, IsAuthError(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			if tt.err != nil {
				backend.failWith("SendVerificationCode", tt.err)
			}
			phone := NewClientWithBackend(backend).NewPhoneAuthProvider()

			cb, ch := collectPhone()
			phone.VerifyPhoneNumber(context.Background(), tt.number, time.Second, nil, cb)

			got := recvPhone(t, ch)
			require.Equal(t, "failed", got.kind)
			tt.check(t, got.err)
		})
	}
}

func TestPhoneAuthProvider_ResendWindow(t *testing.T) {
	backend := newFakeBackend()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := make(chan time.Time, 1)
	clock <- now
	phone := NewClientWithBackend(backend,
		WithResendWindow(time.Minute),
		WithClock(func() time.Time { ts := <-clock; clock <- ts; return ts }),
	).NewPhoneAuthProvider()
	ctx := context.Background()

	verify := func(token *ForceResendingToken) phoneOutcome {
		cb, ch := collectPhone()
		phone.VerifyPhoneNumber(ctx, "+15555550123", time.Second, token, cb)
		return recvPhone(t, ch)
	}

	first := verify(nil)
	require.Equal(t, "codeSent", first.kind)

	// Within the window the pending verification is reused
	second := verify(nil)
	assert.Equal(t, first.verificationID, second.verificationID)
	assert.Equal(t, 1, backend.callCount("SendVerificationCode"))

	// A resend token forces a new code
	forced := verify(second.token)
	assert.NotEqual(t, first.verificationID, forced.verificationID)
	assert.Equal(t, 2, backend.callCount("SendVerificationCode"))

	// A token for another number does not
	other := verify(&ForceResendingToken{phoneNumber: "+15555550999"})
	assert.Equal(t, forced.verificationID, other.verificationID)

	// After the window a new code is sent
	<-clock
	clock <- now.Add(2 * time.Minute)
	late := verify(nil)
	assert.NotEqual(t, forced.verificationID, late.verificationID)
	assert.Equal(t, 3, backend.callCount("SendVerificationCode"))
}

func TestStaticCodeRetriever(t *testing.T) {
	r := StaticCodeRetriever{"+15555550100": "654321"}

	code, err := r.RetrieveCode(context.Background(), "+15555550100", "v")
	require.NoError(t, err)
	assert.Equal(t, "654321", code)

	_, err = r.RetrieveCode(context.Background(), "+15555550101", "v")
	assert.ErrorIs(t, err, ErrCodeUnavailable)
}

func TestDelayedCodeRetriever(t *testing.T) {
	static := StaticCodeRetriever{"+15555550100": "654321"}

	t.Run("code after delay", func(t *testing.T) {
		r := DelayedCodeRetriever{Retriever: static, Delay: 10 * time.Millisecond}
		start := time.Now()
		code, err := r.RetrieveCode(context.Background(), "+15555550100", "v")
		require.NoError(t, err)
		assert.Equal(t, "654321", code)
		assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	})

	t.Run("unknown number fails at once", func(t *testing.T) {
		r := DelayedCodeRetriever{Retriever: static, Delay: time.Hour}
		_, err := r.RetrieveCode(context.Background(), "+15555550101", "v")
		assert.ErrorIs(t, err, ErrCodeUnavailable)
	})

	t.Run("context ends first", func(t *testing.T) {
		r := DelayedCodeRetriever{Retriever: static, Delay: time.Hour}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := r.RetrieveCode(ctx, "+15555550100", "v")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestPhoneAuthProvider_DelayedTestNumber(t *testing.T) {
	tests := []struct {
		name    string
		number  string
		delay   time.Duration
		timeout time.Duration
		want    string
	}{
		{"code before timeout", "+15555550100", 10 * time.Millisecond, time.Second, "completed"},
		{"timeout before code", "+15555550100", time.Hour, 20 * time.Millisecond, "timeout"},
		{"number not served", "+15555550199", time.Hour, 20 * time.Millisecond, "codeSent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retriever := DelayedCodeRetriever{
				Retriever: StaticCodeRetriever{"+15555550100": "123456"},
				Delay:     tt.delay,
			}
			phone := NewClientWithBackend(newFakeBackend(), WithCodeRetriever(retriever)).NewPhoneAuthProvider()

			cb, ch := collectPhone()
			phone.VerifyPhoneNumber(context.Background(), tt.number, tt.timeout, nil, cb)

			got := recvPhone(t, ch)
			assert.Equal(t, tt.want, got.kind)
			if tt.want != "completed" {
				assert.Equal(t, "verif-1", got.verificationID)
			}
		})
	}
}
