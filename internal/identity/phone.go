package identity

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultResendWindow is how long a pending verification is reused for
// repeated requests to the same number
const DefaultResendWindow = 60 * time.Second

// ErrCodeUnavailable is returned by a CodeRetriever that cannot supply the
// code for a number
var ErrCodeUnavailable = errors.New("verification code unavailable")

// CodeRetriever obtains SMS codes without user input
type CodeRetriever interface {
	// RetrieveCode blocks until the code for phoneNumber arrives or ctx is done.
	// It returns ErrCodeUnavailable when it does not serve phoneNumber.
	RetrieveCode(ctx context.Context, phoneNumber, verificationID string) (string, error)
}

// StaticCodeRetriever serves fixed codes for configured test numbers.
// It answers at once, so verification with it alone always completes and
// never reaches the auto-retrieval timeout. Wrap it in a
// DelayedCodeRetriever to exercise that outcome.
type StaticCodeRetriever map[string]string

// RetrieveCode implements CodeRetriever
func (r StaticCodeRetriever) RetrieveCode(_ context.Context, phoneNumber, _ string) (string, error) {
	code, ok := r[phoneNumber]
	if !ok {
		return "", ErrCodeUnavailable
	}
	return code, nil
}

// DelayedCodeRetriever holds back the codes of Retriever for Delay, the way
// an SMS takes a while to reach the device. Numbers Retriever does not serve
// fail at once.
type DelayedCodeRetriever struct {
	Retriever CodeRetriever
	Delay     time.Duration
}

// RetrieveCode implements CodeRetriever
func (r DelayedCodeRetriever) RetrieveCode(ctx context.Context, phoneNumber, verificationID string) (string, error) {
	code, err := r.Retriever.RetrieveCode(ctx, phoneNumber, verificationID)
	if err != nil {
		return "", err
	}

	timer := time.NewTimer(r.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return code, nil
	}
}

// ForceResendingToken lets a caller bypass the resend window for one number
type ForceResendingToken struct {
	phoneNumber string
}

// PhoneVerificationCallbacks receive the outcome of VerifyPhoneNumber.
// Exactly one of them is called, once.
type PhoneVerificationCallbacks struct {
	OnVerificationCompleted    func(cred Credential)
	OnVerificationFailed       func(err error)
	OnCodeSent                 func(verificationID string, token *ForceResendingToken)
	OnCodeAutoRetrievalTimeout func(verificationID string)
}

// pendingVerification is an SMS already sent to a number
type pendingVerification struct {
	verificationID string
	sentAt         time.Time
}

// PhoneAuthProvider sends SMS verification codes
type PhoneAuthProvider struct {
	backend      Backend
	retriever    CodeRetriever
	resendWindow time.Duration
	now          func() time.Time

	mu      sync.Mutex
	pending map[string]pendingVerification
}

// VerifyPhoneNumber starts verifying phoneNumber and returns immediately.
// The outcome is reported through callbacks on another goroutine. timeout
// bounds automatic code retrieval. A nil token is honoured as "no token".
func (p *PhoneAuthProvider) VerifyPhoneNumber(ctx context.Context, phoneNumber string, timeout time.Duration, token *ForceResendingToken, callbacks PhoneVerificationCallbacks) {
	go p.verify(ctx, phoneNumber, timeout, token, callbacks)
}

func (p *PhoneAuthProvider) verify(ctx context.Context, phoneNumber string, timeout time.Duration, token *ForceResendingToken, cb PhoneVerificationCallbacks) {
	verificationID, err := p.sendCode(ctx, phoneNumber, token)
	if err != nil {
		if cb.OnVerificationFailed != nil {
			cb.OnVerificationFailed(err)
		}
		return
	}

	if p.retriever != nil {
		retrieveCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			retrieveCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		code, err := p.retriever.RetrieveCode(retrieveCtx, phoneNumber, verificationID)
		switch {
		case err == nil:
			if cb.OnVerificationCompleted != nil {
				cb.OnVerificationCompleted(PhoneCredential(verificationID, code))
			}
			return
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			if cb.OnCodeAutoRetrievalTimeout != nil {
				cb.OnCodeAutoRetrievalTimeout(verificationID)
			}
			return
		case !errors.Is(err, ErrCodeUnavailable):
			if cb.OnVerificationFailed != nil {
				cb.OnVerificationFailed(err)
			}
			return
		}
	}

	if cb.OnCodeSent != nil {
		cb.OnCodeSent(verificationID, &ForceResendingToken{phoneNumber: phoneNumber})
	}
}

// sendCode asks the backend for an SMS unless one was sent to phoneNumber
// within the resend window and token does not force a new one.
func (p *PhoneAuthProvider) sendCode(ctx context.Context, phoneNumber string, token *ForceResendingToken) (string, error) {
	forced := token != nil && token.phoneNumber == phoneNumber

	p.mu.Lock()
	if prev, ok := p.pending[phoneNumber]; ok && !forced && p.now().Sub(prev.sentAt) < p.resendWindow {
		p.mu.Unlock()
		return prev.verificationID, nil
	}
	p.mu.Unlock()

	verificationID, err := p.backend.SendVerificationCode(ctx, phoneNumber)
	if err != nil {
		return "", err
	}
	if verificationID == "" {
		return "", internalError("backend returned no verification ID")
	}

	p.mu.Lock()
	p.pending[phoneNumber] = pendingVerification{verificationID: verificationID, sentAt: p.now()}
	p.mu.Unlock()

	return verificationID, nil
}
