package bridge

import (
	"context"
	"log"
	"time"

	"github.com/otiai10/authbridge/internal/channel"
	"github.com/otiai10/authbridge/internal/identity"
)

// Phone verification events
const (
	EventPhoneVerificationCompleted    = "phoneVerificationCompleted"
	EventPhoneVerificationFailed       = "phoneVerificationFailed"
	EventPhoneCodeSent                 = "phoneCodeSent"
	EventPhoneCodeAutoRetrievalTimeout = "phoneCodeAutoRetrievalTimeout"
)

// Codes reported in phoneVerificationFailed's exception
const (
	PhoneErrorInvalidCredential = "invalidCredential"
	PhoneErrorFirebaseAuth      = "firebaseAuth"
	PhoneErrorQuotaExceeded     = "quotaExceeded"
	PhoneErrorAPINotAvailable   = "apiNotAvailable"
	PhoneErrorDefault           = "verifyPhoneNumberError"
)

// phoneErrorCode classifies a phone verification failure
func phoneErrorCode(err error) string {
	switch {
	case identity.IsInvalidCredential(err):
		return PhoneErrorInvalidCredential
	case identity.IsQuotaExceeded(err):
		return PhoneErrorQuotaExceeded
	case identity.IsAPINotAvailable(err):
		return PhoneErrorAPINotAvailable
	case identity.IsAuthError(err):
		return PhoneErrorFirebaseAuth
	default:
		return PhoneErrorDefault
	}
}

// handleVerifyPhoneNumber starts verification, answers null at once and
// reports the outcome as exactly one event tagged with the caller's handle.
func (b *Bridge) handleVerifyPhoneNumber(ctx context.Context, args arguments, result channel.Result) {
	handle, err := args.requireInt("handle")
	if err != nil {
		replyError(result, err)
		return
	}
	phoneNumber, err := args.requireString("phoneNumber")
	if err != nil {
		replyError(result, err)
		return
	}
	timeoutMillis, err := args.requireInt("timeout")
	if err != nil {
		replyError(result, err)
		return
	}
	tokenHandle, hasToken, err := args.optionalInt("forceResendingToken")
	if err != nil {
		replyError(result, err)
		return
	}

	// An unknown token handle is passed on as no token
	var token *identity.ForceResendingToken
	if hasToken {
		token, _ = b.resendTokens.Get(tokenHandle)
	}

	emit := func(event string, payload map[string]any) {
		payload["handle"] = handle
		if err := b.sink.InvokeMethod(event, payload); err != nil {
			log.Printf("Failed to emit %s for handle %d: %v", event, handle, err)
		}
	}
	failed := func(err error) {
		emit(EventPhoneVerificationFailed, map[string]any{
			"exception": map[string]any{
				"code":    phoneErrorCode(err),
				"message": identity.Message(err),
			},
		})
	}

	result.Success(nil)

	b.phone.VerifyPhoneNumber(ctx, phoneNumber, time.Duration(timeoutMillis)*time.Millisecond, token,
		identity.PhoneVerificationCallbacks{
			// The credential stays with the SDK; the caller redeems the code itself
			OnVerificationCompleted: func(identity.Credential) {
				emit(EventPhoneVerificationCompleted, map[string]any{})
			},
			OnVerificationFailed: failed,
			OnCodeSent: func(verificationID string, token *identity.ForceResendingToken) {
				emit(EventPhoneCodeSent, map[string]any{
					"verificationId":      verificationID,
					"forceResendingToken": b.resendTokens.Register(token),
				})
			},
			OnCodeAutoRetrievalTimeout: func(verificationID string) {
				emit(EventPhoneCodeAutoRetrievalTimeout, map[string]any{
					"verificationId": verificationID,
				})
			},
		})
}
