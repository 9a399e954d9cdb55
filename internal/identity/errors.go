package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Backend reasons, as reported by the Identity Toolkit in error.message
const (
	ReasonEmailExists            = "EMAIL_EXISTS"
	ReasonEmailNotFound          = "EMAIL_NOT_FOUND"
	ReasonInvalidPassword        = "INVALID_PASSWORD"
	ReasonInvalidEmail           = "INVALID_EMAIL"
	ReasonInvalidLoginCredential = "INVALID_LOGIN_CREDENTIALS"
	ReasonWeakPassword           = "WEAK_PASSWORD"
	ReasonUserDisabled           = "USER_DISABLED"
	ReasonUserNotFound           = "USER_NOT_FOUND"
	ReasonOperationNotAllowed    = "OPERATION_NOT_ALLOWED"
	ReasonTooManyAttempts        = "TOO_MANY_ATTEMPTS_TRY_LATER"
	ReasonQuotaExceeded          = "QUOTA_EXCEEDED"
	ReasonInvalidCustomToken     = "INVALID_CUSTOM_TOKEN"
	ReasonCredentialMismatch     = "CREDENTIAL_MISMATCH"
	ReasonInvalidIdpResponse     = "INVALID_IDP_RESPONSE"
	ReasonInvalidIDToken         = "INVALID_ID_TOKEN"
	ReasonTokenExpired           = "TOKEN_EXPIRED"
	ReasonInvalidRefreshToken    = "INVALID_REFRESH_TOKEN"
	ReasonCredentialTooOld       = "CREDENTIAL_TOO_OLD_LOGIN_AGAIN"
	ReasonFederatedIDLinked      = "FEDERATED_USER_ID_ALREADY_LINKED"
	ReasonProviderAlreadyLinked  = "PROVIDER_ALREADY_LINKED"
	ReasonInvalidPhoneNumber     = "INVALID_PHONE_NUMBER"
	ReasonMissingPhoneNumber     = "MISSING_PHONE_NUMBER"
	ReasonInvalidCode            = "INVALID_CODE"
	ReasonMissingCode            = "MISSING_CODE"
	ReasonInvalidSessionInfo     = "INVALID_SESSION_INFO"
	ReasonMissingSessionInfo     = "MISSING_SESSION_INFO"
	ReasonSessionExpired         = "SESSION_EXPIRED"
	ReasonConfigurationNotFound  = "CONFIGURATION_NOT_FOUND"
	ReasonProjectNotFound        = "PROJECT_NOT_FOUND"

	// Local reasons
	ReasonNoCurrentUser   = "NO_CURRENT_USER"
	ReasonAPINotAvailable = "API_NOT_AVAILABLE"
	ReasonNetworkError    = "NETWORK_ERROR"
	ReasonInternalError   = "INTERNAL_ERROR"
)

// reasonMessages holds the caller-facing message for each known reason
var reasonMessages = map[string]string{
	ReasonEmailExists:            "The email address is already in use by another account.",
	ReasonEmailNotFound:          "There is no user record corresponding to this identifier. The user may have been deleted.",
	ReasonInvalidPassword:        "The password is invalid or the user does not have a password.",
	ReasonInvalidEmail:           "The email address is badly formatted.",
	ReasonInvalidLoginCredential: "The supplied auth credential is incorrect, malformed or has expired.",
	ReasonWeakPassword:           "The given password is invalid. [ Password should be at least 6 characters ]",
	ReasonUserDisabled:           "The user account has been disabled by an administrator.",
	ReasonUserNotFound:           "There is no user record corresponding to this identifier. The user may have been deleted.",
	ReasonOperationNotAllowed:    "This operation is not allowed. You must enable this service in the console.",
	ReasonTooManyAttempts:        "We have blocked all requests from this device due to unusual activity. Try again later.",
	ReasonQuotaExceeded:          "The sms quota for this project has been exceeded.",
	ReasonInvalidCustomToken:     "The custom token format is incorrect. Please check the documentation.",
	ReasonCredentialMismatch:     "The custom token corresponds to a different audience.",
	ReasonInvalidIdpResponse:     "The supplied auth credential is malformed or has expired.",
	ReasonInvalidIDToken:         "The user's credential is no longer valid. The user must sign in again.",
	ReasonTokenExpired:           "The user's credential is no longer valid. The user must sign in again.",
	ReasonInvalidRefreshToken:    "The user's credential is no longer valid. The user must sign in again.",
	ReasonCredentialTooOld:       "This operation is sensitive and requires recent authentication. Log in again before retrying this request.",
	ReasonFederatedIDLinked:      "This credential is already associated with a different user account.",
	ReasonProviderAlreadyLinked:  "User has already been linked to the given provider.",
	ReasonInvalidPhoneNumber:     "The format of the phone number provided is incorrect. Please enter the phone number in a format that can be parsed into E.164 format.",
	ReasonMissingPhoneNumber:     "To send verification codes, provide a phone number for the recipient.",
	ReasonInvalidCode:            "The sms verification code used to create the phone auth credential is invalid. Please resend the verification code sms and be sure use the verification code provided by the user.",
	ReasonMissingCode:            "The phone auth credential was created with an empty sms verification code.",
	ReasonInvalidSessionInfo:     "The verification ID used to create the phone auth credential is invalid.",
	ReasonMissingSessionInfo:     "The phone auth credential was created with an empty verification ID.",
	ReasonSessionExpired:         "The sms code has expired. Please re-send the verification code to try again.",
	ReasonConfigurationNotFound:  "The identity provider configuration is not found for this project.",
	ReasonProjectNotFound:        "The identity provider project was not found.",
	ReasonNoCurrentUser:          "No user currently signed in.",
}

// invalidCredentialReasons are rejections of the credential itself
var invalidCredentialReasons = map[string]struct{}{
	ReasonInvalidPassword:        {},
	ReasonInvalidEmail:           {},
	ReasonInvalidLoginCredential: {},
	ReasonInvalidCustomToken:     {},
	ReasonCredentialMismatch:     {},
	ReasonInvalidIdpResponse:     {},
	ReasonInvalidPhoneNumber:     {},
	ReasonMissingPhoneNumber:     {},
	ReasonInvalidCode:            {},
	ReasonMissingCode:            {},
	ReasonInvalidSessionInfo:     {},
	ReasonMissingSessionInfo:     {},
	ReasonSessionExpired:         {},
}

// rateLimitReasons are throttling rejections
var rateLimitReasons = map[string]struct{}{
	ReasonTooManyAttempts: {},
	ReasonQuotaExceeded:   {},
}

// unavailableReasons mean the backend API cannot serve this project at all
var unavailableReasons = map[string]struct{}{
	ReasonConfigurationNotFound: {},
	ReasonProjectNotFound:       {},
}

// parseReason splits a backend message such as
// "WEAK_PASSWORD : Password should be at least 6 characters" into its reason
// and the optional detail.
func parseReason(message string) (reason, detail string) {
	reason, detail, _ = strings.Cut(message, ":")
	return strings.TrimSpace(reason), strings.TrimSpace(detail)
}

// messageFor returns the caller-facing message for reason, falling back to
// the backend's detail or the reason itself.
func messageFor(reason, detail string) string {
	if msg, ok := reasonMessages[reason]; ok {
		return msg
	}
	if detail != "" {
		return detail
	}
	if reason != "" {
		return "An internal error has occurred. [ " + reason + " ]"
	}
	return "An internal error has occurred."
}

// backendError builds the error for a rejection reported by the backend
func backendError(status int, rawMessage string, source error) *goerrors.Error {
	reason, detail := parseReason(rawMessage)

	category := goerrors.CategoryAuth
	if _, ok := rateLimitReasons[reason]; ok || status == http.StatusTooManyRequests {
		category = goerrors.CategoryRateLimit
	}
	textCode := reason
	if _, ok := unavailableReasons[reason]; ok || status == http.StatusServiceUnavailable {
		category = goerrors.CategoryExternal
		textCode = ReasonAPINotAvailable
	}

	err := goerrors.New(messageFor(reason, detail), category).
		WithCode(status).
		WithTextCode(textCode)
	if reason != textCode {
		err.WithMetadata(map[string]any{"reason": reason})
	}
	err.Source = source
	return err
}

// networkError wraps a failure to reach the backend
func networkError(source error) *goerrors.Error {
	if errors.Is(source, context.Canceled) || errors.Is(source, context.DeadlineExceeded) {
		return goerrors.Wrap(source, goerrors.CategoryExternal, "The operation was cancelled.").
			WithTextCode(ReasonNetworkError)
	}
	return goerrors.Wrap(source, goerrors.CategoryExternal,
		"A network error (such as timeout, interrupted connection or unreachable host) has occurred.").
		WithTextCode(ReasonNetworkError)
}

// internalError reports a response the SDK could not make sense of
func internalError(message string) *goerrors.Error {
	return goerrors.New("An internal error has occurred. [ "+message+" ]", goerrors.CategoryInternal).
		WithTextCode(ReasonInternalError)
}

// noCurrentUser is returned by operations that act on the signed-in user
func noCurrentUser() *goerrors.Error {
	return goerrors.New(reasonMessages[ReasonNoCurrentUser], goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(ReasonNoCurrentUser)
}

// Reason returns the backend or local reason carried by err, or "".
func Reason(err error) string {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return ""
	}
	return rich.TextCode
}

// Message returns the caller-facing message of err.
// SDK errors yield their message verbatim; other errors their Error() text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.Message
	}
	return err.Error()
}

// IsNoCurrentUser reports whether err was caused by a missing signed-in user
func IsNoCurrentUser(err error) bool {
	return Reason(err) == ReasonNoCurrentUser
}

// IsInvalidCredential reports whether the backend rejected the credential
func IsInvalidCredential(err error) bool {
	_, ok := invalidCredentialReasons[Reason(err)]
	return ok
}

// IsQuotaExceeded reports whether the backend throttled the request
func IsQuotaExceeded(err error) bool {
	return goerrors.IsCategory(err, goerrors.CategoryRateLimit)
}

// IsAPINotAvailable reports whether the backend API is unusable for this project
func IsAPINotAvailable(err error) bool {
	return Reason(err) == ReasonAPINotAvailable
}

// IsAuthError reports whether err is any authentication error reported by
// the backend or raised by the session.
func IsAuthError(err error) bool {
	return goerrors.IsCategory(err, goerrors.CategoryAuth)
}
