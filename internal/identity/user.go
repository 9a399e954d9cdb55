package identity

import (
	"time"
)

// Provider IDs reported in UserInfo.ProviderID
const (
	ProviderFirebase = "firebase"
	ProviderPassword = "password"
	ProviderGoogle   = "google.com"
	ProviderFacebook = "facebook.com"
	ProviderTwitter  = "twitter.com"
	ProviderPhone    = "phone"
)

// UserInfo is the profile data a single identity provider holds for a user
type UserInfo struct {
	ProviderID  string
	UID         string
	DisplayName string
	PhotoURL    string
	Email       string
	PhoneNumber string
}

// User is a snapshot of the signed-in user.
// The embedded UserInfo carries the Firebase-level profile (ProviderID is
// always "firebase"); ProviderData lists the linked providers.
type User struct {
	UserInfo
	Anonymous     bool
	EmailVerified bool
	ProviderData  []UserInfo
}

// Copy creates a deep copy of the User to prevent mutation
func (u *User) Copy() *User {
	if u == nil {
		return nil
	}
	copied := *u
	if u.ProviderData != nil {
		copied.ProviderData = make([]UserInfo, len(u.ProviderData))
		copy(copied.ProviderData, u.ProviderData)
	}
	return &copied
}

// Tokens is the token material the backend returns after a sign-in, a link
// or a refresh.
type Tokens struct {
	LocalID      string
	IDToken      string
	RefreshToken string
	ExpiresIn    time.Duration
}

// ProfileChangeRequest describes a profile update.
// A nil field is left untouched; an empty string removes the attribute.
type ProfileChangeRequest struct {
	DisplayName *string
	PhotoURL    *string
}

// IsEmpty reports whether the request changes nothing
func (r ProfileChangeRequest) IsEmpty() bool {
	return r.DisplayName == nil && r.PhotoURL == nil
}
