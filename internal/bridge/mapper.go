package bridge

import (
	"github.com/otiai10/authbridge/internal/identity"
)

// mapFromUserInfo projects the fields shared by users and provider entries.
// Optional fields are present only when set.
func mapFromUserInfo(info identity.UserInfo) map[string]any {
	m := map[string]any{
		"providerId": info.ProviderID,
		"uid":        info.UID,
	}
	if info.DisplayName != "" {
		m["displayName"] = info.DisplayName
	}
	if info.PhotoURL != "" {
		m["photoUrl"] = info.PhotoURL
	}
	if info.Email != "" {
		m["email"] = info.Email
	}
	if info.PhoneNumber != "" {
		m["phoneNumber"] = info.PhoneNumber
	}
	return m
}

// mapFromUser projects a user for the wire. It returns nil for no user.
// The phone provider entry is left out of providerData; the phone number is
// already on the user itself.
func mapFromUser(user *identity.User) map[string]any {
	if user == nil {
		return nil
	}

	providerData := make([]map[string]any, 0, len(user.ProviderData))
	for _, info := range user.ProviderData {
		if info.ProviderID == identity.ProviderPhone {
			continue
		}
		providerData = append(providerData, mapFromUserInfo(info))
	}

	m := mapFromUserInfo(user.UserInfo)
	m["isAnonymous"] = user.Anonymous
	m["isEmailVerified"] = user.EmailVerified
	m["providerData"] = providerData
	return m
}
