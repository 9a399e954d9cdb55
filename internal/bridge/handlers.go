package bridge

import (
	"context"

	"github.com/otiai10/authbridge/internal/channel"
	"github.com/otiai10/authbridge/internal/identity"
)

// emailAndPassword reads the email and password arguments
func emailAndPassword(args arguments) (string, string, error) {
	email, err := args.requireString("email")
	if err != nil {
		return "", "", err
	}
	password, err := args.requireString("password")
	if err != nil {
		return "", "", err
	}
	return email, password, nil
}

// googleCredential reads idToken and accessToken; either may be absent, not both
func googleCredential(args arguments) (identity.Credential, error) {
	idToken, hasID, err := args.optionalString("idToken")
	if err != nil {
		return nil, err
	}
	accessToken, hasAccess, err := args.optionalString("accessToken")
	if err != nil {
		return nil, err
	}
	if !hasID && !hasAccess {
		return nil, missingArgument("idToken")
	}
	return identity.GoogleCredential(idToken, accessToken), nil
}

func (b *Bridge) handleSignInAnonymously(ctx context.Context, _ arguments, result channel.Result) {
	user, err := b.auth.SignInAnonymously(ctx)
	replyUser(result, user, err)
}

func (b *Bridge) handleCreateUserWithEmailAndPassword(ctx context.Context, args arguments, result channel.Result) {
	email, password, err := emailAndPassword(args)
	if err != nil {
		replyError(result, err)
		return
	}
	user, err := b.auth.CreateUserWithEmailAndPassword(ctx, email, password)
	replyUser(result, user, err)
}

func (b *Bridge) handleSignInWithEmailAndPassword(ctx context.Context, args arguments, result channel.Result) {
	email, password, err := emailAndPassword(args)
	if err != nil {
		replyError(result, err)
		return
	}
	user, err := b.auth.SignInWithEmailAndPassword(ctx, email, password)
	replyUser(result, user, err)
}

func (b *Bridge) handleFetchProvidersForEmail(ctx context.Context, args arguments, result channel.Result) {
	email, err := args.requireString("email")
	if err != nil {
		replyError(result, err)
		return
	}
	providers, err := b.auth.FetchProvidersForEmail(ctx, email)
	if err != nil {
		replyError(result, err)
		return
	}
	result.Success(providers)
}

func (b *Bridge) handleSendPasswordResetEmail(ctx context.Context, args arguments, result channel.Result) {
	email, err := args.requireString("email")
	if err != nil {
		replyError(result, err)
		return
	}
	replyNull(result, b.auth.SendPasswordResetEmail(ctx, email))
}

func (b *Bridge) handleSendEmailVerification(ctx context.Context, _ arguments, result channel.Result) {
	replyNull(result, b.auth.SendEmailVerification(ctx))
}

func (b *Bridge) handleReload(ctx context.Context, _ arguments, result channel.Result) {
	replyNull(result, b.auth.Reload(ctx))
}

func (b *Bridge) handleSignInWithGoogle(ctx context.Context, args arguments, result channel.Result) {
	cred, err := googleCredential(args)
	if err != nil {
		replyError(result, err)
		return
	}
	user, err := b.auth.SignInWithCredential(ctx, cred)
	replyUser(result, user, err)
}

func (b *Bridge) handleSignInWithCustomToken(ctx context.Context, args arguments, result channel.Result) {
	token, err := args.requireString("token")
	if err != nil {
		replyError(result, err)
		return
	}
	user, err := b.auth.SignInWithCustomToken(ctx, token)
	replyUser(result, user, err)
}

func (b *Bridge) handleSignInWithFacebook(ctx context.Context, args arguments, result channel.Result) {
	accessToken, err := args.requireString("accessToken")
	if err != nil {
		replyError(result, err)
		return
	}
	user, err := b.auth.SignInWithCredential(ctx, identity.FacebookCredential(accessToken))
	replyUser(result, user, err)
}

func (b *Bridge) handleSignInWithTwitter(ctx context.Context, args arguments, result channel.Result) {
	authToken, err := args.requireString("authToken")
	if err != nil {
		replyError(result, err)
		return
	}
	authTokenSecret, err := args.requireString("authTokenSecret")
	if err != nil {
		replyError(result, err)
		return
	}
	user, err := b.auth.SignInWithCredential(ctx, identity.TwitterCredential(authToken, authTokenSecret))
	replyUser(result, user, err)
}

func (b *Bridge) handleSignOut(_ context.Context, _ arguments, result channel.Result) {
	b.auth.SignOut()
	result.Success(nil)
}

func (b *Bridge) handleGetIDToken(ctx context.Context, args arguments, result channel.Result) {
	refresh, err := args.boolOr("refresh", false)
	if err != nil {
		replyError(result, err)
		return
	}
	token, err := b.auth.GetIDToken(ctx, refresh)
	if err != nil {
		replyError(result, err)
		return
	}
	result.Success(token)
}

func (b *Bridge) handleLinkWithEmailAndPassword(ctx context.Context, args arguments, result channel.Result) {
	email, password, err := emailAndPassword(args)
	if err != nil {
		replyError(result, err)
		return
	}
	user, err := b.auth.LinkWithCredential(ctx, identity.EmailCredential(email, password))
	replyUser(result, user, err)
}

func (b *Bridge) handleLinkWithGoogleCredential(ctx context.Context, args arguments, result channel.Result) {
	cred, err := googleCredential(args)
	if err != nil {
		replyError(result, err)
		return
	}
	user, err := b.auth.LinkWithCredential(ctx, cred)
	replyUser(result, user, err)
}

func (b *Bridge) handleLinkWithFacebookCredential(ctx context.Context, args arguments, result channel.Result) {
	accessToken, err := args.requireString("accessToken")
	if err != nil {
		replyError(result, err)
		return
	}
	user, err := b.auth.LinkWithCredential(ctx, identity.FacebookCredential(accessToken))
	replyUser(result, user, err)
}

// handleUpdateProfile applies the keys present in the call. A key with a
// null value clears the attribute.
func (b *Bridge) handleUpdateProfile(ctx context.Context, args arguments, result channel.Result) {
	var req identity.ProfileChangeRequest

	if args.has("displayName") {
		name, _, err := args.optionalString("displayName")
		if err != nil {
			replyError(result, err)
			return
		}
		req.DisplayName = &name
	}

	if args.has("photoUrl") {
		photoURL, present, err := args.optionalString("photoUrl")
		if err != nil {
			replyError(result, err)
			return
		}
		if present && photoURL != "" {
			if err := b.validatePhotoURL(photoURL); err != nil {
				replyError(result, invalidArgument("photoUrl", err))
				return
			}
		}
		req.PhotoURL = &photoURL
	}

	replyNull(result, b.auth.UpdateProfile(ctx, req))
}

func (b *Bridge) handleSignInWithPhoneNumber(ctx context.Context, args arguments, result channel.Result) {
	verificationID, err := args.requireString("verificationId")
	if err != nil {
		replyError(result, err)
		return
	}
	smsCode, err := args.requireString("smsCode")
	if err != nil {
		replyError(result, err)
		return
	}
	user, err := b.auth.SignInWithCredential(ctx, identity.PhoneCredential(verificationID, smsCode))
	replyUser(result, user, err)
}
