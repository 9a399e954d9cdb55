// Package identity is a client-side Firebase Authentication SDK.
//
// A Client holds the process-wide pieces (the Identity Toolkit backend, the
// ID token claims decoder and the phone auth provider). Each channel
// connection gets its own Auth session from Client.NewAuth: the session holds
// the signed-in user and its tokens, and notifies auth-state listeners when
// the user signs in or out.
//
// Credentials are validated by the backend, never locally. Sessions live in
// memory only.
//
// Example usage:
//
//	client, err := identity.NewClient(ctx, identity.ClientConfig{
//	    APIKey:    os.Getenv("FIREBASE_API_KEY"),
//	    ProjectID: "my-project",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	auth := client.NewAuth()
//	user, err := auth.SignInWithEmailAndPassword(ctx, "a@b.com", "secret123")
package identity
