package bridge

import (
	"context"
	"log"
	"sync"

	"github.com/otiai10/authbridge/internal/channel"
	"github.com/otiai10/authbridge/internal/identity"
)

// EventAuthStateChanged is emitted to every auth-state subscription
const EventAuthStateChanged = "onAuthStateChanged"

// handleStartListeningAuthState subscribes to auth state and answers the
// subscription handle. Events carry {id, user?}.
func (b *Bridge) handleStartListeningAuthState(_ context.Context, _ arguments, result channel.Result) {
	var handle int
	registered := make(chan struct{})

	reg := b.auth.AddAuthStateListener(func(user *identity.User) {
		<-registered
		event := map[string]any{"id": handle}
		if user != nil {
			event["user"] = mapFromUser(user)
		}
		if err := b.sink.InvokeMethod(EventAuthStateChanged, event); err != nil {
			log.Printf("Failed to emit %s for listener %d: %v", EventAuthStateChanged, handle, err)
		}
	})
	handle = b.listeners.Register(reg)
	close(registered)

	result.Success(handle)
}

func (b *Bridge) handleStopListeningAuthState(_ context.Context, args arguments, result channel.Result) {
	id, err := args.requireInt("id")
	if err != nil {
		replyError(result, err)
		return
	}

	reg, ok := b.listeners.Remove(id)
	if !ok {
		replyError(result, listenerNotFound(id))
		return
	}
	reg.Remove()
	result.Success(nil)
}

// handleCurrentUser answers the state delivered by one auth-state callback
func (b *Bridge) handleCurrentUser(ctx context.Context, _ arguments, result channel.Result) {
	first := make(chan *identity.User, 1)
	var once sync.Once

	reg := b.auth.AddAuthStateListener(func(user *identity.User) {
		once.Do(func() { first <- user })
	})
	defer reg.Remove()

	select {
	case user := <-first:
		result.Success(mapFromUser(user))
	case <-ctx.Done():
		replyError(result, ctx.Err())
	}
}
