package bridge

import (
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	"github.com/otiai10/authbridge/internal/channel"
	"github.com/otiai10/authbridge/internal/identity"
)

// Local text codes
const (
	textCodeListenerNotFound = "LISTENER_NOT_FOUND"
	textCodeMissingArgument  = "MISSING_ARGUMENT"
	textCodeInvalidArgument  = "INVALID_ARGUMENT"
)

func listenerNotFound(id int) *goerrors.Error {
	return goerrors.New(fmt.Sprintf("Listener with identifier '%d' not found.", id), goerrors.CategoryNotFound).
		WithTextCode(textCodeListenerNotFound).
		WithMetadata(map[string]any{"id": id})
}

func missingArgument(name string) *goerrors.Error {
	return goerrors.New(fmt.Sprintf("Missing argument '%s'.", name), goerrors.CategoryBadInput).
		WithTextCode(textCodeMissingArgument).
		WithMetadata(map[string]any{"argument": name})
}

func invalidArgument(name string, cause error) *goerrors.Error {
	return goerrors.Wrap(cause, goerrors.CategoryBadInput, fmt.Sprintf("Invalid argument '%s': %v", name, cause)).
		WithTextCode(textCodeInvalidArgument)
}

// replyError answers with an exception carrying the error's message
func replyError(result channel.Result, err error) {
	result.Error(channel.ErrorCodeException, identity.Message(err), nil)
}

// replyUser answers with the user projection or the error
func replyUser(result channel.Result, user *identity.User, err error) {
	if err != nil {
		replyError(result, err)
		return
	}
	result.Success(mapFromUser(user))
}

// replyNull answers null or the error
func replyNull(result channel.Result, err error) {
	if err != nil {
		replyError(result, err)
		return
	}
	result.Success(nil)
}
