package app

import (
	"fmt"

	"webinfinitygen/internal/apperr"
)

var (
	ErrInvalidInput      = fmt.Errorf("%w: invalid input", apperr.ErrInvalidArgument)
	ErrUsernameExists    = fmt.Errorf("%w: username already exists", apperr.ErrConflict)
	ErrEmailExists       = fmt.Errorf("%w: email already exists", apperr.ErrConflict)
	ErrInvalidCredential = fmt.Errorf("%w: invalid email or password", apperr.ErrUnauthorized)
	ErrAccountNotFound   = fmt.Errorf("%w: account not found", apperr.ErrNotFound)
	ErrChatExists        = fmt.Errorf("%w: chat id already exists", apperr.ErrConflict)
	ErrChatNotFound      = fmt.Errorf("%w: chat session not found", apperr.ErrNotFound)
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{apperr.ErrInvalidArgument}, args...)...)
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", apperr.ErrStorageUnavailable, err)
}
