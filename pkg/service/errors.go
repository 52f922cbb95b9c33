package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrConversationNotFound = fmt.Errorf("conversation %w", ErrNotFound)
	ErrMessageNotFound      = fmt.Errorf("message %w", ErrNotFound)
	ErrModelNotFound        = fmt.Errorf("model %w", ErrNotFound)
	ErrShortcutNotFound     = fmt.Errorf("shortcut %w", ErrNotFound)
	ErrNoModelAvailable     = errors.New("no enabled model available")
	ErrPersistence          = errors.New("persistence failure")
	ErrBlacklisted          = errors.New("url is blacklisted")
	ErrInvalidConfig        = errors.New("invalid configuration")
	ErrEmptyResponse        = errors.New("model returned an empty response")
)

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
