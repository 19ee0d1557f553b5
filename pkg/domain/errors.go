package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors classify failures across stores, gateways and transports.
var (
	// ErrNotFound reports a missing record or species.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyFavorited reports a duplicate (user, species) favorite. It is a
	// benign outcome, not a failure.
	ErrAlreadyFavorited = errors.New("species already favorited")
	// ErrConflict reports any other uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrAccessDenied reports an owner-policy rejection by the store.
	ErrAccessDenied = errors.New("access denied by row policy")
)

// NotFoundError names the missing record.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is lets errors.Is(err, ErrNotFound) match.
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError rejects caller input before any store or network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConfigError reports a missing or malformed setting.
type ConfigError struct {
	Setting string
	Reason  string
}

func (e *ConfigError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("configuration error: %s is not configured", e.Setting)
	}
	return fmt.Sprintf("configuration error: %s %s", e.Setting, e.Reason)
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsConfig reports whether err is a *ConfigError.
func IsConfig(err error) bool {
	var c *ConfigError
	return errors.As(err, &c)
}
