package main

import (
	"errors"
	"fmt"
)

// Engine failure kinds. Every error leaving the engine wraps exactly one of
// these sentinels, so callers dispatch with errors.Is instead of parsing
// strings.
var (
	errInvalidInput      = errors.New("invalid_input")
	errNotEligible       = errors.New("not_eligible")
	errInvalidTransition = errors.New("invalid_transition")
	errUnavailable       = errors.New("unavailable")
	errNotFound          = errors.New("not_found")
)

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errInvalidInput, fmt.Sprintf(format, args...))
}

func notEligible(reason string) error {
	return fmt.Errorf("%w: %s", errNotEligible, reason)
}

func invalidTransition(reason string) error {
	return fmt.Errorf("%w: %s", errInvalidTransition, reason)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", errUnavailable, err)
}
