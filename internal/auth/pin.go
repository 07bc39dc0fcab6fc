// Package auth checks the broadcaster's admin PIN.
package auth

import (
	"crypto/subtle"
	"errors"
)

var ErrInvalidPIN = errors.New("invalid pin")

// Verifier gates create-room. Implementations must not leak timing about how
// much of a wrong credential matched.
type Verifier interface {
	Verify(pin string) error
}

// PINVerifier compares against a single shared PIN.
type PINVerifier struct {
	Expected string
}

func (v PINVerifier) Verify(pin string) error {
	if pin == "" || v.Expected == "" {
		return ErrInvalidPIN
	}
	if subtle.ConstantTimeCompare([]byte(pin), []byte(v.Expected)) != 1 {
		return ErrInvalidPIN
	}
	return nil
}
