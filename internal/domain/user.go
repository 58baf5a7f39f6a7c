// Package domain contains entities and their invariants, no I/O.
package domain

import (
	"errors"
	"strings"
)

const (
	MaxIdentityLen = 64
	MaxNameLen     = 64
)

var (
	ErrIdentityEmpty   = errors.New("identity empty")
	ErrIdentityTooLong = errors.New("identity too long")
	ErrNameTooLong     = errors.New("name too long")
)

// Identity is the caller-chosen participant identity, unique per room.
type Identity string

// NewIdentity trims and validates a raw identity.
func NewIdentity(raw string) (Identity, error) {
	id := strings.TrimSpace(raw)
	if len(id) == 0 {
		return "", ErrIdentityEmpty
	}
	if len(id) > MaxIdentityLen {
		return "", ErrIdentityTooLong
	}
	return Identity(id), nil
}

// DisplayName falls back to the identity when name is empty.
func DisplayName(name string, id Identity) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return string(id), nil
	}
	if len(name) > MaxNameLen {
		return "", ErrNameTooLong
	}
	return name, nil
}
