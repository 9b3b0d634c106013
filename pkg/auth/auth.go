// Package auth decides whether a credential may reach the dispatcher.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"strings"
)

// Authenticator validates an opaque credential.
type Authenticator interface {
	Valid(credential string) bool
}

// Func adapts a plain function to Authenticator.
type Func func(credential string) bool

func (f Func) Valid(credential string) bool { return f(credential) }

// StaticKeys is a fixed allow-list of API keys.
// Keys are kept as SHA-256 digests and compared in constant time.
type StaticKeys struct {
	digests [][sha256.Size]byte
}

// NewStaticKeys builds an allow-list. Blank keys are ignored; others are stored verbatim.
func NewStaticKeys(keys ...string) *StaticKeys {
	s := &StaticKeys{}
	for _, k := range keys {
		if strings.TrimSpace(k) == "" {
			continue
		}
		s.digests = append(s.digests, Hash(k))
	}
	return s
}

// Hash returns the digest stored for key. Keys are opaque and hashed as given.
func Hash(key string) [sha256.Size]byte {
	return sha256.Sum256([]byte(key))
}

// Valid reports whether credential is in the allow-list.
// An empty credential is never valid.
func (s *StaticKeys) Valid(credential string) bool {
	if s == nil || strings.TrimSpace(credential) == "" {
		return false
	}
	d := Hash(credential)
	ok := 0
	for i := range s.digests {
		ok |= subtle.ConstantTimeCompare(d[:], s.digests[i][:])
	}
	return ok == 1
}

// Len returns the number of keys in the allow-list.
func (s *StaticKeys) Len() int {
	if s == nil {
		return 0
	}
	return len(s.digests)
}

// Any accepts a credential valid for at least one of the authenticators.
func Any(authenticators ...Authenticator) Authenticator {
	return Func(func(credential string) bool {
		for _, a := range authenticators {
			if a != nil && a.Valid(credential) {
				return true
			}
		}
		return false
	})
}
