// Package cache provides the small key-value cache a wallet uses to show a
// balance before its first network round trip.
package cache

import "errors"

// ErrNotFound is returned by Get when a key is absent.
var ErrNotFound = errors.New("key not found")

// Cache is the collaborator the wallet reads and writes.
type Cache interface {
	// Get returns the stored value, or ErrNotFound.
	Get(key string) (string, error)
	Set(key, value string) error
}

// Store is a Cache that owns a backend which can be released.
type Store interface {
	Cache
	Delete(key string) error
	Close() error
}

// Nop is a Cache that stores nothing. Deserialized wallets start with it.
type Nop struct{}

// Get always reports ErrNotFound.
func (Nop) Get(string) (string, error) { return "", ErrNotFound }

// Set discards the value.
func (Nop) Set(string, string) error { return nil }
