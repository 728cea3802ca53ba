package cache

import (
	"encoding/hex"
	"strings"

	"github.com/Klingon-tech/polywallet/pkg/crypto"
)

// namespaceLen is the number of hex characters kept from the namespace hash.
const namespaceLen = 16

// Namespaced wraps a Cache and prepends a fixed prefix to all keys. This
// isolates wallets (chain, asset, address) that share one backend.
type Namespaced struct {
	inner  Cache
	prefix string
}

// NewNamespaced creates a Namespaced cache whose prefix is derived from the
// given parts. The same parts always map to the same prefix.
func NewNamespaced(inner Cache, parts ...string) *Namespaced {
	return &Namespaced{inner: inner, prefix: Namespace(parts...) + ":"}
}

// Namespace returns the fixed-length identifier for a set of parts.
func Namespace(parts ...string) string {
	h := crypto.Hash([]byte(strings.ToLower(strings.Join(parts, "/"))))
	return hex.EncodeToString(h[:])[:namespaceLen]
}

// Get retrieves a value by key.
func (n *Namespaced) Get(key string) (string, error) {
	return n.inner.Get(n.prefix + key)
}

// Set stores a key-value pair.
func (n *Namespaced) Set(key, value string) error {
	return n.inner.Set(n.prefix+key, value)
}
