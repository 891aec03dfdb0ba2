package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Namespaces. Each category of entry lives under its own prefix so it can be
// cleared without touching the others.
const (
	PrefixGeneration = "generation:"
	PrefixDocuments  = "docs:"
	PrefixContexts   = "contexts:"
)

// Default TTLs per namespace.
const (
	DefaultGenerationTTL = time.Hour
	DefaultDocumentsTTL  = 2 * time.Hour
	DefaultContextsTTL   = 2 * time.Hour
)

// Namespaces lists every known prefix.
var Namespaces = []string{PrefixGeneration, PrefixDocuments, PrefixContexts}

// HashKey returns prefix followed by the hex sha256 of parts. Parts are
// separated by a NUL byte so ("ab","c") and ("a","bc") hash differently.
func HashKey(prefix string, parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return NormalizePrefix(prefix) + hex.EncodeToString(h.Sum(nil))
}

// NormalizePrefix appends the ':' separator when missing, so "docs" and "docs:" are the same namespace.
func NormalizePrefix(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, ":") {
		return prefix
	}
	return prefix + ":"
}

// NamespaceOf returns the namespace prefix of key, or "" when it has none.
func NamespaceOf(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i+1]
	}
	return ""
}
