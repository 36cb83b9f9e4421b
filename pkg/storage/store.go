// Package storage caches generated insight text so repeated requests for the
// same dataset and prompt do not call the language model again.
package storage

import (
	"context"
	"time"
)

// Entry is one cached response.
type Entry struct {
	// Key identifies the dataset and prompt the response was generated for.
	Key string `json:"key"`
	// Kind is the kind of request, e.g. "tips" or "ask".
	Kind      string    `json:"kind"`
	Lines     []string  `json:"lines"`
	CreatedAt time.Time `json:"created_at"`
}

// Cache stores entries by key.
type Cache interface {
	Put(ctx context.Context, entry Entry) error
	Get(ctx context.Context, key string) (Entry, bool, error)
}

// validKey reports whether key contains only characters safe for every
// backend: alphanumerics, hyphens, underscores and colons.
func validKey(key string) bool {
	if key == "" {
		return false
	}
	for _, c := range key {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '_' || c == ':') {
			return false
		}
	}
	return true
}
