// Package kvstore is the TTL key-value store that holds OAuth states and
// refresh sessions.
package kvstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/memauth/internal/errors"
)

// ErrUnavailable is returned when the backing store cannot be reached or
// times out. It matches apperrors.ErrUpstreamAuth.
var ErrUnavailable = fmt.Errorf("%w: session store unavailable", apperrors.ErrUpstreamAuth)

// Store is a key-value store with per-key expiry. Single key operations are
// atomic.
type Store interface {
	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Replace stores value only if key already exists.
	Replace(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// DeleteMatching removes every key matching the glob pattern and returns
	// how many were deleted. Enumeration and deletion are not one atomic step.
	DeleteMatching(ctx context.Context, pattern string) (int, error)

	Ping(ctx context.Context) error
}

// EscapePattern escapes glob metacharacters so s only ever matches itself
// inside a pattern.
func EscapePattern(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
