// Package state issues and consumes the single-use OAuth state values that
// tie a provider callback to the login that started it.
package state

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jrsteele09/memauth/kvstore"
	"github.com/rs/zerolog/log"
)

const (
	keyPrefix   = "oauth_state:"
	stateBytes  = 32 // 256 bits
	storedValue = "1"

	DefaultTTL = 10 * time.Minute
)

// Service issues states and consumes them exactly once.
type Service struct {
	store kvstore.Store
	ttl   time.Duration
}

func NewService(store kvstore.Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{store: store, ttl: ttl}
}

func key(state string) string {
	return keyPrefix + state
}

// Issue generates a fresh state and records it for the configured TTL.
func (s *Service) Issue(ctx context.Context) (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("[state Issue] failed to generate random bytes: %w", err)
	}
	state := hex.EncodeToString(b)

	if err := s.store.Set(ctx, key(state), storedValue, s.ttl); err != nil {
		return "", fmt.Errorf("[state Issue] store state: %w", err)
	}
	return state, nil
}

// Consume reports whether state was issued, unexpired and not yet used, and
// removes it in the same step. Unknown, expired and reused states all return
// false. The delete is the check, so concurrent consumers of one state cannot
// both succeed.
func (s *Service) Consume(ctx context.Context, state string) (bool, error) {
	if state == "" {
		return false, nil
	}

	existed, err := s.store.Delete(ctx, key(state))
	if err != nil {
		return false, fmt.Errorf("[state Consume] delete state: %w", err)
	}
	if !existed {
		log.Debug().Msg("oauth state missing, expired or already used")
	}
	return existed, nil
}
