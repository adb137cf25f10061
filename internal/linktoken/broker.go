// Package linktoken issues the one-time tokens that bridge a /link command
// invocation to the OAuth redirect Strava sends back out-of-band.
package linktoken

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// tokenBytes of entropy per token; base32 encodes this to 32 characters.
	tokenBytes = 20

	// maxPending bounds how many unconsumed tokens are held at once.
	maxPending = 1024

	// DefaultTTL is how long a minted token stays consumable.
	DefaultTTL = 10 * time.Minute
)

// Broker maps one-time link tokens to the Discord user that requested them.
// Tokens are one-shot: Consume removes the mapping. Unconsumed tokens
// expire after the configured TTL.
type Broker struct {
	mu      sync.Mutex
	pending *expirable.LRU[string, string]
}

// NewBroker creates a broker whose tokens expire after ttl. A zero or
// negative ttl falls back to DefaultTTL.
func NewBroker(ttl time.Duration) *Broker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Broker{
		pending: expirable.NewLRU[string, string](maxPending, nil, ttl),
	}
}

// Mint generates an unpredictable token and associates it with discordID.
func (b *Broker) Mint(discordID string) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate link token: %w", err)
	}
	token := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending.Add(token, discordID)
	return token, nil
}

// Consume performs an atomic read-and-remove. The second return is false
// when the token was never issued, already consumed, or has expired.
func (b *Broker) Consume(token string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	discordID, ok := b.pending.Get(token)
	if !ok {
		return "", false
	}
	b.pending.Remove(token)
	return discordID, true
}
