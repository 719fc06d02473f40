package api

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/arrowlane/fairthrottle/core"
)

// defaultTicketTTL bounds how long a Decide caller has to report an
// outcome before its ticket is discarded. It mirrors the teacher's
// store.RedisStore default TTL pattern, sized for "the downstream call
// happens shortly after the decision", not for a long-lived session.
const defaultTicketTTL = 30 * time.Second

// ticketStore holds ThrottleResults an allowed POST /decide call issued a
// ticket for, so a later POST /decide/{token}/outcome can still invoke
// OnSuccess/OnFailure on them. It's the same idle-eviction shape as the
// teacher's pkg/signalfence InMemoryStore (map + mutex + TTL sweep), but
// keyed by a random ticket rather than a tenant key, and a ticket is
// consumed (not refreshed) the moment it's redeemed.
type ticketStore struct {
	mu      sync.Mutex
	entries map[string]ticketEntry
	ttl     time.Duration
}

type ticketEntry struct {
	result    core.ThrottleResult
	expiresAt time.Time
}

func newTicketStore(ttl time.Duration) *ticketStore {
	return &ticketStore{entries: make(map[string]ticketEntry), ttl: ttl}
}

// issue stores result under a freshly generated ticket and returns it.
func (s *ticketStore) issue(result core.ThrottleResult) (string, error) {
	token, err := newTicketToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.entries[token] = ticketEntry{result: result, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return token, nil
}

// take removes and returns the ThrottleResult for token, if it exists and
// hasn't expired. A ticket is redeemable exactly once: like
// OnSuccess/OnFailure themselves, reporting an outcome is a one-shot
// commitment, so take always deletes the entry whether or not it was
// still live.
func (s *ticketStore) take(token string) (core.ThrottleResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[token]
	if !ok {
		return nil, false
	}
	delete(s.entries, token)
	if time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.result, true
}

// cleanup removes expired, never-redeemed tickets (e.g. a caller that
// decided against the downstream call and never reports an outcome).
// Returns the number removed.
func (s *ticketStore) cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for token, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, token)
			removed++
		}
	}
	return removed
}

// startBackgroundCleanup runs cleanup every interval until the returned
// stop function is called.
func (s *ticketStore) startBackgroundCleanup(interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				s.cleanup()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}

// newTicketToken returns a random hex token suitable for use in a URL
// path segment.
func newTicketToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
