package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/guttosm/trip-planner/internal/service/cache"
)

const defaultIdempotencyCapacity = 10000

// storedResponse is a completed response kept for replay.
type storedResponse struct {
	fingerprint string
	status      int
	header      http.Header
	body        []byte
}

// idempotencyStore keeps replayable responses in a bounded LRU with TTL and
// tracks slots whose first request is still running.
type idempotencyStore struct {
	responses *cache.TTL[*storedResponse]
	mu        sync.Mutex
	inFlight  map[string]struct{}
}

func newIdempotencyStore(capacity int, ttl time.Duration) *idempotencyStore {
	if capacity <= 0 {
		capacity = defaultIdempotencyCapacity
	}
	if ttl <= 0 {
		ttl = IdempotencyKeyTTL
	}
	return &idempotencyStore{
		responses: cache.NewTTL[*storedResponse](capacity, ttl),
		inFlight:  make(map[string]struct{}),
	}
}

func (s *idempotencyStore) get(slot string) (*storedResponse, bool) {
	return s.responses.Get(slot)
}

func (s *idempotencyStore) put(slot string, resp *storedResponse) {
	s.responses.Set(slot, resp)
}

// begin marks slot as running. It returns false while another request
// holds it.
func (s *idempotencyStore) begin(slot string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[slot]; busy {
		return false
	}
	s.inFlight[slot] = struct{}{}
	return true
}

func (s *idempotencyStore) end(slot string) {
	s.mu.Lock()
	delete(s.inFlight, slot)
	s.mu.Unlock()
}

// Stop releases the store's cleanup goroutine.
func (s *idempotencyStore) Stop() {
	s.responses.Stop()
}
