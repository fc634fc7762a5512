package session

import (
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/helixir/venue-search-service/internal/domain"
)

// DefaultIdleTTL is how long an untouched session is kept.
const DefaultIdleTTL = 2 * time.Hour

// Store keeps sessions in memory by ID. Every successful Get extends a
// session's lifetime; sessions idle for longer than the TTL are gone.
// Expired entries are swept when a session is added or the store is counted.
type Store struct {
	sessions *ttlcache.Cache[string, *Session]
}

// NewStore creates an empty store. A non-positive ttl selects DefaultIdleTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	return &Store{
		sessions: ttlcache.New[string, *Session](
			ttlcache.WithTTL[string, *Session](ttl),
		),
	}
}

// Put adds a session and evicts expired ones.
func (st *Store) Put(s *Session) {
	st.sessions.DeleteExpired()
	st.sessions.Set(s.ID, s, ttlcache.DefaultTTL)
}

// Get returns the session with the given ID and marks it as used.
func (st *Store) Get(id string) (*Session, error) {
	item := st.sessions.Get(id)
	if item == nil {
		return nil, domain.NewNotFoundError("session", id)
	}
	return item.Value(), nil
}

// Delete removes a session. Unknown or expired IDs return a NotFoundError.
func (st *Store) Delete(id string) error {
	if st.sessions.Get(id, ttlcache.WithDisableTouchOnHit[string, *Session]()) == nil {
		return domain.NewNotFoundError("session", id)
	}
	st.sessions.Delete(id)
	return nil
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.sessions.DeleteExpired()
	return st.sessions.Len()
}
