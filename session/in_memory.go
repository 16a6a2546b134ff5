package session

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/nanuguru/Med-Procedure/core"
	"github.com/nanuguru/Med-Procedure/logging"
)

// Options configure an InMemoryStore.
type Options struct {
	// TTL is how long a session survives without updates. Zero keeps
	// sessions for the process lifetime.
	TTL time.Duration
	// CleanupInterval is how often expired sessions are purged.
	CleanupInterval time.Duration
	Logger          logging.Logger
}

type entry struct {
	mu sync.Mutex
	s  core.Session
}

// InMemoryStore is a volatile SessionStore backed by go-cache. Each session
// has its own mutex so updates to different sessions never contend, and
// every returned session is a clone.
type InMemoryStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{
		TTL:             time.Hour,
		CleanupInterval: 10 * time.Minute,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	c := cache.New(ttl, opts.CleanupInterval)
	logger := opts.Logger
	c.OnEvicted(func(id string, _ any) {
		logger.Debug("Session evicted", "session_id", id)
	})

	return &InMemoryStore{cache: c, ttl: ttl}
}

// Create stores a clone of s. It fails with InvalidState if the id exists.
func (m *InMemoryStore) Create(s core.Session) error {
	if s.ID == "" {
		return core.NewInvalidRequest("session id is required")
	}
	if err := m.cache.Add(s.ID, &entry{s: s.Clone()}, cache.DefaultExpiration); err != nil {
		return core.NewInvalidState("session %s already exists", s.ID)
	}
	return nil
}

// Get returns a clone of the session.
func (m *InMemoryStore) Get(id string) (core.Session, error) {
	e, err := m.lookup(id)
	if err != nil {
		return core.Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.Clone(), nil
}

// Update runs fn on a working copy under the session's lock and commits it
// only when fn succeeds. Committing refreshes the session's TTL.
func (m *InMemoryStore) Update(id string, fn func(s *core.Session) error) (core.Session, error) {
	e, err := m.lookup(id)
	if err != nil {
		return core.Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	work := e.s.Clone()
	if err := fn(&work); err != nil {
		return e.s.Clone(), err
	}
	work.Updated = time.Now()
	e.s = work
	m.cache.Set(id, e, cache.DefaultExpiration)
	return e.s.Clone(), nil
}

// Delete removes a session.
func (m *InMemoryStore) Delete(id string) {
	m.cache.Delete(id)
}

// Count returns the number of stored sessions, including expired ones not
// yet purged.
func (m *InMemoryStore) Count() int {
	return m.cache.ItemCount()
}

func (m *InMemoryStore) lookup(id string) (*entry, error) {
	v, ok := m.cache.Get(id)
	if !ok {
		return nil, core.NewNotFound("session %s not found", id)
	}
	return v.(*entry), nil
}
