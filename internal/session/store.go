// Package session keeps one search controller per browser so the last results stay
// visible across submits.
package session

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"property-search/internal/metrics"
	"property-search/internal/search"
)

// DefaultMaxSessions bounds the store when no size is configured.
const DefaultMaxSessions = 10000

type entry struct {
	controller *search.Controller
	lastSeen   time.Time
}

// Store maps session ids to search controllers. Idle sessions expire after ttl and
// the least recently seen session is evicted once maxSessions is reached.
type Store struct {
	ttl        time.Duration
	cookieName string
	newCtrl    func() *search.Controller

	mu       sync.Mutex
	sessions *lru.Cache[string, *entry]
	now      func() time.Time
}

func NewStore(cookieName string, ttl time.Duration, maxSessions int, newController func() *search.Controller) (*Store, error) {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	cache, err := lru.New[string, *entry](maxSessions)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	return &Store{
		ttl:        ttl,
		cookieName: cookieName,
		newCtrl:    newController,
		sessions:   cache,
		now:        time.Now,
	}, nil
}

// Get returns the controller for id, creating a fresh session when id is unknown or expired.
// The returned id is the one to hand back to the browser.
func (s *Store) Get(id string) (string, *search.Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ctrl := s.lookup(id); ctrl != nil {
		return id, ctrl
	}

	id = uuid.New().String()
	e := &entry{controller: s.newCtrl(), lastSeen: s.now()}
	s.sessions.Add(id, e)
	metrics.ActiveSessions.Set(float64(s.sessions.Len()))
	return id, e.controller
}

// lookup refreshes and returns a live session. Expired ones are dropped. s.mu must be held.
func (s *Store) lookup(id string) *search.Controller {
	if id == "" {
		return nil
	}
	e, ok := s.sessions.Get(id)
	if !ok {
		return nil
	}
	now := s.now()
	if now.Sub(e.lastSeen) >= s.ttl {
		s.sessions.Remove(id)
		return nil
	}
	e.lastSeen = now
	return e.controller
}

// Controller resolves the session of the current request, creating one when needed,
// and refreshes its cookie.
func (s *Store) Controller(c *gin.Context) *search.Controller {
	id, _ := c.Cookie(s.cookieName)
	id, ctrl := s.Get(id)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cookieName, id, int(s.ttl.Seconds()), "/", "", false, true)
	return ctrl
}

// Lookup returns the controller of the request's live session, or nil. It never
// creates a session.
func (s *Store) Lookup(c *gin.Context) *search.Controller {
	id, _ := c.Cookie(s.cookieName)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(id)
}

// Sweep drops expired sessions and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for _, id := range s.sessions.Keys() {
		e, ok := s.sessions.Peek(id)
		if ok && now.Sub(e.lastSeen) >= s.ttl {
			s.sessions.Remove(id)
			removed++
		}
	}
	metrics.ActiveSessions.Set(float64(s.sessions.Len()))
	return removed
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.sessions.Len()
}
