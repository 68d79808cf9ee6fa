package web

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"tagscan/internal/document"
	"tagscan/internal/scan"
)

const sessionCookie = "tagscan_session"

// session is the per-browser UI state. Handlers hold mu for the whole action.
type session struct {
	mu sync.Mutex

	id       string
	doc      *document.Document
	page     int
	result   *scan.Result
	errMsg   string
	notice   string
	lastSeen time.Time
}

// reset replaces the document and clears everything derived from the old one.
func (s *session) reset(doc *document.Document) {
	s.doc = doc
	s.page = 1
	s.result = nil
	s.errMsg = ""
	s.notice = ""
}

// selectPage clamps n to the document's page range.
func (s *session) selectPage(n int) {
	count := s.doc.PageCount()
	if count == 0 {
		s.page = 0
		return
	}
	s.page = min(max(n, 1), count)
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	now      func() time.Time
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// get returns the caller's session, creating one and setting the cookie when
// the request carries none or an expired one.
func (st *sessionStore) get(w http.ResponseWriter, r *http.Request) *session {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	st.evictLocked(now)

	if c, err := r.Cookie(sessionCookie); err == nil {
		if s, ok := st.sessions[c.Value]; ok {
			s.lastSeen = now
			return s
		}
	}

	s := &session{id: uuid.NewString(), lastSeen: now}
	st.sessions[s.id] = s
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    s.id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return s
}

func (st *sessionStore) evictLocked(now time.Time) {
	for id, s := range st.sessions {
		if now.Sub(s.lastSeen) > st.ttl {
			delete(st.sessions, id)
		}
	}
}

func (st *sessionStore) len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
