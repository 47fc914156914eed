package handlers

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"a55pay-sdk/orchestrator"
	"a55pay-sdk/page"
)

const (
	cookieName   = "a55pay-session"
	pageIDKey    = "page_id"
	cookieMaxAge = 12 * 60 * 60
)

// SessionFactory builds the page session for a browser.
type SessionFactory func(env page.Environment) *orchestrator.Session

type pageEntry struct {
	session  *orchestrator.Session
	lastSeen time.Time
}

// SessionManager binds a browser (through a gorilla session cookie) to its
// page session: headless document, message bus and orchestrator.
type SessionManager struct {
	cookies *sessions.CookieStore
	factory SessionFactory
	idleTTL time.Duration
	now     func() time.Time

	mu    sync.Mutex
	pages map[string]*pageEntry
}

func NewSessionManager(secret string, secure bool, idleTTL time.Duration, factory SessionFactory) *SessionManager {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   cookieMaxAge,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if secure {
		// o SDK roda dentro da página do lojista
		store.Options.SameSite = http.SameSiteNoneMode
	}
	return &SessionManager{
		cookies: store,
		factory: factory,
		idleTTL: idleTTL,
		now:     time.Now,
		pages:   map[string]*pageEntry{},
	}
}

// Resolve returns the page session of the browser behind r, creating the
// cookie and the page when needed. env, when given, refreshes the browser
// environment reported by the shim.
func (m *SessionManager) Resolve(w http.ResponseWriter, r *http.Request, env *page.Environment) (string, *orchestrator.Session, error) {
	cookie, err := m.cookies.Get(r, cookieName)
	if err != nil {
		// cookie inválido: começa uma sessão nova
		log.Printf("Error getting session cookie: %v", err)
	}

	id, _ := cookie.Values[pageIDKey].(string)
	if id == "" {
		id = uuid.New().String()
		cookie.Values[pageIDKey] = id
		if err := cookie.Save(r, w); err != nil {
			return "", nil, fmt.Errorf("error saving session cookie: %v", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.pages[id]
	if !ok {
		var initial page.Environment
		if env != nil {
			initial = *env
		}
		entry = &pageEntry{session: m.factory(initial)}
		m.pages[id] = entry
		log.Printf("[Session: %s] Page session created", id)
	} else if env != nil {
		entry.session.Doc.SetEnvironment(*env)
	}
	entry.lastSeen = m.now()
	return id, entry.session, nil
}

// ByID returns a live page session.
func (m *SessionManager) ByID(id string) (*orchestrator.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.pages[id]
	if !ok {
		return nil, false
	}
	entry.lastSeen = m.now()
	return entry.session, true
}

// Sweep shuts down the pages idle for longer than the idle TTL and returns
// how many were removed.
func (m *SessionManager) Sweep() int {
	m.mu.Lock()
	var idle []*orchestrator.Session
	cutoff := m.now().Add(-m.idleTTL)
	for id, entry := range m.pages {
		if entry.lastSeen.Before(cutoff) {
			idle = append(idle, entry.session)
			delete(m.pages, id)
			log.Printf("[Session: %s] Page session expired", id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	return len(idle)
}

// Count returns the number of live pages.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pages)
}

// Close shuts every page down.
func (m *SessionManager) Close() {
	m.mu.Lock()
	pages := m.pages
	m.pages = map[string]*pageEntry{}
	m.mu.Unlock()

	for _, entry := range pages {
		entry.session.Close()
	}
}
