package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/TSV-Bitzfeld/Zeltlager-2025/internal/domain/registration"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const sessionTokenContextKey contextKey = "session_token"

// Flash is one user-facing message queued on the session, shown once on the
// next rendered page.
type Flash struct {
	Category string // "success", "warning", "danger", "error"
	Text     string
}

// Session carries per-visitor state: the admin flag, queued flash messages
// and the sanitized submission cached for the confirmation page.
type Session struct {
	AdminLoggedIn bool
	Submission    *registration.Submission
	Flashes       []Flash
	CreatedAt     time.Time
}

// SessionStore is an in-memory session store.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]Session)}
}

const sessionTTL = 24 * time.Hour

// Get retrieves a session by token.
// POST: Returns the session if it exists and has not expired
func (ss *SessionStore) Get(token string) (Session, bool) {
	ss.mu.RLock()
	session, ok := ss.sessions[token]
	ss.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	if time.Since(session.CreatedAt) > sessionTTL {
		ss.Delete(token)
		return Session{}, false
	}
	return session, true
}

// Put stores or replaces the session for a token.
func (ss *SessionStore) Put(token string, session Session) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.sessions[token] = session
}

// Delete removes a session by token.
func (ss *SessionStore) Delete(token string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, token)
}

// AddFlash queues a message on the session.
func (ss *SessionStore) AddFlash(token, category, text string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	session := ss.sessions[token]
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	session.Flashes = append(session.Flashes, Flash{Category: category, Text: text})
	ss.sessions[token] = session
}

// TakeFlashes returns the queued messages and clears them.
// POST: A second call without new flashes returns an empty slice
func (ss *SessionStore) TakeFlashes(token string) []Flash {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	session, ok := ss.sessions[token]
	if !ok || len(session.Flashes) == 0 {
		return nil
	}
	flashes := session.Flashes
	session.Flashes = nil
	ss.sessions[token] = session
	return flashes
}

const sessionCookieName = "zeltlager_session"

// SecureCookies controls the Secure flag on session cookies. Set to true in
// production behind TLS.
var SecureCookies = false

// Sessions returns middleware that attaches a session token to every
// request, creating the session and cookie on first contact.
func Sessions(sessions *SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
				if _, ok := sessions.Get(cookie.Value); ok {
					token = cookie.Value
				}
			}
			if token == "" {
				var err error
				token, err = generateToken()
				if err != nil {
					http.Error(w, "internal server error", http.StatusInternalServerError)
					return
				}
				sessions.Put(token, Session{CreatedAt: time.Now()})
				setSessionCookie(w, token)
			}
			ctx := context.WithValue(r.Context(), sessionTokenContextKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromContext extracts the session token from the request context.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(sessionTokenContextKey).(string)
	return token, ok
}

// ContextWithToken returns a context with the given session token set.
// Intended for use in tests.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, sessionTokenContextKey, token)
}

// RequireAdmin returns middleware that blocks requests without an
// authenticated admin session.
func RequireAdmin(sessions *SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := TokenFromContext(r.Context())
			if ok {
				if session, found := sessions.Get(token); found && session.AdminLoggedIn {
					next.ServeHTTP(w, r)
					return
				}
				sessions.AddFlash(token, "danger", "Bitte melden Sie sich als Administrator an.")
			}
			http.Redirect(w, r, "/admin-login", http.StatusSeeOther)
		})
	}
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   SecureCookies,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   int(sessionTTL / time.Second),
	})
}

// Rotate invalidates the session identified by old and issues a fresh empty
// session with a new cookie. Used on logout so the previous token cannot be
// replayed.
//
// POST: the old token no longer resolves; the returned token holds an empty
// session.
func (s *SessionStore) Rotate(w http.ResponseWriter, old string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	s.Delete(old)
	s.Put(token, Session{CreatedAt: time.Now()})
	setSessionCookie(w, token)
	return token, nil
}

// ClearSessionCookie removes the session cookie.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   SecureCookies,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   -1,
	})
}

func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
