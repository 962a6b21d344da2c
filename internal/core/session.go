package core

import (
	"book-portal/internal/core/model"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RouteLogin     = "/login"
	RouteForbidden = "/forbidden"
	RouteHome      = "/books"
)

// CredentialStore persists the bearer credential between runs.
type CredentialStore interface {
	Load(ctx context.Context) (string, error) // "" when nothing is stored
	Save(ctx context.Context, credential string) error
	Clear(ctx context.Context) error
}

// Navigator is the host's navigation mechanism (history push, no reload).
type Navigator interface {
	Navigate(to string)
}

type NavigatorFunc func(to string)

func (f NavigatorFunc) Navigate(to string) { f(to) }

// ValidateCredential checks the token shape: three dot-separated non-empty segments.
func ValidateCredential(credential string) error {
	parts := strings.Split(credential, ".")
	if len(parts) != 3 {
		return model.ErrMalformedCredential
	}
	for _, p := range parts {
		if p == "" {
			return model.ErrMalformedCredential
		}
	}
	return nil
}

// SessionFromCredential derives role and entity id from the token claims.
// The signature is not checked here; the remote service does that on every call.
func SessionFromCredential(credential string) (model.Session, error) {
	if err := ValidateCredential(credential); err != nil {
		return model.Session{}, err
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(credential, claims); err != nil {
		return model.Session{}, fmt.Errorf("%w: %v", model.ErrMalformedCredential, err)
	}
	sub, _ := claims.GetSubject()
	role, _ := claims["role"].(string)
	return model.Session{Credential: credential, Role: model.ParseRole(role), EntityID: sub}, nil
}

// SessionStore owns the current session and is its only writer.
type SessionStore struct {
	mu      sync.Mutex
	current *model.Session
	creds   CredentialStore
	nav     Navigator
	log     *slog.Logger
	subs    map[int]func(model.Session, bool)
	nextSub int
}

func NewSessionStore(creds CredentialStore, nav Navigator, log *slog.Logger) *SessionStore {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}
	return &SessionStore{creds: creds, nav: nav, log: log, subs: make(map[int]func(model.Session, bool))}
}

// Init restores a persisted credential. A stored credential that cannot be
// decoded is handled as an authority failure.
func (s *SessionStore) Init(ctx context.Context) error {
	if s.creds == nil {
		return nil
	}
	cred, err := s.creds.Load(ctx)
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}
	if cred == "" {
		return nil
	}
	sess, err := SessionFromCredential(cred)
	if err != nil {
		s.log.Warn("discarding stored credential", "err", err)
		if err := s.creds.Clear(ctx); err != nil {
			s.log.Error("clear stored credential", "err", err)
		}
		s.nav.Navigate(RouteLogin)
		return nil
	}
	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()
	s.log.Info("session restored", "role", sess.Role.String(), "entity", sess.EntityID)
	return nil
}

func (s *SessionStore) Get() (model.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return model.Session{}, false
	}
	return *s.current, true
}

func (s *SessionStore) Role() model.Role {
	sess, ok := s.Get()
	if !ok {
		return model.RoleAnonymous
	}
	return sess.Role
}

// Set replaces the session and persists its credential.
func (s *SessionStore) Set(ctx context.Context, sess model.Session) error {
	if s.creds != nil {
		if err := s.creds.Save(ctx, sess.Credential); err != nil {
			return fmt.Errorf("save credential: %w", err)
		}
	}
	s.mu.Lock()
	s.current = &sess
	subs := s.snapshotSubs()
	s.mu.Unlock()
	for _, fn := range subs {
		fn(sess, true)
	}
	return nil
}

// Login creates the session for a credential just issued by the server.
func (s *SessionStore) Login(ctx context.Context, credential string) (model.Session, error) {
	sess, err := SessionFromCredential(credential)
	if err != nil {
		return model.Session{}, model.AuthorityError{Err: err}
	}
	if err := s.Set(ctx, sess); err != nil {
		return model.Session{}, err
	}
	s.log.Info("session started", "role", sess.Role.String(), "entity", sess.EntityID)
	return sess, nil
}

// Clear drops the session. It reports whether there was one to drop, so
// repeated calls are no-ops.
func (s *SessionStore) Clear(ctx context.Context) bool {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return false
	}
	s.current = nil
	subs := s.snapshotSubs()
	s.mu.Unlock()

	if s.creds != nil {
		if err := s.creds.Clear(ctx); err != nil {
			s.log.Error("clear stored credential", "err", err)
		}
	}
	for _, fn := range subs {
		fn(model.Session{}, false)
	}
	return true
}

// Logout is the explicit teardown.
func (s *SessionStore) Logout(ctx context.Context) {
	if s.Clear(ctx) {
		s.log.Info("session closed")
		s.nav.Navigate(RouteLogin)
	}
}

func (s *SessionStore) IsAuthorityFailure(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

// HandleAuthorityFailure clears the session and sends the user to the login
// route. Safe to call from any number of failing requests: only the call that
// actually clears navigates.
func (s *SessionStore) HandleAuthorityFailure(ctx context.Context) {
	if s.Clear(ctx) {
		s.log.Warn("authority failure, session cleared")
		s.nav.Navigate(RouteLogin)
	}
}

// Credential returns the bearer credential for an outgoing request, checking
// its structure first.
func (s *SessionStore) Credential() (string, error) {
	sess, ok := s.Get()
	if !ok {
		return "", model.AuthorityError{Err: model.ErrNoSession}
	}
	if err := ValidateCredential(sess.Credential); err != nil {
		return "", model.AuthorityError{Err: err}
	}
	return sess.Credential, nil
}

// Subscribe registers fn for every session change; ok is false after a clear.
func (s *SessionStore) Subscribe(fn func(sess model.Session, ok bool)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *SessionStore) snapshotSubs() []func(model.Session, bool) {
	out := make([]func(model.Session, bool), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}
