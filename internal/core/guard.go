package core

import (
	"book-portal/internal/core/model"
	"log/slog"
	"sync"
)

// Capability is what a guarded view requires of the session.
type Capability int

const (
	RequireSession Capability = iota + 1 // any authenticated role
	RequireElevated                      // administrators only
)

func (c Capability) String() string {
	switch c {
	case RequireSession:
		return "session"
	case RequireElevated:
		return "elevated"
	default:
		return "unknown"
	}
}

func (c Capability) Allows(role model.Role) bool {
	switch c {
	case RequireSession:
		return role != model.RoleAnonymous
	case RequireElevated:
		return role == model.RoleAdmin
	default:
		return false
	}
}

type Decision struct {
	Allowed  bool
	Redirect string
}

// Check decides for a role. Without a session every capability falls back to
// the login route; an authenticated user lacking elevation goes to /forbidden.
func Check(c Capability, role model.Role) Decision {
	if c.Allows(role) {
		return Decision{Allowed: true}
	}
	if role == model.RoleAnonymous {
		return Decision{Redirect: RouteLogin}
	}
	return Decision{Redirect: RouteForbidden}
}

// Unmounter is a protected view that can be torn down when access is lost.
type Unmounter interface {
	Unmount()
}

type Guard struct {
	capability Capability
	session    *SessionStore
	log        *slog.Logger
}

func NewGuard(session *SessionStore, capability Capability, log *slog.Logger) *Guard {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Guard{capability: capability, session: session, log: log}
}

func (g *Guard) Capability() Capability { return g.capability }

// Evaluate runs on every render; it never caches a previous decision.
func (g *Guard) Evaluate() Decision {
	return Check(g.capability, g.session.Role())
}

// Protect unmounts views as soon as the session stops satisfying the
// capability, so they cannot issue more requests with a stale credential.
func (g *Guard) Protect(views ...Unmounter) (release func()) {
	var once sync.Once
	unsubscribe := g.session.Subscribe(func(sess model.Session, ok bool) {
		role := model.RoleAnonymous
		if ok {
			role = sess.Role
		}
		if g.capability.Allows(role) {
			return
		}
		g.log.Debug("access lost, unmounting views", "capability", g.capability.String())
		for _, v := range views {
			v.Unmount()
		}
	})
	return func() { once.Do(unsubscribe) }
}
