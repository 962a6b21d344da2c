package web

import (
	"book-portal/internal/core"
	"sync"
)

// Navigator collects navigation requested by the controllers while a request
// is being handled; the handler turns it into a redirect. The portal serves a
// single user, so one pending slot is enough.
type Navigator struct {
	mu      sync.Mutex
	pending string
}

func NewNavigator() *Navigator {
	return &Navigator{}
}

// Navigate records to. A pending trip to the login route is never replaced:
// losing the session outranks any page change.
func (n *Navigator) Navigate(to string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pending == core.RouteLogin {
		return
	}
	n.pending = to
}

func (n *Navigator) Take() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	to := n.pending
	n.pending = ""
	return to, to != ""
}
