package core

import (
	"book-portal/internal/core/model"
	"cmp"
	"context"
	"log/slog"
	"sync"
)

// CommitFunc performs one mutation on the server and returns the owner's
// resulting flag set.
type CommitFunc[E cmp.Ordered] func(ctx context.Context, credential string, m model.Mutation[E]) ([]E, error)

// FlagCoordinator applies flag toggles locally first, then reconciles with the
// server: the server's returned set replaces the local one, a failure restores
// the flag as it was before the toggle.
type FlagCoordinator[E cmp.Ordered] struct {
	mu      sync.Mutex
	commit  CommitFunc[E]
	session *SessionStore
	log     *slog.Logger
	sets    map[string]model.FlagSet[E]
	subs    []func(model.FlagSet[E])
}

func NewFlagCoordinator[E cmp.Ordered](commit CommitFunc[E], session *SessionStore, log *slog.Logger) *FlagCoordinator[E] {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &FlagCoordinator[E]{commit: commit, session: session, log: log, sets: make(map[string]model.FlagSet[E])}
}

// Seed records a set fetched from the server.
func (c *FlagCoordinator[E]) Seed(set model.FlagSet[E]) {
	c.mu.Lock()
	c.sets[set.Owner] = set
	c.mu.Unlock()
}

func (c *FlagCoordinator[E]) Current(owner string) model.FlagSet[E] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current(owner)
}

// Observe registers fn for every change of any owner's set, optimistic or
// confirmed. Views use it to patch their loaded page.
func (c *FlagCoordinator[E]) Observe(fn func(model.FlagSet[E])) {
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

// Apply runs one mutation. Calls are never batched; when responses for the
// same owner arrive out of order the last one to arrive wins.
func (c *FlagCoordinator[E]) Apply(ctx context.Context, m model.Mutation[E]) (model.FlagSet[E], error) {
	cred, err := c.session.Credential()
	if err != nil {
		c.session.HandleAuthorityFailure(ctx)
		return c.Current(m.Owner), err
	}

	c.mu.Lock()
	had := c.current(m.Owner).Has(m.Flag)
	optimistic := c.current(m.Owner).Apply(m)
	c.sets[m.Owner] = optimistic
	c.mu.Unlock()
	c.notify(optimistic)

	values, err := c.commit(ctx, cred, m)

	c.mu.Lock()
	var settled model.FlagSet[E]
	if err != nil {
		settled = c.current(m.Owner).With(m.Flag, had)
	} else {
		settled = model.NewFlagSet(m.Owner, values...)
	}
	c.sets[m.Owner] = settled
	c.mu.Unlock()
	c.notify(settled)

	if err != nil {
		kind := model.KindOf(err)
		if kind == model.KindAuthority {
			c.session.HandleAuthorityFailure(ctx)
		}
		c.log.Warn("mutation rolled back", "owner", m.Owner, "flag", m.Flag, "op", m.Op.String(), "kind", kind.String())
		return settled, err
	}
	return settled, nil
}

func (c *FlagCoordinator[E]) current(owner string) model.FlagSet[E] {
	if s, ok := c.sets[owner]; ok {
		return s
	}
	return model.NewFlagSet[E](owner)
}

func (c *FlagCoordinator[E]) notify(set model.FlagSet[E]) {
	c.mu.Lock()
	subs := append([]func(model.FlagSet[E]){}, c.subs...)
	c.mu.Unlock()
	for _, fn := range subs {
		fn(set)
	}
}
