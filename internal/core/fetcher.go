package core

import (
	"book-portal/internal/core/model"
	"context"
	"log/slog"
	"slices"
	"sync"
)

type FetchStatus int

const (
	StatusIdle FetchStatus = iota
	StatusLoading
	StatusSettled
)

func (s FetchStatus) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSettled:
		return "settled"
	default:
		return "idle"
	}
}

// PageSource is one paginated endpoint of the remote service.
type PageSource[T any] func(ctx context.Context, credential string, q model.PageQuery) (model.PagedResult[T], error)

// FetchState is what a view renders: data, status and the last failure.
type FetchState[T any] struct {
	Query      model.PageQuery
	Data       *model.PagedResult[T] // nil until the first successful fetch
	Status     FetchStatus
	Err        error
	Kind       model.Kind
	OutOfRange bool
}

// Empty is true only for a settled, successful, empty page.
func (s FetchState[T]) Empty() bool {
	return s.Status == StatusSettled && s.Err == nil && s.Data != nil && len(s.Data.Items) == 0
}

type FetcherOption func(*fetcherConfig)

type fetcherConfig struct {
	public bool
	name   string
}

// WithPublicAccess lets the endpoint be fetched without a session. A present
// credential is still sent and still checked.
func WithPublicAccess() FetcherOption {
	return func(c *fetcherConfig) { c.public = true }
}

func WithName(name string) FetcherOption {
	return func(c *fetcherConfig) { c.name = name }
}

// Fetcher owns the PagedResult of one mounted view. Only the most recently
// requested query may commit its response.
type Fetcher[T any] struct {
	mu        sync.Mutex
	source    PageSource[T]
	session   *SessionStore
	log       *slog.Logger
	cfg       fetcherConfig
	gen       uint64
	state     FetchState[T]
	unmounted bool
}

func NewFetcher[T any](source PageSource[T], session *SessionStore, log *slog.Logger, opts ...FetcherOption) *Fetcher[T] {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	f := &Fetcher[T]{source: source, session: session, log: log}
	for _, o := range opts {
		o(&f.cfg)
	}
	if f.cfg.name != "" {
		f.log = f.log.With("view", f.cfg.name)
	}
	return f
}

func (f *Fetcher[T]) State() FetchState[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot()
}

// Load requests q and blocks until its response is applied or discarded.
// The returned state is the view's state afterwards, which belongs to a newer
// query if q was superseded meanwhile.
func (f *Fetcher[T]) Load(ctx context.Context, q model.PageQuery) FetchState[T] {
	f.mu.Lock()
	if f.unmounted {
		st := f.snapshot()
		f.mu.Unlock()
		st.Err = model.AuthorityError{Err: model.ErrUnmounted}
		st.Kind = model.KindAuthority
		return st
	}
	f.gen++
	gen := f.gen
	f.state.Query = q.Clone()
	f.state.Status = StatusLoading
	f.state.Err = nil
	f.state.Kind = model.KindNone
	f.state.OutOfRange = false
	f.mu.Unlock()

	cred, err := f.credential()
	var res model.PagedResult[T]
	if err == nil {
		res, err = f.source(ctx, cred, q)
	}
	return f.settle(ctx, gen, q, res, err)
}

// Retry re-issues the current query if its last attempt failed. A settled,
// successful page is returned as it is without a request.
func (f *Fetcher[T]) Retry(ctx context.Context) FetchState[T] {
	st := f.State()
	if st.Status == StatusSettled && st.Err == nil {
		return st
	}
	return f.Load(ctx, st.Query)
}

// Reload always re-fetches the current query.
func (f *Fetcher[T]) Reload(ctx context.Context) FetchState[T] {
	return f.Load(ctx, f.State().Query)
}

// Patch edits the current page in place, for optimistic updates.
func (f *Fetcher[T]) Patch(fn func(items []T) []T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Data == nil {
		return
	}
	data := *f.state.Data
	data.Items = fn(slices.Clone(data.Items))
	f.state.Data = &data
}

// Mount re-enables a view that was unmounted.
func (f *Fetcher[T]) Mount() {
	f.mu.Lock()
	f.unmounted = false
	f.mu.Unlock()
}

// Unmount discards the page and any response still in flight.
func (f *Fetcher[T]) Unmount() {
	f.mu.Lock()
	f.unmounted = true
	f.gen++
	f.state = FetchState[T]{Query: f.state.Query}
	f.mu.Unlock()
	f.log.Debug("view unmounted")
}

func (f *Fetcher[T]) credential() (string, error) {
	if f.session == nil {
		return "", nil
	}
	if _, ok := f.session.Get(); !ok && f.cfg.public {
		return "", nil
	}
	return f.session.Credential()
}

func (f *Fetcher[T]) settle(ctx context.Context, gen uint64, q model.PageQuery, res model.PagedResult[T], err error) FetchState[T] {
	kind := model.KindOf(err)
	if kind == model.KindAuthority && f.session != nil {
		// The credential is shared, so even a superseded request proves it dead.
		f.session.HandleAuthorityFailure(ctx)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen || f.unmounted {
		f.log.Debug("discarding stale response", "page", q.Page, "err", err)
		return f.snapshot()
	}

	f.state.Status = StatusSettled
	if err != nil {
		f.state.Err = err
		f.state.Kind = kind
		if kind.Retryable() {
			f.log.Warn("fetch failed", "page", q.Page, "kind", kind.String(), "err", err)
		}
		return f.snapshot()
	}
	if res.CurrentPage == 0 {
		res.CurrentPage = q.Page
	}
	f.state.Data = &res
	f.state.OutOfRange = res.OutOfRange()
	return f.snapshot()
}

func (f *Fetcher[T]) snapshot() FetchState[T] {
	st := f.state
	if st.Data != nil {
		data := *st.Data
		data.Items = slices.Clone(data.Items)
		st.Data = &data
	}
	st.Query = st.Query.Clone()
	return st
}
