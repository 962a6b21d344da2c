package core

import (
	"book-portal/internal/core/model"
	"context"
)

// View is a mounted paginated page: URL state plus the page it fetched.
type View[T any] struct {
	Binder  *QueryBinder
	Fetcher *Fetcher[T]
}

func NewView[T any](binder *QueryBinder, fetcher *Fetcher[T]) *View[T] {
	return &View[T]{Binder: binder, Fetcher: fetcher}
}

// Refresh fetches whatever the URL currently says. A page past the end is
// clamped by navigating to page 1 and fetching that.
func (v *View[T]) Refresh(ctx context.Context) FetchState[T] {
	q := v.Binder.Read()
	st := v.Fetcher.Load(ctx, q)
	if st.Err == nil && st.OutOfRange && st.Query.Equal(q) && q.Page != 1 {
		v.Binder.SetPage(1)
		st = v.Fetcher.Load(ctx, v.Binder.Read())
	}
	return st
}

// SetQuery is the setter half of the view's query-state pair.
func (v *View[T]) SetQuery(ctx context.Context, q model.PageQuery) FetchState[T] {
	v.Binder.Write(q)
	return v.Refresh(ctx)
}

func (v *View[T]) SetFilter(ctx context.Context, key, value string) FetchState[T] {
	v.Binder.SetFilter(key, value)
	return v.Refresh(ctx)
}

func (v *View[T]) SetPage(ctx context.Context, page int) FetchState[T] {
	v.Binder.SetPage(page)
	return v.Refresh(ctx)
}

func (v *View[T]) Query() model.PageQuery { return v.Binder.Read() }

func (v *View[T]) State() FetchState[T] { return v.Fetcher.State() }

func (v *View[T]) Retry(ctx context.Context) FetchState[T] { return v.Fetcher.Retry(ctx) }

func (v *View[T]) Mount() { v.Fetcher.Mount() }

func (v *View[T]) Unmount() { v.Fetcher.Unmount() }
