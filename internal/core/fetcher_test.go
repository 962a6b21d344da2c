//go:build unit

package core

import (
	"book-portal/internal/core/model"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pages serves totalPages pages of one item each, the item being the page number.
func pages(totalPages int, calls *atomic.Int32) PageSource[int] {
	return func(_ context.Context, _ string, q model.PageQuery) (model.PagedResult[int], error) {
		calls.Add(1)
		var items []int
		if q.Page <= totalPages {
			items = []int{q.Page}
		}
		return model.PagedResult[int]{Items: items, TotalPages: totalPages, TotalItems: totalPages, CurrentPage: q.Page}, nil
	}
}

func TestFetcher_LoadSettles(t *testing.T) {
	s, _ := newSession(t, "MEMBER")
	var calls atomic.Int32
	f := NewFetcher(pages(3, &calls), s, nil)

	st := f.Load(context.Background(), model.PageQuery{Page: 2, PageSize: 1})
	require.NoError(t, st.Err)
	assert.Equal(t, StatusSettled, st.Status)
	assert.Equal(t, []int{2}, st.Data.Items)
	assert.False(t, st.OutOfRange)
	assert.False(t, st.Empty())
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetcher_StaleResponseIsDiscarded(t *testing.T) {
	s, _ := newSession(t, "MEMBER")
	started := make(chan int, 2)
	release := make(chan struct{})
	source := func(_ context.Context, _ string, q model.PageQuery) (model.PagedResult[int], error) {
		started <- q.Page
		if q.Page == 1 {
			<-release
		}
		return model.PagedResult[int]{Items: []int{q.Page}, TotalPages: 5, CurrentPage: q.Page}, nil
	}
	f := NewFetcher(source, s, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	var first FetchState[int]
	go func() {
		defer wg.Done()
		first = f.Load(context.Background(), model.PageQuery{Page: 1, PageSize: 1})
	}()
	require.Equal(t, 1, <-started)

	second := f.Load(context.Background(), model.PageQuery{Page: 2, PageSize: 1})
	require.Equal(t, 2, <-started)
	assert.Equal(t, []int{2}, second.Data.Items)

	// page 1 answers last and must not overwrite page 2
	close(release)
	wg.Wait()
	assert.Equal(t, []int{2}, first.Data.Items)
	assert.Equal(t, []int{2}, f.State().Data.Items)
	assert.Equal(t, 2, f.State().Query.Page)
}

func TestFetcher_ErrorKeepsPreviousPage(t *testing.T) {
	s, _ := newSession(t, "MEMBER")
	fail := false
	source := func(_ context.Context, _ string, q model.PageQuery) (model.PagedResult[int], error) {
		if fail {
			return model.PagedResult[int]{}, model.NetworkError{Err: errors.New("connection refused")}
		}
		return model.PagedResult[int]{Items: []int{7}, TotalPages: 1, CurrentPage: 1}, nil
	}
	f := NewFetcher(source, s, nil)
	q := model.PageQuery{Page: 1, PageSize: 10}
	require.NoError(t, f.Load(context.Background(), q).Err)

	fail = true
	st := f.Reload(context.Background())
	assert.Equal(t, model.KindNetwork, st.Kind)
	assert.True(t, model.IsNetwork(st.Err))
	require.NotNil(t, st.Data)
	assert.Equal(t, []int{7}, st.Data.Items)
	assert.False(t, st.Empty())

	fail = false
	st = f.Retry(context.Background())
	assert.NoError(t, st.Err)
	assert.Equal(t, model.KindNone, st.Kind)
}

func TestFetcher_FirstFetchError(t *testing.T) {
	s, _ := newSession(t, "MEMBER")
	source := func(context.Context, string, model.PageQuery) (model.PagedResult[int], error) {
		return model.PagedResult[int]{}, model.ServerError{Status: 500}
	}
	st := NewFetcher(source, s, nil).Load(context.Background(), model.PageQuery{Page: 1, PageSize: 10})
	assert.Nil(t, st.Data)
	assert.Equal(t, model.KindServer, st.Kind)
	// an error is never shown as an empty page
	assert.False(t, st.Empty())
}

func TestFetcher_EmptyPage(t *testing.T) {
	s, _ := newSession(t, "MEMBER")
	var calls atomic.Int32
	st := NewFetcher(pages(0, &calls), s, nil).Load(context.Background(), model.PageQuery{Page: 1, PageSize: 10})
	assert.True(t, st.Empty())
	assert.False(t, st.OutOfRange)
}

func TestFetcher_AuthorityFailureClearsSessionOnce(t *testing.T) {
	s, nav := newSession(t, "MEMBER")
	source := func(context.Context, string, model.PageQuery) (model.PagedResult[int], error) {
		return model.PagedResult[int]{}, model.AuthorityError{Status: 401}
	}
	a := NewFetcher(source, s, nil)
	b := NewFetcher(source, s, nil)

	var wg sync.WaitGroup
	for _, f := range []*Fetcher[int]{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Load(context.Background(), model.PageQuery{Page: 1, PageSize: 10})
		}()
	}
	wg.Wait()

	assert.Equal(t, model.RoleAnonymous, s.Role())
	assert.Equal(t, 1, nav.count(RouteLogin))
	assert.Equal(t, model.KindAuthority, a.State().Kind)
}

func TestFetcher_MalformedCredentialNeverReachesServer(t *testing.T) {
	s, nav := newSession(t, "")
	require.NoError(t, s.Set(context.Background(), model.Session{Credential: "garbage", Role: model.RoleMember}))

	var calls atomic.Int32
	st := NewFetcher(pages(3, &calls), s, nil).Load(context.Background(), model.PageQuery{Page: 1, PageSize: 10})
	assert.Zero(t, calls.Load())
	assert.True(t, model.IsAuthority(st.Err))
	assert.Equal(t, []string{RouteLogin}, nav.all())
	_, ok := s.Get()
	assert.False(t, ok)
}

func TestFetcher_PublicAccess(t *testing.T) {
	s, _ := newSession(t, "")
	var creds []string
	source := func(_ context.Context, cred string, q model.PageQuery) (model.PagedResult[int], error) {
		creds = append(creds, cred)
		return model.PagedResult[int]{CurrentPage: 1}, nil
	}
	q := model.PageQuery{Page: 1, PageSize: 10}

	st := NewFetcher(source, s, nil, WithPublicAccess()).Load(context.Background(), q)
	require.NoError(t, st.Err)
	assert.Equal(t, []string{""}, creds)

	st = NewFetcher(source, s, nil).Load(context.Background(), q)
	assert.ErrorIs(t, st.Err, model.ErrNoSession)
	assert.Len(t, creds, 1)

	tok := token(t, "u1", "MEMBER")
	_, err := s.Login(context.Background(), tok)
	require.NoError(t, err)
	NewFetcher(source, s, nil, WithPublicAccess()).Load(context.Background(), q)
	assert.Equal(t, []string{"", tok}, creds)
}

func TestFetcher_UnmountDiscardsInFlight(t *testing.T) {
	s, _ := newSession(t, "MEMBER")
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	source := func(context.Context, string, model.PageQuery) (model.PagedResult[int], error) {
		calls.Add(1)
		close(started)
		<-release
		return model.PagedResult[int]{Items: []int{1}, TotalPages: 1, CurrentPage: 1}, nil
	}
	f := NewFetcher(source, s, nil)
	q := model.PageQuery{Page: 1, PageSize: 10}

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.Load(context.Background(), q)
	}()
	<-started
	f.Unmount()
	close(release)
	<-done

	assert.Nil(t, f.State().Data)
	st := f.Load(context.Background(), q)
	assert.ErrorIs(t, st.Err, model.ErrUnmounted)
	assert.Equal(t, model.KindAuthority, st.Kind)
	assert.Equal(t, model.KindAuthority, model.KindOf(st.Err))
	assert.False(t, st.Kind.Retryable())
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetcher_RetryOnlyAfterFailure(t *testing.T) {
	s, _ := newSession(t, "MEMBER")
	var calls atomic.Int32
	f := NewFetcher(pages(2, &calls), s, nil)
	require.NoError(t, f.Load(context.Background(), model.PageQuery{Page: 1, PageSize: 10}).Err)

	st := f.Retry(context.Background())
	assert.NoError(t, st.Err)
	assert.Equal(t, int32(1), calls.Load())

	st = f.Reload(context.Background())
	assert.NoError(t, st.Err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetcher_Patch(t *testing.T) {
	s, _ := newSession(t, "MEMBER")
	var calls atomic.Int32
	f := NewFetcher(pages(2, &calls), s, nil)
	f.Patch(func(items []int) []int { return append(items, 9) })
	assert.Nil(t, f.State().Data)

	f.Load(context.Background(), model.PageQuery{Page: 1, PageSize: 1})
	f.Patch(func(items []int) []int { return append(items, 9) })
	assert.Equal(t, []int{1, 9}, f.State().Data.Items)
}

func TestView_OutOfRangeClampsToFirstPage(t *testing.T) {
	s, _ := newSession(t, "MEMBER")
	nav := &navRecorder{}
	var calls atomic.Int32
	v := NewView(newBookBinder(nav), NewFetcher(pages(2, &calls), s, nil))

	st := v.SetPage(context.Background(), 5)
	require.NoError(t, st.Err)
	assert.Equal(t, 1, v.Query().Page)
	assert.Equal(t, []int{1}, st.Data.Items)
	assert.False(t, st.OutOfRange)
	assert.Equal(t, []string{"/books?page=5", "/books"}, nav.all())
	assert.Equal(t, int32(2), calls.Load())
}

func TestView_FilterChangeRefetchesFirstPage(t *testing.T) {
	s, _ := newSession(t, "MEMBER")
	var seen []model.PageQuery
	source := func(_ context.Context, _ string, q model.PageQuery) (model.PagedResult[int], error) {
		seen = append(seen, q)
		return model.PagedResult[int]{Items: []int{q.Page}, TotalPages: 9, CurrentPage: q.Page}, nil
	}
	v := NewView(newBookBinder(nil), NewFetcher(source, s, nil))
	v.SetPage(context.Background(), 3)
	v.SetFilter(context.Background(), "author", "borges")

	require.Len(t, seen, 2)
	assert.Equal(t, 3, seen[0].Page)
	assert.Equal(t, 1, seen[1].Page)
	assert.Equal(t, "borges", seen[1].Filter("author"))
}
