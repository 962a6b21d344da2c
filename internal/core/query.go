package core

import (
	"book-portal/internal/core/model"
	"net/url"
	"slices"
	"strconv"
	"sync"
)

const (
	paramPage = "page"
	paramSize = "size"

	MaxPageSize = 100
)

// QueryBinder maps a page's PageQuery to and from its URL query string. The
// URL is the only place page and filter state lives.
type QueryBinder struct {
	mu       sync.Mutex
	path     string
	pageSize int
	keys     []string
	defaults map[string]string
	raw      string
	nav      Navigator
}

type BinderOption func(*QueryBinder)

// WithFilterDefault makes value the implicit filter when key is absent.
func WithFilterDefault(key, value string) BinderOption {
	return func(b *QueryBinder) { b.defaults[key] = value }
}

func NewQueryBinder(path string, pageSize int, nav Navigator, filterKeys []string, opts ...BinderOption) *QueryBinder {
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = 20
	}
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}
	keys := slices.Clone(filterKeys)
	slices.Sort(keys)
	b := &QueryBinder{path: path, pageSize: pageSize, keys: keys, defaults: map[string]string{}, nav: nav}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *QueryBinder) Path() string { return b.path }

// Read parses the current URL. Missing or invalid values take their defaults.
func (b *QueryBinder) Read() model.PageQuery {
	b.mu.Lock()
	raw := b.raw
	b.mu.Unlock()
	return b.Parse(raw)
}

func (b *QueryBinder) Parse(rawQuery string) model.PageQuery {
	values, _ := url.ParseQuery(rawQuery)
	q := model.PageQuery{Page: 1, PageSize: b.pageSize, Filters: map[string]string{}}
	if n, err := strconv.Atoi(values.Get(paramPage)); err == nil && n >= 1 {
		q.Page = n
	}
	if n, err := strconv.Atoi(values.Get(paramSize)); err == nil && n >= 1 && n <= MaxPageSize {
		q.PageSize = n
	}
	for _, k := range b.keys {
		if v := values.Get(k); v != "" {
			q.Filters[k] = v
		}
	}
	return b.Normalize(q)
}

// Normalize fills absent filters with their defaults. Read(Write(q)) equals
// Normalize(q) for every valid q, and equals q itself when q is normalized.
func (b *QueryBinder) Normalize(q model.PageQuery) model.PageQuery {
	out := q.Clone()
	for k, d := range b.defaults {
		if out.Filters[k] == "" && d != "" {
			out.Filters[k] = d
		}
	}
	return out
}

// Encode renders q minimally: defaults and unknown keys are left out and keys
// are sorted, so equal queries always produce the same URL.
func (b *QueryBinder) Encode(q model.PageQuery) string {
	values := url.Values{}
	if q.Page > 1 {
		values.Set(paramPage, strconv.Itoa(q.Page))
	}
	if q.PageSize >= 1 && q.PageSize <= MaxPageSize && q.PageSize != b.pageSize {
		values.Set(paramSize, strconv.Itoa(q.PageSize))
	}
	for _, k := range b.keys {
		v := q.Filters[k]
		if v == "" || v == b.defaults[k] {
			continue
		}
		values.Set(k, v)
	}
	return values.Encode()
}

// Href is the shareable URL for q.
func (b *QueryBinder) Href(q model.PageQuery) string {
	if enc := b.Encode(q); enc != "" {
		return b.path + "?" + enc
	}
	return b.path
}

// Write serializes q into the URL and asks the host to navigate there.
func (b *QueryBinder) Write(q model.PageQuery) {
	enc := b.Encode(q)
	b.mu.Lock()
	changed := enc != b.raw
	b.raw = enc
	b.mu.Unlock()
	if changed {
		b.nav.Navigate(b.Href(q))
	}
}

// Sync adopts a URL the host navigated to on its own (deep link, back/forward).
// It returns the query the view should now show.
func (b *QueryBinder) Sync(rawQuery string) model.PageQuery {
	q := b.Parse(rawQuery)
	b.mu.Lock()
	b.raw = b.Encode(q)
	b.mu.Unlock()
	return q
}

func (b *QueryBinder) SetFilter(key, value string) {
	b.Write(b.Read().WithFilter(key, value))
}

func (b *QueryBinder) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	b.Write(b.Read().WithPage(page))
}
