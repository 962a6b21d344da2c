package web

import (
	"book-portal/internal/core"
	"book-portal/internal/core/model"
	"errors"
	"fmt"
	"time"
)

type errorView struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Field     string `json:"field,omitempty"`
	Retryable bool   `json:"retryable"`
}

func toErrorView(err error) *errorView {
	if err == nil {
		return nil
	}
	k := model.KindOf(err)
	ev := &errorView{Kind: k.String(), Message: model.Message(k), Retryable: k.Retryable()}
	var ve model.ValidationError
	if errors.As(err, &ve) {
		ev.Field = ve.Field
	}
	return ev
}

type sessionView struct {
	Authenticated bool   `json:"authenticated"`
	Role          string `json:"role"`
}

type queryView struct {
	Page    int               `json:"page"`
	Size    int               `json:"size"`
	Filters map[string]string `json:"filters"`
}

type tabView struct {
	Status string `json:"status"`
	Href   string `json:"href"`
	Active bool   `json:"active"`
}

type pageView[V any] struct {
	View       string            `json:"view"`
	Query      queryView         `json:"query"`
	Status     string            `json:"status"`
	Items      []V               `json:"items"`
	Page       int               `json:"page"`
	TotalPages int               `json:"totalPages"`
	TotalItems int               `json:"totalItems"`
	Empty      bool              `json:"empty"`
	Error      *errorView        `json:"error,omitempty"`
	Links      map[string]string `json:"links"`
	Tabs       []tabView         `json:"tabs,omitempty"`
	Session    sessionView       `json:"session"`
}

func newPageView[T, V any](name string, b *core.QueryBinder, st core.FetchState[T], fn func(T) V) pageView[V] {
	q := b.Read()
	pv := pageView[V]{
		View:   name,
		Query:  queryView{Page: q.Page, Size: q.PageSize, Filters: q.Clone().Filters},
		Status: st.Status.String(),
		Items:  []V{},
		Empty:  st.Empty(),
		Error:  toErrorView(st.Err),
		Links:  map[string]string{"self": b.Href(q)},
	}
	if st.Data != nil {
		for _, it := range st.Data.Items {
			pv.Items = append(pv.Items, fn(it))
		}
		pv.Page = st.Data.CurrentPage
		pv.TotalPages = st.Data.TotalPages
		pv.TotalItems = st.Data.TotalItems
		if q.Page > 1 {
			pv.Links["prev"] = b.Href(q.WithPage(q.Page - 1))
		}
		if q.Page < st.Data.TotalPages {
			pv.Links["next"] = b.Href(q.WithPage(q.Page + 1))
		}
	}
	if pv.Error != nil && pv.Error.Retryable {
		pv.Links["retry"] = b.Href(q)
	}
	return pv
}

type bookView struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Subtitle      *string  `json:"subtitle,omitempty"`
	Authors       []string `json:"authors"`
	Genre         string   `json:"genre,omitempty"`
	PublishedYear *int     `json:"publishedYear,omitempty"`
	CoverURL      *string  `json:"coverUrl,omitempty"`
	Formats       []string `json:"formats"`
}

func toBookView(b model.Book) bookView {
	formats := make([]string, 0, len(b.Formats))
	for _, f := range b.Formats {
		formats = append(formats, string(f))
	}
	return bookView{
		ID:            b.ID,
		Title:         b.Title,
		Subtitle:      b.Subtitle,
		Authors:       append([]string{}, b.Authors...),
		Genre:         b.Genre,
		PublishedYear: b.PublishedYear,
		CoverURL:      b.CoverURL,
		Formats:       formats,
	}
}

type shelfView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BookCount int    `json:"bookCount"`
	Delete    string `json:"delete"`
}

func toShelfView(s model.Shelf) shelfView {
	return shelfView{ID: s.ID, Name: s.Name, BookCount: s.BookCount, Delete: fmt.Sprintf("/shelves/%s/delete", s.ID)}
}

type moderationView struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Submitter string            `json:"submitter"`
	Status    string            `json:"status"`
	CreatedAt time.Time         `json:"createdAt"`
	Actions   map[string]string `json:"actions"`
}

func moderationViewFor(wf core.Workflow) func(model.ModerationItem) moderationView {
	return func(it model.ModerationItem) moderationView {
		actions := map[string]string{}
		for _, t := range wf.Targets(it.Status) {
			actions[string(t)] = fmt.Sprintf("/admin/%s/%s/%s", wf.Queue, it.ID, t)
		}
		return moderationView{ID: it.ID, Title: it.Title, Submitter: it.Submitter, Status: string(it.Status), CreatedAt: it.CreatedAt, Actions: actions}
	}
}

type flagSetView struct {
	Owner  string     `json:"owner"`
	Values []string   `json:"values"`
	Error  *errorView `json:"error,omitempty"`
}

type messageView struct {
	View    string      `json:"view"`
	Message string      `json:"message,omitempty"`
	Error   *errorView  `json:"error,omitempty"`
	Session sessionView `json:"session"`
}
