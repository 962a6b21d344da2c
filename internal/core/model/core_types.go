package model

import (
	"cmp"
	"maps"
	"slices"
	"strings"
	"time"
)

// All core models live here together for simplicity.

type Role int

const (
	RoleAnonymous Role = iota
	RoleMember
	RoleAuthorVerified
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleMember:
		return "member"
	case RoleAuthorVerified:
		return "author_verified"
	case RoleAdmin:
		return "admin"
	default:
		return "anonymous"
	}
}

// ParseRole maps a role claim to a Role. A credential always belongs to an
// authenticated user, so unknown or empty names degrade to RoleMember.
func ParseRole(s string) Role {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ADMIN":
		return RoleAdmin
	case "AUTHOR", "AUTHOR_VERIFIED", "VERIFIED_AUTHOR":
		return RoleAuthorVerified
	default:
		return RoleMember
	}
}

type Session struct {
	Credential string // opaque bearer token
	Role       Role
	EntityID   string // id of the user the credential was issued to
}

type PageQuery struct {
	Page     int // 1-based; the wire is 0-based
	PageSize int
	Filters  map[string]string
}

func (q PageQuery) Filter(key string) string {
	return q.Filters[key]
}

// WirePage is the 0-based page index the remote service expects.
func (q PageQuery) WirePage() int {
	if q.Page < 1 {
		return 0
	}
	return q.Page - 1
}

func (q PageQuery) Clone() PageQuery {
	out := PageQuery{Page: q.Page, PageSize: q.PageSize, Filters: make(map[string]string, len(q.Filters))}
	for k, v := range q.Filters {
		if v != "" {
			out.Filters[k] = v
		}
	}
	return out
}

// WithFilter returns a copy with key set (or removed when value is empty).
// Any filter change sends the view back to page 1.
func (q PageQuery) WithFilter(key, value string) PageQuery {
	out := q.Clone()
	if value == "" {
		delete(out.Filters, key)
	} else {
		out.Filters[key] = value
	}
	out.Page = 1
	return out
}

func (q PageQuery) WithPage(page int) PageQuery {
	out := q.Clone()
	out.Page = page
	return out
}

// Equal compares queries treating empty filter values as absent.
func (q PageQuery) Equal(o PageQuery) bool {
	if q.Page != o.Page || q.PageSize != o.PageSize {
		return false
	}
	return maps.Equal(q.Clone().Filters, o.Clone().Filters)
}

type PagedResult[T any] struct {
	Items       []T // server order, never re-sorted here
	TotalPages  int
	TotalItems  int
	CurrentPage int // 1-based
}

// OutOfRange reports whether CurrentPage lies beyond the last page.
func (p PagedResult[T]) OutOfRange() bool {
	return p.CurrentPage > max(p.TotalPages, 1)
}

type Format string

const (
	FormatPaperback Format = "paperback"
	FormatHardcover Format = "hardcover"
	FormatEbook     Format = "ebook"
	FormatAudiobook Format = "audiobook"
)

var Formats = []Format{FormatPaperback, FormatHardcover, FormatEbook, FormatAudiobook}

func ParseFormat(s string) (Format, bool) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	return f, slices.Contains(Formats, f)
}

type Book struct {
	ID            string
	Title         string
	Subtitle      *string
	Authors       []string
	Genre         string
	PublishedYear *int
	CoverURL      *string
	Formats       []Format
}

type Shelf struct {
	ID        string
	Name      string
	BookCount int
}

type Queue string

const (
	QueueAuthorRequests Queue = "author-requests"
	QueueSuggestions    Queue = "suggestions"
)

func ParseQueue(s string) (Queue, bool) {
	switch q := Queue(strings.ToLower(strings.TrimSpace(s))); q {
	case QueueAuthorRequests, QueueSuggestions:
		return q, true
	}
	return "", false
}

type ModerationStatus string

const (
	StatusPending  ModerationStatus = "pending"
	StatusAccepted ModerationStatus = "accepted"
	StatusAdded    ModerationStatus = "added"
	StatusRejected ModerationStatus = "rejected"
)

func ParseStatus(s string) (ModerationStatus, bool) {
	switch st := ModerationStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusAccepted, StatusAdded, StatusRejected:
		return st, true
	}
	return "", false
}

type ModerationItem struct {
	ID        string
	Queue     Queue
	Status    ModerationStatus
	Title     string // suggested book title or requesting author's name
	Submitter string
	CreatedAt time.Time
}

type Op int

const (
	OpAdd Op = iota
	OpRemove
)

func (o Op) String() string {
	if o == OpRemove {
		return "remove"
	}
	return "add"
}

// Mutation is a single add-or-remove of one flag on one owner's set.
type Mutation[E cmp.Ordered] struct {
	Owner string
	Flag  E
	Op    Op
}

// FlagSet is an owner's set of enum members (a book's formats, a user's shelves).
type FlagSet[E cmp.Ordered] struct {
	Owner  string
	values map[E]struct{}
}

func NewFlagSet[E cmp.Ordered](owner string, values ...E) FlagSet[E] {
	s := FlagSet[E]{Owner: owner, values: make(map[E]struct{}, len(values))}
	for _, v := range values {
		s.values[v] = struct{}{}
	}
	return s
}

func (s FlagSet[E]) Has(v E) bool {
	_, ok := s.values[v]
	return ok
}

func (s FlagSet[E]) Len() int { return len(s.values) }

// Values returns the members in ascending order.
func (s FlagSet[E]) Values() []E {
	return slices.Sorted(maps.Keys(s.values))
}

// With returns a copy with flag v present or absent.
func (s FlagSet[E]) With(v E, present bool) FlagSet[E] {
	out := NewFlagSet(s.Owner, s.Values()...)
	if present {
		out.values[v] = struct{}{}
	} else {
		delete(out.values, v)
	}
	return out
}

func (s FlagSet[E]) Apply(m Mutation[E]) FlagSet[E] {
	return s.With(m.Flag, m.Op == OpAdd)
}

func (s FlagSet[E]) Equal(o FlagSet[E]) bool {
	return s.Owner == o.Owner && maps.Equal(s.values, o.values)
}
