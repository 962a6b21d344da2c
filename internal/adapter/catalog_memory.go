package adapter

import (
	"book-portal/internal/core/model"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	errNotFound       = errors.New("not found")
	errConflict       = errors.New("conflict")
	errBadCredentials = errors.New("bad credentials")
)

type account struct {
	ID       string
	Username string
	Password string
	Role     string
}

// MemoryCatalog is an in-memory rendition of the remote service's data. It
// backs the stub server used for local development and tests.
type MemoryCatalog struct {
	mu         sync.RWMutex
	books      map[string]model.Book // id -> Book
	moderation map[model.Queue]map[string]model.ModerationItem
	shelves    map[string][]model.Shelf // owner id -> shelves in creation order
	accounts   map[string]account       // username -> account
	now        func() time.Time
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		books: make(map[string]model.Book),
		moderation: map[model.Queue]map[string]model.ModerationItem{
			model.QueueAuthorRequests: {},
			model.QueueSuggestions:    {},
		},
		shelves:  make(map[string][]model.Shelf),
		accounts: make(map[string]account),
		now:      time.Now,
	}
}

func (r *MemoryCatalog) AddAccount(username, password, role string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if username == "" || password == "" {
		return "", errConflict
	}
	if _, ok := r.accounts[username]; ok {
		return "", errConflict
	}
	a := account{ID: uuid.NewString(), Username: username, Password: password, Role: strings.ToUpper(role)}
	r.accounts[username] = a
	return a.ID, nil
}

func (r *MemoryCatalog) Authenticate(username, password string) (account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[username]
	if !ok || a.Password != password {
		return account{}, errBadCredentials
	}
	return a, nil
}

func (r *MemoryCatalog) AddBook(b model.Book) (model.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if _, ok := r.books[b.ID]; ok {
		return model.Book{}, errConflict
	}
	r.books[b.ID] = copyBook(b)
	return copyBook(b), nil
}

func (r *MemoryCatalog) GetBook(id string) (model.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.books[id]
	if !ok {
		return model.Book{}, errNotFound
	}
	return copyBook(b), nil
}

// ListBooks filters by title (title or subtitle contains), author (any author
// contains) and genre (exact, case-insensitive), sorted by title.
func (r *MemoryCatalog) ListBooks(q model.PageQuery) model.PagedResult[model.Book] {
	r.mu.RLock()
	// snapshot to avoid holding the lock during sort
	items := make([]model.Book, 0, len(r.books))
	for _, b := range r.books {
		items = append(items, copyBook(b))
	}
	r.mu.RUnlock()

	out := items[:0]
	for _, b := range items {
		if matchBook(b, q) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, q)
}

// SetFormat adds or removes one format and returns the book's resulting set.
func (r *MemoryCatalog) SetFormat(bookID string, f model.Format, present bool) ([]model.Format, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[bookID]
	if !ok {
		return nil, errNotFound
	}
	set := model.NewFlagSet(bookID, b.Formats...).With(f, present)
	b.Formats = set.Values()
	r.books[bookID] = b
	return slices.Clone(b.Formats), nil
}

func (r *MemoryCatalog) AddModerationItem(it model.ModerationItem) (model.ModerationItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items, ok := r.moderation[it.Queue]
	if !ok {
		return model.ModerationItem{}, errNotFound
	}
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if it.Status == "" {
		it.Status = model.StatusPending
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = r.now()
	}
	if _, exists := items[it.ID]; exists {
		return model.ModerationItem{}, errConflict
	}
	items[it.ID] = it
	return it, nil
}

// ListModeration returns a queue's items with the given status, oldest first.
func (r *MemoryCatalog) ListModeration(queue model.Queue, status model.ModerationStatus, q model.PageQuery) (model.PagedResult[model.ModerationItem], error) {
	r.mu.RLock()
	src, ok := r.moderation[queue]
	if !ok {
		r.mu.RUnlock()
		return model.PagedResult[model.ModerationItem]{}, errNotFound
	}
	out := make([]model.ModerationItem, 0, len(src))
	for _, it := range src {
		if it.Status == status {
			out = append(out, it)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, q), nil
}

// serverTransitions is the service's own rule set; the client keeps a copy
// but the service has the last word.
var serverTransitions = map[model.Queue]map[model.ModerationStatus][]model.ModerationStatus{
	model.QueueAuthorRequests: {
		model.StatusPending: {model.StatusAccepted, model.StatusRejected},
	},
	model.QueueSuggestions: {
		model.StatusPending:  {model.StatusAccepted, model.StatusRejected},
		model.StatusAccepted: {model.StatusAdded},
	},
}

func (r *MemoryCatalog) Transition(queue model.Queue, id string, target model.ModerationStatus) (model.ModerationItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items, ok := r.moderation[queue]
	if !ok {
		return model.ModerationItem{}, errNotFound
	}
	it, ok := items[id]
	if !ok {
		return model.ModerationItem{}, errNotFound
	}
	if !slices.Contains(serverTransitions[queue][it.Status], target) {
		return model.ModerationItem{}, fmt.Errorf("%w: %s is %s", errConflict, id, it.Status)
	}
	it.Status = target
	items[id] = it
	return it, nil
}

func (r *MemoryCatalog) AddShelf(owner, name string) model.Shelf {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := model.Shelf{ID: uuid.NewString(), Name: name}
	r.shelves[owner] = append(r.shelves[owner], s)
	return s
}

func (r *MemoryCatalog) ListShelves(owner string, q model.PageQuery) model.PagedResult[model.Shelf] {
	r.mu.RLock()
	out := slices.Clone(r.shelves[owner])
	r.mu.RUnlock()
	return paginate(out, q)
}

// DeleteShelf removes one shelf and returns the owner's remaining shelves.
func (r *MemoryCatalog) DeleteShelf(owner, id string) ([]model.Shelf, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.shelves[owner]
	i := slices.IndexFunc(list, func(s model.Shelf) bool { return s.ID == id })
	if i < 0 {
		return nil, errNotFound
	}
	list = slices.Delete(list, i, i+1)
	r.shelves[owner] = list
	return slices.Clone(list), nil
}

func paginate[T any](items []T, q model.PageQuery) model.PagedResult[T] {
	page := q.Page
	if page < 1 {
		page = 1
	}
	size := q.PageSize
	if size < 1 {
		size = 20
	}
	total := len(items)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	paged := make([]T, end-start)
	copy(paged, items[start:end])
	return model.PagedResult[T]{
		Items:       paged,
		TotalPages:  (total + size - 1) / size,
		TotalItems:  total,
		CurrentPage: page,
	}
}

func copyBook(b model.Book) model.Book {
	b.Authors = append([]string(nil), b.Authors...)
	b.Formats = append([]model.Format(nil), b.Formats...)
	return b
}

// matchBook checks whether a book matches the query's filters.
func matchBook(b model.Book, q model.PageQuery) bool {
	// title: title or subtitle contains (case-insensitive)
	if v := q.Filter("title"); v != "" {
		needle := strings.ToLower(v)
		if !strings.Contains(strings.ToLower(b.Title), needle) {
			sub := ""
			if b.Subtitle != nil {
				sub = strings.ToLower(*b.Subtitle)
			}
			if !strings.Contains(sub, needle) {
				return false
			}
		}
	}

	// author: any author contains (case-insensitive)
	if v := q.Filter("author"); v != "" {
		needle := strings.ToLower(v)
		found := false
		for _, a := range b.Authors {
			if strings.Contains(strings.ToLower(a), needle) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if v := q.Filter("genre"); v != "" && !strings.EqualFold(b.Genre, v) {
		return false
	}
	return true
}
