package adapter

import (
	"book-portal/internal/core/model"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/oapi-codegen/runtime"
)

// StubServer serves a MemoryCatalog over the remote service's wire contract,
// so the portal can run and be tested without the real backend.
type StubServer struct {
	Catalog *MemoryCatalog
	secret  []byte
	ttl     time.Duration
	log     *slog.Logger
}

func NewStubServer(catalog *MemoryCatalog, secret string, logger *slog.Logger) *StubServer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &StubServer{Catalog: catalog, secret: []byte(secret), ttl: 24 * time.Hour, log: logger}
}

// IssueToken signs a credential the way the service does: HS256 with sub,
// role and exp claims.
func IssueToken(secret []byte, subject, role string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"role": strings.ToUpper(role),
		"exp":  time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(secret)
}

func (s *StubServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/auth/login", s.login)
	r.Post("/auth/register", s.register)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate(false))
		r.Get("/books", s.listBooks)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate(true))
		r.Post("/books/{id}/formats/{format}", s.setFormat(true))
		r.Delete("/books/{id}/formats/{format}", s.setFormat(false))
		r.Get("/me/shelves", s.listShelves)
		r.Delete("/me/shelves/{id}", s.deleteShelf)

		r.Group(func(r chi.Router) {
			r.Use(requireRole("ADMIN"))
			r.Get("/admin/{queue}", s.listModeration)
			r.Put("/admin/{queue}/{id}/status", s.transition)
		})
	})
	return r
}

type principal struct {
	ID   string
	Role string
}

type principalKey struct{}

func principalFrom(ctx context.Context) (principal, bool) {
	p, ok := ctx.Value(principalKey{}).(principal)
	return p, ok
}

// authenticate verifies the bearer token. With required=false an absent token
// is accepted, but a present and invalid one is still rejected.
func (s *StubServer) authenticate(required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				if required {
					writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing credential", "")
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			claims := jwt.MapClaims{}
			_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return s.secret, nil },
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid credential", "")
				return
			}
			sub, _ := claims.GetSubject()
			role, _ := claims["role"].(string)
			ctx := context.WithValue(r.Context(), principalKey{}, principal{ID: sub, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := principalFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing credential", "")
				return
			}
			if !strings.EqualFold(p.Role, role) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "role not allowed", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *StubServer) login(w http.ResponseWriter, r *http.Request) {
	var in credentialsDTO
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON", "")
		return
	}
	acc, err := s.Catalog.Authenticate(in.Username, in.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "BAD_CREDENTIALS", "invalid username or password", "")
		return
	}
	s.writeToken(w, http.StatusOK, acc)
}

func (s *StubServer) register(w http.ResponseWriter, r *http.Request) {
	var in credentialsDTO
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON", "")
		return
	}
	if strings.TrimSpace(in.Username) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION", "username is required", "username")
		return
	}
	if len(in.Password) < 4 {
		writeError(w, http.StatusBadRequest, "VALIDATION", "password too short", "password")
		return
	}
	if _, err := s.Catalog.AddAccount(in.Username, in.Password, "MEMBER"); err != nil {
		writeError(w, http.StatusConflict, "USERNAME_TAKEN", "username already registered", "username")
		return
	}
	acc, err := s.Catalog.Authenticate(in.Username, in.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "account not readable", "")
		return
	}
	s.writeToken(w, http.StatusCreated, acc)
}

func (s *StubServer) writeToken(w http.ResponseWriter, status int, acc account) {
	tok, err := IssueToken(s.secret, acc.ID, acc.Role, s.ttl)
	if err != nil {
		s.log.Error("sign token", "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "could not sign token", "")
		return
	}
	writeJSON(w, status, tokenDTO{Token: tok})
}

func (s *StubServer) listBooks(w http.ResponseWriter, r *http.Request) {
	q, err := bindPageQuery(r, "title", "author", "genre")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error(), "")
		return
	}
	writeJSON(w, http.StatusOK, toPageDTO(s.Catalog.ListBooks(q), toBookDTO))
}

func (s *StubServer) setFormat(present bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := model.ParseFormat(chi.URLParam(r, "format"))
		if !ok {
			writeError(w, http.StatusBadRequest, "VALIDATION", "unknown format", "format")
			return
		}
		formats, err := s.Catalog.SetFormat(chi.URLParam(r, "id"), f, present)
		if err != nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "book not found", "")
			return
		}
		writeJSON(w, http.StatusOK, formatsDTO(formats))
	}
}

func (s *StubServer) listShelves(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	q, err := bindPageQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error(), "")
		return
	}
	writeJSON(w, http.StatusOK, toPageDTO(s.Catalog.ListShelves(p.ID, q), toShelfDTO))
}

func (s *StubServer) deleteShelf(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())
	left, err := s.Catalog.DeleteShelf(p.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "shelf not found", "")
		return
	}
	out := make([]shelfDTO, 0, len(left))
	for _, sh := range left {
		out = append(out, toShelfDTO(sh))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *StubServer) listModeration(w http.ResponseWriter, r *http.Request) {
	queue, ok := model.ParseQueue(chi.URLParam(r, "queue"))
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown queue", "")
		return
	}
	q, err := bindPageQuery(r, "status")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_QUERY", err.Error(), "")
		return
	}
	status := model.StatusPending
	if v := q.Filter("status"); v != "" {
		if status, ok = model.ParseStatus(v); !ok {
			writeError(w, http.StatusBadRequest, "VALIDATION", "unknown status", "status")
			return
		}
	}
	page, err := s.Catalog.ListModeration(queue, status, q)
	if err != nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown queue", "")
		return
	}
	writeJSON(w, http.StatusOK, toPageDTO(page, toModerationDTO))
}

func (s *StubServer) transition(w http.ResponseWriter, r *http.Request) {
	queue, ok := model.ParseQueue(chi.URLParam(r, "queue"))
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown queue", "")
		return
	}
	var in statusDTO
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON", "")
		return
	}
	target, ok := model.ParseStatus(in.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "VALIDATION", "unknown status", "status")
		return
	}
	it, err := s.Catalog.Transition(queue, chi.URLParam(r, "id"), target)
	switch {
	case errors.Is(err, errConflict):
		writeError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error(), "status")
		return
	case err != nil:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "item not found", "")
		return
	}
	writeJSON(w, http.StatusOK, toModerationDTO(it))
}

// bindPageQuery reads the form-style paging parameters (0-based page) and the
// named filters into a 1-based PageQuery.
func bindPageQuery(r *http.Request, filters ...string) (model.PageQuery, error) {
	values := r.URL.Query()
	var page, size *int
	if err := runtime.BindQueryParameter("form", true, false, "page", values, &page); err != nil {
		return model.PageQuery{}, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "size", values, &size); err != nil {
		return model.PageQuery{}, err
	}
	q := model.PageQuery{Page: 1, PageSize: 20, Filters: map[string]string{}}
	if page != nil {
		if *page < 0 {
			return model.PageQuery{}, fmt.Errorf("page must be >= 0")
		}
		q.Page = *page + 1
	}
	if size != nil {
		if *size < 1 || *size > 100 {
			return model.PageQuery{}, fmt.Errorf("size must be between 1 and 100")
		}
		q.PageSize = *size
	}
	for _, name := range filters {
		var v *string
		if err := runtime.BindQueryParameter("form", true, false, name, values, &v); err != nil {
			return model.PageQuery{}, err
		}
		if v != nil && *v != "" {
			q.Filters[name] = *v
		}
	}
	return q, nil
}

func toPageDTO[T, D any](p model.PagedResult[T], fn func(T) D) pageDTO[D] {
	content := make([]D, 0, len(p.Items))
	for _, it := range p.Items {
		content = append(content, fn(it))
	}
	number := p.CurrentPage - 1
	return pageDTO[D]{Content: content, TotalPages: p.TotalPages, TotalElements: p.TotalItems, Number: &number}
}

func toBookDTO(b model.Book) bookDTO {
	return bookDTO{
		ID:            b.ID,
		Title:         b.Title,
		Subtitle:      b.Subtitle,
		Authors:       append([]string{}, b.Authors...),
		Genre:         b.Genre,
		PublishedYear: b.PublishedYear,
		CoverURL:      b.CoverURL,
		Formats:       formatsDTO(b.Formats),
	}
}

func formatsDTO(in []model.Format) []string {
	out := make([]string, 0, len(in))
	for _, f := range in {
		out = append(out, strings.ToUpper(string(f)))
	}
	return out
}

func toModerationDTO(it model.ModerationItem) moderationDTO {
	return moderationDTO{ID: it.ID, Status: strings.ToUpper(string(it.Status)), Title: it.Title, Submitter: it.Submitter, CreatedAt: it.CreatedAt}
}

func toShelfDTO(s model.Shelf) shelfDTO {
	return shelfDTO{ID: s.ID, Name: s.Name, BookCount: s.BookCount}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg, field string) {
	e := httpError{}
	e.Error.Code = code
	e.Error.Message = msg
	e.Error.Field = field
	writeJSON(w, status, e)
}
