package adapter

import (
	"book-portal/internal/core/model"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"
)

// CatalogClient talks to the remote catalog service. It never retries: every
// failure is returned classified and the user decides whether to try again.
type CatalogClient struct {
	BaseURL string
	Client  *http.Client
	log     *slog.Logger
}

func NewCatalogClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *CatalogClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CatalogClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  httpClient,
		log:     logger,
	}
}

// wire shapes

type pageDTO[T any] struct {
	Content       []T  `json:"content"`
	TotalPages    int  `json:"totalPages"`
	TotalElements int  `json:"totalElements"`
	Number        *int `json:"number,omitempty"`
}

type bookDTO struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Subtitle      *string  `json:"subtitle,omitempty"`
	Authors       []string `json:"authors"`
	Genre         string   `json:"genre,omitempty"`
	PublishedYear *int     `json:"publishedYear,omitempty"`
	CoverURL      *string  `json:"coverUrl,omitempty"`
	Formats       []string `json:"formats"`
}

type moderationDTO struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Title     string    `json:"title"`
	Submitter string    `json:"submitter"`
	CreatedAt time.Time `json:"createdAt"`
}

type shelfDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BookCount int    `json:"bookCount"`
}

type credentialsDTO struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenDTO struct {
	Token string `json:"token"`
}

type statusDTO struct {
	Status string `json:"status"`
}

type httpError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Field   string `json:"field,omitempty"`
	} `json:"error"`
}

func (c *CatalogClient) Login(ctx context.Context, username, password string) (string, error) {
	return c.authenticate(ctx, "/auth/login", username, password)
}

func (c *CatalogClient) Register(ctx context.Context, username, password string) (string, error) {
	return c.authenticate(ctx, "/auth/register", username, password)
}

func (c *CatalogClient) authenticate(ctx context.Context, path, username, password string) (string, error) {
	if strings.TrimSpace(username) == "" {
		return "", model.ValidationError{Field: "username", Msg: "required"}
	}
	if password == "" {
		return "", model.ValidationError{Field: "password", Msg: "required"}
	}
	var out tokenDTO
	if err := c.do(ctx, http.MethodPost, path, "", credentialsDTO{Username: username, Password: password}, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func (c *CatalogClient) ListBooks(ctx context.Context, credential string, q model.PageQuery) (model.PagedResult[model.Book], error) {
	var out pageDTO[bookDTO]
	if err := c.list(ctx, "/books", credential, q, &out); err != nil {
		return model.PagedResult[model.Book]{}, err
	}
	return mapPage(out, q, mapBook), nil
}

func (c *CatalogClient) ListModeration(ctx context.Context, credential string, queue model.Queue, q model.PageQuery) (model.PagedResult[model.ModerationItem], error) {
	wq := q.Clone()
	if s := wq.Filters["status"]; s != "" {
		wq.Filters["status"] = strings.ToUpper(s)
	}
	var out pageDTO[moderationDTO]
	if err := c.list(ctx, "/admin/"+string(queue), credential, wq, &out); err != nil {
		return model.PagedResult[model.ModerationItem]{}, err
	}
	return mapPage(out, q, func(d moderationDTO) model.ModerationItem { return mapModeration(queue, d) }), nil
}

func (c *CatalogClient) TransitionModeration(ctx context.Context, credential string, queue model.Queue, id string, target model.ModerationStatus) (model.ModerationItem, error) {
	path := fmt.Sprintf("/admin/%s/%s/status", queue, url.PathEscape(id))
	var out moderationDTO
	if err := c.do(ctx, http.MethodPut, path, credential, statusDTO{Status: strings.ToUpper(string(target))}, &out); err != nil {
		return model.ModerationItem{}, err
	}
	return mapModeration(queue, out), nil
}

func (c *CatalogClient) ListShelves(ctx context.Context, credential string, q model.PageQuery) (model.PagedResult[model.Shelf], error) {
	var out pageDTO[shelfDTO]
	if err := c.list(ctx, "/me/shelves", credential, q, &out); err != nil {
		return model.PagedResult[model.Shelf]{}, err
	}
	return mapPage(out, q, mapShelf), nil
}

func (c *CatalogClient) DeleteShelf(ctx context.Context, credential, shelfID string) ([]model.Shelf, error) {
	var out []shelfDTO
	if err := c.do(ctx, http.MethodDelete, "/me/shelves/"+url.PathEscape(shelfID), credential, nil, &out); err != nil {
		return nil, err
	}
	shelves := make([]model.Shelf, 0, len(out))
	for _, s := range out {
		shelves = append(shelves, mapShelf(s))
	}
	return shelves, nil
}

func (c *CatalogClient) AddFormat(ctx context.Context, credential, bookID string, f model.Format) ([]model.Format, error) {
	return c.format(ctx, http.MethodPost, credential, bookID, f)
}

func (c *CatalogClient) RemoveFormat(ctx context.Context, credential, bookID string, f model.Format) ([]model.Format, error) {
	return c.format(ctx, http.MethodDelete, credential, bookID, f)
}

func (c *CatalogClient) format(ctx context.Context, method, credential, bookID string, f model.Format) ([]model.Format, error) {
	path := fmt.Sprintf("/books/%s/formats/%s", url.PathEscape(bookID), strings.ToUpper(string(f)))
	var out []string
	if err := c.do(ctx, method, path, credential, nil, &out); err != nil {
		return nil, err
	}
	return mapFormats(out), nil
}

func (c *CatalogClient) list(ctx context.Context, path, credential string, q model.PageQuery, out any) error {
	query, err := EncodeWireQuery(q)
	if err != nil {
		return model.ValidationError{Field: "query", Err: err}
	}
	return c.do(ctx, http.MethodGet, path+"?"+query, credential, nil, out)
}

// EncodeWireQuery renders q in the service's form style: 0-based page, size,
// then the filters in key order.
func EncodeWireQuery(q model.PageQuery) (string, error) {
	parts := make([]string, 0, 2+len(q.Filters))
	add := func(name string, value any) error {
		p, err := runtime.StyleParamWithLocation("form", true, name, runtime.ParamLocationQuery, value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		parts = append(parts, p)
		return nil
	}
	if err := add("page", q.WirePage()); err != nil {
		return "", err
	}
	if err := add("size", q.PageSize); err != nil {
		return "", err
	}
	keys := make([]string, 0, len(q.Filters))
	for k, v := range q.Filters {
		if v != "" {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := add(k, q.Filters[k]); err != nil {
			return "", err
		}
	}
	return strings.Join(parts, "&"), nil
}

func (c *CatalogClient) do(ctx context.Context, method, path, credential string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return model.NetworkError{Err: err}
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	start := time.Now()
	resp, err := c.Client.Do(req)
	if err != nil {
		c.log.Warn("request failed", "method", method, "path", path, "request_id", reqID, "err", err)
		return model.NetworkError{Err: err}
	}
	defer resp.Body.Close()
	c.log.Debug("request done", "method", method, "path", path, "status", resp.StatusCode,
		"request_id", reqID, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return model.NetworkError{Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// classifyStatus maps a non-2xx response onto the error taxonomy.
func classifyStatus(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var he httpError
	_ = json.Unmarshal(b, &he)
	msg := he.Error.Message

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return model.AuthorityError{Status: resp.StatusCode}
	case http.StatusConflict:
		return model.ConflictError{Resource: he.Error.Code, Msg: msg}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return model.ValidationError{Field: he.Error.Field, Msg: msg}
	default:
		if msg == "" {
			msg = strings.TrimSpace(string(b))
		}
		return model.ServerError{Status: resp.StatusCode, Msg: msg}
	}
}

func mapPage[D, T any](p pageDTO[D], q model.PageQuery, fn func(D) T) model.PagedResult[T] {
	items := make([]T, 0, len(p.Content))
	for _, d := range p.Content {
		items = append(items, fn(d))
	}
	current := q.Page
	if p.Number != nil {
		current = *p.Number + 1
	}
	return model.PagedResult[T]{Items: items, TotalPages: p.TotalPages, TotalItems: p.TotalElements, CurrentPage: current}
}

func mapBook(d bookDTO) model.Book {
	return model.Book{
		ID:            d.ID,
		Title:         d.Title,
		Subtitle:      d.Subtitle,
		Authors:       append([]string(nil), d.Authors...),
		Genre:         d.Genre,
		PublishedYear: d.PublishedYear,
		CoverURL:      d.CoverURL,
		Formats:       mapFormats(d.Formats),
	}
}

func mapFormats(in []string) []model.Format {
	out := make([]model.Format, 0, len(in))
	for _, s := range in {
		if f, ok := model.ParseFormat(s); ok {
			out = append(out, f)
		}
	}
	return out
}

func mapModeration(queue model.Queue, d moderationDTO) model.ModerationItem {
	st, _ := model.ParseStatus(d.Status)
	return model.ModerationItem{ID: d.ID, Queue: queue, Status: st, Title: d.Title, Submitter: d.Submitter, CreatedAt: d.CreatedAt}
}

func mapShelf(d shelfDTO) model.Shelf {
	return model.Shelf{ID: d.ID, Name: d.Name, BookCount: d.BookCount}
}
