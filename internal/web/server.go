package web

import (
	"book-portal/internal/core"
	"book-portal/internal/core/model"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// Authenticator exchanges user credentials for a bearer credential.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
}

type Deps struct {
	Session    *core.SessionStore
	Navigator  *Navigator
	Auth       Authenticator
	Catalog    core.CatalogService
	Moderation core.ModerationService
	Formats    core.FormatService
	Shelves    core.ShelfService
	PageSize   int
	Log        *slog.Logger
}

// Server is the local UI host: every page is a mounted view whose state is
// its URL query string and whose body is the JSON rendering of that view.
type Server struct {
	session *core.SessionStore
	nav     *Navigator
	auth    Authenticator
	log     *slog.Logger

	member *core.Guard
	admin  *core.Guard

	books    *core.View[model.Book]
	shelves  *core.View[model.Shelf]
	queues   map[model.Queue]*core.ModerationController
	formats  *core.FlagCoordinator[model.Format]
	shelfOps *core.FlagCoordinator[string]
}

func NewServer(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		session: d.Session,
		nav:     d.Navigator,
		auth:    d.Auth,
		log:     log,
		member:  core.NewGuard(d.Session, core.RequireSession, log),
		admin:   core.NewGuard(d.Session, core.RequireElevated, log),
		queues:  map[model.Queue]*core.ModerationController{},
	}

	s.books = core.NewView(
		core.NewQueryBinder(core.RouteHome, d.PageSize, d.Navigator, []string{"title", "author", "genre"}),
		core.NewFetcher(core.BookSource(d.Catalog), d.Session, log, core.WithPublicAccess(), core.WithName("books")),
	)
	s.shelves = core.NewView(
		core.NewQueryBinder("/shelves", d.PageSize, d.Navigator, nil),
		core.NewFetcher(core.ShelfSource(d.Shelves), d.Session, log, core.WithName("shelves")),
	)
	for _, wf := range []core.Workflow{core.AuthorRequestWorkflow, core.SuggestionWorkflow} {
		binder := core.NewModerationBinder("/admin/"+string(wf.Queue), d.PageSize, d.Navigator)
		s.queues[wf.Queue] = core.NewModerationController(wf, d.Moderation, d.Session, binder, log)
	}

	s.formats = core.NewFlagCoordinator(core.FormatCommit(d.Formats), d.Session, log)
	s.formats.Observe(func(set model.FlagSet[model.Format]) {
		s.books.Fetcher.Patch(func(items []model.Book) []model.Book {
			for i := range items {
				if items[i].ID == set.Owner {
					items[i].Formats = set.Values()
				}
			}
			return items
		})
	})
	s.shelfOps = core.NewFlagCoordinator(core.ShelfCommit(d.Shelves), d.Session, log)
	s.shelfOps.Observe(func(set model.FlagSet[string]) {
		s.shelves.Fetcher.Patch(func(items []model.Shelf) []model.Shelf {
			return slices.DeleteFunc(items, func(sh model.Shelf) bool { return !set.Has(sh.ID) })
		})
	})

	s.member.Protect(s.shelves)
	protected := make([]core.Unmounter, 0, len(s.queues))
	for _, c := range s.queues {
		protected = append(protected, c.View())
	}
	s.admin.Protect(protected...)
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.logRequests)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, core.RouteHome, http.StatusSeeOther)
	})
	r.Get(core.RouteLogin, s.loginPage)
	r.Post(core.RouteLogin, s.login)
	r.Post("/logout", s.logout)
	r.Get(core.RouteForbidden, s.forbidden)
	r.Get(core.RouteHome, s.listBooks)

	r.Group(func(r chi.Router) {
		r.Use(s.require(s.member))
		r.Post("/books/{id}/formats/{format}/{op}", s.toggleFormat)
		r.Get("/shelves", s.listShelves)
		r.Post("/shelves/{id}/delete", s.deleteShelf)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.require(s.admin))
		r.Get("/admin/{queue}", s.listQueue)
		r.Post("/admin/{queue}/{id}/{status}", s.transition)
	})
	return r
}

// require re-evaluates the guard on every request.
func (s *Server) require(g *core.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d := g.Evaluate(); !d.Allowed {
				http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("page", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}

// navigated answers with a redirect when the controllers asked to go
// somewhere else while handling r. Session loss always redirects; other
// targets redirect only for GET, since POST responses render the view the
// action left behind.
func (s *Server) navigated(w http.ResponseWriter, r *http.Request) bool {
	to, ok := s.nav.Take()
	if !ok {
		return false
	}
	if to == core.RouteLogin || r.Method == http.MethodGet {
		http.Redirect(w, r, to, http.StatusSeeOther)
		return true
	}
	w.Header().Set("Content-Location", to)
	return false
}

func (s *Server) sessionView() sessionView {
	sess, ok := s.session.Get()
	if !ok {
		return sessionView{Role: model.RoleAnonymous.String()}
	}
	return sessionView{Authenticated: true, Role: sess.Role.String()}
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageView{View: "login", Session: s.sessionView()})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderLoginError(w, model.ValidationError{Msg: "invalid form"})
		return
	}
	tok, err := s.auth.Login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if model.IsAuthority(err) {
		// bad credentials on the login form are a field error, not a lost session
		err = model.ValidationError{Field: "password", Msg: "invalid username or password"}
	}
	if err != nil {
		s.renderLoginError(w, err)
		return
	}
	if _, err := s.session.Login(r.Context(), tok); err != nil {
		s.log.Error("server issued an unusable credential", "err", err)
		s.renderLoginError(w, model.ServerError{Status: http.StatusBadGateway})
		return
	}
	s.nav.Take()
	next := r.PostFormValue("next")
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		next = core.RouteHome
	}
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *Server) renderLoginError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), messageView{View: "login", Error: toErrorView(err), Session: s.sessionView()})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.session.Logout(r.Context())
	s.nav.Take()
	http.Redirect(w, r, core.RouteLogin, http.StatusSeeOther)
}

func (s *Server) forbidden(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusForbidden, messageView{
		View:    "forbidden",
		Message: "No tienes permiso para ver esta página.",
		Session: s.sessionView(),
	})
}

func (s *Server) listBooks(w http.ResponseWriter, r *http.Request) {
	s.books.Binder.Sync(r.URL.RawQuery)
	st := s.books.Refresh(r.Context())
	if s.navigated(w, r) {
		return
	}
	if st.Err == nil && st.Data != nil {
		for _, b := range st.Data.Items {
			s.formats.Seed(model.NewFlagSet(b.ID, b.Formats...))
		}
	}
	pv := newPageView("books", s.books.Binder, st, toBookView)
	pv.Session = s.sessionView()
	writeJSON(w, http.StatusOK, pv)
}

func (s *Server) toggleFormat(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "id")
	f, ok := model.ParseFormat(chi.URLParam(r, "format"))
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, flagSetView{Owner: bookID, Error: toErrorView(model.ValidationError{Field: "format"})})
		return
	}
	var op model.Op
	switch chi.URLParam(r, "op") {
	case "add":
		op = model.OpAdd
	case "remove":
		op = model.OpRemove
	default:
		writeJSON(w, http.StatusUnprocessableEntity, flagSetView{Owner: bookID, Error: toErrorView(model.ValidationError{Field: "op"})})
		return
	}

	set, err := s.formats.Apply(r.Context(), model.Mutation[model.Format]{Owner: bookID, Flag: f, Op: op})
	if s.navigated(w, r) {
		return
	}
	values := make([]string, 0, set.Len())
	for _, v := range set.Values() {
		values = append(values, string(v))
	}
	writeJSON(w, statusFor(err), flagSetView{Owner: bookID, Values: values, Error: toErrorView(err)})
}

func (s *Server) listShelves(w http.ResponseWriter, r *http.Request) {
	s.shelves.Mount()
	s.shelves.Binder.Sync(r.URL.RawQuery)
	st := s.shelves.Refresh(r.Context())
	if s.navigated(w, r) {
		return
	}
	if sess, ok := s.session.Get(); ok && st.Err == nil && st.Data != nil {
		ids := make([]string, 0, len(st.Data.Items))
		for _, sh := range st.Data.Items {
			ids = append(ids, sh.ID)
		}
		s.shelfOps.Seed(model.NewFlagSet(sess.EntityID, ids...))
	}
	pv := newPageView("shelves", s.shelves.Binder, st, toShelfView)
	pv.Session = s.sessionView()
	writeJSON(w, http.StatusOK, pv)
}

func (s *Server) deleteShelf(w http.ResponseWriter, r *http.Request) {
	sess, _ := s.session.Get()
	before := s.shelves.State().Data
	_, err := s.shelfOps.Apply(r.Context(), model.Mutation[string]{Owner: sess.EntityID, Flag: chi.URLParam(r, "id"), Op: model.OpRemove})
	if err != nil && before != nil {
		// put back the row the optimistic removal dropped
		s.shelves.Fetcher.Patch(func([]model.Shelf) []model.Shelf { return before.Items })
	}
	if s.navigated(w, r) {
		return
	}
	pv := newPageView("shelves", s.shelves.Binder, s.shelves.State(), toShelfView)
	pv.Error = toErrorView(err)
	pv.Session = s.sessionView()
	writeJSON(w, statusFor(err), pv)
}

func (s *Server) queue(w http.ResponseWriter, r *http.Request) (*core.ModerationController, bool) {
	q, ok := model.ParseQueue(chi.URLParam(r, "queue"))
	if !ok {
		http.NotFound(w, r)
		return nil, false
	}
	c := s.queues[q]
	c.View().Mount()
	return c, true
}

func (s *Server) listQueue(w http.ResponseWriter, r *http.Request) {
	c, ok := s.queue(w, r)
	if !ok {
		return
	}
	c.View().Binder.Sync(r.URL.RawQuery)
	st := c.View().Refresh(r.Context())
	if s.navigated(w, r) {
		return
	}
	s.renderQueue(w, c, st, nil)
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request) {
	c, ok := s.queue(w, r)
	if !ok {
		return
	}
	target, ok := model.ParseStatus(chi.URLParam(r, "status"))
	if !ok {
		s.renderQueue(w, c, c.View().State(), model.ValidationError{Field: core.FilterStatus, Msg: "unknown status"})
		return
	}
	err := c.Transition(r.Context(), chi.URLParam(r, "id"), target)
	if s.navigated(w, r) {
		return
	}
	s.renderQueue(w, c, c.View().State(), err)
}

func (s *Server) renderQueue(w http.ResponseWriter, c *core.ModerationController, st core.FetchState[model.ModerationItem], actionErr error) {
	wf := c.Workflow()
	b := c.View().Binder
	pv := newPageView(string(wf.Queue), b, st, moderationViewFor(wf))
	current := c.Status()
	for _, status := range wf.Statuses {
		pv.Tabs = append(pv.Tabs, tabView{
			Status: string(status),
			Href:   b.Href(b.Read().WithFilter(core.FilterStatus, string(status))),
			Active: status == current,
		})
	}
	if actionErr != nil {
		pv.Error = toErrorView(actionErr)
	}
	pv.Session = s.sessionView()
	writeJSON(w, statusFor(actionErr), pv)
}

func statusFor(err error) int {
	switch model.KindOf(err) {
	case model.KindNone:
		return http.StatusOK
	case model.KindValidation:
		return http.StatusUnprocessableEntity
	case model.KindConflict:
		return http.StatusConflict
	case model.KindAuthority:
		return http.StatusUnauthorized
	case model.KindNetwork:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
