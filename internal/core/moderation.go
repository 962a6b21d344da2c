package core

import (
	"book-portal/internal/core/model"
	"context"
	"fmt"
	"log/slog"
	"slices"
)

// FilterStatus is the query key a moderation view filters on.
const FilterStatus = "status"

// Workflow is one moderation queue's status set and its legal transitions.
type Workflow struct {
	Queue       model.Queue
	Statuses    []model.ModerationStatus
	transitions map[model.ModerationStatus][]model.ModerationStatus
}

var (
	AuthorRequestWorkflow = Workflow{
		Queue:    model.QueueAuthorRequests,
		Statuses: []model.ModerationStatus{model.StatusPending, model.StatusAccepted, model.StatusRejected},
		transitions: map[model.ModerationStatus][]model.ModerationStatus{
			model.StatusPending: {model.StatusAccepted, model.StatusRejected},
		},
	}
	SuggestionWorkflow = Workflow{
		Queue:    model.QueueSuggestions,
		Statuses: []model.ModerationStatus{model.StatusPending, model.StatusAccepted, model.StatusAdded, model.StatusRejected},
		transitions: map[model.ModerationStatus][]model.ModerationStatus{
			model.StatusPending:  {model.StatusAccepted, model.StatusRejected},
			model.StatusAccepted: {model.StatusAdded},
		},
	}
)

func WorkflowFor(q model.Queue) (Workflow, bool) {
	switch q {
	case model.QueueAuthorRequests:
		return AuthorRequestWorkflow, true
	case model.QueueSuggestions:
		return SuggestionWorkflow, true
	}
	return Workflow{}, false
}

func (w Workflow) Valid(s model.ModerationStatus) bool {
	return slices.Contains(w.Statuses, s)
}

func (w Workflow) Allows(from, to model.ModerationStatus) bool {
	return slices.Contains(w.transitions[from], to)
}

// Targets lists the statuses reachable from s in one step.
func (w Workflow) Targets(s model.ModerationStatus) []model.ModerationStatus {
	return slices.Clone(w.transitions[s])
}

type ModerationOption func(*ModerationController)

// WithFollowTarget makes the controller switch to the target status tab after a
// transition, for hosts that display every tab of the queue.
func WithFollowTarget() ModerationOption {
	return func(c *ModerationController) { c.followTarget = true }
}

// ModerationController lists a queue by status and requests transitions.
// After any confirmed transition it re-fetches instead of patching locally.
type ModerationController struct {
	wf           Workflow
	svc          ModerationService
	session      *SessionStore
	view         *View[model.ModerationItem]
	followTarget bool
	log          *slog.Logger
}

// NewModerationController builds the queue's view on binder, which must
// recognise the "status" filter.
func NewModerationController(wf Workflow, svc ModerationService, session *SessionStore, binder *QueryBinder, log *slog.Logger, opts ...ModerationOption) *ModerationController {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With("queue", string(wf.Queue))
	source := func(ctx context.Context, credential string, q model.PageQuery) (model.PagedResult[model.ModerationItem], error) {
		if q.Filter(FilterStatus) == "" {
			q = q.WithFilter(FilterStatus, string(model.StatusPending)).WithPage(q.Page)
		}
		return svc.ListModeration(ctx, credential, wf.Queue, q)
	}
	c := &ModerationController{
		wf:      wf,
		svc:     svc,
		session: session,
		view:    NewView(binder, NewFetcher(source, session, log, WithName(string(wf.Queue)))),
		log:     log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewModerationBinder is the binder a moderation view expects: status filter,
// defaulting to pending.
func NewModerationBinder(path string, pageSize int, nav Navigator) *QueryBinder {
	return NewQueryBinder(path, pageSize, nav, []string{FilterStatus}, WithFilterDefault(FilterStatus, string(model.StatusPending)))
}

func (c *ModerationController) Workflow() Workflow { return c.wf }

func (c *ModerationController) View() *View[model.ModerationItem] { return c.view }

// Status is the tab currently shown.
func (c *ModerationController) Status() model.ModerationStatus {
	if st, ok := model.ParseStatus(c.view.Query().Filter(FilterStatus)); ok {
		return st
	}
	return model.StatusPending
}

func (c *ModerationController) ListByStatus(ctx context.Context, status model.ModerationStatus, page int) (FetchState[model.ModerationItem], error) {
	if !c.wf.Valid(status) {
		return c.view.State(), model.ValidationError{Field: FilterStatus, Msg: fmt.Sprintf("%q is not a status of %s", status, c.wf.Queue)}
	}
	q := c.view.Query().WithFilter(FilterStatus, string(status)).WithPage(max(page, 1))
	st := c.view.SetQuery(ctx, q)
	return st, st.Err
}

// Transition asks the server to move one item to target. Transitions outside
// the workflow table never reach the server.
func (c *ModerationController) Transition(ctx context.Context, itemID string, target model.ModerationStatus) error {
	from := c.currentStatusOf(itemID)
	if !c.wf.Valid(target) || !c.wf.Allows(from, target) {
		return model.ValidationError{
			Field: FilterStatus,
			Msg:   fmt.Sprintf("%s cannot go from %s to %s", c.wf.Queue, from, target),
			Err:   model.ErrIllegalTransition,
		}
	}

	cred, err := c.session.Credential()
	if err != nil {
		c.session.HandleAuthorityFailure(ctx)
		return err
	}

	_, err = c.svc.TransitionModeration(ctx, cred, c.wf.Queue, itemID, target)
	switch kind := model.KindOf(err); kind {
	case model.KindNone:
		next := from
		if c.followTarget {
			next = target
		}
		c.log.Info("transition confirmed", "item", itemID, "from", string(from), "to", string(target))
		c.view.SetFilter(ctx, FilterStatus, string(next))
		return nil
	case model.KindAuthority:
		c.session.HandleAuthorityFailure(ctx)
		return err
	case model.KindConflict:
		c.log.Warn("transition refused, resynchronising", "item", itemID, "err", err)
		c.view.Refresh(ctx)
		return err
	default:
		c.log.Warn("transition failed", "item", itemID, "kind", kind.String(), "err", err)
		return err
	}
}

// currentStatusOf prefers the item's status on the loaded page and falls back
// to the tab being shown.
func (c *ModerationController) currentStatusOf(itemID string) model.ModerationStatus {
	if data := c.view.State().Data; data != nil {
		for _, it := range data.Items {
			if it.ID == itemID {
				return it.Status
			}
		}
	}
	return c.Status()
}
