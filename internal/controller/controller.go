// Package controller keeps a paginated, filterable view of a remote user
// collection in sync with the server.
//
// Every change that affects the visible page (filters, page window, a
// successful create, update or delete) is followed by an explicit refetch.
// The server stays the source of truth: nothing is spliced into the local
// page.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/simp-lee/userlist/internal/domain"
)

// Controller owns the list state. Create one per session and pass it to the
// consumers that need it. It is safe for concurrent use.
type Controller struct {
	collection   domain.UserCollection
	logger       *slog.Logger
	discardStale bool

	mu        sync.Mutex
	state     State
	version   uint64
	issued    uint64
	listeners []listener
	nextID    int

	// deliverMu is held while listeners run so they see snapshots in commit
	// order. delivered is the version of the last snapshot handed out.
	deliverMu sync.Mutex
	delivered uint64
}

type listener struct {
	id int
	fn func(State)
}

// Option configures a Controller.
type Option func(*config)

type config struct {
	pageSize     int
	filters      Filters
	logger       *slog.Logger
	discardStale bool
	listeners    []func(State)
}

// WithPageSize sets the initial page size. Non-positive values are ignored.
func WithPageSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithFilters sets the filters the first fetch uses.
func WithFilters(f Filters) Option {
	return func(c *config) { c.filters = f }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithListener registers fn to receive new snapshots. See Subscribe.
func WithListener(fn func(State)) Option {
	return func(c *config) {
		if fn != nil {
			c.listeners = append(c.listeners, fn)
		}
	}
}

// WithDiscardStaleResponses makes the controller ignore a list response when
// a newer refresh was issued after it. Without it, overlapping refreshes
// resolve in arrival order and the last one to arrive wins.
func WithDiscardStaleResponses() Option {
	return func(c *config) { c.discardStale = true }
}

// New creates a Controller over the given collection. It does not fetch;
// call Refresh to load the first page.
func New(collection domain.UserCollection, opts ...Option) *Controller {
	if collection == nil {
		panic("controller.New: collection must not be nil")
	}
	cfg := config{pageSize: DefaultPageSize, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Controller{
		collection:   collection,
		logger:       cfg.logger,
		discardStale: cfg.discardStale,
		state:        initialState(cfg.pageSize, cfg.filters),
	}
	for _, fn := range cfg.listeners {
		c.Subscribe(fn)
	}
	return c
}

// State returns the current snapshot. The caller may keep and modify it.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Subscribe registers fn to be called with new snapshots in the order the
// transitions are committed. A snapshot already superseded by a delivered one
// is skipped, so the last snapshot a listener sees matches State once the
// controller is idle. Listeners run one at a time on the goroutine that made
// the transition and must not call the controller's mutating methods.
// The returned function removes the subscription.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listener{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, l := range c.listeners {
			if l.id == id {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// Refresh fetches the page described by the current filters and pagination.
// While it runs the previous records stay visible and Loading is true. On
// failure the error message is stored in the state and also returned; the
// previous records and total are kept. With WithDiscardStaleResponses, a
// response overtaken by a newer refresh is dropped and Refresh returns nil.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.issued++
	seq := c.issued
	next, version := c.commitLocked(action{typ: actionFetchInit})
	q := next.Query()
	c.mu.Unlock()
	c.notify(next, version)

	c.logger.DebugContext(ctx, "refreshing user list",
		slog.Int("limit", q.Limit),
		slog.Int("offset", q.Offset),
		slog.String("status", string(q.Status)),
		slog.String("search", q.Search),
	)

	res, err := c.collection.List(ctx, q)

	c.mu.Lock()
	var a action
	switch {
	case c.discardStale && seq != c.issued:
		a = action{typ: actionFetchDiscard}
	case err != nil:
		a = action{typ: actionFetchFailure, err: err.Error()}
	default:
		a = action{typ: actionFetchSuccess, result: normalize(res, q.Limit)}
	}
	next, version = c.commitLocked(a)
	c.mu.Unlock()
	c.notify(next, version)

	if a.typ == actionFetchDiscard {
		// A newer refresh owns the state, including any error it reports.
		c.logger.DebugContext(ctx, "discarded stale list response",
			slog.Uint64("seq", seq),
			slog.Any("error", err),
		)
		return nil
	}
	if err != nil {
		c.logger.WarnContext(ctx, "user list refresh failed", slog.Any("error", err))
		return err
	}
	return nil
}

// SetFilters merges patch into the filters, moves back to the first page and
// refreshes. The offset is already 0 by the time the fetch is issued.
func (c *Controller) SetFilters(ctx context.Context, patch FilterPatch) error {
	if patch.Status != nil && *patch.Status != "" && !patch.Status.Valid() {
		return domain.NewAppError(domain.CodeValidation, fmt.Sprintf("invalid status filter %q", *patch.Status), nil)
	}
	c.dispatch(action{typ: actionSetFilters, filters: patch})
	return c.Refresh(ctx)
}

// SetPagination merges patch into the page window and refreshes. A window
// with a non-positive limit or a negative offset is rejected and the state is
// left unchanged.
func (c *Controller) SetPagination(ctx context.Context, patch PaginationPatch) error {
	if patch.Limit != nil && *patch.Limit <= 0 {
		return domain.NewAppError(domain.CodeValidation, fmt.Sprintf("invalid page size %d: must be positive", *patch.Limit), nil)
	}
	if patch.Offset != nil && *patch.Offset < 0 {
		return domain.NewAppError(domain.CodeValidation, fmt.Sprintf("invalid offset %d: must not be negative", *patch.Offset), nil)
	}
	c.dispatch(action{typ: actionSetPagination, pagination: patch})
	return c.Refresh(ctx)
}

// Create adds a user on the server and refreshes the list on success. A
// failure is returned to the caller and leaves the state untouched.
func (c *Controller) Create(ctx context.Context, fields domain.UserFields) (*domain.User, error) {
	user, err := c.collection.Create(ctx, fields)
	if err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "user created", slog.String("id", user.ID.String()))
	c.refreshAfter(ctx, "create")
	return user, nil
}

// Update replaces a user's fields on the server and refreshes the list on
// success. A failure is returned to the caller and leaves the state untouched.
func (c *Controller) Update(ctx context.Context, id domain.ID, fields domain.UserFields) (*domain.User, error) {
	user, err := c.collection.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	c.logger.InfoContext(ctx, "user updated", slog.String("id", id.String()))
	c.refreshAfter(ctx, "update")
	return user, nil
}

// Remove deletes a user on the server. If that empties the current page and
// it is not the first one, the window steps back one page; otherwise the
// current page is refreshed. The decision uses the total seen before the
// delete. A failed delete is returned to the caller and is not recorded as
// a list error.
func (c *Controller) Remove(ctx context.Context, id domain.ID) error {
	before := c.State()

	if err := c.collection.Delete(ctx, id); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "user removed", slog.String("id", id.String()))

	p := before.Pagination
	if before.Total-1 <= p.Offset && p.Offset > 0 {
		offset := max(p.Offset-p.Limit, 0)
		c.dispatch(action{typ: actionSetPagination, pagination: PaginationPatch{Offset: &offset}})
		c.logger.DebugContext(ctx, "stepped back one page after removing last record",
			slog.Int("from", p.Offset),
			slog.Int("to", offset),
		)
	}
	c.refreshAfter(ctx, "remove")
	return nil
}

// refreshAfter refetches after a successful mutation. A refresh failure is
// already recorded in the state, so it is only logged here.
func (c *Controller) refreshAfter(ctx context.Context, op string) {
	if err := c.Refresh(ctx); err != nil {
		c.logger.WarnContext(ctx, "refresh after mutation failed",
			slog.String("op", op),
			slog.Any("error", err),
		)
	}
}

func (c *Controller) dispatch(a action) {
	c.mu.Lock()
	next, version := c.commitLocked(a)
	c.mu.Unlock()
	c.notify(next, version)
}

// commitLocked applies a and returns the new state with its version.
// c.mu must be held.
func (c *Controller) commitLocked(a action) (State, uint64) {
	c.state = reduce(c.state, a)
	c.version++
	return c.state, c.version
}

// notify hands s to the listeners unless a newer snapshot already went out.
func (c *Controller) notify(s State, version uint64) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	if version <= c.delivered {
		return
	}
	c.delivered = version

	c.mu.Lock()
	fns := make([]func(State), len(c.listeners))
	for i, l := range c.listeners {
		fns[i] = l.fn
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(s.clone())
	}
}

// normalize guards the page invariants against a misbehaving collection.
func normalize(res *domain.ListResult, limit int) *domain.ListResult {
	if res == nil {
		return &domain.ListResult{Records: []domain.User{}}
	}
	records := res.Records
	if records == nil {
		records = []domain.User{}
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return &domain.ListResult{Records: records, Total: max(res.Total, 0)}
}
