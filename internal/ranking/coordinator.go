package ranking

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultBatchConcurrency bounds the requests CastBatch keeps in flight.
const DefaultBatchConcurrency = 4

type Options struct {
	Namespace string
	Remote    Remote
	Ledger    *Ledger
	// Session is required for EditItem and DeleteItem.
	Session  *Session
	Listener Listener
	// Order defaults to the DefaultLocale order.
	Order *Order
	// Privileged enables editing for this ranking. Rankings without it are
	// vote-only even for signed-in editors.
	Privileged bool
	Logger     *zap.Logger
}

// Coordinator owns one ranking's candidate list and runs every state
// changing action against the remote API. Local state only changes after
// the server confirmed the change. Safe for concurrent use.
type Coordinator struct {
	ns         string
	remote     Remote
	ledger     *Ledger
	session    *Session
	listener   Listener
	order      *Order
	privileged bool
	log        *zap.Logger

	flight singleflight.Group

	mu      sync.Mutex
	items   []Item
	query   Query
	matches []Match

	// votes between ledger check and server answer hold a slot here
	resMu    sync.Mutex
	reserved map[uint64]string
	nextRes  uint64
}

func NewCoordinator(o Options) (*Coordinator, error) {
	if o.Namespace == "" {
		return nil, errors.New("ranking: namespace is required")
	}
	if o.Remote == nil {
		return nil, errors.New("ranking: remote is required")
	}
	if o.Ledger == nil {
		return nil, errors.New("ranking: ledger is required")
	}
	if o.Listener == nil {
		o.Listener = NopListener{}
	}
	if o.Order == nil {
		o.Order = defaultOrderFor()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return &Coordinator{
		ns:         o.Namespace,
		remote:     o.Remote,
		ledger:     o.Ledger,
		session:    o.Session,
		listener:   o.Listener,
		order:      o.Order,
		privileged: o.Privileged,
		log:        o.Logger.With(zap.String("namespace", o.Namespace)),
		reserved:   make(map[uint64]string),
	}, nil
}

func (c *Coordinator) Namespace() string { return c.ns }

// CanEdit reports whether edit controls should be offered right now.
func (c *Coordinator) CanEdit() bool {
	return c.privileged && c.session != nil && c.session.Authenticated()
}

// Items returns a copy of the full candidate list.
func (c *Coordinator) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneItems(c.items)
}

// Visible is the list to render: the visible matches of the active search,
// or every item when no search is active.
func (c *Coordinator) Visible() []Match {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visibleLocked()
}

func (c *Coordinator) visibleLocked() []Match {
	if c.matches != nil {
		return Visible(c.matches)
	}
	out := make([]Match, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, Match{Candidate: Persisted{Item: it}, Visible: true})
	}
	return out
}

// Search makes q the active search and returns the resulting render list.
// An inactive query clears the search.
func (c *Coordinator) Search(q Query) []Match {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = q
	c.matches = Search(c.items, q)
	return c.visibleLocked()
}

// ClearSearch drops the active search and refetches the list.
func (c *Coordinator) ClearSearch(ctx context.Context) ([]Item, error) {
	c.mu.Lock()
	c.query = Query{}
	c.matches = nil
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// Refresh replaces the list with the server's and clears any search.
func (c *Coordinator) Refresh(ctx context.Context) ([]Item, error) {
	items, err := c.remote.List(ctx, c.ns)
	if err != nil {
		c.log.Error("ranking: refresh failed", zap.Error(err))
		return nil, &TransportError{Op: "list", Err: err}
	}

	c.mu.Lock()
	c.items = cloneItems(items)
	c.query = Query{}
	c.matches = nil
	snapshot := cloneItems(c.items)
	c.mu.Unlock()

	c.log.Debug("ranking: refreshed", zap.Int("items", len(snapshot)))
	c.listener.OnRefreshed(ctx, c.ns, snapshot)
	return snapshot, nil
}

// CastVote votes for cand. Persisted items are incremented on the server,
// drafts are created there first. Identical concurrent votes share one
// request and one result.
func (c *Coordinator) CastVote(ctx context.Context, cand Candidate) (VoteResult, error) {
	if cand == nil {
		return VoteResult{}, ErrUnknownItem
	}
	v, err, _ := c.flight.Do(c.flightKey(cand), func() (any, error) {
		return c.castVote(ctx, cand)
	})
	res, _ := v.(VoteResult)
	return res, err
}

// CastBatch votes for every id concurrently and returns the results in
// input order. Denials are reported in the results; the returned error is
// the first failure that was not a denial.
func (c *Coordinator) CastBatch(ctx context.Context, ids []string) ([]VoteResult, error) {
	results := make([]VoteResult, len(ids))

	var g errgroup.Group
	g.SetLimit(DefaultBatchConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			res, err := c.CastVote(ctx, Persisted{Item: Item{ID: id}})
			results[i] = res
			if errors.Is(err, ErrQuotaExceeded) || errors.Is(err, ErrDuplicateVote) {
				return nil
			}
			return err
		})
	}
	err := g.Wait()
	return results, err
}

func (c *Coordinator) castVote(ctx context.Context, cand Candidate) (VoteResult, error) {
	snap := cand.Snapshot()
	if cand.IsPersisted() {
		it, ok := c.lookup(snap.ID)
		if !ok {
			res := VoteResult{Namespace: c.ns, ItemID: snap.ID, Name: snap.Name}
			return c.finish(ctx, res, VoteError, ErrUnknownItem)
		}
		snap = it
	}
	res := VoteResult{Namespace: c.ns, ItemID: snap.ID, Name: snap.Name}

	held, dec, err := c.reserve(ctx, snap.ID)
	if err != nil {
		return c.finish(ctx, res, VoteError, err)
	}
	if !dec.Allowed {
		outcome := VoteQuotaExceeded
		if dec.Reason == ReasonDuplicateVote {
			outcome = VoteDuplicate
		}
		return c.finish(ctx, res, outcome, dec.Reason.Err())
	}
	defer held.release()

	var delta Delta
	switch cnd := cand.(type) {
	case Persisted:
		if err := c.remote.Vote(ctx, c.ns, snap.ID); err != nil {
			return c.finish(ctx, res, VoteError, &TransportError{Op: "vote", Err: err})
		}
		delta = Delta{ItemID: snap.ID}
	case Draft:
		f := Fields{Name: cnd.Name, Artist: cnd.Artist}
		if err := f.validate(); err != nil {
			return c.finish(ctx, res, VoteError, err)
		}
		created, err := c.remote.Create(ctx, c.ns, f)
		if err != nil {
			return c.finish(ctx, res, VoteError, &TransportError{Op: "create", Err: err})
		}
		if created.ID == "" {
			return c.finish(ctx, res, VoteError,
				&TransportError{Op: "create", Err: errors.New("server returned no id")})
		}
		item := Item{ID: created.ID, Name: cnd.Name, Artist: cnd.Artist, VoteCount: created.VoteCount}
		res.ItemID = created.ID
		delta = Delta{NewItem: &item}
	default:
		return c.finish(ctx, res, VoteError, ErrUnknownItem)
	}

	// The server already counted the vote, so the list follows it even if
	// the ledger write fails.
	recordErr := held.commit(ctx, res.ItemID)
	if err := c.apply(delta); err != nil {
		return c.finish(ctx, res, VoteError, err)
	}
	if recordErr != nil {
		return c.finish(ctx, res, VoteError, recordErr)
	}
	return c.finish(ctx, res, VoteSuccess, nil)
}

func (c *Coordinator) finish(ctx context.Context, res VoteResult, outcome VoteOutcome, err error) (VoteResult, error) {
	res.Outcome = outcome
	res.Err = err

	fields := []zap.Field{zap.String("item", res.ItemID), zap.String("outcome", string(outcome))}
	switch outcome {
	case VoteSuccess:
		c.log.Info("ranking: vote counted", fields...)
	case VoteError:
		c.log.Error("ranking: vote failed", append(fields, zap.Error(err))...)
	default:
		c.log.Debug("ranking: vote denied", fields...)
	}

	c.listener.OnVoteResult(ctx, res)
	return res, err
}

// slot is a quota reservation held while a vote is in flight.
type slot struct {
	c   *Coordinator
	key uint64
}

// reserve checks the ledger counting in-flight votes and, when allowed,
// holds a slot until commit or release.
func (c *Coordinator) reserve(ctx context.Context, itemID string) (*slot, Decision, error) {
	c.resMu.Lock()
	defer c.resMu.Unlock()

	pending := make([]string, 0, len(c.reserved))
	for _, id := range c.reserved {
		pending = append(pending, id)
	}
	dec, err := c.ledger.canVote(ctx, c.ns, itemID, pending)
	if err != nil || !dec.Allowed {
		return nil, dec, err
	}

	c.nextRes++
	c.reserved[c.nextRes] = itemID
	return &slot{c: c, key: c.nextRes}, dec, nil
}

// commit records the vote and frees the slot in one step, so the vote is
// never counted twice by a concurrent reserve.
func (s *slot) commit(ctx context.Context, itemID string) error {
	s.c.resMu.Lock()
	defer s.c.resMu.Unlock()
	delete(s.c.reserved, s.key)
	return s.c.ledger.RecordVote(ctx, s.c.ns, itemID)
}

func (s *slot) release() {
	s.c.resMu.Lock()
	delete(s.c.reserved, s.key)
	s.c.resMu.Unlock()
}

func (c *Coordinator) apply(d Delta) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.order.ApplyVote(c.items, d)
	if err != nil {
		return err
	}
	c.items = items
	if c.query.Active() {
		c.matches = Search(c.items, c.query)
	}
	return nil
}

func (c *Coordinator) lookup(id string) (Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range c.items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

func (c *Coordinator) flightKey(cand Candidate) string {
	snap := cand.Snapshot()
	if cand.IsPersisted() {
		return c.ns + "/" + snap.ID
	}
	return c.ns + "/draft/" + Normalize(snap.Name) + "/" + Normalize(snap.Artist)
}

// EditItem renames an item and refetches the list on success.
func (c *Coordinator) EditItem(ctx context.Context, id string, f Fields) error {
	if id == "" {
		return ErrNotPersisted
	}
	if err := f.validate(); err != nil {
		return err
	}
	token, err := c.editorToken(ctx)
	if err != nil {
		return err
	}
	item := Item{ID: id, Name: f.Name, Artist: f.Artist}
	if err := c.remote.Update(ctx, c.ns, token, item); err != nil {
		return c.privilegedFailure(ctx, "update", err)
	}
	c.log.Info("ranking: item updated", zap.String("item", id))
	_, err = c.Refresh(ctx)
	return err
}

// DeleteItem removes an item and refetches the list on success.
func (c *Coordinator) DeleteItem(ctx context.Context, id string) error {
	if id == "" {
		return ErrNotPersisted
	}
	token, err := c.editorToken(ctx)
	if err != nil {
		return err
	}
	if err := c.remote.Delete(ctx, c.ns, token, id); err != nil {
		return c.privilegedFailure(ctx, "delete", err)
	}
	c.log.Info("ranking: item deleted", zap.String("item", id))
	_, err = c.Refresh(ctx)
	return err
}

func (c *Coordinator) editorToken(ctx context.Context) (string, error) {
	if !c.privileged {
		return "", ErrForbidden
	}
	if c.session == nil {
		c.listener.OnUnauthorized(ctx)
		return "", ErrUnauthorized
	}
	token, ok := c.session.Token()
	if !ok {
		c.listener.OnUnauthorized(ctx)
		return "", ErrUnauthorized
	}
	return token, nil
}

// privilegedFailure demotes the session on 401/403. Nothing else changes
// local state.
func (c *Coordinator) privilegedFailure(ctx context.Context, op string, err error) error {
	switch {
	case isUnauthorized(err):
		c.demote(ctx)
		c.listener.OnUnauthorized(ctx)
		return fmt.Errorf("ranking: %s: %w", op, ErrUnauthorized)
	case isForbidden(err):
		c.demote(ctx)
		c.listener.OnForbidden(ctx)
		return fmt.Errorf("ranking: %s: %w", op, ErrForbidden)
	default:
		c.log.Error("ranking: privileged call failed", zap.String("op", op), zap.Error(err))
		return &TransportError{Op: op, Err: err}
	}
}

func (c *Coordinator) demote(ctx context.Context) {
	if err := c.session.Clear(ctx); err != nil {
		c.log.Warn("ranking: clear session", zap.Error(err))
	}
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	copy(out, items)
	return out
}
