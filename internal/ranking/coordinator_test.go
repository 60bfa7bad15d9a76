package ranking

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ranking-service/internal/kv"
)

const ns = "musicas"

type fixture struct {
	c       *Coordinator
	remote  *MockRemote
	ledger  *Ledger
	session *Session
	store   kv.Store
}

func newFixture(t *testing.T, items []Item, mutate ...func(*Options)) *fixture {
	t.Helper()
	f := &fixture{remote: new(MockRemote), store: kv.NewMemoryStore()}
	f.ledger = NewLedger(f.store, nil)
	f.session = NewSession(f.store, new(MockAuth), "", nil)

	o := Options{
		Namespace:  ns,
		Remote:     f.remote,
		Ledger:     f.ledger,
		Session:    f.session,
		Privileged: true,
	}
	for _, m := range mutate {
		m(&o)
	}
	c, err := NewCoordinator(o)
	require.NoError(t, err)
	f.c = c

	f.remote.On("List", mock.Anything, ns).Return(items, nil).Once()
	_, err = c.Refresh(context.Background())
	require.NoError(t, err)
	return f
}

func (f *fixture) signIn(t *testing.T, token string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, SessionKey(DefaultSessionNamespace), `{"accessToken":"`+token+`"}`))
	require.NoError(t, f.session.Load(ctx))
}

func (f *fixture) records(t *testing.T) []VoteRecord {
	t.Helper()
	r, err := f.ledger.Records(context.Background(), ns)
	require.NoError(t, err)
	return r
}

func seedVotes(t *testing.T, l *Ledger, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, l.RecordVote(context.Background(), ns, id))
	}
}

func item(id, name string, votes int) Item {
	return Item{ID: id, Name: name, Artist: "Artista", VoteCount: votes}
}

func TestNewCoordinator_Validation(t *testing.T) {
	l := NewLedger(kv.NewMemoryStore(), nil)
	_, err := NewCoordinator(Options{Remote: new(MockRemote), Ledger: l})
	assert.Error(t, err)
	_, err = NewCoordinator(Options{Namespace: ns, Ledger: l})
	assert.Error(t, err)
	_, err = NewCoordinator(Options{Namespace: ns, Remote: new(MockRemote)})
	assert.Error(t, err)
}

func TestRefresh(t *testing.T) {
	t.Run("replaces list and clears search", func(t *testing.T) {
		lis := new(recordingListener)
		lis.On("OnRefreshed", ns, 2).Return().Twice()
		f := newFixture(t, []Item{item("a", "A", 3), item("b", "B", 5)}, func(o *Options) { o.Listener = lis })

		f.c.Search(Query{NamePart: "zzz", ArtistPart: "zzz"})
		f.remote.On("List", mock.Anything, ns).Return([]Item{item("c", "C", 1), item("d", "D", 0)}, nil).Once()
		items, err := f.c.ClearSearch(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "d"}, ids(items))

		vis := f.c.Visible()
		require.Len(t, vis, 2)
		for _, m := range vis {
			assert.True(t, m.Candidate.IsPersisted())
		}
		lis.AssertExpectations(t)
	})

	t.Run("failure keeps list", func(t *testing.T) {
		f := newFixture(t, []Item{item("a", "A", 3)})
		f.remote.On("List", mock.Anything, ns).Return(nil, errors.New("timeout")).Once()
		_, err := f.c.Refresh(context.Background())
		var te *TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "list", te.Op)
		assert.Equal(t, []string{"a"}, ids(f.c.Items()))
	})
}

func TestCastVote_Success(t *testing.T) {
	f := newFixture(t, []Item{item("b", "B", 5), item("a", "A", 3), item("c", "C", 5)})
	f.remote.On("Vote", mock.Anything, ns, "a").Return(nil).Once()

	res, err := f.c.CastVote(context.Background(), Persisted{Item: Item{ID: "a"}})
	require.NoError(t, err)
	assert.Equal(t, VoteSuccess, res.Outcome)
	assert.Equal(t, "A", res.Name)

	got := f.c.Items()
	assert.Equal(t, []string{"b", "c", "a"}, ids(got))
	assert.Equal(t, 4, got[2].VoteCount)
	assert.Equal(t, []VoteRecord{{"a"}}, f.records(t))
}

func TestCastVote_Scenario(t *testing.T) {
	// A=3 votes, B=3 votes, user votes for B.
	f := newFixture(t, []Item{item("a", "A", 3), item("b", "B", 3)})
	f.remote.On("Vote", mock.Anything, ns, "b").Return(nil).Once()

	_, err := f.c.CastVote(context.Background(), Persisted{Item: Item{ID: "b"}})
	require.NoError(t, err)
	got := f.c.Items()
	assert.Equal(t, []string{"b", "a"}, ids(got))
	assert.Equal(t, 4, got[0].VoteCount)
}

func TestCastVote_DenialsStayLocal(t *testing.T) {
	t.Run("quota", func(t *testing.T) {
		f := newFixture(t, []Item{item("a", "A", 1), item("d", "D", 0)})
		seedVotes(t, f.ledger, "x", "y", "z")

		res, err := f.c.CastVote(context.Background(), Persisted{Item: Item{ID: "d"}})
		assert.ErrorIs(t, err, ErrQuotaExceeded)
		assert.Equal(t, VoteQuotaExceeded, res.Outcome)
		f.remote.AssertNotCalled(t, "Vote", mock.Anything, mock.Anything, mock.Anything)
		assert.Len(t, f.records(t), 3)
	})

	t.Run("duplicate", func(t *testing.T) {
		f := newFixture(t, []Item{item("a", "A", 1)})
		seedVotes(t, f.ledger, "a")

		res, err := f.c.CastVote(context.Background(), Persisted{Item: Item{ID: "a"}})
		assert.ErrorIs(t, err, ErrDuplicateVote)
		assert.Equal(t, VoteDuplicate, res.Outcome)
		f.remote.AssertNotCalled(t, "Vote", mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, 1, f.c.Items()[0].VoteCount)
	})

	t.Run("draft over quota", func(t *testing.T) {
		f := newFixture(t, nil)
		seedVotes(t, f.ledger, "x", "y", "z")

		_, err := f.c.CastVote(context.Background(), Draft{Name: "Nova", Artist: "Eu"})
		assert.ErrorIs(t, err, ErrQuotaExceeded)
		f.remote.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCastVote_ServerFailureChangesNothing(t *testing.T) {
	lis := new(recordingListener)
	lis.On("OnRefreshed", ns, 1).Return()
	lis.On("OnVoteResult", VoteError).Return().Once()
	f := newFixture(t, []Item{item("a", "A", 2)}, func(o *Options) { o.Listener = lis })
	f.remote.On("Vote", mock.Anything, ns, "a").Return(statusErr{http.StatusInternalServerError}).Once()

	res, err := f.c.CastVote(context.Background(), Persisted{Item: Item{ID: "a"}})
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "vote", te.Op)
	assert.Equal(t, VoteError, res.Outcome)
	assert.Equal(t, 2, f.c.Items()[0].VoteCount)
	assert.Empty(t, f.records(t))
	lis.AssertExpectations(t)

	// the failed attempt did not use up a quota slot
	f.remote.On("Vote", mock.Anything, ns, "a").Return(nil).Once()
	lis.On("OnVoteResult", VoteSuccess).Return().Once()
	_, err = f.c.CastVote(context.Background(), Persisted{Item: Item{ID: "a"}})
	require.NoError(t, err)
}

func TestCastVote_UnknownItem(t *testing.T) {
	f := newFixture(t, []Item{item("a", "A", 2)})
	res, err := f.c.CastVote(context.Background(), Persisted{Item: Item{ID: "gone"}})
	assert.ErrorIs(t, err, ErrUnknownItem)
	assert.Equal(t, VoteError, res.Outcome)
	f.remote.AssertNotCalled(t, "Vote", mock.Anything, mock.Anything, mock.Anything)

	_, err = f.c.CastVote(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnknownItem)
}

func TestCastVote_DraftCreates(t *testing.T) {
	f := newFixture(t, []Item{item("a", "Asa Branca", 4)})
	q := Query{NamePart: "Aquarela", ArtistPart: "Ary"}
	matches := f.c.Search(q)
	require.Len(t, matches, 1)
	draft := matches[0].Candidate
	require.False(t, draft.IsPersisted())

	f.remote.On("Create", mock.Anything, ns, Fields{Name: "Aquarela", Artist: "Ary"}).
		Return(Created{ID: "new-1", VoteCount: 1}, nil).Once()

	res, err := f.c.CastVote(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, VoteSuccess, res.Outcome)
	assert.Equal(t, "new-1", res.ItemID)

	assert.Equal(t, []string{"a", "new-1"}, ids(f.c.Items()))
	assert.Equal(t, []VoteRecord{{"new-1"}}, f.records(t))

	// the active search now shows the created item instead of the draft
	vis := f.c.Visible()
	require.Len(t, vis, 1)
	assert.True(t, vis[0].Candidate.IsPersisted())
	assert.Equal(t, "new-1", vis[0].Candidate.Snapshot().ID)
}

func TestCastVote_DraftFailures(t *testing.T) {
	t.Run("blank name", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.c.CastVote(context.Background(), Draft{Name: "  ", Artist: "x"})
		assert.ErrorIs(t, err, ErrNameRequired)
		f.remote.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("no id returned", func(t *testing.T) {
		f := newFixture(t, nil)
		f.remote.On("Create", mock.Anything, ns, mock.Anything).Return(Created{}, nil).Once()
		_, err := f.c.CastVote(context.Background(), Draft{Name: "N", Artist: "A"})
		var te *TransportError
		assert.ErrorAs(t, err, &te)
		assert.Empty(t, f.c.Items())
		assert.Empty(t, f.records(t))
	})

	t.Run("server error", func(t *testing.T) {
		f := newFixture(t, nil)
		f.remote.On("Create", mock.Anything, ns, mock.Anything).Return(Created{}, errors.New("down")).Once()
		_, err := f.c.CastVote(context.Background(), Draft{Name: "N", Artist: "A"})
		var te *TransportError
		assert.ErrorAs(t, err, &te)
		assert.Equal(t, "create", te.Op)
		assert.Empty(t, f.c.Items())
	})
}

func TestCastVote_LedgerWriteFailureStillAppliesServerResult(t *testing.T) {
	remote := new(MockRemote)
	store := failingStore{kv.NewMemoryStore()}
	c, err := NewCoordinator(Options{Namespace: ns, Remote: remote, Ledger: NewLedger(store, nil)})
	require.NoError(t, err)
	remote.On("List", mock.Anything, ns).Return([]Item{item("a", "A", 1)}, nil).Once()
	_, err = c.Refresh(context.Background())
	require.NoError(t, err)

	remote.On("Vote", mock.Anything, ns, "a").Return(nil).Once()
	res, err := c.CastVote(context.Background(), Persisted{Item: Item{ID: "a"}})
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, VoteError, res.Outcome)
	assert.Equal(t, 2, c.Items()[0].VoteCount)
}

func TestCastVote_ConcurrentNeverExceedsQuota(t *testing.T) {
	items := make([]Item, 10)
	for i := range items {
		items[i] = item(fmt.Sprintf("id-%d", i), fmt.Sprintf("Item %d", i), 0)
	}
	f := newFixture(t, items)
	f.remote.On("Vote", mock.Anything, ns, mock.Anything).Return(nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	outcomes := map[VoteOutcome]int{}
	for _, it := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _ := f.c.CastVote(context.Background(), Persisted{Item: Item{ID: it.ID}})
			mu.Lock()
			outcomes[res.Outcome]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, VoteQuota, outcomes[VoteSuccess])
	assert.Equal(t, len(items)-VoteQuota, outcomes[VoteQuotaExceeded])
	f.remote.AssertNumberOfCalls(t, "Vote", VoteQuota)
	assert.Len(t, f.records(t), VoteQuota)
}

func TestCastVote_SameItemTwiceCountsOnce(t *testing.T) {
	f := newFixture(t, []Item{item("a", "A", 0)})
	f.remote.On("Vote", mock.Anything, ns, "a").Return(nil)

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.c.CastVote(context.Background(), Persisted{Item: Item{ID: "a"}})
		}()
	}
	wg.Wait()

	f.remote.AssertNumberOfCalls(t, "Vote", 1)
	assert.Equal(t, 1, f.c.Items()[0].VoteCount)
	assert.Len(t, f.records(t), 1)
}

func TestCastBatch(t *testing.T) {
	t.Run("denials are results", func(t *testing.T) {
		f := newFixture(t, []Item{item("a", "A", 0), item("b", "B", 0), item("c", "C", 0), item("d", "D", 0)})
		f.remote.On("Vote", mock.Anything, ns, mock.Anything).Return(nil)

		results, err := f.c.CastBatch(context.Background(), []string{"a", "b", "c", "d"})
		require.NoError(t, err)
		require.Len(t, results, 4)

		count := map[VoteOutcome]int{}
		for _, r := range results {
			count[r.Outcome]++
		}
		assert.Equal(t, 3, count[VoteSuccess])
		assert.Equal(t, 1, count[VoteQuotaExceeded])
	})

	t.Run("transport failure is returned", func(t *testing.T) {
		f := newFixture(t, []Item{item("a", "A", 0), item("b", "B", 0)})
		f.remote.On("Vote", mock.Anything, ns, "a").Return(nil)
		f.remote.On("Vote", mock.Anything, ns, "b").Return(errors.New("reset"))

		results, err := f.c.CastBatch(context.Background(), []string{"a", "b"})
		var te *TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, VoteSuccess, results[0].Outcome)
		assert.Equal(t, VoteError, results[1].Outcome)
	})
}

func TestEditItem(t *testing.T) {
	ctx := context.Background()
	fields := Fields{Name: "Asa Branca (ao vivo)", Artist: "Luiz Gonzaga"}
	edited := Item{ID: "a", Name: fields.Name, Artist: fields.Artist}

	t.Run("success refetches", func(t *testing.T) {
		f := newFixture(t, []Item{item("a", "Asa Branca", 4)})
		f.signIn(t, "tok")
		assert.True(t, f.c.CanEdit())

		f.remote.On("Update", mock.Anything, ns, "tok", edited).Return(nil).Once()
		f.remote.On("List", mock.Anything, ns).Return([]Item{{ID: "a", Name: fields.Name, Artist: fields.Artist, VoteCount: 4}}, nil).Once()

		require.NoError(t, f.c.EditItem(ctx, "a", fields))
		assert.Equal(t, fields.Name, f.c.Items()[0].Name)
		f.remote.AssertExpectations(t)
	})

	t.Run("not privileged", func(t *testing.T) {
		f := newFixture(t, []Item{item("a", "A", 1)}, func(o *Options) { o.Privileged = false })
		f.signIn(t, "tok")
		assert.False(t, f.c.CanEdit())
		assert.ErrorIs(t, f.c.EditItem(ctx, "a", fields), ErrForbidden)
		f.remote.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("anonymous", func(t *testing.T) {
		lis := new(recordingListener)
		lis.On("OnRefreshed", ns, 1).Return()
		lis.On("OnUnauthorized", "unauthorized").Return().Once()
		f := newFixture(t, []Item{item("a", "A", 1)}, func(o *Options) { o.Listener = lis })
		assert.ErrorIs(t, f.c.EditItem(ctx, "a", fields), ErrUnauthorized)
		f.remote.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		lis.AssertExpectations(t)
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture(t, []Item{item("a", "A", 1)})
		f.signIn(t, "tok")
		assert.ErrorIs(t, f.c.EditItem(ctx, "a", Fields{Name: " "}), ErrNameRequired)
		assert.ErrorIs(t, f.c.EditItem(ctx, "", fields), ErrNotPersisted)
	})

	t.Run("expired token clears session", func(t *testing.T) {
		lis := new(recordingListener)
		lis.On("OnRefreshed", ns, 1).Return()
		lis.On("OnUnauthorized", "unauthorized").Return().Once()
		f := newFixture(t, []Item{item("a", "A", 1)}, func(o *Options) { o.Listener = lis })
		f.signIn(t, "old")
		f.remote.On("Update", mock.Anything, ns, "old", edited).Return(statusErr{http.StatusUnauthorized}).Once()

		assert.ErrorIs(t, f.c.EditItem(ctx, "a", fields), ErrUnauthorized)
		assert.False(t, f.session.Authenticated())
		assert.False(t, f.c.CanEdit())
		assert.Equal(t, "A", f.c.Items()[0].Name)
		_, found, _ := f.store.Get(ctx, SessionKey(DefaultSessionNamespace))
		assert.False(t, found)
		lis.AssertExpectations(t)
	})

	t.Run("forbidden demotes", func(t *testing.T) {
		lis := new(recordingListener)
		lis.On("OnRefreshed", ns, 1).Return()
		lis.On("OnForbidden", "forbidden").Return().Once()
		f := newFixture(t, []Item{item("a", "A", 1)}, func(o *Options) { o.Listener = lis })
		f.signIn(t, "viewer")
		f.remote.On("Update", mock.Anything, ns, "viewer", edited).Return(statusErr{http.StatusForbidden}).Once()

		assert.ErrorIs(t, f.c.EditItem(ctx, "a", fields), ErrForbidden)
		assert.False(t, f.session.Authenticated())
		lis.AssertExpectations(t)
	})

	t.Run("server error keeps session", func(t *testing.T) {
		f := newFixture(t, []Item{item("a", "A", 1)})
		f.signIn(t, "tok")
		f.remote.On("Update", mock.Anything, ns, "tok", edited).Return(statusErr{http.StatusBadGateway}).Once()

		var te *TransportError
		assert.ErrorAs(t, f.c.EditItem(ctx, "a", fields), &te)
		assert.True(t, f.session.Authenticated())
		assert.Equal(t, "A", f.c.Items()[0].Name)
	})
}

func TestDeleteItem(t *testing.T) {
	ctx := context.Background()

	t.Run("success refetches", func(t *testing.T) {
		f := newFixture(t, []Item{item("a", "A", 2), item("b", "B", 1)})
		f.signIn(t, "tok")
		f.remote.On("Delete", mock.Anything, ns, "tok", "a").Return(nil).Once()
		f.remote.On("List", mock.Anything, ns).Return([]Item{item("b", "B", 1)}, nil).Once()

		require.NoError(t, f.c.DeleteItem(ctx, "a"))
		assert.Equal(t, []string{"b"}, ids(f.c.Items()))
	})

	t.Run("expired token", func(t *testing.T) {
		f := newFixture(t, []Item{item("a", "A", 2)})
		f.signIn(t, "old")
		f.remote.On("Delete", mock.Anything, ns, "old", "a").Return(statusErr{http.StatusUnauthorized}).Once()

		assert.ErrorIs(t, f.c.DeleteItem(ctx, "a"), ErrUnauthorized)
		assert.False(t, f.session.Authenticated())
		assert.Equal(t, []string{"a"}, ids(f.c.Items()))
	})
}

func TestDialogThroughCoordinator(t *testing.T) {
	f := newFixture(t, []Item{item("a", "A", 2)})
	f.signIn(t, "tok")
	d := NewDialog(f.c)

	f.remote.On("Update", mock.Anything, ns, "tok", Item{ID: "a", Name: "B"}).Return(nil).Once()
	f.remote.On("List", mock.Anything, ns).Return([]Item{{ID: "a", Name: "B", VoteCount: 2}}, nil).Once()

	require.True(t, d.Open(Persisted{Item: f.c.Items()[0]}))
	require.NoError(t, d.Confirm(context.Background(), Fields{Name: "B"}))
	assert.False(t, d.IsOpen())
	assert.Equal(t, "B", f.c.Items()[0].Name)
}
