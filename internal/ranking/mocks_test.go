package ranking

import (
	"context"
	"errors"
	"fmt"

	"github.com/stretchr/testify/mock"

	"ranking-service/internal/kv"
)

type MockRemote struct {
	mock.Mock
}

func (m *MockRemote) List(ctx context.Context, namespace string) ([]Item, error) {
	args := m.Called(ctx, namespace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Item), args.Error(1)
}

func (m *MockRemote) Create(ctx context.Context, namespace string, f Fields) (Created, error) {
	args := m.Called(ctx, namespace, f)
	return args.Get(0).(Created), args.Error(1)
}

func (m *MockRemote) Vote(ctx context.Context, namespace, id string) error {
	return m.Called(ctx, namespace, id).Error(0)
}

func (m *MockRemote) Update(ctx context.Context, namespace, token string, item Item) error {
	return m.Called(ctx, namespace, token, item).Error(0)
}

func (m *MockRemote) Delete(ctx context.Context, namespace, token, id string) error {
	return m.Called(ctx, namespace, token, id).Error(0)
}

type MockAuth struct {
	mock.Mock
}

func (m *MockAuth) Login(ctx context.Context, email, password string) (string, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Error(1)
}

// statusErr carries an HTTP status the way the api client does.
type statusErr struct{ code int }

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e statusErr) StatusCode() int { return e.code }

// failingStore fails writes, reads pass through.
type failingStore struct {
	kv.Store
}

var errStoreDown = errors.New("store down")

func (failingStore) Set(context.Context, string, string) error { return errStoreDown }
func (failingStore) Delete(context.Context, string) error      { return errStoreDown }

// recordingListener captures notifications.
type recordingListener struct {
	mock.Mock
}

func (l *recordingListener) OnVoteResult(ctx context.Context, r VoteResult) {
	l.Called(r.Outcome)
}

func (l *recordingListener) OnRefreshed(ctx context.Context, namespace string, items []Item) {
	l.Called(namespace, len(items))
}

func (l *recordingListener) OnUnauthorized(ctx context.Context) { l.Called("unauthorized") }
func (l *recordingListener) OnForbidden(ctx context.Context)    { l.Called("forbidden") }
