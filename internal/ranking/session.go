package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"ranking-service/internal/kv"
)

// DefaultSessionNamespace prefixes the session key when none is given.
const DefaultSessionNamespace = "rankings"

// SessionKey is the storage key for the persisted access token.
func SessionKey(namespace string) string {
	return namespace + "-session"
}

type sessionData struct {
	AccessToken string `json:"accessToken"`
}

// Session holds the editor access token. Anonymous until Login succeeds or
// a stored token is loaded.
type Session struct {
	mu    sync.RWMutex
	store kv.Store
	auth  Authenticator
	key   string
	token string
	log   *zap.Logger
}

func NewSession(store kv.Store, auth Authenticator, namespace string, log *zap.Logger) *Session {
	if namespace == "" {
		namespace = DefaultSessionNamespace
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{store: store, auth: auth, key: SessionKey(namespace), log: log}
}

// Load reads the stored token. A corrupt entry leaves the session anonymous.
func (s *Session) Load(ctx context.Context) error {
	raw, ok, err := s.store.Get(ctx, s.key)
	if err != nil {
		return fmt.Errorf("session: load: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	if !ok || raw == "" {
		return nil
	}
	var data sessionData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		s.log.Warn("session: ignoring corrupt session entry", zap.Error(err))
		return nil
	}
	s.token = data.AccessToken
	return nil
}

// Login trades credentials for a token and persists it.
func (s *Session) Login(ctx context.Context, email, password string) error {
	if s.auth == nil {
		return errors.New("session: no authenticator configured")
	}
	token, err := s.auth.Login(ctx, email, password)
	if err != nil {
		if isUnauthorized(err) {
			return ErrInvalidCredentials
		}
		return &TransportError{Op: "login", Err: err}
	}
	if token == "" {
		return &TransportError{Op: "login", Err: errors.New("empty access token")}
	}

	b, err := json.Marshal(sessionData{AccessToken: token})
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := s.store.Set(ctx, s.key, string(b)); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// Clear demotes the session to anonymous and removes the stored token. The
// in-memory token is dropped even when the store fails.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	if err := s.store.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("session: clear: %w", err)
	}
	return nil
}

func (s *Session) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

func (s *Session) Authenticated() bool {
	_, ok := s.Token()
	return ok
}
