package mockapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"ranking-service/internal/api"
)

const (
	roleEditor = "editor"
	roleViewer = "viewer"
)

// Account is a login the mock accepts.
type Account struct {
	Email    string
	Password string
	Role     string
}

type account struct {
	email string
	hash  []byte
	role  string
}

type TokenClaims struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

type ctxClaimsKey struct{}

func hashAccounts(accounts []Account) (map[string]account, error) {
	out := make(map[string]account, len(accounts))
	for _, a := range accounts {
		email := strings.ToLower(strings.TrimSpace(a.Email))
		if email == "" || a.Password == "" {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(a.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", email, err)
		}
		role := a.Role
		if role == "" {
			role = roleViewer
		}
		out[email] = account{email: email, hash: hash, role: role}
	}
	return out, nil
}

var errBadCredentials = errors.New("invalid credentials")

func (s *Server) authenticate(email, password string) (account, error) {
	acc, ok := s.accounts[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return account{}, errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		return account{}, errBadCredentials
	}
	return acc, nil
}

func (s *Server) issueToken(acc account) (string, error) {
	now := s.now()
	claims := &TokenClaims{
		Email:     acc.email,
		Role:      acc.role,
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   acc.email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func (s *Server) parseToken(raw string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.TokenType != "access" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// requireEditor lets through requests carrying a valid editor token: a
// missing, malformed or expired token is 401, a valid non-editor token 403.
func (s *Server) requireEditor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(api.TokenHeader)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "missing access token")
			return
		}
		claims, err := s.parseToken(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if claims.Role != roleEditor {
			writeError(w, http.StatusForbidden, "editor role required")
			return
		}
		ctx := context.WithValue(r.Context(), ctxClaimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFrom(ctx context.Context) *TokenClaims {
	c, _ := ctx.Value(ctxClaimsKey{}).(*TokenClaims)
	return c
}

func defaultNow() time.Time { return time.Now() }
