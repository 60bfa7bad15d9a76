package ranking

import "context"

// Created is the server's answer to creating an item.
type Created struct {
	ID        string `json:"id"`
	VoteCount int    `json:"voteCount"`
}

// Remote is the ranking REST API, per namespace.
type Remote interface {
	List(ctx context.Context, namespace string) ([]Item, error)
	Create(ctx context.Context, namespace string, f Fields) (Created, error)
	Vote(ctx context.Context, namespace, id string) error
	Update(ctx context.Context, namespace, token string, item Item) error
	Delete(ctx context.Context, namespace, token, id string) error
}

// Authenticator exchanges credentials for an access token.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
}
