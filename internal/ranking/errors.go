package ranking

import (
	"errors"
	"net/http"
)

var (
	// ErrQuotaExceeded and ErrDuplicateVote are expected outcomes detected
	// locally; they never reach the network.
	ErrQuotaExceeded = errors.New("vote quota exceeded")
	ErrDuplicateVote = errors.New("already voted for this item")

	ErrUnauthorized       = errors.New("session is missing or expired")
	ErrForbidden          = errors.New("session lacks editor privileges")
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrNotPersisted is returned when an edit targets an item without id.
	ErrNotPersisted = errors.New("item has not been saved yet")
	ErrUnknownItem  = errors.New("item is not in the ranking")
	ErrInvalidDelta = errors.New("exactly one of item id or new item is required")
	ErrNameRequired = errors.New("name is required")
	ErrDialogClosed = errors.New("no item is open for editing")
)

// TransportError is any remote failure that is not an auth problem: network
// errors, 5xx, unexpected statuses, undecodable bodies. Local state is
// never touched when one is returned.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "ranking: " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// statusCoder is implemented by remote errors that carry an HTTP status.
type statusCoder interface {
	StatusCode() int
}

func statusOf(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return 0
}

func isUnauthorized(err error) bool { return statusOf(err) == http.StatusUnauthorized }
func isForbidden(err error) bool    { return statusOf(err) == http.StatusForbidden }
