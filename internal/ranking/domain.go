// Package ranking is the ranking and vote-integrity engine: text
// normalization, the client-side vote ledger, fuzzy search with a
// create-on-miss fallback, the ranking order and the coordinator that keeps
// all of it in step with the remote ranking API.
package ranking

import "strings"

// Item is a candidate that the server knows about.
type Item struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Artist    string `json:"artist,omitempty"`
	VoteCount int    `json:"voteCount"`
}

// Fields are the editable parts of an item.
type Fields struct {
	Name   string `json:"name"`
	Artist string `json:"artist,omitempty"`
}

func (f Fields) validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrNameRequired
	}
	return nil
}

// Candidate is either a Persisted item or a Draft that only exists because a
// search found nothing. The set of implementations is closed.
type Candidate interface {
	Snapshot() Item
	IsPersisted() bool
	candidate()
}

// Persisted wraps an item with a server-assigned id.
type Persisted struct {
	Item
}

func (p Persisted) Snapshot() Item    { return p.Item }
func (p Persisted) IsPersisted() bool { return true }
func (Persisted) candidate()          {}

// Draft is a not-yet-created item built from raw search input. Voting for a
// draft creates it first.
type Draft struct {
	Name   string
	Artist string
}

func (d Draft) Snapshot() Item    { return Item{Name: d.Name, Artist: d.Artist} }
func (d Draft) IsPersisted() bool { return false }
func (Draft) candidate()          {}

// Match is a search annotation over a candidate.
type Match struct {
	Candidate Candidate
	Visible   bool
}

// Query is a two-field search. It is inactive when either part is empty.
type Query struct {
	NamePart   string
	ArtistPart string
}

func (q Query) Active() bool {
	return q.NamePart != "" && q.ArtistPart != ""
}

// Delta is one vote applied to the list: either an increment of an existing
// item or the admission of a freshly created one. Exactly one field is set.
type Delta struct {
	ItemID  string
	NewItem *Item
}

// VoteOutcome is what the presentation layer is told after a vote attempt.
type VoteOutcome string

const (
	VoteSuccess       VoteOutcome = "success"
	VoteQuotaExceeded VoteOutcome = "quotaExceeded"
	VoteDuplicate     VoteOutcome = "duplicateVote"
	VoteError         VoteOutcome = "error"
)

// VoteResult describes a finished vote attempt.
type VoteResult struct {
	Namespace string      `json:"namespace"`
	ItemID    string      `json:"itemId,omitempty"`
	Name      string      `json:"name"`
	Outcome   VoteOutcome `json:"outcome"`
	Err       error       `json:"-"`
}
