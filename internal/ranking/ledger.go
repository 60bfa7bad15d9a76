package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"ranking-service/internal/kv"
)

// VoteQuota is how many votes one browser may cast per ranking.
const VoteQuota = 3

type DenyReason string

const (
	ReasonNone          DenyReason = ""
	ReasonQuotaExceeded DenyReason = "quota_exceeded"
	ReasonDuplicateVote DenyReason = "duplicate_vote"
)

// Err maps the reason to its sentinel error, nil for ReasonNone.
func (r DenyReason) Err() error {
	switch r {
	case ReasonQuotaExceeded:
		return ErrQuotaExceeded
	case ReasonDuplicateVote:
		return ErrDuplicateVote
	default:
		return nil
	}
}

type Decision struct {
	Allowed bool
	Reason  DenyReason
}

type VoteRecord struct {
	ItemID string `json:"itemId"`
}

// LedgerKey is the storage key holding a namespace's vote records.
func LedgerKey(namespace string) string {
	return "ranking-" + namespace + "-vote-record"
}

// Ledger remembers which items this client already voted for. Every write
// re-reads and rewrites the whole collection under the ledger mutex.
type Ledger struct {
	mu    sync.Mutex
	store kv.Store
	quota int
	log   *zap.Logger
}

func NewLedger(store kv.Store, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{store: store, quota: VoteQuota, log: log}
}

// Records returns the namespace's vote records. Missing or corrupt storage
// reads as no votes.
func (l *Ledger) Records(ctx context.Context, namespace string) ([]VoteRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read(ctx, namespace)
}

// CanVote reports whether a vote for itemID would be accepted.
func (l *Ledger) CanVote(ctx context.Context, namespace, itemID string) (Decision, error) {
	return l.canVote(ctx, namespace, itemID, nil)
}

// canVote counts reserved ids (votes in flight) as if already recorded.
func (l *Ledger) canVote(ctx context.Context, namespace, itemID string, reserved []string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.read(ctx, namespace)
	if err != nil {
		return Decision{}, err
	}
	return decide(records, reserved, itemID, l.quota), nil
}

// RecordVote appends itemID and persists the namespace collection. The
// checks are repeated on the freshly read collection.
func (l *Ledger) RecordVote(ctx context.Context, namespace, itemID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.read(ctx, namespace)
	if err != nil {
		return err
	}
	if d := decide(records, nil, itemID, l.quota); !d.Allowed {
		return d.Reason.Err()
	}
	records = append(records, VoteRecord{ItemID: itemID})

	b, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("ledger: encode records: %w", err)
	}
	if err := l.store.Set(ctx, LedgerKey(namespace), string(b)); err != nil {
		return fmt.Errorf("ledger: save records: %w", err)
	}
	return nil
}

func (l *Ledger) read(ctx context.Context, namespace string) ([]VoteRecord, error) {
	raw, ok, err := l.store.Get(ctx, LedgerKey(namespace))
	if err != nil {
		return nil, fmt.Errorf("ledger: load records: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var records []VoteRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		l.log.Warn("ledger: ignoring corrupt vote records",
			zap.String("namespace", namespace), zap.Error(err))
		return nil, nil
	}
	return records, nil
}

// decide checks the quota before duplicates. An empty itemID (an item the
// server has not named yet) can never be a duplicate.
func decide(records []VoteRecord, reserved []string, itemID string, quota int) Decision {
	if len(records)+len(reserved) >= quota {
		return Decision{Reason: ReasonQuotaExceeded}
	}
	if itemID != "" {
		for _, r := range records {
			if r.ItemID == itemID {
				return Decision{Reason: ReasonDuplicateVote}
			}
		}
		for _, id := range reserved {
			if id == itemID {
				return Decision{Reason: ReasonDuplicateVote}
			}
		}
	}
	return Decision{Allowed: true}
}
