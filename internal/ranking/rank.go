package ranking

import (
	"sort"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultLocale is the collation locale used when none is configured.
var DefaultLocale = language.BrazilianPortuguese

// Order sorts rankings: most votes first, then by name under the locale's
// collation. Remaining ties fall back to raw name, artist and id so no two
// distinct items ever compare equal.
type Order struct {
	mu  sync.Mutex // collate.Collator is not safe for concurrent use
	col *collate.Collator
	tag language.Tag
}

func NewOrder(tag language.Tag) *Order {
	return &Order{col: collate.New(tag), tag: tag}
}

// ParseLocale resolves a BCP-47 tag, e.g. "pt-BR" or "en".
func ParseLocale(s string) (language.Tag, error) {
	if s == "" {
		return DefaultLocale, nil
	}
	return language.Parse(s)
}

func (o *Order) Locale() language.Tag { return o.tag }

// Sort returns a sorted copy of items.
func (o *Order) Sort(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)

	o.mu.Lock()
	defer o.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		return o.compare(out[i], out[j]) < 0
	})
	return out
}

func (o *Order) compare(a, b Item) int {
	if a.VoteCount != b.VoteCount {
		if a.VoteCount > b.VoteCount {
			return -1
		}
		return 1
	}
	if c := o.col.CompareString(a.Name, b.Name); c != 0 {
		return c
	}
	if c := compareStrings(a.Name, b.Name); c != 0 {
		return c
	}
	if c := compareStrings(a.Artist, b.Artist); c != 0 {
		return c
	}
	return compareStrings(a.ID, b.ID)
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ApplyVote applies d to a copy of items and returns it sorted. The input
// slice is not modified.
func (o *Order) ApplyVote(items []Item, d Delta) ([]Item, error) {
	if (d.ItemID == "") == (d.NewItem == nil) {
		return nil, ErrInvalidDelta
	}

	out := make([]Item, 0, len(items)+1)
	if d.NewItem != nil {
		out = append(out, items...)
		out = append(out, *d.NewItem)
		return o.Sort(out), nil
	}
	for _, it := range items {
		if it.ID == d.ItemID {
			it.VoteCount++
		}
		out = append(out, it)
	}
	return o.Sort(out), nil
}

var (
	defaultOrderOnce sync.Once
	defaultOrder     *Order
)

func defaultOrderFor() *Order {
	defaultOrderOnce.Do(func() { defaultOrder = NewOrder(DefaultLocale) })
	return defaultOrder
}

// Sort orders items with the default locale.
func Sort(items []Item) []Item { return defaultOrderFor().Sort(items) }

// ApplyVote applies d with the default locale.
func ApplyVote(items []Item, d Delta) ([]Item, error) {
	return defaultOrderFor().ApplyVote(items, d)
}
