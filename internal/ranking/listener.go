package ranking

import "context"

// Listener receives the events the presentation layer renders.
type Listener interface {
	OnVoteResult(ctx context.Context, r VoteResult)
	OnRefreshed(ctx context.Context, namespace string, items []Item)
	OnUnauthorized(ctx context.Context)
	OnForbidden(ctx context.Context)
}

// NopListener ignores every event.
type NopListener struct{}

func (NopListener) OnVoteResult(context.Context, VoteResult)    {}
func (NopListener) OnRefreshed(context.Context, string, []Item) {}
func (NopListener) OnUnauthorized(context.Context)              {}
func (NopListener) OnForbidden(context.Context)                 {}
