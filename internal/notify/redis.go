package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ranking-service/internal/ranking"
)

// DefaultChannel is the pub/sub channel events go to.
const DefaultChannel = "broadcast"

const publishTimeout = 2 * time.Second

// Event is the JSON envelope published for every listener call.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// RedisPublisher publishes listener events so other processes (a realtime
// gateway, a dashboard) can follow one client's ranking. Publish failures
// are logged and dropped.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedisPublisher(rdb *redis.Client, channel string, log *zap.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisPublisher{rdb: rdb, channel: channel, log: log}
}

func (p *RedisPublisher) OnVoteResult(ctx context.Context, r ranking.VoteResult) {
	payload := map[string]any{
		"namespace": r.Namespace,
		"itemId":    r.ItemID,
		"name":      r.Name,
		"outcome":   r.Outcome,
	}
	if r.Err != nil {
		payload["error"] = r.Err.Error()
	}
	p.publish(ctx, Event{Type: "ranking.vote.result", Payload: payload})
}

func (p *RedisPublisher) OnRefreshed(ctx context.Context, namespace string, items []ranking.Item) {
	p.publish(ctx, Event{Type: "ranking.refreshed", Payload: map[string]any{
		"namespace": namespace,
		"items":     items,
	}})
}

func (p *RedisPublisher) OnUnauthorized(ctx context.Context) {
	p.publish(ctx, Event{Type: "session.unauthorized"})
}

func (p *RedisPublisher) OnForbidden(ctx context.Context) {
	p.publish(ctx, Event{Type: "session.forbidden"})
}

func (p *RedisPublisher) publish(ctx context.Context, ev Event) {
	if p.rdb == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("notify: marshal event", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.rdb.Publish(ctx, p.channel, string(data)).Err(); err != nil {
		p.log.Warn("notify: publish event", zap.String("type", ev.Type), zap.Error(err))
	}
}
