package sse

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/claude-afk/afk/internal/redis"
)

// HeartbeatInterval is how often an idle event stream sends a comment line
// so proxies keep the connection open.
const HeartbeatInterval = 30 * time.Second

const EventDecisionResolved = "decision_resolved"

const watcherBuffer = 16

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Watcher receives the events of one decision until Done is closed.
type Watcher struct {
	DecisionID string
	Events     chan Event
	Done       chan struct{}
}

// Broker fans decision events out to SSE watchers. With redis it relays
// through one pattern subscription so every server instance sees every
// event; without it delivery is in-process only.
type Broker struct {
	redis *redisclient.Client

	mu       sync.RWMutex
	watchers map[string]map[*Watcher]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	relay  sync.WaitGroup
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Broker{
		redis:    redisClient,
		watchers: make(map[string]map[*Watcher]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	if redisClient != nil {
		b.relay.Add(1)
		go b.relayFromRedis()
	}
	return b
}

func (b *Broker) Subscribe(decisionID string) *Watcher {
	w := &Watcher{
		DecisionID: decisionID,
		Events:     make(chan Event, watcherBuffer),
		Done:       make(chan struct{}),
	}

	b.mu.Lock()
	set := b.watchers[decisionID]
	if set == nil {
		set = make(map[*Watcher]struct{})
		b.watchers[decisionID] = set
	}
	set[w] = struct{}{}
	n := len(set)
	b.mu.Unlock()

	log.Debug().Str("decisionId", decisionID).Int("watchers", n).Msg("sse watcher subscribed")
	return w
}

// Unsubscribe is idempotent.
func (b *Broker) Unsubscribe(w *Watcher) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set := b.watchers[w.DecisionID]
	if _, ok := set[w]; !ok {
		return
	}
	delete(set, w)
	close(w.Done)
	if len(set) == 0 {
		delete(b.watchers, w.DecisionID)
	}

	log.Debug().Str("decisionId", w.DecisionID).Int("watchers", len(set)).Msg("sse watcher unsubscribed")
}

// Publish delivers an event to everyone watching decisionID.
func (b *Broker) Publish(ctx context.Context, decisionID string, event Event) error {
	if b.redis == nil {
		b.broadcast(decisionID, event)
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.redis.Publish(ctx, redisclient.DecisionChannel(decisionID), data).Err()
}

func (b *Broker) relayFromRedis() {
	defer b.relay.Done()

	prefix := redisclient.DecisionChannel("")
	pubsub := b.redis.PSubscribe(b.ctx, prefix+"*")
	defer pubsub.Close()

	log.Debug().Str("pattern", prefix+"*").Msg("redis decision relay subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Str("channel", msg.Channel).Msg("failed to unmarshal decision event")
				continue
			}
			b.broadcast(strings.TrimPrefix(msg.Channel, prefix), event)
		}
	}
}

func (b *Broker) broadcast(decisionID string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for w := range b.watchers[decisionID] {
		select {
		case w.Events <- event:
		default:
			log.Warn().Str("decisionId", decisionID).Msg("watcher buffer full, dropping event")
		}
	}
}

// Close stops the redis relay and releases every watcher.
func (b *Broker) Close() {
	b.cancel()
	b.relay.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()

	total := 0
	for _, set := range b.watchers {
		for w := range set {
			close(w.Done)
			total++
		}
	}
	b.watchers = make(map[string]map[*Watcher]struct{})
	log.Info().Int("watchers", total).Msg("event broker closed")
}

func (b *Broker) ClientCount(decisionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.watchers[decisionID])
}

func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, set := range b.watchers {
		total += len(set)
	}
	return total
}
