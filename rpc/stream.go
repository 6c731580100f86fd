package rpc

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"lmstaker/core/events"
	"lmstaker/core/types"
)

const (
	streamHistoryLimit = 2048
	subscriberBuffer   = 32
)

// StreamUpdate is one committed engine event tagged with its stream cursor.
type StreamUpdate struct {
	Sequence   uint64            `json:"-"`
	Cursor     string            `json:"cursor"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func cloneUpdate(update StreamUpdate) StreamUpdate {
	cloned := update
	if update.Attributes != nil {
		cloned.Attributes = make(map[string]string, len(update.Attributes))
		for k, v := range update.Attributes {
			cloned.Attributes[k] = v
		}
	}
	return cloned
}

// EventStream fans committed events out to live subscribers and keeps a
// bounded history so reconnecting clients can resume from a cursor.
type EventStream struct {
	mu      sync.Mutex
	seq     uint64
	nextID  uint64
	subs    map[uint64]chan StreamUpdate
	history []StreamUpdate
	dropped uint64
}

var _ events.Emitter = (*EventStream)(nil)

func NewEventStream() *EventStream {
	return &EventStream{subs: make(map[uint64]chan StreamUpdate)}
}

// Emit implements events.Emitter. Slow subscribers miss updates rather than
// block the engine.
func (s *EventStream) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	payload, ok := evt.(events.Payload)
	if !ok {
		return
	}
	s.publish(payload.Event())
}

func (s *EventStream) publish(evt *types.Event) {
	if evt == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	update := StreamUpdate{
		Sequence:   s.seq,
		Cursor:     strconv.FormatUint(s.seq, 10),
		Type:       evt.Type,
		Attributes: evt.Attributes,
	}
	update = cloneUpdate(update)
	s.history = append(s.history, update)
	if len(s.history) > streamHistoryLimit {
		excess := len(s.history) - streamHistoryLimit
		trimmed := make([]StreamUpdate, streamHistoryLimit)
		copy(trimmed, s.history[excess:])
		s.history = trimmed
	}
	for _, ch := range s.subs {
		select {
		case ch <- cloneUpdate(update):
		default:
			s.dropped++
		}
	}
}

// Subscribe registers a subscriber and returns the history after cursor. The
// subscription ends when ctx is done or cancel is called.
func (s *EventStream) Subscribe(ctx context.Context, cursor string) (<-chan StreamUpdate, func(), []StreamUpdate) {
	updates := make(chan StreamUpdate, subscriberBuffer)
	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		if parsed, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
			since = parsed
		}
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = updates
	backlog := make([]StreamUpdate, 0, len(s.history))
	for _, entry := range s.history {
		if entry.Sequence > since {
			backlog = append(backlog, cloneUpdate(entry))
		}
	}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub)
			}
			s.mu.Unlock()
		})
	}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return updates, cancel, backlog
}

// Subscribers reports the number of live subscriptions.
func (s *EventStream) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Dropped reports how many deliveries were skipped for full subscribers.
func (s *EventStream) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}
