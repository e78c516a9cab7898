package realtime

import (
	"sync"
	"time"

	"github.com/rberts/delibera/internal/logger"
)

// Event kinds pushed to assembly dashboards
const (
	EventCheckinUpdate = "checkin_update"
	EventVoteUpdate    = "vote_update"
	EventAgendaUpdate  = "agenda_update"
)

// Event is one realtime notification scoped to a single assembly
type Event struct {
	Kind       string                 `json:"event"`
	AssemblyID uint                   `json:"assembly_id"`
	Timestamp  time.Time              `json:"timestamp"`
	Data       map[string]interface{} `json:"data"`
}

// Subscriber receives events for one assembly. The channel is buffered;
// a subscriber that stops draining loses events rather than blocking the
// publishers.
type Subscriber struct {
	Events chan Event
}

// Broadcaster fans out assembly events to per-assembly subscriber sets.
// Publishing never blocks on slow consumers.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[uint]map[*Subscriber]struct{}
}

// NewBroadcaster creates an empty broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[uint]map[*Subscriber]struct{}),
	}
}

// Subscribe registers a new listener for the given assembly
func (b *Broadcaster) Subscribe(assemblyID uint) *Subscriber {
	sub := &Subscriber{Events: make(chan Event, 16)}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[assemblyID] == nil {
		b.subs[assemblyID] = make(map[*Subscriber]struct{})
	}
	b.subs[assemblyID][sub] = struct{}{}

	logger.Realtime().Debug("Subscriber added", "assembly_id", assemblyID, "subscribers", len(b.subs[assemblyID]))
	return sub
}

// Unsubscribe removes a listener and closes its channel
func (b *Broadcaster) Unsubscribe(assemblyID uint, sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.subs[assemblyID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	close(sub.Events)
	if len(set) == 0 {
		delete(b.subs, assemblyID)
	}

	logger.Realtime().Debug("Subscriber removed", "assembly_id", assemblyID, "subscribers", len(set))
}

// Publish delivers an event to every subscriber of the assembly. Events
// to subscribers with full buffers are dropped.
func (b *Broadcaster) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	dropped := 0
	for sub := range b.subs[event.AssemblyID] {
		select {
		case sub.Events <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		logger.Realtime().Warn("Dropped realtime events", "assembly_id", event.AssemblyID, "kind", event.Kind, "dropped", dropped)
	}
}

// SubscriberCount returns the number of listeners for an assembly
func (b *Broadcaster) SubscriberCount(assemblyID uint) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[assemblyID])
}

// NotifyCheckin publishes a checkin_update event
func (b *Broadcaster) NotifyCheckin(assemblyID uint, presentUnits int64, presentFraction float64) {
	b.Publish(Event{
		Kind:       EventCheckinUpdate,
		AssemblyID: assemblyID,
		Data: map[string]interface{}{
			"present_units":    presentUnits,
			"present_fraction": presentFraction,
		},
	})
}

// NotifyVoteCast publishes a vote_update event
func (b *Broadcaster) NotifyVoteCast(assemblyID, agendaID uint, votesCast int64) {
	b.Publish(Event{
		Kind:       EventVoteUpdate,
		AssemblyID: assemblyID,
		Data: map[string]interface{}{
			"agenda_id":  agendaID,
			"votes_cast": votesCast,
		},
	})
}

// NotifyAgendaStatus publishes an agenda_update event
func (b *Broadcaster) NotifyAgendaStatus(assemblyID, agendaID uint, status string) {
	b.Publish(Event{
		Kind:       EventAgendaUpdate,
		AssemblyID: assemblyID,
		Data: map[string]interface{}{
			"agenda_id": agendaID,
			"status":    status,
		},
	})
}
