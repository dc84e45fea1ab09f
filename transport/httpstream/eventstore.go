package httpstream

import "sync"

// StoredEvent is one previously-sent SSE event, kept around so a
// reconnecting client can replay everything it missed via Last-Event-ID.
type StoredEvent struct {
	ID   string
	Data []byte
}

// EventStore records outgoing SSE events per stream and replays everything
// after a given event ID. Implementations must be safe for concurrent use.
type EventStore interface {
	Append(streamID int64, event StoredEvent)
	// Replay returns every event after afterEventID, in order. If
	// afterEventID is non-empty and not found in the stream's buffer, ok is
	// false: the caller has no way to know what it missed and must treat
	// this as a hard failure rather than silently replaying everything.
	Replay(streamID int64, afterEventID string) (events []StoredEvent, ok bool)
	Forget(streamID int64)
}

// memoryEventStore is the default EventStore: an in-process ring buffer per
// stream. It does not survive a process restart — the Non-goals explicitly
// exclude persisting protocol state beyond this optional, in-memory store.
type memoryEventStore struct {
	mu      sync.Mutex
	perSize int
	streams map[int64][]StoredEvent
}

// NewMemoryEventStore returns an EventStore that retains up to maxPerStream
// events per stream, discarding the oldest once the limit is exceeded.
func NewMemoryEventStore(maxPerStream int) EventStore {
	if maxPerStream <= 0 {
		maxPerStream = 256
	}
	return &memoryEventStore{perSize: maxPerStream, streams: make(map[int64][]StoredEvent)}
}

func (s *memoryEventStore) Append(streamID int64, event StoredEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := append(s.streams[streamID], event)
	if len(events) > s.perSize {
		events = events[len(events)-s.perSize:]
	}
	s.streams[streamID] = events
}

func (s *memoryEventStore) Replay(streamID int64, afterEventID string) ([]StoredEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.streams[streamID]
	if afterEventID == "" {
		out := make([]StoredEvent, len(events))
		copy(out, events)
		return out, true
	}
	for i, e := range events {
		if e.ID == afterEventID {
			out := make([]StoredEvent, len(events[i+1:]))
			copy(out, events[i+1:])
			return out, true
		}
	}
	// Unknown cursor: either it never existed or it fell out of the
	// retention window. Either way the caller has no way to know what it
	// missed, so this is a hard failure rather than a silent full replay.
	return nil, false
}

func (s *memoryEventStore) Forget(streamID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.streams, streamID)
}
