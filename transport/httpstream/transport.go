// Package httpstream implements the MCP Streamable HTTP transport: a single
// endpoint accepting POST (client->server messages, server responses
// streamed back over SSE), GET (a long-lived SSE stream for server-initiated
// notifications), and DELETE (explicit session termination), with
// Last-Event-ID based resumption backed by an EventStore.
package httpstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/localrivet/gomcp/internal/logx"
	"github.com/localrivet/gomcp/protocol"
)

// defaultStreamID is the standalone SSE stream opened by a GET request,
// used for server-initiated notifications not tied to any one request.
const defaultStreamID int64 = 0

// sessionTransport is the protocol.Transport a Handler hands to
// server.Server.NewSession for one Mcp-Session-Id. It has no socket of its
// own: Send fans messages out to whichever HTTP response is currently
// streaming the target stream ID, and Recv is fed by the POST handler.
type sessionTransport struct {
	id     string
	logger logx.Logger
	store  EventStore

	inbound chan []byte

	mu            sync.Mutex
	closed        bool
	nextStreamID  int64
	streamIdx     map[int64]*int64 // streamID -> next event index, atomic via pointer
	subscribers   map[int64][]chan StoredEvent
	requestStream map[string]int64 // stringified request ID -> stream it was posted on
}

func newSessionTransport(id string, logger logx.Logger, store EventStore) *sessionTransport {
	return &sessionTransport{
		id:            id,
		logger:        logger,
		store:         store,
		inbound:       make(chan []byte, 64),
		streamIdx:     make(map[int64]*int64),
		subscribers:   make(map[int64][]chan StoredEvent),
		requestStream: make(map[string]int64),
	}
}

// allocateStream reserves a fresh stream ID for one POST's worth of
// request/response correlation.
func (t *sessionTransport) allocateStream() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextStreamID++
	id := t.nextStreamID
	idx := int64(0)
	t.streamIdx[id] = &idx
	return id
}

func (t *sessionTransport) bindRequest(idKey string, streamID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requestStream[idKey] = streamID
}

func (t *sessionTransport) unbindRequest(idKey string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.requestStream, idKey)
}

func (t *sessionTransport) subscribe(streamID int64) chan StoredEvent {
	ch := make(chan StoredEvent, 32)
	t.mu.Lock()
	if _, ok := t.streamIdx[streamID]; !ok {
		idx := int64(0)
		t.streamIdx[streamID] = &idx
	}
	t.subscribers[streamID] = append(t.subscribers[streamID], ch)
	t.mu.Unlock()
	return ch
}

// subscribeExclusive attaches to streamID only if no other subscriber is
// already attached, enforcing the "at most one standalone SSE stream per
// session" rule for the GET endpoint. ok is false if a live subscriber
// already holds this stream.
func (t *sessionTransport) subscribeExclusive(streamID int64) (ch chan StoredEvent, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.subscribers[streamID]) > 0 {
		return nil, false
	}
	if _, exists := t.streamIdx[streamID]; !exists {
		idx := int64(0)
		t.streamIdx[streamID] = &idx
	}
	ch = make(chan StoredEvent, 32)
	t.subscribers[streamID] = append(t.subscribers[streamID], ch)
	return ch, true
}

func (t *sessionTransport) unsubscribe(streamID int64, ch chan StoredEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	subs := t.subscribers[streamID]
	for i, c := range subs {
		if c == ch {
			t.subscribers[streamID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

// Send implements protocol.Transport. It routes the outgoing message to the
// stream that owns its correlated request (for responses) or to the
// standalone notification stream, recording it in the EventStore either way
// so a reconnecting GET with Last-Event-ID can replay it.
func (t *sessionTransport) Send(ctx context.Context, data []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("httpstream: session %s is closed", t.id)
	}
	t.mu.Unlock()

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("httpstream: encode outgoing message: %w", err)
	}

	streamID := defaultStreamID
	if msg.Kind == protocol.KindResponse {
		key := idKey(msg.Response.ID)
		t.mu.Lock()
		if sid, ok := t.requestStream[key]; ok {
			streamID = sid
		}
		t.mu.Unlock()
	}

	t.mu.Lock()
	idxPtr, ok := t.streamIdx[streamID]
	if !ok {
		idx := int64(0)
		idxPtr = &idx
		t.streamIdx[streamID] = idxPtr
	}
	t.mu.Unlock()

	idx := atomic.AddInt64(idxPtr, 1) - 1
	event := StoredEvent{ID: fmt.Sprintf("%d_%d", streamID, idx), Data: append([]byte(nil), data...)}
	t.store.Append(streamID, event)

	t.mu.Lock()
	subs := append([]chan StoredEvent(nil), t.subscribers[streamID]...)
	t.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			t.logger.Warn("httpstream: subscriber channel full, event will only be available via replay", "session", t.id, "stream", streamID)
		}
	}
	return nil
}

// Recv implements protocol.Transport, returning the next message posted by
// the client to this session.
func (t *sessionTransport) Recv(ctx context.Context) ([]byte, error) {
	select {
	case data, ok := <-t.inbound:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close implements protocol.Transport, tearing down every live SSE
// subscriber and forgetting this session's replay buffers.
func (t *sessionTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.inbound)
	streamIDs := make([]int64, 0, len(t.subscribers))
	for id, subs := range t.subscribers {
		for _, ch := range subs {
			close(ch)
		}
		streamIDs = append(streamIDs, id)
	}
	t.subscribers = make(map[int64][]chan StoredEvent)
	t.mu.Unlock()

	for _, id := range streamIDs {
		t.store.Forget(id)
	}
	t.store.Forget(defaultStreamID)
	return nil
}

// idKey stringifies a JSON-RPC ID for use as a map key, mirroring how the
// protocol engine correlates pending calls to their responses.
func idKey(id protocol.ID) string {
	b, err := json.Marshal(id)
	if err != nil {
		return fmt.Sprintf("%v", id)
	}
	return string(b)
}
