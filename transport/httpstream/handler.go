package httpstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/localrivet/gomcp/internal/logx"
	"github.com/localrivet/gomcp/protocol"
	"github.com/localrivet/gomcp/server"
)

// SessionIDHeader is the header both the client and this handler use to
// correlate HTTP requests with an in-process Session.
const SessionIDHeader = "Mcp-Session-Id"

// LastEventIDHeader lets a reconnecting GET replay everything it missed.
const LastEventIDHeader = "Last-Event-ID"

// maxBodyBytes caps a single POST body, matching the transport's framing
// limit; an oversized body is rejected with 413 rather than silently
// truncated and parsed as malformed JSON.
const maxBodyBytes = 4 * 1024 * 1024

// Handler serves the Streamable HTTP transport for one server.Server: a
// single endpoint multiplexing POST/GET/DELETE per the MCP 2025-06-18 spec.
type Handler struct {
	srv    *server.Server
	logger logx.Logger

	enableDNSRebindingProtection bool
	allowedHosts                 map[string]struct{}
	allowedOrigins               map[string]struct{}

	mu       sync.RWMutex
	sessions map[string]*sessionTransport
}

// HandlerOption configures a Handler at construction time.
type HandlerOption func(*Handler)

// WithDNSRebindingProtection rejects any request whose Host or Origin
// header (when the corresponding allow-list is non-empty) isn't on the
// given lists, with 403. Disabled by default, since it only matters once
// the server is reachable from more than localhost.
func WithDNSRebindingProtection(allowedHosts, allowedOrigins []string) HandlerOption {
	return func(h *Handler) {
		h.enableDNSRebindingProtection = true
		h.allowedHosts = toSet(allowedHosts)
		h.allowedOrigins = toSet(allowedOrigins)
	}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// NewHandler returns an http.Handler that creates one Session per new
// Mcp-Session-Id and routes HTTP traffic to it.
func NewHandler(srv *server.Server, logger logx.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = logx.NewDefault()
	}
	h := &Handler{srv: srv, logger: logger, sessions: make(map[string]*sessionTransport)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// validateRequestHeaders enforces DNS-rebinding protection: when enabled,
// the Host header must be on allowedHosts (if that list is non-empty) and
// the Origin header must be on allowedOrigins (if that list is non-empty).
func (h *Handler) validateRequestHeaders(r *http.Request) error {
	if !h.enableDNSRebindingProtection {
		return nil
	}
	if len(h.allowedHosts) > 0 {
		if _, ok := h.allowedHosts[r.Host]; !ok {
			return fmt.Errorf("invalid Host header: %s", r.Host)
		}
	}
	if len(h.allowedOrigins) > 0 {
		origin := r.Header.Get("Origin")
		if _, ok := h.allowedOrigins[origin]; !ok {
			return fmt.Errorf("invalid Origin header: %s", origin)
		}
	}
	return nil
}

// acceptsBoth reports whether the Accept header includes both mimeA and
// mimeB (or "*/*"), per the media-range grammar Accept uses: each
// comma-separated entry may carry ";q=..." parameters we don't need to
// weigh, only to ignore.
func acceptsBoth(accept, mimeA, mimeB string) bool {
	var hasA, hasB bool
	for _, part := range strings.Split(accept, ",") {
		mediaType := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		switch mediaType {
		case mimeA, "*/*":
			hasA = true
		}
		switch mediaType {
		case mimeB, "*/*":
			hasB = true
		}
	}
	return hasA && hasB
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) lookupSession(id string) (*sessionTransport, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t, ok := h.sessions[id]
	return t, ok
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	if err := h.validateRequestHeaders(r); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	if accept := r.Header.Get("Accept"); accept != "" && !acceptsBoth(accept, "application/json", "text/event-stream") {
		http.Error(w, "Accept must include both application/json and text/event-stream", http.StatusNotAcceptable)
		return
	}

	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, _ := mime.ParseMediaType(ct)
		if mediaType != "application/json" {
			http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	defer r.Body.Close()
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if len(body) > maxBodyBytes {
		http.Error(w, "request body exceeds the maximum message size", http.StatusRequestEntityTooLarge)
		return
	}
	if len(body) == 0 {
		http.Error(w, "empty request body", http.StatusBadRequest)
		return
	}

	items, err := splitBatch(body)
	if err != nil {
		http.Error(w, "malformed JSON-RPC payload", http.StatusBadRequest)
		return
	}

	if hasInitialize := containsInitialize(items); hasInitialize && len(items) > 1 {
		http.Error(w, "Invalid Request: a batch containing initialize must not contain other messages", http.StatusBadRequest)
		return
	}

	sessionID := r.Header.Get(SessionIDHeader)
	var t *sessionTransport
	isNewSession := false

	if sessionID == "" {
		if !containsInitialize(items) {
			http.Error(w, "missing "+SessionIDHeader+" header", http.StatusBadRequest)
			return
		}
		sessionID = uuid.New().String()
		t = newSessionTransport(sessionID, h.logger, NewMemoryEventStore(256))
		h.mu.Lock()
		h.sessions[sessionID] = t
		h.mu.Unlock()
		h.srv.NewSession(t)
		isNewSession = true
	} else {
		var ok bool
		t, ok = h.lookupSession(sessionID)
		if !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
	}

	pendingIDs := requestIDs(items)

	if len(pendingIDs) == 0 {
		// Pure notification batch: hand it to the engine and acknowledge.
		for _, item := range items {
			t.inbound <- item
		}
		if isNewSession {
			w.Header().Set(SessionIDHeader, sessionID)
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	streamID := t.allocateStream()
	for _, key := range pendingIDs {
		t.bindRequest(key, streamID)
	}
	defer func() {
		for _, key := range pendingIDs {
			t.unbindRequest(key)
		}
	}()

	sub := t.subscribe(streamID)
	defer t.unsubscribe(streamID, sub)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	if isNewSession {
		w.Header().Set(SessionIDHeader, sessionID)
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for _, item := range items {
		t.inbound <- item
	}

	seen := make(map[string]bool, len(pendingIDs))
	ctx := r.Context()
	for len(seen) < len(pendingIDs) {
		select {
		case event, ok := <-sub:
			if !ok {
				return
			}
			writeSSEEvent(w, event)
			flusher.Flush()
			if key := responseIDKeyFromEvent(event); key != "" {
				seen[key] = true
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	if err := h.validateRequestHeaders(r); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	sessionID := r.Header.Get(SessionIDHeader)
	if sessionID == "" {
		http.Error(w, "missing "+SessionIDHeader+" header", http.StatusBadRequest)
		return
	}
	t, ok := h.lookupSession(sessionID)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var replay []StoredEvent
	if lastEventID := r.Header.Get(LastEventIDHeader); lastEventID != "" {
		replay, ok = t.store.Replay(defaultStreamID, lastEventID)
		if !ok {
			http.Error(w, "unknown "+LastEventIDHeader, http.StatusBadRequest)
			return
		}
	} else {
		replay, _ = t.store.Replay(defaultStreamID, "")
	}

	sub, ok := t.subscribeExclusive(defaultStreamID)
	if !ok {
		http.Error(w, "a standalone SSE stream is already open for this session", http.StatusConflict)
		return
	}
	defer t.unsubscribe(defaultStreamID, sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for _, event := range replay {
		writeSSEEvent(w, event)
	}
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case event, ok := <-sub:
			if !ok {
				return
			}
			writeSSEEvent(w, event)
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionIDHeader)
	if sessionID == "" {
		http.Error(w, "missing "+SessionIDHeader+" header", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	t, ok := h.sessions[sessionID]
	if ok {
		delete(h.sessions, sessionID)
	}
	h.mu.Unlock()
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	_ = t.Close()
	w.WriteHeader(http.StatusOK)
}

// CloseIdleSessions is a periodic sweep hook: callers may run it on a timer
// to evict sessions whose GET stream has been gone for some time. Streamable
// HTTP has no built-in heartbeat to detect this itself, so the policy (what
// counts as idle) is left to the caller via the predicate.
func (h *Handler) CloseIdleSessions(ctx context.Context, idle func(sessionID string) bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, t := range h.sessions {
		if idle(id) {
			_ = t.Close()
			delete(h.sessions, id)
		}
	}
}

func writeSSEEvent(w io.Writer, event StoredEvent) {
	fmt.Fprintf(w, "id: %s\n", event.ID)
	fmt.Fprintf(w, "data: %s\n\n", event.Data)
}

func splitBatch(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("httpstream: empty body")
	}
	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	return []json.RawMessage{trimmed}, nil
}

func containsInitialize(items []json.RawMessage) bool {
	for _, item := range items {
		var head struct {
			Method string `json:"method"`
		}
		if err := json.Unmarshal(item, &head); err == nil && head.Method == protocol.MethodInitialize {
			return true
		}
	}
	return false
}

func requestIDs(items []json.RawMessage) []string {
	var ids []string
	for _, item := range items {
		var head struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.Unmarshal(item, &head); err != nil {
			continue
		}
		if head.Method != "" && len(head.ID) > 0 && string(head.ID) != "null" {
			ids = append(ids, string(head.ID))
		}
	}
	return ids
}

func responseIDKeyFromEvent(event StoredEvent) string {
	var msg protocol.Message
	if err := json.Unmarshal(event.Data, &msg); err != nil || msg.Kind != protocol.KindResponse {
		return ""
	}
	return idKey(msg.Response.ID)
}
