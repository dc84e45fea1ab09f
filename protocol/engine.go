package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Logger is the minimal logging surface the engine needs; it is satisfied
// by internal/logx.Logger without importing it here, keeping protocol free
// of a dependency on the logging package.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}

// RequestHandler answers an incoming Request. Returning a *Error reports
// that exact JSON-RPC error; any other error is wrapped as InternalError.
type RequestHandler func(ctx context.Context, params interface{}) (interface{}, error)

// NotificationHandler reacts to an incoming Notification. It has no
// result to report; errors are logged and otherwise swallowed, since
// notifications have no reply channel.
type NotificationHandler func(ctx context.Context, params interface{}) error

// CapabilityGate is consulted before a request is sent and before a
// handler is registered, letting the owner (typically a server session)
// reject methods the negotiated capabilities don't cover. A nil gate
// allows everything.
type CapabilityGate func(method string) bool

// RequestOptions tunes a single outgoing Request call.
type RequestOptions struct {
	// Timeout, if non-zero, bounds how long Request waits for a
	// response. On expiry the engine sends notifications/cancelled to
	// the peer and returns a RequestTimeout error.
	Timeout time.Duration
}

type pendingCall struct {
	resultCh chan *Response
}

// Engine is one side of a JSON-RPC 2.0 connection: it owns framing,
// dispatch, capability gating, per-request timeouts and cooperative
// cancellation for exactly one Transport. A server holds one Engine per
// client session; nothing here is session-aware beyond that.
type Engine struct {
	logger Logger
	gate   CapabilityGate

	mu        sync.Mutex
	transport Transport
	closed    bool
	closeOnce sync.Once
	doneCh    chan struct{}

	nextID int64

	pendingMu sync.Mutex
	pending   map[string]*pendingCall

	handlersMu           sync.RWMutex
	requestHandlers      map[string]RequestHandler
	notificationHandlers map[string]NotificationHandler

	inboundMu sync.Mutex
	inbound   map[string]context.CancelFunc
}

// NewEngine constructs an unconnected Engine. Call Connect to bind a
// Transport and start its read loop.
func NewEngine(logger Logger, gate CapabilityGate) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		logger:               logger,
		gate:                 gate,
		doneCh:                make(chan struct{}),
		pending:               make(map[string]*pendingCall),
		requestHandlers:       make(map[string]RequestHandler),
		notificationHandlers:  make(map[string]NotificationHandler),
		inbound:               make(map[string]context.CancelFunc),
	}
}

// Connect binds transport and starts the engine's read loop in a new
// goroutine. It returns once the loop has been started, not once the
// connection ends.
func (e *Engine) Connect(transport Transport) {
	e.mu.Lock()
	e.transport = transport
	e.mu.Unlock()
	go e.readLoop(transport)
}

func (e *Engine) readLoop(transport Transport) {
	ctx := context.Background()
	for {
		raw, err := transport.Recv(ctx)
		if err != nil {
			if err != io.EOF {
				e.logger.Warn("protocol: transport recv error", "error", err)
			}
			e.Close()
			return
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			e.logger.Warn("protocol: malformed frame dropped", "error", err)
			continue
		}
		e.dispatch(ctx, msg)
	}
}

func (e *Engine) dispatch(ctx context.Context, msg Message) {
	switch msg.Kind {
	case KindRequest:
		go e.handleInboundRequest(ctx, msg.Request)
	case KindNotification:
		e.handleInboundNotification(ctx, msg.Notification)
	case KindResponse:
		e.handleInboundResponse(msg.Response)
	default:
		e.logger.Debug("protocol: unrecognized frame ignored")
	}
}

func (e *Engine) handleInboundRequest(ctx context.Context, req *Request) {
	key := idKey(req.ID)

	reqCtx, cancel := context.WithCancel(ctx)
	e.inboundMu.Lock()
	e.inbound[key] = cancel
	e.inboundMu.Unlock()
	defer func() {
		cancel()
		e.inboundMu.Lock()
		delete(e.inbound, key)
		e.inboundMu.Unlock()
	}()

	e.handlersMu.RLock()
	handler, ok := e.requestHandlers[req.Method]
	e.handlersMu.RUnlock()

	if !ok {
		e.sendResponse(NewErrorResponse(req.ID, MethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil))
		return
	}

	result, err := e.safeCallRequest(reqCtx, handler, req.Params)
	if err != nil {
		if perr, ok := err.(*Error); ok {
			e.sendResponse(NewErrorResponse(req.ID, perr.Code, perr.Message, perr.Data))
			return
		}
		e.sendResponse(NewErrorResponse(req.ID, InternalError, err.Error(), nil))
		return
	}
	e.sendResponse(NewSuccessResponse(req.ID, result))
}

func (e *Engine) safeCallRequest(ctx context.Context, handler RequestHandler, params interface{}) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Errorf(InternalError, "handler panic: %v", r)
		}
	}()
	return handler(ctx, params)
}

func (e *Engine) handleInboundNotification(ctx context.Context, notif *Notification) {
	if notif.Method == NotificationCancelled {
		var params CancelledParams
		if err := UnmarshalPayload(notif.Params, &params); err == nil {
			e.inboundMu.Lock()
			if cancel, ok := e.inbound[idKey(params.RequestID)]; ok {
				cancel()
			}
			e.inboundMu.Unlock()
		}
	}

	e.handlersMu.RLock()
	handler, ok := e.notificationHandlers[notif.Method]
	e.handlersMu.RUnlock()
	if !ok {
		e.logger.Debug("protocol: no handler for notification", "method", notif.Method)
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("protocol: notification handler panic", "method", notif.Method, "recover", r)
			}
		}()
		if err := handler(ctx, notif.Params); err != nil {
			e.logger.Warn("protocol: notification handler error", "method", notif.Method, "error", err)
		}
	}()
}

func (e *Engine) handleInboundResponse(resp *Response) {
	key := idKey(resp.ID)
	e.pendingMu.Lock()
	call, ok := e.pending[key]
	if ok {
		delete(e.pending, key)
	}
	e.pendingMu.Unlock()
	if !ok {
		e.logger.Debug("protocol: response with no matching request dropped", "id", resp.ID)
		return
	}
	call.resultCh <- resp
}

// SetRequestHandler installs (or replaces) the handler for method. The
// capability gate is consulted up front so registering a handler for a
// method outside the negotiated capability set fails loudly instead of
// silently accepting requests no one advertised support for.
func (e *Engine) SetRequestHandler(method string, handler RequestHandler) error {
	if e.gate != nil && !e.gate(method) {
		return Errorf(InvalidRequest, "capability does not permit method %s", method)
	}
	e.handlersMu.Lock()
	defer e.handlersMu.Unlock()
	e.requestHandlers[method] = handler
	return nil
}

func (e *Engine) SetNotificationHandler(method string, handler NotificationHandler) error {
	if e.gate != nil && !e.gate(method) {
		return Errorf(InvalidRequest, "capability does not permit method %s", method)
	}
	e.handlersMu.Lock()
	defer e.handlersMu.Unlock()
	e.notificationHandlers[method] = handler
	return nil
}

// Request sends method/params to the peer and blocks for its Response,
// honoring ctx cancellation and opts.Timeout. On timeout the engine emits
// notifications/cancelled to the peer before returning a RequestTimeout
// error, so the peer can stop doing work no one is waiting on anymore.
func (e *Engine) Request(ctx context.Context, method string, params interface{}, opts RequestOptions) (interface{}, error) {
	if e.gate != nil && !e.gate(method) {
		return nil, Errorf(InvalidRequest, "capability does not permit method %s", method)
	}

	id := fmt.Sprintf("%d", atomic.AddInt64(&e.nextID, 1))
	call := &pendingCall{resultCh: make(chan *Response, 1)}

	e.pendingMu.Lock()
	e.pending[id] = call
	e.pendingMu.Unlock()

	cleanup := func() {
		e.pendingMu.Lock()
		delete(e.pending, id)
		e.pendingMu.Unlock()
	}

	if err := e.send(ctx, NewRequest(id, method, params)); err != nil {
		cleanup()
		return nil, err
	}

	waitCtx := ctx
	var cancelTimeout context.CancelFunc
	if opts.Timeout > 0 {
		waitCtx, cancelTimeout = context.WithTimeout(ctx, opts.Timeout)
		defer cancelTimeout()
	}

	select {
	case resp := <-call.resultCh:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-waitCtx.Done():
		cleanup()
		e.notifyCancelled(id, "request timed out")
		if ctx.Err() != nil && waitCtx.Err() == ctx.Err() {
			return nil, waitCtx.Err()
		}
		return nil, NewError(RequestTimeout, "request timed out")
	case <-e.doneCh:
		cleanup()
		return nil, ErrConnectionClosed
	}
}

func (e *Engine) notifyCancelled(id string, reason string) {
	_ = e.Notification(context.Background(), NotificationCancelled, CancelledParams{RequestID: id, Reason: reason}, "")
}

// Notification sends a one-way message to the peer. relatedRequestID, if
// non-empty, is informational only (carried for callers that want to log
// which in-flight request a notification pertains to); it is not placed
// on the wire since JSON-RPC notifications carry no id.
func (e *Engine) Notification(ctx context.Context, method string, params interface{}, relatedRequestID string) error {
	if e.gate != nil && !e.gate(method) {
		return Errorf(InvalidRequest, "capability does not permit method %s", method)
	}
	return e.send(ctx, NewNotification(method, params))
}

func (e *Engine) sendResponse(resp *Response) {
	if err := e.send(context.Background(), resp); err != nil {
		e.logger.Warn("protocol: failed to send response", "error", err)
	}
}

func (e *Engine) send(ctx context.Context, v interface{}) error {
	e.mu.Lock()
	transport := e.transport
	closed := e.closed
	e.mu.Unlock()
	if closed || transport == nil {
		return ErrConnectionClosed
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Errorf(InternalError, "marshal: %v", err)
	}
	return transport.Send(ctx, data)
}

// Close tears down the transport, releases all pending calls with
// ErrConnectionClosed, and is idempotent.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		transport := e.transport
		e.mu.Unlock()
		close(e.doneCh)

		e.pendingMu.Lock()
		for id, call := range e.pending {
			call.resultCh <- NewErrorResponse(id, ConnectionClosed, "connection closed", nil)
		}
		e.pending = make(map[string]*pendingCall)
		e.pendingMu.Unlock()

		e.inboundMu.Lock()
		for _, cancel := range e.inbound {
			cancel()
		}
		e.inboundMu.Unlock()

		if transport != nil {
			err = transport.Close()
		}
	})
	return err
}

// Done reports closure of the engine for callers that want to select on
// it alongside their own context.
func (e *Engine) Done() <-chan struct{} {
	return e.doneCh
}

func idKey(id ID) string {
	if id == nil {
		return ""
	}
	return fmt.Sprintf("%v", id)
}
