package server

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/localrivet/gomcp/notify"
	"github.com/localrivet/gomcp/protocol"
)

// Session is one client connection: a protocol.Engine bound to a
// transport, the client capabilities it announced during initialize, and
// the subscription/log-level state the server->client operations below
// consult.
type Session struct {
	id     string
	server *Server
	engine *protocol.Engine

	initialized atomic.Bool
	clientCaps  protocol.ClientCapabilities
	version     string
	startedAt   time.Time

	logLevel atomic.Value // protocol.LoggingLevel

	notifyCh         <-chan notify.Event
	notifyUnregister func()
}

// NewSession creates a session bound to transport, wires its protocol
// engine's method handlers, connects the transport's read loop, and
// starts the session's notification consumer job. The sequencing
// (allocate id, bind engine, register handlers, subscribe to the
// notification service, then start reading) matters: no inbound message
// can be dispatched before every handler is registered, and no
// notification can be queued for a session that isn't registered yet.
func (s *Server) NewSession(transport protocol.Transport) *Session {
	sess := &Session{
		id:        uuid.NewString(),
		server:    s,
		startedAt: time.Now(),
	}
	sess.logLevel.Store(protocol.LogInfo)

	sess.engine = protocol.NewEngine(s.logger, sess.capabilityGate)
	sess.registerHandlers()

	ch, unregister := s.notifier.Register(sess.id)
	sess.notifyCh = ch
	sess.notifyUnregister = unregister

	s.registerSession(sess)
	go sess.pumpNotifications()

	sess.engine.Connect(transport)
	return sess
}

func (sess *Session) ID() string { return sess.id }

func (sess *Session) Initialized() bool { return sess.initialized.Load() }

func (sess *Session) ClientCapabilities() protocol.ClientCapabilities { return sess.clientCaps }

func (sess *Session) NegotiatedVersion() string { return sess.version }

// Close tears down the session: its engine, its notification
// registration, and its entry in the server's session table.
func (sess *Session) Close() error {
	sess.server.unregisterSession(sess.id)
	if sess.notifyUnregister != nil {
		sess.notifyUnregister()
	}
	return sess.engine.Close()
}

// capabilityGate is consulted by the protocol engine both before
// registering a handler and before sending a server-initiated request or
// notification, keeping every capability-gated method checked in one
// place regardless of direction.
func (sess *Session) capabilityGate(method string) bool {
	caps := sess.server.capabilities
	switch method {
	case protocol.MethodSamplingCreateMessage:
		return sess.clientCaps.Sampling != nil
	case protocol.MethodRootsList:
		return sess.clientCaps.Roots != nil
	case protocol.MethodElicitationCreate:
		return sess.clientCaps.Elicitation != nil
	case protocol.MethodSubscribeResource, protocol.MethodUnsubscribeResource:
		return caps.Resources != nil && caps.Resources.Subscribe
	case protocol.NotificationResourceUpdated, protocol.NotificationResourcesListChanged, protocol.MethodListResources, protocol.MethodListResourceTemplates, protocol.MethodReadResource:
		return caps.Resources != nil
	case protocol.NotificationToolsListChanged, protocol.MethodListTools, protocol.MethodCallTool:
		return caps.Tools != nil
	case protocol.NotificationPromptsListChanged, protocol.MethodListPrompts, protocol.MethodGetPrompt:
		return caps.Prompts != nil
	case protocol.MethodSetLevel, protocol.NotificationMessage:
		return caps.Logging != nil
	case protocol.MethodComplete:
		return caps.Completions != nil
	default:
		return true
	}
}

func (sess *Session) registerHandlers() {
	e := sess.engine
	must := func(err error) {
		if err != nil {
			sess.server.logger.Error("server: failed registering handler", "error", err)
		}
	}

	must(e.SetRequestHandler(protocol.MethodInitialize, sess.handleInitialize))
	must(e.SetRequestHandler(protocol.MethodPing, sess.handlePing))
	must(e.SetRequestHandler(protocol.MethodListTools, sess.handleListTools))
	must(e.SetRequestHandler(protocol.MethodCallTool, sess.handleCallTool))
	must(e.SetRequestHandler(protocol.MethodListPrompts, sess.handleListPrompts))
	must(e.SetRequestHandler(protocol.MethodGetPrompt, sess.handleGetPrompt))
	must(e.SetRequestHandler(protocol.MethodListResources, sess.handleListResources))
	must(e.SetRequestHandler(protocol.MethodListResourceTemplates, sess.handleListResourceTemplates))
	must(e.SetRequestHandler(protocol.MethodReadResource, sess.handleReadResource))
	must(e.SetRequestHandler(protocol.MethodSubscribeResource, sess.handleSubscribe))
	must(e.SetRequestHandler(protocol.MethodUnsubscribeResource, sess.handleUnsubscribe))
	must(e.SetRequestHandler(protocol.MethodSetLevel, sess.handleSetLevel))

	must(e.SetNotificationHandler(protocol.NotificationInitialized, sess.handleInitialized))
}

func (sess *Session) handleInitialize(ctx context.Context, params interface{}) (interface{}, error) {
	var p protocol.InitializeParams
	if err := protocol.UnmarshalPayload(params, &p); err != nil {
		return nil, protocol.Errorf(protocol.InvalidParams, "invalid initialize params: %v", err)
	}
	sess.clientCaps = p.Capabilities
	sess.version = protocol.NegotiateVersion(p.ProtocolVersion)

	return protocol.InitializeResult{
		ProtocolVersion: sess.version,
		Capabilities:    sess.server.capabilities,
		ServerInfo:      protocol.Implementation{Name: sess.server.name, Version: sess.server.version},
		Instructions:    sess.server.instructions,
	}, nil
}

func (sess *Session) handleInitialized(ctx context.Context, params interface{}) error {
	sess.initialized.Store(true)
	return nil
}

func (sess *Session) handlePing(ctx context.Context, params interface{}) (interface{}, error) {
	return struct{}{}, nil
}

func (sess *Session) handleSetLevel(ctx context.Context, params interface{}) (interface{}, error) {
	var p protocol.SetLevelParams
	if err := protocol.UnmarshalPayload(params, &p); err != nil {
		return nil, protocol.Errorf(protocol.InvalidParams, "invalid logging/setLevel params: %v", err)
	}
	sess.logLevel.Store(p.Level)
	return struct{}{}, nil
}

func (sess *Session) currentLogLevel() protocol.LoggingLevel {
	if l, ok := sess.logLevel.Load().(protocol.LoggingLevel); ok {
		return l
	}
	return protocol.LogInfo
}

// pumpNotifications is the session's single long-lived consumer job: it
// reads the ordered event stream the notification service assigned this
// session and turns each event into the corresponding outbound JSON-RPC
// notification. Running this as one goroutine per session is what
// guarantees a session never sees its own notifications reordered,
// regardless of how many goroutines published them.
func (sess *Session) pumpNotifications() {
	for event := range sess.notifyCh {
		method, params := translateEvent(event)
		if method == "" {
			continue
		}
		if err := sess.engine.Notification(context.Background(), method, params, ""); err != nil {
			sess.server.logger.Warn("server: failed delivering notification", "session", sess.id, "method", method, "error", err)
		}
	}
}

func translateEvent(event notify.Event) (string, interface{}) {
	switch event.Kind {
	case notify.KindToolsListChanged:
		return protocol.NotificationToolsListChanged, protocol.ToolsListChangedParams{}
	case notify.KindPromptsListChanged:
		return protocol.NotificationPromptsListChanged, protocol.PromptsListChangedParams{}
	case notify.KindResourcesListChanged:
		return protocol.NotificationResourcesListChanged, protocol.ResourcesListChangedParams{}
	case notify.KindResourceUpdated:
		return protocol.NotificationResourceUpdated, protocol.ResourceUpdatedParams{URI: event.URI}
	default:
		return "", nil
	}
}

// --- Server -> client operations -------------------------------------------------

func (sess *Session) Ping(ctx context.Context) error {
	_, err := sess.engine.Request(ctx, protocol.MethodPing, protocol.PingParams{}, protocol.RequestOptions{Timeout: sess.server.requestTimeout})
	return err
}

func (sess *Session) CreateMessage(ctx context.Context, params protocol.CreateMessageParams) (*protocol.CreateMessageResult, error) {
	raw, err := sess.engine.Request(ctx, protocol.MethodSamplingCreateMessage, params, protocol.RequestOptions{Timeout: sess.server.requestTimeout})
	if err != nil {
		return nil, err
	}
	var result protocol.CreateMessageResult
	if err := protocol.UnmarshalPayload(raw, &result); err != nil {
		return nil, fmt.Errorf("server: decoding createMessage result: %w", err)
	}
	return &result, nil
}

func (sess *Session) ListRoots(ctx context.Context) (*protocol.ListRootsResult, error) {
	raw, err := sess.engine.Request(ctx, protocol.MethodRootsList, struct{}{}, protocol.RequestOptions{Timeout: sess.server.requestTimeout})
	if err != nil {
		return nil, err
	}
	var result protocol.ListRootsResult
	if err := protocol.UnmarshalPayload(raw, &result); err != nil {
		return nil, fmt.Errorf("server: decoding roots/list result: %w", err)
	}
	return &result, nil
}

func (sess *Session) CreateElicitation(ctx context.Context, params protocol.ElicitationCreateParams) (*protocol.ElicitationCreateResult, error) {
	raw, err := sess.engine.Request(ctx, protocol.MethodElicitationCreate, params, protocol.RequestOptions{Timeout: sess.server.requestTimeout})
	if err != nil {
		return nil, err
	}
	var result protocol.ElicitationCreateResult
	if err := protocol.UnmarshalPayload(raw, &result); err != nil {
		return nil, fmt.Errorf("server: decoding elicitation/create result: %w", err)
	}
	return &result, nil
}

// SendLoggingMessage delivers a single log record to the client, dropped
// silently if level is less severe than the session's current
// logging/setLevel threshold.
func (sess *Session) SendLoggingMessage(ctx context.Context, level protocol.LoggingLevel, loggerName string, data interface{}) error {
	if protocol.Severity(level) < protocol.Severity(sess.currentLogLevel()) {
		return nil
	}
	return sess.engine.Notification(ctx, protocol.NotificationMessage, protocol.LoggingMessageParams{Level: level, Logger: loggerName, Data: data}, "")
}
