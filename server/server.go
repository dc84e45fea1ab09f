// Package server implements the MCP server façade: a process-wide feature
// registry and notification broker shared by every client session, plus
// the per-connection session type that drives a protocol.Engine against
// those shared registries.
package server

import (
	"sync"
	"time"

	"github.com/localrivet/gomcp/internal/logx"
	"github.com/localrivet/gomcp/notify"
	"github.com/localrivet/gomcp/protocol"
	"github.com/localrivet/gomcp/registry"
)

// ToolHandlerFunc executes a single tools/call invocation. Returning an
// error (or panicking) is reported to the client as CallToolResult{IsError:
// true} rather than a JSON-RPC error, so a failing tool looks like part of
// the conversation instead of a broken connection.
type ToolHandlerFunc func(ctx *Context, args map[string]interface{}) (*protocol.CallToolResult, error)

// ResourceHandlerFunc reads a single concrete or template-matched
// resource. vars is nil for a statically registered resource and holds
// the extracted template variables (plus any {?query} variables) for a
// template match.
type ResourceHandlerFunc func(ctx *Context, uri string, vars map[string]string) (*protocol.ReadResourceResult, error)

// PromptHandlerFunc renders a single prompt invocation.
type PromptHandlerFunc func(ctx *Context, args map[string]string) (*protocol.GetPromptResult, error)

type toolEntry struct {
	tool    protocol.Tool
	handler ToolHandlerFunc
}

type resourceEntry struct {
	resource protocol.Resource
	handler  ResourceHandlerFunc
}

type resourceTemplateEntry struct {
	template protocol.ResourceTemplate
	handler  ResourceHandlerFunc
}

type promptEntry struct {
	prompt  protocol.Prompt
	handler PromptHandlerFunc
}

// Server owns everything shared across client sessions: the feature
// registries, the notification broker that fans changes out to them, and
// the capability set advertised to every session it creates.
type Server struct {
	name         string
	version      string
	instructions string
	logger       logx.Logger
	capabilities protocol.ServerCapabilities

	requestTimeout time.Duration

	tools     *registry.Registry[*toolEntry]
	prompts   *registry.Registry[*promptEntry]
	resources *registry.Registry[*resourceEntry]
	templates *registry.TemplateRegistry[*resourceTemplateEntry]

	notifier *notify.Service

	sessionsMu sync.RWMutex
	sessions   map[string]*Session
}

// Option configures a Server at construction time.
type Option func(*Server)

func WithVersion(version string) Option    { return func(s *Server) { s.version = version } }
func WithInstructions(text string) Option  { return func(s *Server) { s.instructions = text } }
func WithLogger(logger logx.Logger) Option { return func(s *Server) { s.logger = logger } }
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.requestTimeout = d }
}
func WithCapabilities(caps protocol.ServerCapabilities) Option {
	return func(s *Server) { s.capabilities = caps }
}

// New constructs a Server advertising name to connecting clients. By
// default every capability group except completions is enabled; pass
// WithCapabilities to change that.
func New(name string, opts ...Option) *Server {
	s := &Server{
		name:           name,
		version:        "0.0.0",
		requestTimeout: 30 * time.Second,
		logger:         logx.NewDefault(),
		capabilities: protocol.ServerCapabilities{
			Tools:     &protocol.ListChangedCapability{ListChanged: true},
			Prompts:   &protocol.ListChangedCapability{ListChanged: true},
			Resources: &protocol.ResourcesCapability{Subscribe: true, ListChanged: true},
			Logging:   map[string]interface{}{},
		},
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.notifier = notify.NewService(s.logger)
	s.tools = registry.New[*toolEntry]()
	s.prompts = registry.New[*promptEntry]()
	s.resources = registry.New[*resourceEntry]()
	s.templates = registry.NewTemplateRegistry[*resourceTemplateEntry]()

	if s.capabilities.Tools != nil && s.capabilities.Tools.ListChanged {
		s.tools.AddListener(&registry.ChangeListener[*toolEntry]{
			OnListChanged: func() { s.notifier.Publish(notify.KindToolsListChanged, "") },
		})
	}
	if s.capabilities.Prompts != nil && s.capabilities.Prompts.ListChanged {
		s.prompts.AddListener(&registry.ChangeListener[*promptEntry]{
			OnListChanged: func() { s.notifier.Publish(notify.KindPromptsListChanged, "") },
		})
	}
	if s.capabilities.Resources != nil && s.capabilities.Resources.ListChanged {
		s.resources.AddListener(&registry.ChangeListener[*resourceEntry]{
			OnListChanged: func() { s.notifier.Publish(notify.KindResourcesListChanged, "") },
		})
	}
	return s
}

// RegisterTool adds or replaces a tool. Re-registering an existing name
// upserts in place and fires the same list-changed notification a brand
// new tool would.
func (s *Server) RegisterTool(tool protocol.Tool, handler ToolHandlerFunc) {
	s.tools.Add(tool.Name, &toolEntry{tool: tool, handler: handler})
}

func (s *Server) UnregisterTool(name string) bool {
	return s.tools.Remove(name)
}

func (s *Server) RegisterPrompt(prompt protocol.Prompt, handler PromptHandlerFunc) {
	s.prompts.Add(prompt.Name, &promptEntry{prompt: prompt, handler: handler})
}

func (s *Server) UnregisterPrompt(name string) bool {
	return s.prompts.Remove(name)
}

func (s *Server) RegisterResource(resource protocol.Resource, handler ResourceHandlerFunc) {
	s.resources.Add(resource.URI, &resourceEntry{resource: resource, handler: handler})
}

func (s *Server) UnregisterResource(uri string) bool {
	return s.resources.Remove(uri)
}

// RegisterResourceTemplate compiles uriTemplate and registers it; later
// registrations with the same uriTemplate upsert without changing match
// priority, but a genuinely new ambiguous template resolves in favor of
// whichever template was registered first, per TemplateRegistry's
// documented determinism.
func (s *Server) RegisterResourceTemplate(uriTemplate string, meta protocol.ResourceTemplate, handler ResourceHandlerFunc) error {
	meta.URITemplate = uriTemplate
	_, err := s.templates.Add(uriTemplate, &resourceTemplateEntry{template: meta, handler: handler})
	if err != nil {
		return err
	}
	if s.capabilities.Resources != nil && s.capabilities.Resources.ListChanged {
		s.notifier.Publish(notify.KindResourcesListChanged, "")
	}
	return nil
}

func (s *Server) UnregisterResourceTemplate(uriTemplate string) bool {
	ok := s.templates.Remove(uriTemplate)
	if ok && s.capabilities.Resources != nil && s.capabilities.Resources.ListChanged {
		s.notifier.Publish(notify.KindResourcesListChanged, "")
	}
	return ok
}

// NotifyResourceUpdated announces that uri's content changed, delivered to
// every session currently subscribed to it.
func (s *Server) NotifyResourceUpdated(uri string) {
	s.notifier.Publish(notify.KindResourceUpdated, uri)
}

// Sessions returns a snapshot of currently connected sessions.
func (s *Server) Sessions() []*Session {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

func (s *Server) Session(id string) (*Session, bool) {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Server) registerSession(sess *Session) {
	s.sessionsMu.Lock()
	s.sessions[sess.id] = sess
	s.sessionsMu.Unlock()
}

func (s *Server) unregisterSession(id string) {
	s.sessionsMu.Lock()
	delete(s.sessions, id)
	s.sessionsMu.Unlock()
}
