package registry

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/yosida95/uritemplate/v3"
)

// CompiledTemplate is an RFC 6570 Level-1 URI template ({var} matching one
// path segment, {var*} matching the rest greedily, {?q,...} matching
// query parameters) compiled once at registration time into a regular
// expression, per the determinism requirement on resource template
// matching: ambiguous templates always resolve the same way for a given
// registry rather than depending on map iteration order.
type CompiledTemplate struct {
	Raw         string
	PathVars    []string
	QueryVars   []string
	pathRe      *regexp.Regexp
}

var segmentVar = regexp.MustCompile(`\{(\*?)([a-zA-Z0-9_]+)(\*?)\}`)
var queryVar = regexp.MustCompile(`\{\?([a-zA-Z0-9_,]+)\}`)

// CompileTemplate parses raw using yosida95/uritemplate (for RFC 6570
// variable discovery and validation) and builds the regexp this package
// actually matches against, since the template library itself does not
// expose a way to enumerate or order overlapping matches deterministically.
func CompileTemplate(raw string) (*CompiledTemplate, error) {
	tmpl, err := uritemplate.New(raw)
	if err != nil {
		return nil, fmt.Errorf("registry: invalid uri template %q: %w", raw, err)
	}
	known := make(map[string]bool)
	for _, v := range tmpl.Varnames() {
		known[v] = true
	}

	pathPart := raw
	var queryVars []string
	if loc := queryVar.FindStringSubmatchIndex(raw); loc != nil {
		names := strings.Split(raw[loc[2]:loc[3]], ",")
		queryVars = append(queryVars, names...)
		pathPart = raw[:loc[0]] + raw[loc[1]:]
	}

	var sb strings.Builder
	sb.WriteString("^")
	last := 0
	var pathVars []string
	for _, loc := range segmentVar.FindAllStringSubmatchIndex(pathPart, -1) {
		sb.WriteString(regexp.QuoteMeta(pathPart[last:loc[0]]))
		greedy := pathPart[loc[2]:loc[3]] == "*" || pathPart[loc[6]:loc[7]] == "*"
		name := pathPart[loc[4]:loc[5]]
		pathVars = append(pathVars, name)
		if greedy {
			sb.WriteString(fmt.Sprintf("(?P<%s>.*)", safeGroupName(name)))
		} else {
			sb.WriteString(fmt.Sprintf("(?P<%s>[^/]+)", safeGroupName(name)))
		}
		last = loc[1]
	}
	sb.WriteString(regexp.QuoteMeta(pathPart[last:]))
	sb.WriteString("$")

	re, err := regexp.Compile(sb.String())
	if err != nil {
		return nil, fmt.Errorf("registry: compiling template %q: %w", raw, err)
	}

	return &CompiledTemplate{Raw: raw, PathVars: pathVars, QueryVars: queryVars, pathRe: re}, nil
}

// safeGroupName makes a template variable name safe as a Go regexp named
// capture group; MCP templates use identifier-like names so this is
// normally a no-op.
func safeGroupName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// Match reports whether uri satisfies the template, returning the
// extracted path and query variables on success.
func (c *CompiledTemplate) Match(uri string) (map[string]string, bool) {
	path := uri
	var query url.Values
	if idx := strings.IndexByte(uri, '?'); idx >= 0 {
		path = uri[:idx]
		query, _ = url.ParseQuery(uri[idx+1:])
	}

	m := c.pathRe.FindStringSubmatch(path)
	if m == nil {
		return nil, false
	}
	vars := make(map[string]string, len(c.PathVars)+len(c.QueryVars))
	for i, name := range c.pathRe.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		vars[name] = m[i]
	}
	for _, qv := range c.QueryVars {
		if query != nil {
			if v := query.Get(qv); v != "" {
				vars[qv] = v
			}
		}
	}
	return vars, true
}

// TemplateEntry pairs a compiled template with the caller's value (the
// registered feature, e.g. a resource-template handler descriptor).
type TemplateEntry[T any] struct {
	Template *CompiledTemplate
	Value    T
}

// TemplateRegistry holds resource templates in registration order and
// resolves ambiguous matches deterministically: the first template
// registered that matches a given URI wins, regardless of how many other
// templates would also match.
type TemplateRegistry[T any] struct {
	mu      sync.RWMutex
	entries []*TemplateEntry[T]
	byRaw   map[string]*TemplateEntry[T]
}

func NewTemplateRegistry[T any]() *TemplateRegistry[T] {
	return &TemplateRegistry[T]{byRaw: make(map[string]*TemplateEntry[T])}
}

func (tr *TemplateRegistry[T]) Add(raw string, value T) (*CompiledTemplate, error) {
	tmpl, err := CompileTemplate(raw)
	if err != nil {
		return nil, err
	}
	entry := &TemplateEntry[T]{Template: tmpl, Value: value}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if existing, ok := tr.byRaw[raw]; ok {
		// Replace in place so registration order (and therefore match
		// priority) is preserved across re-registration.
		*existing = *entry
		return tmpl, nil
	}
	tr.byRaw[raw] = entry
	tr.entries = append(tr.entries, entry)
	return tmpl, nil
}

func (tr *TemplateRegistry[T]) Remove(raw string) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	entry, ok := tr.byRaw[raw]
	if !ok {
		return false
	}
	delete(tr.byRaw, raw)
	for i, e := range tr.entries {
		if e == entry {
			tr.entries = append(tr.entries[:i], tr.entries[i+1:]...)
			break
		}
	}
	return true
}

// Match returns the first (by registration order) template matching uri.
func (tr *TemplateRegistry[T]) Match(uri string) (T, map[string]string, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	var zero T
	for _, entry := range tr.entries {
		if vars, ok := entry.Template.Match(uri); ok {
			return entry.Value, vars, true
		}
	}
	return zero, nil, false
}

func (tr *TemplateRegistry[T]) List() []*TemplateEntry[T] {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	out := make([]*TemplateEntry[T], len(tr.entries))
	copy(out, tr.entries)
	return out
}
