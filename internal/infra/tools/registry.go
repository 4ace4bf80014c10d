package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bryanwahyu/scan-insight/internal/domain/conversation"
)

// Tool is one in-process capability.
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]any // JSON schema for arguments
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Registry implements conversation.Registry over registered tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: map[string]Tool{}}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// ListCapabilities returns the tools sorted by name.
func (r *Registry) ListCapabilities(context.Context) []conversation.Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]conversation.Capability, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, conversation.Capability{Name: t.Name(), Description: t.Description(), Parameters: t.Schema()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	if args == nil {
		args = map[string]any{}
	}
	return t.Execute(ctx, args)
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("argument %q must be a non-empty string", key)
	}
	return s, nil
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	return map[string]any{"type": "object", "properties": props, "required": required}
}
