package conversation

import "context"

// Capability describes an external callable the TOOL step may invoke.
type Capability struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Registry exposes external capabilities to the orchestrator.
type Registry interface {
	ListCapabilities(ctx context.Context) []Capability
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)
}
