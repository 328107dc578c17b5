// Package narrative defines the external narrative generator consumed by
// reflections.
package narrative

import (
	"context"
	"encoding/json"
)

// Narrative is generated reflection text.
type Narrative struct {
	Summary     string   `json:"summary"`
	Suggestions []string `json:"suggestions"`
}

// Request carries the computed aggregate and redacted moment descriptions.
// Context must never contain raw identifying text.
type Request struct {
	Computed json.RawMessage
	Context  []string
}

// Generator produces a narrative from aggregates. Implementations honour ctx
// cancellation and deadlines.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Narrative, error)
}
