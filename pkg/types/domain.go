package types

import "encoding/json"

// Model is one node of a model document tree as exchanged over the API.
type Model struct {
	// Stable identifier. Empty marks the node as untracked.
	// example: post-42
	ID string `json:"id,omitempty" example:"post-42"`
	// Model kind. Nodes sharing an ID must share a type to be merged.
	// example: post
	Type string `json:"type,omitempty" example:"post"`
	// Arbitrary payload. Updates merge top-level keys into the stored payload.
	Data map[string]json.RawMessage `json:"data,omitempty" swaggertype:"object"`
	// Child nodes in display order.
	Children []Model `json:"children,omitempty"`
}
