// Package llm abstracts the language-model completion service. Two request
// modes are supported: free-text completion and structured completion
// constrained to a declared JSON schema.
package llm

import (
	"context"
	"encoding/json"
)

// Message is one role-tagged entry in a chat request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat roles understood by the completion service.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// System builds a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User builds a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Provider is the completion service interface injected into every pipeline
// stage, so tests can substitute a stub for the hosted model.
type Provider interface {
	// Generate returns the model's free-text reply verbatim.
	Generate(ctx context.Context, messages []Message) (string, error)

	// GenerateStructured constrains the reply to the supplied JSON schema and
	// decodes it into out.
	GenerateStructured(ctx context.Context, messages []Message, schemaName string, schema json.RawMessage, out any) error
}
