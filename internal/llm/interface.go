package llm

import (
	"context"

	"parley/internal/chat"
	"parley/internal/stream"
)

// Completer is the remote assistant-completion collaborator: given the full
// message history it returns the byte stream of the reply. It is an interface
// so the controller can be tested against scripted streams.
type Completer interface {
	StreamCompletion(ctx context.Context, msgs []chat.Message) (stream.Source, error)
}
