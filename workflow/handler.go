package workflow

import "context"

// HandlerInput is the uniform input passed to every stage handler.
type HandlerInput struct {
	TaskDescription string
	InputData       map[string]any
	Metadata        map[string]any
	WorkflowID      string
	StageName       string
}

// Handler is the contract between the engine and a domain agent. Handlers
// receive an immutable input snapshot and return a value; they never touch
// the WorkflowContext. The engine enforces no timeout: a handler that needs
// one must implement it itself against ctx.
type Handler interface {
	Handle(ctx context.Context, input HandlerInput) StageResult
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, input HandlerInput) StageResult

// Handle invokes the function.
func (f HandlerFunc) Handle(ctx context.Context, input HandlerInput) StageResult {
	return f(ctx, input)
}
