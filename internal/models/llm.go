package models

// CompletionRequest is a single call to the language model.
type CompletionRequest struct {
	Model             string
	SystemInstruction string
	Prompt            string
	// WebSearch attaches the search tool so the reply can be grounded.
	WebSearch bool
	// JSONResponse asks the provider for an application/json reply.
	JSONResponse bool
	Temperature  *float32
}

// GroundingChunk is one citation attached to a completion. URI may be empty.
type GroundingChunk struct {
	URI   string
	Title string
}

// Completion is the text reply plus its grounding metadata.
type Completion struct {
	Text      string
	Grounding []GroundingChunk
	Model     string
}
