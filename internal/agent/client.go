package agent

import "context"

// Invocation carries one generation request to the model.
type Invocation struct {
	System      string
	Prompt      string
	Temperature float64
	// JSONMode asks the model to answer with a JSON document.
	JSONMode bool
}

// ImageRequest carries one image generation request.
type ImageRequest struct {
	Prompt string
	Size   string
	Style  string
}

// Client is the external generation backend invoked by a stage. It is
// injected into the orchestrator so tests can substitute a fake.
type Client interface {
	// Generate returns the model's raw text for the invocation.
	Generate(ctx context.Context, inv Invocation) (string, error)
	// GenerateImage returns a URL where the generated image can be
	// downloaded. The URL may be short-lived; callers are expected to copy
	// the image into durable storage.
	GenerateImage(ctx context.Context, req ImageRequest) (string, error)
}
