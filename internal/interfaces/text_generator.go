package interfaces

import (
	"context"
	"errors"
)

// ErrUnparseableResponse is returned when a structured generation response cannot be decoded
var ErrUnparseableResponse = errors.New("unparseable text generation response")

// Attachment is a binary document passed alongside a prompt
type Attachment struct {
	Data     []byte
	MIMEType string // e.g. "application/pdf"
	Name     string
}

// GenerationRequest is a single call to the text generator.
// Zero Temperature or MaxTokens leave the provider's configured value in place.
type GenerationRequest struct {
	Task        string // short name used in logs, e.g. "summarize_chunk"
	System      string
	Prompt      string
	Attachment  *Attachment
	Temperature float32
	MaxTokens   int
}

// TextGenerator is the external text generation capability.
// Implementations must bound each call with their own timeout.
type TextGenerator interface {
	Generate(ctx context.Context, request GenerationRequest) (string, error)
}
