package llm

import "context"

// Block is one piece of user content: either text or an inline PDF document.
type Block struct {
	Text     string
	Document []byte // base64-encoded by the provider, raw bytes here
}

func TextBlock(s string) Block     { return Block{Text: s} }
func DocumentBlock(b []byte) Block { return Block{Document: b} }
func (b Block) IsDocument() bool   { return len(b.Document) > 0 }

// Request is one create-message call: a system prompt plus a mixed list of
// user content blocks.
type Request struct {
	System    string
	Blocks    []Block
	MaxTokens int
}

type Provider interface {
	// Complete returns the first text block of the model's response.
	Complete(ctx context.Context, req Request) (string, error)
}
