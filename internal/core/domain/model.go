package domain

type ConversationRole string

const RoleUser ConversationRole = "user"

// ModelRequest is a single-turn converse request.
type ModelRequest struct {
	ModelID  string
	Messages []Message
}

type Message struct {
	Role    ConversationRole `json:"role"`
	Content []ContentBlock   `json:"content"`
}

// ContentBlock is a tagged union; exactly one field is set on well-formed blocks.
// Variants this pipeline does not produce are kept raw so validation can still
// tell them apart from text.
type ContentBlock struct {
	Text     *string        `json:"text,omitempty"`
	Document *DocumentBlock `json:"document,omitempty"`

	Image      map[string]any `json:"image,omitempty"`
	ToolUse    map[string]any `json:"toolUse,omitempty"`
	ToolResult map[string]any `json:"toolResult,omitempty"`
	Reasoning  map[string]any `json:"reasoningContent,omitempty"`
}

type DocumentBlock struct {
	Format DocumentFormat `json:"format"`
	Name   string         `json:"name"`
	Source DocumentSource `json:"source"`
}

// DocumentSource carries raw bytes; encoding/json writes them as base64.
type DocumentSource struct {
	Bytes []byte `json:"bytes"`
}

func TextBlock(text string) ContentBlock {
	return ContentBlock{Text: &text}
}

func DocumentContent(blob DocumentBlob) ContentBlock {
	return ContentBlock{Document: &DocumentBlock{
		Format: blob.Format,
		Name:   blob.Name,
		Source: DocumentSource{Bytes: blob.Bytes},
	}}
}

// ModelResponse is the converse response envelope.
type ModelResponse struct {
	Output     *ConverseOutput `json:"output,omitempty"`
	StopReason string          `json:"stopReason,omitempty"`
	Usage      *TokenUsage     `json:"usage,omitempty"`
}

// ConverseOutput is a tagged union whose only known variant is a message.
type ConverseOutput struct {
	Message *Message `json:"message,omitempty"`
}

type TokenUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}
