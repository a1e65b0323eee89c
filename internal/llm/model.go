package llm

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Message roles. The generation tasks only ever use the chat-completions
// roles, so the set is closed.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single role-tagged entry of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Request is the provider-agnostic generation request. It is based on the
// OpenAI chat-completions shape, which every supported backend accepts as the
// payload baseline; provider adapters add their own fields on top of the
// serialized form.
//
// A Request is treated as immutable once handed to the orchestrator; the
// mutating helpers return copies.
type Request struct {
	// Messages is the ordered conversation to send. At least one entry.
	Messages []Message `json:"messages"`

	// Model is the backend model handle used to generate the response.
	Model string `json:"model"`

	// Temperature controls sampling randomness, between 0 and 1.
	Temperature *float64 `json:"temperature,omitempty"`

	// TopP is the nucleus-sampling alternative to Temperature.
	TopP *float64 `json:"top_p,omitempty"`

	// MaxTokens caps the completion length.
	MaxTokens *int64 `json:"max_tokens,omitempty"`

	// Stream requests incremental delivery.
	Stream *bool `json:"stream,omitempty"`

	// Metadata carries orchestration hints such as the task name.
	// Never serialized to a backend.
	Metadata map[string]string `json:"-"`
}

func NewRequest(model string, messages ...Message) *Request {
	return &Request{
		Model:    model,
		Messages: messages,
	}
}

func (r *Request) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}

	if r.Model == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidRequest)
	}

	if len(r.Messages) == 0 {
		return fmt.Errorf("%w: at least one message is required", ErrInvalidRequest)
	}

	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 1) {
		return fmt.Errorf("%w: temperature %v out of range [0, 1]", ErrInvalidRequest, *r.Temperature)
	}

	return nil
}

// Clone returns a deep copy. Messages and Metadata do not alias the receiver.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}

	clone := *r
	clone.Messages = slices.Clone(r.Messages)

	if r.Metadata != nil {
		clone.Metadata = maps.Clone(r.Metadata)
	}

	return &clone
}

// WithStream returns a copy with the stream flag set. The gateway uses it to
// replay a failed streaming call as a buffered one.
func (r *Request) WithStream(stream bool) *Request {
	clone := r.Clone()
	clone.Stream = &stream

	return clone
}

// Response is the unified generation response. Buffered calls fill Choices
// with full messages; stream chunks fill deltas.
type Response struct {
	ID      string   `json:"id,omitempty"`
	Object  string   `json:"object,omitempty"`
	Created int64    `json:"created,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices,omitempty"`
	Usage   *Usage   `json:"usage,omitempty"`

	// Provider is the backend that produced the response. Never serialized.
	Provider string `json:"-"`

	// Raw is the undecoded backend payload, kept for debug logging.
	Raw json.RawMessage `json:"-"`
}

type Choice struct {
	Index        int      `json:"index"`
	Message      *Message `json:"message,omitempty"`
	Delta        *Message `json:"delta,omitempty"`
	FinishReason *string  `json:"finish_reason,omitempty"`
}

type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Text returns the assistant text of the first choice, preferring the full
// message over a stream delta.
func (r *Response) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}

	choice := r.Choices[0]
	if choice.Message != nil {
		return choice.Message.Content
	}

	if choice.Delta != nil {
		return choice.Delta.Content
	}

	return ""
}

// Empty reports whether the response carries no visible text.
// Whitespace-only output counts as empty.
func (r *Response) Empty() bool {
	return strings.TrimSpace(r.Text()) == ""
}

// TextResponse builds a minimal buffered response around plain assistant
// text. Adapters use it for backends that answer with raw text instead of a
// chat-completions object.
func TextResponse(model, provider, text string) *Response {
	msg := AssistantMessage(text)

	return &Response{
		Object:   "chat.completion",
		Model:    model,
		Provider: provider,
		Choices:  []Choice{{Message: &msg}},
	}
}
