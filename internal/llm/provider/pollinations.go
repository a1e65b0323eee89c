package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/polittech/stratagem/internal/llm"
	"github.com/polittech/stratagem/internal/pkg/httpclient"
)

const pollinationsChatURL = "https://text.pollinations.ai/openai"

// pollinationsModels maps backend handles to the service's model families.
var pollinationsModels = map[string]string{
	"gpt-4":           "openai-large",
	"gpt-4o":          "openai",
	"gpt-4o-mini":     "openai",
	"claude-3-opus":   "claude",
	"claude-3-sonnet": "claude",
	"claude-3-haiku":  "claude",
	"gemini-1.5-pro":  "gemini",
	"llama-3-70b":     "llama",
	"mixtral-8x7b":    "mistral",
}

// Pollinations talks to the text.pollinations.ai OpenAI-compatible endpoint.
// The one backend that both accepts and answers the chat-completions shape
// unmodified.
type Pollinations struct {
	chatURL string
}

func NewPollinations() *Pollinations {
	return &Pollinations{chatURL: pollinationsChatURL}
}

func (p *Pollinations) Name() string { return "pollinations" }

func (p *Pollinations) BuildRequest(ctx context.Context, client *httpclient.HttpClient, req *llm.Request, handle string) (*httpclient.Request, error) {
	model, ok := pollinationsModels[handle]
	if !ok {
		return nil, fmt.Errorf("%w: pollinations does not serve %q", ErrUnsupportedModel, handle)
	}

	wire := req.Clone()
	wire.Model = model

	payload := struct {
		*llm.Request

		// Keeps generations off the public feed.
		Private bool `json:"private"`
	}{
		Request: wire,
		Private: true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode pollinations request: %w", err)
	}

	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")

	return &httpclient.Request{
		Method:  http.MethodPost,
		URL:     p.chatURL,
		Headers: headers,
		Body:    body,
	}, nil
}

func (p *Pollinations) ParseResponse(req *llm.Request, body []byte) (*llm.Response, error) {
	resp, err := parseOpenAIResponse(p.Name(), body)
	if err != nil {
		// Some model families answer with bare text even on the OpenAI route.
		return llm.TextResponse(req.Model, p.Name(), string(body)), nil
	}

	return resp, nil
}

func (p *Pollinations) ParseChunk(req *llm.Request, data []byte) (*llm.Response, bool) {
	return parseOpenAIChunk(req, p.Name(), data)
}
