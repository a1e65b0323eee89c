package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"

	"github.com/polittech/stratagem/internal/llm"
	"github.com/polittech/stratagem/internal/pkg/httpclient"
)

const blackboxChatURL = "https://www.blackbox.ai/api/chat"

// blackboxTemplate is the payload skeleton the web client sends; per-call
// fields are spliced in with sjson.
const blackboxTemplate = `{
	"messages": [],
	"id": "",
	"previewToken": null,
	"userId": null,
	"codeModelMode": true,
	"agentMode": {},
	"trendingAgentMode": {},
	"isMicMode": false,
	"userSystemPrompt": null,
	"maxTokens": 1024,
	"playgroundTopP": null,
	"playgroundTemperature": null,
	"isChromeExt": false,
	"githubToken": null,
	"clickedAnswer2": false,
	"clickedAnswer3": false,
	"clickedForceWebSearch": false,
	"visitFromDelta": false,
	"mobileClient": false,
	"userSelectedModel": null
}`

// blackboxModels maps backend handles to the userSelectedModel values the
// endpoint recognizes. Handles without a mapping run on the default agent.
var blackboxModels = map[string]string{
	"gpt-4":           "gpt-4o",
	"gpt-4o":          "gpt-4o",
	"claude-3-opus":   "claude-sonnet-3.5",
	"claude-3-sonnet": "claude-sonnet-3.5",
	"gemini-1.5-pro":  "gemini-pro",
	"llama-3-70b":     "llama-3.1-70b",
}

var (
	// Blackbox wraps answers in version markers and an optional web-search
	// sources block.
	blackboxVersionMarker = regexp.MustCompile(`\$@\$.*?\$@\$`)
	blackboxSourcesBlock  = regexp.MustCompile(`(?s)\$~~~\$.*?\$~~~\$`)
)

// Blackbox talks to the blackbox.ai chat endpoint. Answers stream as plain
// text, not SSE.
type Blackbox struct {
	chatURL string
}

func NewBlackbox() *Blackbox {
	return &Blackbox{chatURL: blackboxChatURL}
}

func (b *Blackbox) Name() string { return "blackbox" }

func (b *Blackbox) BuildRequest(ctx context.Context, client *httpclient.HttpClient, req *llm.Request, handle string) (*httpclient.Request, error) {
	messages, err := json.Marshal(blackboxMessages(req.Messages))
	if err != nil {
		return nil, fmt.Errorf("encode blackbox messages: %w", err)
	}

	body := []byte(blackboxTemplate)

	body, err = sjson.SetRawBytes(body, "messages", messages)
	if err != nil {
		return nil, fmt.Errorf("build blackbox payload: %w", err)
	}

	body, err = sjson.SetBytes(body, "id", conversationID(req))
	if err != nil {
		return nil, fmt.Errorf("build blackbox payload: %w", err)
	}

	if model, ok := blackboxModels[handle]; ok {
		body, err = sjson.SetBytes(body, "userSelectedModel", model)
		if err != nil {
			return nil, fmt.Errorf("build blackbox payload: %w", err)
		}
	}

	if req.Temperature != nil {
		body, err = sjson.SetBytes(body, "playgroundTemperature", *req.Temperature)
		if err != nil {
			return nil, fmt.Errorf("build blackbox payload: %w", err)
		}
	}

	if req.MaxTokens != nil {
		body, err = sjson.SetBytes(body, "maxTokens", *req.MaxTokens)
		if err != nil {
			return nil, fmt.Errorf("build blackbox payload: %w", err)
		}
	}

	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")
	headers.Set("Origin", "https://www.blackbox.ai")
	headers.Set("Referer", "https://www.blackbox.ai/")

	return &httpclient.Request{
		Method:  http.MethodPost,
		URL:     b.chatURL,
		Headers: headers,
		Body:    body,
	}, nil
}

func (b *Blackbox) ParseResponse(req *llm.Request, body []byte) (*llm.Response, error) {
	return llm.TextResponse(req.Model, b.Name(), b.FinishStream(string(body))), nil
}

func (b *Blackbox) ParseChunk(req *llm.Request, data []byte) (*llm.Response, bool) {
	content, ok := unwrapContent(data)
	if !ok {
		return nil, false
	}

	return textDelta(req, b.Name(), content), true
}

// FinishStream strips the endpoint's answer wrappers once the full text is
// assembled; the markers can split across stream frames.
func (b *Blackbox) FinishStream(text string) string {
	text = blackboxSourcesBlock.ReplaceAllString(text, "")
	text = blackboxVersionMarker.ReplaceAllString(text, "")

	return strings.TrimSpace(text)
}

type blackboxMessage struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

func blackboxMessages(messages []llm.Message) []blackboxMessage {
	out := make([]blackboxMessage, 0, len(messages))
	for i, msg := range messages {
		out = append(out, blackboxMessage{
			ID:      fmt.Sprintf("msg-%d", i+1),
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	return out
}

// conversationID prefers the orchestrator's request id so backend logs line
// up with ours.
func conversationID(req *llm.Request) string {
	if req.Metadata != nil {
		if id := req.Metadata["request_id"]; id != "" {
			return id
		}
	}

	return uuid.NewString()
}
