package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/polittech/stratagem/internal/llm"
	"github.com/polittech/stratagem/internal/pkg/httpclient"
)

const (
	ddgStatusURL = "https://duckduckgo.com/duckchat/v1/status"
	ddgChatURL   = "https://duckduckgo.com/duckchat/v1/chat"

	ddgVQDHeader       = "x-vqd-4"
	ddgVQDAcceptHeader = "x-vqd-accept"
)

// ddgModels maps backend handles to DuckDuckGo model identifiers.
var ddgModels = map[string]string{
	"gpt-4o":         "gpt-4o-mini",
	"gpt-4o-mini":    "gpt-4o-mini",
	"claude-3-haiku": "claude-3-haiku-20240307",
	"llama-3-70b":    "meta-llama/Llama-3.3-70B-Instruct-Turbo",
	"mixtral-8x7b":   "mistralai/Mixtral-8x7B-Instruct-v0.1",
}

// DDG talks to the DuckDuckGo AI chat endpoint. Every call fetches a fresh
// VQD session token first; the backend rotates it per conversation and a
// stale token is rejected with 418.
type DDG struct {
	statusURL string
	chatURL   string
}

func NewDDG() *DDG {
	return &DDG{
		statusURL: ddgStatusURL,
		chatURL:   ddgChatURL,
	}
}

func (d *DDG) Name() string { return "ddg" }

func (d *DDG) BuildRequest(ctx context.Context, client *httpclient.HttpClient, req *llm.Request, handle string) (*httpclient.Request, error) {
	model, ok := ddgModels[handle]
	if !ok {
		return nil, fmt.Errorf("%w: ddg does not serve %q", ErrUnsupportedModel, handle)
	}

	vqd, err := d.fetchVQD(ctx, client)
	if err != nil {
		return nil, err
	}

	payload := struct {
		Model    string        `json:"model"`
		Messages []llm.Message `json:"messages"`
	}{
		Model:    model,
		Messages: foldSystemMessages(req.Messages),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode ddg request: %w", err)
	}

	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")
	headers.Set(ddgVQDHeader, vqd)

	return &httpclient.Request{
		Method:  http.MethodPost,
		URL:     d.chatURL,
		Headers: headers,
		Body:    body,
	}, nil
}

// fetchVQD asks the status endpoint for a session token.
func (d *DDG) fetchVQD(ctx context.Context, client *httpclient.HttpClient) (string, error) {
	headers := make(http.Header)
	headers.Set(ddgVQDAcceptHeader, "1")

	resp, err := client.Do(ctx, &httpclient.Request{
		Method:  http.MethodGet,
		URL:     d.statusURL,
		Headers: headers,
	})
	if err != nil {
		return "", fmt.Errorf("fetch ddg vqd token: %w", err)
	}

	vqd := resp.Headers.Get(ddgVQDHeader)
	if vqd == "" {
		return "", fmt.Errorf("ddg status response carried no %s header", ddgVQDHeader)
	}

	return vqd, nil
}

func (d *DDG) ParseResponse(req *llm.Request, body []byte) (*llm.Response, error) {
	if action := gjson.GetBytes(body, "action"); action.String() == "error" {
		return nil, fmt.Errorf("ddg error response: %s", gjson.GetBytes(body, "type").String())
	}

	// Buffered calls still answer with an SSE transcript.
	var sb strings.Builder

	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line, ok := bytes.CutPrefix(scanner.Bytes(), []byte("data:"))
		if !ok || IsDone(line) {
			continue
		}

		if content, ok := unwrapContent(line); ok {
			sb.WriteString(content)
		}
	}

	return llm.TextResponse(req.Model, d.Name(), sb.String()), nil
}

func (d *DDG) ParseChunk(req *llm.Request, data []byte) (*llm.Response, bool) {
	if gjson.GetBytes(data, "action").String() == "error" {
		return nil, false
	}

	content, ok := unwrapContent(data)
	if !ok {
		return nil, false
	}

	return textDelta(req, d.Name(), content), true
}

// foldSystemMessages merges system entries into the first user turn, the
// endpoint only accepts user and assistant roles.
func foldSystemMessages(messages []llm.Message) []llm.Message {
	var system []string

	folded := make([]llm.Message, 0, len(messages))

	for _, msg := range messages {
		if msg.Role == llm.RoleSystem {
			system = append(system, msg.Content)
			continue
		}

		folded = append(folded, msg)
	}

	if len(system) == 0 {
		return folded
	}

	prefix := strings.Join(system, "\n")

	for i := range folded {
		if folded[i].Role == llm.RoleUser {
			folded[i].Content = prefix + "\n\n" + folded[i].Content
			return folded
		}
	}

	return append([]llm.Message{llm.UserMessage(prefix)}, folded...)
}
