package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/polittech/stratagem/internal/llm"
	"github.com/polittech/stratagem/internal/pkg/httpclient"
)

const (
	liaobotsBaseURL = "https://liaobots.work"

	liaobotsLoginPath = "/recaptcha/api/login"
	liaobotsUserPath  = "/api/user"
	liaobotsChatPath  = "/api/chat"

	liaobotsAuthHeader = "x-auth-code"

	// Static login token the web client ships with.
	liaobotsLoginToken = "abcdefghijklmnopqrst"

	liaobotsDefaultPrompt = "You are a helpful assistant."
)

type liaobotsModel struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	MaxLength  int    `json:"maxLength"`
	TokenLimit int    `json:"tokenLimit"`
}

// liaobotsModels maps backend handles to the endpoint's model descriptors.
var liaobotsModels = map[string]liaobotsModel{
	"gpt-4":           {ID: "gpt-4-0613", Name: "GPT-4", MaxLength: 32000, TokenLimit: 7600},
	"gpt-4o":          {ID: "gpt-4o-2024-08-06", Name: "GPT-4o", MaxLength: 124000, TokenLimit: 100000},
	"gpt-4o-mini":     {ID: "gpt-4o-mini-2024-07-18", Name: "GPT-4o-Mini", MaxLength: 124000, TokenLimit: 100000},
	"claude-3-opus":   {ID: "claude-3-opus-20240229", Name: "Claude-3-Opus", MaxLength: 800000, TokenLimit: 200000},
	"claude-3-sonnet": {ID: "claude-3-sonnet-20240229", Name: "Claude-3-Sonnet", MaxLength: 800000, TokenLimit: 200000},
	"claude-3-haiku":  {ID: "claude-3-haiku-20240307", Name: "Claude-3-Haiku", MaxLength: 800000, TokenLimit: 200000},
	"gemini-1.5-pro":  {ID: "gemini-1.5-pro-latest", Name: "Gemini-1.5-Pro", MaxLength: 4000000, TokenLimit: 1000000},
}

// Liaobots talks to the liaobots.work relay. Each call walks the login/user
// pre-flight to obtain a one-shot auth code; answers stream as plain text.
type Liaobots struct {
	baseURL string
}

func NewLiaobots() *Liaobots {
	return &Liaobots{baseURL: liaobotsBaseURL}
}

func (l *Liaobots) Name() string { return "liaobots" }

func (l *Liaobots) BuildRequest(ctx context.Context, client *httpclient.HttpClient, req *llm.Request, handle string) (*httpclient.Request, error) {
	model, ok := liaobotsModels[handle]
	if !ok {
		return nil, fmt.Errorf("%w: liaobots does not serve %q", ErrUnsupportedModel, handle)
	}

	authCode, err := l.fetchAuthCode(ctx, client)
	if err != nil {
		return nil, err
	}

	prompt, messages := splitSystemPrompt(req.Messages)
	if prompt == "" {
		prompt = liaobotsDefaultPrompt
	}

	payload := struct {
		ConversationID string        `json:"conversationId"`
		Model          liaobotsModel `json:"model"`
		Messages       []llm.Message `json:"messages"`
		Key            string        `json:"key"`
		Prompt         string        `json:"prompt"`
	}{
		ConversationID: uuid.NewString(),
		Model:          model,
		Messages:       messages,
		Key:            "",
		Prompt:         prompt,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode liaobots request: %w", err)
	}

	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")
	headers.Set(liaobotsAuthHeader, authCode)
	headers.Set("Origin", liaobotsBaseURL)
	headers.Set("Referer", liaobotsBaseURL+"/")

	return &httpclient.Request{
		Method:  http.MethodPost,
		URL:     l.baseURL + liaobotsChatPath,
		Headers: headers,
		Body:    body,
	}, nil
}

// fetchAuthCode performs the login/user pre-flight chain.
func (l *Liaobots) fetchAuthCode(ctx context.Context, client *httpclient.HttpClient) (string, error) {
	login, err := json.Marshal(map[string]string{"token": liaobotsLoginToken})
	if err != nil {
		return "", err
	}

	if _, err := client.Do(ctx, &httpclient.Request{
		Method: http.MethodPost,
		URL:    l.baseURL + liaobotsLoginPath,
		Body:   login,
	}); err != nil {
		return "", fmt.Errorf("liaobots login: %w", err)
	}

	resp, err := client.Do(ctx, &httpclient.Request{
		Method: http.MethodPost,
		URL:    l.baseURL + liaobotsUserPath,
		Body:   []byte(`{"authcode": ""}`),
	})
	if err != nil {
		return "", fmt.Errorf("liaobots user: %w", err)
	}

	authCode := gjson.GetBytes(resp.Body, "authCode").String()
	if authCode == "" {
		return "", fmt.Errorf("liaobots user response carried no auth code")
	}

	return authCode, nil
}

func (l *Liaobots) ParseResponse(req *llm.Request, body []byte) (*llm.Response, error) {
	return llm.TextResponse(req.Model, l.Name(), strings.TrimSpace(string(body))), nil
}

func (l *Liaobots) ParseChunk(req *llm.Request, data []byte) (*llm.Response, bool) {
	content, ok := unwrapContent(data)
	if !ok {
		return nil, false
	}

	return textDelta(req, l.Name(), content), true
}

// splitSystemPrompt lifts system messages into the dedicated prompt field.
func splitSystemPrompt(messages []llm.Message) (string, []llm.Message) {
	var system []string

	rest := make([]llm.Message, 0, len(messages))

	for _, msg := range messages {
		if msg.Role == llm.RoleSystem {
			system = append(system, msg.Content)
			continue
		}

		rest = append(rest, msg)
	}

	return strings.Join(system, "\n"), rest
}
