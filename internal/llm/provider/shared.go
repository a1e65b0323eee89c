package provider

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/polittech/stratagem/internal/llm"
	"github.com/polittech/stratagem/internal/pkg/xjson"
)

// doneMarker terminates OpenAI-style event streams.
var doneMarker = []byte("[DONE]")

// IsDone reports whether the frame is the end-of-stream marker.
func IsDone(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), doneMarker)
}

// unwrapContent extracts visible text from one stream frame. Frames arrive
// in several shapes: OpenAI chunk objects, bare {"content": ...} envelopes,
// DDG {"message": ...} envelopes, payloads still carrying a nested "data:"
// prefix, or plain text. Broken JSON goes through a repair pass; frames that
// still do not yield content are dropped.
func unwrapContent(data []byte) (string, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return "", false
	}

	if nested, ok := bytes.CutPrefix(trimmed, []byte("data:")); ok {
		return unwrapContent(nested)
	}

	if trimmed[0] != '{' {
		// Plain text frame. Keep it verbatim, inter-frame spacing matters.
		return string(data), true
	}

	doc := xjson.SafeJSONRawMessage(string(trimmed))

	if content := gjson.GetBytes(doc, "choices.0.delta.content"); content.Exists() {
		return content.String(), true
	}

	if content := gjson.GetBytes(doc, "choices.0.message.content"); content.Exists() {
		return content.String(), true
	}

	if content := gjson.GetBytes(doc, "content"); content.Exists() {
		return content.String(), true
	}

	if message := gjson.GetBytes(doc, "message"); message.Type == gjson.String {
		return message.String(), true
	}

	return "", false
}

// textDelta wraps plain stream text into a chunk response.
func textDelta(req *llm.Request, name, content string) *llm.Response {
	msg := llm.AssistantMessage(content)

	return &llm.Response{
		Object:   "chat.completion.chunk",
		Model:    req.Model,
		Provider: name,
		Choices:  []llm.Choice{{Delta: &msg}},
	}
}

// parseOpenAIResponse decodes a chat-completions object body.
func parseOpenAIResponse(name string, body []byte) (*llm.Response, error) {
	var resp llm.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", name, err)
	}

	resp.Provider = name
	resp.Raw = json.RawMessage(body)

	return &resp, nil
}

// parseOpenAIChunk decodes a chat-completions stream frame, falling back to
// the generic envelope unwrap for off-spec frames.
func parseOpenAIChunk(req *llm.Request, name string, data []byte) (*llm.Response, bool) {
	var resp llm.Response
	if err := json.Unmarshal(data, &resp); err == nil && len(resp.Choices) > 0 {
		resp.Provider = name
		return &resp, true
	}

	content, ok := unwrapContent(data)
	if !ok {
		return nil, false
	}

	return textDelta(req, name, content), true
}
