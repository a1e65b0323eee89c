package provider

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polittech/stratagem/internal/llm"
	"github.com/polittech/stratagem/internal/pkg/xtest"
)

func TestIsDone(t *testing.T) {
	require.True(t, IsDone([]byte("[DONE]")))
	require.True(t, IsDone([]byte("  [DONE]\n")))
	require.False(t, IsDone([]byte(`{"content": "x"}`)))
}

func TestUnwrapContent(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		want   string
		wantOK bool
	}{
		{
			name:   "openai delta chunk",
			data:   `{"choices":[{"delta":{"content":"Гра"}}]}`,
			want:   "Гра",
			wantOK: true,
		},
		{
			name:   "openai full message",
			data:   `{"choices":[{"message":{"role":"assistant","content":"ответ"}}]}`,
			want:   "ответ",
			wantOK: true,
		},
		{
			name:   "content envelope",
			data:   `{"content": "кусок"}`,
			want:   "кусок",
			wantOK: true,
		},
		{
			name:   "ddg message envelope",
			data:   `{"role":"assistant","message":"дельта"}`,
			want:   "дельта",
			wantOK: true,
		},
		{
			name:   "nested data prefix",
			data:   `data: {"content": "вложенный"}`,
			want:   "вложенный",
			wantOK: true,
		},
		{
			name:   "plain text keeps spacing",
			data:   " и дальше",
			want:   " и дальше",
			wantOK: true,
		},
		{
			name:   "repairable json",
			data:   `{content: 'починено'}`,
			want:   "починено",
			wantOK: true,
		},
		{
			name:   "empty frame dropped",
			data:   "   ",
			wantOK: false,
		},
		{
			name:   "object without content dropped",
			data:   `{"status": "ok"}`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := unwrapContent([]byte(tt.data))
			require.Equal(t, tt.wantOK, ok)

			if tt.wantOK {
				require.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseOpenAIChunk_FallsBackToEnvelope(t *testing.T) {
	req := llm.NewRequest("gpt-4o", llm.UserMessage("q"))

	resp, ok := parseOpenAIChunk(req, "pollinations", []byte(`{"content": "текст"}`))
	require.True(t, ok)
	require.Equal(t, "текст", resp.Text())
	require.Equal(t, "pollinations", resp.Provider)
}

func TestParseOpenAIResponse(t *testing.T) {
	body := []byte(`{"id": "r1", "object": "chat.completion", "model": "openai", "choices": [{"index": 0, "message": {"role": "assistant", "content": "готово"}}]}`)

	resp, err := parseOpenAIResponse("pollinations", body)
	require.NoError(t, err)

	msg := llm.AssistantMessage("готово")
	want := &llm.Response{
		ID:       "r1",
		Object:   "chat.completion",
		Model:    "openai",
		Provider: "pollinations",
		Choices:  []llm.Choice{{Message: &msg}},
		Raw:      json.RawMessage(`{"id":"r1","object":"chat.completion","model":"openai","choices":[{"index":0,"message":{"role":"assistant","content":"готово"}}]}`),
	}
	require.Empty(t, xtest.Diff(want, resp))

	_, err = parseOpenAIResponse("pollinations", []byte("not json"))
	require.Error(t, err)
}
