package provider

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/polittech/stratagem/internal/llm"
	"github.com/polittech/stratagem/internal/pkg/httpclient"
)

func newLiaobotsAuthServer(t *testing.T, authCode string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case liaobotsLoginPath:
			require.Equal(t, http.MethodPost, r.Method)
			w.WriteHeader(http.StatusOK)
		case liaobotsUserPath:
			require.Equal(t, http.MethodPost, r.Method)
			_, _ = w.Write([]byte(`{"authCode": "` + authCode + `"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestLiaobots_BuildRequest(t *testing.T) {
	srv := newLiaobotsAuthServer(t, "code-42")

	liaobots := NewLiaobots()
	liaobots.baseURL = srv.URL

	req := llm.NewRequest("gpt-4o",
		llm.SystemMessage("Ты политтехнолог."),
		llm.UserMessage("Составь план"),
	)

	httpReq, err := liaobots.BuildRequest(t.Context(), httpclient.NewHttpClient(), req, "gpt-4o")
	require.NoError(t, err)
	require.Equal(t, http.MethodPost, httpReq.Method)
	require.Equal(t, srv.URL+liaobotsChatPath, httpReq.URL)
	require.Equal(t, "code-42", httpReq.Headers.Get(liaobotsAuthHeader))

	body := gjson.ParseBytes(httpReq.Body)
	require.Equal(t, "gpt-4o-2024-08-06", body.Get("model.id").String())
	require.Equal(t, "Ты политтехнолог.", body.Get("prompt").String())
	require.NotEmpty(t, body.Get("conversationId").String())

	messages := body.Get("messages").Array()
	require.Len(t, messages, 1)
	require.Equal(t, "Составь план", messages[0].Get("content").String())
}

func TestLiaobots_BuildRequest_DefaultPrompt(t *testing.T) {
	srv := newLiaobotsAuthServer(t, "code-43")

	liaobots := NewLiaobots()
	liaobots.baseURL = srv.URL

	httpReq, err := liaobots.BuildRequest(t.Context(), httpclient.NewHttpClient(), llm.NewRequest("gpt-4o", llm.UserMessage("q")), "gpt-4o")
	require.NoError(t, err)
	require.Equal(t, liaobotsDefaultPrompt, gjson.GetBytes(httpReq.Body, "prompt").String())
}

func TestLiaobots_BuildRequest_UnsupportedModel(t *testing.T) {
	liaobots := NewLiaobots()

	_, err := liaobots.BuildRequest(t.Context(), httpclient.NewHttpClient(), llm.NewRequest("mixtral-8x7b", llm.UserMessage("q")), "mixtral-8x7b")
	require.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestLiaobots_BuildRequest_MissingAuthCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	liaobots := NewLiaobots()
	liaobots.baseURL = srv.URL

	_, err := liaobots.BuildRequest(t.Context(), httpclient.NewHttpClient(), llm.NewRequest("gpt-4o", llm.UserMessage("q")), "gpt-4o")
	require.ErrorContains(t, err, "auth code")
}

func TestLiaobots_ParseResponse(t *testing.T) {
	liaobots := NewLiaobots()
	req := llm.NewRequest("gpt-4o", llm.UserMessage("q"))

	resp, err := liaobots.ParseResponse(req, []byte("  Ответ релея \n"))
	require.NoError(t, err)
	require.Equal(t, "Ответ релея", resp.Text())
	require.Equal(t, "liaobots", resp.Provider)
}

func TestSplitSystemPrompt(t *testing.T) {
	prompt, rest := splitSystemPrompt([]llm.Message{
		llm.SystemMessage("одна"),
		llm.UserMessage("вопрос"),
		llm.SystemMessage("две"),
	})

	require.Equal(t, "одна\nдве", prompt)
	require.Len(t, rest, 1)
	require.Equal(t, llm.RoleUser, rest[0].Role)
}
