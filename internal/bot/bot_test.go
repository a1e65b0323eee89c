package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/polittech/stratagem/internal/activity"
	"github.com/polittech/stratagem/internal/extract"
	"github.com/polittech/stratagem/internal/llm"
	"github.com/polittech/stratagem/internal/llm/catalog"
	"github.com/polittech/stratagem/internal/llm/pipeline"
	"github.com/polittech/stratagem/internal/pkg/httpclient"
	"github.com/polittech/stratagem/internal/pkg/xcache"
	"github.com/polittech/stratagem/internal/prompt"
	"github.com/polittech/stratagem/internal/store"
	"github.com/polittech/stratagem/internal/strategist"
	"github.com/polittech/stratagem/internal/tgfeed"
	"github.com/polittech/stratagem/internal/web"
)

// fakeAPI records every chattable the bot sends. Message IDs increment per
// send so edits can be traced back.
type fakeAPI struct {
	mu     sync.Mutex
	sent   []tgbotapi.Chattable
	nextID int

	// failMarkdown rejects sends with a markdown parse mode, exercising the
	// plain-text fallback.
	failMarkdown bool

	chat    tgbotapi.Chat
	chatErr error

	updates chan tgbotapi.Update
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		chatErr: errors.New("chat lookup disabled"),
		updates: make(chan tgbotapi.Update),
	}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failMarkdown && parseModeOf(c) != "" {
		return tgbotapi.Message{}, errors.New("Bad Request: can't parse entities")
	}

	f.sent = append(f.sent, c)
	f.nextID++

	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, c)

	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetChat(tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error) {
	return f.chat, f.chatErr
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {}

func parseModeOf(c tgbotapi.Chattable) string {
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		return m.ParseMode
	case tgbotapi.EditMessageTextConfig:
		return m.ParseMode
	default:
		return ""
	}
}

func (f *fakeAPI) chattables() []tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]tgbotapi.Chattable(nil), f.sent...)
}

// texts returns the text of every sent message and edit, in send order.
func (f *fakeAPI) texts() []string {
	var texts []string

	for _, c := range f.chattables() {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			texts = append(texts, m.Text)
		case tgbotapi.EditMessageTextConfig:
			texts = append(texts, m.Text)
		}
	}

	return texts
}

func (f *fakeAPI) messages() []tgbotapi.MessageConfig {
	var messages []tgbotapi.MessageConfig

	for _, c := range f.chattables() {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			messages = append(messages, m)
		}
	}

	return messages
}

func (f *fakeAPI) edits() []tgbotapi.EditMessageTextConfig {
	var edits []tgbotapi.EditMessageTextConfig

	for _, c := range f.chattables() {
		if m, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			edits = append(edits, m)
		}
	}

	return edits
}

func (f *fakeAPI) documents() []tgbotapi.DocumentConfig {
	var documents []tgbotapi.DocumentConfig

	for _, c := range f.chattables() {
		if m, ok := c.(tgbotapi.DocumentConfig); ok {
			documents = append(documents, m)
		}
	}

	return documents
}

func (f *fakeAPI) lastMessage(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()

	messages := f.messages()
	require.NotEmpty(t, messages, "no messages sent")

	return messages[len(messages)-1]
}

func (f *fakeAPI) lastEdit(t *testing.T) tgbotapi.EditMessageTextConfig {
	t.Helper()

	edits := f.edits()
	require.NotEmpty(t, edits, "no edits sent")

	return edits[len(edits)-1]
}

// buttonData flattens the callback data of a chattable's inline keyboard.
func buttonData(t *testing.T, c tgbotapi.Chattable) []string {
	t.Helper()

	var kb *tgbotapi.InlineKeyboardMarkup

	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		markup, ok := m.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
		require.True(t, ok, "message carries no inline keyboard")

		kb = &markup
	case tgbotapi.EditMessageTextConfig:
		require.NotNil(t, m.ReplyMarkup, "edit carries no inline keyboard")

		kb = m.ReplyMarkup
	default:
		t.Fatalf("unexpected chattable %T", c)
	}

	var data []string

	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			require.NotNil(t, btn.CallbackData)

			data = append(data, *btn.CallbackData)
		}
	}

	return data
}

// scriptedGenerator answers generation requests by task name. Unlisted tasks
// fail the request so a test never silently exercises the wrong prompt.
type scriptedGenerator struct {
	mu    sync.Mutex
	reqs  []*llm.Request
	reply func(ctx context.Context, req *llm.Request) (*llm.Response, error)
}

func (g *scriptedGenerator) Generate(ctx context.Context, req *llm.Request, _ ...pipeline.Option) (*llm.Response, error) {
	g.mu.Lock()
	g.reqs = append(g.reqs, req)
	reply := g.reply
	g.mu.Unlock()

	if reply != nil {
		return reply(ctx, req)
	}

	return llm.TextResponse(catalog.DefaultModel, "fake", "ответ"), nil
}

func (g *scriptedGenerator) tasks() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	tasks := make([]string, 0, len(g.reqs))
	for _, req := range g.reqs {
		tasks = append(tasks, req.Metadata[prompt.MetadataTask])
	}

	return tasks
}

func (g *scriptedGenerator) lastRequest(t *testing.T) *llm.Request {
	t.Helper()

	g.mu.Lock()
	defer g.mu.Unlock()

	require.NotEmpty(t, g.reqs, "no generation requests made")

	return g.reqs[len(g.reqs)-1]
}

func taskReplies(replies map[string]string) func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	return func(_ context.Context, req *llm.Request) (*llm.Response, error) {
		task := req.Metadata[prompt.MetadataTask]

		text, ok := replies[task]
		if !ok {
			return nil, fmt.Errorf("unscripted task %q", task)
		}

		return llm.TextResponse(catalog.DefaultModel, "fake", text), nil
	}
}

func commandUpdate(chatID int64, command string) tgbotapi.Update {
	text := "/" + command

	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
	}}
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 2,
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
	}}
}

func callbackUpdate(chatID int64, messageID int, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb",
		Data: data,
		Message: &tgbotapi.Message{
			MessageID: messageID,
			Chat:      &tgbotapi.Chat{ID: chatID},
		},
	}}
}

// asUser stamps the sending user onto a scripted update.
func asUser(upd tgbotapi.Update, userID int64) tgbotapi.Update {
	user := &tgbotapi.User{ID: userID}

	if upd.Message != nil {
		upd.Message.From = user
	}

	if upd.CallbackQuery != nil {
		upd.CallbackQuery.From = user
	}

	return upd
}

// newTestBot wires a bot over the fake Telegram API, a scripted generator,
// an in-memory store and unreachable fetchers. Tests that exercise the feed
// or the web analyzer swap in httptest-backed ones through mutate.
func newTestBot(t *testing.T, mutate ...func(*Params)) (*Bot, *fakeAPI, *scriptedGenerator) {
	t.Helper()

	st, err := store.Open(t.Context(), store.Config{Dialect: "sqlite", DSN: "file:bottest?mode=memory"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	gen := &scriptedGenerator{}
	lexicon := extract.DefaultLexicon()

	params := Params{
		Config: Config{
			GenerationTimeout: time.Minute,
		},
		Strategist: strategist.New(gen, extract.New(lexicon)),
		Extractor:  extract.New(lexicon),
		Feed:       tgfeed.New(tgfeed.Config{BaseURL: "http://127.0.0.1:0", MaxPages: 1}, httpclient.NewHttpClient(), xcache.NewNoop[tgfeed.Digest]()),
		Web:        web.New(web.Config{SearchURL: "http://127.0.0.1:0/html/"}, httpclient.NewHttpClient(), xcache.NewNoop[web.Article]()),
		Store:      st,
		Catalog:    catalog.New(catalog.Config{}),
		Activity:   activity.NewLog(activity.DefaultCapacity),
	}

	for _, m := range mutate {
		m(&params)
	}

	api := newFakeAPI()

	b := newBot(params, api)
	b.username = "stratagem_bot"

	return b, api, gen
}

func createFolder(t *testing.T, st *store.Store, name string) store.Folder {
	t.Helper()

	require.NoError(t, st.CreateFolder(t.Context(), name))

	folders, err := st.Folders(t.Context())
	require.NoError(t, err)

	for _, f := range folders {
		if f.Name == name {
			return f
		}
	}

	t.Fatalf("folder %q not listed after create", name)

	return store.Folder{}
}

func seedChannel(t *testing.T, st *store.Store, username, title string) store.Channel {
	t.Helper()

	folder := createFolder(t, st, "Папка "+username)
	require.NoError(t, st.AddChannel(t.Context(), folder.ID, 0, username, title))

	channels, err := st.Channels(t.Context(), folder.ID)
	require.NoError(t, err)
	require.NotEmpty(t, channels)

	return channels[len(channels)-1]
}

func TestRunHandlesUpdatesUntilCancelled(t *testing.T) {
	b, api, _ := newTestBot(t)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	done := make(chan error, 1)

	go func() { done <- b.Run(ctx) }()

	api.updates <- commandUpdate(7, "start")

	require.Eventually(t, func() bool {
		for _, text := range api.texts() {
			if text == msgStart {
				return true
			}
		}

		return false
	}, time.Second, 10*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not stop on cancel")
	}
}

func TestRunStopsWhenUpdatesChannelCloses(t *testing.T) {
	b, api, _ := newTestBot(t)

	done := make(chan error, 1)

	go func() { done <- b.Run(t.Context()) }()

	close(api.updates)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not stop on closed updates channel")
	}
}

func TestDeliverFallsBackToPlainText(t *testing.T) {
	b, api, _ := newTestBot(t)
	api.failMarkdown = true

	b.reply(t.Context(), 7, "*открытая _разметка")

	messages := api.messages()
	require.Len(t, messages, 1)
	require.Empty(t, messages[0].ParseMode)
	require.Equal(t, "*открытая _разметка", messages[0].Text)
}

func TestEditTextFallsBackToPlainText(t *testing.T) {
	b, api, _ := newTestBot(t)
	api.failMarkdown = true

	require.NoError(t, b.editText(t.Context(), 7, 3, "*открытая _разметка"))

	edits := api.edits()
	require.Len(t, edits, 1)
	require.Empty(t, edits[0].ParseMode)
	require.Equal(t, 3, edits[0].MessageID)
}

func TestSendLongInlineWhenShort(t *testing.T) {
	b, api, _ := newTestBot(t)

	require.NoError(t, b.sendLong(t.Context(), 7, "Короткий отчёт.", kbMainMenu()))

	messages := api.messages()
	require.Len(t, messages, 1)
	require.Equal(t, "Короткий отчёт.", messages[0].Text)
	require.Empty(t, api.documents())

	// Blank payloads are dropped, not sent.
	require.NoError(t, b.sendLong(t.Context(), 7, "   \n", kbMainMenu()))
	require.Len(t, api.messages(), 1)
}

func TestSendLongAttachesDocument(t *testing.T) {
	b, api, _ := newTestBot(t, func(p *Params) { p.Config.LongMessageLimit = 20 })
	b.now = func() time.Time { return time.Date(2024, 5, 17, 12, 30, 45, 0, time.UTC) }

	text := strings.Repeat("Полный текст стратегии. ", 4)
	want := strings.TrimSpace(text)

	require.NoError(t, b.sendLong(t.Context(), 42, text, kbStrategyActions()))

	messages := api.messages()
	require.Len(t, messages, 1)
	require.Equal(t, prompt.Truncate(want, 20)+longMessageSuffix, messages[0].Text)
	require.Contains(t, buttonData(t, messages[0]), cbConfirmStrategy)

	documents := api.documents()
	require.Len(t, documents, 1)
	require.Equal(t, documentCaption, documents[0].Caption)

	file, ok := documents[0].File.(tgbotapi.FileBytes)
	require.True(t, ok)
	require.Equal(t, "stratagem_42_20240517_123045.txt", file.Name)
	require.Equal(t, want, string(file.Bytes))

	archived, err := afero.ReadFile(b.files, file.Name)
	require.NoError(t, err)
	require.Equal(t, want, string(archived))
}

func TestHandleUpdateIgnoresBareUpdates(t *testing.T) {
	b, api, _ := newTestBot(t)

	b.handleUpdate(t.Context(), tgbotapi.Update{})

	require.Empty(t, api.chattables())
}
