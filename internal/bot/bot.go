// Package bot is the Telegram front end of the assistant. It long-polls the
// Bot API, walks users through the strategy dialogue and hands the collected
// inputs to the strategist, the channel fetcher and the web analyzer.
package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"go.uber.org/fx"

	"github.com/polittech/stratagem/internal/activity"
	"github.com/polittech/stratagem/internal/extract"
	"github.com/polittech/stratagem/internal/llm/catalog"
	"github.com/polittech/stratagem/internal/log"
	"github.com/polittech/stratagem/internal/pkg/xmap"
	"github.com/polittech/stratagem/internal/prompt"
	"github.com/polittech/stratagem/internal/store"
	"github.com/polittech/stratagem/internal/strategist"
	"github.com/polittech/stratagem/internal/tgfeed"
	"github.com/polittech/stratagem/internal/web"
)

type Config struct {
	Token string `conf:"token" yaml:"token" json:"token"`
	Debug bool   `conf:"debug" yaml:"debug" json:"debug"`

	// PollTimeout is the long-poll hold time of getUpdates.
	PollTimeout time.Duration `conf:"poll_timeout" yaml:"poll_timeout" json:"poll_timeout"`

	// GenerationTimeout bounds one background generation task end to end.
	GenerationTimeout time.Duration `conf:"generation_timeout" yaml:"generation_timeout" json:"generation_timeout"`

	// LongMessageLimit is the rune count above which a reply is delivered as
	// a preview plus an attached document.
	LongMessageLimit int `conf:"long_message_limit" yaml:"long_message_limit" json:"long_message_limit"`

	// ArchiveDir keeps copies of attached documents on disk. Empty keeps
	// them in memory only.
	ArchiveDir string `conf:"archive_dir" yaml:"archive_dir" json:"archive_dir"`

	// AdminIDs restricts model and provider management to the listed user
	// IDs. An empty list leaves those commands open, which keeps
	// single-operator deployments configuration-free.
	AdminIDs []int64 `conf:"admin_ids" yaml:"admin_ids" json:"admin_ids"`
}

func (c Config) withDefaults() Config {
	if c.PollTimeout <= 0 {
		c.PollTimeout = 30 * time.Second
	}

	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = 10 * time.Minute
	}

	if c.LongMessageLimit <= 0 {
		c.LongMessageLimit = 500
	}

	return c
}

// API is the slice of the Telegram client the bot uses. Satisfied by
// *tgbotapi.BotAPI.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Params struct {
	fx.In

	Config     Config
	Strategist *strategist.Strategist
	Extractor  *extract.Extractor
	Feed       *tgfeed.Fetcher
	Web        *web.Analyzer
	Store      *store.Store
	Catalog    *catalog.Catalog
	Activity   *activity.Log
}

type Bot struct {
	config   Config
	api      API
	username string

	strategist *strategist.Strategist
	extractor  *extract.Extractor
	feed       *tgfeed.Fetcher
	web        *web.Analyzer
	store      *store.Store
	catalog    *catalog.Catalog
	activity   *activity.Log

	files    afero.Fs
	sessions *xmap.Map[int64, *session]
	now      func() time.Time
	wg       sync.WaitGroup
}

func New(params Params) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(params.Config.Token)
	if err != nil {
		return nil, fmt.Errorf("bot: %w", err)
	}

	api.Debug = params.Config.Debug

	b := newBot(params, api)
	b.username = api.Self.UserName

	return b, nil
}

func newBot(params Params, api API) *Bot {
	config := params.Config.withDefaults()

	files := afero.Fs(afero.NewMemMapFs())
	if config.ArchiveDir != "" {
		files = afero.NewBasePathFs(afero.NewOsFs(), config.ArchiveDir)
	}

	return &Bot{
		config:     config,
		api:        api,
		strategist: params.Strategist,
		extractor:  params.Extractor,
		feed:       params.Feed,
		web:        params.Web,
		store:      params.Store,
		catalog:    params.Catalog,
		activity:   params.Activity,
		files:      files,
		sessions:   xmap.New[int64, *session](),
		now:        time.Now,
	}
}

// Run polls for updates until ctx is cancelled, then waits for in-flight
// handlers to finish.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(b.config.PollTimeout / time.Second)

	updates := b.api.GetUpdatesChan(u)

	log.Info(ctx, "bot polling started", log.String("username", b.username))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()

			return nil
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()

				return nil
			}

			b.dispatch(ctx, update)
		}
	}
}

// dispatch handles one update on its own goroutine so a slow network call in
// one chat never blocks the others.
func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		defer func() {
			if r := recover(); r != nil {
				log.Error(ctx, "update handler panicked", log.Any("panic", r))
			}
		}()

		b.handleUpdate(ctx, update)
	}()
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.Message != nil:
		b.handleText(ctx, update.Message)
	}
}

func (b *Bot) session(chatID int64) *session {
	sess, _ := b.sessions.LoadOrStore(chatID, &session{})

	return sess
}

// isAdmin reports whether userID may manage models and providers.
func (b *Bot) isAdmin(userID int64) bool {
	if len(b.config.AdminIDs) == 0 {
		return true
	}

	return lo.Contains(b.config.AdminIDs, userID)
}

// senderID is the acting user of a message, falling back to the chat for
// updates without a sender (the two coincide in private chats).
func senderID(msg *tgbotapi.Message) int64 {
	if msg.From != nil {
		return msg.From.ID
	}

	return msg.Chat.ID
}

// deliver sends a message, falling back to plain text when Telegram rejects
// the markdown. Model output is not sanitized for Telegram entities.
func (b *Bot) deliver(ctx context.Context, msg tgbotapi.MessageConfig) (tgbotapi.Message, error) {
	sent, err := b.api.Send(msg)
	if err != nil && msg.ParseMode != "" {
		log.Debug(ctx, "markdown send rejected, retrying plain", log.Cause(err))

		msg.ParseMode = ""
		sent, err = b.api.Send(msg)
	}

	return sent, err
}

func (b *Bot) message(chatID int64, text string) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	return msg
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if _, err := b.deliver(ctx, b.message(chatID, text)); err != nil {
		log.Warn(ctx, "send failed", log.Int("chat_id", int(chatID)), log.Cause(err))
	}
}

func (b *Bot) replyKB(ctx context.Context, chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := b.message(chatID, text)
	msg.ReplyMarkup = kb

	if _, err := b.deliver(ctx, msg); err != nil {
		log.Warn(ctx, "send failed", log.Int("chat_id", int(chatID)), log.Cause(err))
	}
}

// editText rewrites an already sent message, with the same plain-text
// fallback as deliver.
func (b *Bot) editText(ctx context.Context, chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	edit.DisableWebPagePreview = true

	if _, err := b.api.Send(edit); err != nil {
		log.Debug(ctx, "markdown edit rejected, retrying plain", log.Cause(err))

		edit.ParseMode = ""

		_, err = b.api.Send(edit)

		return err
	}

	return nil
}

func (b *Bot) editTextKB(ctx context.Context, chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, kb)
	edit.ParseMode = tgbotapi.ModeMarkdown
	edit.DisableWebPagePreview = true

	if _, err := b.api.Send(edit); err != nil {
		log.Debug(ctx, "markdown edit rejected, retrying plain", log.Cause(err))

		edit.ParseMode = ""

		_, err = b.api.Send(edit)

		return err
	}

	return nil
}

func (b *Bot) ack(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Debug(ctx, "callback ack failed", log.Cause(err))
	}
}

// sendLong delivers text directly when it fits, otherwise as a preview with
// the full text attached as a document. The document is also written to the
// archive filesystem.
func (b *Bot) sendLong(ctx context.Context, chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) error {
	text = strings.TrimSpace(text)
	if text == "" {
		log.Warn(ctx, "empty reply skipped", log.Int("chat_id", int(chatID)))

		return nil
	}

	if utf8.RuneCountInString(text) <= b.config.LongMessageLimit {
		msg := b.message(chatID, text)
		msg.ReplyMarkup = kb

		_, err := b.deliver(ctx, msg)

		return err
	}

	preview := prompt.Truncate(text, b.config.LongMessageLimit) + longMessageSuffix

	msg := b.message(chatID, preview)
	msg.ReplyMarkup = kb

	if _, err := b.deliver(ctx, msg); err != nil {
		return err
	}

	name := fmt.Sprintf("stratagem_%d_%s.txt", chatID, b.now().UTC().Format("20060102_150405"))

	if err := afero.WriteFile(b.files, name, []byte(text), 0o644); err != nil {
		log.Warn(ctx, "archive write failed", log.String("file", name), log.Cause(err))
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: []byte(text)})
	doc.Caption = documentCaption

	if _, err := b.api.Send(doc); err != nil {
		return fmt.Errorf("send document: %w", err)
	}

	return nil
}

// handleText routes free-form input by the chat's dialogue step.
func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	sess := b.session(chatID)

	switch sess.currentStep() {
	case stepPointA:
		sess.with(func(s *session) {
			s.pointA = text
			s.step = stepPointB
		})
		b.replyKB(ctx, chatID, askPointB, kbCancel(cbCancelOperation))

	case stepPointB:
		sess.with(func(s *session) {
			s.pointB = text
			s.step = stepTimeframe
		})
		b.replyKB(ctx, chatID, askTimeframe, kbCancel(cbCancelOperation))

	case stepTimeframe:
		sess.with(func(s *session) {
			s.timeframe = text
			s.step = stepAudience
		})
		b.replyKB(ctx, chatID, askAudience, kbCancel(cbCancelOperation))

	case stepAudience:
		sess.with(func(s *session) {
			s.audience = text
			s.step = stepIdle
		})
		b.replyKB(ctx, chatID, askChannel, kbChannelDecision())

	case stepKeyword:
		if utf8.RuneCountInString(text) < 2 {
			b.reply(ctx, chatID, msgKeywordTooShort)

			return
		}

		b.processChannelPosts(ctx, chatID, text)

	case stepChannelUsername:
		b.addChannelByUsername(ctx, chatID, text)

	case stepFolderName:
		b.createFolderNamed(ctx, chatID, text)

	case stepArticleURL:
		b.processArticle(ctx, chatID, text)

	case stepReviewArticleURL:
		b.startArticleReview(ctx, chatID, text)

	case stepSearchQuery:
		if text == "" {
			b.reply(ctx, chatID, msgEmptyQuery)

			return
		}

		sess.setStep(stepIdle)
		b.runSearch(ctx, chatID, text)

	case stepRefineFeedback:
		sess.setStep(stepIdle)
		b.startRefinement(ctx, chatID, text)

	default:
		b.reply(ctx, chatID, msgHelp)
	}
}
