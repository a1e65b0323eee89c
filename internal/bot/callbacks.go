package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"
	"github.com/spf13/cast"

	"github.com/polittech/stratagem/internal/activity"
	"github.com/polittech/stratagem/internal/log"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	b.ack(ctx, cb)

	// Callbacks from inline-mode messages carry no chat reference.
	if cb.Message == nil {
		return
	}

	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID

	sender := chatID
	if cb.From != nil {
		sender = cb.From.ID
	}

	action, arg, _ := strings.Cut(cb.Data, ":")

	b.activity.Record(activity.KindCallback, action)

	var err error

	switch action {
	case cbNewStrategy:
		err = b.cmdNewStrategy(ctx, chatID)

	case cbGotoMainMenu:
		err = b.editText(ctx, chatID, messageID, msgHelp)

	case cbCancelOperation:
		b.session(chatID).reset()
		err = b.editText(ctx, chatID, messageID, msgCancelled)

	case cbCancelStrategy:
		b.session(chatID).reset()
		err = b.editText(ctx, chatID, messageID, msgCancelled)

	case cbAddChannelMenu:
		err = b.cmdAddChannel(ctx, chatID)

	case cbAddChannelToStrategy:
		b.showStrategyChannels(ctx, chatID)

	case cbContinueWithoutChannel:
		b.session(chatID).with(func(s *session) {
			s.channelID = 0
			s.channelUsername, s.channelTitle, s.channelContent = "", "", ""
			s.step = stepIdle
		})
		b.askAboutArticle(ctx, chatID)

	case cbAddNewChannel:
		err = b.offerFolderForStrategyChannel(ctx, chatID)

	case cbSelectChannel:
		err = b.selectStrategyChannel(ctx, chatID, messageID, cast.ToInt64(arg))

	case cbPeriod:
		days := cast.ToInt(arg)
		b.session(chatID).with(func(s *session) {
			s.periodDays = days
			s.step = stepKeyword
		})
		err = b.editTextKB(ctx, chatID, messageID, fmt.Sprintf(msgPeriodChosen, days), kbKeyword())

	case cbCancelChannel:
		b.session(chatID).with(func(s *session) {
			s.channelID = 0
			s.channelUsername, s.channelTitle, s.channelContent = "", "", ""
			s.periodDays = 0
			s.folderID = 0
			s.channelToStrat = false
			s.step = stepIdle
		})
		err = b.editTextKB(ctx, chatID, messageID, askChannel, kbChannelDecision())

	case cbNoKeyword:
		b.session(chatID).setStep(stepIdle)
		b.processChannelPosts(ctx, chatID, "")

	case cbAddArticle:
		b.session(chatID).setStep(stepArticleURL)
		b.replyKB(ctx, chatID, askArticleURL, kbCancel(cbCancelArticle))

	case cbContinueWithoutArticle:
		b.session(chatID).with(func(s *session) {
			s.article = nil
			s.articleURL = ""
			s.step = stepIdle
		})
		b.startStrategyGeneration(ctx, chatID)

	case cbCancelArticle:
		b.session(chatID).with(func(s *session) {
			s.article = nil
			s.articleURL = ""
			s.step = stepIdle
		})
		err = b.editTextKB(ctx, chatID, messageID, askArticle, kbArticleDecision())

	case cbConfirmStrategy:
		b.replyKB(ctx, chatID, msgStrategyConfirmed, kbPostStrategy())

	case cbRefineStrategy:
		if b.session(chatID).data().strategy == nil {
			b.reply(ctx, chatID, msgNoStrategyToRefine)

			break
		}

		b.session(chatID).setStep(stepRefineFeedback)
		b.replyKB(ctx, chatID, askRefineFeedback, kbCancel(cbCancelOperation))

	case cbFinishStrategy:
		b.session(chatID).reset()
		b.replyKB(ctx, chatID, msgFinished, kbMainMenu())

	case cbBackToStrategy:
		b.replyKB(ctx, chatID, msgBackToStrategy, kbPostStrategy())

	case cbSearchInternet:
		b.suggestSearchQuery(ctx, chatID)

	case cbUseSuggestedQuery:
		query := b.session(chatID).data().suggestedQuery
		if query == "" {
			b.session(chatID).setStep(stepSearchQuery)
			b.reply(ctx, chatID, msgNoSuggestedQuery)

			break
		}

		b.runSearch(ctx, chatID, query)

	case cbEnterCustomQuery:
		b.session(chatID).setStep(stepSearchQuery)
		b.replyKB(ctx, chatID, askSearchQuery, kbCancel(cbCancelSearch))

	case cbCancelSearch:
		b.session(chatID).setStep(stepIdle)
		err = b.editTextKB(ctx, chatID, messageID, msgBackToStrategy, kbPostStrategy())

	case cbGenerateSlogans:
		b.startSloganGeneration(ctx, chatID)

	case cbCreateFolder:
		err = b.cmdCreateFolder(ctx, chatID)

	case cbFolder:
		err = b.showFolder(ctx, chatID, messageID, cast.ToInt64(arg))

	case cbBackToFolders:
		err = b.editFolderList(ctx, chatID, messageID)

	case cbAddToFolder:
		b.session(chatID).with(func(s *session) {
			s.folderID = cast.ToInt64(arg)
			s.channelToStrat = false
			s.step = stepChannelUsername
		})
		b.replyKB(ctx, chatID, askChannelUsername, kbCancel(cbCancelAddChannel))

	case cbAddToFolderStrategy:
		b.session(chatID).with(func(s *session) {
			s.folderID = cast.ToInt64(arg)
			s.channelToStrat = true
			s.step = stepChannelUsername
		})
		b.replyKB(ctx, chatID, askChannelUsernameShort, kbCancel(cbCancelChannel))

	case cbCancelAddChannel:
		b.session(chatID).with(func(s *session) {
			s.folderID = 0
			s.channelToStrat = false
			s.step = stepIdle
		})
		err = b.editText(ctx, chatID, messageID, msgChannelAddCancelled)

	case cbDeleteFolder:
		err = b.editTextKB(ctx, chatID, messageID, msgFolderDeleteAsk, kbConfirmDeleteFolder(cast.ToInt64(arg)))

	case cbConfirmDeleteFolder:
		err = b.deleteFolder(ctx, chatID, messageID, cast.ToInt64(arg))

	case cbChannel:
		err = b.showChannel(ctx, chatID, messageID, cast.ToInt64(arg))

	case cbBackToChannels:
		err = b.editChannelList(ctx, chatID, messageID)

	case cbDeleteChannel:
		err = b.editTextKB(ctx, chatID, messageID, msgChannelDeleteAsk, kbConfirmDeleteChannel(cast.ToInt64(arg)))

	case cbConfirmDeleteChannel:
		err = b.deleteChannel(ctx, chatID, messageID, cast.ToInt64(arg))

	case cbAnalyzeChannel:
		err = b.offerAnalysisPeriods(ctx, chatID, messageID, cast.ToInt64(arg))

	case cbReviewArticle:
		err = b.askReviewArticle(ctx, chatID, cast.ToInt64(arg))

	case cbAnalyzePeriod:
		idRaw, daysRaw, ok := strings.Cut(arg, ":")
		if !ok {
			log.Warn(ctx, "malformed callback", log.String("data", cb.Data))

			break
		}

		b.runChannelAnalysis(ctx, chatID, cast.ToInt64(idRaw), cast.ToInt(daysRaw))

	case cbSetModel:
		if !b.isAdmin(sender) {
			b.reply(ctx, chatID, msgNotAdmin)

			break
		}

		err = b.setModel(ctx, chatID, messageID, arg)

	case cbToggleProvider:
		if !b.isAdmin(sender) {
			b.reply(ctx, chatID, msgNotAdmin)

			break
		}

		err = b.toggleProvider(ctx, chatID, messageID, arg)

	case cbSaveProviders:
		if !b.isAdmin(sender) {
			b.reply(ctx, chatID, msgNotAdmin)

			break
		}

		b.saveProviders(ctx, chatID)

	default:
		log.Warn(ctx, "unknown callback", log.String("data", cb.Data))
	}

	if err != nil {
		b.activity.Record(activity.KindError, action)
		log.Error(ctx, "callback failed", log.String("action", action), log.Cause(err))
		b.reply(ctx, chatID, msgError)
	}
}

func (b *Bot) offerFolderForStrategyChannel(ctx context.Context, chatID int64) error {
	folders, err := b.store.Folders(ctx)
	if err != nil {
		return err
	}

	if len(folders) == 0 {
		b.replyKB(ctx, chatID, msgNoFoldersYet, kbNoFoldersStrategy())

		return nil
	}

	b.replyKB(ctx, chatID, askFolderForChannel, kbFolderPick(folders, cbAddToFolderStrategy, true))

	return nil
}

func (b *Bot) selectStrategyChannel(ctx context.Context, chatID int64, messageID int, channelID int64) error {
	channel, err := b.store.Channel(ctx, channelID)
	if err != nil {
		b.reply(ctx, chatID, msgChannelGone)

		return nil
	}

	b.session(chatID).with(func(s *session) {
		s.channelID = channel.ID
		s.channelUsername = channel.Username
		s.channelTitle = channel.Title
	})

	return b.editTextKB(ctx, chatID, messageID, fmt.Sprintf(msgChannelChosen, channel.Title), kbPeriods())
}

func (b *Bot) showFolder(ctx context.Context, chatID int64, messageID int, folderID int64) error {
	folder, err := b.store.Folder(ctx, folderID)
	if err != nil {
		return err
	}

	channels, err := b.store.Channels(ctx, folderID)
	if err != nil {
		return err
	}

	text := fmt.Sprintf(folderHeader, folder.Name)
	if len(channels) > 0 {
		text += fmt.Sprintf(folderChannelCount, len(channels))
	} else {
		text += folderEmpty
	}

	return b.editTextKB(ctx, chatID, messageID, text, kbFolderView(folderID, channels))
}

func (b *Bot) editFolderList(ctx context.Context, chatID int64, messageID int) error {
	folders, err := b.store.Folders(ctx)
	if err != nil {
		return err
	}

	if len(folders) == 0 {
		return b.editText(ctx, chatID, messageID, msgNoFolders)
	}

	return b.editTextKB(ctx, chatID, messageID, msgFoldersHeader, kbFolders(folders))
}

func (b *Bot) deleteFolder(ctx context.Context, chatID int64, messageID int, folderID int64) error {
	if err := b.store.DeleteFolder(ctx, folderID); err != nil {
		log.Warn(ctx, "delete folder failed", log.Cause(err))

		return b.editText(ctx, chatID, messageID, msgFolderDeleteFailed)
	}

	if err := b.editText(ctx, chatID, messageID, msgFolderDeleted); err != nil {
		return err
	}

	return b.cmdFolders(ctx, chatID)
}

func (b *Bot) showChannel(ctx context.Context, chatID int64, messageID int, channelID int64) error {
	channel, err := b.store.Channel(ctx, channelID)
	if err != nil {
		return b.editText(ctx, chatID, messageID, msgChannelNotFound)
	}

	text := fmt.Sprintf(channelCard, channel.Title, channel.Username, channel.ID)

	return b.editTextKB(ctx, chatID, messageID, text, kbChannelCard(channelID))
}

func (b *Bot) editChannelList(ctx context.Context, chatID int64, messageID int) error {
	channels, err := b.store.AllChannels(ctx)
	if err != nil {
		return err
	}

	if len(channels) == 0 {
		return b.editText(ctx, chatID, messageID, msgNoChannelsYet)
	}

	return b.editTextKB(ctx, chatID, messageID, msgChannelsHeader, kbChannels(channels))
}

func (b *Bot) deleteChannel(ctx context.Context, chatID int64, messageID int, channelID int64) error {
	if err := b.store.RemoveChannel(ctx, channelID); err != nil {
		log.Warn(ctx, "delete channel failed", log.Cause(err))

		return b.editText(ctx, chatID, messageID, msgChannelDeleteFail)
	}

	return b.editText(ctx, chatID, messageID, msgChannelDeleted)
}

// askReviewArticle starts the article-review dialogue for a tracked channel.
func (b *Bot) askReviewArticle(ctx context.Context, chatID int64, channelID int64) error {
	channel, err := b.store.Channel(ctx, channelID)
	if err != nil {
		b.reply(ctx, chatID, msgChannelNotFound)

		return nil
	}

	b.session(chatID).with(func(s *session) {
		s.reviewChannelID = channel.ID
		s.step = stepReviewArticleURL
	})

	b.replyKB(ctx, chatID, fmt.Sprintf(askReviewArticleURL, channel.Title), kbCancel(cbCancelOperation))

	return nil
}

func (b *Bot) offerAnalysisPeriods(ctx context.Context, chatID int64, messageID int, channelID int64) error {
	channel, err := b.store.Channel(ctx, channelID)
	if err != nil {
		return b.editText(ctx, chatID, messageID, msgChannelNotFound)
	}

	return b.editTextKB(ctx, chatID, messageID, fmt.Sprintf(askAnalyzePeriod, channel.Title), kbAnalyzePeriods(channelID))
}

func (b *Bot) setModel(ctx context.Context, chatID int64, messageID int, model string) error {
	if b.catalog.SetModel(model) {
		b.reply(ctx, chatID, fmt.Sprintf(msgModelSet, model))
	} else {
		b.reply(ctx, chatID, fmt.Sprintf(msgModelSetFailed, model))
	}

	current := b.catalog.CurrentModel()

	return b.editTextKB(ctx, chatID, messageID, fmt.Sprintf(modelsHeader, current), kbModels(b.catalog.AvailableModels(), current))
}

func (b *Bot) toggleProvider(ctx context.Context, chatID int64, messageID int, provider string) error {
	sess := b.session(chatID)

	var selected map[string]bool

	sess.with(func(s *session) {
		if s.providers == nil {
			s.providers = make(map[string]bool)
			for _, p := range b.catalog.CurrentProviders() {
				s.providers[p] = true
			}
		}

		s.providers[provider] = !s.providers[provider]

		selected = make(map[string]bool, len(s.providers))
		for p, on := range s.providers {
			selected[p] = on
		}
	})

	picked := b.pickedProviders(selected)
	text := fmt.Sprintf(providersPicked, strings.Join(picked, ", "))

	return b.editTextKB(ctx, chatID, messageID, text, kbProviders(b.catalog.AvailableProviders(), selected))
}

func (b *Bot) saveProviders(ctx context.Context, chatID int64) {
	var selected map[string]bool

	b.session(chatID).with(func(s *session) {
		selected = make(map[string]bool, len(s.providers))
		for p, on := range s.providers {
			selected[p] = on
		}
	})

	picked := b.pickedProviders(selected)
	if len(picked) == 0 {
		b.reply(ctx, chatID, msgProvidersNeedOne)

		return
	}

	if !b.catalog.SetProviders(picked) {
		b.reply(ctx, chatID, msgProvidersSaveError)

		return
	}

	b.reply(ctx, chatID, fmt.Sprintf(msgProvidersSaved, strings.Join(b.catalog.CurrentProviders(), ", ")))
}

// pickedProviders orders the selected set by the catalog's provider order.
func (b *Bot) pickedProviders(selected map[string]bool) []string {
	return lo.Filter(b.catalog.AvailableProviders(), func(p string, _ int) bool {
		return selected[p]
	})
}
