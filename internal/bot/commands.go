package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/polittech/stratagem/internal/activity"
	"github.com/polittech/stratagem/internal/log"
	"github.com/polittech/stratagem/internal/store"
	"github.com/polittech/stratagem/internal/tgfeed"
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	command := msg.Command()

	b.activity.Record(activity.KindCommand, "/"+command)

	var err error

	switch command {
	case "start":
		err = b.cmdStart(ctx, chatID)
	case "help":
		err = b.cmdHelp(ctx, chatID)
	case "new_strategy":
		err = b.cmdNewStrategy(ctx, chatID)
	case "analyze":
		err = b.cmdAnalyze(ctx, chatID)
	case "generate_slogans":
		b.startSloganGeneration(ctx, chatID)
	case "folders":
		err = b.cmdFolders(ctx, chatID)
	case "create_folder":
		err = b.cmdCreateFolder(ctx, chatID)
	case "add_channel":
		err = b.cmdAddChannel(ctx, chatID)
	case "channels":
		err = b.cmdChannels(ctx, chatID)
	case "models":
		if !b.isAdmin(senderID(msg)) {
			b.reply(ctx, chatID, msgNotAdmin)

			break
		}

		err = b.cmdModels(ctx, chatID)
	case "providers":
		if !b.isAdmin(senderID(msg)) {
			b.reply(ctx, chatID, msgNotAdmin)

			break
		}

		err = b.cmdProviders(ctx, chatID)
	default:
		err = b.cmdHelp(ctx, chatID)
	}

	if err != nil {
		b.activity.Record(activity.KindError, "/"+command)
		log.Error(ctx, "command failed", log.String("command", command), log.Cause(err))
		b.reply(ctx, chatID, msgError)
	}
}

func (b *Bot) cmdStart(ctx context.Context, chatID int64) error {
	b.session(chatID).reset()
	b.reply(ctx, chatID, msgStart)
	b.reply(ctx, chatID, msgHelp)

	return nil
}

func (b *Bot) cmdHelp(ctx context.Context, chatID int64) error {
	b.reply(ctx, chatID, msgHelp+"\n\n"+msgHelpExtra)

	return nil
}

func (b *Bot) cmdNewStrategy(ctx context.Context, chatID int64) error {
	sess := b.session(chatID)
	sess.reset()
	sess.with(func(s *session) {
		s.inStrategy = true
		s.step = stepPointA
	})

	b.replyKB(ctx, chatID, askPointA, kbCancel(cbCancelOperation))

	return nil
}

func (b *Bot) cmdFolders(ctx context.Context, chatID int64) error {
	folders, err := b.store.Folders(ctx)
	if err != nil {
		return err
	}

	if len(folders) == 0 {
		b.reply(ctx, chatID, msgNoFolders)

		return nil
	}

	b.replyKB(ctx, chatID, msgFoldersHeader, kbFolders(folders))

	return nil
}

func (b *Bot) cmdCreateFolder(ctx context.Context, chatID int64) error {
	b.session(chatID).setStep(stepFolderName)
	b.reply(ctx, chatID, askFolderName)

	return nil
}

func (b *Bot) cmdAddChannel(ctx context.Context, chatID int64) error {
	folders, err := b.store.Folders(ctx)
	if err != nil {
		return err
	}

	if len(folders) == 0 {
		b.replyKB(ctx, chatID, msgNoFoldersYet, column(button("➕ Создать папку", cbCreateFolder)))

		return nil
	}

	b.replyKB(ctx, chatID, askFolderForChannel, kbFolderPick(folders, cbAddToFolder, false))

	return nil
}

func (b *Bot) cmdChannels(ctx context.Context, chatID int64) error {
	channels, err := b.store.AllChannels(ctx)
	if err != nil {
		return err
	}

	if len(channels) == 0 {
		b.reply(ctx, chatID, msgNoChannelsYet)

		return nil
	}

	b.replyKB(ctx, chatID, msgChannelsHeader, kbChannels(channels))

	return nil
}

func (b *Bot) cmdAnalyze(ctx context.Context, chatID int64) error {
	channels, err := b.store.AllChannels(ctx)
	if err != nil {
		return err
	}

	if len(channels) == 0 {
		b.reply(ctx, chatID, msgNoChannelsYet)

		return nil
	}

	b.replyKB(ctx, chatID, askSelectChannel, kbChannelPick(channels, cbAnalyzeChannel))

	return nil
}

func (b *Bot) cmdModels(ctx context.Context, chatID int64) error {
	current := b.catalog.CurrentModel()
	b.replyKB(ctx, chatID, fmt.Sprintf(modelsHeader, current), kbModels(b.catalog.AvailableModels(), current))

	return nil
}

func (b *Bot) cmdProviders(ctx context.Context, chatID int64) error {
	current := b.catalog.CurrentProviders()

	selected := make(map[string]bool, len(current))
	for _, p := range current {
		selected[p] = true
	}

	b.session(chatID).with(func(s *session) { s.providers = selected })

	text := fmt.Sprintf(providersHeader, strings.Join(current, ", "))
	b.replyKB(ctx, chatID, text, kbProviders(b.catalog.AvailableProviders(), selected))

	return nil
}

// createFolderNamed handles the folder-name input step.
func (b *Bot) createFolderNamed(ctx context.Context, chatID int64, name string) {
	if name == "" {
		b.reply(ctx, chatID, msgFolderNameEmpty)

		return
	}

	sess := b.session(chatID)

	if err := b.store.CreateFolder(ctx, name); err != nil {
		log.Warn(ctx, "create folder failed", log.String("name", name), log.Cause(err))

		text := msgFolderCreateFailed
		if errors.Is(err, store.ErrDuplicateFolder) {
			text = msgFolderExists
		}

		b.reply(ctx, chatID, text)
		sess.setStep(stepIdle)

		return
	}

	sess.setStep(stepIdle)
	b.reply(ctx, chatID, fmt.Sprintf(msgFolderCreated, name))

	// Inside the strategy dialogue the folder was created on the way to
	// adding a channel; route back there instead of the folder list.
	var inStrategy bool

	sess.with(func(s *session) { inStrategy = s.inStrategy })

	if inStrategy {
		folders, err := b.store.Folders(ctx)
		if err == nil && len(folders) > 0 {
			b.replyKB(ctx, chatID, askFolderForChannel, kbFolderPick(folders, cbAddToFolderStrategy, true))

			return
		}
	}

	if err := b.cmdFolders(ctx, chatID); err != nil {
		log.Warn(ctx, "folder list failed", log.Cause(err))
	}
}

// addChannelByUsername handles the @username input step for both the folder
// management flow and the in-strategy flow.
func (b *Bot) addChannelByUsername(ctx context.Context, chatID int64, input string) {
	username := tgfeed.NormalizeChannel(input)
	if username == "" {
		b.reply(ctx, chatID, msgUsernameEmpty)

		return
	}

	sess := b.session(chatID)

	var (
		folderID   int64
		toStrategy bool
	)

	sess.with(func(s *session) {
		folderID = s.folderID
		toStrategy = s.channelToStrat
	})

	if folderID == 0 {
		sess.setStep(stepIdle)
		b.reply(ctx, chatID, msgNoFolderInSession)

		return
	}

	title := username

	var telegramID int64

	chat, err := b.api.GetChat(tgbotapi.ChatInfoConfig{
		ChatConfig: tgbotapi.ChatConfig{SuperGroupUsername: "@" + username},
	})
	if err != nil {
		log.Debug(ctx, "channel lookup failed", log.String("channel", username), log.Cause(err))
	} else {
		telegramID = chat.ID

		if chat.Title != "" {
			title = chat.Title
		}
	}

	if err := b.store.AddChannel(ctx, folderID, telegramID, username, title); err != nil {
		log.Warn(ctx, "add channel failed", log.String("channel", username), log.Cause(err))
		b.reply(ctx, chatID, msgChannelAddFailed)

		return
	}

	sess.with(func(s *session) {
		s.step = stepIdle
		s.folderID = 0
		s.channelToStrat = false
	})

	b.reply(ctx, chatID, fmt.Sprintf(msgChannelAdded, title))

	if toStrategy {
		b.showStrategyChannels(ctx, chatID)
	}
}

// showStrategyChannels offers the tracked channels inside the strategy
// dialogue.
func (b *Bot) showStrategyChannels(ctx context.Context, chatID int64) {
	channels, err := b.store.AllChannels(ctx)
	if err != nil {
		log.Warn(ctx, "channel list failed", log.Cause(err))
		b.reply(ctx, chatID, msgError)

		return
	}

	if len(channels) == 0 {
		b.replyKB(ctx, chatID, msgNoChannels, kbNoChannels())

		return
	}

	b.replyKB(ctx, chatID, askSelectChannel, kbChannelPick(channels, cbSelectChannel))
}
