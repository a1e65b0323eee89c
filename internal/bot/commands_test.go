package bot

import (
	"fmt"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
)

func TestStartCommand(t *testing.T) {
	b, api, _ := newTestBot(t)

	b.handleUpdate(t.Context(), commandUpdate(1, "start"))

	require.Equal(t, []string{msgStart, msgHelp}, api.texts())
	require.Equal(t, uint64(1), b.activity.Counters()["command"])
}

func TestHelpCommand(t *testing.T) {
	b, api, _ := newTestBot(t)

	b.handleUpdate(t.Context(), commandUpdate(1, "help"))

	require.Equal(t, []string{msgHelp + "\n\n" + msgHelpExtra}, api.texts())
}

func TestUnknownCommandShowsHelp(t *testing.T) {
	b, api, _ := newTestBot(t)

	b.handleUpdate(t.Context(), commandUpdate(1, "bogus"))

	require.Equal(t, []string{msgHelp + "\n\n" + msgHelpExtra}, api.texts())
}

func TestIdleTextShowsHelp(t *testing.T) {
	b, api, _ := newTestBot(t)

	b.handleUpdate(t.Context(), textUpdate(1, "просто текст"))

	require.Equal(t, []string{msgHelp}, api.texts())
}

func TestStrategyDialogueCollectsInputs(t *testing.T) {
	b, api, _ := newTestBot(t)

	const chatID int64 = 5

	b.handleUpdate(t.Context(), commandUpdate(chatID, "new_strategy"))
	require.Equal(t, stepPointA, b.session(chatID).currentStep())

	b.handleUpdate(t.Context(), textUpdate(chatID, "Низкая узнаваемость кандидата"))
	b.handleUpdate(t.Context(), textUpdate(chatID, "Победа на выборах"))
	b.handleUpdate(t.Context(), textUpdate(chatID, "3 месяца"))
	b.handleUpdate(t.Context(), textUpdate(chatID, "Молодые семьи"))

	data := b.session(chatID).data()
	require.Equal(t, "Низкая узнаваемость кандидата", data.pointA)
	require.Equal(t, "Победа на выборах", data.pointB)
	require.Equal(t, "3 месяца", data.timeframe)
	require.Equal(t, "Молодые семьи", data.audience)
	require.Equal(t, stepIdle, b.session(chatID).currentStep())

	require.Equal(t, []string{askPointA, askPointB, askTimeframe, askAudience, askChannel}, api.texts())

	// The dialogue ends on the channel question.
	require.Contains(t, buttonData(t, api.lastMessage(t)), cbContinueWithoutChannel)
}

func TestNewStrategyResetsPreviousDialogue(t *testing.T) {
	b, _, _ := newTestBot(t)

	const chatID int64 = 5

	b.session(chatID).with(func(s *session) {
		s.pointA = "старое"
		s.channelContent = "старые посты"
	})

	b.handleUpdate(t.Context(), commandUpdate(chatID, "new_strategy"))

	data := b.session(chatID).data()
	require.Empty(t, data.pointA)
	require.Empty(t, data.channelContent)
	require.Equal(t, stepPointA, b.session(chatID).currentStep())
}

func TestKeywordTooShort(t *testing.T) {
	b, api, _ := newTestBot(t)

	const chatID int64 = 5

	b.session(chatID).setStep(stepKeyword)

	b.handleUpdate(t.Context(), textUpdate(chatID, "б"))

	require.Equal(t, []string{msgKeywordTooShort}, api.texts())
	require.Equal(t, stepKeyword, b.session(chatID).currentStep())
}

func TestFoldersCommandEmpty(t *testing.T) {
	b, api, _ := newTestBot(t)

	b.handleUpdate(t.Context(), commandUpdate(3, "folders"))

	require.Equal(t, []string{msgNoFolders}, api.texts())
}

func TestCreateFolderFlow(t *testing.T) {
	b, api, _ := newTestBot(t)

	const chatID int64 = 3

	b.handleUpdate(t.Context(), commandUpdate(chatID, "create_folder"))
	require.Equal(t, stepFolderName, b.session(chatID).currentStep())
	require.Equal(t, []string{askFolderName}, api.texts())

	b.handleUpdate(t.Context(), textUpdate(chatID, "Кампания 2026"))

	require.Contains(t, api.texts(), fmt.Sprintf(msgFolderCreated, "Кампания 2026"))
	require.Equal(t, stepIdle, b.session(chatID).currentStep())

	folders, err := b.store.Folders(t.Context())
	require.NoError(t, err)
	require.Len(t, folders, 1)
	require.Equal(t, "Кампания 2026", folders[0].Name)

	// The refreshed folder list follows the confirmation.
	last := api.lastMessage(t)
	require.Equal(t, msgFoldersHeader, last.Text)
	require.Contains(t, buttonData(t, last), fmt.Sprintf("folder:%d", folders[0].ID))
}

func TestCreateFolderRejectsEmptyName(t *testing.T) {
	b, api, _ := newTestBot(t)

	const chatID int64 = 3

	b.session(chatID).setStep(stepFolderName)

	b.handleUpdate(t.Context(), textUpdate(chatID, "   "))

	require.Equal(t, []string{msgFolderNameEmpty}, api.texts())
	require.Equal(t, stepFolderName, b.session(chatID).currentStep(), "the bot keeps waiting for a name")
}

func TestAddChannelWithoutFoldersOffersCreation(t *testing.T) {
	b, api, _ := newTestBot(t)

	b.handleUpdate(t.Context(), commandUpdate(3, "add_channel"))

	last := api.lastMessage(t)
	require.Equal(t, msgNoFoldersYet, last.Text)
	require.Contains(t, buttonData(t, last), cbCreateFolder)
}

func TestAddChannelFlowFallsBackToUsername(t *testing.T) {
	b, api, _ := newTestBot(t)

	folder := createFolder(t, b.store, "Основная")

	const chatID int64 = 3

	b.handleUpdate(t.Context(), commandUpdate(chatID, "add_channel"))
	require.Contains(t, buttonData(t, api.lastMessage(t)), fmt.Sprintf("add_to_folder:%d", folder.ID))

	b.handleUpdate(t.Context(), callbackUpdate(chatID, 1, fmt.Sprintf("add_to_folder:%d", folder.ID)))
	require.Equal(t, stepChannelUsername, b.session(chatID).currentStep())
	require.Contains(t, api.texts(), askChannelUsername)

	// GetChat fails, so the username doubles as the title.
	b.handleUpdate(t.Context(), textUpdate(chatID, "@region_news"))

	require.Contains(t, api.texts(), fmt.Sprintf(msgChannelAdded, "region_news"))
	require.Equal(t, stepIdle, b.session(chatID).currentStep())

	channels, err := b.store.Channels(t.Context(), folder.ID)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	require.Equal(t, "region_news", channels[0].Username)
	require.Equal(t, "region_news", channels[0].Title)
	require.Zero(t, channels[0].TelegramID)
}

func TestAddChannelFlowResolvesChatTitle(t *testing.T) {
	b, api, _ := newTestBot(t)
	api.chat = tgbotapi.Chat{ID: 777, Title: "Новости региона"}
	api.chatErr = nil

	folder := createFolder(t, b.store, "Основная")

	const chatID int64 = 3

	b.session(chatID).with(func(s *session) {
		s.folderID = folder.ID
		s.step = stepChannelUsername
	})

	b.handleUpdate(t.Context(), textUpdate(chatID, "https://t.me/region_news"))

	require.Contains(t, api.texts(), fmt.Sprintf(msgChannelAdded, "Новости региона"))

	channels, err := b.store.Channels(t.Context(), folder.ID)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	require.Equal(t, "region_news", channels[0].Username)
	require.Equal(t, "Новости региона", channels[0].Title)
	require.Equal(t, int64(777), channels[0].TelegramID)
}

func TestAddChannelWithoutFolderInSession(t *testing.T) {
	b, api, _ := newTestBot(t)

	const chatID int64 = 3

	b.session(chatID).setStep(stepChannelUsername)

	b.handleUpdate(t.Context(), textUpdate(chatID, "@region_news"))

	require.Equal(t, []string{msgNoFolderInSession}, api.texts())
	require.Equal(t, stepIdle, b.session(chatID).currentStep())
}

func TestChannelsCommand(t *testing.T) {
	b, api, _ := newTestBot(t)

	b.handleUpdate(t.Context(), commandUpdate(3, "channels"))
	require.Equal(t, []string{msgNoChannelsYet}, api.texts())

	channel := seedChannel(t, b.store, "region_news", "Новости региона")

	b.handleUpdate(t.Context(), commandUpdate(3, "channels"))

	last := api.lastMessage(t)
	require.Equal(t, msgChannelsHeader, last.Text)
	require.Contains(t, buttonData(t, last), fmt.Sprintf("channel:%d", channel.ID))
}

func TestAnalyzeCommandListsChannels(t *testing.T) {
	b, api, _ := newTestBot(t)

	channel := seedChannel(t, b.store, "region_news", "Новости региона")

	b.handleUpdate(t.Context(), commandUpdate(3, "analyze"))

	last := api.lastMessage(t)
	require.Equal(t, askSelectChannel, last.Text)
	require.Contains(t, buttonData(t, last), fmt.Sprintf("analyze_channel:%d", channel.ID))
}

func TestModelsCommand(t *testing.T) {
	b, api, _ := newTestBot(t)

	b.handleUpdate(t.Context(), commandUpdate(3, "models"))

	last := api.lastMessage(t)
	require.Equal(t, fmt.Sprintf(modelsHeader, "gpt-4o"), last.Text)
	require.Contains(t, buttonData(t, last), "set_model:gpt-4o")
	require.Contains(t, buttonData(t, last), "set_model:claude-3-opus")
}

func TestModelCommandsAdminOnly(t *testing.T) {
	b, api, _ := newTestBot(t, func(p *Params) {
		p.Config.AdminIDs = []int64{99}
	})

	b.handleUpdate(t.Context(), asUser(commandUpdate(3, "models"), 50))
	b.handleUpdate(t.Context(), asUser(commandUpdate(3, "providers"), 50))

	require.Equal(t, []string{msgNotAdmin, msgNotAdmin}, api.texts())

	b.handleUpdate(t.Context(), asUser(commandUpdate(3, "models"), 99))

	require.Equal(t, fmt.Sprintf(modelsHeader, "gpt-4o"), api.lastMessage(t).Text)
}

func TestProvidersCommandSeedsSelection(t *testing.T) {
	b, api, _ := newTestBot(t)

	const chatID int64 = 3

	b.handleUpdate(t.Context(), commandUpdate(chatID, "providers"))

	last := api.lastMessage(t)
	require.Equal(t, fmt.Sprintf(providersHeader, "ddg, blackbox, liaobots, pollinations"), last.Text)
	require.Contains(t, buttonData(t, last), "toggle_provider:ddg")
	require.Contains(t, buttonData(t, last), cbSaveProviders)

	var seeded map[string]bool

	b.session(chatID).with(func(s *session) { seeded = s.providers })

	require.Equal(t, map[string]bool{"ddg": true, "blackbox": true, "liaobots": true, "pollinations": true}, seeded)
}
