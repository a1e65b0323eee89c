package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/samber/lo"

	"github.com/polittech/stratagem/internal/prompt"
	"github.com/polittech/stratagem/internal/store"
	"github.com/polittech/stratagem/internal/strategist"
	"github.com/polittech/stratagem/internal/tgfeed"
	"github.com/polittech/stratagem/internal/web"
)

// The assistant serves Russian-speaking campaign teams; every user-facing
// text is Russian by design of the product, not localized.
const (
	msgStart = "👋 Добро пожаловать в ПолитТехПро!\nЯ помогу вам разработать эффективную политическую стратегию."

	msgHelp = "🔍 Основные команды:\n" +
		"/start - Начать работу\n" +
		"/new_strategy - Создать новую стратегию\n" +
		"/analyze - Анализ канала\n" +
		"/generate_slogans - Генерация лозунгов\n" +
		"/folders - Управление папками\n" +
		"/add_channel - Добавить канал\n" +
		"/channels - Список каналов\n" +
		"/help - Помощь"

	msgHelpExtra = "Дополнительные команды:\n" +
		"/folders - Управление папками\n" +
		"/create_folder - Создать новую папку\n" +
		"/add_channel - Добавить канал\n" +
		"/channels - Список каналов\n" +
		"/analyze - Анализ канала\n" +
		"/models - Управление моделями ИИ\n" +
		"/providers - Управление провайдерами"

	msgError      = "❌ Произошла ошибка. Попробуйте ещё раз."
	msgTimeout    = "⏳ Превышено время ожидания. Попробуйте еще раз."
	msgNotAdmin   = "⛔ Эта команда доступна только администраторам бота."
	msgProcessing = "⚙️ Обрабатываю ваш запрос..."
	msgDone       = "✅ Готово!"
	msgBusy       = "⏳ Предыдущий запрос ещё обрабатывается. Дождитесь его завершения или отмените операцию."
	msgCancelled  = "❌ Операция отменена"
)

// Strategy dialogue.
const (
	askPointA    = "Опишите текущую ситуацию (точка А):"
	askPointB    = "Опишите цель, которую вы хотите достичь (точка Б):"
	askTimeframe = "Укажите временные рамки для достижения цели (например, '3 месяца'):"
	askAudience  = "Опишите целевую аудиторию:"

	askChannel       = "Хотите добавить Telegram-канал для анализа и использования его данных при генерации стратегии?"
	msgNoChannels    = "У вас нет добавленных каналов. Хотите добавить новый канал или продолжить без канала?"
	askSelectChannel = "Выберите канал для анализа:"
	msgChannelGone   = "Канал не найден. Попробуйте выбрать другой канал."
	msgChannelChosen = "Выбран канал: *%s*\n\nВыберите период анализа постов:"
	msgPeriodChosen  = "Выбран период: *%d дней*\n\nВведите ключевое слово для фильтрации постов или нажмите кнопку, чтобы анализировать все посты:"

	msgKeywordTooShort = "Пожалуйста, введите ключевое слово длиной не менее 2 символов или нажмите кнопку 'Без ключевого слова'."
	msgKeywordMiss     = "❌ Не найдено сообщений с ключевым словом '%s' за последние %d дней.\nХотите продолжить без анализа канала или выбрать другое ключевое слово?"
	msgNoPosts         = "❌ Не найдено сообщений за последние %d дней.\nХотите продолжить без анализа канала или выбрать другой канал?"
	msgKeywordHit      = "✅ Найдено %d сообщений с ключевым словом '%s'.\n\nТеперь предлагаю добавить статью из интернета для ещё более точной генерации стратегии."
	msgChannelDigested = "✅ Проанализировано %d сообщений за последние %d дней.\n\nТеперь предлагаю добавить статью из интернета для ещё более точной генерации стратегии."
	msgChannelFailed   = "❌ Произошла ошибка при анализе канала.\nПредлагаю продолжить без канала или выбрать другой канал."
	askNextAction      = "Выберите действие:"

	askChannelUsernameShort = "Введите имя пользователя канала (в формате @username):"
)

// Article step.
const (
	askArticle           = "Хотите добавить статью из интернета для более точной генерации стратегии?"
	askArticleURL        = "Пожалуйста, отправьте ссылку на статью или новость из интернета:"
	msgBadURL            = "Пожалуйста, введите корректный URL, начинающийся с http:// или https://"
	msgArticleFailed     = "❌ Не удалось получить информацию по ссылке. Проверьте адрес или попробуйте другую статью."
	askWithoutArticle    = "Хотите продолжить генерацию стратегии без статьи?"
	msgArticleAdded      = "✅ Статья успешно добавлена: *%s*\n\nТеперь генерирую стратегию с учетом всей собранной информации..."
	articleUntitled      = "Без названия"
	msgArticleContinuing = "❌ Произошла ошибка при обработке статьи.\nПродолжаю генерацию стратегии без статьи."
)

// Generation results.
const (
	reportTemplate = "📊 *Анализ ситуации:*\n%s\n\n🎯 *Стратегия:*\n%s\n\n⏱ *Временная линия:*\n%s\n📋 *Необходимые ресурсы:*\n%s"
	channelNotice  = "\n\n📱 *При генерации использовался Telegram-канал:*\n[%s](%s)"
	articleNotice  = "\n\n📰 *При генерации использовалась статья:*\n[%s](%s)"

	// Task failures reach the user as one of the fixed reason* explanations;
	// the error chain itself carries provider URLs and response statuses
	// that belong in the logs, not in the chat.
	reasonUnavailable = "сервис генерации сейчас недоступен. Попробуйте ещё раз через несколько минут"
	reasonEmptyReply  = "модель вернула пустой ответ. Попробуйте повторить запрос"
	reasonBadSetup    = "выбранная модель или провайдеры настроены некорректно. Проверьте /models и /providers"

	msgStrategyFailed     = "Ошибка при генерации стратегии: %s"
	msgStrategyCancelled  = "❌ Генерация стратегии была отменена"
	msgStrategySendFailed = "Произошла ошибка при генерации стратегии. Попробуйте еще раз."
	msgStrategyConfirmed  = "✅ Стратегия подтверждена. Что хотите сделать дальше?"
	msgNoStrategyToRefine = "❌ Не найдена стратегия для улучшения"
	askRefineFeedback     = "Опишите, что именно вы хотите улучшить в стратегии:"
	msgRefineFailed       = "❌ Произошла ошибка при генерации стратегии: %s"

	msgFinished       = "Работа со стратегией завершена. Вы можете вернуться в главное меню или начать новую стратегию."
	msgBackToStrategy = "Вы вернулись к работе со стратегией. Что хотите сделать дальше?"
)

// Internet search.
const (
	msgSuggestedQuery   = "Предлагаемый поисковый запрос:\n\n*%s*\n\nЧто хотите сделать?"
	msgNoSuggestedQuery = "Ошибка: не удалось найти предложенный запрос. Пожалуйста, введите запрос вручную."
	askSearchQuery      = "Введите поисковый запрос:"
	msgEmptyQuery       = "Пожалуйста, введите корректный поисковый запрос."
	searchHeader        = "🔍 Результаты поиска по запросу: *%s*\n\n"
	msgSearchEmpty      = "По вашему запросу ничего не найдено. Попробуйте изменить запрос."
	msgSearchFailed     = "Произошла ошибка при поиске. Попробуйте позже."
	fallbackQuery       = "Стратегия %s для %s"
)

// Slogans.
const (
	msgNoStrategyForSlogans = "❌ Не найдена стратегия для генерации лозунгов"
	slogansHeader           = "📢 *Сгенерированные лозунги:*\n\n"
	sloganTheme             = "%s\n\nКонтекст стратегии:\n%s"
	msgSlogansCancelled     = "❌ Генерация лозунгов была отменена"
	msgSlogansFailed        = "❌ Произошла ошибка при генерации лозунгов: %s"
)

// Folders and channels.
const (
	msgNoFolders          = "У вас пока нет папок. Создайте новую папку с помощью команды /create_folder"
	msgFoldersHeader      = "📂 Ваши папки:"
	msgNoFoldersYet       = "У вас нет папок для каналов. Сначала нужно создать папку."
	askFolderForChannel   = "Выберите папку для нового канала:"
	askFolderName         = "Введите название для новой папки:"
	msgFolderNameEmpty    = "Название папки не может быть пустым. Попробуйте еще раз:"
	msgFolderCreated      = "✅ Папка '%s' успешно создана!"
	msgFolderExists       = "❌ Папка с таким названием уже существует."
	msgFolderCreateFailed = "❌ Ошибка при создании папки. Попробуйте ещё раз."
	folderHeader          = "📁 Папка: *%s*\n\n"
	folderChannelCount    = "Каналы в папке (%d):"
	folderEmpty           = "В этой папке пока нет каналов."
	msgFolderDeleteAsk    = "⚠️ Вы уверены, что хотите удалить эту папку? Все каналы в ней также будут удалены."
	msgFolderDeleted      = "✅ Папка успешно удалена!"
	msgFolderDeleteFailed = "❌ Ошибка при удалении папки. Попробуйте ещё раз."

	msgNoChannelsYet       = "У вас пока нет добавленных каналов. Добавьте канал с помощью команды /add_channel"
	msgChannelsHeader      = "📢 Ваши каналы:"
	askChannelUsername     = "Введите @username канала, который хотите добавить:"
	msgUsernameEmpty       = "Имя канала не может быть пустым. Попробуйте еще раз:"
	msgNoFolderInSession   = "❌ Ошибка: не указана папка. Попробуйте снова."
	msgChannelAdded        = "✅ Канал *%s* успешно добавлен в папку!"
	msgChannelAddFailed    = "❌ Ошибка при добавлении канала. Попробуйте ещё раз."
	msgChannelAddCancelled = "❌ Добавление канала отменено."
	channelCard            = "📢 Канал: *%s*\nUsername: @%s\nID: `%d`"
	msgChannelNotFound     = "❌ Канал не найден."
	msgChannelDeleteAsk    = "⚠️ Вы уверены, что хотите удалить этот канал?"
	msgChannelDeleted      = "✅ Канал успешно удален!"
	msgChannelDeleteFail   = "❌ Ошибка при удалении канала. Попробуйте ещё раз."
)

// Article review against a channel.
const (
	askReviewArticleURL = "Отправьте ссылку на статью, которую хотите оценить для канала *%s*:"
	reviewHeader        = "📰 *Оценка статьи для канала %s*\n\n"
	msgReviewCancelled  = "❌ Оценка статьи была отменена"
	msgReviewFailed     = "❌ Не удалось оценить статью: %s"
)

// Channel analysis.
const (
	askAnalyzePeriod  = "📊 Выберите период для анализа канала *%s*:"
	digestHeader      = "📊 *Анализ канала %s*\n\n📅 Период: последние %d дней\n📝 Проанализировано сообщений: %d\n\n"
	digestTopics      = "🔍 *Основные темы:*\n"
	digestSentiment   = "😊 *Тональность:*\n• Позитивная: %.1f%%\n• Нейтральная: %.1f%%\n• Негативная: %.1f%%\n\n"
	msgAnalyzeFailed  = "❌ Ошибка при анализе канала. Попробуйте позже."
	maxReportedTopics = 5
)

// Models and providers.
const (
	modelsHeader          = "🤖 Текущая модель: *%s*\n\nВыберите модель для использования:"
	msgModelSet           = "✅ Модель *%s* успешно установлена!"
	msgModelSetFailed     = "❌ Ошибка при установке модели %s."
	providersHeader       = "🔌 Текущие провайдеры: *%s*\n\nВыберите провайдеры для использования:"
	providersPicked       = "🔌 Выбранные провайдеры: *%s*\n\nВыберите провайдеры для использования:"
	msgProvidersNeedOne   = "❌ Необходимо выбрать хотя бы одного провайдера."
	msgProvidersSaved     = "✅ Провайдеры успешно сохранены: *%s*"
	msgProvidersSaveError = "❌ Ошибка при сохранении провайдеров."
)

// Long message delivery.
const (
	longMessageSuffix = "\n\nПолный текст во вложенном файле 👇"
	documentCaption   = "Полный текст"
)

// Callback actions. Composite payloads append ':'-separated arguments.
const (
	cbNewStrategy            = "new_strategy"
	cbAddChannelMenu         = "add_channel"
	cbCancelOperation        = "cancel_operation"
	cbGotoMainMenu           = "goto_main_menu"
	cbAddChannelToStrategy   = "add_channel_to_strategy"
	cbContinueWithoutChannel = "continue_without_channel"
	cbCancelStrategy         = "cancel_strategy"
	cbAddNewChannel          = "add_new_channel"
	cbSelectChannel          = "select_channel"
	cbPeriod                 = "period"
	cbCancelChannel          = "cancel_channel"
	cbNoKeyword              = "no_keyword"
	cbAddArticle             = "add_article"
	cbContinueWithoutArticle = "continue_without_article"
	cbCancelArticle          = "cancel_article"
	cbConfirmStrategy        = "confirm_strategy"
	cbRefineStrategy         = "refine_strategy"
	cbFinishStrategy         = "finish_strategy"
	cbBackToStrategy         = "back_to_strategy"
	cbSearchInternet         = "search_internet"
	cbUseSuggestedQuery      = "use_suggested_query"
	cbEnterCustomQuery       = "enter_custom_query"
	cbCancelSearch           = "cancel_search"
	cbGenerateSlogans        = "generate_slogans"
	cbCreateFolder           = "create_folder"
	cbFolder                 = "folder"
	cbBackToFolders          = "back_to_folders"
	cbAddToFolder            = "add_to_folder"
	cbAddToFolderStrategy    = "add_to_folder_strategy"
	cbCancelAddChannel       = "cancel_add_channel"
	cbDeleteFolder           = "delete_folder"
	cbConfirmDeleteFolder    = "confirm_delete_folder"
	cbChannel                = "channel"
	cbBackToChannels         = "back_to_channels"
	cbDeleteChannel          = "delete_channel"
	cbConfirmDeleteChannel   = "confirm_delete_channel"
	cbAnalyzeChannel         = "analyze_channel"
	cbAnalyzePeriod          = "analyze_period"
	cbReviewArticle          = "review_article"
	cbSetModel               = "set_model"
	cbToggleProvider         = "toggle_provider"
	cbSaveProviders          = "save_providers"
)

func button(text, action string, args ...any) tgbotapi.InlineKeyboardButton {
	data := action
	for _, arg := range args {
		data = fmt.Sprintf("%s:%v", data, arg)
	}

	return tgbotapi.NewInlineKeyboardButtonData(text, data)
}

func column(buttons ...tgbotapi.InlineKeyboardButton) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(b))
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func kbCancel(action string) tgbotapi.InlineKeyboardMarkup {
	return column(button("❌ Отмена", action))
}

func kbChannelDecision() tgbotapi.InlineKeyboardMarkup {
	return column(
		button("✅ Добавить Telegram-канал", cbAddChannelToStrategy),
		button("➡️ Продолжить без канала", cbContinueWithoutChannel),
		button("❌ Отменить", cbCancelStrategy),
	)
}

func kbNoChannels() tgbotapi.InlineKeyboardMarkup {
	return column(
		button("➕ Добавить новый канал", cbAddNewChannel),
		button("➡️ Продолжить без канала", cbContinueWithoutChannel),
		button("❌ Отменить", cbCancelStrategy),
	)
}

func kbChannelPick(channels []store.Channel, action string) tgbotapi.InlineKeyboardMarkup {
	buttons := lo.Map(channels, func(c store.Channel, _ int) tgbotapi.InlineKeyboardButton {
		return button(fmt.Sprintf("📢 %s", c.Title), action, c.ID)
	})

	return column(buttons...)
}

func kbPeriods() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			button("1 день", cbPeriod, 1),
			button("4 дня", cbPeriod, 4),
			button("1 неделя", cbPeriod, 7),
		),
		tgbotapi.NewInlineKeyboardRow(button("❌ Отменить", cbCancelChannel)),
	)
}

func kbKeyword() tgbotapi.InlineKeyboardMarkup {
	return column(
		button("➡️ Без ключевого слова", cbNoKeyword),
		button("❌ Отменить", cbCancelChannel),
	)
}

func kbKeywordRetry(days int) tgbotapi.InlineKeyboardMarkup {
	return column(
		button("🔄 Выбрать другое слово", cbPeriod, days),
		button("➡️ Продолжить без канала", cbContinueWithoutChannel),
		button("❌ Отменить", cbCancelStrategy),
	)
}

func kbChannelRetry() tgbotapi.InlineKeyboardMarkup {
	return column(
		button("🔄 Выбрать другой канал", cbAddChannelToStrategy),
		button("➡️ Продолжить без канала", cbContinueWithoutChannel),
		button("❌ Отменить", cbCancelStrategy),
	)
}

func kbNoFoldersStrategy() tgbotapi.InlineKeyboardMarkup {
	return column(
		button("➕ Создать папку", cbCreateFolder),
		button("➡️ Продолжить без канала", cbContinueWithoutChannel),
		button("❌ Отменить", cbCancelStrategy),
	)
}

func kbArticleDecision() tgbotapi.InlineKeyboardMarkup {
	return column(
		button("✅ Добавить статью из интернета", cbAddArticle),
		button("➡️ Продолжить без статьи", cbContinueWithoutArticle),
		button("❌ Отменить", cbCancelStrategy),
	)
}

func kbWithoutArticle() tgbotapi.InlineKeyboardMarkup {
	return column(button("➡️ Продолжить без статьи", cbContinueWithoutArticle))
}

func kbStrategyActions() tgbotapi.InlineKeyboardMarkup {
	return column(
		button("✅ Подтвердить", cbConfirmStrategy),
		button("🔄 Улучшить", cbRefineStrategy),
		button("❌ Отменить", cbCancelStrategy),
	)
}

func kbMainMenu() tgbotapi.InlineKeyboardMarkup {
	return column(
		button("🏠 К главному меню", cbGotoMainMenu),
		button("🔄 Новая стратегия", cbNewStrategy),
	)
}

func kbPostStrategy() tgbotapi.InlineKeyboardMarkup {
	return column(
		button("🔍 Искать информацию в интернете", cbSearchInternet),
		button("📢 Сгенерировать лозунги", cbGenerateSlogans),
		button("✅ Завершить работу", cbFinishStrategy),
	)
}

func kbSearchDecision() tgbotapi.InlineKeyboardMarkup {
	return column(
		button("✅ Использовать предложенный", cbUseSuggestedQuery),
		button("✏️ Ввести свой запрос", cbEnterCustomQuery),
		button("❌ Отмена", cbCancelSearch),
	)
}

func kbSearchResults() tgbotapi.InlineKeyboardMarkup {
	return column(
		button("🔄 Новый поиск", cbSearchInternet),
		button("✅ Вернуться к стратегии", cbBackToStrategy),
	)
}

func kbSloganActions() tgbotapi.InlineKeyboardMarkup {
	return column(
		button("🔄 Сгенерировать еще", cbGenerateSlogans),
		button("🔙 Вернуться к стратегии", cbBackToStrategy),
		button("✅ Завершить работу", cbFinishStrategy),
	)
}

func kbFolders(folders []store.Folder) tgbotapi.InlineKeyboardMarkup {
	buttons := lo.Map(folders, func(f store.Folder, _ int) tgbotapi.InlineKeyboardButton {
		return button(fmt.Sprintf("📁 %s (%d каналов)", f.Name, f.ChannelCount), cbFolder, f.ID)
	})
	buttons = append(buttons, button("➕ Создать новую папку", cbCreateFolder))

	return column(buttons...)
}

func kbFolderPick(folders []store.Folder, action string, withCancel bool) tgbotapi.InlineKeyboardMarkup {
	buttons := lo.Map(folders, func(f store.Folder, _ int) tgbotapi.InlineKeyboardButton {
		return button(fmt.Sprintf("📁 %s", f.Name), action, f.ID)
	})

	if withCancel {
		buttons = append(buttons, button("❌ Отмена", cbCancelChannel))
	}

	return column(buttons...)
}

func kbFolderView(folderID int64, channels []store.Channel) tgbotapi.InlineKeyboardMarkup {
	buttons := lo.Map(channels, func(c store.Channel, _ int) tgbotapi.InlineKeyboardButton {
		return button(fmt.Sprintf("📢 %s", c.Title), cbChannel, c.ID)
	})
	buttons = append(buttons,
		button("➕ Добавить канал", cbAddToFolder, folderID),
		button("🗑️ Удалить папку", cbDeleteFolder, folderID),
		button("🔙 Назад", cbBackToFolders),
	)

	return column(buttons...)
}

func kbChannels(channels []store.Channel) tgbotapi.InlineKeyboardMarkup {
	buttons := lo.Map(channels, func(c store.Channel, _ int) tgbotapi.InlineKeyboardButton {
		return button(fmt.Sprintf("📢 %s (@%s)", c.Title, c.Username), cbChannel, c.ID)
	})
	buttons = append(buttons, button("➕ Добавить новый канал", cbAddChannelMenu))

	return column(buttons...)
}

func kbChannelCard(id int64) tgbotapi.InlineKeyboardMarkup {
	return column(
		button("📊 Анализировать", cbAnalyzeChannel, id),
		button("📰 Оценить статью", cbReviewArticle, id),
		button("🗑️ Удалить", cbDeleteChannel, id),
		button("🔙 Назад", cbBackToChannels),
	)
}

func kbConfirmDeleteFolder(id int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			button("✅ Да", cbConfirmDeleteFolder, id),
			button("❌ Нет", cbFolder, id),
		),
	)
}

func kbConfirmDeleteChannel(id int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			button("✅ Да", cbConfirmDeleteChannel, id),
			button("❌ Нет", cbChannel, id),
		),
	)
}

func kbAnalyzePeriods(channelID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			button("За 1 день", cbAnalyzePeriod, channelID, 1),
			button("За 4 дня", cbAnalyzePeriod, channelID, 4),
			button("За 7 дней", cbAnalyzePeriod, channelID, 7),
		),
		tgbotapi.NewInlineKeyboardRow(button("🔙 Назад", cbChannel, channelID)),
	)
}

func kbBackToChannel(channelID int64) tgbotapi.InlineKeyboardMarkup {
	return column(button("🔙 Назад к каналу", cbChannel, channelID))
}

func kbModels(models []string, current string) tgbotapi.InlineKeyboardMarkup {
	buttons := lo.Map(models, func(m string, _ int) tgbotapi.InlineKeyboardButton {
		label := m
		if m == current {
			label = "✅ " + m
		}

		return button(label, cbSetModel, m)
	})

	return column(buttons...)
}

func kbProviders(providers []string, selected map[string]bool) tgbotapi.InlineKeyboardMarkup {
	buttons := lo.Map(providers, func(p string, _ int) tgbotapi.InlineKeyboardButton {
		label := p
		if selected[p] {
			label = "✅ " + p
		}

		return button(label, cbToggleProvider, p)
	})
	buttons = append(buttons, button("💾 Сохранить", cbSaveProviders))

	return column(buttons...)
}

func renderStrategyReport(analysis *strategist.SituationAnalysis, strategy *strategist.Strategy, data dialogueData) string {
	var analysisText string
	if analysis != nil {
		analysisText = analysis.Analysis
	}

	var timeline strings.Builder
	for _, period := range strategy.Timeline {
		fmt.Fprintf(&timeline, "- %s\n", period.Period)

		for _, action := range period.Actions {
			fmt.Fprintf(&timeline, "  • %s\n", action)
		}
	}

	var resources strings.Builder
	for _, resource := range strategy.Resources {
		fmt.Fprintf(&resources, "- %s\n", resource)
	}

	report := fmt.Sprintf(reportTemplate, analysisText, strategy.Text, timeline.String(), resources.String())

	if data.channelContent != "" && data.channelUsername != "" {
		report += fmt.Sprintf(channelNotice, data.channelTitle, "https://t.me/"+data.channelUsername)
	}

	if data.article != nil && data.articleURL != "" {
		report += fmt.Sprintf(articleNotice, data.article.Title, data.articleURL)
	}

	return report
}

func renderSlogans(slogans []string) string {
	var sb strings.Builder

	sb.WriteString(slogansHeader)

	for i, slogan := range slogans {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, slogan)
	}

	return sb.String()
}

func renderSearchResults(query string, results []web.SearchResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, searchHeader, query)

	for i, result := range results {
		fmt.Fprintf(&sb, "%d. [%s](%s)\n   %s\n\n", i+1, result.Title, result.Link, prompt.Truncate(result.Snippet, 100))
	}

	return sb.String()
}

func renderDigest(title string, digest *tgfeed.Digest) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, digestHeader, title, digest.PeriodDays, digest.MessageCount)

	if len(digest.Topics) > 0 {
		sb.WriteString(digestTopics)

		for _, topic := range lo.Slice(digest.Topics, 0, maxReportedTopics) {
			fmt.Fprintf(&sb, "• %s\n", topic)
		}

		sb.WriteString("\n")
	}

	if digest.MessageCount > 0 {
		// Scores are 0..1 fractions; the report shows percentages.
		fmt.Fprintf(&sb, digestSentiment,
			digest.Sentiment.Positive*100,
			digest.Sentiment.Neutral*100,
			digest.Sentiment.Negative*100,
		)
	}

	return sb.String()
}
