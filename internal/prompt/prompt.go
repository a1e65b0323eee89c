// Package prompt assembles the fixed two-message requests for every
// generation task. Each builder pairs a system persona with an interpolated
// user payload and bakes in the task's sampling temperature; the model field
// is left empty so the orchestrator resolves the currently selected one.
//
// The personas and payload wording are Russian by design: the assistant's
// audience is Russian-speaking and the free backends follow the prompt
// language.
package prompt

import (
	"fmt"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/polittech/stratagem/internal/llm"
)

// MetadataTask is the request metadata key carrying the task name, used for
// logging and metrics attribution downstream.
const MetadataTask = "task"

// Task names, stamped into request metadata by the builders.
const (
	TaskSituationAnalysis   = "situation_analysis"
	TaskStrategy            = "strategy"
	TaskStrategyWithArticle = "strategy_with_article"
	TaskStrategyWithChannel = "strategy_with_channel"
	TaskSlogans             = "slogan_generation"
	TaskRefine              = "strategy_refinement"
	TaskSearchQuery         = "search_query"
	TaskArticleReview       = "article_review"
)

// Context size caps, in runes. Supplementary material is clipped before
// interpolation so a long article cannot crowd the task itself out of the
// model's context window.
const (
	// MaxContextChars caps channel and article context blocks.
	MaxContextChars = 2000

	// maxReviewChars caps the article excerpt in a review prompt.
	maxReviewChars = 1500

	// maxQueryStrategyChars caps the strategy excerpt when formulating a
	// search query.
	maxQueryStrategyChars = 500
)

// Sampling temperatures per task class. Creative tasks run hotter.
const (
	temperatureAnalytical = 0.7
	temperatureStrategy   = 0.8
	temperatureCreative   = 0.9
)

const (
	personaStrategist      = "Вы - опытный политтехнолог. Проанализируйте текущую ситуацию."
	personaStrategyPlain   = "Вы - опытный политтехнолог. Разработайте стратегию достижения цели."
	personaStrategyArticle = "Вы - опытный политтехнолог. Разработайте стратегию достижения цели с учетом информации из статьи."
	personaStrategyChannel = "Вы - опытный политтехнолог. Разработайте стратегию достижения цели с учетом информации из Telegram-канала."
	personaCopywriter      = "Вы - опытный копирайтер. Создайте эффективные лозунги."
	personaRefiner         = "Вы - опытный политтехнолог. Улучшите стратегию на основе обратной связи."
	personaQueryFormulator = "Ты - помощник, который формулирует поисковые запросы."
	personaContentAnalyst  = "Ты - аналитик контента для Telegram-каналов."
)

const strategyTemplate = `Текущая ситуация: %s
Цель: %s
Временные рамки: %s
Целевая аудитория: %s`

const strategyWithArticleTemplate = `Текущая ситуация: %s

Цель: %s

Временные рамки: %s

Целевая аудитория: %s

Статья для контекста:
Заголовок: %s
Содержание: %s

Разработайте подробную стратегию, используя информацию из статьи, когда это уместно и может повысить эффективность стратегии. Обязательно укажите, как именно информация из статьи повлияла на стратегию.`

const strategyWithChannelTemplate = `Текущая ситуация: %s

Цель: %s

Временные рамки: %s

Целевая аудитория: %s

Данные из Telegram-канала '%s':
%s%s

Разработайте подробную стратегию, используя информацию из канала и статьи (если есть), когда это уместно и может повысить эффективность стратегии. Обязательно укажите, как именно информация из канала повлияла на стратегию.`

const extraArticleTemplate = `

Статья для дополнительного контекста:
Заголовок: %s
Содержание: %s`

const slogansTemplate = `Тема: %s
Целевая аудитория: %s
Количество лозунгов: %d`

const refineTemplate = `Стратегия:
%s

Обратная связь:
%s`

const searchQueryTemplate = `На основе следующих данных сформулируй один короткий поисковый запрос (до 10 слов) для поиска информации в интернете, которая может помочь в реализации стратегии.

Текущая ситуация: %s
Желаемый результат: %s
Целевая аудитория: %s
Стратегия: %s

Поисковый запрос должен быть конкретным и содержать ключевые слова, но при этом быть коротким. Не используй кавычки и специальные символы в запросе. Верни только текст запроса без дополнительных пояснений.`

const articleReviewTemplate = `Проанализируй статью в контексте Telegram-канала и дай рекомендации:

Канал: @%s
Название канала: %s
Статистика канала:
- Всего сообщений: %d
- Среднее количество просмотров: %d

Заголовок статьи: %s

Содержание статьи (фрагмент):
%s

Дай анализ статьи, учитывая следующие аспекты:
1. Насколько тема статьи соответствует тематике канала
2. Потенциальный интерес аудитории канала к этой статье
3. Рекомендации по использованию информации из статьи в контексте канала
4. Ключевые моменты, которые стоит выделить при публикации
5. Возможные риски при публикации материала

Структурируй ответ по пунктам и дай конкретные рекомендации.`

// ArticleContext is a fetched web article offered as strategy context.
type ArticleContext struct {
	Title   string
	Content string
}

// ChannelContext is a channel digest offered as strategy context.
type ChannelContext struct {
	Title   string
	Content string
}

// StrategyInput is the four mandatory campaign parameters plus optional
// supplementary context. When both channel and article are present the
// channel variant carries the article as an extra block.
type StrategyInput struct {
	PointA    string
	PointB    string
	Timeframe string
	Audience  string

	Channel *ChannelContext
	Article *ArticleContext
}

// ChannelSummary is the channel identity and aggregate statistics an article
// review prompt is framed with.
type ChannelSummary struct {
	Username string
	Title    string
	Messages int
	AvgViews int
}

// SituationAnalysis builds the request for a free-form situation analysis.
func SituationAnalysis(situation string) *llm.Request {
	return build(TaskSituationAnalysis, temperatureAnalytical, personaStrategist, situation)
}

// Strategy builds the strategy-generation request for in. The user payload
// shape depends on which supplementary context is present.
func Strategy(in StrategyInput) *llm.Request {
	switch {
	case in.Channel != nil:
		extra := ""
		if in.Article != nil && in.Article.Title != "" && in.Article.Content != "" {
			extra = fmt.Sprintf(extraArticleTemplate, in.Article.Title, Truncate(in.Article.Content, MaxContextChars))
		}

		payload := fmt.Sprintf(strategyWithChannelTemplate,
			in.PointA, in.PointB, in.Timeframe, in.Audience,
			in.Channel.Title, Truncate(in.Channel.Content, MaxContextChars), extra)

		return build(TaskStrategyWithChannel, temperatureStrategy, personaStrategyChannel, payload)

	case in.Article != nil:
		payload := fmt.Sprintf(strategyWithArticleTemplate,
			in.PointA, in.PointB, in.Timeframe, in.Audience,
			in.Article.Title, Truncate(in.Article.Content, MaxContextChars))

		return build(TaskStrategyWithArticle, temperatureStrategy, personaStrategyArticle, payload)

	default:
		payload := fmt.Sprintf(strategyTemplate, in.PointA, in.PointB, in.Timeframe, in.Audience)

		return build(TaskStrategy, temperatureStrategy, personaStrategyPlain, payload)
	}
}

// Slogans builds the request for count campaign slogans on theme.
func Slogans(theme, audience string, count int) *llm.Request {
	payload := fmt.Sprintf(slogansTemplate, theme, audience, count)

	return build(TaskSlogans, temperatureCreative, personaCopywriter, payload)
}

// Refine builds the request that reworks strategy according to feedback.
func Refine(strategy, feedback string) *llm.Request {
	payload := fmt.Sprintf(refineTemplate, strategy, feedback)

	return build(TaskRefine, temperatureAnalytical, personaRefiner, payload)
}

// SearchQuery builds the request that distills a strategy into a short news
// search query.
func SearchQuery(strategy, pointA, pointB, audience string) *llm.Request {
	payload := fmt.Sprintf(searchQueryTemplate,
		pointA, pointB, audience, Truncate(strategy, maxQueryStrategyChars))

	return build(TaskSearchQuery, temperatureAnalytical, personaQueryFormulator, payload)
}

// ArticleReview builds the request that judges an article against a channel's
// audience and statistics.
func ArticleReview(article ArticleContext, channel ChannelSummary) *llm.Request {
	payload := fmt.Sprintf(articleReviewTemplate,
		channel.Username, channel.Title, channel.Messages, channel.AvgViews,
		article.Title, Truncate(article.Content, maxReviewChars))

	return build(TaskArticleReview, temperatureAnalytical, personaContentAnalyst, payload)
}

// Truncate shortens s to at most limit runes, marking the cut with an
// ellipsis. Counting runes keeps Cyrillic text from being split mid-character.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	return lo.Substring(s, 0, uint(limit)) + "..."
}

func build(task string, temperature float64, persona, payload string) *llm.Request {
	req := llm.NewRequest("", llm.SystemMessage(persona), llm.UserMessage(payload))
	req.Temperature = lo.ToPtr(temperature)
	req.Metadata = map[string]string{MetadataTask: task}

	return req
}
