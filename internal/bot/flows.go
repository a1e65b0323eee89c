package bot

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/polittech/stratagem/internal/activity"
	"github.com/polittech/stratagem/internal/extract"
	"github.com/polittech/stratagem/internal/llm"
	"github.com/polittech/stratagem/internal/log"
	"github.com/polittech/stratagem/internal/pkg/xcontext"
	"github.com/polittech/stratagem/internal/progress"
	"github.com/polittech/stratagem/internal/prompt"
	"github.com/polittech/stratagem/internal/strategist"
	"github.com/polittech/stratagem/internal/tgfeed"
)

// maxSearchResults caps how many hits a search reply lists.
const maxSearchResults = 5

// sloganContextChars caps how much strategy text frames the slogan theme.
const sloganContextChars = 500

// detachGrace bounds delivery work that must outlive a cancelled task.
const detachGrace = 5 * time.Second

// failureReason picks the user-facing explanation of a failed task. The
// error itself stays in the logs: its chain carries provider URLs and
// response statuses that have no place in a chat message.
func failureReason(err error) string {
	switch {
	case errors.Is(err, llm.ErrEmptyResponse):
		return reasonEmptyReply
	case errors.Is(err, llm.ErrUnknownModel),
		errors.Is(err, llm.ErrUnknownProvider),
		errors.Is(err, llm.ErrInvalidRequest):
		return reasonBadSetup
	default:
		return reasonUnavailable
	}
}

type generationOutcome struct {
	analysis *strategist.SituationAnalysis
	strategy *strategist.Strategy
}

func (b *Bot) askAboutArticle(ctx context.Context, chatID int64) {
	b.replyKB(ctx, chatID, askArticle, kbArticleDecision())
}

// processChannelPosts builds the channel digest for the strategy dialogue
// and moves on to the article question when posts are found.
func (b *Bot) processChannelPosts(ctx context.Context, chatID int64, keyword string) {
	sess := b.session(chatID)
	data := sess.data()

	processing, err := b.deliver(ctx, b.message(chatID, msgProcessing))
	if err != nil {
		log.Warn(ctx, "processing notice failed", log.Cause(err))

		return
	}

	digest, err := b.feed.Analyze(ctx, data.channelUsername, data.periodDays)
	if err != nil {
		b.activity.Record(activity.KindError, "channel")
		log.Warn(ctx, "channel digest failed", log.String("channel", data.channelUsername), log.Cause(err))

		if editErr := b.editTextKB(ctx, chatID, processing.MessageID, msgChannelFailed, kbChannelRetry()); editErr != nil {
			log.Debug(ctx, "edit failed", log.Cause(editErr))
		}

		return
	}

	b.activity.Record(activity.KindAnalysis, data.channelUsername)

	if keyword != "" {
		matched := tgfeed.Filter(digest.Posts, keyword)
		if len(matched) == 0 {
			sess.setStep(stepKeyword)

			if editErr := b.editText(ctx, chatID, processing.MessageID, fmt.Sprintf(msgKeywordMiss, keyword, data.periodDays)); editErr != nil {
				log.Debug(ctx, "edit failed", log.Cause(editErr))
			}

			b.replyKB(ctx, chatID, askNextAction, kbKeywordRetry(data.periodDays))

			return
		}

		b.adoptDigest(sess, digest, keyword)

		if editErr := b.editText(ctx, chatID, processing.MessageID, fmt.Sprintf(msgKeywordHit, len(matched), keyword)); editErr != nil {
			log.Debug(ctx, "edit failed", log.Cause(editErr))
		}

		b.askAboutArticle(ctx, chatID)

		return
	}

	if digest.MessageCount == 0 {
		if editErr := b.editTextKB(ctx, chatID, processing.MessageID, fmt.Sprintf(msgNoPosts, data.periodDays), kbChannelRetry()); editErr != nil {
			log.Debug(ctx, "edit failed", log.Cause(editErr))
		}

		return
	}

	b.adoptDigest(sess, digest, "")

	if editErr := b.editText(ctx, chatID, processing.MessageID, fmt.Sprintf(msgChannelDigested, digest.MessageCount, data.periodDays)); editErr != nil {
		log.Debug(ctx, "edit failed", log.Cause(editErr))
	}

	b.askAboutArticle(ctx, chatID)
}

// adoptDigest stores the digest's content as strategy context.
func (b *Bot) adoptDigest(sess *session, digest *tgfeed.Digest, keyword string) {
	content := digest.Content(keyword)

	sess.with(func(s *session) {
		s.channelContent = content

		if digest.Title != "" {
			s.channelTitle = digest.Title
		}

		s.step = stepIdle
	})
}

// processArticle fetches the article behind the submitted link and starts
// generation. A fetch failure offers to continue without the article; an
// article with no extractable text continues without it right away.
func (b *Bot) processArticle(ctx context.Context, chatID int64, rawURL string) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		b.reply(ctx, chatID, msgBadURL)

		return
	}

	sess := b.session(chatID)

	processing, err := b.deliver(ctx, b.message(chatID, msgProcessing))
	if err != nil {
		log.Warn(ctx, "processing notice failed", log.Cause(err))

		return
	}

	article, err := b.web.FetchArticle(ctx, rawURL)
	if err != nil {
		b.activity.Record(activity.KindError, "article")
		log.Warn(ctx, "article fetch failed", log.String("url", rawURL), log.Cause(err))

		if editErr := b.editText(ctx, chatID, processing.MessageID, msgArticleFailed); editErr != nil {
			log.Debug(ctx, "edit failed", log.Cause(editErr))
		}

		b.replyKB(ctx, chatID, askWithoutArticle, kbWithoutArticle())

		return
	}

	if strings.TrimSpace(article.Content) == "" {
		log.Warn(ctx, "article has no extractable text", log.String("url", rawURL))

		sess.with(func(s *session) {
			s.article = nil
			s.articleURL = ""
			s.step = stepIdle
		})

		if editErr := b.editText(ctx, chatID, processing.MessageID, msgArticleContinuing); editErr != nil {
			log.Debug(ctx, "edit failed", log.Cause(editErr))
		}

		b.startStrategyGeneration(ctx, chatID)

		return
	}

	title := article.Title
	if title == "" {
		title = articleUntitled
	}

	sess.with(func(s *session) {
		s.article = &prompt.ArticleContext{Title: title, Content: article.Content}
		s.articleURL = rawURL
		s.step = stepIdle
	})

	if editErr := b.editText(ctx, chatID, processing.MessageID, fmt.Sprintf(msgArticleAdded, title)); editErr != nil {
		log.Debug(ctx, "edit failed", log.Cause(editErr))
	}

	b.startStrategyGeneration(ctx, chatID)
}

// startStrategyGeneration runs the composite generation task: situation
// analysis first, then the strategy itself with whatever context the
// dialogue collected. The processing message animates while it runs.
func (b *Bot) startStrategyGeneration(ctx context.Context, chatID int64) {
	sess := b.session(chatID)
	data := sess.data()

	taskCtx, stop, ok := sess.beginTask(ctx, b.config.GenerationTimeout)
	if !ok {
		b.reply(ctx, chatID, msgBusy)

		return
	}

	processing, err := b.deliver(ctx, b.message(chatID, msgProcessing))
	if err != nil {
		stop()
		log.Warn(ctx, "processing notice failed", log.Cause(err))

		return
	}

	indicator := progress.NewIndicator(msgProcessing, func(ictx context.Context, text string) error {
		return b.editText(ictx, chatID, processing.MessageID, text)
	})

	result, err := progress.Run(taskCtx, indicator, func(tctx context.Context) (*generationOutcome, error) {
		analysis, err := b.strategist.AnalyzeSituation(tctx, data.pointA)
		if err != nil {
			return nil, err
		}

		input := prompt.StrategyInput{
			PointA:    data.pointA,
			PointB:    data.pointB,
			Timeframe: data.timeframe,
			Audience:  data.audience,
			Article:   data.article,
		}

		if data.channelContent != "" {
			input.Channel = &prompt.ChannelContext{
				Title:   data.channelTitle,
				Content: data.channelContent,
			}
		}

		strategy, err := b.strategist.GenerateStrategy(tctx, input)
		if err != nil {
			return nil, err
		}

		return &generationOutcome{analysis: analysis, strategy: strategy}, nil
	})

	stop()

	if err != nil {
		b.finishStrategyError(ctx, chatID, processing.MessageID, err)

		return
	}

	sess.with(func(s *session) {
		s.analysis = result.analysis
		s.strategy = result.strategy
		s.step = stepIdle
	})

	b.activity.Record(activity.KindGeneration, "strategy")

	if editErr := b.editText(ctx, chatID, processing.MessageID, msgDone); editErr != nil {
		log.Debug(ctx, "edit failed", log.Cause(editErr))
	}

	report := renderStrategyReport(result.analysis, result.strategy, data)

	if sendErr := b.sendLong(ctx, chatID, report, kbStrategyActions()); sendErr != nil {
		log.Error(ctx, "strategy delivery failed", log.Cause(sendErr))
		b.reply(ctx, chatID, msgStrategySendFailed)
	}
}

func (b *Bot) finishStrategyError(ctx context.Context, chatID int64, messageID int, err error) {
	// The task context is already dead here; delivery runs detached.
	dctx, cancel := xcontext.DetachWithTimeout(ctx, detachGrace)
	defer cancel()

	switch {
	case errors.Is(err, context.Canceled):
		if editErr := b.editText(dctx, chatID, messageID, msgStrategyCancelled); editErr != nil {
			log.Debug(dctx, "edit failed", log.Cause(editErr))
		}

	case errors.Is(err, context.DeadlineExceeded):
		b.activity.Record(activity.KindError, "generation")

		if editErr := b.editText(dctx, chatID, messageID, msgTimeout); editErr != nil {
			log.Debug(dctx, "edit failed", log.Cause(editErr))
		}

	default:
		b.activity.Record(activity.KindError, "generation")
		log.Error(dctx, "strategy generation failed", log.Cause(err))

		if editErr := b.editTextKB(dctx, chatID, messageID, fmt.Sprintf(msgStrategyFailed, failureReason(err)), kbMainMenu()); editErr != nil {
			log.Debug(dctx, "edit failed", log.Cause(editErr))
		}
	}
}

// startRefinement reworks the stored strategy according to the user's
// feedback and re-renders the report.
func (b *Bot) startRefinement(ctx context.Context, chatID int64, feedback string) {
	sess := b.session(chatID)
	data := sess.data()

	if data.strategy == nil {
		b.reply(ctx, chatID, msgNoStrategyToRefine)

		return
	}

	taskCtx, stop, ok := sess.beginTask(ctx, b.config.GenerationTimeout)
	if !ok {
		b.reply(ctx, chatID, msgBusy)

		return
	}

	processing, err := b.deliver(ctx, b.message(chatID, msgProcessing))
	if err != nil {
		stop()
		log.Warn(ctx, "processing notice failed", log.Cause(err))

		return
	}

	indicator := progress.NewIndicator(msgProcessing, func(ictx context.Context, text string) error {
		return b.editText(ictx, chatID, processing.MessageID, text)
	})

	refined, err := progress.Run(taskCtx, indicator, func(tctx context.Context) (*strategist.Strategy, error) {
		text, err := b.strategist.RefineStrategy(tctx, data.strategy.Text, feedback)
		if err != nil {
			return nil, err
		}

		return b.shapeStrategy(text), nil
	})

	stop()

	if err != nil {
		dctx, cancel := xcontext.DetachWithTimeout(ctx, detachGrace)
		defer cancel()

		switch {
		case errors.Is(err, context.Canceled):
			err = b.editText(dctx, chatID, processing.MessageID, msgStrategyCancelled)
		case errors.Is(err, context.DeadlineExceeded):
			b.activity.Record(activity.KindError, "refine")
			err = b.editText(dctx, chatID, processing.MessageID, msgTimeout)
		default:
			b.activity.Record(activity.KindError, "refine")
			log.Error(dctx, "strategy refinement failed", log.Cause(err))
			err = b.editText(dctx, chatID, processing.MessageID, fmt.Sprintf(msgRefineFailed, failureReason(err)))
		}

		if err != nil {
			log.Debug(dctx, "edit failed", log.Cause(err))
		}

		return
	}

	sess.with(func(s *session) {
		s.strategy = refined
		s.step = stepIdle
	})

	b.activity.Record(activity.KindGeneration, "refine")

	if editErr := b.editText(ctx, chatID, processing.MessageID, msgDone); editErr != nil {
		log.Debug(ctx, "edit failed", log.Cause(editErr))
	}

	report := renderStrategyReport(data.analysis, refined, data)

	if sendErr := b.sendLong(ctx, chatID, report, kbStrategyActions()); sendErr != nil {
		log.Error(ctx, "refined strategy delivery failed", log.Cause(sendErr))
		b.reply(ctx, chatID, msgStrategySendFailed)
	}
}

// shapeStrategy re-extracts the structured sections from refined text.
func (b *Bot) shapeStrategy(text string) *strategist.Strategy {
	return &strategist.Strategy{
		Text:      text,
		Steps:     extract.Steps(text),
		Timeline:  b.extractor.Timeline(text),
		Resources: b.extractor.Resources(text),
	}
}

// startSloganGeneration produces campaign slogans themed on the stored
// strategy.
func (b *Bot) startSloganGeneration(ctx context.Context, chatID int64) {
	sess := b.session(chatID)
	data := sess.data()

	if data.strategy == nil {
		b.reply(ctx, chatID, msgNoStrategyForSlogans)

		return
	}

	taskCtx, stop, ok := sess.beginTask(ctx, b.config.GenerationTimeout)
	if !ok {
		b.reply(ctx, chatID, msgBusy)

		return
	}

	processing, err := b.deliver(ctx, b.message(chatID, msgProcessing))
	if err != nil {
		stop()
		log.Warn(ctx, "processing notice failed", log.Cause(err))

		return
	}

	indicator := progress.NewIndicator(msgProcessing, func(ictx context.Context, text string) error {
		return b.editText(ictx, chatID, processing.MessageID, text)
	})

	theme := fmt.Sprintf(sloganTheme, data.pointB, prompt.Truncate(data.strategy.Text, sloganContextChars))

	slogans, err := progress.Run(taskCtx, indicator, func(tctx context.Context) ([]string, error) {
		return b.strategist.GenerateSlogans(tctx, theme, data.audience, strategist.DefaultSloganCount)
	})

	stop()

	if err != nil {
		dctx, cancel := xcontext.DetachWithTimeout(ctx, detachGrace)
		defer cancel()

		switch {
		case errors.Is(err, context.Canceled):
			err = b.editText(dctx, chatID, processing.MessageID, msgSlogansCancelled)
		case errors.Is(err, context.DeadlineExceeded):
			b.activity.Record(activity.KindError, "slogans")
			err = b.editText(dctx, chatID, processing.MessageID, msgTimeout)
		default:
			b.activity.Record(activity.KindError, "slogans")
			log.Error(dctx, "slogan generation failed", log.Cause(err))
			err = b.editText(dctx, chatID, processing.MessageID, fmt.Sprintf(msgSlogansFailed, failureReason(err)))
		}

		if err != nil {
			log.Debug(dctx, "edit failed", log.Cause(err))
		}

		return
	}

	b.activity.Record(activity.KindGeneration, "slogans")

	if editErr := b.editText(ctx, chatID, processing.MessageID, msgDone); editErr != nil {
		log.Debug(ctx, "edit failed", log.Cause(editErr))
	}

	b.replyKB(ctx, chatID, renderSlogans(slogans), kbSloganActions())
}

// suggestSearchQuery asks the strategist for a search query matching the
// strategy and offers it to the user. Formulation failures fall back to a
// template built from the goal and the audience.
func (b *Bot) suggestSearchQuery(ctx context.Context, chatID int64) {
	sess := b.session(chatID)
	data := sess.data()

	processing, err := b.deliver(ctx, b.message(chatID, msgProcessing))
	if err != nil {
		log.Warn(ctx, "processing notice failed", log.Cause(err))

		return
	}

	var strategyText string
	if data.strategy != nil {
		strategyText = data.strategy.Text
	}

	query, err := b.strategist.FormulateSearchQuery(ctx, strategyText, data.pointA, data.pointB, data.audience)
	if err != nil || strings.TrimSpace(query) == "" {
		log.Warn(ctx, "search query formulation failed", log.Cause(err))

		query = fmt.Sprintf(fallbackQuery, data.pointB, data.audience)
	}

	sess.with(func(s *session) { s.suggestedQuery = query })

	if editErr := b.editTextKB(ctx, chatID, processing.MessageID, fmt.Sprintf(msgSuggestedQuery, query), kbSearchDecision()); editErr != nil {
		log.Debug(ctx, "edit failed", log.Cause(editErr))
	}
}

// runSearch queries the news search and lists the top hits.
func (b *Bot) runSearch(ctx context.Context, chatID int64, query string) {
	processing, err := b.deliver(ctx, b.message(chatID, msgProcessing))
	if err != nil {
		log.Warn(ctx, "processing notice failed", log.Cause(err))

		return
	}

	results, err := b.web.SearchNews(ctx, query, maxSearchResults)
	if err != nil {
		b.activity.Record(activity.KindError, "search")
		log.Warn(ctx, "news search failed", log.String("query", query), log.Cause(err))

		if editErr := b.editText(ctx, chatID, processing.MessageID, msgSearchFailed); editErr != nil {
			log.Debug(ctx, "edit failed", log.Cause(editErr))
		}

		return
	}

	if len(results) == 0 {
		if editErr := b.editText(ctx, chatID, processing.MessageID, msgSearchEmpty); editErr != nil {
			log.Debug(ctx, "edit failed", log.Cause(editErr))
		}

		return
	}

	if editErr := b.editTextKB(ctx, chatID, processing.MessageID, renderSearchResults(query, results), kbSearchResults()); editErr != nil {
		log.Debug(ctx, "edit failed", log.Cause(editErr))
	}
}

// startArticleReview judges the submitted article against the chosen
// channel's audience and recent statistics. The channel digest and the
// article are fetched inside the task so the whole evaluation shares one
// timeout and one cancel.
func (b *Bot) startArticleReview(ctx context.Context, chatID int64, rawURL string) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		b.reply(ctx, chatID, msgBadURL)

		return
	}

	sess := b.session(chatID)

	var channelID int64

	sess.with(func(s *session) {
		channelID = s.reviewChannelID
		s.reviewChannelID = 0
		s.step = stepIdle
	})

	channel, err := b.store.Channel(ctx, channelID)
	if err != nil {
		b.reply(ctx, chatID, msgChannelNotFound)

		return
	}

	taskCtx, stop, ok := sess.beginTask(ctx, b.config.GenerationTimeout)
	if !ok {
		b.reply(ctx, chatID, msgBusy)

		return
	}

	processing, err := b.deliver(ctx, b.message(chatID, msgProcessing))
	if err != nil {
		stop()
		log.Warn(ctx, "processing notice failed", log.Cause(err))

		return
	}

	indicator := progress.NewIndicator(msgProcessing, func(ictx context.Context, text string) error {
		return b.editText(ictx, chatID, processing.MessageID, text)
	})

	review, err := progress.Run(taskCtx, indicator, func(tctx context.Context) (*strategist.ArticleReview, error) {
		article, err := b.web.FetchArticle(tctx, rawURL)
		if err != nil {
			return nil, err
		}

		digest, err := b.feed.Analyze(tctx, channel.Username, tgfeed.DefaultLookbackDays)
		if err != nil {
			return nil, err
		}

		summary := prompt.ChannelSummary{
			Username: channel.Username,
			Title:    cmp.Or(digest.Title, channel.Title),
			Messages: digest.MessageCount,
			AvgViews: int(digest.AvgViews),
		}

		return b.strategist.AnalyzeChannelArticle(tctx, prompt.ArticleContext{
			Title:   cmp.Or(article.Title, articleUntitled),
			Content: article.Content,
		}, summary)
	})

	stop()

	if err != nil {
		dctx, cancel := xcontext.DetachWithTimeout(ctx, detachGrace)
		defer cancel()

		switch {
		case errors.Is(err, context.Canceled):
			err = b.editText(dctx, chatID, processing.MessageID, msgReviewCancelled)
		case errors.Is(err, context.DeadlineExceeded):
			b.activity.Record(activity.KindError, "review")
			err = b.editText(dctx, chatID, processing.MessageID, msgTimeout)
		default:
			b.activity.Record(activity.KindError, "review")
			log.Error(dctx, "article review failed", log.String("url", rawURL), log.Cause(err))
			err = b.editText(dctx, chatID, processing.MessageID, fmt.Sprintf(msgReviewFailed, failureReason(err)))
		}

		if err != nil {
			log.Debug(dctx, "edit failed", log.Cause(err))
		}

		return
	}

	b.activity.Record(activity.KindAnalysis, channel.Username)

	if editErr := b.editText(ctx, chatID, processing.MessageID, msgDone); editErr != nil {
		log.Debug(ctx, "edit failed", log.Cause(editErr))
	}

	report := fmt.Sprintf(reviewHeader, channel.Title) + review.Text

	if sendErr := b.sendLong(ctx, chatID, report, kbBackToChannel(channelID)); sendErr != nil {
		log.Error(ctx, "article review delivery failed", log.Cause(sendErr))
		b.reply(ctx, chatID, msgError)
	}
}

// runChannelAnalysis serves the standalone /analyze flow.
func (b *Bot) runChannelAnalysis(ctx context.Context, chatID int64, channelID int64, days int) {
	channel, err := b.store.Channel(ctx, channelID)
	if err != nil {
		b.reply(ctx, chatID, msgChannelNotFound)

		return
	}

	processing, err := b.deliver(ctx, b.message(chatID, msgProcessing))
	if err != nil {
		log.Warn(ctx, "processing notice failed", log.Cause(err))

		return
	}

	digest, err := b.feed.Analyze(ctx, channel.Username, days)
	if err != nil {
		b.activity.Record(activity.KindError, "analysis")
		log.Warn(ctx, "channel analysis failed", log.String("channel", channel.Username), log.Cause(err))

		if editErr := b.editText(ctx, chatID, processing.MessageID, msgAnalyzeFailed); editErr != nil {
			log.Debug(ctx, "edit failed", log.Cause(editErr))
		}

		return
	}

	b.activity.Record(activity.KindAnalysis, channel.Username)

	title := digest.Title
	if title == "" {
		title = channel.Title
	}

	if editErr := b.editTextKB(ctx, chatID, processing.MessageID, renderDigest(title, digest), kbBackToChannel(channelID)); editErr != nil {
		log.Debug(ctx, "edit failed", log.Cause(editErr))
	}
}
