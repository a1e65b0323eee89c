// Package strategist is the task layer of the assistant. It assembles the
// prompt for a campaign task, runs it through the generation pipeline and
// shapes the raw model text into structured results the dialogue layer can
// render.
package strategist

import (
	"context"
	"fmt"
	"time"

	"github.com/polittech/stratagem/internal/extract"
	"github.com/polittech/stratagem/internal/llm"
	"github.com/polittech/stratagem/internal/llm/pipeline"
	"github.com/polittech/stratagem/internal/log"
	"github.com/polittech/stratagem/internal/prompt"
)

// DefaultSloganCount is used when the caller asks for no particular number.
const DefaultSloganCount = 5

// articleReviewTimeout caps each backend attempt for article reviews. The
// prompt carries the full article text, so slow providers hit this before
// they hit the chat-level deadline and the pipeline moves on to the next one.
const articleReviewTimeout = 2 * time.Minute

// Generator is the generation entry point the strategist drives. Satisfied
// by *pipeline.Pipeline.
type Generator interface {
	Generate(ctx context.Context, req *llm.Request, opts ...pipeline.Option) (*llm.Response, error)
}

// SituationAnalysis is a free-form analysis plus the keyword-classified
// lines pulled out of it.
type SituationAnalysis struct {
	Analysis      string   `json:"analysis"`
	KeyFactors    []string `json:"key_factors"`
	Risks         []string `json:"risks"`
	Opportunities []string `json:"opportunities"`
}

// Strategy is a generated campaign strategy with its extracted structure.
type Strategy struct {
	Text      string           `json:"strategy"`
	Steps     []string         `json:"steps"`
	Timeline  []extract.Period `json:"timeline"`
	Resources []string         `json:"resources"`
}

// ArticleReview is an article judged against a channel's topic and audience.
// Text is the full review; the remaining fields are best-effort sections of
// it.
type ArticleReview struct {
	Text        string   `json:"text"`
	Relevance   string   `json:"relevance"`
	Angle       string   `json:"angle"`
	Risks       []string `json:"risks"`
	Suggestions []string `json:"suggestions"`
}

type Strategist struct {
	generator Generator
	extractor *extract.Extractor
}

func New(generator Generator, extractor *extract.Extractor) *Strategist {
	return &Strategist{
		generator: generator,
		extractor: extractor,
	}
}

// AnalyzeSituation runs a free-form situation analysis.
func (s *Strategist) AnalyzeSituation(ctx context.Context, situation string) (*SituationAnalysis, error) {
	text, err := s.run(ctx, prompt.SituationAnalysis(situation))
	if err != nil {
		return nil, fmt.Errorf("analyze situation: %w", err)
	}

	return &SituationAnalysis{
		Analysis:      text,
		KeyFactors:    s.extractor.KeyFactors(text),
		Risks:         s.extractor.Risks(text),
		Opportunities: s.extractor.Opportunities(text),
	}, nil
}

// GenerateStrategy produces a campaign strategy for in, enriched by whatever
// supplementary context the input carries.
func (s *Strategist) GenerateStrategy(ctx context.Context, in prompt.StrategyInput) (*Strategy, error) {
	text, err := s.run(ctx, prompt.Strategy(in))
	if err != nil {
		return nil, fmt.Errorf("generate strategy: %w", err)
	}

	return &Strategy{
		Text:      text,
		Steps:     extract.Steps(text),
		Timeline:  s.extractor.Timeline(text),
		Resources: s.extractor.Resources(text),
	}, nil
}

// GenerateSlogans produces count slogans on theme for the given audience.
func (s *Strategist) GenerateSlogans(ctx context.Context, theme, audience string, count int) ([]string, error) {
	if count <= 0 {
		count = DefaultSloganCount
	}

	text, err := s.run(ctx, prompt.Slogans(theme, audience, count))
	if err != nil {
		return nil, fmt.Errorf("generate slogans: %w", err)
	}

	return extract.Slogans(text), nil
}

// RefineStrategy reworks strategy according to the user's feedback and
// returns the new text.
func (s *Strategist) RefineStrategy(ctx context.Context, strategy, feedback string) (string, error) {
	text, err := s.run(ctx, prompt.Refine(strategy, feedback))
	if err != nil {
		return "", fmt.Errorf("refine strategy: %w", err)
	}

	return text, nil
}

// FormulateSearchQuery distills a strategy into a short news search query.
// The query is best-effort: generation failures and unusable output degrade
// to a "<goal> для <audience>" fallback instead of an error, so a search can
// always proceed. Cancellation still propagates.
func (s *Strategist) FormulateSearchQuery(ctx context.Context, strategy, pointA, pointB, audience string) (string, error) {
	fallback := fmt.Sprintf("%s для %s", pointB, audience)

	text, err := s.run(ctx, prompt.SearchQuery(strategy, pointA, pointB, audience))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		log.Warn(ctx, "search query generation failed, using fallback", log.Cause(err))

		return fallback, nil
	}

	if query := extract.CleanSearchQuery(text); query != "" {
		return query, nil
	}

	return fallback, nil
}

// AnalyzeChannelArticle judges an article against a channel's audience and
// statistics.
func (s *Strategist) AnalyzeChannelArticle(ctx context.Context, article prompt.ArticleContext, channel prompt.ChannelSummary) (*ArticleReview, error) {
	text, err := s.run(ctx, prompt.ArticleReview(article, channel), pipeline.WithTimeout(articleReviewTimeout))
	if err != nil {
		return nil, fmt.Errorf("analyze article: %w", err)
	}

	return s.shapeReview(text), nil
}

// shapeReview maps the model's numbered review onto the structured form.
// The review prompt asks for five sections: topical fit, audience interest,
// usage recommendations, key points, publication risks. Keyword-matched risk
// lines win over the fifth section when both are present.
func (s *Strategist) shapeReview(text string) *ArticleReview {
	review := &ArticleReview{Text: text}

	sections := extract.Steps(text)
	if len(sections) > 0 {
		review.Relevance = sections[0]
	}

	if len(sections) > 1 {
		review.Angle = sections[1]
	}

	if len(sections) > 2 {
		review.Suggestions = sections[2:min(len(sections), 4)]
	}

	review.Risks = s.extractor.Risks(text)
	if len(review.Risks) == 0 && len(sections) > 4 {
		review.Risks = sections[4:5]
	}

	return review
}

func (s *Strategist) run(ctx context.Context, req *llm.Request, opts ...pipeline.Option) (string, error) {
	task := req.Metadata[prompt.MetadataTask]

	resp, err := s.generator.Generate(ctx, req, opts...)
	if err != nil {
		return "", err
	}

	text := resp.Text()

	log.Debug(ctx, "task finished",
		log.String("task", task),
		log.Int("response_chars", len(text)))

	return text, nil
}
