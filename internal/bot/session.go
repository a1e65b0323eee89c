package bot

import (
	"context"
	"sync"
	"time"

	"github.com/polittech/stratagem/internal/prompt"
	"github.com/polittech/stratagem/internal/strategist"
)

// step is the dialogue position of one chat: which free-form input the bot
// is waiting for. Button presses are routed by callback data and do not need
// a step.
type step int

const (
	stepIdle step = iota
	stepPointA
	stepPointB
	stepTimeframe
	stepAudience
	stepKeyword
	stepChannelUsername
	stepFolderName
	stepArticleURL
	stepSearchQuery
	stepRefineFeedback
	stepReviewArticleURL
)

// session is one chat's dialogue state. Handlers run on separate goroutines
// per update, so every field access goes through the mutex; long tasks copy
// what they need out and never hold the lock while generating.
type session struct {
	mu sync.Mutex

	step       step
	inStrategy bool

	pointA    string
	pointB    string
	timeframe string
	audience  string

	folderID       int64
	channelToStrat bool

	channelID       int64
	channelUsername string
	channelTitle    string
	periodDays      int

	channelContent string

	// reviewChannelID is the channel an article is being judged against,
	// outside the strategy dialogue.
	reviewChannelID int64

	article    *prompt.ArticleContext
	articleURL string

	analysis       *strategist.SituationAnalysis
	strategy       *strategist.Strategy
	suggestedQuery string

	providers map[string]bool

	busy   bool
	cancel context.CancelFunc
}

// dialogueData is a consistent copy of the inputs a background task reads.
type dialogueData struct {
	pointA    string
	pointB    string
	timeframe string
	audience  string

	channelUsername string
	channelTitle    string
	periodDays      int
	channelContent  string

	article    *prompt.ArticleContext
	articleURL string

	analysis       *strategist.SituationAnalysis
	strategy       *strategist.Strategy
	suggestedQuery string
}

func (s *session) with(fn func(*session)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(s)
}

func (s *session) currentStep() step {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.step
}

func (s *session) setStep(st step) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.step = st
}

func (s *session) data() dialogueData {
	s.mu.Lock()
	defer s.mu.Unlock()

	return dialogueData{
		pointA:          s.pointA,
		pointB:          s.pointB,
		timeframe:       s.timeframe,
		audience:        s.audience,
		channelUsername: s.channelUsername,
		channelTitle:    s.channelTitle,
		periodDays:      s.periodDays,
		channelContent:  s.channelContent,
		article:         s.article,
		articleURL:      s.articleURL,
		analysis:        s.analysis,
		strategy:        s.strategy,
		suggestedQuery:  s.suggestedQuery,
	}
}

// reset clears the dialogue and cancels any running task. The task slot
// itself is released by the task's own stop function.
func (s *session) reset() {
	s.mu.Lock()
	cancel := s.cancel

	s.step = stepIdle
	s.inStrategy = false
	s.pointA, s.pointB, s.timeframe, s.audience = "", "", "", ""
	s.folderID = 0
	s.channelToStrat = false
	s.channelID = 0
	s.channelUsername, s.channelTitle = "", ""
	s.periodDays = 0
	s.channelContent = ""
	s.reviewChannelID = 0
	s.article = nil
	s.articleURL = ""
	s.analysis = nil
	s.strategy = nil
	s.suggestedQuery = ""
	s.providers = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// beginTask claims the chat's single background generation slot. ok is false
// while another task runs. The returned stop releases the slot and must be
// called exactly once.
func (s *session) beginTask(parent context.Context, timeout time.Duration) (context.Context, func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return nil, nil, false
	}

	ctx, cancel := context.WithTimeout(parent, timeout)
	s.busy = true
	s.cancel = cancel

	stop := func() {
		cancel()

		s.mu.Lock()
		s.busy = false
		s.cancel = nil
		s.mu.Unlock()
	}

	return ctx, stop, true
}

// cancelTask interrupts the running background task, if any.
func (s *session) cancelTask() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}
