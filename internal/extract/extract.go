// Package extract pulls structured fragments out of free-form model output.
//
// The heuristics are line-oriented and degrade gracefully: model text that
// matches nothing yields empty results, never an error. Keyword tables live
// in a Lexicon value so the vocabulary can be swapped without touching the
// scanning logic.
package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
)

// maxSloganChars drops lines too long to be a usable slogan.
const maxSloganChars = 100

// maxQueryChars caps a cleaned search query.
const maxQueryChars = 150

// sloganMarkers is the set of list-marker runes stripped from the front of a
// slogan candidate.
const sloganMarkers = "0123456789.- *•>"

// Lexicon is the keyword vocabulary the category scanners match against.
// Matching is case-insensitive substring containment, so stems double as
// inflected-form catch-alls.
type Lexicon struct {
	Factors       []string
	Risks         []string
	Opportunities []string
	Resources     []string
	Timeline      []string
}

// DefaultLexicon returns the Russian political-strategy vocabulary.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Factors:       []string{"фактор", "ключевой", "важный", "основной"},
		Risks:         []string{"риск", "угроза", "опасность", "проблема"},
		Opportunities: []string{"возможность", "перспектива", "потенциал"},
		Resources:     []string{"ресурс", "требуется", "необходимо", "нужно"},
		Timeline:      []string{"этап", "период", "фаза", "месяц", "неделя"},
	}
}

// Period is one segment of an extracted timeline: a heading line and the
// action lines that followed it.
type Period struct {
	Period  string   `json:"period"`
	Actions []string `json:"actions"`
}

// Extractor scans model output with a fixed lexicon.
type Extractor struct {
	lexicon Lexicon
}

func New(lexicon Lexicon) *Extractor {
	return &Extractor{lexicon: lexicon}
}

// KeyFactors returns the lines mentioning a factor keyword.
func (e *Extractor) KeyFactors(text string) []string {
	return matchLines(text, e.lexicon.Factors)
}

// Risks returns the lines mentioning a risk keyword.
func (e *Extractor) Risks(text string) []string {
	return matchLines(text, e.lexicon.Risks)
}

// Opportunities returns the lines mentioning an opportunity keyword.
func (e *Extractor) Opportunities(text string) []string {
	return matchLines(text, e.lexicon.Opportunities)
}

// Resources returns the lines mentioning a resource keyword.
func (e *Extractor) Resources(text string) []string {
	return matchLines(text, e.lexicon.Resources)
}

// Timeline splits text into periods. A line containing a timeline keyword
// opens a new period; subsequent non-empty lines become its actions. Lines
// before the first keyword line belong to no period and are dropped.
func (e *Extractor) Timeline(text string) []Period {
	var timeline []Period

	var current *Period

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if containsAny(strings.ToLower(trimmed), e.lexicon.Timeline) {
			if current != nil {
				timeline = append(timeline, *current)
			}

			current = &Period{Period: trimmed}

			continue
		}

		if current != nil && trimmed != "" {
			current.Actions = append(current.Actions, trimmed)
		}
	}

	if current != nil {
		timeline = append(timeline, *current)
	}

	return timeline
}

// Steps splits text into numbered steps. A line starting with a digit 1-9
// opens a new step; other non-empty lines are joined onto the current one
// with a space. Text before the first numbered line is dropped.
func Steps(text string) []string {
	var steps []string

	current := ""

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if leadsWithStepNumber(trimmed) {
			if current != "" {
				steps = append(steps, current)
			}

			current = trimmed

			continue
		}

		if current != "" && trimmed != "" {
			current += " " + trimmed
		}
	}

	if current != "" {
		steps = append(steps, current)
	}

	return steps
}

// Slogans treats every line of text as a slogan candidate. Leading list
// markers are stripped; headers and lines of 100 characters or more are
// dropped. When a non-empty text yields no candidates the whole trimmed text
// is returned as the single slogan, so the caller always gets something to
// show.
func Slogans(text string) []string {
	var slogans []string

	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		trimmed := strings.TrimSpace(line)

		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if utf8.RuneCountInString(trimmed) >= maxSloganChars {
			continue
		}

		clean := strings.TrimSpace(strings.TrimLeft(trimmed, sloganMarkers))
		if clean != "" {
			slogans = append(slogans, clean)
		}
	}

	if len(slogans) == 0 {
		if whole := strings.TrimSpace(text); whole != "" {
			return []string{whole}
		}

		return nil
	}

	return slogans
}

// CleanSearchQuery normalizes raw model output into a single-line query:
// wrapping quotes stripped, whitespace runs collapsed, capped at 150
// characters. An unusable output cleans to the empty string.
func CleanSearchQuery(raw string) string {
	query := strings.Trim(raw, ` "'`+"\n")
	query = strings.Join(strings.Fields(query), " ")

	if utf8.RuneCountInString(query) > maxQueryChars {
		query = strings.TrimSpace(lo.Substring(query, 0, maxQueryChars))
	}

	return query
}

func matchLines(text string, keywords []string) []string {
	var out []string

	for _, line := range strings.Split(text, "\n") {
		if containsAny(strings.ToLower(line), keywords) {
			out = append(out, strings.TrimSpace(line))
		}
	}

	return out
}

func containsAny(line string, keywords []string) bool {
	return lo.SomeBy(keywords, func(keyword string) bool {
		return strings.Contains(line, keyword)
	})
}

func leadsWithStepNumber(line string) bool {
	if line == "" {
		return false
	}

	return line[0] >= '1' && line[0] <= '9'
}
