// ABOUTME: Tiered fast-path resolver: cache, exact, pattern, FAQ similarity.
// ABOUTME: Short-circuits expensive processing for recognized small-talk inputs.

package responder

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/vic767343/foodbot-gateway/internal/cache"
)

// Source identifies which tier produced a response.
type Source string

const (
	SourceCache   Source = "cache"
	SourceExact   Source = "exact"
	SourcePattern Source = "pattern"
	SourceFAQ     Source = "faq"
)

// Intent names produced by the keyword classifier.
const (
	IntentGreeting   = "greeting"
	IntentThanks     = "thanks"
	IntentGoodbye    = "goodbye"
	IntentHelp       = "help"
	IntentBMI        = "bmi"
	IntentCalories   = "calories"
	IntentFoodRecord = "food_record"
	IntentSearch     = "search"
)

// quickIntents are the intents eligible for a fast answer regardless of
// message length. Everything else goes to the slow path.
var quickIntents = map[string]struct{}{
	IntentGreeting: {},
	IntentThanks:   {},
	IntentGoodbye:  {},
	IntentHelp:     {},
}

// shortMessageRunes is the length at or under which a message is always
// eligible for the fast path.
const shortMessageRunes = 10

// Response is a resolved fast answer.
type Response struct {
	Text    string
	Intent  string
	Source  Source
	Elapsed time.Duration
}

// Stats is a snapshot of resolver activity. Counters are monotonic.
type Stats struct {
	TotalRequests     int64   `json:"total_requests"`
	QuickResponses    int64   `json:"quick_responses"`
	QuickResponseRate float64 `json:"quick_response_rate"`
	ExactHits         int64   `json:"exact_hits"`
	PatternHits       int64   `json:"pattern_hits"`
	FAQHits           int64   `json:"faq_hits"`
	CacheHits         int64   `json:"cache_hits"`
}

// compiledPattern is a pattern-table entry with its regexp compiled once at
// startup.
type compiledPattern struct {
	re       *regexp.Regexp
	response string
}

// Responder resolves free-text messages against the static tables, memoizing
// hits in the response cache.
type Responder struct {
	tables   *Tables
	patterns []compiledPattern
	cache    *cache.Cache
	logger   *slog.Logger

	totalRequests atomic.Int64
	quickCount    atomic.Int64
	exactHits     atomic.Int64
	patternHits   atomic.Int64
	faqHits       atomic.Int64
	cacheHits     atomic.Int64
}

// New creates a Responder over the given tables, compiling every pattern
// case-insensitively. The response cache is injected so its lifetime is
// owned by the caller.
func New(tables *Tables, responseCache *cache.Cache) (*Responder, error) {
	if tables == nil {
		tables = DefaultTables()
	}

	patterns := make([]compiledPattern, 0, len(tables.Patterns))
	for _, entry := range tables.Patterns {
		re, err := regexp.Compile("(?i)" + entry.Match)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern %q: %w", entry.Match, err)
		}
		patterns = append(patterns, compiledPattern{re: re, response: entry.Response})
	}

	return &Responder{
		tables:   tables,
		patterns: patterns,
		cache:    responseCache,
		logger:   slog.Default().With("component", "responder"),
	}, nil
}

// ClassifyIntent returns the first intent whose keywords appear in the
// message, or "" when none match.
func (r *Responder) ClassifyIntent(text string) string {
	normalized := strings.ToLower(text)
	for _, entry := range r.tables.Intents {
		for _, kw := range entry.Keywords {
			if strings.Contains(normalized, strings.ToLower(kw)) {
				return entry.Intent
			}
		}
	}
	return ""
}

// eligible reports whether the message may be answered on the fast path:
// short messages, or messages carrying a small-talk intent keyword.
// Substantive queries always miss so the slow path handles them.
func (r *Responder) eligible(text string) bool {
	if utf8.RuneCountInString(strings.TrimSpace(text)) <= shortMessageRunes {
		return true
	}
	_, ok := quickIntents[r.ClassifyIntent(text)]
	return ok
}

// Resolve attempts a fast answer for a user's message. It returns ok=false
// on a miss, in which case the caller proceeds to the slow path.
func (r *Responder) Resolve(userID, text string) (*Response, bool) {
	start := time.Now()
	r.totalRequests.Add(1)

	if !r.eligible(text) {
		return nil, false
	}

	cacheKey := "response:" + userID + ":" + text
	if cached, ok := r.cache.Get(cacheKey); ok {
		if answer, isString := cached.(string); isString {
			r.cacheHits.Add(1)
			r.quickCount.Add(1)
			return r.respond(answer, text, SourceCache, start), true
		}
	}

	normalized := strings.ToLower(strings.TrimSpace(text))

	for key, answer := range r.tables.Exact {
		lowered := strings.ToLower(key)
		if normalized == lowered || normalized == lowered+"！" || normalized == lowered+"!" {
			r.exactHits.Add(1)
			r.quickCount.Add(1)
			r.cache.Set(cacheKey, answer)
			return r.respond(answer, text, SourceExact, start), true
		}
	}

	for _, p := range r.patterns {
		if p.re.MatchString(normalized) {
			r.patternHits.Add(1)
			r.quickCount.Add(1)
			r.cache.Set(cacheKey, p.response)
			return r.respond(p.response, text, SourcePattern, start), true
		}
	}

	for _, faq := range r.tables.FAQ {
		if jaccard(normalized, strings.ToLower(faq.Question)) > similarityThreshold {
			r.faqHits.Add(1)
			r.quickCount.Add(1)
			r.cache.Set(cacheKey, faq.Answer)
			return r.respond(faq.Answer, text, SourceFAQ, start), true
		}
	}

	return nil, false
}

func (r *Responder) respond(answer, text string, source Source, start time.Time) *Response {
	return &Response{
		Text:    answer,
		Intent:  r.ClassifyIntent(text),
		Source:  source,
		Elapsed: time.Since(start),
	}
}

// Stats returns a snapshot of resolver counters.
func (r *Responder) Stats() Stats {
	total := r.totalRequests.Load()
	quick := r.quickCount.Load()

	rate := 0.0
	if total > 0 {
		rate = float64(quick) / float64(total)
	}

	return Stats{
		TotalRequests:     total,
		QuickResponses:    quick,
		QuickResponseRate: rate,
		ExactHits:         r.exactHits.Load(),
		PatternHits:       r.patternHits.Load(),
		FAQHits:           r.faqHits.Load(),
		CacheHits:         r.cacheHits.Load(),
	}
}
