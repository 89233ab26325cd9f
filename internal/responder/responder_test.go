// ABOUTME: Tests for the tiered resolver.
// ABOUTME: Covers tier ordering, eligibility gate, cache write-back, FAQ similarity, and stats.

package responder

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vic767343/foodbot-gateway/internal/cache"
)

func newTestResponder(t *testing.T) *Responder {
	t.Helper()
	respCache := cache.New("response", 10*time.Minute)
	t.Cleanup(respCache.Close)

	r, err := New(DefaultTables(), respCache)
	require.NoError(t, err)
	return r
}

func TestResolve_ExactMatchGreeting(t *testing.T) {
	r := newTestResponder(t)

	resp, ok := r.Resolve("U1", "你好")
	require.True(t, ok)
	assert.Equal(t, "您好！我是營養助手，可以幫您分析食物和管理卡路里。", resp.Text)
	assert.Equal(t, SourceExact, resp.Source)
	assert.Equal(t, IntentGreeting, resp.Intent)
}

func TestResolve_ExactWinsOverPattern(t *testing.T) {
	r := newTestResponder(t)

	// "你好" matches both the exact table and the greeting pattern;
	// the exact tier must win.
	resp, ok := r.Resolve("U1", "你好")
	require.True(t, ok)
	assert.Equal(t, SourceExact, resp.Source)
}

func TestResolve_TrailingPunctuationTolerated(t *testing.T) {
	r := newTestResponder(t)

	for _, text := range []string{"你好！", "你好!", "Hello", "HELLO"} {
		resp, ok := r.Resolve("U1", text)
		require.True(t, ok, "input %q", text)
		assert.Equal(t, SourceExact, resp.Source, "input %q", text)
	}
}

func TestResolve_PatternMatch(t *testing.T) {
	r := newTestResponder(t)

	// Not in the exact table, but the greeting pattern matches.
	resp, ok := r.Resolve("U1", "哈囉哈囉")
	require.True(t, ok)
	assert.Equal(t, SourcePattern, resp.Source)
	assert.Equal(t, "您好！我是您的營養助手，有什麼可以幫助您的嗎？", resp.Text)
}

func TestResolve_FAQSimilarity(t *testing.T) {
	r := newTestResponder(t)

	resp, ok := r.Resolve("U1", "如何計算BMI")
	require.True(t, ok)
	assert.Equal(t, SourceFAQ, resp.Source)
	assert.Contains(t, resp.Text, "BMI = 體重(kg) / 身高(m)²")
}

func TestResolve_CacheHitOnRepeat(t *testing.T) {
	r := newTestResponder(t)

	first, ok := r.Resolve("U1", "你好")
	require.True(t, ok)
	require.Equal(t, SourceExact, first.Source)

	second, ok := r.Resolve("U1", "你好")
	require.True(t, ok)
	assert.Equal(t, SourceCache, second.Source, "identical repeat must be served from cache")
	assert.Equal(t, first.Text, second.Text)
}

func TestResolve_CacheIsPerUser(t *testing.T) {
	r := newTestResponder(t)

	_, ok := r.Resolve("U1", "你好")
	require.True(t, ok)

	resp, ok := r.Resolve("U2", "你好")
	require.True(t, ok)
	assert.Equal(t, SourceExact, resp.Source, "another user's repeat is not a cache hit")
}

func TestResolve_SubstantiveQueryMisses(t *testing.T) {
	r := newTestResponder(t)

	// Longer than the short-message gate and carries no small-talk keyword:
	// must always go to the slow path.
	_, ok := r.Resolve("U1", "我今天中午吃了一個雞腿便當和一杯珍珠奶茶")
	assert.False(t, ok)
}

func TestResolve_ShortUnknownMessageMisses(t *testing.T) {
	r := newTestResponder(t)

	// Eligible (short) but matches no tier.
	_, ok := r.Resolve("U1", "嗯")
	assert.False(t, ok)
}

func TestClassifyIntent(t *testing.T) {
	r := newTestResponder(t)

	tests := []struct {
		text   string
		intent string
	}{
		{"你好", IntentGreeting},
		{"謝謝你的幫忙", IntentThanks},
		{"再見囉", IntentGoodbye},
		{"怎麼用這個", IntentHelp},
		{"幫我算BMI", IntentBMI},
		{"今天攝取多少卡路里", IntentCalories},
		{"我要記錄午餐", IntentFoodRecord},
		{"完全無關的句子呀", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.intent, r.ClassifyIntent(tt.text), "text %q", tt.text)
	}
}

func TestResolve_Stats(t *testing.T) {
	r := newTestResponder(t)

	r.Resolve("U1", "你好")                    // exact
	r.Resolve("U1", "你好")                    // cache
	r.Resolve("U1", "哈囉哈囉")                  // pattern
	r.Resolve("U1", "如何計算BMI")               // faq
	r.Resolve("U1", "我今天中午吃了一個雞腿便當和一杯珍珠奶茶") // miss

	st := r.Stats()
	assert.Equal(t, int64(5), st.TotalRequests)
	assert.Equal(t, int64(4), st.QuickResponses)
	assert.Equal(t, int64(1), st.ExactHits)
	assert.Equal(t, int64(1), st.CacheHits)
	assert.Equal(t, int64(1), st.PatternHits)
	assert.Equal(t, int64(1), st.FAQHits)
	assert.InDelta(t, 0.8, st.QuickResponseRate, 1e-9)
}

func TestJaccard(t *testing.T) {
	assert.Equal(t, 1.0, jaccard("a b c", "c b a"))
	assert.Equal(t, 0.4, jaccard("a b c", "a b d e"))
	assert.Equal(t, 0.0, jaccard("", "a"))
	assert.Equal(t, 0.0, jaccard("a", ""))
}

func TestNew_BadPattern(t *testing.T) {
	respCache := cache.New("response", time.Minute)
	defer respCache.Close()

	tables := DefaultTables()
	tables.Patterns = append(tables.Patterns, PatternEntry{Match: "([unclosed", Response: "x"})

	_, err := New(tables, respCache)
	require.Error(t, err)
}

func TestLoadTables_OverridesAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.toml")
	content := `
[exact]
"ping" = "pong"

[[faq]]
question = "上班時間"
answer = "每天 9:00-18:00"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	tables, err := LoadTables(path)
	require.NoError(t, err)

	assert.Equal(t, "pong", tables.Exact["ping"])
	require.Len(t, tables.FAQ, 1)
	assert.Equal(t, "上班時間", tables.FAQ[0].Question)

	// Sections absent from the file keep the built-in defaults.
	assert.NotEmpty(t, tables.Patterns)
	assert.NotEmpty(t, tables.Intents)
}

func TestLoadTables_MissingFile(t *testing.T) {
	_, err := LoadTables(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}
