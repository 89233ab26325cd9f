// ABOUTME: Static response tables (exact, pattern, FAQ, intent keywords) and TOML loading.
// ABOUTME: Built-in defaults are the nutrition assistant's stock answers; files may override them.

package responder

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// PatternEntry pairs a regular expression with its canned response. Entries
// are ordered; the first matching pattern wins.
type PatternEntry struct {
	Match    string `toml:"match"`
	Response string `toml:"response"`
}

// FAQEntry pairs a known question with its answer. Entries are ordered; the
// first sufficiently similar question wins.
type FAQEntry struct {
	Question string `toml:"question"`
	Answer   string `toml:"answer"`
}

// IntentEntry maps an intent name to its trigger keywords. Entries are
// ordered; classification returns the first intent with a keyword hit.
type IntentEntry struct {
	Intent   string   `toml:"intent"`
	Keywords []string `toml:"keywords"`
}

// Tables holds the static matcher configuration. Loaded once at startup and
// read-only at runtime.
type Tables struct {
	Exact    map[string]string `toml:"exact"`
	Patterns []PatternEntry    `toml:"pattern"`
	FAQ      []FAQEntry        `toml:"faq"`
	Intents  []IntentEntry     `toml:"intents"`
}

// DefaultTables returns the built-in nutrition-assistant tables.
func DefaultTables() *Tables {
	return &Tables{
		Exact: map[string]string{
			"你好":        "您好！我是營養助手，可以幫您分析食物和管理卡路里。",
			"謝謝":        "不客氣！有什麼需要幫助的嗎？",
			"再見":        "再見！祝您有美好的一天！",
			"hi":        "Hello! I'm your nutrition assistant.",
			"hello":     "Hello! How can I help you today?",
			"thank you": "You're welcome!",
			"thanks":    "You're welcome!",
			"bye":       "Goodbye! Have a great day!",
		},
		Patterns: []PatternEntry{
			{Match: `你好|哈囉|嗨|hi|hello`, Response: "您好！我是您的營養助手，有什麼可以幫助您的嗎？"},
			{Match: `謝謝|感謝|thank`, Response: "不客氣！很高興能幫助您 😊"},
			{Match: `再見|bye|掰掰`, Response: "再見！記得保持健康的飲食習慣哦 👋"},
			{Match: `幫助|help|怎麼用`, Response: "我可以幫您：\n📊 分析食物營養\n📈 追蹤卡路里\n📋 查詢飲食紀錄\n💪 計算BMI"},
		},
		FAQ: []FAQEntry{
			{
				Question: "如何計算BMI",
				Answer:   "BMI = 體重(kg) / 身高(m)²\n正常範圍：18.5-24.9\n請告訴我您的身高體重，我來幫您計算！",
			},
			{
				Question: "怎麼記錄食物",
				Answer:   "您可以:\n1️⃣ 拍照上傳食物圖片\n2️⃣ 直接輸入食物名稱\n3️⃣ 描述您吃了什麼\n我會自動分析營養成分！",
			},
			{
				Question: "卡路里查詢",
				Answer:   "請告訴我您想查詢的時間範圍:\n• 今天\n• 昨天\n• 這週\n• 本月\n或指定日期範圍",
			},
		},
		Intents: []IntentEntry{
			{Intent: IntentGreeting, Keywords: []string{"你好", "哈囉", "嗨", "hi", "hello"}},
			{Intent: IntentThanks, Keywords: []string{"謝謝", "感謝", "thank"}},
			{Intent: IntentGoodbye, Keywords: []string{"再見", "bye", "掰掰"}},
			{Intent: IntentHelp, Keywords: []string{"幫助", "help", "怎麼用"}},
			{Intent: IntentBMI, Keywords: []string{"BMI", "bmi", "身體質量", "體重指數"}},
			{Intent: IntentCalories, Keywords: []string{"卡路里", "熱量", "cal", "kcal"}},
			{Intent: IntentFoodRecord, Keywords: []string{"記錄", "紀錄", "輸入", "新增"}},
			{Intent: IntentSearch, Keywords: []string{"查詢", "搜尋", "找", "看"}},
		},
	}
}

// LoadTables reads tables from a TOML file. Sections absent from the file
// keep their built-in defaults, so a deployment can override just the FAQ.
func LoadTables(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tables file: %w", err)
	}

	var loaded Tables
	if err := toml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parsing tables file: %w", err)
	}

	tables := DefaultTables()
	if len(loaded.Exact) > 0 {
		tables.Exact = loaded.Exact
	}
	if len(loaded.Patterns) > 0 {
		tables.Patterns = loaded.Patterns
	}
	if len(loaded.FAQ) > 0 {
		tables.FAQ = loaded.FAQ
	}
	if len(loaded.Intents) > 0 {
		tables.Intents = loaded.Intents
	}
	return tables, nil
}
