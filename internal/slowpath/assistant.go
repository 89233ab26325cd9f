// ABOUTME: Minimal slow-path assistant: food logging and calorie-sum answers.
// ABOUTME: Every task runs under the worker pool's concurrency bound and timeout.

package slowpath

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vic767343/foodbot-gateway/internal/store"
	"github.com/vic767343/foodbot-gateway/internal/worker"
)

// apologyText is the fallback reply when a slow-path task fails or times out.
const apologyText = "系統暫時無法處理您的請求，請稍後再試"

// imageAckText acknowledges an image while analysis runs out of band.
const imageAckText = "已收到您的食物照片，完成營養分析後會再通知您。"

// calorieMention extracts an explicit calorie figure from a food description,
// e.g. "雞腿便當 850大卡".
var calorieMention = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:大卡|卡路里|kcal)`)

// Replier dispatches reply messages against a reply token.
type Replier interface {
	SendReply(ctx context.Context, replyToken string, texts ...string) error
}

// Assistant is the slow-path message handler.
type Assistant struct {
	workers *worker.Pool
	store   *store.Store
	replier Replier
	logger  *slog.Logger
}

// New creates the assistant. The worker pool, store, and replier are shared
// with the rest of the gateway and not owned here.
func New(workers *worker.Pool, st *store.Store, replier Replier) *Assistant {
	return &Assistant{
		workers: workers,
		store:   st,
		replier: replier,
		logger:  slog.Default().With("component", "slowpath"),
	}
}

// HandleText processes a substantive text message: calorie questions are
// answered from the store, anything else is logged as a food record. A
// failed or timed-out task sends the apology reply before the error is
// returned.
func (a *Assistant) HandleText(ctx context.Context, userID, replyToken, text string) error {
	result := a.workers.Do(ctx, "text", func(taskCtx context.Context) error {
		if isCalorieQuery(text) {
			return a.answerCalorieQuery(taskCtx, userID, replyToken)
		}
		return a.recordFood(taskCtx, userID, replyToken, text)
	})
	return a.finish(ctx, replyToken, result)
}

// HandleImage acknowledges a food photo. Vision analysis lives outside the
// gateway; here the image only gets a receipt so the reply token is not
// wasted.
func (a *Assistant) HandleImage(ctx context.Context, userID, replyToken, imageURL string) error {
	result := a.workers.Do(ctx, "image", func(taskCtx context.Context) error {
		a.logger.Info("image received", "user", userID, "url", imageURL)
		return a.replier.SendReply(taskCtx, replyToken, imageAckText)
	})
	return a.finish(ctx, replyToken, result)
}

// finish maps a worker result to the caller's error, sending the apology on
// any non-ok outcome. The apology is best effort: the token may already be
// spent.
func (a *Assistant) finish(ctx context.Context, replyToken string, result worker.Result) error {
	if result.Status == worker.StatusOK {
		return nil
	}
	if err := a.replier.SendReply(ctx, replyToken, apologyText); err != nil {
		a.logger.Warn("apology reply failed", "error", err)
	}
	return result.Err
}

func (a *Assistant) answerCalorieQuery(ctx context.Context, userID, replyToken string) error {
	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	total, err := a.store.CaloriesSince(ctx, userID, startOfDay)
	if err != nil {
		return fmt.Errorf("summing calories: %w", err)
	}
	reply := fmt.Sprintf("您今天已攝取約 %.0f 大卡。", total)
	return a.replier.SendReply(ctx, replyToken, reply)
}

func (a *Assistant) recordFood(ctx context.Context, userID, replyToken, text string) error {
	rec := &store.FoodRecord{
		UserID:     userID,
		FoodName:   text,
		Calories:   parseCalories(text),
		RecordedAt: time.Now(),
	}
	if err := a.store.SaveFoodRecord(ctx, rec); err != nil {
		return fmt.Errorf("saving food record: %w", err)
	}

	reply := "已記錄您的飲食內容。"
	if rec.Calories > 0 {
		reply = fmt.Sprintf("已記錄您的飲食內容，約 %.0f 大卡。", rec.Calories)
	}
	return a.replier.SendReply(ctx, replyToken, reply)
}

// isCalorieQuery detects "how much have I eaten" style questions.
func isCalorieQuery(text string) bool {
	if !strings.Contains(text, "熱量") && !strings.Contains(text, "卡路里") {
		return false
	}
	return strings.Contains(text, "多少") || strings.Contains(text, "查詢") || strings.Contains(text, "統計")
}

// parseCalories pulls an explicit calorie figure out of the text, or 0.
func parseCalories(text string) float64 {
	m := calorieMention.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}
