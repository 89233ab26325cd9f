// ABOUTME: Request coordinator running each event through dedup and the tiered responder.
// ABOUTME: Returns explicit per-event outcomes; inner failures never abort a batch.

package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vic767343/foodbot-gateway/internal/dedupe"
	"github.com/vic767343/foodbot-gateway/internal/line"
	"github.com/vic767343/foodbot-gateway/internal/responder"
)

// followGreeting is sent to new followers during onboarding.
const followGreeting = "你好~~我是熱量糾察隊～糾察你的熱量攝取,你可以提供你的食物照片,讓我幫你判斷你攝取了多少熱量,也可以查詢過往紀錄以及簡單的規劃為未來幾天的熱量攝取,現在請先提供你的性別,年齡(歲),身高(cm),體重(kg)一定要有單位,以及對什麼食物過敏"

// Status classifies the outcome of one event.
type Status string

const (
	// StatusReplied means the fast path produced and dispatched a reply.
	StatusReplied Status = "replied"

	// StatusSkippedDuplicate means the deduplicator rejected the event. Not
	// an error: the original delivery already consumed the reply token.
	StatusSkippedDuplicate Status = "skipped_duplicate"

	// StatusHandedOff means the event was forwarded to the slow path.
	StatusHandedOff Status = "handed_off"

	// StatusIgnored means the event kind carries nothing to act on.
	StatusIgnored Status = "ignored"

	// StatusFailed means processing the event failed; the failure is
	// recorded here and not re-raised.
	StatusFailed Status = "failed"
)

// Outcome is the per-event result a batch returns to its caller.
type Outcome struct {
	ID        string
	EventType string
	Status    Status
	Source    responder.Source // set when a fast answer was served
	Err       error
}

// Replier dispatches reply messages against a reply token.
type Replier interface {
	SendReply(ctx context.Context, replyToken string, texts ...string) error
}

// SlowPath handles everything the fast path could not answer.
type SlowPath interface {
	HandleText(ctx context.Context, userID, replyToken, text string) error
	HandleImage(ctx context.Context, userID, replyToken, imageURL string) error
}

// Coordinator is the webhook entry point for event batches.
type Coordinator struct {
	dedupe    *dedupe.Deduplicator
	responder *responder.Responder
	replier   Replier
	slow      SlowPath
	logger    *slog.Logger
}

// NewCoordinator wires the fast path. All collaborators are injected; the
// coordinator owns none of their lifetimes.
func NewCoordinator(d *dedupe.Deduplicator, r *responder.Responder, replier Replier, slow SlowPath) *Coordinator {
	return &Coordinator{
		dedupe:    d,
		responder: r,
		replier:   replier,
		slow:      slow,
		logger:    slog.Default().With("component", "coordinator"),
	}
}

// Process runs every event in the batch and returns one outcome per event,
// in order. It never returns an error: failures are captured per event.
func (c *Coordinator) Process(ctx context.Context, events []Event) []Outcome {
	outcomes := make([]Outcome, 0, len(events))
	for i := range events {
		outcomes = append(outcomes, c.processEvent(ctx, &events[i]))
	}
	return outcomes
}

// processEvent handles a single event. A panic anywhere inside is recovered
// into a failed outcome so one malformed event cannot take down the batch.
func (c *Coordinator) processEvent(ctx context.Context, ev *Event) (out Outcome) {
	out = Outcome{ID: uuid.NewString(), EventType: ev.Type}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic processing event", "type", ev.Type, "panic", r)
			out.Status = StatusFailed
			out.Err = fmt.Errorf("panic: %v", r)
		}
	}()

	if c.dedupe.IsDuplicate(ev.Fingerprint()) {
		c.logger.Warn("duplicate event skipped",
			"type", ev.Type, "user", ev.UserID(), "message_id", ev.MessageID())
		out.Status = StatusSkippedDuplicate
		return out
	}

	switch ev.Type {
	case EventTypeMessage:
		return c.processMessage(ctx, ev, out)

	case EventTypeFollow:
		c.logger.Info("new follower", "user", ev.UserID())
		if ev.ReplyToken == "" {
			out.Status = StatusIgnored
			return out
		}
		if err := c.replier.SendReply(ctx, ev.ReplyToken, followGreeting); err != nil {
			out.Status = StatusFailed
			out.Err = err
			return out
		}
		out.Status = StatusReplied
		return out

	case EventTypeUnfollow:
		c.logger.Info("user unfollowed", "user", ev.UserID())
		out.Status = StatusIgnored
		return out

	case EventTypeJoin:
		c.logger.Info("joined group", "group", ev.GroupID())
		out.Status = StatusIgnored
		return out

	default:
		c.logger.Info("unsupported event type", "type", ev.Type)
		out.Status = StatusIgnored
		return out
	}
}

func (c *Coordinator) processMessage(ctx context.Context, ev *Event, out Outcome) Outcome {
	if ev.Message == nil {
		out.Status = StatusIgnored
		return out
	}

	switch ev.Message.Type {
	case MessageTypeText:
		if resp, ok := c.resolve(ev); ok {
			if err := c.replier.SendReply(ctx, ev.ReplyToken, resp.Text); err != nil {
				if errors.Is(err, line.ErrReplyRejected) {
					// Token consumed elsewhere; nothing left to do.
					c.logger.Warn("fast-path reply rejected", "user", ev.UserID(), "error", err)
				}
				out.Status = StatusFailed
				out.Err = err
				return out
			}
			c.logger.Info("fast-path reply sent",
				"user", ev.UserID(), "source", resp.Source, "elapsed", resp.Elapsed)
			out.Status = StatusReplied
			out.Source = resp.Source
			return out
		}

		if err := c.slow.HandleText(ctx, ev.UserID(), ev.ReplyToken, ev.Text()); err != nil {
			out.Status = StatusFailed
			out.Err = err
			return out
		}
		out.Status = StatusHandedOff
		return out

	case MessageTypeImage:
		if err := c.slow.HandleImage(ctx, ev.UserID(), ev.ReplyToken, ev.ImageURL()); err != nil {
			out.Status = StatusFailed
			out.Err = err
			return out
		}
		out.Status = StatusHandedOff
		return out

	default:
		c.logger.Info("unsupported message type", "message_type", ev.Message.Type)
		out.Status = StatusIgnored
		return out
	}
}

// resolve shields the batch from resolver failures: any error is logged and
// treated as a miss so the slow path still gets the event.
func (c *Coordinator) resolve(ev *Event) (resp *responder.Response, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("fast-path resolution failed", "panic", r)
			resp, ok = nil, false
		}
	}()
	return c.responder.Resolve(ev.UserID(), ev.Text())
}
