// ABOUTME: LINE Messaging API client with circuit-breaker protected reply dispatch.
// ABOUTME: Classifies 4xx reply failures as terminal since reply tokens are single-use.

package line

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// Default API endpoints.
const (
	DefaultAPIBase     = "https://api.line.me"
	DefaultDataAPIBase = "https://api-data.line.me"
)

// ErrReplyRejected means the API refused the reply, typically because the
// reply token was already used or has expired. Terminal: retrying cannot
// succeed with the same token.
var ErrReplyRejected = errors.New("line: reply rejected")

// Message is one outbound message in a reply.
type Message struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextMessage builds a plain text message.
func TextMessage(text string) Message {
	return Message{Type: "text", Text: text}
}

// Profile is a LINE user profile.
type Profile struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	PictureURL  string `json:"pictureUrl"`
}

// Config holds client credentials and endpoints.
type Config struct {
	ChannelToken string
	APIBase      string
	DataAPIBase  string
}

// Client talks to the LINE Messaging API.
type Client struct {
	httpClient  *http.Client
	token       string
	apiBase     string
	dataAPIBase string
	breaker     *gobreaker.CircuitBreaker
	logger      *slog.Logger
}

// New creates a client. The reply endpoint is wrapped in a circuit breaker
// that opens after repeated consecutive failures and probes again after a
// cool-down.
func New(cfg Config) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.DataAPIBase == "" {
		cfg.DataAPIBase = DefaultDataAPIBase
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "line-reply",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		token:       cfg.ChannelToken,
		apiBase:     strings.TrimRight(cfg.APIBase, "/"),
		dataAPIBase: strings.TrimRight(cfg.DataAPIBase, "/"),
		breaker:     breaker,
		logger:      slog.Default().With("component", "line"),
	}
}

// SendReply dispatches text messages against a reply token. A 4xx status is
// returned as ErrReplyRejected and must not be retried; other failures count
// toward the circuit breaker.
func (c *Client) SendReply(ctx context.Context, replyToken string, texts ...string) error {
	messages := make([]Message, 0, len(texts))
	for _, text := range texts {
		messages = append(messages, TextMessage(text))
	}

	payload := struct {
		ReplyToken string    `json:"replyToken"`
		Messages   []Message `json:"messages"`
	}{ReplyToken: replyToken, Messages: messages}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding reply: %w", err)
	}

	_, err = c.breaker.Execute(func() (any, error) {
		return nil, c.postReply(ctx, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("reply endpoint unavailable: %w", err)
	}
	return err
}

func (c *Client) postReply(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBase+"/v2/bot/message/reply", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building reply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		// Reply tokens are single-use; the API refusing one is final.
		c.logger.Warn("reply rejected", "status", resp.StatusCode, "body", string(detail))
		return fmt.Errorf("%w: status %d: %s", ErrReplyRejected, resp.StatusCode, detail)
	}
	return fmt.Errorf("reply failed: status %d: %s", resp.StatusCode, detail)
}

// GetUserProfile fetches a user's display profile.
func (c *Client) GetUserProfile(ctx context.Context, userID string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.apiBase+"/v2/bot/profile/"+userID, nil)
	if err != nil {
		return nil, fmt.Errorf("building profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile request failed: status %d", resp.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	return &profile, nil
}

// ContentURL returns the download URL for a message's binary content
// (image, audio, video).
func (c *Client) ContentURL(messageID string) string {
	return c.dataAPIBase + "/v2/bot/message/" + messageID + "/content"
}
