// ABOUTME: LINE webhook payload model and tolerant JSON parsing.
// ABOUTME: Events are polymorphic on type; absent fields coerce to empty strings.

package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/vic767343/foodbot-gateway/internal/dedupe"
)

// Event kinds the gateway recognizes. Anything else is tolerated and ignored.
const (
	EventTypeMessage  = "message"
	EventTypeFollow   = "follow"
	EventTypeUnfollow = "unfollow"
	EventTypeJoin     = "join"
)

// Message kinds within a message event.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

// Payload is the envelope of a webhook delivery.
type Payload struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

// Event is one inbound platform event, polymorphic on Type. Fields absent
// for a given event kind stay zero-valued.
type Event struct {
	Type       string   `json:"type"`
	ReplyToken string   `json:"replyToken"`
	Timestamp  int64    `json:"timestamp"`
	Source     *Source  `json:"source"`
	Message    *Message `json:"message"`
}

// Source identifies where an event came from.
type Source struct {
	Type    string `json:"type"`
	UserID  string `json:"userId"`
	GroupID string `json:"groupId"`
}

// Message is the message body of a message event.
type Message struct {
	Type            string           `json:"type"`
	ID              string           `json:"id"`
	Text            string           `json:"text"`
	ContentProvider *ContentProvider `json:"contentProvider"`
}

// ContentProvider describes where a message's binary content lives.
type ContentProvider struct {
	Type               string `json:"type"`
	OriginalContentURL string `json:"originalContentUrl"`
}

// UserID returns the source user ID, or "" when absent.
func (e *Event) UserID() string {
	if e.Source == nil {
		return ""
	}
	return e.Source.UserID
}

// GroupID returns the source group ID, or "" when absent.
func (e *Event) GroupID() string {
	if e.Source == nil {
		return ""
	}
	return e.Source.GroupID
}

// MessageID returns the message ID, or "" for non-message events.
func (e *Event) MessageID() string {
	if e.Message == nil {
		return ""
	}
	return e.Message.ID
}

// Text returns the message text, or "" when absent.
func (e *Event) Text() string {
	if e.Message == nil {
		return ""
	}
	return e.Message.Text
}

// ImageURL returns the content provider URL for an image message, or "".
func (e *Event) ImageURL() string {
	if e.Message == nil || e.Message.ContentProvider == nil {
		return ""
	}
	return e.Message.ContentProvider.OriginalContentURL
}

// Fingerprint computes the deduplication fingerprint over the event's
// identifying fields.
func (e *Event) Fingerprint() string {
	ts := ""
	if e.Timestamp != 0 {
		ts = strconv.FormatInt(e.Timestamp, 10)
	}
	return dedupe.Fingerprint(e.Type, e.ReplyToken, e.UserID(), e.MessageID(), ts)
}

// ParsePayload decodes a webhook delivery. A body that is a bare event
// object rather than an {events: [...]} envelope is tolerated, mirroring
// what the platform simulator sends.
func ParsePayload(body []byte) (*Payload, error) {
	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parsing webhook payload: %w", err)
	}
	if len(payload.Events) > 0 {
		return &payload, nil
	}

	var single Event
	if err := json.Unmarshal(body, &single); err == nil && single.Type != "" {
		return &Payload{Events: []Event{single}}, nil
	}
	return &payload, nil
}
