// ABOUTME: Tests for webhook payload parsing and event accessors.
// ABOUTME: Covers the envelope form, the bare-event form, and malformed bodies.

package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayload_Envelope(t *testing.T) {
	body := []byte(`{
		"destination": "U-bot",
		"events": [
			{
				"type": "message",
				"replyToken": "tok-1",
				"timestamp": 1700000000000,
				"source": {"type": "user", "userId": "U-alice"},
				"message": {"type": "text", "id": "m-1", "text": "你好"}
			}
		]
	}`)

	payload, err := ParsePayload(body)
	require.NoError(t, err)
	require.Len(t, payload.Events, 1)

	ev := payload.Events[0]
	assert.Equal(t, EventTypeMessage, ev.Type)
	assert.Equal(t, "tok-1", ev.ReplyToken)
	assert.Equal(t, "U-alice", ev.UserID())
	assert.Equal(t, "m-1", ev.MessageID())
	assert.Equal(t, "你好", ev.Text())
}

func TestParsePayload_BareEvent(t *testing.T) {
	body := []byte(`{
		"type": "follow",
		"replyToken": "tok-2",
		"source": {"type": "user", "userId": "U-bob"}
	}`)

	payload, err := ParsePayload(body)
	require.NoError(t, err)
	require.Len(t, payload.Events, 1)
	assert.Equal(t, EventTypeFollow, payload.Events[0].Type)
	assert.Equal(t, "U-bob", payload.Events[0].UserID())
}

func TestParsePayload_EmptyEvents(t *testing.T) {
	payload, err := ParsePayload([]byte(`{"destination": "U-bot", "events": []}`))
	require.NoError(t, err)
	assert.Empty(t, payload.Events)
}

func TestParsePayload_Malformed(t *testing.T) {
	_, err := ParsePayload([]byte(`{"events": [`))
	assert.Error(t, err)
}

func TestEvent_AccessorsNilSafe(t *testing.T) {
	ev := Event{Type: EventTypeUnfollow}

	assert.Empty(t, ev.UserID())
	assert.Empty(t, ev.GroupID())
	assert.Empty(t, ev.MessageID())
	assert.Empty(t, ev.Text())
	assert.Empty(t, ev.ImageURL())
}

func TestEvent_ImageURL(t *testing.T) {
	ev := Event{
		Type: EventTypeMessage,
		Message: &Message{
			Type: MessageTypeImage,
			ID:   "m-9",
			ContentProvider: &ContentProvider{
				Type:               "external",
				OriginalContentURL: "https://example.com/img.jpg",
			},
		},
	}
	assert.Equal(t, "https://example.com/img.jpg", ev.ImageURL())
}

func TestEvent_Fingerprint(t *testing.T) {
	a := Event{
		Type:       EventTypeMessage,
		ReplyToken: "tok-1",
		Timestamp:  1700000000000,
		Source:     &Source{UserID: "U-alice"},
		Message:    &Message{Type: MessageTypeText, ID: "m-1", Text: "hi"},
	}
	b := a // identical delivery

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.Message = &Message{Type: MessageTypeText, ID: "m-2", Text: "hi"}
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
