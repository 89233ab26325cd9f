// ABOUTME: HTTP handler for the webhook endpoint with signature validation.
// ABOUTME: Always acknowledges processed batches with 200 so the platform stops retrying.

package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
)

// Handler serves POST /webhook.
type Handler struct {
	coordinator *Coordinator
	secret      []byte // channel secret; empty disables signature validation
	logger      *slog.Logger
}

// NewHandler creates the webhook HTTP handler. With an empty secret the
// signature check is skipped (local development).
func NewHandler(coordinator *Coordinator, channelSecret string) *Handler {
	return &Handler{
		coordinator: coordinator,
		secret:      []byte(channelSecret),
		logger:      slog.Default().With("component", "webhook"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}

	if len(h.secret) > 0 && !h.validSignature(body, r.Header.Get("X-Line-Signature")) {
		h.logger.Warn("invalid webhook signature", "remote", r.RemoteAddr)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	payload, err := ParsePayload(body)
	if err != nil {
		h.logger.Warn("malformed webhook payload", "error", err)
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	outcomes := h.coordinator.Process(r.Context(), payload.Events)
	for _, out := range outcomes {
		if out.Status == StatusFailed {
			h.logger.Error("event processing failed",
				"event_type", out.EventType, "outcome", out.ID, "error", out.Err)
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// validSignature checks the X-Line-Signature header: base64 of the
// HMAC-SHA256 of the raw body under the channel secret.
func (h *Handler) validSignature(body []byte, header string) bool {
	if header == "" {
		return false
	}
	expected, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}
