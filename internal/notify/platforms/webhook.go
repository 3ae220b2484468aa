package platforms

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

const signatureHeader = "X-Beacon-Signature"

// WebhookAdapter posts the raw event JSON. With a secret set, the body is
// signed with HMAC-SHA256 in X-Beacon-Signature.
type WebhookAdapter struct {
	client *HTTPClient
}

func NewWebhookAdapter(client *HTTPClient) *WebhookAdapter {
	return &WebhookAdapter{client: client}
}

func (a *WebhookAdapter) Name() string {
	return "webhook"
}

func (a *WebhookAdapter) Send(ctx context.Context, endpoint, secret string, msg Message) error {
	body := msg.Payload
	if body == nil {
		body = map[string]any{"title": msg.Title, "description": msg.Description}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	var headers map[string]string
	if s := strings.TrimSpace(secret); s != "" {
		headers = map[string]string{signatureHeader: Sign(s, raw)}
	}
	return a.client.PostRaw(ctx, endpoint, headers, raw)
}

func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
