package platforms

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

type FeishuAdapter struct {
	client *HTTPClient
	now    func() time.Time
}

func NewFeishuAdapter(client *HTTPClient) *FeishuAdapter {
	return &FeishuAdapter{client: client, now: time.Now}
}

func (a *FeishuAdapter) Name() string {
	return "feishu"
}

// Send posts an interactive card. A secret turns on Feishu's custom bot
// signature: timestamp and sign fields in the body.
func (a *FeishuAdapter) Send(ctx context.Context, endpoint, secret string, msg Message) error {
	elements := []map[string]string{{
		"tag":  "markdown",
		"text": fallback(msg.Description, msg.Content),
	}}
	for _, f := range msg.Fields {
		elements = append(elements, map[string]string{
			"tag":  "markdown",
			"text": "**" + f.Name + "**: " + f.Value,
		})
	}
	payload := map[string]any{
		"msg_type": "interactive",
		"card": map[string]any{
			"header": map[string]any{
				"title":    map[string]any{"tag": "plain_text", "content": msg.Title},
				"template": feishuTemplate(msg.Color),
			},
			"elements": elements,
		},
	}
	if s := strings.TrimSpace(secret); s != "" {
		ts := a.now().Unix()
		payload["timestamp"] = strconv.FormatInt(ts, 10)
		payload["sign"] = FeishuSign(s, ts)
	}
	return a.client.PostJSON(ctx, endpoint, nil, payload)
}

// FeishuSign keys HMAC-SHA256 with "timestamp\nsecret" over an empty message.
func FeishuSign(secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(strconv.FormatInt(ts, 10)+"\n"+secret))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// feishuTemplate picks the card template nearest to an RGB color.
func feishuTemplate(rgb int) string {
	r, g, b := rgb>>16&0xff, rgb>>8&0xff, rgb&0xff
	switch {
	case rgb == 0:
		return "blue"
	case r > 0xc0 && g < 0x80:
		return "red"
	case r > 0xc0 && g >= 0x80 && b < 0x80:
		return "orange"
	case g > r && g > b:
		return "green"
	case r == g && g == b:
		return "grey"
	default:
		return "blue"
	}
}

func fallback(v, d string) string {
	if v == "" {
		return d
	}
	return v
}
