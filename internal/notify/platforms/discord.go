package platforms

import "context"

// Discord rejects embeds past these sizes.
const (
	discordTitleMax      = 256
	discordFieldValueMax = 1024
	discordMaxFields     = 25
)

type DiscordAdapter struct {
	client *HTTPClient
}

func NewDiscordAdapter(client *HTTPClient) *DiscordAdapter {
	return &DiscordAdapter{client: client}
}

func (a *DiscordAdapter) Name() string {
	return "discord"
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordEmbed struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Color       int               `json:"color,omitempty"`
	Timestamp   string            `json:"timestamp,omitempty"`
	Footer      map[string]string `json:"footer,omitempty"`
	Fields      []discordField    `json:"fields,omitempty"`
}

func (a *DiscordAdapter) Send(ctx context.Context, endpoint, _ string, msg Message) error {
	embed := discordEmbed{
		Title:       clip(msg.Title, discordTitleMax),
		Description: msg.Description,
		Color:       msg.Color,
		Timestamp:   msg.Timestamp,
	}
	if msg.Footer != "" {
		embed.Footer = map[string]string{"text": msg.Footer}
	}
	for i, f := range msg.Fields {
		if i == discordMaxFields {
			break
		}
		embed.Fields = append(embed.Fields, discordField{
			Name:   f.Name,
			Value:  clip(f.Value, discordFieldValueMax),
			Inline: f.Inline,
		})
	}
	return a.client.PostJSON(ctx, endpoint, nil, map[string]any{
		"username": "party-beacon",
		"content":  msg.Content,
		"embeds":   []discordEmbed{embed},
	})
}

func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
