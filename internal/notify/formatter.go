package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"party-beacon/internal/beacon"
)

const (
	colorReserve  = 0x3BA55D
	colorUpdate   = 0x5865F2
	colorWarn     = 0xFEE75C
	colorCritical = 0xED4245

	playerListLimit = 200
	shortIDLimit    = 10
	defaultFooter   = "party-beacon"
)

func FormatMessage(ev Event) (FormattedMessage, bool) {
	sessionShort := shortID(fallback(ev.SessionID, "unknown"), shortIDLimit)
	base := FormattedMessage{
		Timestamp: eventTimestamp(ev.At),
		Footer:    defaultFooter,
	}
	fields := []MessageField{
		{Name: "Remaining", Value: fmt.Sprintf("%d/%d", ev.Remaining, ev.Capacity), Inline: true},
	}

	switch ev.Type {
	case EventReservationAdded:
		base.Title = fmt.Sprintf("Reserved · S:%s", sessionShort)
		base.Content = fmt.Sprintf("party %s reserved %d slots", ev.LeaderID, len(ev.Players))
		base.Description = fmt.Sprintf("Party led by %s reserved on team %s.", ev.LeaderID, teamText(ev.Team))
		base.Color = colorReserve
		fields = append(fields,
			MessageField{Name: "Leader", Value: string(ev.LeaderID), Inline: true},
			MessageField{Name: "Team", Value: teamText(ev.Team), Inline: true},
			MessageField{Name: "Players", Value: playersText(ev.Players), Inline: false},
		)
	case EventReservationUpdated:
		base.Title = fmt.Sprintf("Party Updated · S:%s", sessionShort)
		base.Content = fmt.Sprintf("party %s now holds %d slots", ev.LeaderID, len(ev.Players))
		base.Description = fmt.Sprintf("Party led by %s changed.", ev.LeaderID)
		base.Color = colorUpdate
		fields = append(fields,
			MessageField{Name: "Leader", Value: string(ev.LeaderID), Inline: true},
			MessageField{Name: "Team", Value: teamText(ev.Team), Inline: true},
			MessageField{Name: "Players", Value: playersText(ev.Players), Inline: false},
		)
	case EventReservationRemoved:
		base.Title = fmt.Sprintf("Reservation Removed · S:%s", sessionShort)
		base.Content = fmt.Sprintf("party %s removed", ev.LeaderID)
		base.Description = fmt.Sprintf("Party led by %s was removed.", ev.LeaderID)
		base.Color = colorWarn
		fields = append(fields, MessageField{Name: "Leader", Value: string(ev.LeaderID), Inline: true})
	case EventPlayerRemoved, EventPlayerExpired:
		verb, title := "removed", "Player Removed"
		if ev.Type == EventPlayerExpired {
			verb, title = "timed out", "Player Timed Out"
		}
		base.Title = fmt.Sprintf("%s · S:%s", title, sessionShort)
		base.Content = fmt.Sprintf("player %s %s", ev.PlayerID, verb)
		base.Description = fmt.Sprintf("Reservation for %s %s.", ev.PlayerID, verb)
		base.Color = colorWarn
		fields = append(fields, MessageField{Name: "Player", Value: string(ev.PlayerID), Inline: true})
	case EventReservationsFull:
		base.Title = fmt.Sprintf("Session Full · S:%s", sessionShort)
		base.Content = "all reservations taken"
		base.Description = "Every reservation slot is taken."
		base.Color = colorCritical
	default:
		return FormattedMessage{}, false
	}

	base.Fields = fields
	return base, true
}

func teamText(team int) string {
	if team == beacon.NoTeam {
		return "-"
	}
	return strconv.Itoa(team)
}

func playersText(players []beacon.PlayerID) string {
	if len(players) == 0 {
		return "-"
	}
	parts := make([]string, len(players))
	for i, p := range players {
		parts[i] = string(p)
	}
	return trimText(strings.Join(parts, ", "), playerListLimit)
}

func trimText(v string, max int) string {
	if max <= 0 || len(v) <= max {
		return v
	}
	if max <= 3 {
		return v[:max]
	}
	return v[:max-3] + "..."
}

func shortID(v string, max int) string {
	if max <= 0 || len(v) <= max {
		return v
	}
	return v[:max]
}

func eventTimestamp(at time.Time) string {
	if at.IsZero() {
		return ""
	}
	return at.UTC().Format(time.RFC3339)
}

func fallback(v, d string) string {
	if strings.TrimSpace(v) == "" {
		return d
	}
	return v
}
