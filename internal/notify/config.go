package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"party-beacon/internal/config"
)

var knownPlatforms = map[string]bool{"discord": true, "feishu": true, "webhook": true}

func ConfigFromEnv(cfg config.NotifyConfig) (Config, error) {
	out := Config{
		Enabled:             cfg.Enabled,
		ConfigPath:          strings.TrimSpace(cfg.TargetsPath),
		ConfigReload:        cfg.ConfigReload,
		Workers:             cfg.Workers,
		RetryMax:            cfg.RetryMax,
		RetryBase:           cfg.RetryBase,
		FailureThreshold:    3,
		CircuitOpenDuration: 30 * time.Second,
		RequestTimeout:      cfg.RequestTimeout,
		DispatchBuffer:      1024,
		RatePerSecond:       cfg.RatePerSecond,
	}
	if !out.Enabled {
		return out, nil
	}
	if out.RetryMax < 0 {
		out.RetryMax = 0
	}

	raw, err := loadTargetsJSON(cfg)
	if err != nil {
		return Config{}, err
	}
	if raw == "" {
		return out, nil
	}
	targets, err := parseTargetsJSON(raw)
	if err != nil {
		return Config{}, err
	}
	out.Targets = targets
	return out, nil
}

// loadTargetsJSON prefers the file over the inline value.
func loadTargetsJSON(cfg config.NotifyConfig) (string, error) {
	path := strings.TrimSpace(cfg.TargetsPath)
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read notify targets path %q: %w", path, err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	return strings.TrimSpace(cfg.TargetsJSON), nil
}

func parseTargetsJSON(raw string) ([]Target, error) {
	var targets []Target
	if err := json.Unmarshal([]byte(raw), &targets); err != nil {
		return nil, fmt.Errorf("parse notify targets: %w", err)
	}
	filtered := make([]Target, 0, len(targets))
	for _, target := range targets {
		target.Platform = strings.ToLower(strings.TrimSpace(target.Platform))
		if !knownPlatforms[target.Platform] {
			continue
		}
		target.Endpoint = strings.TrimSpace(target.Endpoint)
		if target.Endpoint == "" || !target.Enabled {
			continue
		}
		target.SessionID = strings.TrimSpace(target.SessionID)
		for i := range target.EventAllowlist {
			target.EventAllowlist[i] = strings.TrimSpace(strings.ToLower(target.EventAllowlist[i]))
		}
		filtered = append(filtered, target)
	}
	return filtered, nil
}
