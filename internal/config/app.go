package config

import "fmt"

// AppConfig is everything beacon-host reads from the environment.
type AppConfig struct {
	Host   HostConfig
	Log    LogConfig
	Notify NotifyConfig
}

func LoadApp() (AppConfig, error) {
	logCfg, err := LoadLogFor("beacon-host")
	if err != nil {
		return AppConfig{}, fmt.Errorf("log config: %w", err)
	}
	hostCfg, err := LoadHost()
	if err != nil {
		return AppConfig{}, fmt.Errorf("host config: %w", err)
	}
	if err := hostCfg.Validate(); err != nil {
		return AppConfig{}, fmt.Errorf("host config: %w", err)
	}
	notifyCfg, err := LoadNotify()
	if err != nil {
		return AppConfig{}, fmt.Errorf("notify config: %w", err)
	}
	if notifyCfg.Enabled && notifyCfg.TargetsJSON == "" && notifyCfg.TargetsPath == "" {
		return AppConfig{}, fmt.Errorf("notify config: NOTIFY_ENABLED needs NOTIFY_TARGETS_JSON or NOTIFY_TARGETS_PATH")
	}
	return AppConfig{Host: hostCfg, Log: logCfg, Notify: notifyCfg}, nil
}
