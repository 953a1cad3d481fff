package app

import (
	"fmt"
	"reflect"
	"strings"

	"irbridge/internal/config"
	"irbridge/internal/metrics"
	"irbridge/internal/storage"
	logx "irbridge/pkg/logx"
	"irbridge/pkg/mqtt"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

// StorageConfig maps the state section to a storage backend config.
func StorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.State
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "", "file":
		if path == "" {
			path = "./db.json"
		}
		return storage.Config{Driver: "file", Path: path, Audit: sc.Audit}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, fmt.Errorf("state.path is required when state.driver=sqlite")
		}
		t, err := cfg.Timeouts()
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: t.Busy, Audit: sc.Audit}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown state.driver: %s", sc.Driver)
	}
}

func mapDevices(cfg *config.Config) []mqtt.Device {
	out := make([]mqtt.Device, 0, len(cfg.Devices))
	for _, d := range cfg.Devices {
		out = append(out, mqtt.Device{
			Name:           d.Name,
			Broker:         d.Broker(),
			Username:       d.Username,
			Password:       d.Password,
			SubTopic:       d.SubTopic,
			PubTopic:       d.PubTopic,
			QoS:            byte(d.QoS),
			ClientIDPrefix: d.ClientIDPrefix,
		})
	}
	return out
}

func mapMQTTOptions(cfg *config.Config) mqtt.Options {
	// Validate has already rejected bad values; defaults fill the rest.
	t, _ := cfg.Timeouts()
	return mqtt.Options{ConnectTimeout: t.Connect, KeepAlive: t.Keepalive, PublishTimeout: t.Publish}
}

func mapMetricsConfig(cfg *config.Config) metrics.ServerConfig {
	return metrics.ServerConfig{
		Enabled: cfg.Metrics.Enabled,
		Addr:    cfg.Metrics.Addr,
		Pprof:   cfg.Metrics.Pprof,
	}
}

// restartSections lists the changed sections that only take effect after a
// restart. Logging, metrics and the admin id are applied live.
func restartSections(prev, next *config.Config) []string {
	if prev == nil || next == nil {
		return nil
	}
	var out []string
	if prev.Telegram.Token != next.Telegram.Token || prev.Telegram.PollTimeout != next.Telegram.PollTimeout {
		out = append(out, "telegram")
	}
	if !reflect.DeepEqual(prev.Devices, next.Devices) {
		out = append(out, "devices")
	}
	if prev.MQTT != next.MQTT {
		out = append(out, "mqtt")
	}
	if prev.State != next.State {
		out = append(out, "state")
	}
	if prev.Commands != next.Commands {
		out = append(out, "commands")
	}
	return out
}
