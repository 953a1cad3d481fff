package config

import (
	"errors"
	"fmt"
	"strings"

	"irbridge/internal/ircmd"
)

const (
	DefaultMQTTPort       = 1883
	DefaultClientIDPrefix = "irbridge"
	DefaultSaveRetries    = 3
	DefaultMetricsAddr    = "127.0.0.1:9464"
)

// Validate rejects configs the bridge cannot run with. It is used both at
// startup and as the hot-reload gate.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if cfg.Telegram.AdminChatID == 0 {
		errs = append(errs, errors.New("telegram.admin_chat_id is required"))
	}
	if _, err := cfg.Timeouts(); err != nil {
		errs = append(errs, err)
	}

	if len(cfg.Devices) == 0 {
		errs = append(errs, errors.New("devices: at least one device is required"))
	}
	seen := map[string]bool{}
	for i, d := range cfg.Devices {
		p := fmt.Sprintf("devices[%d]", i)
		switch {
		case !ircmd.ValidName(d.Name):
			errs = append(errs, fmt.Errorf("%s.name: %q must match [a-zA-Z0-9_-]+", p, d.Name))
		case seen[d.Name]:
			errs = append(errs, fmt.Errorf("%s.name: duplicate device %q", p, d.Name))
		}
		seen[d.Name] = true
		if strings.TrimSpace(d.Host) == "" {
			errs = append(errs, fmt.Errorf("%s.host is required", p))
		}
		if d.Port < 0 || d.Port > 65535 {
			errs = append(errs, fmt.Errorf("%s.port: %d out of range", p, d.Port))
		}
		if strings.TrimSpace(d.SubTopic) == "" || strings.TrimSpace(d.PubTopic) == "" {
			errs = append(errs, fmt.Errorf("%s: sub_topic and pub_topic are required", p))
		}
		if d.QoS < 0 || d.QoS > 2 {
			errs = append(errs, fmt.Errorf("%s.qos: must be 0, 1 or 2", p))
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.State.Driver)) {
	case "", "file", "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("state.driver: unknown driver %q", cfg.State.Driver))
	}
	if strings.TrimSpace(cfg.State.Path) == "" {
		errs = append(errs, errors.New("state.path is required"))
	}
	if cfg.State.SaveRetries < 0 {
		errs = append(errs, errors.New("state.save_retries must be >= 0"))
	}
	if cfg.Commands.Workers < 0 {
		errs = append(errs, errors.New("commands.workers must be >= 0"))
	}
	return errors.Join(errs...)
}

// DeviceNames returns device names in configuration order.
func (c *Config) DeviceNames() []string {
	out := make([]string, 0, len(c.Devices))
	for _, d := range c.Devices {
		out = append(out, d.Name)
	}
	return out
}

// Device looks up a device by name.
func (c *Config) Device(name string) (DeviceConfig, bool) {
	for _, d := range c.Devices {
		if d.Name == name {
			return d, true
		}
	}
	return DeviceConfig{}, false
}

// Broker returns the tcp URL for the device's broker.
func (d DeviceConfig) Broker() string {
	port := d.Port
	if port == 0 {
		port = DefaultMQTTPort
	}
	return fmt.Sprintf("tcp://%s:%d", strings.TrimSpace(d.Host), port)
}
