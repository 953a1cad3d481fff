package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Timeouts holds every duration field of the file, parsed, with defaults
// applied to empty or zero values.
type Timeouts struct {
	Poll      time.Duration // telegram.poll_timeout
	Command   time.Duration // commands.timeout
	Connect   time.Duration // mqtt.connect_timeout
	Keepalive time.Duration // mqtt.keepalive
	Publish   time.Duration // mqtt.publish_timeout
	Busy      time.Duration // state.busy_timeout
}

type durationField struct {
	path string
	raw  func(c *Config) string
	def  time.Duration
	dst  func(t *Timeouts) *time.Duration
}

var durationFields = []durationField{
	{"telegram.poll_timeout", func(c *Config) string { return c.Telegram.PollTimeout }, 10 * time.Second, func(t *Timeouts) *time.Duration { return &t.Poll }},
	{"commands.timeout", func(c *Config) string { return c.Commands.Timeout }, 30 * time.Second, func(t *Timeouts) *time.Duration { return &t.Command }},
	{"mqtt.connect_timeout", func(c *Config) string { return c.MQTT.ConnectTimeout }, 10 * time.Second, func(t *Timeouts) *time.Duration { return &t.Connect }},
	{"mqtt.keepalive", func(c *Config) string { return c.MQTT.Keepalive }, time.Minute, func(t *Timeouts) *time.Duration { return &t.Keepalive }},
	{"mqtt.publish_timeout", func(c *Config) string { return c.MQTT.PublishTimeout }, 5 * time.Second, func(t *Timeouts) *time.Duration { return &t.Publish }},
	{"state.busy_timeout", func(c *Config) string { return c.State.BusyTimeout }, time.Second, func(t *Timeouts) *time.Duration { return &t.Busy }},
}

// Timeouts parses the duration fields. Fields that fail keep their default
// and are reported together in err, each prefixed with its path.
func (c *Config) Timeouts() (Timeouts, error) {
	var (
		t    Timeouts
		errs []error
	)
	for _, f := range durationFields {
		d, err := parseDuration(f.path, f.raw(c))
		if err != nil {
			errs = append(errs, err)
		}
		if d <= 0 {
			d = f.def
		}
		*f.dst(&t) = d
	}
	return t, errors.Join(errs...)
}

func parseDuration(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q (want e.g. \"10s\", \"2m\")", path, raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0, got %s", path, s)
	}
	return d, nil
}
