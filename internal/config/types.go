package config

// Config is the on-disk configuration (JSON, or YAML coerced to JSON).
//
// String values may reference environment variables as ${NAME}; they are
// expanded before decoding so tokens and broker passwords can stay out of
// the file.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Devices  []DeviceConfig `json:"devices"`
	MQTT     MQTTConfig     `json:"mqtt,omitempty"`
	State    StateConfig    `json:"state"`
	Commands CommandsConfig `json:"commands,omitempty"`
	Logging  LoggingConfig  `json:"logging"`
	Metrics  MetricsConfig  `json:"metrics,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// AdminChatID is the administrator identity. It is always authorized
	// and can never be removed from the user list.
	AdminChatID int64 `json:"admin_chat_id"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

// DeviceConfig describes one infrared relay reachable over MQTT.
//
// Example:
//
//	{ "name": "livingroom", "host": "broker.lan", "port": 1883,
//	  "sub_topic": "ir/livingroom/up", "pub_topic": "ir/livingroom/down" }
type DeviceConfig struct {
	Name     string `json:"name"`
	Host     string `json:"host"`
	Port     int    `json:"port,omitempty"` // default 1883
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	// SubTopic carries device replies to the bridge; PubTopic carries records
	// from the bridge to the device.
	SubTopic string `json:"sub_topic"`
	PubTopic string `json:"pub_topic"`
	QoS      int    `json:"qos,omitempty"`

	ClientIDPrefix string `json:"client_id_prefix,omitempty"` // default "irbridge"
}

// MQTTConfig holds broker timeouts shared by all devices (Go duration strings).
type MQTTConfig struct {
	ConnectTimeout string `json:"connect_timeout,omitempty"` // default 10s
	Keepalive      string `json:"keepalive,omitempty"`       // default 60s
	PublishTimeout string `json:"publish_timeout,omitempty"` // default 5s
}

// StateConfig selects where users, aliases and the device selection live.
//
//	"state": { "driver": "file", "path": "./data/db.json" }
type StateConfig struct {
	Driver      string `json:"driver"` // "file" (default) or "sqlite"
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
	SaveRetries int    `json:"save_retries,omitempty"` // default 3
	Audit       bool   `json:"audit,omitempty"`
}

type CommandsConfig struct {
	// StrictCron validates exec cron expressions locally before publishing.
	StrictCron bool   `json:"strict_cron,omitempty"`
	Workers    int    `json:"workers,omitempty"`
	Timeout    string `json:"timeout,omitempty"` // per request, default 30s
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram forwards log records to the administrator chat.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// MetricsConfig controls the ops HTTP listener.
//
// Prefer a loopback address; pprof handlers expose process internals.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:9464"
	Pprof   bool   `json:"pprof,omitempty"`
}
