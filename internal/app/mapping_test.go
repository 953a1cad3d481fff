package app

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"irbridge/internal/config"
	"irbridge/internal/storage"
	"irbridge/pkg/mqtt"
)

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		in      config.StateConfig
		want    storage.Config
		wantErr bool
	}{
		{"default file", config.StateConfig{}, storage.Config{Driver: "file", Path: "./db.json"}, false},
		{"file with audit", config.StateConfig{Driver: "FILE", Path: "/var/lib/ir/db.json", Audit: true},
			storage.Config{Driver: "file", Path: "/var/lib/ir/db.json", Audit: true}, false},
		{"sqlite", config.StateConfig{Driver: "sqlite", Path: "state.db", BusyTimeout: "3s"},
			storage.Config{Driver: "sqlite", Path: "state.db", BusyTimeout: 3 * time.Second}, false},
		{"sqlite default busy", config.StateConfig{Driver: "sqlite3", Path: "state.db"},
			storage.Config{Driver: "sqlite", Path: "state.db", BusyTimeout: time.Second}, false},
		{"sqlite without path", config.StateConfig{Driver: "sqlite"}, storage.Config{}, true},
		{"unknown driver", config.StateConfig{Driver: "redis"}, storage.Config{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := StorageConfig(&config.Config{State: tt.in})
			if (err != nil) != tt.wantErr {
				t.Fatalf("StorageConfig err = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("StorageConfig (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMapDevices(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Devices: []config.DeviceConfig{{
		Name: "living", Host: "broker.lan", Username: "u", Password: "p",
		SubTopic: "ir/living/up", PubTopic: "ir/living/down", QoS: 1,
	}}}
	want := []mqtt.Device{{
		Name: "living", Broker: "tcp://broker.lan:1883", Username: "u", Password: "p",
		SubTopic: "ir/living/up", PubTopic: "ir/living/down", QoS: 1,
	}}
	if diff := cmp.Diff(want, mapDevices(cfg)); diff != "" {
		t.Fatalf("mapDevices (-want +got):\n%s", diff)
	}
}

func TestRestartSections(t *testing.T) {
	t.Parallel()
	base := func() *config.Config {
		return &config.Config{
			Telegram: config.TelegramConfig{Token: "t", AdminChatID: 9},
			Devices:  []config.DeviceConfig{{Name: "living", Host: "h"}},
			Logging:  config.LoggingConfig{Level: "info"},
		}
	}

	next := base()
	next.Logging.Level = "debug"
	next.Telegram.AdminChatID = 10
	next.Metrics.Enabled = true
	if got := restartSections(base(), next); len(got) != 0 {
		t.Fatalf("restartSections for live changes = %v, want none", got)
	}

	next = base()
	next.Devices[0].Host = "other"
	next.State.Driver = "sqlite"
	next.Telegram.Token = "t2"
	want := []string{"telegram", "devices", "state"}
	if diff := cmp.Diff(want, restartSections(base(), next)); diff != "" {
		t.Fatalf("restartSections (-want +got):\n%s", diff)
	}
}
