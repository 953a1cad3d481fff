package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const checkConfig = `
telegram:
  token: "123:abc"
  admin_chat_id: 9
devices:
  - name: living
    host: broker.lan
    sub_topic: ir/living/up
    pub_topic: ir/living/down
state:
  driver: file
  path: %DB%
logging:
  level: info
  console: false
`

func TestCheckPrintsState(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	db := filepath.Join(dir, "db.json")
	if err := os.WriteFile(db, []byte(`{"device":"","user":[123],"preference":{"living":{"night":["exec tv_off"]}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(strings.ReplaceAll(checkConfig, "%DB%", db)), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := check(context.Background(), cfgPath, &out); err != nil {
		t.Fatalf("check: %v", err)
	}
	for _, want := range []string{
		"device living -> tcp://broker.lan:1883",
		"current device: living",
		"users: 2",
		"aliases on living: 1",
	} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("check output missing %q:\n%s", want, out.String())
		}
	}
}

func TestCheckRejectsBadConfig(t *testing.T) {
	t.Parallel()
	cfgPath := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(cfgPath, []byte(`{"telegram":{"token":""}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := check(context.Background(), cfgPath, &bytes.Buffer{}); err == nil {
		t.Fatalf("check err = nil, want validation error")
	}
}
