package logx

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestFormatTelegramJSON(t *testing.T) {
	t.Parallel()
	line := []byte(`{"level":"error","time":"x","message":"state save failed","device":"tv","attempts":3}`)
	got := formatTelegramJSON(line)
	want := "[ERROR] state save failed\n- attempts=3\n- device=tv"
	if got != want {
		t.Fatalf("formatTelegramJSON = %q, want %q", got, want)
	}
	if raw := formatTelegramJSON([]byte("  plain text \n")); raw != "plain text" {
		t.Fatalf("non-JSON = %q, want trimmed input", raw)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	if got := truncate(strings.Repeat("a", 20), 12); got != "aaaaaaaaa..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("short", 12); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"bogus":   zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLevel(in, zerolog.InfoLevel); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestZeroLoggerIsSafe(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero Logger should report IsZero")
	}
	l.With(String("k", "v")).Error("discarded", Err(nil))
	if Nop().IsZero() {
		t.Fatal("Nop() should not be zero")
	}
}
