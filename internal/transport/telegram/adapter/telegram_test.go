package adapter

import (
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestChunkTextShort(t *testing.T) {
	t.Parallel()
	got := chunkText("hello", 10, false)
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("chunkText = %q, want [hello]", got)
	}
}

func TestChunkTextPrefersNewlines(t *testing.T) {
	t.Parallel()
	line := strings.Repeat("a", 30)
	text := strings.Join([]string{line, line, line, line}, "\n")

	chunks := chunkText(text, 70, false)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > 70 {
			t.Fatalf("chunk %d has %d runes, want <= 70", i, len([]rune(c)))
		}
		if strings.HasPrefix(c, "\n") || strings.HasSuffix(c, "\n") {
			t.Fatalf("chunk %d = %q has edge newlines", i, c)
		}
	}
	if got := strings.Join(chunks, "\n"); got != text {
		t.Fatalf("rejoined chunks differ from input")
	}
}

func TestChunkTextAvoidsOpenTag(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("x", 18) + "<b>bold</b>" + strings.Repeat("y", 20)
	chunks := chunkText(text, 20, true)
	for i, c := range chunks {
		if strings.Count(c, "<") != strings.Count(c, ">") {
			t.Fatalf("chunk %d = %q splits a tag", i, c)
		}
	}
}

func TestToMessage(t *testing.T) {
	t.Parallel()
	m := &tele.Message{
		ID:     7,
		Text:   "/auth",
		Chat:   &tele.Chat{ID: -100, Type: tele.ChatSuperGroup},
		Sender: &tele.User{ID: 42, Username: "ada", FirstName: "Ada", LastName: "Lovelace"},
	}
	got := toMessage(m)
	if got.ChatID != -100 || got.FromID != 42 || !got.IsGroup {
		t.Fatalf("toMessage ids = %+v", got)
	}
	if got.FirstName != "Ada" || got.LastName != "Lovelace" || got.Text != "/auth" {
		t.Fatalf("toMessage names = %+v", got)
	}
}
