package adapter

import (
	"strings"
	"testing"
)

func TestSplitTelegramTextShort(t *testing.T) {
	got := splitTelegramText("hello", 100, "")
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("chunks = %#v", got)
	}
}

func TestSplitTelegramTextPrefersNewline(t *testing.T) {
	lines := strings.Repeat("line one of many\n", 20)
	got := splitTelegramText(lines, 100, "")
	if len(got) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(got))
	}
	for i, c := range got {
		if len([]rune(c)) > 100 {
			t.Fatalf("chunk %d exceeds limit: %d runes", i, len([]rune(c)))
		}
		if strings.HasSuffix(c, "\n") {
			t.Fatalf("chunk %d ends with newline: %q", i, c)
		}
		// newline-preferred split keeps lines intact
		for _, l := range strings.Split(c, "\n") {
			if l != "line one of many" {
				t.Fatalf("chunk %d split mid-line: %q", i, l)
			}
		}
	}
}

func TestSplitTelegramTextAvoidsTagSplitHTML(t *testing.T) {
	// a long run with a tag positioned across a naive split point
	s := strings.Repeat("x", 95) + "<b>bold text</b>" + strings.Repeat("y", 50)
	got := splitTelegramText(s, 100, "HTML")
	for i, c := range got {
		if strings.Count(c, "<") != strings.Count(c, ">") {
			t.Fatalf("chunk %d has a dangling tag: %q", i, c)
		}
	}
}

func TestSplitTelegramTextNoEmptyChunks(t *testing.T) {
	s := strings.Repeat("a", 50) + "\n\n\n" + strings.Repeat("b", 50)
	for _, c := range splitTelegramText(s, 52, "") {
		if c == "" {
			t.Fatal("empty chunk produced")
		}
	}
}
