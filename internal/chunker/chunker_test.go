package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplit_Empty(t *testing.T) {
	if got := Split("  \n\n ", DefaultOptions()); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestSplit_ShortTextIsOneChunk(t *testing.T) {
	text := "Alice is allergic to peanuts."
	got := Split(text, DefaultOptions())
	if len(got) != 1 || got[0] != text {
		t.Fatalf("expected single chunk %q, got %v", text, got)
	}
}

func TestSplit_SplitsOnHeadings(t *testing.T) {
	section := strings.Repeat("Some content filling space. ", 12)
	text := "# One\n" + section + "\n# Two\n" + section + "\n# Three\n" + section

	got := Split(text, Options{Target: 400, Max: 600})
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %q", len(got), got)
	}
	for i, want := range []string{"# One", "# Two", "# Three"} {
		if !strings.HasPrefix(got[i], want) {
			t.Errorf("chunk %d should start with %q, got %q", i, want, got[i][:20])
		}
	}
}

func TestSplit_MergesSmallBlocks(t *testing.T) {
	text := "first paragraph\n\nsecond paragraph\n\n" + strings.Repeat("x", 90)
	got := Split(text, Options{Target: 200, Max: 100})
	// Target is clamped to Max, so the first two merge and the long one stands alone.
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %q", len(got), got)
	}
	if got[0] != "first paragraph\n\nsecond paragraph" {
		t.Errorf("unexpected merged chunk %q", got[0])
	}
}

func TestSplit_RespectsMax(t *testing.T) {
	opts := Options{Target: 200, Max: 300}
	tests := []struct {
		name string
		text string
	}{
		{"many lines", strings.Repeat("This is a line of text that is about fifty chars.\n", 30)},
		{"one long line", strings.Repeat("word ", 400)},
		{"one long word", strings.Repeat("é", 1000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.text, opts)
			if len(got) < 2 {
				t.Fatalf("expected several chunks, got %d", len(got))
			}
			total := 0
			for _, c := range got {
				n := utf8.RuneCountInString(c)
				if n > opts.Max {
					t.Errorf("chunk of %d runes exceeds max %d", n, opts.Max)
				}
				if !utf8.ValidString(c) {
					t.Errorf("chunk is not valid UTF-8")
				}
				total += len(strings.Fields(c))
			}
			if tt.name == "one long line" && total != 400 {
				t.Errorf("expected 400 words across chunks, got %d", total)
			}
		})
	}
}
