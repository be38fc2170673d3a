package textstat_test

import (
	"strings"
	"testing"
	"unicode"

	"docpipe/internal/textstat"
)

func TestStripCodeRemovesFencesAndInline(t *testing.T) {
	input := "Текст до.\n```python\nprint(\"hello world\")\n```\nИ `inline_code` после."
	out := textstat.StripCode(input)
	for _, forbidden := range []string{"print", "inline_code"} {
		if strings.Contains(out, forbidden) {
			t.Fatalf("StripCode left %q in %q", forbidden, out)
		}
	}
}

func TestCyrillicRatio(t *testing.T) {
	tests := []struct {
		name string
		text string
		min  float64
		max  float64
	}{
		{"all cyrillic", "привет мир", 0.99, 1.0},
		{"all latin", "hello world", 0.0, 0.01},
		{"mixed", "привет world", 0.4, 0.7},
		{"no letters", "123 456 ---", 0.0, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := textstat.CyrillicRatio(tt.text)
			if got < tt.min || got > tt.max {
				t.Fatalf("CyrillicRatio(%q) = %v, want within [%v, %v]", tt.text, got, tt.min, tt.max)
			}
		})
	}
}

func TestLooksTranslatedIgnoresCode(t *testing.T) {
	// Prose is fully cyrillic; the code block alone would drag the ratio
	// below the threshold if it were counted.
	doc := "Асинхронный ввод и вывод.\n\n```python\nasync def main():\n    await asyncio.sleep(1)\n```\n"
	if !textstat.LooksTranslated(doc, unicode.Cyrillic, 0.35) {
		t.Fatal("cyrillic prose with code block should pass the threshold")
	}
}

func TestLooksTranslatedRejectsSource(t *testing.T) {
	doc := "Coroutines declared with async def syntax are awaitable.\n"
	if textstat.LooksTranslated(doc, unicode.Cyrillic, 0.35) {
		t.Fatal("english prose must not look translated")
	}
}
