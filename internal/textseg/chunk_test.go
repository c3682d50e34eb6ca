package textseg

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunkShortTextPassesThrough(t *testing.T) {
	text := "A single short sentence."
	got := Chunk(text, 300)
	if len(got) != 1 || got[0] != text {
		t.Fatalf("Chunk(short) = %q, want [%q]", got, text)
	}
}

func TestChunkSplitsAtSentenceBoundaries(t *testing.T) {
	first := strings.Repeat("word ", 40) + "ends here."   // ~210 chars
	second := strings.Repeat("more ", 40) + "stops here." // ~211 chars
	text := first + " " + second

	got := Chunk(text, 300)
	if len(got) != 2 {
		t.Fatalf("Chunk() produced %d chunks, want 2: %q", len(got), got)
	}
	if !strings.HasSuffix(got[0], "ends here.") {
		t.Fatalf("first chunk = %q, want it to end at the sentence boundary", got[0])
	}
	if !strings.HasSuffix(got[1], "stops here.") {
		t.Fatalf("second chunk = %q, want it to end at the sentence boundary", got[1])
	}
	for i, c := range got {
		if utf8.RuneCountInString(c) > 300 {
			t.Fatalf("chunk %d has %d chars, want <= 300", i, utf8.RuneCountInString(c))
		}
	}
}

func TestChunkPreservesContent(t *testing.T) {
	var sentences []string
	for i := 0; i < 12; i++ {
		sentences = append(sentences, strings.Repeat("alpha beta gamma ", 5)+"done.")
	}
	text := strings.Join(sentences, " ")

	got := Chunk(text, 120)

	// Joining chunks and collapsing whitespace must reproduce the input's
	// content: splitting only ever removes boundary whitespace.
	joined := strings.Join(strings.Fields(strings.Join(got, " ")), " ")
	want := strings.Join(strings.Fields(text), " ")
	if joined != want {
		t.Fatalf("rejoined chunks differ from input\n got: %q\nwant: %q", joined, want)
	}
}

func TestChunkOversizedSentenceSplitsAtWords(t *testing.T) {
	// One long sentence with no terminator until the very end.
	text := strings.Repeat("steady stream of words without any pause ", 12) + "finally."
	got := Chunk(text, 100)
	if len(got) < 2 {
		t.Fatalf("Chunk() produced %d chunks, want several: %q", len(got), got)
	}
	for i, c := range got {
		if utf8.RuneCountInString(c) > 100 {
			t.Fatalf("chunk %d has %d chars, want <= 100", i, utf8.RuneCountInString(c))
		}
		if strings.HasPrefix(c, " ") || strings.HasSuffix(c, " ") {
			t.Fatalf("chunk %d not trimmed: %q", i, c)
		}
	}
}

func TestChunkOversizedWordEmittedVerbatim(t *testing.T) {
	long := strings.Repeat("x", 40)
	text := "Short head. " + long + " short tail words here. And one more sentence to push past the limit."
	got := Chunk(text, 20)

	found := false
	for _, c := range got {
		if c == long {
			found = true
		}
	}
	if !found {
		t.Fatalf("Chunk() = %q, want the 40-char word emitted verbatim as its own chunk", got)
	}
}

func TestChunkDeterministic(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 30)
	a := Chunk(text, 300)
	b := Chunk(text, 300)
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ between runs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs between runs: %q vs %q", i, a[i], b[i])
		}
	}
}

func TestChunkThreeMediumSentences(t *testing.T) {
	s := strings.Repeat("sample words flowing on ", 9) // 216 chars
	text := s[:215] + ". " + s[:215] + "! " + s[:215] + "?"

	got := Chunk(text, 300)
	if len(got) != 3 {
		t.Fatalf("Chunk() produced %d chunks, want 3", len(got))
	}
	for i, c := range got {
		if utf8.RuneCountInString(c) > 300 {
			t.Fatalf("chunk %d has %d chars, want <= 300", i, utf8.RuneCountInString(c))
		}
	}
}
