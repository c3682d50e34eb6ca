// Package textseg splits synthesis text into model-sized chunks at
// sentence boundaries so long inputs can be generated sequentially and
// concatenated without audible mid-sentence seams.
package textseg

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxChunkChars is the largest chunk the synthesis model handles
// well in one pass.
const DefaultMaxChunkChars = 300

var sentenceEnd = regexp.MustCompile(`[.!?]+`)

// Chunk splits text into ordered segments of at most maxLen characters,
// preferring sentence boundaries and falling back to word boundaries for
// oversized sentences. It is a pure function: same input, same output.
//
// Lengths are measured in runes to match how callers cap input text. A
// single word longer than maxLen is emitted verbatim as its own chunk
// rather than split mid-word.
func Chunk(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultMaxChunkChars
	}
	if utf8.RuneCountInString(text) <= maxLen {
		return []string{text}
	}

	var chunks []string
	current := ""
	for _, sentence := range splitSentences(text) {
		if current != "" && utf8.RuneCountInString(current)+utf8.RuneCountInString(sentence) > maxLen {
			chunks = append(chunks, strings.TrimSpace(current))
			current = sentence
		} else {
			current += sentence
		}
	}
	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}

	// Second pass: a single sentence can still exceed the cap.
	var final []string
	for _, c := range chunks {
		if utf8.RuneCountInString(c) <= maxLen {
			final = append(final, c)
			continue
		}
		final = append(final, splitWords(c, maxLen)...)
	}
	return final
}

// splitSentences cuts text after every run of sentence punctuation,
// keeping the punctuation attached to its sentence. Trailing text with no
// terminator is returned as a final element.
func splitSentences(text string) []string {
	var out []string
	last := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		out = append(out, text[last:loc[1]])
		last = loc[1]
	}
	if last < len(text) {
		out = append(out, text[last:])
	}
	return out
}

func splitWords(text string, maxLen int) []string {
	var out []string
	sub := ""
	for _, word := range strings.Fields(text) {
		switch {
		case sub == "":
			sub = word
		case utf8.RuneCountInString(sub)+1+utf8.RuneCountInString(word) > maxLen:
			out = append(out, sub)
			sub = word
		default:
			sub += " " + word
		}
	}
	if sub != "" {
		out = append(out, sub)
	}
	return out
}
