// ABOUTME: TextChunker packs long input into paragraph-aligned chunks for extraction
// ABOUTME: Implements paragraph → sentence → rune fallbacks so no chunk exceeds the limit
package core

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the largest chunk handed to the extractor in one call
const DefaultChunkSize = 4000

// TextChunker splits text on paragraph boundaries
type TextChunker struct {
	maxChars int
}

// NewTextChunker creates a TextChunker; maxChars <= 0 uses DefaultChunkSize
func NewTextChunker(maxChars int) *TextChunker {
	if maxChars <= 0 {
		maxChars = DefaultChunkSize
	}
	return &TextChunker{maxChars: maxChars}
}

// Split packs consecutive paragraphs into chunks of at most maxChars runes.
// A paragraph that alone exceeds the limit is split by sentences, and a
// sentence that still exceeds it is cut by runes.
func (tc *TextChunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []string
	var current strings.Builder
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}
	appendPiece := func(piece, sep string) {
		if current.Len() > 0 && utf8.RuneCountInString(current.String())+len(sep)+utf8.RuneCountInString(piece) > tc.maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(piece)
	}

	for _, para := range splitParagraphs(text) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if utf8.RuneCountInString(para) <= tc.maxChars {
			appendPiece(para, "\n\n")
			continue
		}
		flush()
		for _, sent := range splitSentences(para) {
			for _, piece := range splitRunes(sent, tc.maxChars) {
				appendPiece(piece, " ")
			}
		}
		flush()
	}
	flush()
	return chunks
}

// splitParagraphs splits text by blank lines
func splitParagraphs(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
}

// splitSentences splits text by ". " (period + space)
func splitSentences(text string) []string {
	sentences := strings.Split(text, ". ")

	var result []string
	for i, sent := range sentences {
		sent = strings.TrimSpace(sent)
		if sent == "" {
			continue
		}
		// Add back the period removed by the split
		if i < len(sentences)-1 && !strings.HasSuffix(sent, ".") {
			sent = sent + "."
		}
		result = append(result, sent)
	}
	return result
}

func splitRunes(s string, n int) []string {
	runes := []rune(s)
	if len(runes) <= n {
		return []string{s}
	}
	var parts []string
	for len(runes) > n {
		parts = append(parts, string(runes[:n]))
		runes = runes[n:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
