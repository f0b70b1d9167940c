// Package chunker splits document text into overlapping passages.
package chunker

import (
	"fmt"

	"github.com/hyperjump/kotae/internal/models"
)

// Chunker splits text into overlapping rune-windowed chunks, preferring to
// cut at paragraph, then sentence, then word boundaries before falling back
// to a hard cut. Cut points never move below the window midpoint, so no
// chunk shrinks past half the configured size.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in runes).
// Overlap must be smaller than size; config validation enforces this before
// a chunker is built.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Split cuts text into chunks stamped with source and their document-order
// index. Empty text yields no chunks; any non-empty text yields at least one.
// Each chunk after the first begins chunkOverlap runes before its
// predecessor's end, so dropping the first chunkOverlap runes of every chunk
// after the first and concatenating reconstructs text exactly.
func (c *Chunker) Split(text, source string) []models.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	var chunks []models.Chunk
	i := 0
	for idx := 0; ; idx++ {
		end := i + c.chunkSize
		if end >= len(runes) {
			chunks = append(chunks, c.chunk(source, idx, runes[i:]))
			break
		}
		cut := c.cutPoint(runes, i, end)
		chunks = append(chunks, c.chunk(source, idx, runes[i:cut]))
		i = cut - c.chunkOverlap
	}
	return chunks
}

func (c *Chunker) chunk(source string, idx int, text []rune) models.Chunk {
	return models.Chunk{
		ID:     fmt.Sprintf("%s:%d", source, idx),
		Source: source,
		Text:   string(text),
		Index:  idx,
	}
}

// cutPoint returns the index to cut the chunk starting at start whose hard
// limit is end. It scans backward for a paragraph break, then a sentence
// end, then a word boundary, never dropping below the window midpoint (or
// below start+overlap, which would stall the window).
func (c *Chunker) cutPoint(runes []rune, start, end int) int {
	low := start + c.chunkSize/2
	if m := start + c.chunkOverlap + 1; m > low {
		low = m
	}
	if p := lastParagraphBreak(runes, low, end); p > 0 {
		return p
	}
	if p := lastSentenceEnd(runes, low, end); p > 0 {
		return p
	}
	if p := lastWordBoundary(runes, low, end); p > 0 {
		return p
	}
	return end
}

// lastParagraphBreak returns the index just past the last "\n\n" whose end
// lies in (low, end], or 0 if none.
func lastParagraphBreak(runes []rune, low, end int) int {
	for p := end; p > low; p-- {
		if runes[p-1] == '\n' && p >= 2 && runes[p-2] == '\n' {
			return p
		}
	}
	return 0
}

// lastSentenceEnd returns the index just past the last sentence-terminating
// punctuation followed by whitespace (or the window end) in (low, end], or 0.
func lastSentenceEnd(runes []rune, low, end int) int {
	for p := end; p > low; p-- {
		r := runes[p-1]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if p == len(runes) || isSpace(runes[p]) {
			return p
		}
	}
	return 0
}

// lastWordBoundary returns the index just past the last whitespace rune in
// (low, end], or 0 if the window contains a single unbroken word.
func lastWordBoundary(runes []rune, low, end int) int {
	for p := end; p > low; p-- {
		if isSpace(runes[p-1]) {
			return p
		}
	}
	return 0
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
