package chunker

import (
	"strings"
	"testing"
)

func reconstruct(chunks []string, overlap int) string {
	var b strings.Builder
	for i, ch := range chunks {
		runes := []rune(ch)
		if i == 0 {
			b.WriteString(ch)
			continue
		}
		b.WriteString(string(runes[overlap:]))
	}
	return b.String()
}

func TestChunker_Reconstruction(t *testing.T) {
	texts := []string{
		strings.Repeat("The setback for RS-1 lots is six meters. ", 120),
		"First paragraph about zoning.\n\nSecond paragraph about setbacks.\n\n" +
			strings.Repeat("Detail sentence number one. Detail sentence number two. ", 40),
		strings.Repeat("nowhitespaceatall", 100),
	}
	for ti, text := range texts {
		c := NewChunker(200, 30)
		chunks := c.Split(text, "doc")
		if len(chunks) == 0 {
			t.Fatalf("text %d: expected chunks", ti)
		}
		var parts []string
		for _, ch := range chunks {
			parts = append(parts, ch.Text)
		}
		if got := reconstruct(parts, 30); got != text {
			t.Errorf("text %d: reconstruction mismatch (got %d runes, want %d)", ti, len(got), len(text))
		}
	}
}

func TestChunker_MaxSizeAndOverlap(t *testing.T) {
	text := strings.Repeat("Zoning bylaws regulate land use in every district of the city. ", 100)
	c := NewChunker(250, 40)
	chunks := c.Split(text, "bylaw.pdf")
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if n := len([]rune(ch.Text)); n > 250 {
			t.Errorf("chunk %d has %d runes, exceeds size", i, n)
		}
		if ch.Source != "bylaw.pdf" {
			t.Errorf("chunk %d source=%s", i, ch.Source)
		}
		if ch.Index != i {
			t.Errorf("chunk %d index=%d", i, ch.Index)
		}
	}
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Text)
		cur := []rune(chunks[i].Text)
		tail := string(prev[len(prev)-40:])
		head := string(cur[:40])
		if tail != head {
			t.Errorf("chunks %d/%d do not share %d-rune overlap", i-1, i, 40)
		}
	}
}

func TestChunker_PrefersParagraphBreak(t *testing.T) {
	text := strings.Repeat("a", 150) + "\n\n" + strings.Repeat("b", 150)
	c := NewChunker(200, 20)
	chunks := c.Split(text, "d")
	if len(chunks) < 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if !strings.HasSuffix(chunks[0].Text, "\n\n") {
		t.Errorf("first chunk should end at the paragraph break, ends with %q",
			chunks[0].Text[len(chunks[0].Text)-5:])
	}
}

func TestChunker_PrefersSentenceEnd(t *testing.T) {
	text := "This is the first sentence of the bylaw summary, and it keeps going for a while to fill the window. Second sentence follows here with more words than strictly needed. Third one closes it out with a little extra."
	c := NewChunker(120, 20)
	chunks := c.Split(text, "d")
	if len(chunks) < 2 {
		t.Fatalf("expected 2+ chunks, got %d", len(chunks))
	}
	first := strings.TrimRight(chunks[0].Text, " ")
	if !strings.HasSuffix(first, ".") {
		t.Errorf("first chunk should end at a sentence boundary, got %q", chunks[0].Text)
	}
}

func TestChunker_Empty(t *testing.T) {
	c := NewChunker(100, 10)
	if chunks := c.Split("", "d"); chunks != nil {
		t.Errorf("empty text should return nil, got %d chunks", len(chunks))
	}
}

func TestChunker_ShortTextSingleChunk(t *testing.T) {
	c := NewChunker(1000, 150)
	chunks := c.Split("short", "note.txt")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "short" || chunks[0].ID != "note.txt:0" {
		t.Errorf("unexpected chunk %+v", chunks[0])
	}
}
