// Package models defines core data structures for documents, chunks, and answers.
package models

// Document is a raw text loaded from the corpus. Source is the identifier
// (usually the filename) that retrieved passages are attributed to.
type Document struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// Chunk is a bounded passage of a document used as the unit of retrieval.
// Index is the chunk's position within its document (document order).
type Chunk struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Text   string `json:"text"`
	Index  int    `json:"index"`
}

// Passage is a retrieved chunk with its similarity score. Score semantics
// depend on the index metric (cosine, higher is closer).
type Passage struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float32 `json:"score"`
}
