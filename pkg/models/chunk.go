package models

// Chunk is a piece of source text stored in the vector index.
type Chunk struct {
	ID        int64     `json:"id"`
	Source    string    `json:"source"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
}

// ScoredChunk is a retrieved chunk with its cosine similarity to the query.
type ScoredChunk struct {
	Chunk
	Score float64 `json:"score"`
}
