package models

// Passage is a contiguous span of transcript text indexed independently for retrieval.
type Passage struct {
	Index     int       `json:"index"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
	// Similarity is only set on passages returned by a query.
	Similarity float32 `json:"similarity,omitempty"`
}

// AskResponse is one answered question with the passages it was grounded on.
type AskResponse struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Sources  []Passage `json:"sources"`
}
