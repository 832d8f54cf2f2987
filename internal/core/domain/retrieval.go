package domain

const (
	MetadataDocumentID = "doc_id"
	MetadataClauseID   = "clause_id"
)

// VectorRecord is one entry of a per-document collection.
type VectorRecord struct {
	ID       string
	Vector   []float32
	Document string
	Metadata map[string]string
}

// EvidenceHit is a clause returned by nearest-neighbour retrieval.
// Distance is nil when the backing store does not report one.
type EvidenceHit struct {
	ClauseID string            `json:"clause_id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
	Distance *float64          `json:"distance"`
}

type AnsweredQuery struct {
	Question string        `json:"question"`
	Evidence []EvidenceHit `json:"evidence"`
	Answer   string        `json:"answer"`
	Degraded bool          `json:"degraded,omitempty"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
}
