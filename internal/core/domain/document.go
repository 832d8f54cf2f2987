package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

type Document struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	MimeType    string         `json:"mime_type"`
	StoragePath string         `json:"storage_path"`
	Status      DocumentStatus `json:"status"`
	ClauseCount int            `json:"clause_count"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	AnalyzedAt  *time.Time     `json:"analyzed_at,omitempty"`
}

// Analysis is the outcome of a full analyze pass over one document.
type Analysis struct {
	DocumentID string     `json:"document_id"`
	Clauses    int        `json:"clauses"`
	Flags      []RiskFlag `json:"flags"`
}

// Report is the presentation model consumed by report renderers.
type Report struct {
	Document *Document
	DocID    string
	Clauses  []Clause
	Flags    []RiskFlag
}

type RenderedReport struct {
	ContentType string
	Filename    string
	Body        []byte
}
