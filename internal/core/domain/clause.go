package domain

// Clause is a contiguous, addressable unit of document text.
// IDs are assigned as c1, c2, ... in document order by the segmenter.
type Clause struct {
	ID         string `json:"clause_id"`
	Text       string `json:"text"`
	DocumentID string `json:"doc_id,omitempty"`
}

type RiskTag string

const (
	TagUnlimitedLiability RiskTag = "UnlimitedLiability"
	TagAutoRenewal        RiskTag = "AutoRenewal"
	TagIndemnityMention   RiskTag = "IndemnityMention"
)

type RiskFlag struct {
	ClauseID   string   `json:"clause_id"`
	Tag        RiskTag  `json:"tag"`
	MatchText  string   `json:"match_text"`
	Impact     string   `json:"impact"`
	Likelihood string   `json:"likelihood"`
	Factors    []string `json:"factors"`
	Mitigation []string `json:"mitigation"`
}
