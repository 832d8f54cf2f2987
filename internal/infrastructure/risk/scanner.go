package risk

import (
	"sync/atomic"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

// Scanner flags risky clause language. It has no side effects; the rule set
// can be swapped at runtime by StartWatch.
type Scanner struct {
	rules atomic.Pointer[RuleSet]
}

func NewScanner(set *RuleSet) *Scanner {
	if set == nil {
		set = DefaultRuleSet()
	}
	s := &Scanner{}
	s.rules.Store(set)
	return s
}

func (s *Scanner) RuleSet() *RuleSet {
	return s.rules.Load()
}

func (s *Scanner) Replace(set *RuleSet) {
	if set != nil {
		s.rules.Store(set)
	}
}

func (s *Scanner) Scan(clauses []domain.Clause) []domain.RiskFlag {
	set := s.rules.Load()
	flags := make([]domain.RiskFlag, 0)
	for _, clause := range clauses {
		for _, rule := range set.Rules {
			loc := rule.Pattern.FindStringIndex(clause.Text)
			if loc == nil {
				continue
			}
			meta := set.Library[rule.Tag]
			flags = append(flags, domain.RiskFlag{
				ClauseID:   clause.ID,
				Tag:        rule.Tag,
				MatchText:  clause.Text[loc[0]:loc[1]],
				Impact:     meta.Impact,
				Likelihood: meta.Likelihood,
				Factors:    append([]string(nil), meta.Factors...),
				Mitigation: append([]string(nil), meta.Mitigation...),
			})
		}
	}
	return flags
}
