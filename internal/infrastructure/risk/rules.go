package risk

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

type ruleFile struct {
	Rules []struct {
		Tag     string `yaml:"tag"`
		Pattern string `yaml:"pattern"`
	} `yaml:"rules"`
	Library map[string]Metadata `yaml:"library"`
}

// Metadata is the fixed description attached to every flag of a tag.
type Metadata struct {
	Impact     string   `yaml:"impact"`
	Likelihood string   `yaml:"likelihood"`
	Factors    []string `yaml:"factors"`
	Mitigation []string `yaml:"mitigation"`
}

type Rule struct {
	Tag     domain.RiskTag
	Pattern *regexp.Regexp
}

// RuleSet is an immutable, validated rule library.
type RuleSet struct {
	Rules   []Rule
	Library map[domain.RiskTag]Metadata
}

func DefaultRuleSet() *RuleSet {
	set, err := ParseRuleSet(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("risk: embedded rules are invalid: %v", err))
	}
	return set
}

func LoadRuleSet(path string) (*RuleSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRuleSet(raw)
}

func ParseRuleSet(raw []byte) (*RuleSet, error) {
	var file ruleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse rules yaml: %w", err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("rules file defines no rules")
	}

	set := &RuleSet{
		Rules:   make([]Rule, 0, len(file.Rules)),
		Library: make(map[domain.RiskTag]Metadata, len(file.Library)),
	}
	for tag, meta := range file.Library {
		set.Library[domain.RiskTag(tag)] = meta
	}
	for i, r := range file.Rules {
		tag := strings.TrimSpace(r.Tag)
		if tag == "" {
			return nil, fmt.Errorf("rule %d: tag is required", i)
		}
		if _, ok := set.Library[domain.RiskTag(tag)]; !ok {
			return nil, fmt.Errorf("rule %d: tag %q has no library entry", i, tag)
		}
		if strings.TrimSpace(r.Pattern) == "" {
			return nil, fmt.Errorf("rule %d (%s): pattern is required", i, tag)
		}
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): compile pattern: %w", i, tag, err)
		}
		set.Rules = append(set.Rules, Rule{Tag: domain.RiskTag(tag), Pattern: re})
	}
	return set, nil
}
