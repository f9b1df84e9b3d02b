package redact

import (
	"regexp"
)

// Scrubber masks contact identifiers in free text before it is persisted.
// Proposals keep the raw chat excerpt they were extracted from; health talk
// routinely carries phone numbers, emails and national ids ("call Dr. Reyes
// at 555-867-5309") that have no business living in the excerpt column.
type Scrubber struct {
	rules []compiledRule
}

type compiledRule struct {
	rule Rule
	re   *regexp.Regexp
}

func NewScrubber(rules []Rule) (*Scrubber, error) {
	var compiled []compiledRule
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, compiledRule{rule: rule, re: re})
	}
	return &Scrubber{rules: compiled}, nil
}

// Default returns a scrubber with the built-in rule set. The built-in
// patterns are compiled at init; a broken table is a programming error.
func Default() *Scrubber {
	s, err := NewScrubber(DefaultRules())
	if err != nil {
		panic(err)
	}
	return s
}

// Scrub replaces every match with its rule's mask. Nil-safe: a nil scrubber
// passes text through untouched.
func (s *Scrubber) Scrub(text string) string {
	if s == nil || text == "" {
		return text
	}
	for _, rule := range s.rules {
		text = rule.re.ReplaceAllString(text, rule.rule.Mask)
	}
	return text
}

// Contains reports whether text matches any rule, without masking.
func (s *Scrubber) Contains(text string) bool {
	if s == nil || text == "" {
		return false
	}
	for _, rule := range s.rules {
		if rule.re.MatchString(text) {
			return true
		}
	}
	return false
}
