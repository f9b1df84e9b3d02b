package redact

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Rule is one maskable identifier class. Kind labels the class for audit
// output; Mask is the literal replacement.
type Rule struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind"`
	Pattern string `yaml:"pattern"`
	Mask    string `yaml:"mask"`
	Enabled bool   `yaml:"enabled"`
}

// LoadRules reads a YAML rule file, falling back to the built-ins when no
// path is configured.
func LoadRules(path string) ([]Rule, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var cfg struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Rules) == 0 {
		return nil, errors.New("no redaction rules configured")
	}
	return cfg.Rules, nil
}

// DefaultRules covers the identifier classes that show up in chat excerpts.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "Email", Kind: "email", Pattern: `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`, Mask: "***@***", Enabled: true},
		{Name: "Phone", Kind: "phone", Pattern: `\b\d{3}-\d{3}-\d{4}\b|\b\(\d{3}\)\s?\d{3}-\d{4}\b`, Mask: "(***) ***-****", Enabled: true},
		{Name: "SSN", Kind: "national_id", Pattern: `\b\d{3}-\d{2}-\d{4}\b`, Mask: "***-**-****", Enabled: true},
		{Name: "CreditCard", Kind: "payment_card", Pattern: `\b(?:\d[ -]?){13,16}\b`, Mask: "****-****-****-****", Enabled: true},
	}
}
