package domain

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// LookupNormalizer produces the canonical keys stored in NormalizedEmail.
type LookupNormalizer interface {
	NormalizeName(name string) string
	NormalizeEmail(email string) string
}

// LowerInvariantNormalizer lower-cases without locale-specific rules.
type LowerInvariantNormalizer struct{}

func (LowerInvariantNormalizer) NormalizeName(name string) string {
	if name == "" {
		return ""
	}
	return cases.Lower(language.Und).String(strings.TrimSpace(name))
}

func (n LowerInvariantNormalizer) NormalizeEmail(email string) string {
	return n.NormalizeName(email)
}
