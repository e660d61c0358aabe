// Package redact scrubs secret-looking patterns from free-text fields
// before they are broadcast or logged.
package redact

import "regexp"

// pattern names a compiled regex so logs can record which kind of
// secret matched without ever logging the matched text itself.
type pattern struct {
	name string
	re   *regexp.Regexp
}

var patterns = []pattern{
	{"private_key_pem", regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`)},
	{"aws_access_key", regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{"bearer_token", regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9\-_.]{16,}\b`)},
	{"api_key_assignment", regexp.MustCompile(`(?i)\b(api[_-]?key|secret|token|password)\s*[:=]\s*['"]?[A-Za-z0-9\-_.]{12,}['"]?`)},
	{"hex_seed_phrase", regexp.MustCompile(`\b0x[0-9a-fA-F]{32,}\b`)},
	{"ed25519_seed", regexp.MustCompile(`\b[A-Za-z0-9+/]{43}=\b`)},
}

// Result carries the redacted text plus forensic counters (never the
// matched secret text itself).
type Result struct {
	Text     string
	Count    int
	Matched  []string // pattern names that fired, de-duplicated
}

// Redact scans text for known secret-shaped patterns, replacing each
// match with "[REDACTED]" and reporting how many/which kinds matched.
func Redact(text string) Result {
	out := text
	total := 0
	seen := make(map[string]bool)
	var matched []string

	for _, p := range patterns {
		matches := p.re.FindAllStringIndex(out, -1)
		if len(matches) == 0 {
			continue
		}
		total += len(matches)
		if !seen[p.name] {
			seen[p.name] = true
			matched = append(matched, p.name)
		}
		out = p.re.ReplaceAllString(out, "[REDACTED]")
	}

	return Result{Text: out, Count: total, Matched: matched}
}
