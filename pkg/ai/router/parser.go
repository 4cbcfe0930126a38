package router

import (
	"strings"
)

// Prefix constants - ORDER MATTERS for parsing (check longer prefix first)
const (
	PrefixBypass  = "/bypass"
	PrefixAdapter = "/adapter:"
)

// ParsedPrompt contains routing information extracted from a message.
type ParsedPrompt struct {
	OriginalPrompt string // Full original message
	CleanPrompt    string // Message without directives
	Bypass         bool   // Skip retrieval
	AdapterID      string // Adapter requested inline
}

// Parse extracts leading routing directives. Directives may be chained.
// Supports:
//   - /bypass <prompt> → never consult the document index
//   - /adapter:<id> <prompt> → answer with a fine-tuned adapter
//   - /bypass/adapter:<id> <prompt> → both
//   - <prompt> → no directive
func Parse(prompt string) *ParsedPrompt {
	parsed := &ParsedPrompt{OriginalPrompt: prompt}
	rest := strings.TrimSpace(prompt)

	for {
		lower := strings.ToLower(rest)

		if strings.HasPrefix(lower, PrefixAdapter) {
			id, remainder := extractKeyAndPrompt(rest[len(PrefixAdapter):])
			if id == "" {
				break
			}
			parsed.AdapterID = id
			rest = remainder
			continue
		}

		if strings.HasPrefix(lower, PrefixBypass) {
			after := rest[len(PrefixBypass):]
			if after != "" && after[0] != ' ' && after[0] != '/' {
				break // "/bypassed" is a word, not a directive
			}
			parsed.Bypass = true
			rest = strings.TrimSpace(after)
			continue
		}

		break
	}

	parsed.CleanPrompt = rest
	if !parsed.Bypass && parsed.AdapterID == "" {
		parsed.CleanPrompt = prompt
	}
	return parsed
}

// extractKeyAndPrompt splits "key prompt" (or "key/next-directive") into
// (key, prompt).
func extractKeyAndPrompt(rest string) (string, string) {
	end := strings.IndexAny(rest, " /")
	if end == -1 {
		return rest, ""
	}
	return rest[:end], strings.TrimSpace(rest[end:])
}

// IsEmpty returns true if the clean prompt is empty
func (p *ParsedPrompt) IsEmpty() bool {
	return strings.TrimSpace(p.CleanPrompt) == ""
}
