package rag

import (
	"strings"
	"unicode"
)

// DefaultKeywords are document and domain terms that signal a question about
// the indexed knowledge base.
var DefaultKeywords = []string{
	"document", "documents", "policy", "policies", "procedure", "procedures",
	"manual", "handbook", "guideline", "guidelines", "report", "contract",
	"invoice", "company", "knowledge base", "according to", "our docs",
	"sop", "pdf", "file",
}

var greetings = []string{
	"hi", "hello", "hey", "yo", "good morning", "good afternoon", "good evening",
	"thanks", "thank you", "halo", "hai", "selamat pagi",
}

var questionPrefixes = []string{
	"what", "how", "why", "when", "where", "who", "which",
	"explain", "describe", "summarize", "summarise", "list",
	"tell me about", "can you tell me", "is there", "are there",
}

// Gate is the lexical heuristic that decides whether a query goes through
// retrieval. Deterministic: the same query always yields the same answer.
type Gate struct {
	keywords         []string
	minQuestionWords int
	maxGreetingWords int
}

func NewGate(keywords []string, minQuestionWords int) *Gate {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	if minQuestionWords <= 0 {
		minQuestionWords = 6
	}
	cleaned := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = normalize(kw); kw != "" {
			cleaned = append(cleaned, kw)
		}
	}
	return &Gate{
		keywords:         cleaned,
		minQuestionWords: minQuestionWords,
		maxGreetingWords: 4,
	}
}

func (g *Gate) ShouldRetrieve(query string) bool {
	q := normalize(query)
	if q == "" {
		return false
	}
	words := strings.Fields(q)

	// Greetings first: "hi, what's up" never hits the index
	if len(words) <= g.maxGreetingWords && hasAnyPrefix(q, greetings) {
		return false
	}

	padded := " " + q + " "
	for _, kw := range g.keywords {
		if strings.Contains(padded, " "+kw+" ") {
			return true
		}
	}

	return len(words) >= g.minQuestionWords && hasAnyPrefix(q, questionPrefixes)
}

// normalize lowercases and replaces punctuation with single spaces.
func normalize(s string) string {
	var sb strings.Builder
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			sb.WriteRune(r)
			space = false
			continue
		}
		if !space {
			sb.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(sb.String())
}

func hasAnyPrefix(q string, prefixes []string) bool {
	for _, p := range prefixes {
		if q == p || strings.HasPrefix(q, p+" ") {
			return true
		}
	}
	return false
}
