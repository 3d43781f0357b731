package knowledge

import (
	"strings"
	"unicode"
)

// Classifier decides whether an utterance is knowledge-seeking. The decision
// boundary of the original heuristic is not authoritative, so it lives behind
// this interface; swap in a model-backed classifier without touching the
// workflow.
type Classifier interface {
	IsKnowledgeSeeking(utterance string) bool
}

// indicatorPhrases are explicit factual-reference patterns.
var indicatorPhrases = []string{
	"what is", "who is", "tell me about", "explain", "define",
	"how does", "why does", "when did", "where is", "history of",
	"information about", "facts about", "details about",
}

// interrogatives are question leads checked against the first word.
var interrogatives = map[string]bool{
	"what": true, "who": true, "where": true, "when": true,
	"how": true, "why": true, "which": true,
}

// HeuristicClassifier pattern-matches question markers, indexed topics, and
// proper nouns outside the persona's own fiction.
type HeuristicClassifier struct {
	topics  []string
	lexicon map[string]bool
}

// NewHeuristicClassifier builds the default classifier. topics are the local
// index keys (mentioning one is always knowledge-seeking); personaLexicon
// lists proper nouns that belong to the persona's fiction and should not
// trigger an external lookup on their own.
func NewHeuristicClassifier(topics []string, personaLexicon []string) *HeuristicClassifier {
	lexicon := make(map[string]bool, len(personaLexicon))
	for _, w := range personaLexicon {
		for _, part := range strings.Fields(strings.ToLower(w)) {
			lexicon[part] = true
		}
	}
	lowered := make([]string, 0, len(topics))
	for _, t := range topics {
		lowered = append(lowered, strings.ToLower(t))
	}
	return &HeuristicClassifier{topics: lowered, lexicon: lexicon}
}

func (c *HeuristicClassifier) IsKnowledgeSeeking(utterance string) bool {
	trimmed := strings.TrimSpace(utterance)
	if trimmed == "" {
		return false
	}
	lowered := strings.ToLower(trimmed)

	for _, phrase := range indicatorPhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	for _, topic := range c.topics {
		if strings.Contains(lowered, topic) {
			return true
		}
	}

	words := strings.Fields(lowered)
	if len(words) > 0 && interrogatives[strings.Trim(words[0], "?!.,")] {
		return true
	}
	if strings.HasSuffix(trimmed, "?") {
		return true
	}

	return c.hasForeignProperNoun(trimmed)
}

// hasForeignProperNoun reports a capitalized word past the sentence start that
// is not part of the persona's known fiction.
func (c *HeuristicClassifier) hasForeignProperNoun(utterance string) bool {
	words := strings.Fields(utterance)
	for i, w := range words {
		if i == 0 {
			continue // sentence-initial capitals carry no signal
		}
		runes := []rune(strings.Trim(w, "?!.,:;\"'"))
		if len(runes) < 2 || !unicode.IsUpper(runes[0]) {
			continue
		}
		if !c.lexicon[strings.ToLower(string(runes))] {
			return true
		}
	}
	return false
}
