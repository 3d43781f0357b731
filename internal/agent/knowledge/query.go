package knowledge

import (
	"strings"

	"github.com/adam-npc/dialogue-core/internal/agent/model"
)

// stopWords filtered out of candidate topic terms.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"of": true, "in": true, "on": true, "at": true, "to": true, "for": true,
	"with": true, "about": true, "as": true, "by": true, "it": true, "its": true,
	"this": true, "that": true, "these": true, "those": true, "me": true,
	"my": true, "you": true, "your": true, "i": true, "we": true, "they": true,
	"do": true, "does": true, "did": true, "can": true, "could": true,
	"what": true, "who": true, "where": true, "when": true, "how": true,
	"why": true, "which": true, "tell": true, "please": true,
}

// questionLeads are stripped from the front of an utterance to form the topic
// guess used as the external lookup term.
var questionLeads = []string{
	"what is", "what are", "who is", "who was", "where is", "when did",
	"when was", "how does", "how do", "why does", "why do", "tell me about",
	"explain", "define", "information about", "facts about", "details about",
	"history of",
}

// ExtractQuery builds the per-turn KnowledgeQuery: the raw utterance, its
// candidate topic terms (lowercased keyword tokens), and the topic guess used
// for external lookup.
func ExtractQuery(utterance string) model.KnowledgeQuery {
	lowered := strings.ToLower(strings.TrimSpace(utterance))

	var terms []string
	for _, w := range strings.Fields(lowered) {
		w = strings.Trim(w, "?!.,:;\"'")
		if w == "" || stopWords[w] {
			continue
		}
		terms = append(terms, w)
	}

	return model.KnowledgeQuery{
		Utterance:  utterance,
		Terms:      terms,
		TopicGuess: topicGuess(lowered),
	}
}

func topicGuess(lowered string) string {
	guess := strings.TrimRight(lowered, "?!. ")
	for _, lead := range questionLeads {
		if strings.HasPrefix(guess, lead+" ") {
			guess = strings.TrimSpace(strings.TrimPrefix(guess, lead))
			break
		}
	}
	guess = strings.TrimPrefix(guess, "the ")
	return strings.TrimSpace(guess)
}
