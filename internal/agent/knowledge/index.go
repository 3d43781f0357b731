// Package knowledge implements the knowledge-resolution policy: a static
// local topic index consulted first, with a bounded external lookup as the
// fallback for knowledge-seeking utterances.
package knowledge

import (
	"sort"
	"strings"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
)

// Index is the process-wide local knowledge snapshot: topic keyword → fact
// text, loaded once at startup and read-only thereafter. Topic keys are
// compiled into an Aho-Corasick automaton so an utterance is scanned for all
// topics in one pass.
type Index struct {
	ac     ahocorasick.AhoCorasick
	topics []string
	facts  map[string]string
}

// NewIndex compiles the topic→fact entries. Keys are matched
// case-insensitively as substrings of the utterance.
func NewIndex(entries map[string]string) *Index {
	topics := make([]string, 0, len(entries))
	facts := make(map[string]string, len(entries))
	for topic, fact := range entries {
		key := strings.ToLower(strings.TrimSpace(topic))
		if key == "" || fact == "" {
			continue
		}
		topics = append(topics, key)
		facts[key] = fact
	}
	sort.Strings(topics)

	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  false,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
	})

	return &Index{
		ac:     builder.Build(topics),
		topics: topics,
		facts:  facts,
	}
}

// Match scans the utterance for indexed topics and returns the leftmost
// longest hit. A local hit always wins over external lookup.
func (i *Index) Match(utterance string) (topic, fact string, ok bool) {
	matches := i.ac.FindAll(strings.ToLower(utterance))
	if len(matches) == 0 {
		return "", "", false
	}
	topic = i.topics[matches[0].Pattern()]
	return topic, i.facts[topic], true
}

// Topics returns the indexed topic keys, sorted.
func (i *Index) Topics() []string {
	out := make([]string, len(i.topics))
	copy(out, i.topics)
	return out
}

// Len reports the number of indexed entries.
func (i *Index) Len() int {
	return len(i.topics)
}

// DefaultEntries is the built-in sage knowledge base, used when no override
// is configured.
func DefaultEntries() map[string]string {
	return map[string]string{
		"northern isles": "The Northern Isles are a mystical archipelago shrouded in ancient magic, where Adam has dwelled for centuries studying the arcane arts.",
		"gaming genres":  "Action, Adventure, RPG, Strategy, Simulation, Puzzle, Sports, Racing, Fighting, Shooter, Platform, Survival, Horror, and Indie games each offer unique experiences.",
		"magic":          "Magic in the Northern Isles flows through ley lines and crystal formations, channeled through ancient runes and spoken incantations.",
		"wisdom":         "True wisdom comes not from knowing all answers, but from understanding which questions to ask and when to listen.",
		"time":           "Time flows differently in the Northern Isles - what seems like moments can be years, and centuries can pass like heartbeats.",
	}
}

// ParseEntries parses a "topic=fact;topic=fact" override string. Malformed
// pairs are skipped; an empty input yields nil so callers fall back to the
// defaults.
func ParseEntries(s string) map[string]string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	entries := make(map[string]string)
	for _, pair := range strings.Split(s, ";") {
		topic, fact, found := strings.Cut(pair, "=")
		topic = strings.TrimSpace(topic)
		fact = strings.TrimSpace(fact)
		if !found || topic == "" || fact == "" {
			continue
		}
		entries[topic] = fact
	}
	if len(entries) == 0 {
		return nil
	}
	return entries
}
