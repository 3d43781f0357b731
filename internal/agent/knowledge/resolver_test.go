package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/adam-npc/dialogue-core/internal/core/error"

	"github.com/adam-npc/dialogue-core/internal/agent/model"
)

type fakeLookup struct {
	text  string
	err   error
	calls int
	term  string
}

func (f *fakeLookup) Lookup(_ context.Context, term string) (string, error) {
	f.calls++
	f.term = term
	return f.text, f.err
}

func TestIndexMatchesSubstringCaseInsensitive(t *testing.T) {
	idx := NewIndex(DefaultEntries())

	topic, fact, ok := idx.Match("Tell me about MAGIC in your homeland")
	require.True(t, ok)
	assert.Equal(t, "magic", topic)
	assert.Contains(t, fact, "ley lines")

	_, _, ok = idx.Match("nothing relevant here")
	assert.False(t, ok)
}

func TestIndexPrefersLongestLeftmostMatch(t *testing.T) {
	idx := NewIndex(map[string]string{
		"isles":          "short entry",
		"northern isles": "long entry",
	})

	topic, fact, ok := idx.Match("what do you know of the northern isles?")
	require.True(t, ok)
	assert.Equal(t, "northern isles", topic)
	assert.Equal(t, "long entry", fact)
}

func TestResolvePrefersLocalOverExternal(t *testing.T) {
	lookup := &fakeLookup{text: "external answer"}
	r := NewResolver(NewIndex(DefaultEntries()), lookup, 0)

	res := r.Resolve(context.Background(), ExtractQuery("what is magic?"))

	assert.Equal(t, model.SourceLocal, res.Source)
	assert.Equal(t, "magic", res.MatchedTopic)
	assert.Zero(t, lookup.calls, "local match short-circuits external lookup")
}

func TestResolveFallsBackToExternal(t *testing.T) {
	lookup := &fakeLookup{text: "Numenar is a fictional realm."}
	r := NewResolver(NewIndex(DefaultEntries()), lookup, 0)

	res := r.Resolve(context.Background(), ExtractQuery("What is the capital of Numenar?"))

	require.Equal(t, model.SourceExternal, res.Source)
	assert.Equal(t, "capital of numenar", lookup.term)
	assert.Equal(t, "Numenar is a fictional realm.", res.Text)
}

func TestResolveReturnsNoneWhenLookupFails(t *testing.T) {
	for name, lookup := range map[string]*fakeLookup{
		"not found":   {err: errx.ErrNotFound},
		"timeout":     {err: errx.ErrTimeout},
		"unavailable": {err: errx.ErrUnavailable},
		"empty":       {text: ""},
	} {
		t.Run(name, func(t *testing.T) {
			r := NewResolver(NewIndex(DefaultEntries()), lookup, 0)
			res := r.Resolve(context.Background(), ExtractQuery("What is the capital of Numenar?"))

			assert.Equal(t, model.SourceNone, res.Source)
			assert.Equal(t, 1, lookup.calls, "exactly one lookup attempt")
		})
	}
}

func TestResolveWithoutLookupService(t *testing.T) {
	r := NewResolver(NewIndex(DefaultEntries()), nil, 0)
	res := r.Resolve(context.Background(), ExtractQuery("What is the capital of Numenar?"))
	assert.Equal(t, model.SourceNone, res.Source)
}

func TestClassifier(t *testing.T) {
	idx := NewIndex(DefaultEntries())
	c := NewHeuristicClassifier(idx.Topics(), []string{"Adam", "Northern Isles"})

	seeking := []string{
		"What is the capital of Numenar?",
		"tell me about magic",
		"who is the king of the isles",
		"Explain how ley lines work",
		"does time pass quickly here",        // indexed topic
		"I visited Numenar last year",        // foreign proper noun
		"anything about this place, really?", // trailing question mark
	}
	for _, u := range seeking {
		assert.True(t, c.IsKnowledgeSeeking(u), "expected knowledge-seeking: %q", u)
	}

	notSeeking := []string{
		"",
		"   ",
		"Hello there, good morning to you.",
		"Thanks, that was helpful.",
		"Greetings Adam, I bring news.", // persona lexicon absorbs the proper noun
	}
	for _, u := range notSeeking {
		assert.False(t, c.IsKnowledgeSeeking(u), "expected not knowledge-seeking: %q", u)
	}
}

func TestExtractQuery(t *testing.T) {
	q := ExtractQuery("What is the capital of Numenar?")
	assert.Equal(t, "What is the capital of Numenar?", q.Utterance)
	assert.Equal(t, []string{"capital", "numenar"}, q.Terms)
	assert.Equal(t, "capital of numenar", q.TopicGuess)

	q = ExtractQuery("tell me about magic")
	assert.Equal(t, "magic", q.TopicGuess)
}

func TestParseEntries(t *testing.T) {
	entries := ParseEntries("runes=Runes channel raw magic; ley lines = Ley lines carry power;;broken")
	require.Len(t, entries, 2)
	assert.Equal(t, "Runes channel raw magic", entries["runes"])
	assert.Equal(t, "Ley lines carry power", entries["ley lines"])

	assert.Nil(t, ParseEntries(""))
	assert.Nil(t, ParseEntries("nonsense-without-separator"))
}
