package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyStableAcrossFieldOrdering(t *testing.T) {
	a := Request{
		Provider: "ElevenLabs",
		Model:    "turbo-v2",
		Kind:     "audio",
		Prompt:   "A calm narrator  reads the\nopening scene",
		Params:   map[string]string{"voice": "adam", "speed": "1.0"},
	}
	b := Request{
		Provider: "elevenlabs",
		Model:    "Turbo-V2",
		Kind:     "AUDIO",
		Prompt:   "a calm narrator reads the opening scene",
		Params:   map[string]string{"speed": "1.0", "voice": "adam"},
	}

	assert.Equal(t, Key(a), Key(b))
	assert.Equal(t, Canonical(a), Canonical(b))
}

func TestKeyChangesWithParams(t *testing.T) {
	base := Request{Provider: "p", Model: "m", Kind: "image", Prompt: "sunset over water"}
	changed := base
	changed.Params = map[string]string{"seed": "42"}

	assert.NotEqual(t, Key(base), Key(changed))
}

func TestTagsDoNotAffectKey(t *testing.T) {
	a := Request{Provider: "p", Model: "m", Kind: "image", Prompt: "sunset", Tags: []string{"scene-1"}}
	b := Request{Provider: "p", Model: "m", Kind: "image", Prompt: "sunset", Tags: []string{"scene-2"}}

	assert.Equal(t, Key(a), Key(b))
}

func TestSignatureDeduplicatesAndSorts(t *testing.T) {
	req := Request{Prompt: "the cat and the hat and the cat"}
	assert.Equal(t, []string{"and", "cat", "hat", "the"}, Signature(req))
}

func TestSignatureBounded(t *testing.T) {
	var prompt string
	for i := 0; i < 2*maxSignatureTokens; i++ {
		prompt += " tok" + string(rune('a'+i%26)) + string(rune('a'+(i/26)%26)) + string(rune('a'+(i/676)%26))
	}
	sig := Signature(Request{Prompt: prompt})
	assert.LessOrEqual(t, len(sig), maxSignatureTokens)
}

func TestTokenOverlap(t *testing.T) {
	sim := TokenOverlap{}

	assert.Equal(t, 1.0, sim.Score([]string{"a", "b"}, []string{"a", "b"}))
	assert.Equal(t, 0.0, sim.Score([]string{"a"}, []string{"b"}))
	// {a,b,c} vs {b,c,d}: intersection 2, union 4
	assert.InDelta(t, 0.5, sim.Score([]string{"a", "b", "c"}, []string{"b", "c", "d"}), 1e-9)
	assert.Equal(t, 1.0, sim.Score(nil, nil))
	assert.Equal(t, 0.0, sim.Score([]string{"a"}, nil))
}

func TestEditDistance(t *testing.T) {
	sim := EditDistance{}

	assert.Equal(t, 1.0, sim.Score([]string{"a", "b", "c"}, []string{"a", "b", "c"}))
	assert.Equal(t, 0.0, sim.Score([]string{"a"}, []string{"b"}))
	// One substitution out of three positions
	assert.InDelta(t, 2.0/3.0, sim.Score([]string{"a", "b", "c"}, []string{"a", "x", "c"}), 1e-9)
	assert.Equal(t, 1.0, sim.Score(nil, nil))
}

func TestSimilarityOnSignatures(t *testing.T) {
	a := Signature(Request{Prompt: "a red fox jumps over the fence"})
	b := Signature(Request{Prompt: "a red fox leaps over the fence"})

	score := TokenOverlap{}.Score(a, b)
	assert.Greater(t, score, 0.7)
	assert.Less(t, score, 1.0)
}
