// Package fingerprint derives stable content keys from generation requests.
//
// A request's exact-match key is a hash of its canonical form; its token
// signature feeds the cache's near-duplicate lookup. Two requests with equal
// canonical forms always produce equal keys, regardless of field ordering or
// incidental whitespace in the prompt.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Request is the provider-agnostic description of a generation request.
// Payload details beyond these fields are opaque to the scheduler and cache.
type Request struct {
	Provider string            `json:"provider"`
	Model    string            `json:"model"`
	Kind     string            `json:"kind"` // audio, image, video
	Prompt   string            `json:"prompt"`
	Params   map[string]string `json:"params,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
}

// Canonical returns the normalized textual form of a request.
// Normalization: provider/model/kind lowercased, prompt lowercased with
// whitespace collapsed, params sorted by key. Tags are excluded - they bucket
// cache entries but do not change request identity.
func Canonical(req Request) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(strings.TrimSpace(req.Provider)))
	b.WriteByte('|')
	b.WriteString(strings.ToLower(strings.TrimSpace(req.Model)))
	b.WriteByte('|')
	b.WriteString(strings.ToLower(strings.TrimSpace(req.Kind)))
	b.WriteByte('|')
	b.WriteString(normalizePrompt(req.Prompt))

	if len(req.Params) > 0 {
		keys := make([]string, 0, len(req.Params))
		for k := range req.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteByte('|')
			b.WriteString(strings.ToLower(k))
			b.WriteByte('=')
			b.WriteString(strings.TrimSpace(req.Params[k]))
		}
	}

	return b.String()
}

// Key returns the exact-match cache key for a request: the hex-encoded
// SHA-256 of its canonical form.
func Key(req Request) string {
	sum := sha256.Sum256([]byte(Canonical(req)))
	return hex.EncodeToString(sum[:])
}

// maxSignatureTokens bounds the similarity signature so that scoring stays
// cheap regardless of prompt length.
const maxSignatureTokens = 256

// Signature returns the deduplicated, sorted token set of the normalized
// prompt, used for near-duplicate matching.
func Signature(req Request) []string {
	tokens := strings.Fields(normalizePrompt(req.Prompt))
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
		if len(out) == maxSignatureTokens {
			break
		}
	}
	sort.Strings(out)
	return out
}

// normalizePrompt lowercases and collapses all runs of whitespace to single
// spaces. strings.Fields handles tabs and newlines uniformly.
func normalizePrompt(prompt string) string {
	return strings.Join(strings.Fields(strings.ToLower(prompt)), " ")
}
