// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package runner

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode"
)

// ErrOptionSyntax is returned for option strings that cannot be parsed.
var ErrOptionSyntax = errors.New("invalid option string")

// FlagOptions are "--key value", "--key=value" and "--flag" style options.
type FlagOptions struct {
	Values map[string]string
	Flags  []string
}

// ParseOptions parses the stage-wide and the per-pose option strings and
// merges them. Pose values override global ones; flags are the union of both.
// A value spanning several words is kept as written, quotes included.
func ParseOptions(global, pose string) (FlagOptions, error) {
	g, err := parseFlagOptions(global)
	if err != nil {
		return FlagOptions{}, err
	}

	p, err := parseFlagOptions(pose)
	if err != nil {
		return FlagOptions{}, err
	}

	maps.Copy(g.Values, p.Values)

	for _, f := range p.Flags {
		if !slices.Contains(g.Flags, f) {
			g.Flags = append(g.Flags, f)
		}
	}

	return g, nil
}

func parseFlagOptions(s string) (FlagOptions, error) {
	out := FlagOptions{Values: make(map[string]string)}
	words, err := splitWords(s)
	if err != nil {
		return out, err
	}

	for i := 0; i < len(words); i++ {
		w := words[i]
		if !strings.HasPrefix(w, "--") || len(w) == 2 {
			return out, fmt.Errorf("%w: %q is not an option in %q", ErrOptionSyntax, w, s)
		}

		key := w[2:]
		if k, v, ok := strings.Cut(key, "="); ok {
			out.Values[k] = v
			continue
		}

		var vals []string
		for i+1 < len(words) && !strings.HasPrefix(words[i+1], "--") {
			i++
			vals = append(vals, words[i])
		}

		if len(vals) == 0 {
			if !slices.Contains(out.Flags, key) {
				out.Flags = append(out.Flags, key)
			}

			continue
		}

		out.Values[key] = strings.Join(vals, " ")
	}

	return out, nil
}

// Has reports whether key is set as a value or a flag.
func (o FlagOptions) Has(key string) bool {
	_, ok := o.Values[key]
	return ok || slices.Contains(o.Flags, key)
}

// SetDefault sets key to value unless it is already set.
func (o FlagOptions) SetDefault(key, value string) {
	if !o.Has(key) {
		o.Values[key] = value
	}
}

// String renders the options with sorted keys followed by sorted flags.
func (o FlagOptions) String() string {
	parts := make([]string, 0, len(o.Values)+len(o.Flags))

	for _, k := range slices.Sorted(maps.Keys(o.Values)) {
		parts = append(parts, "--"+k+" "+o.Values[k])
	}

	for _, f := range slices.Sorted(slices.Values(o.Flags)) {
		parts = append(parts, "--"+f)
	}

	return strings.Join(parts, " ")
}

// HydraOptions are "key=value" overrides in the order they were first given.
type HydraOptions struct {
	keys   []string
	values map[string]string
}

// ParseHydraOptions parses stage-wide and per-pose "key=value" overrides.
// Whitespace inside quotes does not split; pose values override global ones.
func ParseHydraOptions(global, pose string) (HydraOptions, error) {
	h := HydraOptions{values: make(map[string]string)}

	for _, s := range []string{global, pose} {
		words, err := splitWords(s)
		if err != nil {
			return HydraOptions{}, err
		}

		for _, w := range words {
			k, v, ok := hydraPair(w)
			if !ok || k == "" || strings.ContainsAny(k, `'"`) {
				return HydraOptions{}, fmt.Errorf("%w: %q is not key=value in %q", ErrOptionSyntax, w, s)
			}

			h.Set(k, v)
		}
	}

	return h, nil
}

// hydraPair splits a word at its first "=". Quotes wrapping the whole word
// move onto the value and quotes wrapping the key are dropped, so keys
// compare unquoted.
func hydraPair(w string) (string, string, bool) {
	if q, inner, ok := quoted(w); ok {
		if k, v, ok := strings.Cut(inner, "="); ok {
			return k, q + v + q, true
		}
	}

	k, v, ok := strings.Cut(w, "=")
	if _, inner, quotedKey := quoted(k); quotedKey {
		k = inner
	}

	return k, v, ok
}

// quoted reports whether s is wrapped in a matching pair of quotes.
func quoted(s string) (string, string, bool) {
	if len(s) < 2 || (s[0] != '\'' && s[0] != '"') || s[len(s)-1] != s[0] {
		return "", "", false
	}

	return s[:1], s[1 : len(s)-1], true
}

// Get returns the value of key.
func (h HydraOptions) Get(key string) (string, bool) {
	v, ok := h.values[key]
	return v, ok
}

// Set sets key, keeping its position if it already exists.
func (h *HydraOptions) Set(key, value string) {
	if h.values == nil {
		h.values = make(map[string]string)
	}

	if _, ok := h.values[key]; !ok {
		h.keys = append(h.keys, key)
	}

	h.values[key] = value
}

// SetDefault sets key unless it is already set.
func (h *HydraOptions) SetDefault(key, value string) {
	if _, ok := h.values[key]; !ok {
		h.Set(key, value)
	}
}

// String renders the overrides as "k=v" words.
func (h HydraOptions) String() string {
	parts := make([]string, len(h.keys))
	for i, k := range h.keys {
		parts[i] = k + "=" + h.values[k]
	}

	return strings.Join(parts, " ")
}

// splitWords splits s at whitespace outside single or double quotes.
// Quotes are kept in the words.
func splitWords(s string) ([]string, error) {
	var (
		words []string
		cur   strings.Builder
		quote rune
		inTok bool
	)

	for _, r := range s {
		switch {
		case quote != 0:
			cur.WriteRune(r)

			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
			inTok = true

			cur.WriteRune(r)
		case unicode.IsSpace(r):
			if inTok {
				words = append(words, cur.String())
				cur.Reset()

				inTok = false
			}
		default:
			inTok = true

			cur.WriteRune(r)
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("%w: unterminated quote in %q", ErrOptionSyntax, s)
	}

	if inTok {
		words = append(words, cur.String())
	}

	return words, nil
}
