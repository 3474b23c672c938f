// Package interest canonicalizes raw interest input into comparable tag
// lists. Clients send interests either as a single comma-separated string or
// as an already-split list; both forms normalize to the same shape so the
// matcher can intersect them directly.
package interest

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Random is the sentinel tag meaning "no preference". A client declaring it
// is matched only with other clients that also declared it, never with an
// arbitrary topical tag.
const Random = "random"

// Input is raw interest input as supplied by a client: either a single
// (possibly comma-separated) string or an already-split list of tags. The
// zero value reports Present() == false, which callers use to tell "field
// absent" apart from "field empty" (skip without a payload reuses the
// client's remembered interests).
type Input struct {
	list    []string
	str     string
	isList  bool
	present bool
}

// FromString wraps a single raw interest string.
func FromString(s string) Input {
	return Input{str: s, present: true}
}

// FromList wraps an already-split tag list.
func FromList(tags []string) Input {
	return Input{list: tags, isList: true, present: true}
}

// Present reports whether any interest input was supplied at all.
func (in Input) Present() bool {
	return in.present
}

// UnmarshalJSON accepts a JSON string, an array of strings, or null. Null
// decodes to the absent Input so optional fields behave like omitted ones.
func (in *Input) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*in = Input{}
		return nil
	}

	switch {
	case strings.HasPrefix(trimmed, "["):
		var tags []string
		if err := json.Unmarshal(data, &tags); err != nil {
			return fmt.Errorf("interest: failed to decode tag list: %w", err)
		}
		*in = FromList(tags)
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("interest: failed to decode tag string: %w", err)
		}
		*in = FromString(s)
	default:
		return fmt.Errorf("interest: input must be a string or an array of strings")
	}
	return nil
}

// Normalize canonicalizes raw input into a tag list. List input keeps
// non-empty whitespace-trimmed entries in order. String input is trimmed;
// an empty string or the bare Random sentinel (any case) yields [random],
// anything else is split on commas, trimmed, de-emptied, and lowercased.
// Duplicates are removed preserving first occurrence, and an empty result
// falls back to [random]. Pure function; normalizing its own output is a
// no-op.
func Normalize(in Input) []string {
	var tags []string

	if in.isList {
		for _, t := range in.list {
			t = strings.TrimSpace(t)
			if t != "" {
				tags = append(tags, t)
			}
		}
	} else {
		s := strings.TrimSpace(in.str)
		if s == "" || strings.EqualFold(s, Random) {
			return []string{Random}
		}
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			tags = append(tags, strings.ToLower(part))
		}
	}

	tags = dedupe(tags)
	if len(tags) == 0 {
		return []string{Random}
	}
	return tags
}

// HasRandom reports whether tags contains the Random sentinel.
func HasRandom(tags []string) bool {
	for _, t := range tags {
		if t == Random {
			return true
		}
	}
	return false
}

// dedupe removes duplicate tags preserving first-occurrence order.
func dedupe(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := tags[:0]
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
