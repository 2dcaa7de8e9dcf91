package gesture

import (
	"fmt"
	"strings"
)

// MinSequenceTaps is the minimum number of corner taps in a target sequence.
const MinSequenceTaps = 3

// MatchKind classifies a candidate against a sequence set.
type MatchKind int

const (
	// MatchNone means no target can ever match the candidate.
	MatchNone MatchKind = iota
	// MatchPrefix means the candidate is a proper prefix of at least one
	// target and may still complete.
	MatchPrefix
	// MatchExact means the candidate equals a target.
	MatchExact
)

// ValidSequenceCode reports whether s is a well-formed target sequence:
// a two-character corner code from {T,B}x{L,R}, repeated MinSequenceTaps or
// more consecutive times, with no other characters.
func ValidSequenceCode(s string) bool {
	if len(s) < MinSequenceTaps*2 || len(s)%2 != 0 {
		return false
	}
	for i := 0; i < len(s); i += 2 {
		if s[i] != 'T' && s[i] != 'B' {
			return false
		}
		if s[i+1] != 'L' && s[i+1] != 'R' {
			return false
		}
	}
	return true
}

// SequenceSet is an immutable, validated set of target sequences. The set is
// non-empty and prefix-free: no sequence is a string prefix of another, so an
// accumulating candidate is never ambiguous about which target it is heading
// toward.
type SequenceSet struct {
	codes []string
}

// NewSequenceSet validates the given sequence strings and builds a set.
// Duplicates are rejected as prefix collisions (a string is a prefix of
// itself). Errors are *ConfigError values naming the offending sequence.
func NewSequenceSet(codes []string) (SequenceSet, error) {
	if len(codes) == 0 {
		return SequenceSet{}, &ConfigError{
			Field:   "sequences",
			Message: "at least one target sequence is required",
		}
	}
	for i, code := range codes {
		if !ValidSequenceCode(code) {
			return SequenceSet{}, &ConfigError{
				Field: "sequences",
				Message: fmt.Sprintf("sequence %q is not a corner code pair repeated %d or more times",
					code, MinSequenceTaps),
			}
		}
		for j := 0; j < i; j++ {
			if strings.HasPrefix(code, codes[j]) || strings.HasPrefix(codes[j], code) {
				return SequenceSet{}, &ConfigError{
					Field: "sequences",
					Message: fmt.Sprintf("sequences %q and %q cannot be distinguished",
						codes[j], code),
				}
			}
		}
	}
	set := SequenceSet{codes: make([]string, len(codes))}
	copy(set.codes, codes)
	return set, nil
}

// Match compares a candidate against the set. On MatchExact the matched
// target is returned; otherwise the target string is empty.
func (s SequenceSet) Match(candidate string) (string, MatchKind) {
	kind := MatchNone
	for _, code := range s.codes {
		if code == candidate {
			return code, MatchExact
		}
		if strings.HasPrefix(code, candidate) {
			kind = MatchPrefix
		}
	}
	return "", kind
}

// Codes returns a copy of the target sequences in the set.
func (s SequenceSet) Codes() []string {
	out := make([]string, len(s.codes))
	copy(out, s.codes)
	return out
}

// Len returns the number of target sequences.
func (s SequenceSet) Len() int {
	return len(s.codes)
}
