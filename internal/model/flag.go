package model

import (
	"fmt"
	"sort"
)

// Flag is one member of the fixed anomaly vocabulary.
type Flag string

// Flags produced by the anomaly flagger.
const (
	FlagIncomplete    Flag = "incomplete"
	FlagDuplicate     Flag = "duplicate"
	FlagUnusualAmount Flag = "unusual_amount"
	FlagUncategorized Flag = "uncategorized"
)

// AllFlags lists the vocabulary in display order.
var AllFlags = []Flag{FlagIncomplete, FlagDuplicate, FlagUnusualAmount, FlagUncategorized}

// ParseFlag validates a flag name.
func ParseFlag(s string) (Flag, error) {
	for _, f := range AllFlags {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown flag %q", s)
}

// FlagSet is a sorted, duplicate-free set of flags.
type FlagSet []Flag

// NewFlagSet builds a normalized set from the given flags.
func NewFlagSet(flags ...Flag) FlagSet {
	var s FlagSet
	for _, f := range flags {
		s = s.With(f)
	}
	return s
}

// Has reports whether f is in the set.
func (s FlagSet) Has(f Flag) bool {
	for _, existing := range s {
		if existing == f {
			return true
		}
	}
	return false
}

// With returns the set with f added. The receiver is not modified.
func (s FlagSet) With(f Flag) FlagSet {
	if s.Has(f) {
		return s
	}
	out := make(FlagSet, 0, len(s)+1)
	out = append(out, s...)
	out = append(out, f)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Merge adds every flag in other and returns the result plus the flags that
// were not already present.
func (s FlagSet) Merge(other ...Flag) (FlagSet, []Flag) {
	merged := s
	var added []Flag
	for _, f := range other {
		if merged.Has(f) {
			continue
		}
		merged = merged.With(f)
		added = append(added, f)
	}
	return merged, added
}

// Strings returns the flag names.
func (s FlagSet) Strings() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = string(f)
	}
	return out
}
