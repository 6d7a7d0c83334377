// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package aba

// ValueSet is a subset of the two-element domain {false, true}, encoded
// as a 2-bit mask so it can be used directly as a quorum.Tally map key
// (the Rust source keys received_aux/received_conf by Vec<bool>; a
// dense bitmask is the Go equivalent for a domain this small).
type ValueSet uint8

const (
	bitFalse ValueSet = 1 << 0
	bitTrue  ValueSet = 1 << 1
)

// NewValueSet builds a ValueSet containing exactly the given values.
func NewValueSet(values ...bool) ValueSet {
	var s ValueSet
	for _, v := range values {
		s = s.Add(v)
	}
	return s
}

// Add returns the set with v included.
func (s ValueSet) Add(v bool) ValueSet {
	if v {
		return s | bitTrue
	}
	return s | bitFalse
}

// Contains reports whether v is a member of s.
func (s ValueSet) Contains(v bool) bool {
	if v {
		return s&bitTrue != 0
	}
	return s&bitFalse != 0
}

// Len returns the number of values in s (0, 1, or 2).
func (s ValueSet) Len() int {
	n := 0
	if s.Contains(false) {
		n++
	}
	if s.Contains(true) {
		n++
	}
	return n
}

// Single returns s's sole member and true, if s has exactly one.
func (s ValueSet) Single() (bool, bool) {
	if s == bitFalse {
		return false, true
	}
	if s == bitTrue {
		return true, true
	}
	return false, false
}

// Subset reports whether every value in s is also in other (s ⊆ other).
func (s ValueSet) Subset(other ValueSet) bool {
	return s&other == s
}

// Values returns s's members in canonical (false, true) order.
func (s ValueSet) Values() []bool {
	var out []bool
	if s.Contains(false) {
		out = append(out, false)
	}
	if s.Contains(true) {
		out = append(out, true)
	}
	return out
}
