// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dumbo

// ToleranceConstants is a standalone, dependency-free helper the
// outer harness can call before it has even constructed a
// quorum.Info, to size a deployment from either side of the n=3f+1
// relation (spec.md §4.8, §6 "tolerance queries"; reinstated per the
// resolved Open Question #1 — QuorumForN is the BFT quorum n-f, not
// the ambiguous (n-1)/2 the source names).
type ToleranceConstants struct{}

// Tolerance is the zero-value ToleranceConstants, usable directly:
// dumbo.Tolerance.NForF(1).
var Tolerance ToleranceConstants

// NForF returns the minimal membership size tolerating f Byzantine
// nodes: 3f+1.
func (ToleranceConstants) NForF(f int) int {
	return 3*f + 1
}

// FForN returns the maximum f a membership of size n tolerates at the
// minimal 3f+1 ratio: (n-1)/3.
func (ToleranceConstants) FForN(n int) int {
	return (n - 1) / 3
}

// QuorumForN returns the BFT quorum size for a membership of n at the
// minimal ratio: n - FForN(n), i.e. 2f+1 when n = 3f+1.
func (ToleranceConstants) QuorumForN(n int) int {
	return n - (ToleranceConstants{}).FForN(n)
}
