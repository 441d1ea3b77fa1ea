// Copyright 2024 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package score

import (
	"math/bits"
	"net/netip"

	"go4.org/netipx"
)

// CommonPrefixLen returns the number of leading bits shared by the network
// addresses of a and b, or 0 when their families differ.
func CommonPrefixLen(a, b netip.Prefix) int {
	if !a.IsValid() || !b.IsValid() || a.Addr().Is4() != b.Addr().Is4() {
		return 0
	}
	x, y := a.Masked().Addr().AsSlice(), b.Masked().Addr().AsSlice()
	n := 0
	for i := range x {
		d := x[i] ^ y[i]
		if d != 0 {
			return n + bits.LeadingZeros8(d)
		}
		n += 8
	}
	return n
}

// Mergeable reports whether a and b together form exactly one prefix, or one
// contains the other.
func Mergeable(a, b netip.Prefix) bool {
	if !a.IsValid() || !b.IsValid() || a.Addr().Is4() != b.Addr().Is4() {
		return false
	}
	var sb netipx.IPSetBuilder
	sb.AddPrefix(a.Masked())
	sb.AddPrefix(b.Masked())
	set, err := sb.IPSet()
	if err != nil {
		return false
	}
	return len(set.Prefixes()) == 1
}

// Aggregatable reports whether a and b could be announced together: they
// merge into one prefix, or they share the parent one bit shorter than the
// shorter of the two.
func Aggregatable(a, b netip.Prefix) bool {
	if Mergeable(a, b) {
		return true
	}
	if !a.IsValid() || !b.IsValid() || a.Addr().Is4() != b.Addr().Is4() {
		return false
	}
	shorter := a.Bits()
	if b.Bits() < shorter {
		shorter = b.Bits()
	}
	if shorter == 0 {
		return false
	}
	pa, _ := a.Addr().Prefix(shorter - 1)
	pb, _ := b.Addr().Prefix(shorter - 1)
	return pa == pb
}

// AggregationScore rates in [0, 1] how well block fits next to held:
// long common prefix and similar prefix lengths score high.
//
//	(2*lcp + (bits - |held.Bits - block.Bits|)) / (3*bits)
func AggregationScore(held, block netip.Prefix) float64 {
	if !held.IsValid() || !block.IsValid() || held.Addr().Is4() != block.Addr().Is4() {
		return 0
	}
	width := block.Addr().BitLen()
	diff := held.Bits() - block.Bits()
	if diff < 0 {
		diff = -diff
	}
	lcp := CommonPrefixLen(held, block)
	return float64(2*lcp+width-diff) / float64(3*width)
}
