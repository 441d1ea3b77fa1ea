// Copyright 2024 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rirmatch

// Verify returns every blocking pair of matches: an applicant and a block that
// list each other, where the applicant still has unmet need or holds a unit
// of a block it likes less, and the block has a free seat or holds a unit of
// an applicant it likes less. An empty result with a nil error means matches
// is stable. A population that cannot be matched is reported as an error.
//
// Verify costs O(|applicants|*|blocks|) and is meant to run once per result.
func Verify(applicants []Applicant, blocks []Block, prefs *Preferences, matches Matches, policy CapacityPolicy) ([]BlockingPair, error) {
	t, err := newTables(applicants, blocks, prefs)
	if err != nil {
		return nil, err
	}

	aIndex := make(map[string]int, len(applicants))
	for i, id := range t.applicants.ids {
		aIndex[id] = i
	}
	bIndex := make(map[string]int, len(blocks))
	for j, id := range t.blocks.ids {
		bIndex[id] = j
	}

	aHolds := make([]map[int]int64, t.applicants.len())
	bHolds := make([]map[int]int64, t.blocks.len())
	for id, records := range matches {
		a, ok := aIndex[id]
		if !ok {
			continue
		}
		for _, rec := range records {
			b, ok := bIndex[rec.BlockID]
			if !ok || rec.Units <= 0 {
				continue
			}
			if aHolds[a] == nil {
				aHolds[a] = make(map[int]int64)
			}
			if bHolds[b] == nil {
				bHolds[b] = make(map[int]int64)
			}
			aHolds[a][b] += rec.Units
			bHolds[b][a] += rec.Units
		}
	}

	var pairs []BlockingPair
	for a := range t.applicants.ids {
		for b := range t.blocks.ids {
			if wants(&t.applicants, a, b, aHolds[a], policy) &&
				wants(&t.blocks, b, a, bHolds[b], policy) {
				pairs = append(pairs, BlockingPair{
					ApplicantID: t.applicants.ids[a],
					BlockID:     t.blocks.ids[b],
				})
			}
		}
	}
	return pairs, nil
}

// wants reports whether i would take one more unit with j, either into spare
// quota or in place of a unit held with someone it ranks below j.
func wants(p *party, i, j int, holds map[int]int64, policy CapacityPolicy) bool {
	if !p.acceptable(i, j) {
		return false
	}
	if policy == DistinctSeats && holds[j] > 0 {
		return false
	}

	var used int64
	for _, u := range holds {
		used += u
	}
	if used < p.quota[i] {
		return true
	}

	rank := p.rank[i]
	for k, u := range holds {
		if k == j || u <= 0 {
			continue
		}
		if rank[k] < 0 || rank[k] > rank[j] {
			return true
		}
	}
	return false
}
