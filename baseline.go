// Copyright 2024 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rirmatch

import (
	"context"
	"math/rand"
	"sort"
)

// Baselines are not stable in general. They exist to measure what
// deferred acceptance buys over naive allocation.

type greedyMatcher struct {
	policy CapacityPolicy
}

// GreedyMatcher serves every applicant's first choice, then every second
// choice, and so on, first come first served. Applicants earlier in the
// input win ties. Nobody is ever bumped.
func GreedyMatcher(policy CapacityPolicy) Matcher {
	return greedyMatcher{policy}
}

type randomMatcher struct {
	seed   int64
	policy CapacityPolicy
}

// RandomMatcher hands out seats in a seeded random order, ignoring
// preferences. The same seed gives the same result.
func RandomMatcher(seed int64, policy CapacityPolicy) Matcher {
	return randomMatcher{seed, policy}
}

type pairing struct {
	a, b int
	rank int32
}

func (m greedyMatcher) Match(ctx context.Context, applicants []Applicant, blocks []Block, prefs *Preferences) (*Result, error) {
	t, err := newTables(applicants, blocks, prefs)
	if err != nil {
		return nil, err
	}

	var pl []pairing
	for a, list := range t.applicants.prefs {
		for pos, b := range list {
			pl = append(pl, pairing{a: a, b: b, rank: int32(pos)})
		}
	}
	sort.SliceStable(pl, func(i, j int) bool {
		return pl[i].rank < pl[j].rank ||
			pl[i].rank == pl[j].rank && pl[i].a < pl[j].a
	})

	return assignInOrder(ctx, t, pl, m.policy, applicants, blocks, prefs)
}

func (m randomMatcher) Match(ctx context.Context, applicants []Applicant, blocks []Block, prefs *Preferences) (*Result, error) {
	t, err := newTables(applicants, blocks, prefs)
	if err != nil {
		return nil, err
	}

	pl := make([]pairing, 0, t.applicants.len()*t.blocks.len())
	for a := range t.applicants.ids {
		for b := range t.blocks.ids {
			pl = append(pl, pairing{a: a, b: b, rank: t.applicants.rank[a][b]})
		}
	}
	rnd := rand.New(rand.NewSource(m.seed))
	rnd.Shuffle(len(pl), func(i, j int) { pl[i], pl[j] = pl[j], pl[i] })

	return assignInOrder(ctx, t, pl, m.policy, applicants, blocks, prefs)
}

func assignInOrder(ctx context.Context, t *tables, pl []pairing, policy CapacityPolicy,
	applicants []Applicant, blocks []Block, prefs *Preferences) (*Result, error) {

	needRest := append([]int64(nil), t.applicants.quota...)
	capRest := append([]int64(nil), t.blocks.quota...)
	perApplicant := make([][]hold, t.applicants.len())

	for n, p := range pl {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		amount := minInt64(needRest[p.a], capRest[p.b])
		if policy == DistinctSeats {
			amount = minInt64(amount, 1)
		}
		if amount <= 0 {
			continue
		}
		needRest[p.a] -= amount
		capRest[p.b] -= amount
		perApplicant[p.a] = append(perApplicant[p.a], hold{who: p.b, units: amount})
	}

	res := &Result{Matches: make(Matches)}
	for a, hs := range perApplicant {
		res.Matches.collect(&t.applicants, &t.blocks, a, hs)
	}
	res.Unmatched = residuals(&t.applicants, res.Matches)
	res.Excluded = append(res.Excluded, prefs.Excluded...)
	var err error
	if res.BlockingPairs, err = Verify(applicants, blocks, prefs, res.Matches, policy); err != nil {
		return nil, err
	}
	res.Stable = len(res.BlockingPairs) == 0
	return res, nil
}
