// Copyright 2024 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rirmatch

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func makeApplicant(id string, need int64) Applicant {
	return Applicant{ID: id, Need: need}
}

func makeBlock(id string, cap int64) Block {
	return Block{ID: id, Cap: cap}
}

func unitApplicants(ids ...string) []Applicant {
	out := make([]Applicant, len(ids))
	for i, id := range ids {
		out[i] = makeApplicant(id, 1)
	}
	return out
}

func unitBlocks(ids ...string) []Block {
	out := make([]Block, len(ids))
	for i, id := range ids {
		out[i] = makeBlock(id, 1)
	}
	return out
}

// exampleInstance is the three by three market with a unique stable matching.
func exampleInstance() ([]Applicant, []Block, *Preferences) {
	return unitApplicants("A1", "A2", "A3"), unitBlocks("B1", "B2", "B3"), &Preferences{
		Applicants: map[string][]string{
			"A1": {"B1", "B2", "B3"},
			"A2": {"B1", "B3", "B2"},
			"A3": {"B2", "B1", "B3"},
		},
		Blocks: map[string][]string{
			"B1": {"A2", "A1", "A3"},
			"B2": {"A3", "A1", "A2"},
			"B3": {"A1", "A2", "A3"},
		},
	}
}

// twoStableInstance has two stable matchings, each side prefers a different one.
func twoStableInstance() ([]Applicant, []Block, *Preferences) {
	return unitApplicants("A1", "A2"), unitBlocks("B1", "B2"), &Preferences{
		Applicants: map[string][]string{
			"A1": {"B1", "B2"},
			"A2": {"B2", "B1"},
		},
		Blocks: map[string][]string{
			"B1": {"A2", "A1"},
			"B2": {"A1", "A2"},
		},
	}
}

func mustMatch(t *testing.T, m Matcher, applicants []Applicant, blocks []Block, prefs *Preferences) *Result {
	t.Helper()
	res, err := m.Match(context.Background(), applicants, blocks, prefs)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	return res
}

func blockOf(res *Result, applicantID string) string {
	records := res.Matches[applicantID]
	if len(records) == 0 {
		return ""
	}
	return records[0].BlockID
}

// randomInstance builds complete or partial random lists over random needs
// and capacities.
func randomInstance(rnd *rand.Rand, na, nb int, maxNeed, maxCap int64, partial bool) ([]Applicant, []Block, *Preferences) {
	applicants := make([]Applicant, na)
	for i := range applicants {
		applicants[i] = makeApplicant(fmt.Sprintf("A%d", i+1), 1+rnd.Int63n(maxNeed))
	}
	blocks := make([]Block, nb)
	for j := range blocks {
		blocks[j] = makeBlock(fmt.Sprintf("B%d", j+1), 1+rnd.Int63n(maxCap))
	}

	prefs := &Preferences{
		Applicants: make(map[string][]string),
		Blocks:     make(map[string][]string),
	}
	for _, a := range applicants {
		var list []string
		for _, k := range rnd.Perm(nb) {
			if partial && rnd.Intn(4) == 0 {
				continue
			}
			list = append(list, blocks[k].ID)
		}
		prefs.Applicants[a.ID] = list
	}
	for _, b := range blocks {
		var list []string
		for _, k := range rnd.Perm(na) {
			if partial && rnd.Intn(4) == 0 {
				continue
			}
			list = append(list, applicants[k].ID)
		}
		prefs.Blocks[b.ID] = list
	}
	return applicants, blocks, prefs
}

func TestDeferredAcceptance_Example(t *testing.T) {
	applicants, blocks, prefs := exampleInstance()

	res := mustMatch(t, &DeferredAcceptance{}, applicants, blocks, prefs)

	want := Matches{
		"A1": {{BlockID: "B3", Units: 1}},
		"A2": {{BlockID: "B1", Units: 1}},
		"A3": {{BlockID: "B2", Units: 1}},
	}
	if diff := cmp.Diff(want, res.Matches); diff != "" {
		t.Errorf("Matches mismatch (-want +got):\n%s", diff)
	}
	if len(res.Unmatched) != 0 {
		t.Errorf("Expected no unmatched, got %+v", res.Unmatched)
	}
	if !res.Stable {
		t.Errorf("Expected stable result, blocking pairs %+v", res.BlockingPairs)
	}
	// A1 is rejected by B1 and B2 before B3 accepts.
	if res.Rounds != 3 {
		t.Errorf("Expected 3 rounds, got %d", res.Rounds)
	}
	if res.Proposals["A1"] != 3 || res.Proposals["A2"] != 1 || res.Proposals["A3"] != 1 {
		t.Errorf("Unexpected proposals %v", res.Proposals)
	}
}

func TestDeferredAcceptance_ProposerOptimal(t *testing.T) {
	applicants, blocks, prefs := twoStableInstance()

	t.Run("ApplicantsPropose", func(t *testing.T) {
		res := mustMatch(t, &DeferredAcceptance{Proposer: ApplicantsPropose}, applicants, blocks, prefs)
		if blockOf(res, "A1") != "B1" || blockOf(res, "A2") != "B2" {
			t.Errorf("Expected applicant-optimal matching, got %v", res.Matches)
		}
		if !res.Stable {
			t.Error("Expected stable result")
		}
	})

	t.Run("BlocksPropose", func(t *testing.T) {
		res := mustMatch(t, &DeferredAcceptance{Proposer: BlocksPropose}, applicants, blocks, prefs)
		if blockOf(res, "A1") != "B2" || blockOf(res, "A2") != "B1" {
			t.Errorf("Expected block-optimal matching, got %v", res.Matches)
		}
		if !res.Stable {
			t.Error("Expected stable result")
		}
		if res.Proposals["B1"] != 1 || res.Proposals["B2"] != 1 {
			t.Errorf("Expected proposals keyed by block, got %v", res.Proposals)
		}
	})
}

// stableMatchings enumerates every individually rational stable one-to-one
// matching of a unit instance, as applicantID -> blockID.
func stableMatchings(t *testing.T, applicants []Applicant, blocks []Block, prefs *Preferences) []map[string]string {
	var out []map[string]string
	assign := make([]int, len(applicants))
	used := make([]bool, len(blocks))

	var walk func(i int)
	walk = func(i int) {
		if i == len(applicants) {
			matches := make(Matches)
			for a, b := range assign {
				if b >= 0 {
					matches[applicants[a].ID] = []Assignment{{BlockID: blocks[b].ID, Units: 1}}
				}
			}
			if len(mustVerify(t, applicants, blocks, prefs, matches, DistinctSeats)) == 0 {
				m := make(map[string]string)
				for id, records := range matches {
					m[id] = records[0].BlockID
				}
				out = append(out, m)
			}
			return
		}
		assign[i] = -1
		walk(i + 1)
		for b := range blocks {
			if used[b] ||
				position(prefs.Applicants[applicants[i].ID], blocks[b].ID) == len(prefs.Applicants[applicants[i].ID]) ||
				position(prefs.Blocks[blocks[b].ID], applicants[i].ID) == len(prefs.Blocks[blocks[b].ID]) {
				continue
			}
			used[b] = true
			assign[i] = b
			walk(i + 1)
			used[b] = false
		}
	}
	walk(0)
	return out
}

func position(list []string, id string) int {
	for i, x := range list {
		if x == id {
			return i
		}
	}
	return len(list) // unmatched is worst
}

func TestDeferredAcceptance_ProposerOptimalExhaustive(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for n := 0; n < 50; n++ {
		applicants, blocks, prefs := randomInstance(rnd, 4, 4, 1, 1, n%2 == 1)

		res := mustMatch(t, &DeferredAcceptance{}, applicants, blocks, prefs)
		all := stableMatchings(t, applicants, blocks, prefs)
		if len(all) == 0 {
			t.Fatalf("instance %d: no stable matching enumerated", n)
		}

		for _, alt := range all {
			for _, a := range applicants {
				list := prefs.Applicants[a.ID]
				got := position(list, blockOf(res, a.ID))
				other := position(list, alt[a.ID])
				if other < got {
					t.Errorf("instance %d: %s gets rank %d but rank %d is stable", n, a.ID, got, other)
				}
			}
		}
	}
}

func TestDeferredAcceptance_Bumping(t *testing.T) {
	applicants := unitApplicants("A1", "A2", "A3")
	blocks := unitBlocks("B1", "B2")
	prefs := &Preferences{
		Applicants: map[string][]string{
			"A1": {"B1"},
			"A2": {"B2", "B1"},
			"A3": {"B2"},
		},
		Blocks: map[string][]string{
			"B1": {"A2", "A1"},
			"B2": {"A3", "A2"},
		},
	}

	res := mustMatch(t, &DeferredAcceptance{}, applicants, blocks, prefs)

	if blockOf(res, "A2") != "B1" || blockOf(res, "A3") != "B2" {
		t.Errorf("Expected A2->B1 and A3->B2, got %v", res.Matches)
	}
	want := []Residual{{ApplicantID: "A1", Need: 1, Unmet: 1}}
	if diff := cmp.Diff(want, res.Unmatched); diff != "" {
		t.Errorf("Unmatched mismatch (-want +got):\n%s", diff)
	}
	if res.Rounds != 2 {
		t.Errorf("Expected 2 rounds, got %d", res.Rounds)
	}
	if !res.Stable {
		t.Errorf("Expected stable result, blocking pairs %+v", res.BlockingPairs)
	}
}

func TestDeferredAcceptance_EmptyList(t *testing.T) {
	applicants := []Applicant{makeApplicant("A1", 4), makeApplicant("A2", 1)}
	blocks := unitBlocks("B1")
	prefs := &Preferences{
		Applicants: map[string][]string{
			"A1": {},
			"A2": {"B1"},
		},
		Blocks: map[string][]string{
			"B1": {"A2"},
		},
	}

	res := mustMatch(t, &DeferredAcceptance{}, applicants, blocks, prefs)

	want := []Residual{{ApplicantID: "A1", Need: 4, Unmet: 4}}
	if diff := cmp.Diff(want, res.Unmatched); diff != "" {
		t.Errorf("Unmatched mismatch (-want +got):\n%s", diff)
	}
	if res.Proposals["A1"] != 0 {
		t.Errorf("Expected no proposals from A1, got %d", res.Proposals["A1"])
	}
	if _, ok := res.Matches["A1"]; ok {
		t.Error("A1 must not appear in matches")
	}
}

func TestDeferredAcceptance_Capacity(t *testing.T) {
	t.Run("DistinctSeats", func(t *testing.T) {
		applicants := []Applicant{
			makeApplicant("A1", 1),
			makeApplicant("A2", 1),
			makeApplicant("A3", 3),
		}
		blocks := []Block{makeBlock("B1", 2), makeBlock("B2", 2)}
		prefs := &Preferences{
			Applicants: map[string][]string{
				"A1": {"B1", "B2"},
				"A2": {"B1", "B2"},
				"A3": {"B1", "B2"},
			},
			Blocks: map[string][]string{
				"B1": {"A3", "A2", "A1"},
				"B2": {"A1", "A2", "A3"},
			},
		}

		res := mustMatch(t, &DeferredAcceptance{Policy: DistinctSeats}, applicants, blocks, prefs)

		want := Matches{
			"A1": {{BlockID: "B2", Units: 1}},
			"A2": {{BlockID: "B1", Units: 1}},
			"A3": {{BlockID: "B1", Units: 1}, {BlockID: "B2", Units: 1}},
		}
		if diff := cmp.Diff(want, res.Matches); diff != "" {
			t.Errorf("Matches mismatch (-want +got):\n%s", diff)
		}
		wantUnmatched := []Residual{{ApplicantID: "A3", Need: 3, Unmet: 1}}
		if diff := cmp.Diff(wantUnmatched, res.Unmatched); diff != "" {
			t.Errorf("Unmatched mismatch (-want +got):\n%s", diff)
		}
		if err := res.CheckCapacity(blocks); err != nil {
			t.Error(err)
		}
		if !res.Stable {
			t.Errorf("Expected stable result, blocking pairs %+v", res.BlockingPairs)
		}
	})

	t.Run("SharedSeats", func(t *testing.T) {
		applicants := []Applicant{makeApplicant("A1", 3), makeApplicant("A2", 2)}
		blocks := []Block{makeBlock("B1", 2), makeBlock("B2", 4)}
		prefs := &Preferences{
			Applicants: map[string][]string{
				"A1": {"B1", "B2"},
				"A2": {"B1", "B2"},
			},
			Blocks: map[string][]string{
				"B1": {"A2", "A1"},
				"B2": {"A1", "A2"},
			},
		}

		res := mustMatch(t, &DeferredAcceptance{Policy: SharedSeats}, applicants, blocks, prefs)

		want := Matches{
			"A1": {{BlockID: "B2", Units: 3}},
			"A2": {{BlockID: "B1", Units: 2}},
		}
		if diff := cmp.Diff(want, res.Matches); diff != "" {
			t.Errorf("Matches mismatch (-want +got):\n%s", diff)
		}
		if len(res.Unmatched) != 0 {
			t.Errorf("Expected no unmatched, got %+v", res.Unmatched)
		}
		if !res.Stable {
			t.Errorf("Expected stable result, blocking pairs %+v", res.BlockingPairs)
		}
	})

	t.Run("PartialAcceptance", func(t *testing.T) {
		applicants := []Applicant{makeApplicant("A1", 3)}
		blocks := []Block{makeBlock("B1", 2), makeBlock("B2", 2)}
		prefs := &Preferences{
			Applicants: map[string][]string{"A1": {"B1", "B2"}},
			Blocks: map[string][]string{
				"B1": {"A1"},
				"B2": {"A1"},
			},
		}

		res := mustMatch(t, &DeferredAcceptance{Policy: SharedSeats}, applicants, blocks, prefs)

		want := Matches{
			"A1": {{BlockID: "B1", Units: 2}, {BlockID: "B2", Units: 1}},
		}
		if diff := cmp.Diff(want, res.Matches); diff != "" {
			t.Errorf("Matches mismatch (-want +got):\n%s", diff)
		}
		if res.Units("A1") != 3 {
			t.Errorf("Expected 3 units, got %d", res.Units("A1"))
		}
	})
}

// A unit bumped from an earlier block returns to the block the applicant
// was last accepted by, before the applicant moves down its list.
func TestDeferredAcceptance_SharedReturnsToAcceptingBlock(t *testing.T) {
	t.Run("ApplicantsPropose", func(t *testing.T) {
		applicants := []Applicant{
			makeApplicant("a", 3),
			makeApplicant("c", 1),
			makeApplicant("d", 1),
		}
		blocks := []Block{
			makeBlock("b0", 1),
			makeBlock("b1", 1),
			makeBlock("b2", 3),
			makeBlock("b3", 3),
		}
		prefs := &Preferences{
			Applicants: map[string][]string{
				"a": {"b1", "b2", "b3"},
				"c": {"b0", "b1"},
				"d": {"b0"},
			},
			Blocks: map[string][]string{
				"b0": {"d", "c"},
				"b1": {"c", "a"},
				"b2": {"a"},
				"b3": {"a"},
			},
		}

		res := mustMatch(t, &DeferredAcceptance{Policy: SharedSeats}, applicants, blocks, prefs)

		want := Matches{
			"a": {{BlockID: "b2", Units: 3}},
			"c": {{BlockID: "b1", Units: 1}},
			"d": {{BlockID: "b0", Units: 1}},
		}
		if diff := cmp.Diff(want, res.Matches); diff != "" {
			t.Errorf("Matches mismatch (-want +got):\n%s", diff)
		}
		if !res.Stable {
			t.Errorf("Expected stable result, blocking pairs %+v", res.BlockingPairs)
		}
		if res.Rounds != 3 {
			t.Errorf("Expected 3 rounds, got %d", res.Rounds)
		}
	})

	t.Run("BlocksPropose", func(t *testing.T) {
		applicants := []Applicant{
			makeApplicant("b0", 1),
			makeApplicant("b1", 1),
			makeApplicant("b2", 3),
			makeApplicant("b3", 3),
		}
		blocks := []Block{
			makeBlock("a", 3),
			makeBlock("c", 1),
			makeBlock("d", 1),
		}
		prefs := &Preferences{
			Applicants: map[string][]string{
				"b0": {"d", "c"},
				"b1": {"c", "a"},
				"b2": {"a"},
				"b3": {"a"},
			},
			Blocks: map[string][]string{
				"a": {"b1", "b2", "b3"},
				"c": {"b0", "b1"},
				"d": {"b0"},
			},
		}

		res := mustMatch(t, &DeferredAcceptance{Proposer: BlocksPropose, Policy: SharedSeats}, applicants, blocks, prefs)

		want := Matches{
			"b0": {{BlockID: "d", Units: 1}},
			"b1": {{BlockID: "c", Units: 1}},
			"b2": {{BlockID: "a", Units: 3}},
		}
		if diff := cmp.Diff(want, res.Matches); diff != "" {
			t.Errorf("Matches mismatch (-want +got):\n%s", diff)
		}
		if !res.Stable {
			t.Errorf("Expected stable result, blocking pairs %+v", res.BlockingPairs)
		}
		if res.Proposals["a"] != 3 {
			t.Errorf("Expected 3 proposals from a, got %d", res.Proposals["a"])
		}
	})
}

func TestDeferredAcceptance_Unacceptable(t *testing.T) {
	applicants := unitApplicants("A1", "A2")
	blocks := unitBlocks("B1")
	prefs := &Preferences{
		Applicants: map[string][]string{
			"A1": {"B1"},
			"A2": {"B1"},
		},
		Blocks: map[string][]string{
			"B1": {"A2"},
		},
	}

	for _, parallel := range []bool{false, true} {
		res := mustMatch(t, &DeferredAcceptance{Parallel: parallel}, applicants, blocks, prefs)
		if blockOf(res, "A1") != "" {
			t.Errorf("A1 is unacceptable to B1 but got %v", res.Matches["A1"])
		}
		if blockOf(res, "A2") != "B1" {
			t.Errorf("Expected A2->B1, got %v", res.Matches)
		}
	}
}

func TestDeferredAcceptance_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("NonTermination", func(t *testing.T) {
		applicants, blocks, prefs := exampleInstance()
		_, err := (&DeferredAcceptance{MaxRounds: 1}).Match(ctx, applicants, blocks, prefs)
		if !errors.Is(err, ErrNonTermination) {
			t.Fatalf("Expected ErrNonTermination, got %v", err)
		}
		if ids := ErrorIDs(err); len(ids) != 1 || ids[0] != "A1" {
			t.Errorf("Expected A1 to be reported, got %v", ids)
		}
	})

	t.Run("UnknownIdentifier", func(t *testing.T) {
		applicants, blocks, prefs := exampleInstance()
		prefs.Applicants["A1"] = []string{"B1", "B9"}
		_, err := (&DeferredAcceptance{}).Match(ctx, applicants, blocks, prefs)
		if !errors.Is(err, ErrInvalidPreferences) {
			t.Fatalf("Expected ErrInvalidPreferences, got %v", err)
		}
	})

	t.Run("RepeatedIdentifier", func(t *testing.T) {
		applicants, blocks, prefs := exampleInstance()
		prefs.Blocks["B2"] = []string{"A3", "A3"}
		_, err := (&DeferredAcceptance{}).Match(ctx, applicants, blocks, prefs)
		if !errors.Is(err, ErrInvalidPreferences) {
			t.Fatalf("Expected ErrInvalidPreferences, got %v", err)
		}
	})

	t.Run("EmptyPopulation", func(t *testing.T) {
		_, blocks, prefs := exampleInstance()
		_, err := (&DeferredAcceptance{}).Match(ctx, nil, blocks, prefs)
		if !errors.Is(err, ErrEmptyPopulation) {
			t.Fatalf("Expected ErrEmptyPopulation, got %v", err)
		}
	})

	t.Run("Canceled", func(t *testing.T) {
		applicants, blocks, prefs := exampleInstance()
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := (&DeferredAcceptance{}).Match(cctx, applicants, blocks, prefs)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Expected context.Canceled, got %v", err)
		}
	})
}

func TestDeferredAcceptance_Properties(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))

	configs := []DeferredAcceptance{
		{Proposer: ApplicantsPropose, Policy: DistinctSeats},
		{Proposer: ApplicantsPropose, Policy: SharedSeats},
		{Proposer: BlocksPropose, Policy: DistinctSeats},
		{Proposer: BlocksPropose, Policy: SharedSeats},
	}

	for n := 0; n < 200; n++ {
		na, nb := 5, 5
		if n%10 == 9 {
			na, nb = 40, 25
		}
		applicants, blocks, prefs := randomInstance(rnd, na, nb, 4, 4, n%3 == 0)

		for _, cfg := range configs {
			cfg := cfg
			res := mustMatch(t, &cfg, applicants, blocks, prefs)
			name := fmt.Sprintf("instance %d %v/%v", n, cfg.Proposer, cfg.Policy)

			if !res.Stable {
				t.Fatalf("%s: blocking pairs %+v", name, res.BlockingPairs)
			}
			if err := res.CheckCapacity(blocks); err != nil {
				t.Fatalf("%s: %v", name, err)
			}
			quota := make(map[string]int64)
			var total int64
			if cfg.Proposer == BlocksPropose {
				for _, b := range blocks {
					quota[b.ID] = b.Cap
					total += b.Cap
				}
			} else {
				for _, a := range applicants {
					quota[a.ID] = a.Need
					total += a.Need
				}
			}
			maxRounds := na * nb
			if cfg.Policy == SharedSeats {
				maxRounds = (na*nb + 1) * int(total+1)
			}
			if res.Rounds > maxRounds {
				t.Fatalf("%s: %d rounds over a bound of %d", name, res.Rounds, maxRounds)
			}

			for _, a := range applicants {
				if got := res.Units(a.ID); got > a.Need {
					t.Fatalf("%s: %s got %d units for need %d", name, a.ID, got, a.Need)
				}
				for _, rec := range res.Matches[a.ID] {
					if position(prefs.Applicants[a.ID], rec.BlockID) == len(prefs.Applicants[a.ID]) ||
						position(prefs.Blocks[rec.BlockID], a.ID) == len(prefs.Blocks[rec.BlockID]) {
						t.Fatalf("%s: %s matched to unacceptable %s", name, a.ID, rec.BlockID)
					}
					if cfg.Policy == DistinctSeats && rec.Units != 1 {
						t.Fatalf("%s: %s holds %d seats of %s", name, a.ID, rec.Units, rec.BlockID)
					}
				}
			}

			proposerLists := prefs.Applicants
			if cfg.Proposer == BlocksPropose {
				proposerLists = prefs.Blocks
			}
			for id, count := range res.Proposals {
				limit := len(proposerLists[id])
				if cfg.Policy == SharedSeats {
					limit *= int(quota[id]) + 1
				}
				if count > limit {
					t.Fatalf("%s: %s made %d proposals over a list of %d", name, id, count, len(proposerLists[id]))
				}
			}
		}
	}
}

func TestDeferredAcceptance_Deterministic(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	applicants, blocks, prefs := randomInstance(rnd, 60, 30, 3, 5, true)

	for _, policy := range []CapacityPolicy{DistinctSeats, SharedSeats} {
		first := mustMatch(t, &DeferredAcceptance{Policy: policy}, applicants, blocks, prefs)
		again := mustMatch(t, &DeferredAcceptance{Policy: policy}, applicants, blocks, prefs)
		parallel := mustMatch(t, &DeferredAcceptance{Policy: policy, Parallel: true}, applicants, blocks, prefs)

		if diff := cmp.Diff(first, again); diff != "" {
			t.Errorf("%v: rerun differs (-first +again):\n%s", policy, diff)
		}
		if diff := cmp.Diff(first, parallel); diff != "" {
			t.Errorf("%v: parallel run differs (-serial +parallel):\n%s", policy, diff)
		}
	}
}
