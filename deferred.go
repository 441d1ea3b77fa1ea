// Copyright 2024 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rirmatch

import (
	"context"
	"io"
	"math"
	"runtime"
	"sort"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// DeferredAcceptance is the capacitated deferred acceptance (Gale-Shapley)
// matcher. The proposing side gets its best stable outcome.
type DeferredAcceptance struct {
	Proposer Side
	Policy   CapacityPolicy

	// MaxRounds bounds the number of rounds. Zero means |applicants|*|blocks|
	// under DistinctSeats and a bound scaled by the proposers' total quota
	// under SharedSeats.
	MaxRounds int

	// Parallel computes proposals and receiver decisions of one round
	// concurrently. Rounds stay strictly ordered.
	Parallel bool

	Logger *log.Logger // can be nil
}

type hold struct {
	who   int
	units int64
}

type offer struct {
	to    int // -1 when idle
	units int64
}

type daState struct {
	m        *DeferredAcceptance
	proposer *party
	receiver *party

	cursor    []int
	rest      []int64
	proposals []int
	offers    []offer

	holds   [][]hold
	inbox   [][]hold
	rejects [][]hold

	rounds int
}

func (m *DeferredAcceptance) logger() *log.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return log.New(io.Discard)
}

func (m *DeferredAcceptance) Match(ctx context.Context, applicants []Applicant, blocks []Block, prefs *Preferences) (*Result, error) {
	t, err := newTables(applicants, blocks, prefs)
	if err != nil {
		return nil, err
	}

	proposer, receiver := &t.applicants, &t.blocks
	if m.Proposer == BlocksPropose {
		proposer, receiver = receiver, proposer
	}

	maxRounds := m.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds(proposer, len(applicants)*len(blocks), m.Policy)
	}

	s := &daState{
		m:         m,
		proposer:  proposer,
		receiver:  receiver,
		cursor:    make([]int, proposer.len()),
		rest:      make([]int64, proposer.len()),
		proposals: make([]int, proposer.len()),
		offers:    make([]offer, proposer.len()),
		holds:     make([][]hold, receiver.len()),
		inbox:     make([][]hold, receiver.len()),
		rejects:   make([][]hold, receiver.len()),
	}
	copy(s.rest, proposer.quota)

	logger := m.logger()
	logger.Debug("deferred acceptance started",
		"proposer", m.Proposer, "policy", m.Policy,
		"applicants", len(applicants), "blocks", len(blocks), "max_rounds", maxRounds)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.anyActive() {
			break
		}
		if s.rounds >= maxRounds {
			return nil, newError(ErrNonTermination, "round limit exceeded", s.activeIDs()...)
		}
		s.rounds++

		if err := s.each(ctx, proposer.len(), s.propose); err != nil {
			return nil, err
		}
		sent := s.deliver()
		if err := s.each(ctx, receiver.len(), s.resolve); err != nil {
			return nil, err
		}
		rejected := s.returnRejected()

		logger.Debug("round done", "round", s.rounds, "proposals", sent, "rejections", rejected)
	}

	res := s.result(t)
	res.Excluded = append(res.Excluded, prefs.Excluded...)
	if res.BlockingPairs, err = Verify(applicants, blocks, prefs, res.Matches, m.Policy); err != nil {
		return nil, err
	}
	res.Stable = len(res.BlockingPairs) == 0

	logger.Debug("deferred acceptance finished",
		"rounds", res.Rounds, "unmatched", len(res.Unmatched), "stable", res.Stable)
	return res, nil
}

// defaultMaxRounds bounds the rounds of a run. Every DistinctSeats round
// moves some cursor, so pairs rounds are enough. Under SharedSeats a round
// without cursor moves either ends the run or returns at least one unit
// held behind a cursor, and no more than the total quota is ever held there
// between two cursor moves.
func defaultMaxRounds(proposer *party, pairs int, policy CapacityPolicy) int {
	if policy != SharedSeats {
		return pairs
	}
	var quota int64
	for _, q := range proposer.quota {
		quota += q
	}
	bound := (int64(pairs) + 1) * (quota + 1)
	if bound <= 0 || bound > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(bound)
}

func (s *daState) active(p int) bool {
	return s.rest[p] > 0 && s.cursor[p] < len(s.proposer.prefs[p])
}

func (s *daState) anyActive() bool {
	for p := range s.rest {
		if s.active(p) {
			return true
		}
	}
	return false
}

func (s *daState) activeIDs() []string {
	var ids []string
	for p := range s.rest {
		if s.active(p) {
			ids = append(ids, s.proposer.ids[p])
		}
	}
	return ids
}

// each runs fn for 0..n-1, concurrently when configured. It returns once
// every call is done, which is the barrier between round phases.
func (s *daState) each(ctx context.Context, n int, fn func(i int)) error {
	if !s.m.Parallel {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(i)
			return nil
		})
	}
	return g.Wait()
}

// propose touches only the proposer's own counters.
//
// Under SharedSeats the cursor stays on a block until that block turns
// units away, so units bumped elsewhere come back to it first.
func (s *daState) propose(p int) {
	if !s.active(p) {
		s.offers[p] = offer{to: -1}
		return
	}
	r := s.proposer.prefs[p][s.cursor[p]]
	s.proposals[p]++

	units := int64(1)
	if s.m.Policy == SharedSeats {
		units = s.rest[p]
	} else {
		s.cursor[p]++
	}
	s.rest[p] -= units
	s.offers[p] = offer{to: r, units: units}
}

// deliver moves this round's offers into the receivers' inboxes in proposer
// order.
func (s *daState) deliver() (sent int) {
	for r := range s.inbox {
		s.inbox[r] = s.inbox[r][:0]
	}
	for p, o := range s.offers {
		if o.to < 0 {
			continue
		}
		s.inbox[o.to] = append(s.inbox[o.to], hold{who: p, units: o.units})
		sent++
	}
	return
}

// resolve touches only the receiver's own holds and rejects.
func (s *daState) resolve(r int) {
	s.rejects[r] = s.rejects[r][:0]
	if len(s.inbox[r]) == 0 {
		return
	}

	rank := s.receiver.rank[r]

	cands := s.holds[r]
	for _, h := range s.inbox[r] {
		if rank[h.who] < 0 {
			s.rejects[r] = append(s.rejects[r], h)
			continue
		}
		cands = append(cands, h)
	}
	sort.Slice(cands, func(i, j int) bool {
		return rank[cands[i].who] < rank[cands[j].who]
	})
	cands = mergeHolds(cands)

	free := s.receiver.quota[r]
	kept := cands[:0:0]
	for _, h := range cands {
		take := minInt64(h.units, free)
		if take > 0 {
			kept = append(kept, hold{who: h.who, units: take})
			free -= take
		}
		if left := h.units - take; left > 0 {
			s.rejects[r] = append(s.rejects[r], hold{who: h.who, units: left})
		}
	}
	s.holds[r] = kept
}

// returnRejected gives rejected units back. A block that turned units away
// is full of holders it ranks higher, so the cursor moves past it.
func (s *daState) returnRejected() (rejected int) {
	for r := range s.rejects {
		for _, h := range s.rejects[r] {
			p := h.who
			s.rest[p] += h.units
			rejected++
			if s.m.Policy == SharedSeats && s.cursor[p] < len(s.proposer.prefs[p]) &&
				s.proposer.prefs[p][s.cursor[p]] == r {
				s.cursor[p]++
			}
		}
	}
	return
}

// mergeHolds joins adjacent holds of the same proposer.
func mergeHolds(hs []hold) []hold {
	out := hs[:0]
	for _, h := range hs {
		if n := len(out); n > 0 && out[n-1].who == h.who {
			out[n-1].units += h.units
			continue
		}
		out = append(out, h)
	}
	return out
}

func (s *daState) result(t *tables) *Result {
	res := &Result{
		Matches:   make(Matches),
		Rounds:    s.rounds,
		Proposals: make(map[string]int, s.proposer.len()),
	}
	for p, n := range s.proposals {
		res.Proposals[s.proposer.ids[p]] = n
	}

	// holds[receiver] -> per applicant, in the applicant's preference order
	perApplicant := make([][]hold, t.applicants.len()) // who = block index
	for r, hs := range s.holds {
		for _, h := range hs {
			a, b := h.who, r
			if s.m.Proposer == BlocksPropose {
				a, b = r, h.who
			}
			perApplicant[a] = append(perApplicant[a], hold{who: b, units: h.units})
		}
	}
	for a, hs := range perApplicant {
		res.Matches.collect(&t.applicants, &t.blocks, a, hs)
	}
	res.Unmatched = residuals(&t.applicants, res.Matches)
	return res
}

func (ms Matches) collect(applicants, blocks *party, a int, hs []hold) {
	if len(hs) == 0 {
		return
	}
	rank := applicants.rank[a]
	sort.Slice(hs, func(i, j int) bool {
		ri, rj := uint32(rank[hs[i].who]), uint32(rank[hs[j].who]) // unacceptable last
		if ri != rj {
			return ri < rj
		}
		return hs[i].who < hs[j].who
	})
	records := make([]Assignment, len(hs))
	for i, h := range hs {
		records[i] = Assignment{BlockID: blocks.ids[h.who], Units: h.units}
	}
	ms[applicants.ids[a]] = records
}

func residuals(applicants *party, matches Matches) []Residual {
	var out []Residual
	for a, id := range applicants.ids {
		var got int64
		for _, rec := range matches[id] {
			got += rec.Units
		}
		if need := applicants.quota[a]; got < need {
			out = append(out, Residual{ApplicantID: id, Need: need, Unmet: need - got})
		}
	}
	return out
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
