// Copyright 2024 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package addrspace

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/netip"
	"sort"

	"github.com/apparentlymart/go-cidr/cidr"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"go4.org/netipx"

	"github.com/someonegg/rirmatch"
	"github.com/someonegg/rirmatch/score"
	"github.com/someonegg/rirmatch/score/rir"
)

func (m *Matcher) init() {
	if m.Weights == nil {
		m.weights = score.DefaultWeights
	} else {
		m.weights = *m.Weights
	}

	if m.UnitLength4 == nil {
		m.ul4 = DefaultUnitLength4
	} else {
		m.ul4 = *m.UnitLength4
	}

	if m.UnitLength6 == nil {
		m.ul6 = DefaultUnitLength6
	} else {
		m.ul6 = *m.UnitLength6
	}
}

func (m *Matcher) logger() *log.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return log.New(io.Discard)
}

func (m *Matcher) locality() score.LocationScorer {
	if m.Locality != nil {
		return m.Locality
	}
	return rir.Scorer{}
}

func (m *Matcher) engine() rirmatch.Matcher {
	return &rirmatch.DeferredAcceptance{
		Proposer:  m.Proposer,
		Policy:    m.Policy,
		MaxRounds: m.MaxRounds,
		Parallel:  m.Parallel,
		Logger:    m.Logger,
	}
}

type asEntry struct {
	rec  *AS
	feat score.ASFeatures
}

type blockEntry struct {
	rec     *Block
	feat    score.BlockFeatures
	unitLen int
}

type scoreTable struct {
	model *score.Model
}

func (t scoreTable) ApplicantScore(a *rirmatch.Applicant, b *rirmatch.Block) (float64, error) {
	return t.model.ApplicantScore(&a.Info.(*asEntry).feat, &b.Info.(*blockEntry).feat)
}

func (t scoreTable) BlockScore(b *rirmatch.Block, a *rirmatch.Applicant) (float64, error) {
	return t.model.BlockScore(&b.Info.(*blockEntry).feat, &a.Info.(*asEntry).feat)
}

// Match allocates blocks to ases with deferred acceptance.
func (m *Matcher) Match(ctx context.Context, ases []*AS, blocks []*Block) (allocs []*Alloc, res *rirmatch.Result, summary Summary, err error) {
	m.init()
	return m.match(ctx, m.engine(), ases, blocks)
}

// MatchWith is Match with another matching engine, the baselines for
// instance. Scoring and seat assignment are the same.
func (m *Matcher) MatchWith(ctx context.Context, engine rirmatch.Matcher, ases []*AS, blocks []*Block) (allocs []*Alloc, res *rirmatch.Result, summary Summary, err error) {
	m.init()
	return m.match(ctx, engine, ases, blocks)
}

func (m *Matcher) match(ctx context.Context, engine rirmatch.Matcher, ases []*AS, blocks []*Block) ([]*Alloc, *rirmatch.Result, Summary, error) {
	var summ Summary

	applicants, err := genApplicants(ases)
	if err != nil {
		return nil, nil, summ, err
	}
	bks, err := m.genBlocks(blocks)
	if err != nil {
		return nil, nil, summ, err
	}

	summ.ASes = len(applicants)
	summ.Blocks = len(bks)
	for _, a := range applicants {
		summ.UnitsRequested += a.Need
	}
	for _, b := range bks {
		summ.UnitsAvailable += b.Cap
	}
	m.logger().Info("population", "ases", summ.ASes, "blocks", summ.Blocks,
		"requested", summ.UnitsRequested, "available", summ.UnitsAvailable)

	model, err := score.NewModel(m.weights, m.locality())
	if err != nil {
		return nil, nil, summ, err
	}
	prefs, err := rirmatch.BuildPreferences(applicants, bks, scoreTable{model}, &rirmatch.PrefOption{
		ApplicantThreshold: m.ApplicantThreshold,
		BlockThreshold:     m.BlockThreshold,
		Parallel:           m.Parallel,
	})
	if err != nil {
		return nil, nil, summ, errors.Wrap(err, "build preferences")
	}
	for _, ex := range prefs.Excluded {
		m.logger().Warn("excluded", "id", ex.ID, "reason", ex.Reason)
	}

	res, err := engine.Match(ctx, applicants, bks, prefs)
	if err != nil {
		return nil, nil, summ, errors.Wrap(err, "match")
	}
	if err := res.CheckCapacity(bks); err != nil {
		return nil, nil, summ, err
	}

	allocs, err := genAllocs(res, bks, prefs)
	if err != nil {
		return nil, nil, summ, err
	}

	for _, alloc := range allocs {
		for _, a := range alloc.Allocations {
			summ.UnitsAllocated += a.Units
		}
	}
	summ.Unmatched = len(res.Unmatched)
	summ.Aggregations = Aggregations(ases, allocs)
	summ.Rounds = res.Rounds
	summ.Stable = res.Stable

	for _, r := range res.Unmatched {
		m.logger().Debug("unmatched", "asn", r.ApplicantID, "need", r.Need, "unmet", r.Unmet)
	}
	for _, bp := range res.BlockingPairs {
		m.logger().Debug("blocking pair", "asn", bp.ApplicantID, "block", bp.BlockID)
	}
	m.logger().Info("allocated", "units", summ.UnitsAllocated, "unmatched", summ.Unmatched,
		"aggregations", summ.Aggregations, "rounds", summ.Rounds, "stable", summ.Stable)

	return allocs, res, summ, nil
}

func genApplicants(ases []*AS) ([]rirmatch.Applicant, error) {
	applicants := make([]rirmatch.Applicant, len(ases))

	for i, as := range ases {
		e := &asEntry{
			rec: as,
			feat: score.ASFeatures{
				ID:     as.ASN,
				Held:   as.Held,
				Growth: as.Growth,
				Region: score.Location{Registry: as.Registry, Country: as.Country},
				Abuse:  as.Abuse,
				Peers:  as.Peers,
			},
		}
		if as.Prefix != "" {
			p, err := netip.ParsePrefix(as.Prefix)
			if err != nil {
				return nil, rirmatch.NewError(rirmatch.ErrInvalidFeatureVector,
					fmt.Sprintf("bad prefix %q", as.Prefix), as.ASN)
			}
			e.feat.Prefix = p.Masked()
		}
		if err := e.feat.Validate(); err != nil {
			return nil, err
		}

		applicants[i].ID = as.ASN
		applicants[i].Need = as.Need
		applicants[i].Info = e
	}

	return applicants, nil
}

func (m *Matcher) genBlocks(blocks []*Block) ([]rirmatch.Block, error) {
	bks := make([]rirmatch.Block, len(blocks))
	entries := make([]*blockEntry, len(blocks))

	for i, b := range blocks {
		p, err := netip.ParsePrefix(b.Block)
		if err != nil || p != p.Masked() {
			return nil, rirmatch.NewError(rirmatch.ErrInvalidFeatureVector, "bad block prefix", b.Block)
		}

		unitLen := m.ul4
		if p.Addr().Is6() {
			unitLen = m.ul6
		}
		if b.UnitLength != nil {
			unitLen = *b.UnitLength
		}
		if unitLen < 0 || unitLen > p.Addr().BitLen() {
			return nil, rirmatch.NewError(rirmatch.ErrInvalidFeatureVector,
				fmt.Sprintf("unit length /%d out of range", unitLen), b.Block)
		}

		e := &blockEntry{
			rec: b,
			feat: score.BlockFeatures{
				ID:          b.Block,
				Prefix:      p,
				Abuse:       b.Abuse,
				Region:      score.Location{Registry: b.Registry, Country: b.Country},
				Routability: b.Routability,
			},
			unitLen: unitLen,
		}
		if err := e.feat.Validate(); err != nil {
			return nil, err
		}
		entries[i] = e

		bks[i].ID = b.Block
		bks[i].Cap = UnitsOf(p, unitLen)
		bks[i].Info = e
	}

	if err := checkOverlap(entries); err != nil {
		return nil, err
	}
	return bks, nil
}

// UnitsOf returns how many /unitLen units p holds, capped at MaxBlockUnits.
// It is zero when unitLen is shorter than p.
func UnitsOf(p netip.Prefix, unitLen int) int64 {
	shift := unitLen - p.Bits()
	switch {
	case shift < 0:
		return 0
	case shift >= 20:
		return MaxBlockUnits
	}
	return 1 << shift
}

// checkOverlap rejects blocks sharing any address.
func checkOverlap(entries []*blockEntry) error {
	sorted := append([]*blockEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		pi, pj := sorted[i].feat.Prefix, sorted[j].feat.Prefix
		if c := pi.Addr().Compare(pj.Addr()); c != 0 {
			return c < 0
		}
		return pi.Bits() < pj.Bits()
	})

	var (
		last   netip.Addr
		lastID string
	)
	for _, e := range sorted {
		p := e.feat.Prefix
		if last.IsValid() && last.BitLen() == p.Addr().BitLen() && p.Addr().Compare(last) <= 0 {
			return rirmatch.NewError(rirmatch.ErrInvalidFeatureVector, "overlapping blocks", lastID, e.feat.ID)
		}
		if end := netipx.PrefixLastIP(p); !last.IsValid() || end.Compare(last) > 0 {
			last, lastID = end, e.feat.ID
		}
	}
	return nil
}

func genAllocs(res *rirmatch.Result, bks []rirmatch.Block, prefs *rirmatch.Preferences) ([]*Alloc, error) {
	holders := make(map[string]map[string]int64) // blockID -> asn -> units
	for asn, records := range res.Matches {
		for _, rec := range records {
			if holders[rec.BlockID] == nil {
				holders[rec.BlockID] = make(map[string]int64)
			}
			holders[rec.BlockID][asn] += rec.Units
		}
	}

	prefixes := make(map[[2]string][]string) // (asn, blockID) -> prefixes
	for _, b := range bks {
		hs := holders[b.ID]
		if len(hs) == 0 {
			continue
		}
		e := b.Info.(*blockEntry)

		order := orderHolders(prefs.Blocks[b.ID], hs)
		next := 0
		for _, asn := range order {
			units := int(hs[asn])
			ps, err := seatPrefixes(e.feat.Prefix, e.unitLen, next, units)
			if err != nil {
				return nil, errors.Wrapf(err, "assign seats of %s", b.ID)
			}
			prefixes[[2]string{asn, b.ID}] = ps
			next += units
		}
	}

	var allocs []*Alloc
	for asn, records := range res.Matches {
		alloc := &Alloc{
			ASN:         asn,
			Allocations: make([]Allocation, len(records)),
		}
		for i, rec := range records {
			alloc.Allocations[i] = Allocation{
				Block:    rec.BlockID,
				Units:    rec.Units,
				Prefixes: prefixes[[2]string{asn, rec.BlockID}],
			}
		}
		allocs = append(allocs, alloc)
	}

	sort.Slice(allocs, func(i, j int) bool {
		return allocs[i].ASN < allocs[j].ASN
	})

	return allocs, nil
}

// orderHolders lists the holders of a block in its preference order. Holders
// the block never listed come last, by id.
func orderHolders(pref []string, hs map[string]int64) []string {
	order := make([]string, 0, len(hs))
	seen := make(map[string]bool, len(hs))
	for _, asn := range pref {
		if _, ok := hs[asn]; ok {
			order = append(order, asn)
			seen[asn] = true
		}
	}
	var rest []string
	for asn := range hs {
		if !seen[asn] {
			rest = append(rest, asn)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

// seatPrefixes returns the smallest prefix list covering seats
// [first, first+n) of block, each seat being a /unitLen.
func seatPrefixes(block netip.Prefix, unitLen int, first, n int) ([]string, error) {
	base := &net.IPNet{
		IP:   block.Addr().AsSlice(),
		Mask: net.CIDRMask(block.Bits(), block.Addr().BitLen()),
	}
	newBits := unitLen - block.Bits()

	lo, err := cidr.Subnet(base, newBits, first)
	if err != nil {
		return nil, err
	}
	hi, err := cidr.Subnet(base, newBits, first+n-1)
	if err != nil {
		return nil, err
	}
	loP, ok := netipx.FromStdIPNet(lo)
	if !ok {
		return nil, errors.Errorf("bad subnet %v", lo)
	}
	hiP, ok := netipx.FromStdIPNet(hi)
	if !ok {
		return nil, errors.Errorf("bad subnet %v", hi)
	}

	r := netipx.IPRangeFrom(loP.Addr(), netipx.PrefixLastIP(hiP))
	var ps []string
	for _, p := range r.Prefixes() {
		ps = append(ps, p.String())
	}
	return ps, nil
}

// Aggregations counts allocations with a prefix that aggregates with the
// space the autonomous system already holds.
func Aggregations(ases []*AS, allocs []*Alloc) int {
	held := make(map[string]netip.Prefix, len(ases))
	for _, as := range ases {
		if p, err := netip.ParsePrefix(as.Prefix); err == nil {
			held[as.ASN] = p.Masked()
		}
	}

	n := 0
	for _, alloc := range allocs {
		h, ok := held[alloc.ASN]
		if !ok {
			continue
		}
		for _, a := range alloc.Allocations {
			for _, s := range a.Prefixes {
				if p, err := netip.ParsePrefix(s); err == nil && score.Aggregatable(h, p) {
					n++
					break
				}
			}
		}
	}
	return n
}
