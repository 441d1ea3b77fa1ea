// Copyright 2024 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rirmatch

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// PrefOption tunes BuildPreferences. A nil option means no thresholds.
type PrefOption struct {
	// Blocks an applicant scores below ApplicantThreshold are left off its list.
	ApplicantThreshold *float64
	// Applicants a block scores below BlockThreshold are left off its list.
	BlockThreshold *float64

	// Score rows concurrently. The result is identical either way.
	Parallel bool
}

type candidate struct {
	id    string
	score float64
}

// BuildPreferences scores both populations against each other and derives
// strict preference lists, best first. Equal scores are ordered by identifier.
// Blocks without capacity are excluded from every list and reported.
func BuildPreferences(applicants []Applicant, blocks []Block, table ScoreTable, opt *PrefOption) (*Preferences, error) {
	if opt == nil {
		opt = &PrefOption{}
	}

	if err := checkApplicants(applicants); err != nil {
		return nil, err
	}
	active, excluded, err := checkBlocks(blocks)
	if err != nil {
		return nil, err
	}
	if len(applicants) == 0 {
		return nil, newError(ErrEmptyPopulation, "no applicants")
	}
	if len(active) == 0 {
		return nil, newError(ErrEmptyPopulation, "no blocks with capacity")
	}

	aScores := make([][]float64, len(applicants))
	bScores := make([][]float64, len(active))

	var g errgroup.Group
	if !opt.Parallel {
		g.SetLimit(1)
	}
	for i := range applicants {
		i := i
		g.Go(func() error {
			row := make([]float64, len(active))
			for j := range active {
				s, err := table.ApplicantScore(&applicants[i], active[j])
				if err != nil {
					return errors.Wrapf(err, "score %s -> %s", applicants[i].ID, active[j].ID)
				}
				if math.IsNaN(s) {
					return newError(ErrInvalidFeatureVector, "score is NaN", applicants[i].ID, active[j].ID)
				}
				row[j] = s
			}
			aScores[i] = row
			return nil
		})
	}
	for j := range active {
		j := j
		g.Go(func() error {
			row := make([]float64, len(applicants))
			for i := range applicants {
				s, err := table.BlockScore(active[j], &applicants[i])
				if err != nil {
					return errors.Wrapf(err, "score %s -> %s", active[j].ID, applicants[i].ID)
				}
				if math.IsNaN(s) {
					return newError(ErrInvalidFeatureVector, "score is NaN", active[j].ID, applicants[i].ID)
				}
				row[i] = s
			}
			bScores[j] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	prefs := &Preferences{
		Applicants: make(map[string][]string, len(applicants)),
		Blocks:     make(map[string][]string, len(active)),
		Excluded:   excluded,
	}

	cands := make([]candidate, 0, len(active))
	for i := range applicants {
		cands = cands[:0]
		for j, s := range aScores[i] {
			if opt.ApplicantThreshold != nil && s < *opt.ApplicantThreshold {
				continue
			}
			cands = append(cands, candidate{active[j].ID, s})
		}
		prefs.Applicants[applicants[i].ID] = rankCandidates(cands)
	}

	cands = make([]candidate, 0, len(applicants))
	for j := range active {
		cands = cands[:0]
		for i, s := range bScores[j] {
			if opt.BlockThreshold != nil && s < *opt.BlockThreshold {
				continue
			}
			cands = append(cands, candidate{applicants[i].ID, s})
		}
		prefs.Blocks[active[j].ID] = rankCandidates(cands)
	}

	return prefs, nil
}

func rankCandidates(cands []candidate) []string {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].id < cands[j].id
	})
	ids := make([]string, len(cands))
	for i, c := range cands {
		ids[i] = c.id
	}
	return ids
}

func checkApplicants(applicants []Applicant) error {
	seen := make(map[string]bool, len(applicants))
	for i := range applicants {
		a := &applicants[i]
		if a.ID == "" {
			return newError(ErrInvalidFeatureVector, "applicant without id")
		}
		if seen[a.ID] {
			return newError(ErrInvalidFeatureVector, "duplicated applicant id", a.ID)
		}
		seen[a.ID] = true
		if a.Need < 1 {
			return newError(ErrInvalidFeatureVector, "need must be at least 1", a.ID)
		}
	}
	return nil
}

func checkBlocks(blocks []Block) (active []*Block, excluded []Exclusion, err error) {
	seen := make(map[string]bool, len(blocks))
	for i := range blocks {
		b := &blocks[i]
		if b.ID == "" {
			return nil, nil, newError(ErrInvalidFeatureVector, "block without id")
		}
		if seen[b.ID] {
			return nil, nil, newError(ErrInvalidFeatureVector, "duplicated block id", b.ID)
		}
		seen[b.ID] = true
		if b.Cap < 0 {
			return nil, nil, newError(ErrInvalidFeatureVector, "negative capacity", b.ID)
		}
		if b.Cap == 0 {
			excluded = append(excluded, Exclusion{ID: b.ID, Block: true, Reason: "zero capacity"})
			continue
		}
		active = append(active, b)
	}
	return active, excluded, nil
}
