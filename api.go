// Copyright 2024 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rirmatch provides stable allocation of registry address blocks to
// requesting autonomous systems, using capacitated deferred acceptance over
// score-derived preference lists.
package rirmatch

import (
	"context"

	"github.com/pkg/errors"
)

// Matcher computes an allocation from fully materialized preferences.
type Matcher interface {
	Match(ctx context.Context, applicants []Applicant, blocks []Block, prefs *Preferences) (*Result, error)
}

// Applicant is an autonomous system asking for address units.
type Applicant struct {
	ID   string
	Need int64
	Info interface{}
}

// Block is an address block offering Cap allocatable units (seats).
type Block struct {
	ID   string
	Cap  int64
	Info interface{}
}

// ScoreTable scores every (applicant, block) pair from both perspectives.
// Higher is better. Implementations must be total and deterministic.
type ScoreTable interface {
	ApplicantScore(applicant *Applicant, block *Block) (float64, error)
	BlockScore(block *Block, applicant *Applicant) (float64, error)
}

// Preferences holds the strict preference lists of both sides.
// Lists are never modified once built.
type Preferences struct {
	Applicants map[string][]string // applicantID -> blockIDs, best first
	Blocks     map[string][]string // blockID -> applicantIDs, best first

	Excluded []Exclusion
}

// Exclusion records a population member removed before matching.
type Exclusion struct {
	ID     string `json:"id"`
	Block  bool   `json:"block"`
	Reason string `json:"reason"`
}

// Side selects which population proposes.
type Side int

const (
	ApplicantsPropose Side = iota
	BlocksPropose
)

func (s Side) String() string {
	if s == BlocksPropose {
		return "blocks"
	}
	return "applicants"
}

// CapacityPolicy decides how the seats of one block may be shared.
type CapacityPolicy int

const (
	// DistinctSeats gives each seat of a block to a different applicant.
	DistinctSeats CapacityPolicy = iota
	// SharedSeats lets one applicant hold several seats of the same block.
	SharedSeats
)

func (p CapacityPolicy) String() string {
	if p == SharedSeats {
		return "shared"
	}
	return "distinct"
}

type Matches map[string][]Assignment // applicantID

type Assignment struct {
	BlockID string `json:"block"`
	Units   int64  `json:"units"`
}

// Residual is an applicant left (fully or partially) without units.
type Residual struct {
	ApplicantID string `json:"asn"`
	Need        int64  `json:"need"`
	Unmet       int64  `json:"unmet"`
}

type BlockingPair struct {
	ApplicantID string `json:"asn"`
	BlockID     string `json:"block"`
}

// Result is the terminal output of one allocation run.
type Result struct {
	Matches   Matches
	Unmatched []Residual
	Excluded  []Exclusion

	Rounds    int
	Proposals map[string]int // proposerID -> proposals made

	Stable        bool
	BlockingPairs []BlockingPair
}

// Units returns the number of units assigned to the applicant.
func (r *Result) Units(applicantID string) int64 {
	var n int64
	for _, a := range r.Matches[applicantID] {
		n += a.Units
	}
	return n
}

// CheckCapacity reports the first block whose allocated units exceed its capacity.
func (r *Result) CheckCapacity(blocks []Block) error {
	used := make(map[string]int64, len(blocks))
	for _, records := range r.Matches {
		for _, rec := range records {
			used[rec.BlockID] += rec.Units
		}
	}
	for _, b := range blocks {
		if used[b.ID] > b.Cap {
			return errors.Errorf("block %s over-allocated: %d > %d", b.ID, used[b.ID], b.Cap)
		}
	}
	return nil
}
