// Copyright 2024 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package score

import (
	"fmt"
	"math"

	"github.com/someonegg/rirmatch"
)

const (
	nearestDist  = 10.0
	farthestDist = 90.0

	peersHalf = 16 // footprint sub-score is 0.5 at this many peers
)

// Validate fails with rirmatch.ErrInvalidWeightConfiguration on negative
// weights or a sum other than 1.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Performance, w.Security, w.Locality} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return rirmatch.NewError(rirmatch.ErrInvalidWeightConfiguration,
				fmt.Sprintf("weight %v out of range", v))
		}
	}
	if sum := w.Performance + w.Security + w.Locality; math.Abs(sum-1) > weightTolerance {
		return rirmatch.NewError(rirmatch.ErrInvalidWeightConfiguration,
			fmt.Sprintf("weights sum to %v", sum))
	}
	return nil
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}

func (f *ASFeatures) Validate() error {
	invalid := func(detail string) error {
		return rirmatch.NewError(rirmatch.ErrInvalidFeatureVector, detail, f.ID)
	}
	switch {
	case f.ID == "":
		return rirmatch.NewError(rirmatch.ErrInvalidFeatureVector, "autonomous system without id")
	case f.Held < 0:
		return invalid("negative held addresses")
	case f.Peers < 0:
		return invalid("negative peer count")
	case math.IsNaN(f.Growth) || math.IsInf(f.Growth, 0) || f.Growth < -1:
		return invalid("growth out of range")
	case !unit(f.Abuse):
		return invalid("abuse score out of [0, 1]")
	}
	return nil
}

func (f *BlockFeatures) Validate() error {
	invalid := func(detail string) error {
		return rirmatch.NewError(rirmatch.ErrInvalidFeatureVector, detail, f.ID)
	}
	switch {
	case f.ID == "":
		return rirmatch.NewError(rirmatch.ErrInvalidFeatureVector, "block without id")
	case !f.Prefix.IsValid():
		return invalid("missing block prefix")
	case !unit(f.Abuse):
		return invalid("abuse score out of [0, 1]")
	case !unit(f.Routability):
		return invalid("routability out of [0, 1]")
	}
	return nil
}

// NormalizeDistance maps a location distance onto [0, 1], 1 being nearest.
func NormalizeDistance(dist float32) float64 {
	v := (farthestDist - float64(dist)) / (farthestDist - nearestDist)
	return math.Max(0, math.Min(1, v))
}

// Model is a weighted linear scoring model. Both directions score in [0, 1].
type Model struct {
	weights  Weights
	locality LocationScorer
}

func NewModel(weights Weights, locality LocationScorer) (*Model, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Model{weights: weights, locality: locality}, nil
}

func (m *Model) Weights() Weights { return m.weights }

func (m *Model) localityOf(a, b Location) float64 {
	if m.locality == nil {
		return 0
	}
	dist, _ := m.locality.DistScore(a, b)
	return NormalizeDistance(dist)
}

func (m *Model) combine(perf, sec, loc float64) float64 {
	w := m.weights
	return w.Performance*perf + w.Security*sec + w.Locality*loc
}

// ApplicantScore is the autonomous system's view of the block.
func (m *Model) ApplicantScore(as *ASFeatures, block *BlockFeatures) (float64, error) {
	if err := as.Validate(); err != nil {
		return 0, err
	}
	if err := block.Validate(); err != nil {
		return 0, err
	}

	perf := (AggregationScore(as.Prefix, block.Prefix) + block.Routability) / 2
	sec := 1 - block.Abuse
	loc := m.localityOf(as.Region, block.Region)
	return m.combine(perf, sec, loc), nil
}

// BlockScore is the registry's view of the autonomous system for the block.
func (m *Model) BlockScore(block *BlockFeatures, as *ASFeatures) (float64, error) {
	if err := as.Validate(); err != nil {
		return 0, err
	}
	if err := block.Validate(); err != nil {
		return 0, err
	}

	footprint := float64(as.Peers) / float64(as.Peers+peersHalf)
	growth := 0.0
	if as.Growth > 0 {
		growth = as.Growth / (as.Growth + 1)
	}
	perf := (AggregationScore(as.Prefix, block.Prefix) + footprint + growth) / 3
	sec := 1 - as.Abuse
	loc := m.localityOf(block.Region, as.Region)
	return m.combine(perf, sec, loc), nil
}
