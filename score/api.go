// Copyright 2024 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package score turns autonomous system and block features into comparable
// suitability scores.
package score

import "net/netip"

// Location is where a network operates: the registry serving it and the
// country within that registry.
type Location struct {
	Registry string `json:"registry" toml:"registry"`
	Country  string `json:"country" toml:"country"`
}

type LocationUnifier interface {
	Unify(l Location) Location
}

// LocationScorer measures the network distance between two locations.
// Lower is closer.
type LocationScorer interface {
	DistScore(a, b Location) (score float32, local bool)
}

// ASFeatures is the feature vector of a requesting autonomous system.
type ASFeatures struct {
	ID string

	Prefix netip.Prefix // currently held space, zero if none
	Held   int64        // addresses held
	Growth float64      // yearly growth ratio, >= -1
	Region Location
	Abuse  float64 // [0, 1], 0 is clean
	Peers  int     // peering footprint
}

// BlockFeatures is the feature vector of an offered block.
type BlockFeatures struct {
	ID string

	Prefix      netip.Prefix
	Abuse       float64 // [0, 1], history of the space
	Region      Location
	Routability float64 // [0, 1], aggregation quality
}

// Weights combines the three sub-scores. They must be non-negative and sum to 1.
type Weights struct {
	Performance float64 `json:"performance" toml:"performance"`
	Security    float64 `json:"security" toml:"security"`
	Locality    float64 `json:"locality" toml:"locality"`
}

var DefaultWeights = Weights{
	Performance: 0.4,
	Security:    0.4,
	Locality:    0.2,
}

const weightTolerance = 1e-6
