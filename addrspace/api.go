// Copyright 2024 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package addrspace uses rirmatch to allocate registry address blocks to
// autonomous systems.
package addrspace

import (
	"github.com/charmbracelet/log"

	"github.com/someonegg/rirmatch"
	"github.com/someonegg/rirmatch/score"
)

// AS is an autonomous system asking for address space.
type AS struct {
	ASN      string  `json:"asn"`
	Prefix   string  `json:"prefix,omitempty"` // held space, optional
	Held     int64   `json:"held,omitempty"`   // addresses already held
	Growth   float64 `json:"growth,omitempty"` // yearly, 0.25 is +25%
	Registry string  `json:"registry,omitempty"`
	Country  string  `json:"country,omitempty"`
	Abuse    float64 `json:"abuse,omitempty"`
	Peers    int     `json:"peers,omitempty"`
	Need     int64   `json:"need"` // units
}

// Block is an address block offered by a registry.
type Block struct {
	Block       string  `json:"block"` // CIDR
	Registry    string  `json:"registry,omitempty"`
	Country     string  `json:"country,omitempty"`
	Abuse       float64 `json:"abuse,omitempty"`
	Routability float64 `json:"routability"`

	// Prefix length of one allocatable unit, overrides the matcher default.
	UnitLength *int `json:"unit_length,omitempty"`
}

type Alloc struct {
	ASN         string       `json:"asn"`
	Allocations []Allocation `json:"allocations"`
}

type Allocation struct {
	Block    string   `json:"block"`
	Units    int64    `json:"units"`
	Prefixes []string `json:"prefixes"`
}

const (
	DefaultUnitLength4 = 24
	DefaultUnitLength6 = 48

	// MaxBlockUnits caps the capacity of a single block.
	MaxBlockUnits = 1 << 20
)

type Matcher struct {
	Weights *score.Weights `json:"weights" toml:"weights"`

	UnitLength4 *int `json:"unit_length4" toml:"unit_length4"`
	UnitLength6 *int `json:"unit_length6" toml:"unit_length6"`

	// Pairs scoring below a threshold are unacceptable to the scoring side.
	ApplicantThreshold *float64 `json:"as_threshold" toml:"as_threshold"`
	BlockThreshold     *float64 `json:"block_threshold" toml:"block_threshold"`

	Proposer rirmatch.Side           `json:"-" toml:"-"`
	Policy   rirmatch.CapacityPolicy `json:"-" toml:"-"`

	// MaxRounds bounds deferred acceptance, zero means the default bound.
	MaxRounds int  `json:"max_rounds" toml:"max_rounds"`
	Parallel  bool `json:"parallel" toml:"parallel"`

	// Locality overrides the registry region distance table.
	Locality score.LocationScorer `json:"-" toml:"-"`

	Logger *log.Logger `json:"-" toml:"-"` // can be nil

	weights score.Weights
	ul4     int
	ul6     int
}

type Summary struct {
	ASes           int   `json:"ases"`
	Blocks         int   `json:"blocks"`
	UnitsRequested int64 `json:"units_requested"`
	UnitsAvailable int64 `json:"units_available"`
	UnitsAllocated int64 `json:"units_allocated"`
	Unmatched      int   `json:"unmatched"`
	Aggregations   int   `json:"aggregations"`
	Rounds         int   `json:"rounds"`
	Stable         bool  `json:"stable"`
}
