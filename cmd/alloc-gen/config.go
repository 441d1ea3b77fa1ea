// Copyright 2024 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/someonegg/rirmatch"
	"github.com/someonegg/rirmatch/addrspace"
	"github.com/someonegg/rirmatch/score"
	"github.com/someonegg/rirmatch/score/rir"
)

// Config is the matcher configuration file.
//
//	proposer = "as"
//	policy = "shared"
//
//	[matcher]
//	unit_length4 = 24
//	as_threshold = 0.3
//
//	[matcher.weights]
//	performance = 0.5
//	security = 0.3
//	locality = 0.2
//
//	[[unify]]
//	source = { country = "england" }
//	target = { registry = "RIPE", country = "GB" }
//
//	[[score]]
//	a = { country = "IE" }
//	b = { country = "GB" }
//	score = 10.0
//	local = true
type Config struct {
	Proposer string            `toml:"proposer"`
	Policy   string            `toml:"policy"`
	Matcher  addrspace.Matcher `toml:"matcher"`

	Unify  []score.UnifyRecord `toml:"unify"`
	Scores []score.ScoreRecord `toml:"score"`
}

func loadConfig(file string) (*Config, error) {
	cfg := &Config{}
	if file == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "load config file failed")
	}
	if err := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config file %s failed", file)
	}
	return cfg, nil
}

func parseProposer(s string) (rirmatch.Side, error) {
	switch strings.ToLower(s) {
	case "", "as", "ases", "applicants":
		return rirmatch.ApplicantsPropose, nil
	case "block", "blocks":
		return rirmatch.BlocksPropose, nil
	}
	return 0, errors.Errorf("invalid proposer %q", s)
}

func parsePolicy(s string) (rirmatch.CapacityPolicy, error) {
	switch strings.ToLower(s) {
	case "", "distinct":
		return rirmatch.DistinctSeats, nil
	case "shared":
		return rirmatch.SharedSeats, nil
	}
	return 0, errors.Errorf("invalid policy %q", s)
}

// build returns the configured matcher. Location overrides apply on top of
// the registry region table.
func (cfg *Config) build() (*addrspace.Matcher, error) {
	m := cfg.Matcher

	var err error
	if m.Proposer, err = parseProposer(cfg.Proposer); err != nil {
		return nil, err
	}
	if m.Policy, err = parsePolicy(cfg.Policy); err != nil {
		return nil, err
	}
	if m.Weights != nil {
		if err := m.Weights.Validate(); err != nil {
			return nil, err
		}
	}

	if len(cfg.Unify) > 0 || len(cfg.Scores) > 0 {
		unifier := score.NewComplexUnifier(rir.Unifier{}, unifyRecords(cfg.Unify))
		m.Locality = score.NewUnifiedScorer(unifier,
			score.NewComplexScorer(rir.Scorer{}, scoreRecords(cfg.Scores)))
	}
	return &m, nil
}

// Sources match the raw record fields. Targets and score keys are unified
// so they compare equal to unified locations.
func unifyRecords(recs []score.UnifyRecord) []score.UnifyRecord {
	out := make([]score.UnifyRecord, len(recs))
	for i, rec := range recs {
		out[i] = score.UnifyRecord{Source: rec.Source, Target: rir.UnifyLocation(rec.Target)}
	}
	return out
}

func scoreRecords(recs []score.ScoreRecord) []score.ScoreRecord {
	out := make([]score.ScoreRecord, len(recs))
	for i, rec := range recs {
		out[i] = rec
		out[i].A = rir.UnifyLocation(rec.A)
		out[i].B = rir.UnifyLocation(rec.B)
	}
	return out
}
