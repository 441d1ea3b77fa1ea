// Copyright 2024 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	"github.com/someonegg/rirmatch"
	"github.com/someonegg/rirmatch/addrspace"
)

type benchStat struct {
	name         string
	aggregations int
	allocated    int64
	unmatched    int
	stable       int
	worse        int // runs with fewer aggregations than deferred acceptance
}

func (s *benchStat) add(summ addrspace.Summary) {
	s.aggregations += summ.Aggregations
	s.allocated += summ.UnitsAllocated
	s.unmatched += summ.Unmatched
	if summ.Stable {
		s.stable++
	}
}

func runBench(ctx context.Context, m *addrspace.Matcher, nASes, nBlocks, runs int, seed int64) ([]*benchStat, error) {
	stats := []*benchStat{{name: "deferred"}, {name: "random"}, {name: "greedy"}}

	for r := 0; r < runs; r++ {
		rseed := seed + int64(r)
		ases, blocks, err := genPopulation(rand.New(rand.NewSource(rseed)), nASes, nBlocks)
		if err != nil {
			return nil, err
		}

		engines := []rirmatch.Matcher{
			nil,
			rirmatch.RandomMatcher(rseed, m.Policy),
			rirmatch.GreedyMatcher(m.Policy),
		}
		var da addrspace.Summary
		for i, engine := range engines {
			var summ addrspace.Summary
			if engine == nil {
				_, _, summ, err = m.Match(ctx, ases, blocks)
				da = summ
			} else {
				_, _, summ, err = m.MatchWith(ctx, engine, ases, blocks)
			}
			if err != nil {
				return nil, errors.Wrapf(err, "run %d, %s", r, stats[i].name)
			}
			stats[i].add(summ)
			if summ.Aggregations < da.Aggregations {
				stats[i].worse++
			}
		}
	}

	return stats, nil
}

func doBench(ctx context.Context, w io.Writer, m *addrspace.Matcher, nASes, nBlocks, runs int, seed int64) error {
	stats, err := runBench(ctx, m, nASes, nBlocks, runs, seed)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "ases: %v, blocks: %v, runs: %v, seed: %v\n", nASes, nBlocks, runs, seed)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Matcher", "Aggregations", "Allocated", "Unmatched", "Stable Runs", "Worse Runs"})
	for _, s := range stats {
		table.Append([]string{
			s.name,
			strconv.FormatFloat(float64(s.aggregations)/float64(runs), 'f', 2, 64),
			strconv.FormatFloat(float64(s.allocated)/float64(runs), 'f', 2, 64),
			strconv.FormatFloat(float64(s.unmatched)/float64(runs), 'f', 2, 64),
			strconv.Itoa(s.stable),
			strconv.Itoa(s.worse),
		})
	}
	table.Render()
	return nil
}
