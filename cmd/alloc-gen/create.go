// Copyright 2024 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	"github.com/someonegg/rirmatch"
	"github.com/someonegg/rirmatch/addrspace"
)

type Allocs struct {
	Allocs    []*addrspace.Alloc   `json:"allocs"`
	Unmatched []rirmatch.Residual  `json:"unmatched"`
	Excluded  []rirmatch.Exclusion `json:"excluded,omitempty"`
	Summary   addrspace.Summary    `json:"summary"`
}

func doCreate(ctx context.Context, m *addrspace.Matcher, asFile, blockFile, allocFile string) error {
	ases, err := loadASes(asFile)
	if err != nil {
		return errors.Wrap(err, "load as file failed")
	}

	blocks, err := loadBlocks(blockFile)
	if err != nil {
		return errors.Wrap(err, "load block file failed")
	}

	allocs, res, summ, err := m.Match(ctx, ases, blocks)
	if err != nil {
		return err
	}
	printSummary(os.Stdout, summ)

	err = writeAllocs(allocFile, &Allocs{
		Allocs:    allocs,
		Unmatched: res.Unmatched,
		Excluded:  res.Excluded,
		Summary:   summ,
	})
	if err != nil {
		return errors.Wrap(err, "write alloc file failed")
	}

	return nil
}

func printSummary(w io.Writer, summ addrspace.Summary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ASes", "Blocks", "Requested", "Available", "Allocated", "Unmatched", "Aggregations", "Rounds", "Stable"})
	table.Append([]string{
		strconv.Itoa(summ.ASes),
		strconv.Itoa(summ.Blocks),
		strconv.FormatInt(summ.UnitsRequested, 10),
		strconv.FormatInt(summ.UnitsAvailable, 10),
		strconv.FormatInt(summ.UnitsAllocated, 10),
		strconv.Itoa(summ.Unmatched),
		strconv.Itoa(summ.Aggregations),
		strconv.Itoa(summ.Rounds),
		strconv.FormatBool(summ.Stable),
	})
	table.Render()
}

func writeAllocs(file string, allocs *Allocs) error {
	if allocs.Allocs == nil {
		allocs.Allocs = []*addrspace.Alloc{}
	}
	if allocs.Unmatched == nil {
		allocs.Unmatched = []rirmatch.Residual{}
	}

	var buf bytes.Buffer

	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "   ")
	if err := encoder.Encode(allocs); err != nil {
		return err
	}

	return os.WriteFile(file, buf.Bytes(), 0644)
}
