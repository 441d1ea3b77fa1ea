// Copyright 2024 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rirmatch

// party is one side of the market in index form.
type party struct {
	ids   []string
	quota []int64
	prefs [][]int   // indices into the other party, best first
	rank  [][]int32 // rank[i][j] = position of j in prefs[i], -1 if unacceptable
}

func (p *party) len() int { return len(p.ids) }

// acceptable reports whether i listed j.
func (p *party) acceptable(i, j int) bool { return p.rank[i][j] >= 0 }

type tables struct {
	applicants party
	blocks     party
}

func newTables(applicants []Applicant, blocks []Block, prefs *Preferences) (*tables, error) {
	if len(applicants) == 0 {
		return nil, newError(ErrEmptyPopulation, "no applicants")
	}
	if len(blocks) == 0 {
		return nil, newError(ErrEmptyPopulation, "no blocks")
	}
	if prefs == nil {
		return nil, newError(ErrInvalidPreferences, "missing preferences")
	}

	t := &tables{}

	aIndex := make(map[string]int, len(applicants))
	t.applicants.ids = make([]string, len(applicants))
	t.applicants.quota = make([]int64, len(applicants))
	for i, a := range applicants {
		if _, ok := aIndex[a.ID]; ok {
			return nil, newError(ErrInvalidPreferences, "duplicated applicant id", a.ID)
		}
		aIndex[a.ID] = i
		t.applicants.ids[i] = a.ID
		t.applicants.quota[i] = a.Need
	}

	bIndex := make(map[string]int, len(blocks))
	t.blocks.ids = make([]string, len(blocks))
	t.blocks.quota = make([]int64, len(blocks))
	for j, b := range blocks {
		if _, ok := bIndex[b.ID]; ok {
			return nil, newError(ErrInvalidPreferences, "duplicated block id", b.ID)
		}
		bIndex[b.ID] = j
		t.blocks.ids[j] = b.ID
		t.blocks.quota[j] = b.Cap
	}

	var err error
	t.applicants.prefs, t.applicants.rank, err = indexLists(t.applicants.ids, prefs.Applicants, bIndex)
	if err != nil {
		return nil, err
	}
	t.blocks.prefs, t.blocks.rank, err = indexLists(t.blocks.ids, prefs.Blocks, aIndex)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func indexLists(owners []string, lists map[string][]string, other map[string]int) ([][]int, [][]int32, error) {
	prefs := make([][]int, len(owners))
	rank := make([][]int32, len(owners))
	for i, owner := range owners {
		row := make([]int32, len(other))
		for k := range row {
			row[k] = -1
		}
		list := lists[owner]
		idx := make([]int, 0, len(list))
		for pos, id := range list {
			j, ok := other[id]
			if !ok {
				return nil, nil, newError(ErrInvalidPreferences, "unknown identifier in list of "+owner, id)
			}
			if row[j] >= 0 {
				return nil, nil, newError(ErrInvalidPreferences, "repeated identifier in list of "+owner, id)
			}
			row[j] = int32(pos)
			idx = append(idx, j)
		}
		prefs[i] = idx
		rank[i] = row
	}
	return prefs, rank, nil
}
