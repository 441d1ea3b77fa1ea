// Copyright 2024 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package score

type UnifyRecord struct {
	Source Location `json:"source" toml:"source"`
	Target Location `json:"target" toml:"target"`
}

type complexUnifier struct {
	orig LocationUnifier
	recs map[Location]Location
}

// NewComplexUnifier overrides orig for the recorded source locations.
func NewComplexUnifier(orig LocationUnifier, records []UnifyRecord) LocationUnifier {
	recs := make(map[Location]Location)
	for _, rec := range records {
		recs[rec.Source] = rec.Target
	}
	return &complexUnifier{
		orig: orig,
		recs: recs,
	}
}

func (u *complexUnifier) Unify(l Location) Location {
	if target, ok := u.recs[l]; ok {
		return target
	}
	return u.orig.Unify(l)
}

type ScoreRecord struct {
	ScoreKey
	ScoreVal
}

type ScoreKey struct {
	A Location `json:"a" toml:"a"`
	B Location `json:"b" toml:"b"`
}

type ScoreVal struct {
	Score float32 `json:"score" toml:"score"`
	Local bool    `json:"local" toml:"local"`
}

type complexScorer struct {
	orig LocationScorer
	recs map[ScoreKey]ScoreVal
}

// NewComplexScorer overrides orig for the recorded location pairs. A record
// applies in both directions unless the reverse pair has its own record.
func NewComplexScorer(orig LocationScorer, records []ScoreRecord) LocationScorer {
	recs := make(map[ScoreKey]ScoreVal)
	for _, rec := range records {
		recs[rec.ScoreKey] = rec.ScoreVal
	}
	for _, rec := range records {
		rev := ScoreKey{A: rec.B, B: rec.A}
		if _, ok := recs[rev]; !ok {
			recs[rev] = rec.ScoreVal
		}
	}
	return &complexScorer{
		orig: orig,
		recs: recs,
	}
}

func (s *complexScorer) DistScore(a, b Location) (score float32, local bool) {
	if val, ok := s.recs[ScoreKey{A: a, B: b}]; ok {
		return val.Score, val.Local
	}
	return s.orig.DistScore(a, b)
}

type unifiedScorer struct {
	unifier LocationUnifier
	orig    LocationScorer
}

// NewUnifiedScorer unifies both locations before scoring them with orig.
func NewUnifiedScorer(unifier LocationUnifier, orig LocationScorer) LocationScorer {
	return &unifiedScorer{unifier: unifier, orig: orig}
}

func (s *unifiedScorer) DistScore(a, b Location) (score float32, local bool) {
	return s.orig.DistScore(s.unifier.Unify(a), s.unifier.Unify(b))
}
