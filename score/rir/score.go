// Copyright 2024 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rir scores network distance between locations served by the five
// regional internet registries.
package rir

import (
	ds "github.com/someonegg/rirmatch/score"
)

const (
	AFRINIC = "AFRINIC"
	APNIC   = "APNIC"
	ARIN    = "ARIN"
	LACNIC  = "LACNIC"
	RIPE    = "RIPE"
)

const (
	unknown = iota
	northAmerica
	northCaribbean
	centralAmerica
	southCaribbean
	andes
	brazil
	southernCone
	westernEurope
	northernEurope
	southernEurope
	easternEurope
	russia
	middleEast
	centralAsia
	eastAsia
	southeastAsia
	southAsia
	oceania
	northAfrica
	westAfrica
	eastAfrica
	centralAfrica
	southernAfrica
)

var regionRegistry = map[int]string{
	northAmerica:   ARIN,
	northCaribbean: ARIN,
	centralAmerica: LACNIC,
	southCaribbean: LACNIC,
	andes:          LACNIC,
	brazil:         LACNIC,
	southernCone:   LACNIC,
	westernEurope:  RIPE,
	northernEurope: RIPE,
	southernEurope: RIPE,
	easternEurope:  RIPE,
	russia:         RIPE,
	middleEast:     RIPE,
	centralAsia:    RIPE,
	eastAsia:       APNIC,
	southeastAsia:  APNIC,
	southAsia:      APNIC,
	oceania:        APNIC,
	northAfrica:    AFRINIC,
	westAfrica:     AFRINIC,
	eastAfrica:     AFRINIC,
	centralAfrica:  AFRINIC,
	southernAfrica: AFRINIC,
}

var regionNeighbors map[int]map[int]bool

func init() {
	pairs := [][2]int{
		{northAmerica, northCaribbean},
		{northAmerica, centralAmerica},
		{northCaribbean, southCaribbean},
		{centralAmerica, southCaribbean},
		{centralAmerica, andes},
		{southCaribbean, andes},
		{andes, brazil},
		{andes, southernCone},
		{brazil, southernCone},
		{westernEurope, northernEurope},
		{westernEurope, southernEurope},
		{westernEurope, easternEurope},
		{northernEurope, easternEurope},
		{northernEurope, russia},
		{southernEurope, easternEurope},
		{southernEurope, middleEast},
		{southernEurope, northAfrica},
		{easternEurope, russia},
		{russia, centralAsia},
		{russia, eastAsia},
		{middleEast, centralAsia},
		{middleEast, northAfrica},
		{middleEast, southAsia},
		{middleEast, eastAfrica},
		{centralAsia, southAsia},
		{centralAsia, eastAsia},
		{eastAsia, southeastAsia},
		{southeastAsia, southAsia},
		{southeastAsia, oceania},
		{northAfrica, westAfrica},
		{northAfrica, eastAfrica},
		{northAfrica, centralAfrica},
		{westAfrica, centralAfrica},
		{eastAfrica, centralAfrica},
		{eastAfrica, southernAfrica},
		{centralAfrica, southernAfrica},
	}

	regionNeighbors = make(map[int]map[int]bool)
	link := func(a, b int) {
		if regionNeighbors[a] == nil {
			regionNeighbors[a] = make(map[int]bool)
		}
		regionNeighbors[a][b] = true
	}
	for _, p := range pairs {
		link(p[0], p[1])
		link(p[1], p[0])
	}
}

var registryNeighbors = map[string][]string{
	ARIN:    {LACNIC, RIPE, APNIC},
	LACNIC:  {ARIN},
	RIPE:    {ARIN, APNIC, AFRINIC},
	APNIC:   {RIPE, ARIN},
	AFRINIC: {RIPE},
}

var regionMap map[string]int

func init() {
	regions := map[int][]string{
		northAmerica:   {"US", "CA"},
		northCaribbean: {"BS", "JM", "BB", "BM", "KY", "PR", "AG", "LC"},
		centralAmerica: {"MX", "GT", "BZ", "SV", "HN", "NI", "CR", "PA"},
		southCaribbean: {"CU", "DO", "HT", "TT", "CW", "AW"},
		andes:          {"CO", "VE", "EC", "PE", "BO"},
		brazil:         {"BR"},
		southernCone:   {"AR", "CL", "UY", "PY"},
		westernEurope:  {"DE", "FR", "NL", "BE", "LU", "CH", "AT", "GB", "IE"},
		northernEurope: {"SE", "NO", "DK", "FI", "IS", "EE", "LV", "LT"},
		southernEurope: {"IT", "ES", "PT", "GR", "MT", "CY", "SI", "HR"},
		easternEurope:  {"PL", "CZ", "SK", "HU", "RO", "BG", "UA", "MD", "BY", "RS"},
		russia:         {"RU"},
		middleEast:     {"TR", "IL", "SA", "AE", "QA", "KW", "BH", "OM", "IR", "IQ", "JO", "LB"},
		centralAsia:    {"KZ", "UZ", "KG", "TJ", "TM", "AZ", "GE", "AM"},
		eastAsia:       {"CN", "JP", "KR", "TW", "HK", "MO", "MN"},
		southeastAsia:  {"SG", "MY", "TH", "VN", "ID", "PH", "KH", "LA", "MM"},
		southAsia:      {"IN", "PK", "BD", "LK", "NP", "BT", "MV"},
		oceania:        {"AU", "NZ", "FJ", "PG"},
		northAfrica:    {"EG", "MA", "DZ", "TN", "LY", "SD"},
		westAfrica:     {"NG", "GH", "SN", "CI", "ML", "BF", "NE"},
		eastAfrica:     {"KE", "ET", "TZ", "UG", "RW", "SO"},
		centralAfrica:  {"CM", "CD", "CG", "GA", "AO", "CF", "TD"},
		southernAfrica: {"ZA", "NA", "BW", "ZW", "ZM", "MZ", "MG", "MU"},
	}

	regionMap = make(map[string]int)
	for region, countries := range regions {
		for _, country := range countries {
			if _, ok := regionMap[country]; ok {
				panic("repeated country " + country)
			}
			regionMap[country] = region
		}
	}
}

// RegistryOf returns the registry serving l, preferring the one implied by
// its country, or "" if unknown.
func RegistryOf(l ds.Location) string {
	l = UnifyLocation(l)
	if r, ok := regionRegistry[regionMap[l.Country]]; ok {
		return r
	}
	if _, ok := registryNeighbors[l.Registry]; ok {
		return l.Registry
	}
	return ""
}

// DistScoreOf rules:
//
//	Country: 10
//	Region: 20
//	AdjacentRegion: 30
//	Registry: 50
//	AdjacentRegistry: 70
//	Other: 90
func DistScoreOf(a, b ds.Location) (score float32, local bool) {
	a, b = UnifyLocation(a), UnifyLocation(b)
	rA, rB := regionMap[a.Country], regionMap[b.Country]

	if rA != unknown && rB != unknown {
		if a.Country == b.Country {
			score = 10.0
			local = true
			return
		}

		if rA == rB {
			score = 20.0
			return
		}

		if regionNeighbors[rA][rB] {
			score = 30.0
			return
		}
	}

	gA, gB := RegistryOf(a), RegistryOf(b)
	if gA == "" || gB == "" {
		score = 90.0
		return
	}

	if gA == gB {
		score = 50.0
		return
	}

	for _, g := range registryNeighbors[gA] {
		if gB == g {
			score = 70.0
			return
		}
	}

	score = 90.0
	return
}

// Scorer is the registry region table as a LocationScorer.
type Scorer struct{}

func (Scorer) DistScore(a, b ds.Location) (score float32, local bool) {
	return DistScoreOf(a, b)
}

// Unifier is UnifyLocation as a LocationUnifier.
type Unifier struct{}

func (Unifier) Unify(l ds.Location) ds.Location {
	return UnifyLocation(l)
}
