// Copyright 2024 someonegg. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rir

import (
	"strings"

	ds "github.com/someonegg/rirmatch/score"
)

var (
	registryAlias map[string]string
	countryAlias  map[string]string
)

func init() {
	registries := map[string][]string{
		AFRINIC: {"afrinic", "african network information centre", "africa"},
		APNIC:   {"apnic", "asia pacific network information centre", "asia pacific", "ap"},
		ARIN:    {"arin", "american registry for internet numbers", "north america"},
		LACNIC:  {"lacnic", "latin america and caribbean network information centre", "latin america"},
		RIPE:    {"ripe", "ripe ncc", "ripencc", "ripe-ncc", "europe", "eu"},
	}
	registryAlias = make(map[string]string)
	for r, as := range registries {
		for _, a := range as {
			if _, ok := registryAlias[a]; ok {
				panic("repeated registry alias " + a)
			}
			registryAlias[a] = r
		}
	}

	countries := map[string][]string{
		"US": {"usa", "united states", "united states of america"},
		"CA": {"can", "canada"},
		"BS": {"bhs", "bahamas"},
		"JM": {"jam", "jamaica"},
		"BB": {"brb", "barbados"},
		"BM": {"bmu", "bermuda"},
		"KY": {"cym", "cayman islands"},
		"PR": {"pri", "puerto rico"},
		"AG": {"atg", "antigua and barbuda"},
		"LC": {"lca", "saint lucia"},
		"MX": {"mex", "mexico"},
		"GT": {"gtm", "guatemala"},
		"BZ": {"blz", "belize"},
		"SV": {"slv", "el salvador"},
		"HN": {"hnd", "honduras"},
		"NI": {"nic", "nicaragua"},
		"CR": {"cri", "costa rica"},
		"PA": {"pan", "panama"},
		"CU": {"cub", "cuba"},
		"DO": {"dom", "dominican republic"},
		"HT": {"hti", "haiti"},
		"TT": {"tto", "trinidad and tobago"},
		"CW": {"cuw", "curacao"},
		"AW": {"abw", "aruba"},
		"CO": {"col", "colombia"},
		"VE": {"ven", "venezuela"},
		"EC": {"ecu", "ecuador"},
		"PE": {"per", "peru"},
		"BO": {"bol", "bolivia"},
		"BR": {"bra", "brazil", "brasil"},
		"AR": {"arg", "argentina"},
		"CL": {"chl", "chile"},
		"UY": {"ury", "uruguay"},
		"PY": {"pry", "paraguay"},
		"DE": {"deu", "germany", "deutschland"},
		"FR": {"fra", "france"},
		"NL": {"nld", "netherlands", "holland"},
		"BE": {"bel", "belgium"},
		"LU": {"lux", "luxembourg"},
		"CH": {"che", "switzerland"},
		"AT": {"aut", "austria"},
		"GB": {"gbr", "united kingdom", "uk", "great britain"},
		"IE": {"irl", "ireland"},
		"SE": {"swe", "sweden"},
		"NO": {"nor", "norway"},
		"DK": {"dnk", "denmark"},
		"FI": {"fin", "finland"},
		"IS": {"isl", "iceland"},
		"EE": {"est", "estonia"},
		"LV": {"lva", "latvia"},
		"LT": {"ltu", "lithuania"},
		"IT": {"ita", "italy"},
		"ES": {"esp", "spain"},
		"PT": {"prt", "portugal"},
		"GR": {"grc", "greece"},
		"MT": {"mlt", "malta"},
		"CY": {"cyp", "cyprus"},
		"SI": {"svn", "slovenia"},
		"HR": {"hrv", "croatia"},
		"PL": {"pol", "poland"},
		"CZ": {"cze", "czechia", "czech republic"},
		"SK": {"svk", "slovakia"},
		"HU": {"hun", "hungary"},
		"RO": {"rou", "romania"},
		"BG": {"bgr", "bulgaria"},
		"UA": {"ukr", "ukraine"},
		"MD": {"mda", "moldova"},
		"BY": {"blr", "belarus"},
		"RS": {"srb", "serbia"},
		"RU": {"rus", "russia", "russian federation"},
		"TR": {"tur", "turkey", "turkiye"},
		"IL": {"isr", "israel"},
		"SA": {"sau", "saudi arabia"},
		"AE": {"are", "united arab emirates", "uae"},
		"QA": {"qat", "qatar"},
		"KW": {"kwt", "kuwait"},
		"BH": {"bhr", "bahrain"},
		"OM": {"omn", "oman"},
		"IR": {"irn", "iran"},
		"IQ": {"irq", "iraq"},
		"JO": {"jor", "jordan"},
		"LB": {"lbn", "lebanon"},
		"KZ": {"kaz", "kazakhstan"},
		"UZ": {"uzb", "uzbekistan"},
		"KG": {"kgz", "kyrgyzstan"},
		"TJ": {"tjk", "tajikistan"},
		"TM": {"tkm", "turkmenistan"},
		"AZ": {"aze", "azerbaijan"},
		"GE": {"geo", "georgia"},
		"AM": {"arm", "armenia"},
		"CN": {"chn", "china"},
		"JP": {"jpn", "japan"},
		"KR": {"kor", "south korea", "korea"},
		"TW": {"twn", "taiwan"},
		"HK": {"hkg", "hong kong", "hongkong"},
		"MO": {"mac", "macao", "macau"},
		"MN": {"mng", "mongolia"},
		"SG": {"sgp", "singapore"},
		"MY": {"mys", "malaysia"},
		"TH": {"tha", "thailand"},
		"VN": {"vnm", "vietnam", "viet nam"},
		"ID": {"idn", "indonesia"},
		"PH": {"phl", "philippines"},
		"KH": {"khm", "cambodia"},
		"LA": {"lao", "laos"},
		"MM": {"mmr", "myanmar"},
		"IN": {"ind", "india"},
		"PK": {"pak", "pakistan"},
		"BD": {"bgd", "bangladesh"},
		"LK": {"lka", "sri lanka"},
		"NP": {"npl", "nepal"},
		"BT": {"btn", "bhutan"},
		"MV": {"mdv", "maldives"},
		"AU": {"aus", "australia"},
		"NZ": {"nzl", "new zealand"},
		"FJ": {"fji", "fiji"},
		"PG": {"png", "papua new guinea"},
		"EG": {"egy", "egypt"},
		"MA": {"mar", "morocco"},
		"DZ": {"dza", "algeria"},
		"TN": {"tun", "tunisia"},
		"LY": {"lby", "libya"},
		"SD": {"sdn", "sudan"},
		"NG": {"nga", "nigeria"},
		"GH": {"gha", "ghana"},
		"SN": {"sen", "senegal"},
		"CI": {"civ", "cote d'ivoire", "ivory coast"},
		"ML": {"mli", "mali"},
		"BF": {"bfa", "burkina faso"},
		"NE": {"ner", "niger"},
		"KE": {"ken", "kenya"},
		"ET": {"eth", "ethiopia"},
		"TZ": {"tza", "tanzania"},
		"UG": {"uga", "uganda"},
		"RW": {"rwa", "rwanda"},
		"SO": {"som", "somalia"},
		"CM": {"cmr", "cameroon"},
		"CD": {"cod", "dr congo", "democratic republic of the congo"},
		"CG": {"cog", "congo", "republic of the congo"},
		"GA": {"gab", "gabon"},
		"AO": {"ago", "angola"},
		"CF": {"caf", "central african republic"},
		"TD": {"tcd", "chad"},
		"ZA": {"zaf", "south africa"},
		"NA": {"nam", "namibia"},
		"BW": {"bwa", "botswana"},
		"ZW": {"zwe", "zimbabwe"},
		"ZM": {"zmb", "zambia"},
		"MZ": {"moz", "mozambique"},
		"MG": {"mdg", "madagascar"},
		"MU": {"mus", "mauritius"},
	}
	countryAlias = make(map[string]string)
	for c, as := range countries {
		as = append(as, strings.ToLower(c))
		for _, a := range as {
			if _, ok := countryAlias[a]; ok {
				panic("repeated country alias " + a)
			}
			countryAlias[a] = c
		}
	}
}

// UnifyLocation canonicalizes registry and country names. Unknown names are
// kept, lower-cased.
func UnifyLocation(l ds.Location) ds.Location {
	l.Registry = strings.ToLower(strings.TrimSpace(l.Registry))
	if o, ok := registryAlias[l.Registry]; ok {
		l.Registry = o
	}
	l.Country = strings.ToLower(strings.TrimSpace(l.Country))
	if o, ok := countryAlias[l.Country]; ok {
		l.Country = o
	}
	return l
}
