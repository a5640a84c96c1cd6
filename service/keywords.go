package service

import (
	"strings"

	"auditflow-backend/models"
)

// Curated keyword tables for the deterministic classification pass. A literal
// regional marker (a suburb, an insurer, a currency) must never be overridden
// by a model score, so these lists are the first and binding word on region
// and category whenever they fire.
var regionKeywords = map[models.Region][]string{
	models.RegionSG: {
		"singapore", "bedok", "tampines", "jurong", "woodlands",
		"ang mo kio", "toa payoh", "clementi", "orchard", "pasir ris",
		"punggol", "sengkang", "yishun", "hougang", "bishan",
		"marine parade", "geylang", "kallang", "serangoon", "changi",
		"hdb", "msig", "ntuc", "great eastern",
		"sgd", "s$", "cpf", "medishield",
	},
	models.RegionAU: {
		"australia", "sydney", "melbourne", "brisbane", "perth",
		"adelaide", "canberra", "hobart", "darwin", "gold coast",
		"newcastle", "wollongong", "geelong", "cairns", "townsville",
		"nsw", "qld", "queensland", "victoria",
		"zurich australia", "allianz australia", "qbe", "suncorp",
		"aud", "a$", "abn",
	},
}

var categoryKeywords = map[models.Category][]string{
	models.CategoryHome: {
		"home", "house", "flat", "apartment", "condo", "hdb",
		"residential", "dwelling", "water leak", "burst pipe", "air-con",
		"aircon", "air conditioning", "living room", "furniture",
		"appliance", "renovation", "tenant", "landlord",
	},
	models.CategoryBusiness: {
		"business", "commercial", "warehouse", "factory", "office",
		"machinery", "equipment", "inventory", "stock", "liability",
		"employee", "workers", "industrial", "manufacturing",
		"retail", "shop", "premises", "business interruption",
		"professional indemnity",
	},
	models.CategoryMotor: {
		"car", "vehicle", "motorcycle", "van", "truck",
		"windscreen", "windshield", "collision", "rear-ended",
		"third party", "comprehensive motor", "carpark", "parked",
	},
}

// containsKeyword reports whether kw occurs in text on word boundaries, so
// "house" does not fire inside "warehouse". Both arguments must already be
// lowercased.
func containsKeyword(text, kw string) bool {
	for i := 0; ; {
		j := strings.Index(text[i:], kw)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(kw)
		beforeOK := start == 0 || !isWordByte(text[start-1])
		afterOK := end == len(text) || !isWordByte(text[end])
		if beforeOK && afterOK {
			return true
		}
		i = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// matchRegion returns the region whose keywords match the text, with the
// matched terms. An even tie between regions resolves to unknown rather than
// guessing.
func matchRegion(text string) (models.Region, []string) {
	lower := strings.ToLower(text)

	best := models.RegionUnknown
	bestCount := 0
	var bestMatches []string
	tie := false

	for region, keywords := range regionKeywords {
		var matches []string
		for _, kw := range keywords {
			if containsKeyword(lower, kw) {
				matches = append(matches, kw)
			}
		}
		switch {
		case len(matches) > bestCount:
			best, bestCount, bestMatches, tie = region, len(matches), matches, false
		case len(matches) == bestCount && len(matches) > 0:
			tie = true
		}
	}

	if tie || bestCount == 0 {
		return models.RegionUnknown, nil
	}
	return best, bestMatches
}

// matchCategory mirrors matchRegion for the line of business
func matchCategory(text string) (models.Category, []string) {
	lower := strings.ToLower(text)

	best := models.CategoryUnknown
	bestCount := 0
	var bestMatches []string
	tie := false

	for category, keywords := range categoryKeywords {
		var matches []string
		for _, kw := range keywords {
			if containsKeyword(lower, kw) {
				matches = append(matches, kw)
			}
		}
		switch {
		case len(matches) > bestCount:
			best, bestCount, bestMatches, tie = category, len(matches), matches, false
		case len(matches) == bestCount && len(matches) > 0:
			tie = true
		}
	}

	if tie || bestCount == 0 {
		return models.CategoryUnknown, nil
	}
	return best, bestMatches
}
