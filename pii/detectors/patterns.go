package detectors

import "github.com/hannes/idshield/pii"

// PatternTableVersion identifies the regex table below. Bump it whenever a
// pattern changes so stored detections can be traced to the table that
// produced them.
const PatternTableVersion = "v4"

// PIIPatterns is the single consolidated regex table consumed by every
// pattern-based generator, keyed by canonical entity type.
var PIIPatterns = map[string][]string{
	pii.TypeNationalID: {
		`\b\d{4}\s?\d{4}\s?\d{4}\b`, // 1234 5678 9012
		`\b\d{12}\b`,                // 123456789012
		`\b\d{4}\b`,                 // split group; promoted only when standalone
	},

	pii.TypeTaxID: {
		`\b[A-Z]{5}[0-9]{4}[A-Z]\b`, // ABCDE1234F
	},

	pii.TypePhoneNumber: {
		`\b[6-9]\d{9}\b`,    // mobile: 9876543210
		`\+91[6-9]\d{9}\b`,  // with country code
	},

	pii.TypePostalCode: {
		`\b\d{6}\b`, // bare PIN code: 110001
		`\b[Pp][Ii][Nn]\s*:?\s*\d{6}\b`,
		`\b[Pp]incode\s*:?\s*\d{6}\b`,
		`पिन\s*:?\s*\d{6}`, // Devanagari label; \b is ASCII-only so no boundary here
	},

	pii.TypeEmail: {
		`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
	},

	pii.TypeDateTime: {
		`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`,       // DD/MM/YYYY or DD-MM-YYYY
		`\b\d{1,2}\s+[A-Za-z]{3,9}\s+\d{2,4}\b`,   // 15 March 2023
	},

	pii.TypePerson: {
		`\b[A-Z][a-z]+\s+[A-Z][a-z]+\s+[A-Z][a-z]+\b`,                       // John Michael Smith
		`\b[A-Z][a-z]+\s+[A-Z][a-z]+\b`,                                     // John Smith
		`\b(?:Mr|Mrs|Ms|Dr|Prof|Shri|Smt)\s+[A-Z][a-z]+\s+[A-Z][a-z]+\b`,    // with titles
		`\b(?:Name|Father|Mother|Parent)\s*[:.]?\s*[A-Z][a-z]+\s+[A-Z][a-z]+\b`,
	},

	pii.TypeLocation: {
		`\b(?:address|village|city|street|road|lane|colony|sector|block|flat|apartment|house|building|park)\s*[:.]?\s*[A-Za-z0-9\s,.-]+\b`,
		`\b[A-Z]\s*-?\s*wing\b`,
		`\bwing\s*-?\s*[A-Z]\b`,
		`\b(?:society|complex|residency|apartments|colony|park|garden|nagar|vihar)\s+[A-Za-z\s]+\b`,
		`\b(?:floor|level)\s*-?\s*[0-9A-Z]+\b`,
		`\b(?:flat|apartment|unit)\s*-?\s*[A-Z0-9]+\b`,
		`\b(?:building|tower|block)\s*-?\s*[A-Z0-9]+\b`,
		`\b(?:near|opposite|behind|next to|beside)\s+[A-Za-z\s]+\b`,
		`\b(?:area|locality|district|state|country)\s*[:.]?\s*[A-Za-z\s]+\b`,
		`\b(?:d/o|s/o|w/o|h/o|daughter of|son of|wife of|husband of)\s+[A-Za-z\s]+\b`,
		`\b(?:flat no|house no|house number)\s*[:.]?\s*[A-Z0-9]+\b`,
		`\b(?:pune|mumbai|delhi|bangalore|chennai|kolkata|hyderabad|ahmedabad|jaipur|surat|nagpur|indore|thane|bhopal|patna|lucknow|agra|nashik|noida|chandigarh)\b`,
		`\b(?:maharashtra|karnataka|tamil nadu|west bengal|telangana|andhra pradesh|punjab|haryana|gujarat|rajasthan|uttar pradesh|bihar|jharkhand|odisha|chhattisgarh|madhya pradesh|uttarakhand|assam|goa|kerala)\b`,
	},
}

// patternConfidence fixes the confidence attached to a pattern match. Short
// national-ID fragments are less certain than a full match.
func patternConfidence(entityType, match string) float64 {
	if entityType == pii.TypeNationalID && isShortIDFragment(match) {
		return 0.8
	}
	return 0.95
}

// isShortIDFragment reports whether the match is a bare 4-digit group, i.e.
// one segment of an ID number printed as separate short groups.
func isShortIDFragment(match string) bool {
	if len(match) != 4 {
		return false
	}
	for _, r := range match {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
