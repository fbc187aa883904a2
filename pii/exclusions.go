package pii

import "strings"

// exclusionPhrases lists organizational and boilerplate text printed on
// identity documents: issuing-authority names, document titles and their
// bilingual equivalents. A block containing any of these is legitimate
// document furniture, not PII, and must never be masked.
var exclusionPhrases = []string{
	"government",
	"of india",
	"uidai",
	"unique identification authority",
	"ministry",
	"department",
	"भारत सरकार",
	"भारत",
	"सरकार",
	"government of india",
	"government of",
	"permanent account number card",
	"स्थायी लेखा संख्या कार्ड",
	"income tax department",
	"आयकर विभाग",
	"income tax",
	"card",
	"कार्ड",
	"document",
	"documentation",
	"form",
	"permanent account number",
	"स्थायी लेखा संख्या",
	"unique identification",
	"unique id",
	"identification",
	"authority",
	"authority of india",
	"भारत सरकार का",
	"स्थायी लेखा",
	"लेखा संख्या",
	"भारतीय विशिष्ट पहचान प्राधिकरण",
	"unique identification authority of india",
	"bhartiya vishisht pehchan pradhikaran",
	"vishisht pehchan pradhikaran",
}

// IsExcluded reports whether the text contains any exclusion phrase,
// case-insensitively. Pattern generators apply this before matching, and the
// entity reconciler applies it again so no generator can sneak boilerplate
// into the authoritative set.
func IsExcluded(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range exclusionPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
