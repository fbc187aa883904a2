package pii

// Tier is the masking-intensity class assigned to an entity type.
type Tier string

const (
	TierHigh    Tier = "high"
	TierMedium  Tier = "medium"
	TierLow     Tier = "low"
	TierSpecial Tier = "special"
)

// tierTable fixes the sensitivity of each canonical entity type. Identifiers
// that unlock accounts or government records are obliterated; contact details
// are strongly obfuscated; names and addresses stay legible but flagged.
var tierTable = map[string]Tier{
	TypeNationalID:    TierHigh,
	TypeTaxID:         TierHigh,
	TypeSSN:           TierHigh,
	TypeCreditCard:    TierHigh,
	TypeAccountNumber: TierHigh,
	TypePhoneNumber:   TierMedium,
	TypeEmail:         TierMedium,
	TypeDateTime:      TierMedium,
	TypePostalCode:    TierMedium,
	TypePerson:        TierLow,
	TypeLocation:      TierLow,
	TypeSignature:     TierSpecial,
}

// ClassifyTier maps an entity type to its masking tier. Unrecognized types
// default to medium.
func ClassifyTier(entityType string) Tier {
	if tier, ok := tierTable[entityType]; ok {
		return tier
	}
	return TierMedium
}
