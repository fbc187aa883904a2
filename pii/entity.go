package pii

import (
	"strings"

	"github.com/hannes/idshield/geometry"
)

// Canonical entity types. The enumeration is open: native detector labels
// with no mapping pass through lower-cased rather than being dropped.
const (
	TypePerson        = "person"
	TypeLocation      = "location"
	TypeDateTime      = "date_time"
	TypePhoneNumber   = "phone_number"
	TypeEmail         = "email"
	TypeNationalID    = "national_id_number"
	TypeTaxID         = "tax_id_number"
	TypePostalCode    = "postal_code"
	TypeSignature     = "signature"
	TypeCreditCard    = "credit_card"
	TypeSSN           = "ssn"
	TypeAccountNumber = "account_number"
)

// Entity is a detected piece of PII anchored to a document region. Candidate
// entities come from a single generator; authoritative entities are the
// output of Reconcile and are what gets masked and reported.
type Entity struct {
	Text       string       `json:"text"`
	Type       string       `json:"entity_type"`
	Confidence float64      `json:"confidence"`
	Box        geometry.Box `json:"bbox"`
}

// canonicalTypes maps each generator's native vocabulary into the shared
// enumeration.
var canonicalTypes = map[string]string{
	"PERSON":           TypePerson,
	"PER":              TypePerson,
	"FIRSTNAME":        TypePerson,
	"SURNAME":          TypePerson,
	"EMAIL":            TypeEmail,
	"EMAIL_ADDRESS":    TypeEmail,
	"PHONE_NUMBER":     TypePhoneNumber,
	"TELEPHONENUM":     TypePhoneNumber,
	"LOCATION":         TypeLocation,
	"ADDRESS":          TypeLocation,
	"LOC":              TypeLocation,
	"GPE":              TypeLocation,
	"CITY":             TypeLocation,
	"STREET":           TypeLocation,
	"DATE":             TypeDateTime,
	"TIME":             TypeDateTime,
	"DATE_TIME":        TypeDateTime,
	"DATEOFBIRTH":      TypeDateTime,
	"AADHAAR_NUMBER":   TypeNationalID,
	"NATIONAL_ID":      TypeNationalID,
	"IDCARDNUM":        TypeNationalID,
	"NRP":              TypeNationalID,
	"PAN_NUMBER":       TypeTaxID,
	"TAXNUM":           TypeTaxID,
	"ZIPCODE":          TypePostalCode,
	"PINCODE":          TypePostalCode,
	"SIGNATURE":        TypeSignature,
	"CREDITCARDNUMBER": TypeCreditCard,
	"CREDIT_CARD":      TypeCreditCard,
	"SOCIALNUM":        TypeSSN,
	"US_SSN":           TypeSSN,
	"ACCOUNTNUM":       TypeAccountNumber,
}

// NormalizeType converts a detector-native label into the canonical
// enumeration. Unmapped labels fall through lower-cased so novel types are
// preserved.
func NormalizeType(native string) string {
	if canonical, ok := canonicalTypes[native]; ok {
		return canonical
	}
	if canonical, ok := canonicalTypes[strings.ToUpper(native)]; ok {
		return canonical
	}
	return strings.ToLower(native)
}
