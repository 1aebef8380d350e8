package voters

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// Canonical column names understood by the importers.
const (
	colVoterID         = "voter_id"
	colFirstName       = "first_name"
	colLastName        = "last_name"
	colFullName        = "full_name"
	colAddress         = "address"
	colCity            = "city"
	colState           = "state"
	colZipCode         = "zip_code"
	colCounty          = "county"
	colPrecinct        = "precinct"
	colRegisteredParty = "registered_party"
	colPhone           = "phone"
	colEmail           = "email"
	colHasVoted        = "has_voted"
)

// headerAliases maps normalized header spellings seen in county exports to
// canonical column names.
var headerAliases = map[string]string{
	"voter_id": colVoterID, "voterid": colVoterID,
	"sos_voterid": colVoterID, "sos_voter_id": colVoterID, "state_voter_id": colVoterID,
	"voter_number": colVoterID, "registration_number": colVoterID, "vuid": colVoterID,

	"first_name": colFirstName, "firstname": colFirstName, "first": colFirstName,
	"fname": colFirstName, "given_name": colFirstName,

	"last_name": colLastName, "lastname": colLastName, "last": colLastName,
	"lname": colLastName, "surname": colLastName, "family_name": colLastName,

	"name": colFullName, "full_name": colFullName, "fullname": colFullName, "voter_name": colFullName,

	"address": colAddress, "street_address": colAddress, "residential_address": colAddress,
	"residence_address": colAddress, "address1": colAddress, "address_line_1": colAddress, "street": colAddress,

	"city": colCity, "residential_city": colCity, "residence_city": colCity, "town": colCity,

	"state": colState, "st": colState, "residential_state": colState,

	"zip_code": colZipCode, "zip": colZipCode, "zipcode": colZipCode, "postal_code": colZipCode,
	"postcode": colZipCode, "residential_zip": colZipCode, "zip5": colZipCode,

	"county": colCounty, "county_name": colCounty,

	"precinct": colPrecinct, "precinct_name": colPrecinct, "precinct_code": colPrecinct, "pct": colPrecinct,

	"registered_party": colRegisteredParty, "party": colRegisteredParty,
	"party_affiliation": colRegisteredParty, "party_code": colRegisteredParty,

	"phone": colPhone, "phone_number": colPhone, "phonenumber": colPhone, "telephone": colPhone,
	"cell": colPhone, "cell_phone": colPhone, "mobile": colPhone,

	"email": colEmail, "email_address": colEmail, "e_mail": colEmail,

	"has_voted": colHasVoted, "voted": colHasVoted,
}

// weakAliases are generic spellings used only when no column in the header
// maps to the same canonical name through headerAliases. A bare "id" is often
// a row number.
var weakAliases = map[string]string{
	"id": colVoterID,
}

var (
	ErrEmptyFile            = errors.New("file is empty")
	ErrMissingVoterIDColumn = errors.New("file has no voter_id column")
	ErrMalformedCSV         = errors.New("file is not valid CSV")
)

var headerReplacer = strings.NewReplacer(" ", "_", "-", "_", ".", "_", "/", "_", "#", "")

// NormalizeHeader lowercases a header cell and folds separators to underscores.
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	h = headerReplacer.Replace(h)
	for strings.Contains(h, "__") {
		h = strings.ReplaceAll(h, "__", "_")
	}
	return strings.Trim(h, "_")
}

// CanonicalColumn resolves a raw header cell, returning "" when unknown.
func CanonicalColumn(h string) string {
	n := NormalizeHeader(h)
	if c, ok := headerAliases[n]; ok {
		return c
	}
	return weakAliases[n]
}

// columnMap records where each canonical column sits. The first specific
// alias wins; weak aliases only fill columns nothing else claimed.
type columnMap map[string]int

func mapHeader(header []string) columnMap {
	cols := make(columnMap, len(header))
	for _, aliases := range []map[string]string{headerAliases, weakAliases} {
		for i, h := range header {
			canonical, ok := aliases[NormalizeHeader(h)]
			if !ok {
				continue
			}
			if _, dup := cols[canonical]; !dup {
				cols[canonical] = i
			}
		}
	}
	return cols
}

func (c columnMap) has(col string) bool {
	_, ok := c[col]
	return ok
}

func (c columnMap) get(record []string, col string) string {
	i, ok := c[col]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	return cr
}

// SplitFullName handles "Last, First Middle" and "First Middle Last".
func SplitFullName(name string) (first, last string) {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "", ""
	}
	if before, after, found := strings.Cut(name, ","); found {
		return strings.TrimSpace(after), strings.TrimSpace(before)
	}
	parts := strings.Fields(name)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
}

// parseVoted accepts the truthy spellings seen in voted-history exports.
func parseVoted(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y", "x", "voted":
		return true
	}
	return false
}
