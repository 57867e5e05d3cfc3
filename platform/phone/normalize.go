// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"fmt"
	"strconv"
	"strings"

	"phoneai_backend/platform/apperr"

	"github.com/nyaruka/phonenumbers"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DefaultCallingCode is the calling code assumed for numbers dialled with a
// national trunk prefix.
const DefaultCallingCode = 33

var separators = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")

var regionNames = display.Regions(language.French)

// PhoneNumber is the canonical form of a caller supplied number.
type PhoneNumber struct {
	Raw                  string `json:"raw"`
	Normalized           string `json:"normalized"`
	Region               string `json:"region,omitempty"`
	RegionCode           string `json:"regionCode,omitempty"`
	CallingCode          string `json:"callingCode,omitempty"`
	AssumedDefaultRegion bool   `json:"assumedDefaultRegion"`
}

// Normalization is the outcome of Normalize. Exactly one of Number or
// NeedsCountryCode is meaningful.
type Normalization struct {
	Number           PhoneNumber `json:"number"`
	NeedsCountryCode bool        `json:"needsCountryCode"`
	Suggestions      []Country   `json:"suggestions,omitempty"`
}

// Normalizer turns free-form input into E.164 numbers.
type Normalizer struct {
	trunkCountry Country
}

// NewNormalizer creates a normalizer that assumes defaultCallingCode for
// numbers starting with a trunk 0. The code must be in the country table.
func NewNormalizer(defaultCallingCode int) (*Normalizer, error) {
	c, ok := CountryByCode(defaultCallingCode)
	if !ok {
		return nil, apperr.Config(fmt.Sprintf("default calling code +%d is not supported", defaultCallingCode))
	}
	return &Normalizer{trunkCountry: c}, nil
}

// Normalize applies, in order: explicit international prefix, country hint,
// trunk prefix assumption, and finally asks for a country code. It never
// guesses a region beyond the trunk assumption.
func (n *Normalizer) Normalize(raw, countryHint string) (Normalization, error) {
	clean := separators.Replace(strings.TrimSpace(raw))
	if clean == "" {
		return Normalization{}, apperr.Parse("phone number is empty")
	}

	digits := strings.TrimPrefix(clean, "+")
	if digits == "" || !allDigits(digits) {
		return Normalization{}, apperr.Parse(fmt.Sprintf("%q is not a phone number", raw))
	}

	if strings.HasPrefix(clean, "+") {
		num, err := parseInternational(raw, clean, false)
		if err != nil {
			return Normalization{}, err
		}
		return Normalization{Number: num}, nil
	}

	if hint := strings.TrimSpace(countryHint); hint != "" {
		country, ok := LookupCountry(hint)
		if !ok {
			return Normalization{}, apperr.UnsupportedCountry(fmt.Sprintf("country code %s is not supported", hint)).
				WithDetails(SupportedCountries())
		}
		num, err := parseInternational(raw, country.Prefix()+digits, false)
		if err != nil {
			return Normalization{}, err
		}
		return Normalization{Number: num}, nil
	}

	if strings.HasPrefix(digits, "0") {
		num, err := parseInternational(raw, n.trunkCountry.Prefix()+digits[1:], true)
		if err == nil {
			return Normalization{Number: num}, nil
		}
	}

	return Normalization{NeedsCountryCode: true, Suggestions: CommonCountries()}, nil
}

// IsE164 reports whether s is already a valid number in canonical E.164 form.
func IsE164(s string) bool {
	if !strings.HasPrefix(s, "+") || !allDigits(s[1:]) {
		return false
	}
	num, err := phonenumbers.Parse(s, "")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return false
	}
	return phonenumbers.Format(num, phonenumbers.E164) == s
}

func parseInternational(raw, candidate string, assumed bool) (PhoneNumber, error) {
	parsed, err := phonenumbers.Parse(candidate, "")
	if err != nil {
		return PhoneNumber{}, apperr.Wrap(apperr.KindParse, "phone number could not be parsed", err)
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return PhoneNumber{}, apperr.InvalidNumber(fmt.Sprintf("%s is not a valid phone number", candidate))
	}

	regionCode := phonenumbers.GetRegionCodeForNumber(parsed)
	return PhoneNumber{
		Raw:                  raw,
		Normalized:           phonenumbers.Format(parsed, phonenumbers.E164),
		Region:               regionName(regionCode),
		RegionCode:           regionCode,
		CallingCode:          "+" + strconv.Itoa(int(parsed.GetCountryCode())),
		AssumedDefaultRegion: assumed,
	}, nil
}

func regionName(code string) string {
	if code == "" || code == unknownRegion {
		return ""
	}
	r, err := language.ParseRegion(code)
	if err != nil {
		return ""
	}
	return regionNames.Name(r)
}

const unknownRegion = "ZZ"

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
