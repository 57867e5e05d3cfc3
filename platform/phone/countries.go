package phone

import (
	"sort"
	"strconv"
	"strings"
)

// Country is one row of the calling-code table.
type Country struct {
	CallingCode int    `json:"callingCode"`
	RegionCode  string `json:"regionCode"`
	Name        string `json:"name"`
}

// Prefix returns the calling code in "+NN" form.
func (c Country) Prefix() string {
	return "+" + strconv.Itoa(c.CallingCode)
}

// countries is the table of supported calling codes. It is never mutated
// after package initialization.
var countries = map[int]Country{
	33: {CallingCode: 33, RegionCode: "FR", Name: "France"},
	41: {CallingCode: 41, RegionCode: "CH", Name: "Suisse"},
	32: {CallingCode: 32, RegionCode: "BE", Name: "Belgique"},
	39: {CallingCode: 39, RegionCode: "IT", Name: "Italie"},
	49: {CallingCode: 49, RegionCode: "DE", Name: "Allemagne"},
	34: {CallingCode: 34, RegionCode: "ES", Name: "Espagne"},
	1:  {CallingCode: 1, RegionCode: "US", Name: "USA/Canada"},
	44: {CallingCode: 44, RegionCode: "GB", Name: "Royaume-Uni"},
}

// commonCodes is the suggestion order offered when a country code is needed.
var commonCodes = []int{33, 41, 32, 39, 49, 1, 44}

// LookupCountry resolves a calling-code hint such as "+41", "41" or " 0041 ".
func LookupCountry(hint string) (Country, bool) {
	code := strings.TrimSpace(hint)
	code = strings.TrimPrefix(code, "+")
	code = strings.TrimPrefix(code, "00")
	n, err := strconv.Atoi(code)
	if err != nil {
		return Country{}, false
	}
	return CountryByCode(n)
}

// CountryByCode returns the table row for a numeric calling code.
func CountryByCode(code int) (Country, bool) {
	c, ok := countries[code]
	return c, ok
}

// CommonCountries returns the calling codes suggested to callers that gave a
// number without any country information.
func CommonCountries() []Country {
	out := make([]Country, 0, len(commonCodes))
	for _, code := range commonCodes {
		out = append(out, countries[code])
	}
	return out
}

// SupportedCountries returns every table row ordered by calling code.
func SupportedCountries() []Country {
	out := make([]Country, 0, len(countries))
	for _, c := range countries {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CallingCode < out[j].CallingCode })
	return out
}
