package resolve

import (
	"regexp"
	"strings"
)

// legalSuffixes lists common legal entity suffixes stripped during company
// name normalization so "Apple Inc." and "APPLE" match the same alias entry.
var legalSuffixes = []string{
	" LLC", " L.L.C.", " L.L.C",
	" INC", " INC.", " INCORPORATED",
	" CORP", " CORP.", " CORPORATION",
	" LTD", " LTD.", " LIMITED",
	" LP", " L.P.", " L.P",
	" PLC", " P.L.C.",
	" CO", " CO.",
	" SA", " S.A.",
	" AG", " A.G.",
	" NV", " N.V.",
	" HOLDINGS", " HOLDING", " GROUP",
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// NormalizeName standardizes a company name or symbol for alias matching by
// trimming, uppercasing, stripping legal suffixes and punctuation, and
// collapsing whitespace.
func NormalizeName(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return ""
	}

	for _, suffix := range legalSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}

	name = strings.NewReplacer(
		",", "",
		"'", "",
		"\"", "",
		"&", "AND",
	).Replace(name)

	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(name, " "))
}
