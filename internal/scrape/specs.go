package scrape

import "regexp"

// specPattern is one labeled regular expression of the specification-mining
// table. Patterns are evaluated independently against the cleaned name; each
// match contributes one key to the specifications map.
type specPattern struct {
	name    string
	pattern *regexp.Regexp
}

var specPatterns = []specPattern{
	{"resistance", regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:kΩ|Ω|MΩ|ohm)`)},
	{"capacitance", regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:µF|uF|nF|pF|mF)`)},
	{"voltage", regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*V(?:olt)?\b`)},
	{"current", regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:mA|A)\b`)},
	{"power", regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*W(?:att)?\b`)},
	{"frequency", regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:MHz|kHz|Hz)\b`)},
	{"package", regexp.MustCompile(`(?i)\b(DIP|SOP|SOIC|TO-?\d+|DO-?\d+)\b`)},
	{"pitch", regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*mm\b`)},
}

// MineSpecifications extracts labeled technical attributes from a cleaned
// product name. Matches are independent, not mutually exclusive.
func MineSpecifications(name string) map[string]string {
	specs := make(map[string]string)
	for _, sp := range specPatterns {
		if m := sp.pattern.FindStringSubmatch(name); len(m) > 1 {
			specs[sp.name] = m[1]
		}
	}
	return specs
}
