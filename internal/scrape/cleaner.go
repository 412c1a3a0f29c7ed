package scrape

import (
	"regexp"
	"strings"
)

// rewriteRule is one pure pattern->replacement step of the cleaning pipeline.
type rewriteRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// cleaningRules strip the promotional and administrative boilerplate the page
// generator interleaves with product text. Order matters: whole-tail notices
// go first, positional token rules last.
var cleaningRules = []rewriteRule{
	{regexp.MustCompile(`(?is)Restocking soon.*`), ""},
	{regexp.MustCompile(`(?is)Enquire At Branch.*`), ""},
	{regexp.MustCompile(`(?is)UnitEach.*`), ""},
	{regexp.MustCompile(`(?is)\d+ extra days for delivery.*`), ""},
	{regexp.MustCompile(`(?is)BID & SAVE.*`), ""},
	{regexp.MustCompile(`(?is)NextLast Page.*`), ""},
	{regexp.MustCompile(`(?is)Displaying records.*`), ""},
	{regexp.MustCompile(`(?is)Prices are exclusive of VAT.*`), ""},
	{regexp.MustCompile(`(?is)Prices are subject to change.*`), ""},
	{regexp.MustCompile(`(?is)Prices are in South African Rands.*`), ""},
	{stockCodePattern, ""},
	{regexp.MustCompile(`\s+\d+\.\d+\s*$`), ""},
	{regexp.MustCompile(`(?i)\s+Unit\s*$`), ""},
	{regexp.MustCompile(`(?i)\s+Each\s*$`), ""},
	{regexp.MustCompile(`(?i)\s+Bulk\s*$`), ""},
	{regexp.MustCompile(`(?i)\s+MOQ\s*$`), ""},
}

// stockCodePattern matches a leading stock-code token. The token must carry a
// digit so that component-class words ("RESISTOR") are never treated as codes.
var stockCodePattern = regexp.MustCompile(`^\s*[A-Z0-9][A-Z0-9./-]*\d[A-Z0-9./-]*\s+`)

var whitespace = regexp.MustCompile(`\s+`)

// Clean runs the rewrite pipeline to a fixed point, so Clean(Clean(s)) ==
// Clean(s) holds for every input.
func Clean(s string) string {
	const maxPasses = 10
	for i := 0; i < maxPasses; i++ {
		next := cleanOnce(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func cleanOnce(s string) string {
	for _, rule := range cleaningRules {
		s = rule.pattern.ReplaceAllString(s, rule.replacement)
	}
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// LeadingStockCode returns the stock-code token at the start of a raw grid
// cell, before cleaning removes it. Empty when the text does not begin with a
// code-shaped token.
func LeadingStockCode(raw string) string {
	m := stockCodePattern.FindString(raw)
	return strings.TrimSpace(m)
}
