package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"TenderRadar/internal/domain"
)

var (
	digitsOnly = regexp.MustCompile(`^\d+$`)
	whitespace = regexp.MustCompile(`\s+`)
)

// ExtractCPVs scans a classification block's value spans left to right. An
// all-digit span is a candidate code; the immediately following span, when it
// exists and is not all digits, is consumed as that code's description.
// No lookahead beyond one span, no backtracking.
func ExtractCPVs(block *goquery.Selection) []domain.CPV {
	var texts []string
	block.Find("span.data").Each(func(_ int, s *goquery.Selection) {
		texts = append(texts, cleanText(s.Text()))
	})

	var cpvs []domain.CPV
	for i := 0; i < len(texts); {
		if !digitsOnly.MatchString(texts[i]) {
			i++
			continue
		}
		code := texts[i]
		if i+1 < len(texts) && !digitsOnly.MatchString(texts[i+1]) {
			cpvs = append(cpvs, domain.CPV{Code: code, Description: texts[i+1]})
			i += 2
			continue
		}
		cpvs = append(cpvs, domain.CPV{Code: code})
		i++
	}
	return cpvs
}

// cleanText collapses whitespace runs (line breaks included) to single spaces.
func cleanText(text string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}
