package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"TenderRadar/internal/domain"
	"TenderRadar/internal/ports"
)

const excerptCap = 4000

type sectionKind int

const (
	sectionBuyer sectionKind = iota
	sectionProcedure
	sectionPart
)

// sectionSchema drives the traversal: one entry per known top-level section.
// A section whose anchor is missing from the page is simply omitted from the
// resulting document.
type sectionSchema struct {
	anchorID   string
	title      string
	purposeKey string
	kind       sectionKind
}

var noticeSections = []sectionSchema{
	{anchorID: "section1_1", title: "1. Buyer", kind: sectionBuyer},
	{anchorID: "section2_3", title: "2. Procedure", purposeKey: "2.1.1. Purpose", kind: sectionProcedure},
	{anchorID: "section3_9", title: "3. Part", purposeKey: "3.1.1. Purpose", kind: sectionPart},
}

// NoticeParser fetches notice detail pages and extracts structured documents.
type NoticeParser struct {
	client *http.Client
	logger *slog.Logger
}

var _ ports.NoticeParser = (*NoticeParser)(nil)

// New wires an HTTP client; a nil client gets the 30s page-fetch timeout.
func New(client *http.Client, logger *slog.Logger) *NoticeParser {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &NoticeParser{client: client, logger: logger}
}

// Parse fetches the URL and walks the known sections. Sections with missing
// anchors are omitted; the document is still returned (partial success).
func (p *NoticeParser) Parse(ctx context.Context, url string) (*domain.NoticeDocument, error) {
	doc, err := p.fetchDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	result := &domain.NoticeDocument{
		URL:      url,
		Sections: map[string]map[string]string{},
	}

	result.Title = headerTitle(doc)

	for _, schema := range noticeSections {
		fields, subsections, found := parseSection(doc, schema)
		if !found {
			continue
		}
		result.Sections[schema.title] = fields

		switch schema.kind {
		case sectionBuyer:
			result.Buyer = &domain.Buyer{
				OfficialName: fields["Official name"],
				Email:        fields["Email"],
				LegalType:    fields["Legal type of the buyer"],
				Activity:     fields["Activity of the contracting authority"],
			}
		case sectionProcedure:
			result.Procedure = &domain.Procedure{
				Title:              fields["Title"],
				Description:        fields["Description"],
				InternalIdentifier: fields["Internal identifier"],
				Purpose:            purposeView(subsections[schema.purposeKey]),
				Subsections:        subsections,
			}
		case sectionPart:
			result.Part = &domain.Part{
				TechnicalID:             fields["Part technical ID"],
				Title:                   fields["Title"],
				Description:             fields["Description"],
				InternalIdentifier:      fields["Internal identifier"],
				ProcurementDocumentsURL: fields["Address of the procurement documents"],
				Purpose:                 purposeView(subsections[schema.purposeKey]),
				Subsections:             subsections,
			}
		}
	}

	result.RawTextExcerpt = truncate(visibleText(doc), excerptCap)

	return result, nil
}

func (p *NoticeParser) fetchDocument(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch notice page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("notice page returned %s", resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read notice page: %w", err)
	}

	// Heuristic charset detection; undecodable bytes become replacement
	// runes rather than failing the whole notice.
	var reader io.Reader = bytes.NewReader(raw)
	if utf8Reader, cErr := charset.NewReader(bytes.NewReader(raw), resp.Header.Get("Content-Type")); cErr == nil {
		reader = utf8Reader
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("parse notice html: %w", err)
	}
	return doc, nil
}

// headerTitle joins the header's bold fragments with an en-dash, skipping
// exact-duplicate fragments.
func headerTitle(doc *goquery.Document) string {
	header := doc.Find(".header-content").First()
	if header.Length() == 0 {
		return ""
	}

	seen := map[string]struct{}{}
	var parts []string
	header.Find(".bold").Each(func(_ int, s *goquery.Selection) {
		text := cleanText(s.Text())
		if text == "" {
			return
		}
		if _, ok := seen[text]; ok {
			return
		}
		seen[text] = struct{}{}
		parts = append(parts, text)
	})
	return strings.Join(parts, " – ")
}

// parseSection locates the section anchor; its content lives in the
// structurally-next sibling block. Returns found=false when the anchor is
// absent so callers can omit the section.
func parseSection(doc *goquery.Document, schema sectionSchema) (map[string]string, map[string]domain.Subsection, bool) {
	anchor := doc.Find("div#" + schema.anchorID).First()
	if anchor.Length() == 0 {
		return nil, nil, false
	}

	content := anchor.NextAllFiltered("div.section-content").First()
	fields := map[string]string{}
	subsections := map[string]domain.Subsection{}
	if content.Length() == 0 {
		return fields, subsections, true
	}

	// First pass: every labelled block in the section, flattened. This is
	// the traceability map the deadline heuristic scans later, so the
	// subsection interiors stay in it on purpose.
	content.Find("div").Each(func(_ int, div *goquery.Selection) {
		if div.HasClass("subsection-content") {
			return
		}
		label, value, ok := labelledValue(div)
		if ok {
			fields[label] = value
		}
	})

	content.Find("div.subsection-content").Each(func(_ int, sub *goquery.Selection) {
		title, parsed, ok := parseSubsection(sub)
		if ok {
			subsections[title] = parsed
		}
	})

	return fields, subsections, true
}

// parseSubsection derives the composite title from the block's own number
// and content nodes, then applies the label→value rule inside it. Labels
// containing "classification" are routed to the CPV extractor instead of
// being treated as plain text.
func parseSubsection(sub *goquery.Selection) (string, domain.Subsection, bool) {
	number := sub.Find("div.sublevel__number").First()
	heading := sub.Find("div.sublevel__content").First()
	if number.Length() == 0 || heading.Length() == 0 {
		return "", domain.Subsection{}, false
	}

	numText := cleanText(number.Text())
	if !strings.HasSuffix(numText, ".") {
		numText += "."
	}
	title := numText + " " + cleanText(heading.Text())

	parsed := domain.Subsection{Fields: map[string]string{}}
	sub.Find("div").Each(func(_ int, div *goquery.Selection) {
		label, value, ok := labelledValue(div)
		if !ok {
			return
		}
		parsed.Fields[label] = value

		if !strings.Contains(strings.ToLower(label), "classification") {
			return
		}
		cpvs := ExtractCPVs(div)
		if len(cpvs) == 0 {
			return
		}
		switch {
		case strings.Contains(label, "Main classification"):
			parsed.MainCPVCode = cpvs[0].Code
			parsed.MainCPVDescription = cpvs[0].Description
		case strings.Contains(label, "Additional classification"):
			// Additional CPVs accumulate across multiple blocks
			// within one subsection.
			parsed.AdditionalCPVs = append(parsed.AdditionalCPVs, cpvs...)
		}
	})

	return title, parsed, true
}

// labelledValue reads a block's label marker and its paired value: a "data"
// span, else a "line" span, else an anchored link's target URL.
func labelledValue(div *goquery.Selection) (string, string, bool) {
	label := div.Find("span.label").First()
	if label.Length() == 0 {
		return "", "", false
	}
	labelText := cleanText(label.Text())

	if value := div.Find("span.data").First(); value.Length() > 0 {
		return labelText, cleanText(value.Text()), true
	}
	if value := div.Find("span.line").First(); value.Length() > 0 {
		return labelText, cleanText(value.Text()), true
	}
	if link := div.Find("a").First(); link.Length() > 0 {
		href, _ := link.Attr("href")
		return labelText, strings.TrimSpace(href), true
	}
	return "", "", false
}

// purposeView synthesizes the fixed-shape record consumers rely on from the
// "Purpose" subsection.
func purposeView(sub domain.Subsection) domain.Purpose {
	return domain.Purpose{
		MainNature:         sub.Fields["Main nature of the contract"],
		MainCPVCode:        sub.MainCPVCode,
		MainCPVDescription: sub.MainCPVDescription,
		AdditionalCPVs:     sub.AdditionalCPVs,
	}
}

// visibleText collects the page's text nodes, newline-separated, skipping
// script and style subtrees.
func visibleText(doc *goquery.Document) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				if b.Len() > 0 {
					b.WriteByte('\n')
				}
				b.WriteString(t)
			}
			return
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return b.String()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
