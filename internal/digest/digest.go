package digest

import (
	"fmt"
	"html/template"
	"sort"
	"strings"
	"time"

	"TenderRadar/internal/domain"
)

const notSpecified = "Not specified"

// Builder groups matches into per-subscriber digests and renders them as
// HTML and plain text.
type Builder struct {
	now func() time.Time
}

// New returns a builder using the wall clock.
func New() *Builder {
	return &Builder{now: time.Now}
}

// Build groups matches by subscriber id, preserving the order matches were
// produced. Order of digests across subscribers follows first appearance.
func (b *Builder) Build(matches []domain.Match) []*domain.Digest {
	byID := map[int]*domain.Digest{}
	var order []int

	for _, match := range matches {
		d, ok := byID[match.Subscriber.ID]
		if !ok {
			d = &domain.Digest{Subscriber: match.Subscriber}
			byID[match.Subscriber.ID] = d
			order = append(order, match.Subscriber.ID)
		}
		d.Entries = append(d.Entries, domain.DigestEntry{
			Document:     match.Document,
			MatchingCPVs: match.MatchingCPVs,
		})
	}

	digests := make([]*domain.Digest, 0, len(order))
	for _, id := range order {
		digests = append(digests, byID[id])
	}
	return digests
}

type entryView struct {
	Index          int
	Title          string
	Link           string
	Reference      string
	Date           string
	Deadline       string
	EstimatedValue string
	Buyer          string
	Countries      string
	Description    string
	CPVs           []string
}

type digestView struct {
	Name    string
	Entries []entryView
}

// Render produces the HTML body and its plain-text equivalent, same fields
// in the same order.
func (b *Builder) Render(d *domain.Digest) (string, string, error) {
	view := digestView{Name: d.Subscriber.Name}
	today := b.now().Format("2006-01-02")

	for i, entry := range d.Entries {
		doc := entry.Document

		title := doc.Title
		if title == "" {
			title = "No title available"
		}
		description := notSpecified
		if doc.Procedure != nil && doc.Procedure.Description != "" {
			description = doc.Procedure.Description
		}
		buyer := "N/A"
		if doc.Buyer != nil && doc.Buyer.OfficialName != "" {
			buyer = doc.Buyer.OfficialName
		}
		countries := "N/A"
		if len(doc.BuyerCountries) > 0 {
			countries = strings.Join(doc.BuyerCountries, ", ")
		}
		value := doc.EstimatedValue
		if value == "" {
			value = notSpecified
		}

		view.Entries = append(view.Entries, entryView{
			Index:          i + 1,
			Title:          title,
			Link:           doc.BestLink(),
			Reference:      doc.PublicationNumber,
			Date:           today,
			Deadline:       Deadline(doc),
			EstimatedValue: value,
			Buyer:          buyer,
			Countries:      countries,
			Description:    description,
			CPVs:           doc.CPVDescriptions(entry.MatchingCPVs),
		})
	}

	var htmlBuf strings.Builder
	if err := htmlTemplate.Execute(&htmlBuf, view); err != nil {
		return "", "", fmt.Errorf("render html digest: %w", err)
	}

	return htmlBuf.String(), renderText(view), nil
}

// Deadline is best-effort: the first section label containing "deadline" or
// "date" whose value is longer than 5 characters wins, procedure before
// part. Labels are scanned in sorted order so the result is deterministic.
func Deadline(doc *domain.NoticeDocument) string {
	for _, section := range []string{"2. Procedure", "3. Part"} {
		fields := doc.Sections[section]
		if len(fields) == 0 {
			continue
		}

		labels := make([]string, 0, len(fields))
		for label := range fields {
			labels = append(labels, label)
		}
		sort.Strings(labels)

		for _, label := range labels {
			lower := strings.ToLower(label)
			if !strings.Contains(lower, "deadline") && !strings.Contains(lower, "date") {
				continue
			}
			if value := fields[label]; len(value) > 5 {
				return value
			}
		}
	}
	return notSpecified
}

func renderText(view digestView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s, here are the latest tenders matching your preferences.\n\n", view.Name)

	for _, e := range view.Entries {
		fmt.Fprintf(&b, "%d. %s\n", e.Index, e.Title)
		fmt.Fprintf(&b, "   TED Reference: %s\n", e.Reference)
		fmt.Fprintf(&b, "   Publication date: %s\n", e.Date)
		fmt.Fprintf(&b, "   Deadline for submission: %s\n", e.Deadline)
		fmt.Fprintf(&b, "   Estimated value: %s\n", e.EstimatedValue)
		fmt.Fprintf(&b, "   Authority / Country: %s / %s\n", e.Buyer, e.Countries)
		fmt.Fprintf(&b, "   Short description: %s\n", e.Description)
		b.WriteString("   Matching CPVs:\n")
		for _, cpv := range e.CPVs {
			fmt.Fprintf(&b, "      - %s\n", cpv)
		}
		fmt.Fprintf(&b, "   Link to full documentation: %s\n\n", e.Link)
	}

	b.WriteString("This email was sent automatically by the TED Tender Alert System.\n")
	return b.String()
}

var htmlTemplate = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<style>
  body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
  .header { background: #f8f9fa; padding: 20px; border-radius: 5px; }
  .tender { border: 1px solid #ddd; margin: 15px 0; padding: 15px; border-radius: 5px; }
  .tender-title { font-size: 18px; font-weight: bold; color: #0056b3; }
  .label { font-weight: bold; color: #555; }
  .cpv-list { background: #f1f3f4; padding: 10px; border-radius: 3px; }
  .footer { margin-top: 20px; padding: 15px; background: #f8f9fa; border-radius: 5px; font-size: 12px; color: #666; }
  a { color: #0056b3; text-decoration: none; }
  a:hover { text-decoration: underline; }
</style>
</head>
<body>
<div class="header">
  <h2>Hello {{.Name}},</h2>
  <p>Here are the latest tenders matching your preferences.</p>
</div>
{{range .Entries}}
<div class="tender">
  <div class="tender-title">{{.Index}}. <a href="{{.Link}}" target="_blank">{{.Title}}</a></div>
  <p><span class="label">TED Reference:</span> {{.Reference}}</p>
  <p><span class="label">Publication date:</span> {{.Date}}</p>
  <p><span class="label">Deadline for submission:</span> {{.Deadline}}</p>
  <p><span class="label">Estimated value:</span> {{.EstimatedValue}}</p>
  <p><span class="label">Authority / Country:</span> {{.Buyer}} / {{.Countries}}</p>
  <p><span class="label">Short description:</span> {{.Description}}</p>
  <div class="label">Matching CPVs:</div>
  <div class="cpv-list">
  {{- range .CPVs}}
    <div>&bull; {{.}}</div>
  {{- end}}
  </div>
  <p><span class="label">Link to full documentation:</span> <a href="{{.Link}}" target="_blank">{{.Link}}</a></p>
</div>
{{end}}
<div class="footer">
  <p>This email was sent automatically by the TED Tender Alert System.</p>
  <p>If you wish to unsubscribe or modify your preferences, please contact the system administrator.</p>
</div>
</body>
</html>
`))
