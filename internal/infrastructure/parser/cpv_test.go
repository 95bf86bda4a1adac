package parser

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func selectionFrom(t *testing.T, html string) *goquery.Selection {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	return doc.Find("div").First()
}

func TestExtractCPVsPairsCodeWithDescription(t *testing.T) {
	t.Parallel()

	block := selectionFrom(t, `
	<div>
	  <span class="data">33696500</span>
	  <span class="data">Laboratory reagents</span>
	  <span class="data">33124100</span>
	  <span class="data">Diagnostic devices</span>
	</div>`)

	cpvs := ExtractCPVs(block)
	if len(cpvs) != 2 {
		t.Fatalf("expected 2 cpvs, got %d", len(cpvs))
	}
	if cpvs[0].Code != "33696500" || cpvs[0].Description != "Laboratory reagents" {
		t.Fatalf("unexpected first cpv: %+v", cpvs[0])
	}
	if cpvs[1].Code != "33124100" || cpvs[1].Description != "Diagnostic devices" {
		t.Fatalf("unexpected second cpv: %+v", cpvs[1])
	}
}

func TestExtractCPVsCodeWithoutDescription(t *testing.T) {
	t.Parallel()

	block := selectionFrom(t, `
	<div>
	  <span class="data">45000000</span>
	  <span class="data">72000000</span>
	  <span class="data">IT services</span>
	</div>`)

	cpvs := ExtractCPVs(block)
	if len(cpvs) != 2 {
		t.Fatalf("expected 2 cpvs, got %d", len(cpvs))
	}
	if cpvs[0].Code != "45000000" || cpvs[0].Description != "" {
		t.Fatalf("expected bare code first, got %+v", cpvs[0])
	}
	if cpvs[1].Code != "72000000" || cpvs[1].Description != "IT services" {
		t.Fatalf("unexpected second cpv: %+v", cpvs[1])
	}
}

func TestExtractCPVsIgnoresLeadingText(t *testing.T) {
	t.Parallel()

	block := selectionFrom(t, `
	<div>
	  <span class="data">Common procurement vocabulary</span>
	  <span class="data">33696500</span>
	  <span class="data">Laboratory
	     reagents</span>
	</div>`)

	cpvs := ExtractCPVs(block)
	if len(cpvs) != 1 {
		t.Fatalf("expected 1 cpv, got %d", len(cpvs))
	}
	if cpvs[0].Description != "Laboratory reagents" {
		t.Fatalf("whitespace not collapsed: %q", cpvs[0].Description)
	}
}

func TestExtractCPVsEmptyBlock(t *testing.T) {
	t.Parallel()

	block := selectionFrom(t, `<div><span class="label">Main classification ( cpv ):</span></div>`)
	if cpvs := ExtractCPVs(block); len(cpvs) != 0 {
		t.Fatalf("expected no cpvs, got %+v", cpvs)
	}
}
