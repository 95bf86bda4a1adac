package domain

// CPV is one Common Procurement Vocabulary entry scraped from a notice or
// assigned to a subscriber. Code is digits only (dash suffix already
// stripped by the source page); Description may be empty.
type CPV struct {
	Code        string `db:"code" json:"code"`
	Description string `db:"description" json:"description"`
}

// NoticeSummary is one row from the notice-search API. Links are keyed by
// language code (e.g. "ENG").
type NoticeSummary struct {
	PublicationNumber string            `json:"publication-number"`
	BuyerCountries    []string          `json:"buyer-country"`
	EstimatedValue    string            `json:"estimated-value-lot"`
	HTMLDirectLinks   map[string]string `json:"html_direct_links"`
	HTMLLinks         map[string]string `json:"html_links"`
	PDFLinks          map[string]string `json:"pdf_links"`
}

// DirectLink picks the page to parse: the English htmlDirect link when
// present, else any htmlDirect link. Empty when the notice has no HTML
// rendering at all.
func (s NoticeSummary) DirectLink() string {
	if url, ok := s.HTMLDirectLinks["ENG"]; ok {
		return url
	}
	for _, url := range s.HTMLDirectLinks {
		return url
	}
	return ""
}

// Buyer holds the fields lifted from the "1. Buyer" section.
type Buyer struct {
	OfficialName string `json:"official_name"`
	Email        string `json:"email"`
	LegalType    string `json:"legal_type"`
	Activity     string `json:"activity"`
}

// Purpose is the fixed-shape view of a section's "Purpose" subsection.
type Purpose struct {
	MainNature         string `json:"main_nature"`
	MainCPVCode        string `json:"main_cpv_code"`
	MainCPVDescription string `json:"main_cpv_description"`
	AdditionalCPVs     []CPV  `json:"additional_cpvs"`
}

// Subsection keeps the typed CPV fields of a numbered block plus everything
// else the block carried as raw label→value pairs. The page's subsection
// layout is not fully known ahead of time, so unrecognized labels land in
// Fields instead of being dropped.
type Subsection struct {
	MainCPVCode        string            `json:"main_cpv_code,omitempty"`
	MainCPVDescription string            `json:"main_cpv_description,omitempty"`
	AdditionalCPVs     []CPV             `json:"additional_cpvs,omitempty"`
	Fields             map[string]string `json:"fields"`
}

// Procedure holds the fields lifted from the "2. Procedure" section.
type Procedure struct {
	Title              string                `json:"title"`
	Description        string                `json:"description"`
	InternalIdentifier string                `json:"internal_identifier"`
	Purpose            Purpose               `json:"purpose"`
	Subsections        map[string]Subsection `json:"subsections,omitempty"`
}

// Part holds the fields lifted from the "3. Part" section.
type Part struct {
	TechnicalID             string                `json:"technical_id"`
	Title                   string                `json:"title"`
	Description             string                `json:"description"`
	InternalIdentifier      string                `json:"internal_identifier"`
	ProcurementDocumentsURL string                `json:"procurement_documents_url"`
	Purpose                 Purpose               `json:"purpose"`
	Subsections             map[string]Subsection `json:"subsections,omitempty"`
}

// NoticeDocument is the parsed structured form of one notice page. Sections
// retains the flat label→value maps per top-level section for traceability.
// The summary fields (publication number, countries, value, links) are copied
// from the NoticeSummary after parsing, never re-derived from the page.
type NoticeDocument struct {
	URL            string                       `json:"url"`
	Title          string                       `json:"title"`
	Buyer          *Buyer                       `json:"buyer,omitempty"`
	Procedure      *Procedure                   `json:"procedure,omitempty"`
	Part           *Part                        `json:"part,omitempty"`
	Sections       map[string]map[string]string `json:"sections"`
	RawTextExcerpt string                       `json:"raw_text_excerpt"`

	PublicationNumber string            `json:"publication-number"`
	BuyerCountries    []string          `json:"buyer-country"`
	EstimatedValue    string            `json:"estimated-value-lot"`
	HTMLDirectLinks   map[string]string `json:"html_direct_links,omitempty"`
	HTMLLinks         map[string]string `json:"html_links,omitempty"`
	PDFLinks          map[string]string `json:"pdf_links,omitempty"`
}

// AllCPVs returns the deduplicated union of main and additional CPV codes
// from both the procedure and part purposes, in first-seen order.
func (d *NoticeDocument) AllCPVs() []string {
	seen := map[string]struct{}{}
	var codes []string
	add := func(code string) {
		if code == "" {
			return
		}
		if _, ok := seen[code]; ok {
			return
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}

	for _, p := range d.purposes() {
		add(p.MainCPVCode)
		for _, cpv := range p.AdditionalCPVs {
			add(cpv.Code)
		}
	}
	return codes
}

// CPVDescriptions returns "code - description" lines for the given codes,
// deduplicated, searching both purposes.
func (d *NoticeDocument) CPVDescriptions(codes []string) []string {
	want := map[string]struct{}{}
	for _, c := range codes {
		want[c] = struct{}{}
	}

	seen := map[string]struct{}{}
	var lines []string
	add := func(code, desc string) {
		if _, ok := want[code]; !ok {
			return
		}
		if desc == "" {
			desc = "No description"
		}
		line := code + " - " + desc
		if _, ok := seen[line]; ok {
			return
		}
		seen[line] = struct{}{}
		lines = append(lines, line)
	}

	for _, p := range d.purposes() {
		add(p.MainCPVCode, p.MainCPVDescription)
		for _, cpv := range p.AdditionalCPVs {
			add(cpv.Code, cpv.Description)
		}
	}
	return lines
}

// CPVDescriptionsOnly returns just the non-empty descriptions for the given
// codes, deduplicated. Used for subject lines.
func (d *NoticeDocument) CPVDescriptionsOnly(codes []string) []string {
	want := map[string]struct{}{}
	for _, c := range codes {
		want[c] = struct{}{}
	}

	seen := map[string]struct{}{}
	var out []string
	add := func(code, desc string) {
		if _, ok := want[code]; !ok {
			return
		}
		if desc == "" {
			return
		}
		if _, ok := seen[desc]; ok {
			return
		}
		seen[desc] = struct{}{}
		out = append(out, desc)
	}

	for _, p := range d.purposes() {
		add(p.MainCPVCode, p.MainCPVDescription)
		for _, cpv := range p.AdditionalCPVs {
			add(cpv.Code, cpv.Description)
		}
	}
	return out
}

// BestLink picks the link shown to subscribers: the English html link, then
// any html link, then the htmlDirect equivalents, then the parsed URL.
func (d *NoticeDocument) BestLink() string {
	for _, links := range []map[string]string{d.HTMLLinks, d.HTMLDirectLinks} {
		if url, ok := links["ENG"]; ok {
			return url
		}
		for _, url := range links {
			return url
		}
	}
	return d.URL
}

func (d *NoticeDocument) purposes() []Purpose {
	var ps []Purpose
	if d.Procedure != nil {
		ps = append(ps, d.Procedure.Purpose)
	}
	if d.Part != nil {
		ps = append(ps, d.Part.Purpose)
	}
	return ps
}

// Country is a row of the countries table.
type Country struct {
	ID      int    `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	ISOCode string `db:"iso_code" json:"iso_code"`
}

// Subscriber owns free-text interests and, once classified, CPV associations.
type Subscriber struct {
	ID        int    `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	Email     string `db:"email" json:"email"`
	Interests string `db:"interests" json:"interests"`
	CountryID int    `db:"country_id" json:"country_id"`
}

// Match joins one subscriber to one notice for the current cycle. Matches are
// never persisted; the digest builder consumes them in the same run.
type Match struct {
	Subscriber        Subscriber
	Document          *NoticeDocument
	MatchingCPVs      []string
	PublicationNumber string
}

// DigestEntry is one notice inside a subscriber's digest.
type DigestEntry struct {
	Document     *NoticeDocument
	MatchingCPVs []string
}

// Digest aggregates all of one subscriber's matches for a cycle.
type Digest struct {
	Subscriber Subscriber
	Entries    []DigestEntry
}
