package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"TenderRadar/internal/domain"
	"TenderRadar/internal/ports"
)

// Archive persists each run's parsed documents twice: a dated JSON array for
// audit/replay and a Bleve full-text index over title and excerpt. Both are
// side artifacts; failures are reported but the pipeline does not depend on
// them for correctness.
type Archive struct {
	outputDir string
	index     bleve.Index
	logger    *slog.Logger
}

var _ ports.Archiver = (*Archive)(nil)

// IndexedNotice is the searchable projection of one parsed notice.
type IndexedNotice struct {
	PublicationNumber string
	Title             string
	Excerpt           string
	Countries         string
	URL               string
}

// Open creates the output directory and opens (or creates) the index.
func Open(outputDir, indexPath string, logger *slog.Logger) (*Archive, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	idx, err := bleve.Open(indexPath)
	if err == bleve.ErrorIndexPathDoesNotExist {
		mapping := buildIndexMapping()
		idx, err = bleve.New(indexPath, mapping)
	}
	if err != nil {
		return nil, fmt.Errorf("open notice index: %w", err)
	}

	return &Archive{outputDir: outputDir, index: idx, logger: logger}, nil
}

func buildIndexMapping() *mapping.IndexMappingImpl {
	textField := bleve.NewTextFieldMapping()
	titleField := bleve.NewTextFieldMapping()
	titleField.Analyzer = "en"

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("PublicationNumber", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("Title", titleField)
	docMapping.AddFieldMappingsAt("Excerpt", textField)
	docMapping.AddFieldMappingsAt("Countries", bleve.NewTextFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}

// SaveRun writes the dated JSON artifact and indexes every document.
func (a *Archive) SaveRun(ctx context.Context, day time.Time, docs []*domain.NoticeDocument) error {
	path := filepath.Join(a.outputDir, fmt.Sprintf("detailed_notices_%s.json", day.Format("20060102")))

	payload, err := json.MarshalIndent(docs, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal run artifact: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write run artifact: %w", err)
	}

	batch := a.index.NewBatch()
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if doc.PublicationNumber == "" {
			continue
		}
		entry := IndexedNotice{
			PublicationNumber: doc.PublicationNumber,
			Title:             doc.Title,
			Excerpt:           doc.RawTextExcerpt,
			Countries:         strings.Join(doc.BuyerCountries, " "),
			URL:               doc.URL,
		}
		if err := batch.Index(doc.PublicationNumber, entry); err != nil {
			a.warn("index notice", "publication", doc.PublicationNumber, "error", err)
		}
	}
	if err := a.index.Batch(batch); err != nil {
		return fmt.Errorf("index run batch: %w", err)
	}

	a.info("run archived", "path", path, "notices", len(docs))
	return nil
}

// Search queries the notice index; used by the audit tooling, not the cycle.
func (a *Archive) Search(query string, limit int) ([]string, error) {
	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	res, err := a.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search notices: %w", err)
	}

	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// Close releases the index.
func (a *Archive) Close() error {
	return a.index.Close()
}

func (a *Archive) info(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Info(msg, args...)
	}
}

func (a *Archive) warn(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}
