package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"

	"TenderRadar/internal/domain"
	"TenderRadar/internal/ports"
)

// Matcher joins parsed notice documents to subscribers by buyer country and
// CPV-set intersection, skipping pairs already in the sent log.
type Matcher struct {
	store  ports.SubscriberStore
	logger *slog.Logger
}

// New wires the persistence gateway.
func New(store ports.SubscriberStore, logger *slog.Logger) *Matcher {
	return &Matcher{store: store, logger: logger}
}

// Match walks every document's buyer countries. A notice carrying several
// country codes triggers one subscriber pass per code, so matches are
// collapsed by (subscriber, publication number) before being returned.
// Unknown ISO codes are skipped with a warning; storage errors abort the
// cycle (a gateway failure is not containable per-unit).
func (m *Matcher) Match(ctx context.Context, docs []*domain.NoticeDocument) ([]domain.Match, error) {
	var matches []domain.Match
	emitted := map[string]struct{}{}

	for _, doc := range docs {
		if len(doc.BuyerCountries) == 0 {
			continue
		}

		docCPVs := mapset.NewSet(doc.AllCPVs()...)
		if docCPVs.Cardinality() == 0 {
			continue
		}

		for _, code := range doc.BuyerCountries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			countryID, ok, err := m.store.CountryIDByISOCode(ctx, code)
			if err != nil {
				return nil, fmt.Errorf("resolve country %s: %w", code, err)
			}
			if !ok {
				m.warn("unknown country code on notice", "code", code, "publication", doc.PublicationNumber)
				continue
			}

			subscribers, err := m.store.SubscribersByCountry(ctx, countryID)
			if err != nil {
				return nil, fmt.Errorf("load subscribers for country %d: %w", countryID, err)
			}

			for _, sub := range subscribers {
				if err := ctx.Err(); err != nil {
					return nil, err
				}

				key := fmt.Sprintf("%d|%s", sub.ID, doc.PublicationNumber)
				if _, dup := emitted[key]; dup {
					continue
				}

				sent, err := m.store.WasSent(ctx, sub.ID, doc.PublicationNumber)
				if err != nil {
					return nil, fmt.Errorf("check sent log for subscriber %d: %w", sub.ID, err)
				}
				if sent {
					continue
				}

				cpvs, err := m.store.CPVsForSubscriber(ctx, sub.ID)
				if err != nil {
					return nil, fmt.Errorf("load cpvs for subscriber %d: %w", sub.ID, err)
				}

				subCPVs := mapset.NewSet[string]()
				for _, cpv := range cpvs {
					subCPVs.Add(cpv.Code)
				}

				intersection := docCPVs.Intersect(subCPVs)
				if intersection.Cardinality() == 0 {
					continue
				}

				matching := intersection.ToSlice()
				sort.Strings(matching)

				emitted[key] = struct{}{}
				matches = append(matches, domain.Match{
					Subscriber:        sub,
					Document:          doc,
					MatchingCPVs:      matching,
					PublicationNumber: doc.PublicationNumber,
				})
			}
		}
	}

	return matches, nil
}

func (m *Matcher) warn(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Warn(msg, args...)
	}
}
