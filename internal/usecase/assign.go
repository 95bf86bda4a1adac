package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"TenderRadar/internal/ports"
)

// Assigner is the upstream CPV-assignment stage: it classifies the interests
// of subscribers who have no CPV associations yet. It runs independently of
// notice fetching.
type Assigner struct {
	store      ports.SubscriberStore
	classifier ports.Classifier
	logger     *slog.Logger
}

// NewAssigner wires the store and the classifier.
func NewAssigner(store ports.SubscriberStore, classifier ports.Classifier, logger *slog.Logger) *Assigner {
	return &Assigner{store: store, classifier: classifier, logger: logger}
}

// AssignAll processes every unclassified subscriber. A classifier failure or
// an empty mapping leaves that subscriber without codes for this cycle; they
// are picked up again on the next run.
func (a *Assigner) AssignAll(ctx context.Context) error {
	if a.classifier == nil {
		return nil
	}

	subscribers, err := a.store.SubscribersWithoutCPV(ctx)
	if err != nil {
		return fmt.Errorf("load subscribers without cpv: %w", err)
	}
	if len(subscribers) == 0 {
		return nil
	}
	a.info("classifying subscriber interests", "subscribers", len(subscribers))

	for _, sub := range subscribers {
		if err := ctx.Err(); err != nil {
			return err
		}

		mapping, err := a.classifier.Classify(ctx, sub.Interests)
		if err != nil {
			a.warn("classify interests", "subscriber", sub.ID, "error", err)
			continue
		}
		if len(mapping) == 0 {
			a.info("no cpv codes found for interests", "subscriber", sub.ID)
			continue
		}

		linked := 0
		for code, description := range mapping {
			cpvID, err := a.store.UpsertCPV(ctx, code, description)
			if err != nil {
				a.warn("upsert cpv", "code", code, "error", err)
				continue
			}
			if err := a.store.AssociateSubscriberCPV(ctx, sub.ID, cpvID); err != nil {
				a.warn("associate cpv", "subscriber", sub.ID, "code", code, "error", err)
				continue
			}
			linked++
		}
		a.info("subscriber classified", "subscriber", sub.ID, "cpvs", linked)
	}

	return nil
}

func (a *Assigner) info(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Info(msg, args...)
	}
}

func (a *Assigner) warn(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}
