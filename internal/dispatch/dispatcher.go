package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"TenderRadar/internal/digest"
	"TenderRadar/internal/domain"
	"TenderRadar/internal/ports"
)

const subjectKeywordCap = 3

// Dispatcher sends (or displays) digests and, on confirmed delivery, commits
// the sent-records that keep notices from being re-sent.
type Dispatcher struct {
	mailer      ports.Mailer
	store       ports.SubscriberStore
	builder     *digest.Builder
	logger      *slog.Logger
	consoleOnly bool
}

// New wires the mailer and the sent log. With consoleOnly set, digests are
// logged instead of mailed; display still counts as delivery for dedup.
func New(mailer ports.Mailer, store ports.SubscriberStore, builder *digest.Builder, logger *slog.Logger, consoleOnly bool) *Dispatcher {
	return &Dispatcher{
		mailer:      mailer,
		store:       store,
		builder:     builder,
		logger:      logger,
		consoleOnly: consoleOnly,
	}
}

// DispatchAll processes each digest independently: a failure for one
// subscriber is logged and never blocks the others. Returns how many digests
// were delivered.
func (d *Dispatcher) DispatchAll(ctx context.Context, digests []*domain.Digest) int {
	sent := 0
	for _, dig := range digests {
		if err := ctx.Err(); err != nil {
			d.warn("dispatch cancelled", "remaining", len(digests)-sent)
			return sent
		}
		if d.Dispatch(ctx, dig) {
			sent++
		}
	}
	return sent
}

// Dispatch renders and delivers one digest. Sent-records are written only
// after a confirmed delivery, so a failed send stays eligible for the next
// cycle.
func (d *Dispatcher) Dispatch(ctx context.Context, dig *domain.Digest) bool {
	htmlBody, textBody, err := d.builder.Render(dig)
	if err != nil {
		d.warn("render digest", "subscriber", dig.Subscriber.ID, "error", err)
		return false
	}

	subject := Subject(dig)

	if d.consoleOnly {
		d.info("digest (console mode)",
			"subscriber", dig.Subscriber.ID,
			"email", dig.Subscriber.Email,
			"subject", subject,
			"body", textBody)
	} else {
		err := d.mailer.Send(ctx, dig.Subscriber.Email, dig.Subscriber.Name, subject, htmlBody, textBody)
		if err != nil {
			d.warn("send digest", "subscriber", dig.Subscriber.ID, "email", dig.Subscriber.Email, "error", err)
			return false
		}
		d.info("digest sent", "subscriber", dig.Subscriber.ID, "notices", len(dig.Entries))
	}

	d.recordSent(ctx, dig)
	return true
}

// Subject builds the subject line from up to three distinct matching-CPV
// descriptions across the digest's entries.
func Subject(dig *domain.Digest) string {
	seen := map[string]struct{}{}
	var keywords []string
	for _, entry := range dig.Entries {
		for _, desc := range entry.Document.CPVDescriptionsOnly(entry.MatchingCPVs) {
			if _, ok := seen[desc]; ok {
				continue
			}
			seen[desc] = struct{}{}
			keywords = append(keywords, desc)
		}
	}

	if len(keywords) == 0 {
		return fmt.Sprintf("%d new tenders matching your interests", len(dig.Entries))
	}
	if len(keywords) > subjectKeywordCap {
		keywords = keywords[:subjectKeywordCap]
	}
	return fmt.Sprintf("%d new tenders matching your keywords: %s", len(dig.Entries), strings.Join(keywords, ", "))
}

func (d *Dispatcher) recordSent(ctx context.Context, dig *domain.Digest) {
	for _, entry := range dig.Entries {
		pub := entry.Document.PublicationNumber
		if err := d.store.RecordSent(ctx, dig.Subscriber.ID, pub); err != nil {
			d.warn("record sent notice", "subscriber", dig.Subscriber.ID, "publication", pub, "error", err)
		}
	}
}

func (d *Dispatcher) info(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Info(msg, args...)
	}
}

func (d *Dispatcher) warn(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}
