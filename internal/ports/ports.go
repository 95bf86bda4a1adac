package ports

import (
	"context"
	"time"

	"TenderRadar/internal/domain"
)

// NoticeSource pulls today's notice summaries for one buyer country.
// A failure is non-fatal to the cycle: the caller logs it and skips the
// country for this run. Only when every configured country fails does the
// cycle itself fail.
type NoticeSource interface {
	FetchTodaysNotices(ctx context.Context, countryCode string, limit int) ([]domain.NoticeSummary, error)
}

// NoticeParser turns one notice detail page into a structured document.
// A failed parse returns an error and the caller skips that notice.
type NoticeParser interface {
	Parse(ctx context.Context, url string) (*domain.NoticeDocument, error)
}

// SubscriberStore is the persistence gateway for subscribers, countries,
// CPV associations and the sent log.
type SubscriberStore interface {
	CountriesWithSubscribers(ctx context.Context) ([]domain.Country, error)
	SubscribersByCountry(ctx context.Context, countryID int) ([]domain.Subscriber, error)
	CPVsForSubscriber(ctx context.Context, subscriberID int) ([]domain.CPV, error)

	// CountryIDByISOCode distinguishes "unknown code" (ok=false, err=nil)
	// from a failed lookup (err != nil).
	CountryIDByISOCode(ctx context.Context, isoCode string) (id int, ok bool, err error)

	WasSent(ctx context.Context, subscriberID int, publicationNumber string) (bool, error)
	// RecordSent is idempotent: re-recording an existing pair is a no-op.
	RecordSent(ctx context.Context, subscriberID int, publicationNumber string) error

	SubscribersWithoutCPV(ctx context.Context) ([]domain.Subscriber, error)
	UpsertCPV(ctx context.Context, code, description string) (cpvID int, err error)
	AssociateSubscriberCPV(ctx context.Context, subscriberID, cpvID int) error
}

// Classifier maps free-text subscriber interests to CPV code→description
// pairs. An empty map means "no codes found", not an error.
type Classifier interface {
	Classify(ctx context.Context, interests string) (map[string]string, error)
}

// Mailer delivers one digest email with both HTML and plain-text bodies.
type Mailer interface {
	Send(ctx context.Context, toEmail, toName, subject, htmlBody, textBody string) error
}

// Archiver persists the parsed documents of one run as a side artifact and
// feeds the full-text index. Not required for pipeline correctness.
type Archiver interface {
	SaveRun(ctx context.Context, day time.Time, docs []*domain.NoticeDocument) error
}

// Scheduler controls when cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
