package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"TenderRadar/internal/digest"
	"TenderRadar/internal/domain"
)

type sentMail struct {
	to      string
	subject string
	html    string
	text    string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, toEmail, toName, subject, htmlBody, textBody string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: toEmail, subject: subject, html: htmlBody, text: textBody})
	return nil
}

type fakeSentLog struct {
	records map[string]bool
	err     error
}

func newFakeSentLog() *fakeSentLog {
	return &fakeSentLog{records: map[string]bool{}}
}

func (f *fakeSentLog) CountriesWithSubscribers(ctx context.Context) ([]domain.Country, error) {
	return nil, nil
}

func (f *fakeSentLog) SubscribersByCountry(ctx context.Context, countryID int) ([]domain.Subscriber, error) {
	return nil, nil
}

func (f *fakeSentLog) CPVsForSubscriber(ctx context.Context, subscriberID int) ([]domain.CPV, error) {
	return nil, nil
}

func (f *fakeSentLog) CountryIDByISOCode(ctx context.Context, isoCode string) (int, bool, error) {
	return 0, false, nil
}

func (f *fakeSentLog) WasSent(ctx context.Context, subscriberID int, publicationNumber string) (bool, error) {
	return f.records[fmt.Sprintf("%d|%s", subscriberID, publicationNumber)], nil
}

func (f *fakeSentLog) RecordSent(ctx context.Context, subscriberID int, publicationNumber string) error {
	if f.err != nil {
		return f.err
	}
	f.records[fmt.Sprintf("%d|%s", subscriberID, publicationNumber)] = true
	return nil
}

func (f *fakeSentLog) SubscribersWithoutCPV(ctx context.Context) ([]domain.Subscriber, error) {
	return nil, nil
}

func (f *fakeSentLog) UpsertCPV(ctx context.Context, code, description string) (int, error) {
	return 0, nil
}

func (f *fakeSentLog) AssociateSubscriberCPV(ctx context.Context, subscriberID, cpvID int) error {
	return nil
}

func digestFor(subID int, pubs ...string) *domain.Digest {
	d := &domain.Digest{
		Subscriber: domain.Subscriber{ID: subID, Name: "maria", Email: "maria@example.com"},
	}
	for _, pub := range pubs {
		d.Entries = append(d.Entries, domain.DigestEntry{
			MatchingCPVs: []string{"33696500"},
			Document: &domain.NoticeDocument{
				PublicationNumber: pub,
				Title:             "Supply of laboratory reagents",
				Procedure: &domain.Procedure{
					Purpose: domain.Purpose{
						MainCPVCode:        "33696500",
						MainCPVDescription: "Laboratory reagents",
					},
				},
			},
		})
	}
	return d
}

func TestDispatchSendsAndRecords(t *testing.T) {
	t.Parallel()

	mailer := &fakeMailer{}
	store := newFakeSentLog()
	d := New(mailer, store, digest.New(), nil, false)

	ok := d.Dispatch(context.Background(), digestFor(7, "00123-2026", "00124-2026"))
	require.True(t, ok)
	require.Len(t, mailer.sent, 1)
	require.Equal(t, "maria@example.com", mailer.sent[0].to)

	sent, err := store.WasSent(context.Background(), 7, "00123-2026")
	require.NoError(t, err)
	require.True(t, sent)
	sent, err = store.WasSent(context.Background(), 7, "00124-2026")
	require.NoError(t, err)
	require.True(t, sent)
}

func TestDispatchFailedSendLeavesNoRecord(t *testing.T) {
	t.Parallel()

	mailer := &fakeMailer{err: errors.New("smtp unavailable")}
	store := newFakeSentLog()
	d := New(mailer, store, digest.New(), nil, false)

	ok := d.Dispatch(context.Background(), digestFor(7, "00123-2026"))
	require.False(t, ok)

	sent, err := store.WasSent(context.Background(), 7, "00123-2026")
	require.NoError(t, err)
	require.False(t, sent)
}

func TestDispatchConsoleModeStillRecords(t *testing.T) {
	t.Parallel()

	mailer := &fakeMailer{}
	store := newFakeSentLog()
	d := New(mailer, store, digest.New(), nil, true)

	ok := d.Dispatch(context.Background(), digestFor(7, "00123-2026"))
	require.True(t, ok)
	require.Empty(t, mailer.sent)

	sent, err := store.WasSent(context.Background(), 7, "00123-2026")
	require.NoError(t, err)
	require.True(t, sent)
}

func TestDispatchAllIsolatesFailures(t *testing.T) {
	t.Parallel()

	mailer := &fakeMailer{}
	store := newFakeSentLog()
	d := New(mailer, store, digest.New(), nil, false)

	digests := []*domain.Digest{
		digestFor(7, "00123-2026"),
		digestFor(8, "00123-2026"),
	}
	// Second digest renders fine; fail the first send only.
	mailer.err = errors.New("smtp unavailable")
	require.Equal(t, 0, d.DispatchAll(context.Background(), digests))

	mailer.err = nil
	require.Equal(t, 2, d.DispatchAll(context.Background(), digests))
	require.Len(t, mailer.sent, 2)
}

func TestSubjectCapsKeywords(t *testing.T) {
	t.Parallel()

	dig := &domain.Digest{Entries: []domain.DigestEntry{
		{
			MatchingCPVs: []string{"1", "2", "3", "4"},
			Document: &domain.NoticeDocument{Procedure: &domain.Procedure{Purpose: domain.Purpose{
				MainCPVCode:        "1",
				MainCPVDescription: "Cereals",
				AdditionalCPVs: []domain.CPV{
					{Code: "2", Description: "Construction work"},
					{Code: "3", Description: "IT services"},
					{Code: "4", Description: "Road works"},
				},
			}}},
		},
	}}

	subject := Subject(dig)
	require.Equal(t, "1 new tenders matching your keywords: Cereals, Construction work, IT services", subject)
}

func TestSubjectWithoutDescriptions(t *testing.T) {
	t.Parallel()

	dig := &domain.Digest{Entries: []domain.DigestEntry{
		{
			MatchingCPVs: []string{"45000000"},
			Document: &domain.NoticeDocument{Procedure: &domain.Procedure{Purpose: domain.Purpose{
				MainCPVCode: "45000000",
			}}},
		},
		{
			MatchingCPVs: []string{"45000000"},
			Document:     &domain.NoticeDocument{},
		},
	}}

	require.Equal(t, "2 new tenders matching your interests", Subject(dig))
}
