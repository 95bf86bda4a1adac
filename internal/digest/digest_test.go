package digest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"TenderRadar/internal/domain"
)

func fixedBuilder() *Builder {
	return &Builder{now: func() time.Time {
		return time.Date(2026, time.August, 31, 9, 0, 0, 0, time.UTC)
	}}
}

func matchFor(subID int, name, pub string) domain.Match {
	return domain.Match{
		Subscriber:        domain.Subscriber{ID: subID, Name: name, Email: name + "@example.com"},
		PublicationNumber: pub,
		MatchingCPVs:      []string{"33696500"},
		Document: &domain.NoticeDocument{
			PublicationNumber: pub,
			Title:             "Supply of laboratory reagents",
			BuyerCountries:    []string{"ESP"},
			EstimatedValue:    "125000.5",
			URL:               "https://ted.example/" + pub,
			Buyer:             &domain.Buyer{OfficialName: "Servicio Andaluz de Salud"},
			Procedure: &domain.Procedure{
				Description: "Supply of reagents for clinical laboratories.",
				Purpose: domain.Purpose{
					MainCPVCode:        "33696500",
					MainCPVDescription: "Laboratory reagents",
				},
			},
			Sections: map[string]map[string]string{
				"2. Procedure": {
					"Deadline for receipt of tenders": "2026-09-15 10:00 (UTC)",
				},
			},
		},
	}
}

func TestBuildGroupsBySubscriber(t *testing.T) {
	t.Parallel()

	matches := []domain.Match{
		matchFor(7, "maria", "00123-2026"),
		matchFor(8, "jon", "00123-2026"),
		matchFor(7, "maria", "00124-2026"),
	}

	digests := fixedBuilder().Build(matches)
	require.Len(t, digests, 2)
	require.Equal(t, 7, digests[0].Subscriber.ID)
	require.Len(t, digests[0].Entries, 2)
	require.Equal(t, 8, digests[1].Subscriber.ID)
	require.Len(t, digests[1].Entries, 1)
}

func TestBuildEmpty(t *testing.T) {
	t.Parallel()

	require.Empty(t, fixedBuilder().Build(nil))
}

func TestRenderContainsNoticeFields(t *testing.T) {
	t.Parallel()

	digests := fixedBuilder().Build([]domain.Match{matchFor(7, "maria", "00123-2026")})
	require.Len(t, digests, 1)

	htmlBody, textBody, err := fixedBuilder().Render(digests[0])
	require.NoError(t, err)

	for _, body := range []string{htmlBody, textBody} {
		require.Contains(t, body, "Supply of laboratory reagents")
		require.Contains(t, body, "00123-2026")
		require.Contains(t, body, "2026-08-31")
		require.Contains(t, body, "2026-09-15 10:00 (UTC)")
		require.Contains(t, body, "125000.5")
		require.Contains(t, body, "Servicio Andaluz de Salud")
		require.Contains(t, body, "33696500 - Laboratory reagents")
	}
	require.Contains(t, htmlBody, "<html>")
	require.Contains(t, textBody, "Hello maria")
	require.False(t, strings.Contains(textBody, "<div"))
}

func TestRenderFallbacks(t *testing.T) {
	t.Parallel()

	d := &domain.Digest{
		Subscriber: domain.Subscriber{ID: 7, Name: "maria"},
		Entries: []domain.DigestEntry{{
			Document: &domain.NoticeDocument{PublicationNumber: "00125-2026"},
		}},
	}

	htmlBody, textBody, err := fixedBuilder().Render(d)
	require.NoError(t, err)
	require.Contains(t, htmlBody, "No title available")
	require.Contains(t, textBody, "Not specified")
	require.Contains(t, textBody, "N/A")
}

func TestDeadlinePrefersProcedureSection(t *testing.T) {
	t.Parallel()

	doc := &domain.NoticeDocument{Sections: map[string]map[string]string{
		"2. Procedure": {
			"Deadline for receipt of tenders": "2026-09-15 10:00 (UTC)",
		},
		"3. Part": {
			"Deadline for receipt of tenders": "2026-10-01 10:00 (UTC)",
		},
	}}
	require.Equal(t, "2026-09-15 10:00 (UTC)", Deadline(doc))
}

func TestDeadlineSkipsShortValues(t *testing.T) {
	t.Parallel()

	doc := &domain.NoticeDocument{Sections: map[string]map[string]string{
		"2. Procedure": {
			"Deadline": "n/a",
			"Estimated date of publication": "2026-11-02",
		},
	}}
	require.Equal(t, "2026-11-02", Deadline(doc))
}

func TestDeadlineFallsBackToNotSpecified(t *testing.T) {
	t.Parallel()

	require.Equal(t, notSpecified, Deadline(&domain.NoticeDocument{}))
	doc := &domain.NoticeDocument{Sections: map[string]map[string]string{
		"2. Procedure": {"Title": "nothing here"},
	}}
	require.Equal(t, notSpecified, Deadline(doc))
}
