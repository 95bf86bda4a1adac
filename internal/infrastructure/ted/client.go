package ted

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"TenderRadar/internal/domain"
	"TenderRadar/internal/ports"
)

// searchFields is the bounded projection requested from the search API.
var searchFields = []string{
	"publication-number",
	"BT-05(a)-notice",
	"publication-date",
	"buyer-name",
	"buyer-country",
	"contract-nature",
	"estimated-value-lot",
	"links",
}

const defaultLimit = 250

// Client queries the TED notice-search endpoint for one country and day.
type Client struct {
	apiURL string
	apiKey string
	client *http.Client
	logger *slog.Logger
}

var _ ports.NoticeSource = (*Client)(nil)

// NewClient wires an HTTP client; a nil client gets a 20s timeout default.
func NewClient(apiURL, apiKey string, client *http.Client, logger *slog.Logger) *Client {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{apiURL: apiURL, apiKey: apiKey, client: client, logger: logger}
}

type searchRequest struct {
	Query  string   `json:"query"`
	Fields []string `json:"fields"`
	Limit  int      `json:"limit"`
}

type searchResponse struct {
	Notices []apiNotice `json:"notices"`
}

type apiNotice struct {
	PublicationNumber string                       `json:"publication-number"`
	BuyerCountry      []string                     `json:"buyer-country"`
	EstimatedValueLot any                          `json:"estimated-value-lot"`
	Links             map[string]map[string]string `json:"links"`
}

// FetchTodaysNotices posts the country/date query. Failures are logged and
// returned; the caller skips the country for this run rather than retrying.
func (c *Client) FetchTodaysNotices(ctx context.Context, countryCode string, limit int) ([]domain.NoticeSummary, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	payload := searchRequest{
		Query:  fmt.Sprintf("buyer-country=%s AND publication-date=today()", countryCode),
		Fields: searchFields,
		Limit:  limit,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal search payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		c.warn("search request failed", "country", countryCode, "error", err)
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.warn("search returned non-2xx", "country", countryCode, "status", resp.Status)
		return nil, fmt.Errorf("search returned %s", resp.Status)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	summaries := make([]domain.NoticeSummary, 0, len(decoded.Notices))
	for _, n := range decoded.Notices {
		summaries = append(summaries, domain.NoticeSummary{
			PublicationNumber: n.PublicationNumber,
			BuyerCountries:    n.BuyerCountry,
			EstimatedValue:    formatValue(n.EstimatedValueLot),
			HTMLDirectLinks:   n.Links["htmlDirect"],
			HTMLLinks:         n.Links["html"],
			PDFLinks:          n.Links["pdf"],
		})
	}
	return summaries, nil
}

// formatValue flattens the API's estimated-value field, which may arrive as a
// string, a number, or a per-lot array.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", val), "0"), ".")
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := formatValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", val)
	}
}

func (c *Client) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
