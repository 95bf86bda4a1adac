package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"TenderRadar/internal/config"
	"TenderRadar/internal/ports"
)

const systemPrompt = `You are an expert in European public procurement and the CPV (Common Procurement Vocabulary) classification.
Extract ALL relevant CPV 2008 codes matching the user's interest description.
Rules: use only official CPV 2008 codes with their exact English descriptions; prefer specific 8-digit codes; at most 15 codes; output codes WITHOUT dashes (first 8 digits only).
Respond with a single JSON object mapping code to description, no explanations, no markdown.`

var codeForm = regexp.MustCompile(`^\d+$`)

// Client maps free-text subscriber interests to CPV code→description pairs
// via an OpenAI-compatible chat endpoint.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ports.Classifier = (*Client)(nil)

// NewClient builds a client from configuration.
func NewClient(cfg config.ClassifierConfig, logger *slog.Logger) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Classify sends the interest text and decodes the model's JSON mapping.
// Unparseable model output yields an empty map, not an error: the subscriber
// simply gains no codes this cycle and is retried on the next one.
func (c *Client) Classify(ctx context.Context, interests string) (map[string]string, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return nil, fmt.Errorf("classifier client misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": interests},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal classify payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("classifier error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return map[string]string{}, nil
	}

	return parseMapping(decoded.Choices[0].Message.Content, c.logger), nil
}

// parseMapping strips code fences and decodes the code→description object.
// Keys that are not plain digit strings are dropped.
func parseMapping(raw string, logger *slog.Logger) map[string]string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.Trim(raw, "`")
		raw = strings.TrimSpace(raw)
		if strings.HasPrefix(strings.ToLower(raw), "json") {
			raw = strings.TrimSpace(raw[4:])
		}
	}

	var mapping map[string]string
	if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
		if logger != nil {
			logger.Warn("classifier output is not valid JSON", "error", err)
		}
		return map[string]string{}
	}

	out := make(map[string]string, len(mapping))
	for code, desc := range mapping {
		if codeForm.MatchString(code) {
			out[code] = desc
		}
	}
	return out
}
