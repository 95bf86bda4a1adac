package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"TenderRadar/internal/config"
)

func TestParseMappingPlainJSON(t *testing.T) {
	t.Parallel()

	mapping := parseMapping(`{"33696500": "Laboratory reagents", "45000000": "Construction work"}`, nil)
	require.Equal(t, map[string]string{
		"33696500": "Laboratory reagents",
		"45000000": "Construction work",
	}, mapping)
}

func TestParseMappingStripsCodeFences(t *testing.T) {
	t.Parallel()

	raw := "```json\n{\"33696500\": \"Laboratory reagents\"}\n```"
	mapping := parseMapping(raw, nil)
	require.Equal(t, map[string]string{"33696500": "Laboratory reagents"}, mapping)
}

func TestParseMappingDropsNonDigitKeys(t *testing.T) {
	t.Parallel()

	mapping := parseMapping(`{"33696500": "Laboratory reagents", "33696500-0": "dashed", "note": "ignore me"}`, nil)
	require.Equal(t, map[string]string{"33696500": "Laboratory reagents"}, mapping)
}

func TestParseMappingInvalidJSONYieldsEmptyMap(t *testing.T) {
	t.Parallel()

	require.Empty(t, parseMapping("I could not find any codes.", nil))
}

func TestClassify(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "gpt-4o-mini", payload.Model)
		require.Len(t, payload.Messages, 2)
		require.Equal(t, "organic wheat farming", payload.Messages[1].Content)

		_, _ = w.Write([]byte(`{
			"choices": [
				{"message": {"content": "{\"03111000\": \"Cereal seeds\"}"}}
			]
		}`))
	}))
	defer server.Close()

	c := NewClient(config.ClassifierConfig{
		Endpoint: server.URL,
		Model:    "gpt-4o-mini",
		APIKey:   "test-key",
	}, nil)

	mapping, err := c.Classify(context.Background(), "organic wheat farming")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"03111000": "Cereal seeds"}, mapping)
}

func TestClassifyAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "invalid key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewClient(config.ClassifierConfig{Endpoint: server.URL, Model: "gpt-4o-mini", APIKey: "bad"}, nil)
	_, err := c.Classify(context.Background(), "anything")
	require.Error(t, err)
}

func TestClassifyMisconfigured(t *testing.T) {
	t.Parallel()

	c := NewClient(config.ClassifierConfig{}, nil)
	_, err := c.Classify(context.Background(), "anything")
	require.Error(t, err)
}
