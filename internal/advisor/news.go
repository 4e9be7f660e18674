package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"campaign-advisor/internal/config"
	"campaign-advisor/internal/telemetry"
)

// ContextFetcher acquires recent industry signals from a NewsAPI-compatible
// endpoint. Acquisition is best effort: it never returns an error, because
// stale or missing context must not block advice generation. Failures
// degrade to a single explanatory item.
type ContextFetcher struct {
	apiKey   string
	baseURL  string
	query    string
	maxItems int
	client   *http.Client
	logger   *zap.Logger
}

// NewContextFetcher builds a fetcher from configuration.
func NewContextFetcher(cfg config.Config, logger *zap.Logger) *ContextFetcher {
	timeout := cfg.NewsTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	maxItems := cfg.NewsMaxItems
	if maxItems <= 0 {
		maxItems = 5
	}
	return &ContextFetcher{
		apiKey:   cfg.NewsAPIKey,
		baseURL:  cfg.NewsBaseURL,
		query:    cfg.NewsQuery,
		maxItems: maxItems,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type newsResponse struct {
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Content     string `json:"content"`
	} `json:"articles"`
}

// Fetch returns context items for prompt construction, always at least one.
func (f *ContextFetcher) Fetch(ctx context.Context) []ContextItem {
	if f.apiKey == "" {
		return []ContextItem{{Title: "no recent industry context available", Summary: ""}}
	}

	items, err := f.fetch(ctx)
	if err != nil {
		telemetry.AcquisitionFailures.Inc()
		f.logger.Warn("industry context acquisition failed", zap.Error(err))
		return []ContextItem{{Title: "context acquisition failed", Summary: err.Error()}}
	}
	if len(items) == 0 {
		return []ContextItem{{Title: "no recent industry context available", Summary: ""}}
	}
	return items
}

func (f *ContextFetcher) fetch(ctx context.Context) ([]ContextItem, error) {
	endpoint := fmt.Sprintf("%s/everything?q=%s&sortBy=publishedAt&apiKey=%s",
		f.baseURL, url.QueryEscape(f.query), url.QueryEscape(f.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch news: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news endpoint returned status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read news response: %w", err)
	}

	var parsed newsResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode news response: %w", err)
	}

	items := []ContextItem{}
	for _, art := range parsed.Articles {
		if len(items) >= f.maxItems {
			break
		}
		summary := art.Description
		if summary == "" {
			summary = art.Content
		}
		items = append(items, ContextItem{Title: art.Title, Summary: summary})
	}
	return items, nil
}
