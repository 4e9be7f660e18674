package advisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"campaign-advisor/internal/config"
	"campaign-advisor/internal/models"
)

func testCampaign() models.Campaign {
	return models.Campaign{ID: 1, Name: "spring launch", Product: "sneakers", Objective: "conversions", Budget: 1000}
}

func chatServer(t *testing.T, reply string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Contains(t, r.Header.Get("Authorization"), "Bearer ")
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": reply}},
			},
		})
	}))
}

func TestAdviseNotConfiguredSentinel(t *testing.T) {
	g := NewGateway(config.Config{}, zap.NewNop())

	advice, err := g.Advise(context.Background(), testCampaign(), nil)
	require.NoError(t, err)
	assert.Equal(t, NotConfiguredText, advice.Text)
	assert.Empty(t, advice.Backend)
}

func TestAdvisePrimaryBackendWins(t *testing.T) {
	primary := chatServer(t, "raise the budget", http.StatusOK)
	defer primary.Close()
	secondary := chatServer(t, "should not be called", http.StatusOK)
	defer secondary.Close()

	cfg := config.Config{
		OpenAIAPIKey: "k1", OpenAIBaseURL: primary.URL, OpenAIModel: "gpt-4o-mini",
		DeepSeekAPIKey: "k2", DeepSeekBaseURL: secondary.URL, DeepSeekModel: "deepseek-chat",
		AdvisorTimeout: 2 * time.Second,
	}
	g := NewGateway(cfg, zap.NewNop())

	advice, err := g.Advise(context.Background(), testCampaign(), []ContextItem{{Title: "CPMs dropping", Summary: "cheaper reach"}})
	require.NoError(t, err)
	assert.Equal(t, "raise the budget", advice.Text)
	assert.Equal(t, "openai", advice.Backend)
}

func TestAdviseSecondaryWhenPrimaryUnconfigured(t *testing.T) {
	srv := chatServer(t, "shift spend to video", http.StatusOK)
	defer srv.Close()

	cfg := config.Config{
		DeepSeekAPIKey: "k2", DeepSeekBaseURL: srv.URL, DeepSeekModel: "deepseek-chat",
		AdvisorTimeout: 2 * time.Second,
	}
	g := NewGateway(cfg, zap.NewNop())

	advice, err := g.Advise(context.Background(), testCampaign(), nil)
	require.NoError(t, err)
	assert.Equal(t, "deepseek", advice.Backend)
}

func TestAdviseBackendFailureSurfaces(t *testing.T) {
	srv := chatServer(t, "", http.StatusInternalServerError)
	defer srv.Close()

	cfg := config.Config{
		OpenAIAPIKey: "k1", OpenAIBaseURL: srv.URL, OpenAIModel: "gpt-4o-mini",
		AdvisorTimeout: 2 * time.Second,
	}
	g := NewGateway(cfg, zap.NewNop())

	_, err := g.Advise(context.Background(), testCampaign(), nil)
	require.ErrorIs(t, err, models.ErrBackendFailure)
}

func TestAdviseCancelledContext(t *testing.T) {
	srv := chatServer(t, "too late", http.StatusOK)
	defer srv.Close()

	cfg := config.Config{
		OpenAIAPIKey: "k1", OpenAIBaseURL: srv.URL, OpenAIModel: "gpt-4o-mini",
		AdvisorTimeout: 2 * time.Second,
	}
	g := NewGateway(cfg, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Advise(ctx, testCampaign(), nil)
	require.ErrorIs(t, err, models.ErrBackendFailure)
}

func TestBuildPromptIncludesCampaignAndContext(t *testing.T) {
	prompt := buildPrompt(testCampaign(), []ContextItem{{Title: "CPMs dropping", Summary: "cheaper reach"}})
	assert.Contains(t, prompt, "spring launch")
	assert.Contains(t, prompt, "sneakers")
	assert.Contains(t, prompt, "1000.00")
	assert.Contains(t, prompt, "CPMs dropping: cheaper reach")
}

func TestContextFetcher(t *testing.T) {
	t.Run("no key yields placeholder item", func(t *testing.T) {
		f := NewContextFetcher(config.Config{}, zap.NewNop())
		items := f.Fetch(context.Background())
		require.Len(t, items, 1)
		assert.Equal(t, "no recent industry context available", items[0].Title)
	})

	t.Run("successful fetch maps articles", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/everything", r.URL.Path)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"articles": []map[string]any{
					{"title": "CPMs dropping", "description": "cheaper reach"},
					{"title": "video spend up", "description": "", "content": "longer cut"},
				},
			})
		}))
		defer srv.Close()

		f := NewContextFetcher(config.Config{NewsAPIKey: "k", NewsBaseURL: srv.URL, NewsQuery: "advertising", NewsMaxItems: 5}, zap.NewNop())
		items := f.Fetch(context.Background())
		require.Len(t, items, 2)
		assert.Equal(t, "CPMs dropping", items[0].Title)
		assert.Equal(t, "longer cut", items[1].Summary)
	})

	t.Run("failure degrades to explanatory item", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		f := NewContextFetcher(config.Config{NewsAPIKey: "k", NewsBaseURL: srv.URL}, zap.NewNop())
		items := f.Fetch(context.Background())
		require.Len(t, items, 1)
		assert.Equal(t, "context acquisition failed", items[0].Title)
		assert.Contains(t, items[0].Summary, "502")
	})

	t.Run("empty article list yields placeholder", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"articles": []any{}})
		}))
		defer srv.Close()

		f := NewContextFetcher(config.Config{NewsAPIKey: "k", NewsBaseURL: srv.URL}, zap.NewNop())
		items := f.Fetch(context.Background())
		require.Len(t, items, 1)
		assert.Equal(t, "no recent industry context available", items[0].Title)
	})
}
