package main

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/teaterarkiv/archive-cli/internal/classify"
	"github.com/teaterarkiv/archive-cli/internal/grouping"
	"github.com/teaterarkiv/archive-cli/internal/match"
	"github.com/teaterarkiv/archive-cli/internal/pipeline"
	"github.com/teaterarkiv/archive-cli/internal/resilience"
	"github.com/teaterarkiv/archive-cli/pkg/anthropic"
	"github.com/teaterarkiv/archive-cli/pkg/nrk"
	"github.com/teaterarkiv/archive-cli/pkg/sceneweb"
	"github.com/teaterarkiv/archive-cli/pkg/wikidata"
)

func retryConfig() resilience.RetryConfig {
	return resilience.FromConfig(cfg.Fetch.MaxAttempts, cfg.Fetch.InitialBackoff)
}

func fetchHTTPClient() *http.Client {
	return &http.Client{Timeout: cfg.Fetch.Timeout}
}

func newNRK() nrk.Client {
	return nrk.NewClient(
		nrk.WithBaseURL(cfg.NRK.BaseURL),
		nrk.WithDelay(cfg.Fetch.Delay),
		nrk.WithUserAgent(cfg.Fetch.UserAgent),
		nrk.WithHTTPClient(fetchHTTPClient()),
	)
}

func newWikidata() (wikidata.Client, error) {
	return wikidata.NewClient(
		wikidata.WithBaseURL(cfg.Wikidata.BaseURL),
		wikidata.WithDelay(cfg.Fetch.Delay),
		wikidata.WithUserAgent(cfg.Fetch.UserAgent),
		wikidata.WithCacheSize(cfg.Wikidata.CacheSize),
		wikidata.WithHTTPClient(fetchHTTPClient()),
	)
}

func newSceneweb() sceneweb.Client {
	return sceneweb.NewClient(
		sceneweb.WithBaseURL(cfg.Sceneweb.BaseURL),
		sceneweb.WithDelay(cfg.Fetch.Delay),
		sceneweb.WithUserAgent(cfg.Fetch.UserAgent),
		sceneweb.WithHTTPClient(fetchHTTPClient()),
	)
}

// newOracle returns the gated playwright oracle, or nil when no API key is
// configured.
func newOracle() classify.Oracle {
	if cfg.Anthropic.Key == "" {
		zap.L().Warn("anthropic.key not set, playwright suggestions disabled")
		return nil
	}
	client := anthropic.NewClient(cfg.Anthropic.Key)
	return classify.Gated{
		Oracle: classify.NewAnthropicOracle(client, cfg.Anthropic.Model, classify.PlaywrightPrompt),
		Min:    cfg.Anthropic.MinConfidence,
	}
}

func matchConfig() match.Config {
	return match.Config{
		ContainmentFloor: cfg.Matching.ContainmentFloor,
		ContextBoost:     cfg.Matching.ContextBoost,
	}
}

func pipelineConfig() pipeline.Config {
	return pipeline.Config{
		Grouping:          grouping.Config{UmbrellaSeries: cfg.Grouping.UmbrellaSeries},
		AutoDeleteOrphans: cfg.Orphans.AutoDelete,
	}
}
