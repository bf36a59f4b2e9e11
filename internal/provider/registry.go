package provider

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/equity-snapshot/pkg/alphavantage"
	"github.com/sells-group/equity-snapshot/pkg/anthropic"
	"github.com/sells-group/equity-snapshot/pkg/edgar"
	"github.com/sells-group/equity-snapshot/pkg/finnhub"
	"github.com/sells-group/equity-snapshot/pkg/openaiembed"
)

// Config selects and authenticates the evidence and model providers. A
// provider is enabled by supplying its credential; Synthetic turns on
// fixture fallbacks for anything left unconfigured.
type Config struct {
	FinnhubAPIKey      string `yaml:"finnhub_api_key" mapstructure:"finnhub_api_key"`
	AlphaVantageAPIKey string `yaml:"alphavantage_api_key" mapstructure:"alphavantage_api_key"`
	EdgarUserAgent     string `yaml:"edgar_user_agent" mapstructure:"edgar_user_agent"`
	AnthropicAPIKey    string `yaml:"anthropic_api_key" mapstructure:"anthropic_api_key"`
	AnthropicModel     string `yaml:"anthropic_model" mapstructure:"anthropic_model"`
	AnthropicMaxTokens int64  `yaml:"anthropic_max_tokens" mapstructure:"anthropic_max_tokens"`
	OpenAIAPIKey       string `yaml:"openai_api_key" mapstructure:"openai_api_key"`
	EmbeddingModel     string `yaml:"embedding_model" mapstructure:"embedding_model"`
	Synthetic          bool   `yaml:"synthetic" mapstructure:"synthetic"`
}

// Registry holds one wired implementation per port.
type Registry struct {
	News     NewsProvider
	Metrics  MetricsProvider
	Filings  FilingsProvider
	LLM      LLM
	Embedder Embedder
}

// NewRegistry wires providers from configuration. Every port must end up
// with an implementation; with Synthetic disabled, missing credentials are a
// construction-time error.
func NewRegistry(cfg Config) (*Registry, error) {
	r := &Registry{}
	fixture := NewSynthetic()

	var newsProviders []NewsProvider
	if cfg.FinnhubAPIKey != "" {
		fh := finnhub.NewClient(cfg.FinnhubAPIKey)
		newsProviders = append(newsProviders, NewFinnhubNews(fh))
		r.Metrics = NewFinnhubMetrics(fh)
	}
	if cfg.AlphaVantageAPIKey != "" {
		av := alphavantage.NewClient(cfg.AlphaVantageAPIKey)
		newsProviders = append(newsProviders, NewAlphaVantageNews(av))
		if r.Metrics == nil {
			r.Metrics = NewAlphaVantageMetrics(av)
		}
	}
	if len(newsProviders) == 0 {
		if !cfg.Synthetic {
			return nil, eris.New("provider: no news provider configured")
		}
		newsProviders = append(newsProviders, fixture)
	}
	r.News = NewMultiNews(newsProviders...)

	if r.Metrics == nil {
		if !cfg.Synthetic {
			return nil, eris.New("provider: no metrics provider configured")
		}
		r.Metrics = fixture
	}

	if cfg.EdgarUserAgent != "" {
		r.Filings = NewEdgarFilings(edgar.NewClient(cfg.EdgarUserAgent))
	} else if cfg.Synthetic {
		r.Filings = fixture
	} else {
		return nil, eris.New("provider: no filings provider configured")
	}

	if cfg.AnthropicAPIKey != "" {
		model := cfg.AnthropicModel
		if model == "" {
			model = "claude-sonnet-4-5-20250929"
		}
		r.LLM = NewAnthropicLLM(anthropic.NewClient(cfg.AnthropicAPIKey), model, cfg.AnthropicMaxTokens)
	} else if cfg.Synthetic {
		r.LLM = NewStaticLLM()
	} else {
		return nil, eris.New("provider: no LLM configured")
	}

	if cfg.OpenAIAPIKey != "" {
		var opts []openaiembed.Option
		if cfg.EmbeddingModel != "" {
			opts = append(opts, openaiembed.WithModel(cfg.EmbeddingModel))
		}
		r.Embedder = NewOpenAIEmbedder(openaiembed.NewClient(cfg.OpenAIAPIKey, opts...))
	} else if cfg.Synthetic {
		r.Embedder = NewStaticEmbedder()
	} else {
		return nil, eris.New("provider: no embedder configured")
	}

	zap.L().Info("provider: registry wired",
		zap.String("news", r.News.Name()),
		zap.String("metrics", r.Metrics.Name()),
		zap.String("filings", r.Filings.Name()),
		zap.Bool("synthetic_fallbacks", cfg.Synthetic))

	return r, nil
}
