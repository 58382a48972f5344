package dispatch

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"chatrelay/internal/config"
	"chatrelay/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func baseConfig() *config.Config {
	return &config.Config{
		OpenAI: config.OpenAIConfig{
			Resource:          "contoso",
			Key:               "secret",
			Model:             "gpt-35-turbo",
			PreviewAPIVersion: config.DefaultPreviewAPIVersion,
			SystemMessage:     "be helpful",
			Temperature:       0,
			TopP:              1,
			MaxTokens:         1000,
		},
		Search: config.SearchConfig{TopK: 5, Strictness: 3, EnableInDomain: true},
	}
}

func withACS(cfg *config.Config) *config.Config {
	cfg.ACS = config.AzureSearchConfig{Service: "search", Index: "docs", Key: "k", SemanticSearchConfig: "default"}
	return cfg
}

func withMongo(cfg *config.Config) *config.Config {
	cfg.Mongo = config.CosmosMongoConfig{ConnectionString: "mongodb://x", Database: "db", Container: "c", Index: "i"}
	return cfg
}

func TestResolveRoute(t *testing.T) {
	tests := []struct {
		name        string
		cfg         func() *config.Config
		wantBackend Backend
		wantShape   Shape
		wantErr     bool
	}{
		{
			name:        "no credentials is plain buffered",
			cfg:         baseConfig,
			wantBackend: BackendPlain,
			wantShape:   ShapeBuffered,
		},
		{
			name: "streaming flag applies to plain",
			cfg: func() *config.Config {
				c := baseConfig()
				c.OpenAI.Stream = true
				return c
			},
			wantBackend: BackendPlain,
			wantShape:   ShapeStreamCurrent,
		},
		{
			name:        "complete search credentials",
			cfg:         func() *config.Config { return withACS(baseConfig()) },
			wantBackend: BackendAzureSearch,
			wantShape:   ShapeBuffered,
		},
		{
			name: "partial search credentials fall back to plain",
			cfg: func() *config.Config {
				c := baseConfig()
				c.ACS.Service = "search"
				return c
			},
			wantBackend: BackendPlain,
			wantShape:   ShapeBuffered,
		},
		{
			name: "legacy version only affects retrieval streams",
			cfg: func() *config.Config {
				c := withMongo(baseConfig())
				c.OpenAI.Stream = true
				c.OpenAI.PreviewAPIVersion = config.LegacyPreviewAPIVersion
				return c
			},
			wantBackend: BackendCosmosMongo,
			wantShape:   ShapeStreamLegacy,
		},
		{
			name: "two complete sets without selection",
			cfg: func() *config.Config {
				return withMongo(withACS(baseConfig()))
			},
			wantErr: true,
		},
		{
			name: "selection disambiguates",
			cfg: func() *config.Config {
				c := withMongo(withACS(baseConfig()))
				c.DataSource.Type = config.DataSourceCosmosMongo
				return c
			},
			wantBackend: BackendCosmosMongo,
			wantShape:   ShapeBuffered,
		},
		{
			name: "selected type with incomplete credentials",
			cfg: func() *config.Config {
				c := baseConfig()
				c.DataSource.Type = config.DataSourceElasticsearch
				c.Elastic.Endpoint = "https://es"
				return c
			},
			wantErr: true,
		},
		{
			name: "unknown selection",
			cfg: func() *config.Config {
				c := baseConfig()
				c.DataSource.Type = "Pinecone"
				return c
			},
			wantErr: true,
		},
		{
			name: "missing completion key",
			cfg: func() *config.Config {
				c := baseConfig()
				c.OpenAI.Key = ""
				return c
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route, err := ResolveRoute(tt.cfg(), discardLogger())
			if tt.wantErr {
				if !errors.Is(err, domain.ErrConfiguration) {
					t.Fatalf("error = %v, want ErrConfiguration", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveRoute() error = %v", err)
			}
			if route.Backend != tt.wantBackend {
				t.Errorf("backend = %s, want %s", route.Backend, tt.wantBackend)
			}
			if route.Shape() != tt.wantShape {
				t.Errorf("shape = %s, want %s", route.Shape(), tt.wantShape)
			}
		})
	}
}

func TestDispatcher_ShouldUseRetrieval(t *testing.T) {
	if New(baseConfig(), nil, discardLogger()).ShouldUseRetrieval() {
		t.Error("plain config reported retrieval")
	}
	if !New(withACS(baseConfig()), nil, discardLogger()).ShouldUseRetrieval() {
		t.Error("search config did not report retrieval")
	}
	if New(withMongo(withACS(baseConfig())), nil, discardLogger()).ShouldUseRetrieval() {
		t.Error("ambiguous config reported retrieval")
	}
}
