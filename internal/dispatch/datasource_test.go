package dispatch

import (
	"encoding/json"
	"reflect"
	"testing"

	"chatrelay/internal/config"
)

func TestParseMultiColumns(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"content", []string{"content"}},
		{"a,b", []string{"a", "b"}},
		{"a|b,c", []string{"a", "b,c"}},
	}
	for _, tt := range tests {
		if got := ParseMultiColumns(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseMultiColumns(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPermittedGroupsFilter(t *testing.T) {
	got := PermittedGroupsFilter("group_ids", []string{"g1", "g2"})
	want := "group_ids/any(g:search.in(g, 'g1, g2'))"
	if got != want {
		t.Errorf("filter = %q, want %q", got, want)
	}
	if got := PermittedGroupsFilter("group_ids", nil); got != "group_ids/any(g:search.in(g, ''))" {
		t.Errorf("empty filter = %q", got)
	}
}

func TestBuildDataSource_AzureSearchQueryType(t *testing.T) {
	tests := []struct {
		name string
		acs  config.AzureSearchConfig
		want string
	}{
		{"default simple", config.AzureSearchConfig{}, "simple"},
		{"semantic when enabled", config.AzureSearchConfig{UseSemanticSearch: true, SemanticSearchConfig: "cfg"}, "semantic"},
		{"explicit wins", config.AzureSearchConfig{QueryType: "vectorSimpleHybrid", UseSemanticSearch: true, SemanticSearchConfig: "cfg"}, "vectorSimpleHybrid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.ACS = tt.acs
			ds := buildDataSource(BackendAzureSearch, cfg, nil)
			if ds.Parameters.QueryType != tt.want {
				t.Errorf("queryType = %q, want %q", ds.Parameters.QueryType, tt.want)
			}
		})
	}
}

func TestBuildDataSource_VectorEmbeddings(t *testing.T) {
	cfg := withMongo(baseConfig())
	cfg.OpenAI.EmbeddingEndpoint = "https://embed"
	cfg.OpenAI.EmbeddingKey = "ek"

	ds := buildDataSource(BackendCosmosMongo, cfg, nil)
	if ds.Type != config.DataSourceCosmosMongo || ds.Parameters.QueryType != "vector" {
		t.Fatalf("descriptor = %+v", ds)
	}
	if ds.Parameters.EmbeddingEndpoint != "https://embed" || ds.Parameters.EmbeddingKey != "ek" {
		t.Errorf("embedding endpoint/key not set: %+v", ds.Parameters)
	}

	cfg.OpenAI.EmbeddingName = "ada"
	ds = buildDataSource(BackendCosmosMongo, cfg, nil)
	if ds.Parameters.EmbeddingDeployment != "ada" || ds.Parameters.EmbeddingKey != "" {
		t.Errorf("deployment name should replace endpoint/key: %+v", ds.Parameters)
	}
}

func TestBuildDataSource_AzureSearchWire(t *testing.T) {
	cfg := withACS(baseConfig())
	cfg.ACS.ContentColumns = "content|chunk"
	cfg.ACS.TitleColumn = "title"
	filter := "groups/any(g:search.in(g, 'a'))"

	raw, err := json.Marshal(buildDataSource(BackendAzureSearch, cfg, &filter))
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Type       string         `json:"type"`
		Parameters map[string]any `json:"parameters"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	p := got.Parameters
	if got.Type != "AzureCognitiveSearch" {
		t.Errorf("type = %q", got.Type)
	}
	if p["endpoint"] != "https://search.search.windows.net" || p["indexName"] != "docs" || p["filter"] != filter {
		t.Errorf("parameters = %v", p)
	}
	mapping := p["fieldsMapping"].(map[string]any)
	if mapping["titleField"] != "title" || mapping["urlField"] != nil {
		t.Errorf("fieldsMapping = %v", mapping)
	}
	if _, ok := p["connectionString"]; ok {
		t.Error("search descriptor leaked cosmos fields")
	}
}
