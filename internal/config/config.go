package config

import (
	"os"
	"strconv"
	"strings"
)

// Azure OpenAI "on your data" API versions with distinct streaming shapes.
const (
	LegacyPreviewAPIVersion  = "2023-06-01-preview"
	DefaultPreviewAPIVersion = "2023-08-01-preview"
)

// Retrieval data source types accepted in DATASOURCE_TYPE.
const (
	DataSourceAzureSearch   = "AzureCognitiveSearch"
	DataSourceCosmosMongo   = "AzureCosmosDB"
	DataSourceElasticsearch = "Elasticsearch"
)

const defaultSystemMessage = "You are an AI assistant that helps people find information."

type Config struct {
	Port        string
	Environment string
	CORSOrigins string
	TablePrefix string
	DatabaseURL string
	Log         LogConfig
	StaticDir   string
	// Debug enables verbose outbound request logging
	Debug bool

	AuthEnabled        bool
	JWKSURL            string
	RateLimitPerMinute int

	OpenAI     OpenAIConfig
	DataSource DataSourceConfig
	Search     SearchConfig
	ACS        AzureSearchConfig
	Mongo      CosmosMongoConfig
	Elastic    ElasticsearchConfig

	EnableFeedback bool
	Blob           BlobConfig
	UI             UIConfig

	GraphBaseURL string
}

// OpenAIConfig configures the completion endpoint and sampling parameters.
// Sampling values are process-wide; clients cannot override them.
type OpenAIConfig struct {
	Resource          string
	Endpoint          string
	Model             string
	Key               string
	Temperature       float32
	TopP              float32
	MaxTokens         int
	StopSequence      string
	SystemMessage     string
	PreviewAPIVersion string
	Stream            bool
	EmbeddingEndpoint string
	EmbeddingKey      string
	EmbeddingName     string
	// Deployments lists selectable deployments; empty means use the catalog.
	Deployments []string
}

// BaseURL returns the resource endpoint with a trailing slash.
func (c OpenAIConfig) BaseURL() string {
	base := c.Endpoint
	if base == "" && c.Resource != "" {
		base = "https://" + c.Resource + ".openai.azure.com/"
	}
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

// StopSequences splits the configured stop value on "|". Empty yields nil.
func (c OpenAIConfig) StopSequences() []string {
	if c.StopSequence == "" {
		return nil
	}
	return strings.Split(c.StopSequence, "|")
}

// IsLegacyAPI reports whether the negotiated API version uses the deprecated stream shape.
func (c OpenAIConfig) IsLegacyAPI() bool {
	return c.PreviewAPIVersion == LegacyPreviewAPIVersion
}

// DataSourceConfig records which retrieval backend the operator selected.
type DataSourceConfig struct {
	// Type is empty when DATASOURCE_TYPE was not set.
	Type string
}

// SearchConfig holds retrieval parameters shared by all providers.
type SearchConfig struct {
	TopK                  int
	Strictness            int
	EnableInDomain        bool
	PermittedGroupsColumn string
}

// AzureSearchConfig configures the Azure Cognitive Search data source.
type AzureSearchConfig struct {
	Service              string
	Index                string
	Key                  string
	UseSemanticSearch    bool
	SemanticSearchConfig string
	QueryType            string
	ContentColumns       string
	FilenameColumn       string
	TitleColumn          string
	URLColumn            string
	VectorColumns        string
}

// Complete reports whether every required credential is present.
func (c AzureSearchConfig) Complete() bool {
	return c.Service != "" && c.Index != "" && c.Key != ""
}

// Partial reports whether some but not all required credentials are present.
func (c AzureSearchConfig) Partial() bool {
	return !c.Complete() && (c.Service != "" || c.Index != "" || c.Key != "")
}

// CosmosMongoConfig configures the Azure Cosmos DB Mongo vCore data source.
type CosmosMongoConfig struct {
	ConnectionString string
	Database         string
	Container        string
	Index            string
	ContentColumns   string
	FilenameColumn   string
	TitleColumn      string
	URLColumn        string
	VectorColumns    string
}

// Complete reports whether every required credential is present.
func (c CosmosMongoConfig) Complete() bool {
	return c.ConnectionString != "" && c.Database != "" && c.Container != "" && c.Index != ""
}

// Partial reports whether some but not all required credentials are present.
func (c CosmosMongoConfig) Partial() bool {
	return !c.Complete() && (c.ConnectionString != "" || c.Database != "" || c.Container != "" || c.Index != "")
}

// ElasticsearchConfig configures the Elasticsearch data source.
type ElasticsearchConfig struct {
	Endpoint         string
	EncodedAPIKey    string
	Index            string
	QueryType        string
	ContentColumns   string
	FilenameColumn   string
	TitleColumn      string
	URLColumn        string
	VectorColumns    string
	EmbeddingModelID string
}

// Complete reports whether every required credential is present.
func (c ElasticsearchConfig) Complete() bool {
	return c.Endpoint != "" && c.EncodedAPIKey != "" && c.Index != ""
}

// Partial reports whether some but not all required credentials are present.
func (c ElasticsearchConfig) Partial() bool {
	return !c.Complete() && (c.Endpoint != "" || c.EncodedAPIKey != "" || c.Index != "")
}

// BlobConfig configures attachment storage. An empty Bucket disables uploads.
type BlobConfig struct {
	Bucket            string
	CredentialsFile   string
	SignedURLTTLHours int
}

// UIConfig holds branding overrides for the frontend settings document.
// Empty values fall back to the embedded catalog defaults.
type UIConfig struct {
	Title           string
	Logo            string
	ChatLogo        string
	ChatTitle       string
	ChatDescription string
	ShowShareButton bool
	HeaderTitle     string
	PageTabTitle    string
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: env,
		CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:5173"),
		TablePrefix: getTablePrefix(env),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Log: LogConfig{
			Dir:      getEnv("LOG_DIR", ""),
			MaxFiles: getInt("LOG_MAX_FILES", 10),
		},
		StaticDir:          getEnv("STATIC_DIR", ""),
		Debug:              getBool("DEBUG", getDefaultDebug(env)),
		AuthEnabled:        getBool("AUTH_ENABLED", true),
		JWKSURL:            getEnv("JWKS_URL", ""),
		RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 0),
		OpenAI: OpenAIConfig{
			Resource:          getEnv("AZURE_OPENAI_RESOURCE", ""),
			Endpoint:          getEnv("AZURE_OPENAI_ENDPOINT", ""),
			Model:             getEnv("AZURE_OPENAI_MODEL", ""),
			Key:               getEnv("AZURE_OPENAI_KEY", ""),
			Temperature:       getFloat("AZURE_OPENAI_TEMPERATURE", 0),
			TopP:              getFloat("AZURE_OPENAI_TOP_P", 1.0),
			MaxTokens:         getInt("AZURE_OPENAI_MAX_TOKENS", 1000),
			StopSequence:      getEnv("AZURE_OPENAI_STOP_SEQUENCE", ""),
			SystemMessage:     getEnv("AZURE_OPENAI_SYSTEM_MESSAGE", defaultSystemMessage),
			PreviewAPIVersion: getEnv("AZURE_OPENAI_PREVIEW_API_VERSION", DefaultPreviewAPIVersion),
			Stream:            getBool("AZURE_OPENAI_STREAM", true),
			EmbeddingEndpoint: getEnv("AZURE_OPENAI_EMBEDDING_ENDPOINT", ""),
			EmbeddingKey:      getEnv("AZURE_OPENAI_EMBEDDING_KEY", ""),
			EmbeddingName:     getEnv("AZURE_OPENAI_EMBEDDING_NAME", ""),
			Deployments:       getList("AZURE_OPENAI_DEPLOYMENTS"),
		},
		DataSource: DataSourceConfig{
			Type: getEnv("DATASOURCE_TYPE", ""),
		},
		Search: SearchConfig{
			TopK:                  getInt("SEARCH_TOP_K", 5),
			Strictness:            getInt("SEARCH_STRICTNESS", 3),
			EnableInDomain:        getBool("SEARCH_ENABLE_IN_DOMAIN", true),
			PermittedGroupsColumn: getEnv("AZURE_SEARCH_PERMITTED_GROUPS_COLUMN", ""),
		},
		ACS: AzureSearchConfig{
			Service:              getEnv("AZURE_SEARCH_SERVICE", ""),
			Index:                getEnv("AZURE_SEARCH_INDEX", ""),
			Key:                  getEnv("AZURE_SEARCH_KEY", ""),
			UseSemanticSearch:    getBool("AZURE_SEARCH_USE_SEMANTIC_SEARCH", false),
			SemanticSearchConfig: getEnv("AZURE_SEARCH_SEMANTIC_SEARCH_CONFIG", "default"),
			QueryType:            getEnv("AZURE_SEARCH_QUERY_TYPE", ""),
			ContentColumns:       getEnv("AZURE_SEARCH_CONTENT_COLUMNS", ""),
			FilenameColumn:       getEnv("AZURE_SEARCH_FILENAME_COLUMN", ""),
			TitleColumn:          getEnv("AZURE_SEARCH_TITLE_COLUMN", ""),
			URLColumn:            getEnv("AZURE_SEARCH_URL_COLUMN", ""),
			VectorColumns:        getEnv("AZURE_SEARCH_VECTOR_COLUMNS", ""),
		},
		Mongo: CosmosMongoConfig{
			ConnectionString: getEnv("AZURE_COSMOSDB_MONGO_VCORE_CONNECTION_STRING", ""),
			Database:         getEnv("AZURE_COSMOSDB_MONGO_VCORE_DATABASE", ""),
			Container:        getEnv("AZURE_COSMOSDB_MONGO_VCORE_CONTAINER", ""),
			Index:            getEnv("AZURE_COSMOSDB_MONGO_VCORE_INDEX", ""),
			ContentColumns:   getEnv("AZURE_COSMOSDB_MONGO_VCORE_CONTENT_COLUMNS", ""),
			FilenameColumn:   getEnv("AZURE_COSMOSDB_MONGO_VCORE_FILENAME_COLUMN", ""),
			TitleColumn:      getEnv("AZURE_COSMOSDB_MONGO_VCORE_TITLE_COLUMN", ""),
			URLColumn:        getEnv("AZURE_COSMOSDB_MONGO_VCORE_URL_COLUMN", ""),
			VectorColumns:    getEnv("AZURE_COSMOSDB_MONGO_VCORE_VECTOR_COLUMNS", ""),
		},
		Elastic: ElasticsearchConfig{
			Endpoint:         getEnv("ELASTICSEARCH_ENDPOINT", ""),
			EncodedAPIKey:    getEnv("ELASTICSEARCH_ENCODED_API_KEY", ""),
			Index:            getEnv("ELASTICSEARCH_INDEX", ""),
			QueryType:        getEnv("ELASTICSEARCH_QUERY_TYPE", "simple"),
			ContentColumns:   getEnv("ELASTICSEARCH_CONTENT_COLUMNS", ""),
			FilenameColumn:   getEnv("ELASTICSEARCH_FILENAME_COLUMN", ""),
			TitleColumn:      getEnv("ELASTICSEARCH_TITLE_COLUMN", ""),
			URLColumn:        getEnv("ELASTICSEARCH_URL_COLUMN", ""),
			VectorColumns:    getEnv("ELASTICSEARCH_VECTOR_COLUMNS", ""),
			EmbeddingModelID: getEnv("ELASTICSEARCH_EMBEDDING_MODEL_ID", ""),
		},
		EnableFeedback: getBool("AZURE_COSMOSDB_ENABLE_FEEDBACK", false),
		Blob: BlobConfig{
			Bucket:            getEnv("BLOB_BUCKET", ""),
			CredentialsFile:   getEnv("BLOB_CREDENTIALS_FILE", ""),
			SignedURLTTLHours: getInt("BLOB_SIGNED_URL_TTL_HOURS", 24),
		},
		UI: UIConfig{
			Title:           getEnv("UI_TITLE", ""),
			Logo:            getEnv("UI_LOGO", ""),
			ChatLogo:        getEnv("UI_CHAT_LOGO", ""),
			ChatTitle:       getEnv("UI_CHAT_TITLE", ""),
			ChatDescription: getEnv("UI_CHAT_DESCRIPTION", ""),
			ShowShareButton: getBool("UI_SHOW_SHARE_BUTTON", true),
			HeaderTitle:     getEnv("HEADER_TITLE", ""),
			PageTabTitle:    getEnv("PAGE_TAB_TITLE", ""),
		},
		GraphBaseURL: getEnv("GRAPH_BASE_URL", "https://graph.microsoft.com"),
	}
}

// HistoryEnabled reports whether a history database is configured.
func (c *Config) HistoryEnabled() bool {
	return c.DatabaseURL != ""
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) bool {
	return env != "prod"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBool accepts "true"/"false" in any case; anything else falls back to the default.
func getBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	switch value {
	case "true":
		return true
	case "false":
		return false
	default:
		return defaultValue
	}
}

func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return n
}

func getFloat(key string, defaultValue float32) float32 {
	f, err := strconv.ParseFloat(os.Getenv(key), 32)
	if err != nil {
		return defaultValue
	}
	return float32(f)
}

// getList splits a comma separated value, dropping blanks.
func getList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
