package dispatch

import (
	"strings"

	"chatrelay/internal/config"
)

// DataSource is the provider descriptor nested in a retrieval request body.
type DataSource struct {
	Type       string           `json:"type"`
	Parameters DataSourceParams `json:"parameters"`
}

// FieldsMapping maps index columns onto the roles the provider understands.
type FieldsMapping struct {
	ContentFields []string `json:"contentFields"`
	TitleField    *string  `json:"titleField"`
	URLField      *string  `json:"urlField"`
	FilepathField *string  `json:"filepathField"`
	VectorFields  []string `json:"vectorFields"`
}

// DataSourceParams is the union of parameters across the three providers.
// Provider specific fields are omitted when empty.
type DataSourceParams struct {
	Endpoint              string        `json:"endpoint,omitempty"`
	Key                   string        `json:"key,omitempty"`
	EncodedAPIKey         string        `json:"encodedApiKey,omitempty"`
	ConnectionString      string        `json:"connectionString,omitempty"`
	IndexName             string        `json:"indexName"`
	DatabaseName          string        `json:"databaseName,omitempty"`
	ContainerName         string        `json:"containerName,omitempty"`
	FieldsMapping         FieldsMapping `json:"fieldsMapping"`
	InScope               bool          `json:"inScope"`
	TopNDocuments         int           `json:"topNDocuments"`
	QueryType             string        `json:"queryType"`
	SemanticConfiguration *string       `json:"semanticConfiguration,omitempty"`
	RoleInformation       string        `json:"roleInformation"`
	Filter                *string       `json:"filter,omitempty"`
	Strictness            int           `json:"strictness"`
	EmbeddingDeployment   string        `json:"embeddingDeploymentName,omitempty"`
	EmbeddingEndpoint     string        `json:"embeddingEndpoint,omitempty"`
	EmbeddingKey          string        `json:"embeddingKey,omitempty"`
	EmbeddingModelID      string        `json:"embeddingModelId,omitempty"`
}

// ParseMultiColumns splits a column list on "|" when present, otherwise on ",".
func ParseMultiColumns(columns string) []string {
	if columns == "" {
		return []string{}
	}
	if strings.Contains(columns, "|") {
		return strings.Split(columns, "|")
	}
	return strings.Split(columns, ",")
}

// PermittedGroupsFilter builds the Azure Search filter restricting results to the
// documents whose column lists one of groupIDs.
func PermittedGroupsFilter(column string, groupIDs []string) string {
	return column + "/any(g:search.in(g, '" + strings.Join(groupIDs, ", ") + "'))"
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func fields(content, title, url, filename, vector string) FieldsMapping {
	return FieldsMapping{
		ContentFields: ParseMultiColumns(content),
		TitleField:    optional(title),
		URLField:      optional(url),
		FilepathField: optional(filename),
		VectorFields:  ParseMultiColumns(vector),
	}
}

// azureSearchQueryType honors an explicit type, then semantic search, then simple.
func azureSearchQueryType(acs config.AzureSearchConfig) string {
	switch {
	case acs.QueryType != "":
		return acs.QueryType
	case acs.UseSemanticSearch && acs.SemanticSearchConfig != "":
		return "semantic"
	default:
		return "simple"
	}
}

// buildDataSource maps configuration onto the descriptor for backend.
// filter is only used by Azure Search.
func buildDataSource(backend Backend, cfg *config.Config, filter *string) DataSource {
	var ds DataSource
	search := cfg.Search

	switch backend {
	case BackendAzureSearch:
		acs := cfg.ACS
		ds = DataSource{
			Type: config.DataSourceAzureSearch,
			Parameters: DataSourceParams{
				Endpoint:              "https://" + acs.Service + ".search.windows.net",
				Key:                   acs.Key,
				IndexName:             acs.Index,
				FieldsMapping:         fields(acs.ContentColumns, acs.TitleColumn, acs.URLColumn, acs.FilenameColumn, acs.VectorColumns),
				InScope:               search.EnableInDomain,
				TopNDocuments:         search.TopK,
				QueryType:             azureSearchQueryType(acs),
				SemanticConfiguration: &acs.SemanticSearchConfig,
				RoleInformation:       cfg.OpenAI.SystemMessage,
				Filter:                filter,
				Strictness:            search.Strictness,
			},
		}
	case BackendCosmosMongo:
		mongo := cfg.Mongo
		ds = DataSource{
			Type: config.DataSourceCosmosMongo,
			Parameters: DataSourceParams{
				ConnectionString: mongo.ConnectionString,
				IndexName:        mongo.Index,
				DatabaseName:     mongo.Database,
				ContainerName:    mongo.Container,
				FieldsMapping:    fields(mongo.ContentColumns, mongo.TitleColumn, mongo.URLColumn, mongo.FilenameColumn, mongo.VectorColumns),
				InScope:          search.EnableInDomain,
				TopNDocuments:    search.TopK,
				Strictness:       search.Strictness,
				QueryType:        "vector",
				RoleInformation:  cfg.OpenAI.SystemMessage,
			},
		}
	case BackendElasticsearch:
		es := cfg.Elastic
		ds = DataSource{
			Type: config.DataSourceElasticsearch,
			Parameters: DataSourceParams{
				Endpoint:         es.Endpoint,
				EncodedAPIKey:    es.EncodedAPIKey,
				IndexName:        es.Index,
				FieldsMapping:    fields(es.ContentColumns, es.TitleColumn, es.URLColumn, es.FilenameColumn, es.VectorColumns),
				InScope:          search.EnableInDomain,
				TopNDocuments:    search.TopK,
				QueryType:        es.QueryType,
				RoleInformation:  cfg.OpenAI.SystemMessage,
				Strictness:       search.Strictness,
				EmbeddingModelID: es.EmbeddingModelID,
			},
		}
	}

	if strings.Contains(strings.ToLower(ds.Parameters.QueryType), "vector") {
		if cfg.OpenAI.EmbeddingName != "" {
			ds.Parameters.EmbeddingDeployment = cfg.OpenAI.EmbeddingName
		} else {
			ds.Parameters.EmbeddingEndpoint = cfg.OpenAI.EmbeddingEndpoint
			ds.Parameters.EmbeddingKey = cfg.OpenAI.EmbeddingKey
		}
	}
	return ds
}
