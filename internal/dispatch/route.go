package dispatch

import (
	"fmt"
	"log/slog"
	"slices"

	"chatrelay/internal/config"
	"chatrelay/internal/domain"
	"chatrelay/internal/relay"
)

// Backend is the completion backend a turn is sent to.
type Backend int

const (
	BackendPlain Backend = iota
	BackendAzureSearch
	BackendCosmosMongo
	BackendElasticsearch
)

func (b Backend) String() string {
	switch b {
	case BackendPlain:
		return "plain"
	case BackendAzureSearch:
		return "azure_search"
	case BackendCosmosMongo:
		return "cosmos_mongo"
	case BackendElasticsearch:
		return "elasticsearch"
	default:
		return fmt.Sprintf("backend(%d)", int(b))
	}
}

// Delivery is how the answer travels to the client.
type Delivery int

const (
	DeliveryBuffered Delivery = iota
	DeliveryStreamed
)

func (d Delivery) String() string {
	if d == DeliveryStreamed {
		return "streamed"
	}
	return "buffered"
}

// Shape is the upstream wire shape the relay has to normalize.
type Shape int

const (
	ShapeBuffered Shape = iota
	ShapeStreamCurrent
	// ShapeStreamLegacy is the deprecated 2023-06-01-preview stream, forwarded raw.
	ShapeStreamLegacy
)

func (s Shape) String() string {
	switch s {
	case ShapeStreamCurrent:
		return "stream_current"
	case ShapeStreamLegacy:
		return "stream_legacy"
	default:
		return "buffered"
	}
}

// Route is the static dispatch decision for every turn of the process.
type Route struct {
	Backend  Backend
	Delivery Delivery
	// Legacy marks the deprecated API version. Only retrieval backends honor it.
	Legacy bool
}

// Retrieval reports whether the route uses a retrieval data source.
func (r Route) Retrieval() bool {
	return r.Backend != BackendPlain
}

// Shape returns the upstream wire shape of the route.
func (r Route) Shape() Shape {
	switch {
	case r.Delivery == DeliveryBuffered:
		return ShapeBuffered
	case r.Legacy:
		return ShapeStreamLegacy
	default:
		return ShapeStreamCurrent
	}
}

// Decoder returns the normalizer for streamed retrieval lines.
func (r Route) Decoder() relay.Decoder {
	if r.Shape() == ShapeStreamLegacy {
		return relay.NormalizeLegacy
	}
	return relay.NormalizeStreamed
}

func (r Route) String() string {
	return r.Backend.String() + "/" + r.Shape().String()
}

// ResolveRoute derives the route from configuration.
//
// Retrieval is used iff exactly one data source is selected and its credentials are
// complete. DATASOURCE_TYPE picks among several complete sets; naming a type whose
// credentials are incomplete is a configuration error.
func ResolveRoute(cfg *config.Config, logger *slog.Logger) (Route, error) {
	route := Route{Backend: BackendPlain, Delivery: DeliveryBuffered}
	if cfg.OpenAI.Stream {
		route.Delivery = DeliveryStreamed
	}

	if cfg.OpenAI.BaseURL() == "" || cfg.OpenAI.Key == "" {
		return route, fmt.Errorf("%w: AZURE_OPENAI_ENDPOINT (or AZURE_OPENAI_RESOURCE) and AZURE_OPENAI_KEY are required", domain.ErrConfiguration)
	}

	type candidate struct {
		backend  Backend
		complete bool
		partial  bool
	}
	candidates := map[string]candidate{
		config.DataSourceAzureSearch:   {BackendAzureSearch, cfg.ACS.Complete(), cfg.ACS.Partial()},
		config.DataSourceCosmosMongo:   {BackendCosmosMongo, cfg.Mongo.Complete(), cfg.Mongo.Partial()},
		config.DataSourceElasticsearch: {BackendElasticsearch, cfg.Elastic.Complete(), cfg.Elastic.Partial()},
	}

	if selected := cfg.DataSource.Type; selected != "" {
		c, ok := candidates[selected]
		if !ok {
			return route, fmt.Errorf("%w: unknown DATASOURCE_TYPE %q", domain.ErrConfiguration, selected)
		}
		if !c.complete {
			return route, fmt.Errorf("%w: DATASOURCE_TYPE %s selected but its credentials are incomplete", domain.ErrConfiguration, selected)
		}
		route.Backend = c.backend
	} else {
		var complete []string
		for name, c := range candidates {
			if c.complete {
				complete = append(complete, name)
				route.Backend = c.backend
			} else if c.partial {
				logger.Warn("ignoring incomplete data source credentials", "datasource", name)
			}
		}
		if len(complete) > 1 {
			slices.Sort(complete)
			route.Backend = BackendPlain
			return route, fmt.Errorf("%w: credentials for %v are all complete, set DATASOURCE_TYPE", domain.ErrConfiguration, complete)
		}
	}

	if route.Retrieval() && cfg.OpenAI.IsLegacyAPI() {
		route.Legacy = true
	}
	return route, nil
}
