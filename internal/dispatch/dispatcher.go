package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"chatrelay/internal/config"
	"chatrelay/internal/domain"
	"chatrelay/internal/domain/models"

	"github.com/sashabaranov/go-openai"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const userAgent = "GitHubSampleWebApp/PublicAPI/3.0.0"

// Outbound is a prepared upstream call: *RetrievalRequest or *PlainRequest.
type Outbound interface {
	outbound()
}

// WireMessage is a chat message as the completion API receives it.
type WireMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// RetrievalBody is the "on your data" extensions request body.
type RetrievalBody struct {
	Messages    []WireMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	TopP        float32       `json:"top_p"`
	Stop        []string      `json:"stop"`
	Stream      bool          `json:"stream"`
	DataSources []DataSource  `json:"dataSources"`
}

// RetrievalRequest targets the extensions chat completions endpoint.
type RetrievalRequest struct {
	URL    string
	Header http.Header
	Body   RetrievalBody
}

func (*RetrievalRequest) outbound() {}

// PlainRequest is sent through the OpenAI SDK.
type PlainRequest struct {
	Request openai.ChatCompletionRequest
}

func (*PlainRequest) outbound() {}

// Dispatcher holds the process-wide routing decision and builds upstream requests.
type Dispatcher struct {
	cfg      *config.Config
	route    Route
	routeErr error
	groups   GroupResolver
	logger   *slog.Logger
}

// New resolves the route once. A configuration error is kept and reported on every
// turn instead of failing startup.
func New(cfg *config.Config, groups GroupResolver, logger *slog.Logger) *Dispatcher {
	route, err := ResolveRoute(cfg, logger)
	if err != nil {
		logger.Error("dispatch configuration invalid, turns will fail", "error", err)
	} else {
		logger.Info("dispatch route resolved", "route", route.String(), "api_version", cfg.OpenAI.PreviewAPIVersion)
	}
	if err == nil && route.Legacy {
		logger.Warn("deprecated API version in use, streamed lines are forwarded without normalization",
			"api_version", cfg.OpenAI.PreviewAPIVersion)
	}
	return &Dispatcher{
		cfg:      cfg,
		route:    route,
		routeErr: err,
		groups:   groups,
		logger:   logger,
	}
}

// Route returns the resolved route or the configuration error.
func (d *Dispatcher) Route() (Route, error) {
	return d.route, d.routeErr
}

// ShouldUseRetrieval reports whether turns go to a retrieval data source.
func (d *Dispatcher) ShouldUseRetrieval() bool {
	return d.routeErr == nil && d.route.Retrieval()
}

// BuildOutboundRequest assembles the upstream request for messages.
// model selects the deployment; empty uses AZURE_OPENAI_MODEL.
func (d *Dispatcher) BuildOutboundRequest(ctx context.Context, messages []models.ChatMessage, model, userAccessToken string) (Outbound, error) {
	if d.routeErr != nil {
		return nil, d.routeErr
	}
	if model == "" {
		model = d.cfg.OpenAI.Model
	}
	if model == "" {
		return nil, fmt.Errorf("%w: no deployment requested and AZURE_OPENAI_MODEL is empty", domain.ErrConfiguration)
	}

	if !d.route.Retrieval() {
		return d.buildPlain(messages, model)
	}
	return d.buildRetrieval(ctx, messages, model, userAccessToken)
}

func (d *Dispatcher) buildRetrieval(ctx context.Context, messages []models.ChatMessage, model, userAccessToken string) (*RetrievalRequest, error) {
	oa := d.cfg.OpenAI

	var filter *string
	if d.route.Backend == BackendAzureSearch && d.cfg.Search.PermittedGroupsColumn != "" {
		groupIDs, err := d.groups.Groups(ctx, userAccessToken)
		if err != nil {
			// Search still runs; the empty filter matches no restricted documents.
			d.logger.Warn("user group lookup failed", "error", err, "token_present", userAccessToken != "")
		}
		f := PermittedGroupsFilter(d.cfg.Search.PermittedGroupsColumn, groupIDs)
		filter = &f
	}

	wire := make([]WireMessage, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, WireMessage{Role: m.Role, Content: m.Content})
	}

	req := &RetrievalRequest{
		URL: fmt.Sprintf("%sopenai/deployments/%s/extensions/chat/completions?api-version=%s",
			oa.BaseURL(), url.PathEscape(model), url.QueryEscape(oa.PreviewAPIVersion)),
		Header: http.Header{
			"Content-Type":   []string{"application/json"},
			"Api-Key":        []string{oa.Key},
			"X-Ms-Useragent": []string{userAgent},
		},
		Body: RetrievalBody{
			Messages:    wire,
			Temperature: oa.Temperature,
			MaxTokens:   oa.MaxTokens,
			TopP:        oa.TopP,
			Stop:        oa.StopSequences(),
			Stream:      d.route.Delivery == DeliveryStreamed,
			DataSources: []DataSource{buildDataSource(d.route.Backend, d.cfg, filter)},
		},
	}

	if d.cfg.Debug {
		if raw, err := json.Marshal(req.Body); err == nil {
			d.logger.Debug("retrieval request body", "url", req.URL, "body", string(RedactBody(raw)))
		}
	}
	return req, nil
}

func (d *Dispatcher) buildPlain(messages []models.ChatMessage, model string) (*PlainRequest, error) {
	oa := d.cfg.OpenAI

	wire := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: oa.SystemMessage}}
	for _, m := range messages {
		// Tool messages hold citations from earlier retrieval turns and have no
		// tool call to answer in a plain completion.
		if m.Role == "" || m.Role == models.RoleTool || len(m.Content) == 0 {
			continue
		}
		msg, err := toSDKMessage(m)
		if err != nil {
			return nil, fmt.Errorf("%w: message content: %v", domain.ErrValidation, err)
		}
		wire = append(wire, msg)
	}

	return &PlainRequest{Request: openai.ChatCompletionRequest{
		Model:       model,
		Messages:    wire,
		Temperature: oa.Temperature,
		TopP:        oa.TopP,
		MaxTokens:   oa.MaxTokens,
		Stop:        oa.StopSequences(),
		Stream:      d.route.Delivery == DeliveryStreamed,
	}}, nil
}

func toSDKMessage(m models.ChatMessage) (openai.ChatCompletionMessage, error) {
	if !m.IsMultipart() {
		return openai.ChatCompletionMessage{Role: m.Role, Content: m.Text()}, nil
	}
	parts, err := m.Parts()
	if err != nil {
		return openai.ChatCompletionMessage{}, err
	}
	msg := openai.ChatCompletionMessage{Role: m.Role}
	for _, p := range parts {
		switch p.Type {
		case models.PartText:
			msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: p.Text,
			})
		case models.PartImageURL:
			if p.ImageURL == nil {
				continue
			}
			msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    p.ImageURL.URL,
					Detail: openai.ImageURLDetail(p.ImageURL.Detail),
				},
			})
		}
	}
	return msg, nil
}

var redactedParams = []string{"key", "connectionString", "encodedApiKey", "embeddingKey"}

// RedactBody masks credentials inside the first data source of a request body.
func RedactBody(body []byte) []byte {
	out := body
	for _, field := range redactedParams {
		path := "dataSources.0.parameters." + field
		if !gjson.GetBytes(out, path).Exists() {
			continue
		}
		if redacted, err := sjson.SetBytes(out, path, "*****"); err == nil {
			out = redacted
		}
	}
	return out
}
