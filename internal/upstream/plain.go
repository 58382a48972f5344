package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"chatrelay/internal/config"
	"chatrelay/internal/domain"
	"chatrelay/internal/relay"

	"github.com/sashabaranov/go-openai"
)

// PlainClient calls Azure OpenAI chat completions through the OpenAI SDK.
type PlainClient struct {
	client *openai.Client
}

// NewPlainClient configures the SDK for Azure with the preview API version.
// httpClient may be nil.
func NewPlainClient(cfg config.OpenAIConfig, httpClient *http.Client) *PlainClient {
	clientCfg := openai.DefaultAzureConfig(cfg.Key, cfg.BaseURL())
	clientCfg.APIVersion = cfg.PreviewAPIVersion
	// Deployment names are used as given.
	clientCfg.AzureModelMapperFunc = func(model string) string { return model }
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}
	return &PlainClient{client: openai.NewClientWithConfig(clientCfg)}
}

// Complete runs a buffered completion.
func (c *PlainClient) Complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	req.Stream = false
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return resp, toUpstreamError(err)
	}
	return resp, nil
}

// Stream opens a streamed completion as a relay source.
func (c *PlainClient) Stream(ctx context.Context, req openai.ChatCompletionRequest) (relay.Source, error) {
	req.Stream = true
	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, toUpstreamError(err)
	}
	return &sdkStreamSource{stream: stream}, nil
}

type sdkStreamSource struct {
	stream *openai.ChatCompletionStream
}

func (s *sdkStreamSource) Next() (relay.Delta, error) {
	chunk, err := s.stream.Recv()
	if err != nil {
		return relay.Delta{}, err
	}
	return relay.NormalizePlainChunk(chunk), nil
}

func (s *sdkStreamSource) Close() error {
	return s.stream.Close()
}

// toUpstreamError keeps the provider status and message so the client sees them.
func toUpstreamError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		body, _ := json.Marshal(map[string]any{"code": apiErr.Code, "message": apiErr.Message})
		return &domain.UpstreamError{Status: apiErr.HTTPStatusCode, Body: body}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		body, _ := json.Marshal(reqErr.Error())
		return &domain.UpstreamError{Status: reqErr.HTTPStatusCode, Body: body}
	}
	return transportError(fmt.Errorf("completion request failed: %w", err))
}
