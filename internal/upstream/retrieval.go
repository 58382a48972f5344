package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"chatrelay/internal/dispatch"
	"chatrelay/internal/domain"

	"github.com/tidwall/gjson"
)

// responseHeaderTimeout bounds the wait for upstream headers. Streams themselves are
// not time limited; the request context ends them.
const responseHeaderTimeout = 2 * time.Minute

// maxErrorBody caps how much of a failed upstream response is read.
const maxErrorBody = 1 << 20

// RetrievalClient posts "on your data" requests with plain HTTP so the raw
// response lines can be relayed as they arrive.
type RetrievalClient struct {
	httpClient *http.Client
}

// NewRetrievalClient creates a client. A nil httpClient uses a default transport.
func NewRetrievalClient(httpClient *http.Client) *RetrievalClient {
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = responseHeaderTimeout
		httpClient = &http.Client{Transport: transport}
	}
	return &RetrievalClient{httpClient: httpClient}
}

// Do sends req. A 2xx response is returned open for the caller to consume and
// close; any other status is read and returned as *domain.UpstreamError whose body is
// the provider's error value. Transport failures become a 502 UpstreamError.
func (c *RetrievalClient) Do(ctx context.Context, req *dispatch.RetrievalRequest) (*http.Response, error) {
	payload, err := json.Marshal(req.Body)
	if err != nil {
		return nil, fmt.Errorf("marshal retrieval body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(fmt.Errorf("retrieval request failed: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &domain.UpstreamError{Status: resp.StatusCode, Body: errorValue(body)}
	}
	return resp, nil
}

// errorValue unwraps {"error": X} to X so the client sees a single error envelope.
// Bodies without an error key are forwarded whole.
func errorValue(body []byte) []byte {
	if e := gjson.GetBytes(body, "error"); e.Exists() {
		return []byte(e.Raw)
	}
	return body
}

// transportError reports a failure to reach the provider as a 502 with its description.
func transportError(err error) *domain.UpstreamError {
	msg, _ := json.Marshal(err.Error())
	return &domain.UpstreamError{Status: http.StatusBadGateway, Body: msg, Err: err}
}
