package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// GroupResolver lists the directory groups of the user owning accessToken.
type GroupResolver interface {
	Groups(ctx context.Context, accessToken string) ([]string, error)
}

const maxGroupPages = 50

// GraphGroupResolver reads transitive group membership from Microsoft Graph.
type GraphGroupResolver struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewGraphGroupResolver creates a resolver against baseURL (https://graph.microsoft.com).
func NewGraphGroupResolver(baseURL string, logger *slog.Logger) *GraphGroupResolver {
	return &GraphGroupResolver{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

type memberOfPage struct {
	Value []struct {
		ID string `json:"id"`
	} `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

// Groups follows @odata.nextLink until every page has been read.
func (g *GraphGroupResolver) Groups(ctx context.Context, accessToken string) ([]string, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("no user access token")
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.client)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	var ids []string
	next := g.baseURL + "/v1.0/me/transitiveMemberOf?$select=id"
	for page := 0; next != "" && page < maxGroupPages; page++ {
		p, err := g.fetchPage(ctx, client, next)
		if err != nil {
			return nil, err
		}
		for _, v := range p.Value {
			ids = append(ids, v.ID)
		}
		next = p.NextLink
	}
	g.logger.Debug("resolved user groups", "count", len(ids))
	return ids, nil
}

func (g *GraphGroupResolver) fetchPage(ctx context.Context, client *http.Client, url string) (*memberOfPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch user groups: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetch user groups: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var page memberOfPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode user groups: %w", err)
	}
	return &page, nil
}
