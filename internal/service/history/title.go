package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"chatrelay/internal/config"
	"chatrelay/internal/domain/models"
	"chatrelay/internal/domain/services"

	"github.com/sashabaranov/go-openai"
)

const titlePrompt = `Summarize the conversation so far into a 4-word or less title. Do not use any quotation marks or punctuation. Respond with a json object in the format {{"title": string}}. Do not include any other commentary or description.`

// Completer runs a buffered chat completion.
type Completer interface {
	Complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type titleGenerator struct {
	client Completer
	model  string
	logger *slog.Logger
}

// NewTitleGenerator creates a title generator that asks model for a short title.
func NewTitleGenerator(client Completer, model string, logger *slog.Logger) services.TitleGenerator {
	return &titleGenerator{
		client: client,
		model:  model,
		logger: logger,
	}
}

// GenerateTitle asks the model for a JSON title. Any failure falls back to the text of
// the last conversation message.
func (g *titleGenerator) GenerateTitle(ctx context.Context, messages []models.ChatMessage) services.TitleResult {
	var fallback string
	if len(messages) > 0 {
		fallback = messages[len(messages)-1].Text()
	}

	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: config.TitleTemperature,
		MaxTokens:   config.TitleMaxTokens,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)+1),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Text()})
	}
	req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: models.RoleUser, Content: titlePrompt})

	resp, err := g.client.Complete(ctx, req)
	if err != nil {
		return services.TitleFallback(fallback, fmt.Errorf("title completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return services.TitleFallback(fallback, errors.New("title completion returned no choices"))
	}

	title, err := parseTitle(resp.Choices[0].Message.Content)
	if err != nil {
		g.logger.Debug("unusable title reply", "reply", resp.Choices[0].Message.Content)
		return services.TitleFallback(fallback, err)
	}
	return services.TitleOk(title)
}

func parseTitle(content string) (string, error) {
	var reply struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &reply); err != nil {
		return "", fmt.Errorf("parse title reply: %w", err)
	}
	title := strings.TrimSpace(reply.Title)
	if title == "" {
		return "", errors.New("title reply has no title")
	}
	return title, nil
}
