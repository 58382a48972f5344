package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"chatrelay/internal/dispatch"
	"chatrelay/internal/domain"
	"chatrelay/internal/domain/models"
	"chatrelay/internal/domain/services"
	"chatrelay/internal/metrics"
	"chatrelay/internal/relay"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sashabaranov/go-openai"
)

// maxBufferedBody caps a buffered upstream answer read into memory.
const maxBufferedBody = 16 << 20

// Router decides the route and prepares upstream requests.
type Router interface {
	Route() (dispatch.Route, error)
	BuildOutboundRequest(ctx context.Context, messages []models.ChatMessage, model, userAccessToken string) (dispatch.Outbound, error)
}

// RetrievalDoer posts "on your data" requests.
type RetrievalDoer interface {
	Do(ctx context.Context, req *dispatch.RetrievalRequest) (*http.Response, error)
}

// PlainCompleter runs plain chat completions.
type PlainCompleter interface {
	Complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	Stream(ctx context.Context, req openai.ChatCompletionRequest) (relay.Source, error)
}

// Service implements ConversationService
type Service struct {
	router    Router
	retrieval RetrievalDoer
	plain     PlainCompleter
	logger    *slog.Logger
}

// NewService creates a new conversation service
func NewService(router Router, retrieval RetrievalDoer, plain PlainCompleter, logger *slog.Logger) services.ConversationService {
	return &Service{
		router:    router,
		retrieval: retrieval,
		plain:     plain,
		logger:    logger,
	}
}

// Converse runs one chat turn against the configured backend.
func (s *Service) Converse(ctx context.Context, user *models.AuthenticatedUser, req *models.TurnRequest) (*services.TurnResult, error) {
	if err := validateTurnRequest(req); err != nil {
		return nil, err
	}

	turn := NewTurn(req.HistoryMetadata)
	route, err := s.router.Route()
	if err != nil {
		return nil, s.fail(turn, "unrouted", err)
	}

	var accessToken string
	if user != nil {
		accessToken = user.AccessToken
	}
	out, err := s.router.BuildOutboundRequest(ctx, req.Messages, req.Model, accessToken)
	if err != nil {
		return nil, s.fail(turn, route.String(), err)
	}
	s.advance(turn, StateDispatched)
	s.logger.Debug("turn dispatched", "turn_id", turn.ID, "route", route.String(), "messages", len(req.Messages))

	switch o := out.(type) {
	case *dispatch.RetrievalRequest:
		return s.runRetrieval(ctx, turn, route, o)
	case *dispatch.PlainRequest:
		return s.runPlain(ctx, turn, route, o)
	default:
		return nil, s.fail(turn, route.String(), fmt.Errorf("unsupported outbound request %T", out))
	}
}

func (s *Service) runRetrieval(ctx context.Context, turn *Turn, route dispatch.Route, req *dispatch.RetrievalRequest) (*services.TurnResult, error) {
	start := time.Now()
	resp, err := s.retrieval.Do(ctx, req)
	if err != nil {
		metrics.ObserveUpstream(route.Backend.String(), start)
		return nil, s.fail(turn, route.String(), err)
	}

	if route.Delivery == dispatch.DeliveryStreamed {
		metrics.ObserveUpstream(route.Backend.String(), start)
		src := relay.NewLineSource(resp.Body, route.Decoder())
		return s.streamResult(turn, route, src), nil
	}

	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBufferedBody))
	metrics.ObserveUpstream(route.Backend.String(), start)
	if err != nil {
		return nil, s.fail(turn, route.String(), fmt.Errorf("read upstream response: %w", err))
	}

	normalize := relay.NormalizeBuffered
	if route.Legacy {
		normalize = relay.NormalizeLegacy
	}
	delta, err := normalize(raw)
	if err != nil {
		s.logger.Warn("undecodable upstream response", "turn_id", turn.ID, "bytes", len(raw))
		return nil, s.fail(turn, route.String(), &domain.UpstreamError{
			Status: http.StatusBadGateway,
			Body:   []byte(`"upstream returned an undecodable response"`),
		})
	}

	// Retrieval answers keep the upstream id.
	return s.bufferedResult(turn, route, delta, resp.StatusCode, relay.Correlation{HistoryMetadata: turn.HistoryMetadata})
}

func (s *Service) runPlain(ctx context.Context, turn *Turn, route dispatch.Route, req *dispatch.PlainRequest) (*services.TurnResult, error) {
	start := time.Now()
	if route.Delivery == dispatch.DeliveryStreamed {
		src, err := s.plain.Stream(ctx, req.Request)
		metrics.ObserveUpstream(route.Backend.String(), start)
		if err != nil {
			return nil, s.fail(turn, route.String(), err)
		}
		return s.streamResult(turn, route, src), nil
	}

	resp, err := s.plain.Complete(ctx, req.Request)
	metrics.ObserveUpstream(route.Backend.String(), start)
	if err != nil {
		return nil, s.fail(turn, route.String(), err)
	}
	delta := relay.NormalizePlainCompletion(resp)
	return s.bufferedResult(turn, route, delta, http.StatusOK, relay.Correlation{ID: turn.ID, HistoryMetadata: turn.HistoryMetadata})
}

func (s *Service) bufferedResult(turn *Turn, route dispatch.Route, delta relay.Delta, status int, corr relay.Correlation) (*services.TurnResult, error) {
	s.advance(turn, StateBuffered)
	metrics.ObserveDelta(delta.Kind.String())

	body, err := delta.Encode(corr)
	if err != nil {
		return nil, s.fail(turn, route.String(), fmt.Errorf("encode response: %w", err))
	}

	if delta.Kind == relay.KindError {
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		turn.Fail(errors.New("upstream error payload"))
		s.finish(turn, route)
	} else {
		s.complete(turn, route)
	}

	return &services.TurnResult{TurnID: turn.ID, Status: status, Body: body}, nil
}

func (s *Service) streamResult(turn *Turn, route dispatch.Route, src relay.Source) *services.TurnResult {
	s.advance(turn, StateStreaming)

	sawError := false
	r := relay.NewRelay(src,
		relay.Correlation{ID: turn.ID, HistoryMetadata: turn.HistoryMetadata},
		relay.WithLogger(s.logger),
		relay.WithObserver(func(k relay.Kind) {
			metrics.ObserveDelta(k.String())
			if k == relay.KindError {
				sawError = true
			}
		}),
	)

	return &services.TurnResult{
		TurnID: turn.ID,
		Status: http.StatusOK,
		Stream: s.track(turn, route, r, &sawError),
	}
}

// track settles the turn once the client stops consuming the stream.
func (s *Service) track(turn *Turn, route dispatch.Route, r *relay.Relay, sawError *bool) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		aborted := false
		for line := range r.Envelopes() {
			if !yield(line) {
				aborted = true
				break
			}
		}
		r.Close()

		switch {
		case aborted:
			turn.Fail(errors.New("client stopped reading"))
			s.finish(turn, route)
		case *sawError:
			turn.Fail(errors.New("upstream error payload"))
			s.finish(turn, route)
		default:
			s.complete(turn, route)
		}
	}
}

func (s *Service) advance(turn *Turn, next TurnState) {
	if err := turn.Advance(next); err != nil {
		s.logger.Error("turn state", "error", err)
	}
}

func (s *Service) complete(turn *Turn, route dispatch.Route) {
	s.advance(turn, StateCompleted)
	s.finish(turn, route)
}

func (s *Service) fail(turn *Turn, route string, err error) error {
	turn.Fail(err)
	metrics.ObserveTurn(route, turn.State().String())
	s.logger.Warn("turn failed", "turn_id", turn.ID, "route", route, "error", err)
	return err
}

func (s *Service) finish(turn *Turn, route dispatch.Route) {
	metrics.ObserveTurn(route.String(), turn.State().String())
	if turn.State() == StateFailed {
		s.logger.Warn("turn failed", "turn_id", turn.ID, "route", route.String(), "error", turn.Failure())
		return
	}
	s.logger.Info("turn completed", "turn_id", turn.ID, "route", route.String())
}

func validateTurnRequest(req *models.TurnRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request body is required", domain.ErrValidation)
	}
	err := validation.ValidateStruct(req,
		validation.Field(&req.Messages,
			validation.Required.Error("at least one message is required"),
			validation.Each(validation.By(validateMessage)),
		),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

func validateMessage(value interface{}) error {
	msg, ok := value.(models.ChatMessage)
	if !ok {
		return errors.New("must be a chat message")
	}
	if msg.Role == "" {
		return errors.New("role is required")
	}
	if len(msg.Content) == 0 {
		return errors.New("content is required")
	}
	return nil
}
