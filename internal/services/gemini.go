package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"guruchat-backend/internal/models"
)

// ErrProviderUnavailable is returned while the circuit breaker is open.
var ErrProviderUnavailable = errors.New("AI provider temporarily unavailable")

// emitError marks a failure writing a chunk to the client, which says
// nothing about the provider's health.
type emitError struct{ err error }

func (e *emitError) Error() string { return "failed to emit chunk: " + e.err.Error() }
func (e *emitError) Unwrap() error { return e.err }

type GeminiService struct {
	client    *genai.Client
	modelName string
	breaker   *gobreaker.CircuitBreaker
	rateChan  chan struct{} // Concurrency slots
	log       *zap.Logger
}

func NewGeminiService(apiKey, modelName string, concurrentReqs int, log *zap.Logger) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if concurrentReqs <= 0 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		client:    client,
		modelName: modelName,
		breaker:   newProviderBreaker(log),
		rateChan:  rateChan,
		log:       log,
	}, nil
}

func newProviderBreaker(log *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gemini",
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		IsSuccessful: isProviderSuccess,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
}

// isProviderSuccess counts client-side aborts as successes so a burst of
// closed browser tabs cannot open the breaker.
func isProviderSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var ee *emitError
	return errors.As(err, &ee)
}

func (s *GeminiService) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// StreamChat sends the conversation to Gemini and calls emit with each text
// part as it arrives. It returns the full reply once the stream completes.
func (s *GeminiService) StreamChat(ctx context.Context, systemPrompt string, messages []models.Message, emit func(string) error) (string, error) {
	history, last, err := toGenaiHistory(messages)
	if err != nil {
		return "", err
	}

	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	result, err := s.breaker.Execute(func() (interface{}, error) {
		model := s.client.GenerativeModel(s.modelName)
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}

		cs := model.StartChat()
		cs.History = history

		var reply strings.Builder
		iter := cs.SendMessageStream(ctx, last...)
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				return reply.String(), fmt.Errorf("Gemini API error: %w", err)
			}

			text := extractText(resp)
			if text == "" {
				continue
			}
			reply.WriteString(text)
			if err := emit(text); err != nil {
				return reply.String(), &emitError{err: err}
			}
		}
		return reply.String(), nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", ErrProviderUnavailable
	}
	reply, _ := result.(string)
	return reply, err
}

// toGenaiHistory splits a transcript into prior history and the parts of the
// final user turn. System turns are dropped since the persona prompt is sent
// as the system instruction, and consecutive turns with the same role are
// merged because Gemini expects the roles to alternate.
func toGenaiHistory(messages []models.Message) ([]*genai.Content, []genai.Part, error) {
	if len(messages) == 0 {
		return nil, nil, errors.New("no messages to send")
	}
	lastMsg := messages[len(messages)-1]
	if lastMsg.Role != models.RoleUser {
		return nil, nil, errors.New("last message must be from the user")
	}

	history := make([]*genai.Content, 0, len(messages)-1)
	for _, m := range messages[:len(messages)-1] {
		var role string
		switch m.Role {
		case models.RoleUser:
			role = "user"
		case models.RoleAssistant:
			role = "model"
		default:
			continue
		}

		if n := len(history); n > 0 && history[n-1].Role == role {
			history[n-1].Parts = append(history[n-1].Parts, genai.Text(m.Content))
			continue
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}

	last := []genai.Part{genai.Text(lastMsg.Content)}
	// A trailing user turn in history would make two user turns in a row.
	if n := len(history); n > 0 && history[n-1].Role == "user" {
		last = append(history[n-1].Parts, last...)
		history = history[:n-1]
	}

	return history, last, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
