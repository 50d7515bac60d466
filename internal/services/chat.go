package services

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"guruchat-backend/internal/metrics"
	"guruchat-backend/internal/models"
	"guruchat-backend/internal/worker"
)

const DefaultSystemPrompt = "You are a helpful assistant."

// Generator streams a model reply for a transcript.
type Generator interface {
	StreamChat(ctx context.Context, systemPrompt string, messages []models.Message, emit func(string) error) (string, error)
}

type jobSubmitter interface {
	Submit(job worker.Job) bool
}

type updatePublisher interface {
	PublishConversationUpdate(ctx context.Context, userID bson.ObjectID, update models.ConversationUpdate) error
}

type chatRecorder interface {
	ChatStream(outcome string)
	Persisted(outcome string)
}

type ChatService struct {
	generator Generator
	gurus     *GuruService
	chats     chatRepository
	pool      jobSubmitter
	publisher updatePublisher
	metrics   chatRecorder
	timeout   time.Duration
	log       *zap.Logger
}

type ChatServiceConfig struct {
	Generator Generator // nil when no provider key is configured
	Gurus     *GuruService
	Chats     chatRepository
	Pool      jobSubmitter
	Publisher updatePublisher // optional
	Metrics   chatRecorder
	Timeout   time.Duration
	Log       *zap.Logger
}

func NewChatService(cfg ChatServiceConfig) *ChatService {
	return &ChatService{
		generator: cfg.Generator,
		gurus:     cfg.Gurus,
		chats:     cfg.Chats,
		pool:      cfg.Pool,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		timeout:   cfg.Timeout,
		log:       cfg.Log,
	}
}

// Available reports whether a model provider is configured. Without one the
// chat route fails every request the same way.
func (s *ChatService) Available() error {
	if s.generator == nil {
		return &ConfigError{Setting: "GEMINI_API_KEY"}
	}
	return nil
}

// PreparedChat is a validated request with its persona resolved, ready to stream.
type PreparedChat struct {
	UserID       bson.ObjectID
	GuruID       *bson.ObjectID
	SystemPrompt string
	Messages     []models.Message
}

// Prepare checks everything that can still be reported as a JSON error,
// before any byte of the stream is written.
func (s *ChatService) Prepare(ctx context.Context, userID bson.ObjectID, req models.ChatRequest) (*PreparedChat, error) {
	if err := s.Available(); err != nil {
		return nil, err
	}

	if err := ValidateStruct(req); err != nil {
		return nil, err
	}
	if last := req.Messages[len(req.Messages)-1]; last.Role != models.RoleUser {
		return nil, &ValidationError{Fields: map[string]string{"messages": "last message must be from the user"}}
	}

	prompt, guruID := s.gurus.ResolvePrompt(ctx, req.GuruID)

	return &PreparedChat{
		UserID:       userID,
		GuruID:       guruID,
		SystemPrompt: prompt,
		Messages:     req.Messages,
	}, nil
}

// Stream generates the reply, handing each chunk to emit. The call is bounded
// by the provider timeout and stops when ctx is cancelled.
func (s *ChatService) Stream(ctx context.Context, p *PreparedChat, emit func(string) error) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	reply, err := s.generator.StreamChat(ctx, p.SystemPrompt, p.Messages, emit)
	s.recordStream(ctx, err)
	return reply, err
}

func (s *ChatService) recordStream(ctx context.Context, err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case err == nil:
		s.metrics.ChatStream(metrics.OutcomeOK)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		s.metrics.ChatStream(metrics.OutcomeTimeout)
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		s.metrics.ChatStream(metrics.OutcomeCanceled)
	default:
		s.metrics.ChatStream(metrics.OutcomeError)
	}
}

// Persist queues the exchange for storage. It must only be called after the
// stream finished and the finish part reached the client.
func (s *ChatService) Persist(p *PreparedChat, reply string) {
	if reply == "" {
		s.log.Warn("empty model reply, exchange not persisted", zap.String("user_id", p.UserID.Hex()))
		s.recordPersist(metrics.OutcomeDropped)
		return
	}

	turns := []models.Message{
		p.Messages[len(p.Messages)-1],
		{Role: models.RoleAssistant, Content: reply},
	}

	job := worker.Job{
		Name: "persist_chat",
		Run: func(ctx context.Context) error {
			return s.persist(ctx, p.UserID, p.GuruID, turns)
		},
	}

	if !s.pool.Submit(job) {
		s.log.Error("persistence queue full, exchange dropped", zap.String("user_id", p.UserID.Hex()))
		s.recordPersist(metrics.OutcomeDropped)
	}
}

func (s *ChatService) persist(ctx context.Context, userID bson.ObjectID, guruID *bson.ObjectID, turns []models.Message) error {
	chat, err := s.chats.AppendTurns(ctx, userID, guruID, turns)
	if err != nil {
		s.recordPersist(metrics.OutcomeError)
		return err
	}
	s.recordPersist(metrics.OutcomeOK)

	if s.publisher != nil {
		update := models.ConversationUpdate{ConversationID: chat.ID.Hex()}
		if guruID != nil {
			update.GuruID = guruID.Hex()
		}
		if err := s.publisher.PublishConversationUpdate(ctx, userID, update); err != nil {
			s.log.Warn("failed to publish conversation update", zap.Error(err))
		}
	}
	return nil
}

func (s *ChatService) recordPersist(outcome string) {
	if s.metrics != nil {
		s.metrics.Persisted(outcome)
	}
}
