package services

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"guruchat-backend/internal/models"
	"guruchat-backend/internal/repository"
)

const (
	summaryMaxRunes      = 50
	summaryFallback      = "Chat started"
	unknownGuruName      = "Unknown Guru"
	defaultAssistantName = "Assistant"
)

type chatRepository interface {
	AppendTurns(ctx context.Context, userID bson.ObjectID, guruID *bson.ObjectID, turns []models.Message) (*models.Chat, error)
	ListByUser(ctx context.Context, userID bson.ObjectID) ([]models.Chat, error)
	GetByID(ctx context.Context, userID, chatID bson.ObjectID) (*models.Chat, error)
	GetByGuru(ctx context.Context, userID bson.ObjectID, guruID *bson.ObjectID) (*models.Chat, error)
}

type HistoryService struct {
	chats chatRepository
	gurus guruRepository
}

func NewHistoryService(chats chatRepository, gurus guruRepository) *HistoryService {
	return &HistoryService{chats: chats, gurus: gurus}
}

// Summarize returns the first user turn cut to 50 characters, or a placeholder.
func Summarize(messages []models.Message) string {
	for _, m := range messages {
		if m.Role != models.RoleUser {
			continue
		}
		runes := []rune(m.Content)
		if len(runes) > summaryMaxRunes {
			return string(runes[:summaryMaxRunes]) + "..."
		}
		return m.Content
	}
	return summaryFallback
}

// ListSummaries groups the user's conversations by guru, most recently
// updated first. Group order follows the first conversation seen for each guru.
// A non-empty query keeps only conversations whose summary or guru name
// contains it, ignoring case, and drops groups left empty.
func (s *HistoryService) ListSummaries(ctx context.Context, userID bson.ObjectID, query string) ([]models.GuruHistory, error) {
	chats, err := s.chats.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	names, err := s.gurus.GetNames(ctx, guruIDs(chats))
	if err != nil {
		return nil, err
	}

	history := make([]models.GuruHistory, 0)
	index := make(map[string]int)

	for _, chat := range chats {
		key, name := "", defaultAssistantName
		if chat.GuruID != nil {
			key = chat.GuruID.Hex()
			if n, ok := names[*chat.GuruID]; ok && n != "" {
				name = n
			} else {
				name = unknownGuruName
			}
		}

		i, ok := index[key]
		if !ok {
			i = len(history)
			index[key] = i
			history = append(history, models.GuruHistory{
				GuruID:        key,
				GuruName:      name,
				Conversations: []models.ChatSummary{},
			})
		}

		history[i].Conversations = append(history[i].Conversations, models.ChatSummary{
			ConversationID: chat.ID.Hex(),
			Summary:        Summarize(chat.Messages),
			LastUpdated:    chat.UpdatedAt,
		})
	}

	return filterHistory(history, query), nil
}

func filterHistory(history []models.GuruHistory, query string) []models.GuruHistory {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return history
	}

	filtered := make([]models.GuruHistory, 0, len(history))
	for _, group := range history {
		if strings.Contains(strings.ToLower(group.GuruName), query) {
			filtered = append(filtered, group)
			continue
		}
		matches := make([]models.ChatSummary, 0)
		for _, c := range group.Conversations {
			if strings.Contains(strings.ToLower(c.Summary), query) {
				matches = append(matches, c)
			}
		}
		if len(matches) > 0 {
			group.Conversations = matches
			filtered = append(filtered, group)
		}
	}
	return filtered
}

// GetConversation returns the user's conversation by id. Conversations owned
// by someone else are indistinguishable from missing ones.
func (s *HistoryService) GetConversation(ctx context.Context, userID bson.ObjectID, rawID string) (*models.Conversation, error) {
	chatID, err := models.ParseID(rawID)
	if err != nil {
		return nil, &InvalidIDError{Message: "Invalid Conversation ID format"}
	}

	chat, err := s.chats.GetByID(ctx, userID, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Message: "Conversation not found or user unauthorized"}
		}
		return nil, err
	}
	return s.populate(ctx, chat)
}

// GetConversationByGuru returns nil without error when the user has not
// talked to this guru yet.
func (s *HistoryService) GetConversationByGuru(ctx context.Context, userID bson.ObjectID, rawGuruID string) (*models.Conversation, error) {
	guruID, err := models.ParseID(rawGuruID)
	if err != nil {
		return nil, &InvalidIDError{Message: "Invalid Guru ID format"}
	}

	chat, err := s.chats.GetByGuru(ctx, userID, &guruID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return s.populate(ctx, chat)
}

func (s *HistoryService) populate(ctx context.Context, chat *models.Chat) (*models.Conversation, error) {
	conv := &models.Conversation{
		ID:        chat.ID,
		UserID:    chat.UserID,
		Messages:  chat.Messages,
		CreatedAt: chat.CreatedAt,
		UpdatedAt: chat.UpdatedAt,
	}
	if conv.Messages == nil {
		conv.Messages = []models.Message{}
	}

	if chat.GuruID != nil {
		names, err := s.gurus.GetNames(ctx, []bson.ObjectID{*chat.GuruID})
		if err != nil {
			return nil, err
		}
		if name, ok := names[*chat.GuruID]; ok {
			conv.Guru = &models.GuruRef{ID: *chat.GuruID, Name: name}
		}
	}
	return conv, nil
}

func guruIDs(chats []models.Chat) []bson.ObjectID {
	seen := make(map[bson.ObjectID]bool)
	ids := make([]bson.ObjectID, 0)
	for _, c := range chats {
		if c.GuruID != nil && !seen[*c.GuruID] {
			seen[*c.GuruID] = true
			ids = append(ids, *c.GuruID)
		}
	}
	return ids
}
