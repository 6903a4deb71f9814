package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// ErrInjected is returned by ChatStore.CreateMessage while FailCreate is positive.
var ErrInjected = errors.New("injected storage failure")

// ChatStore keeps conversations and messages in memory. Message ids follow
// insertion order.
type ChatStore struct {
	mu       sync.Mutex
	chats    map[int]models.Chat
	messages []storedMessage

	// FailCreate makes the next FailCreate CreateMessage calls fail.
	FailCreate int
	// FailAfterCreate stores the next FailAfterCreate messages but still
	// reports ErrInjected.
	FailAfterCreate int
}

type storedMessage struct {
	models.Message
	DedupKey string
}

func NewChatStore() *ChatStore {
	return &ChatStore{chats: map[int]models.Chat{}}
}

func (s *ChatStore) CreateOrGetChat(_ context.Context, userID, operatorID int) (models.Chat, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if userID == operatorID {
		return models.Chat{}, false, repositories.ErrSelfReference
	}
	for _, c := range s.chats {
		if c.UserID == userID && c.OperatorID == operatorID {
			return c, false, nil
		}
	}
	c := models.Chat{ID: len(s.chats) + 1, UserID: userID, OperatorID: operatorID, CreatedAt: time.Now()}
	s.chats[c.ID] = c
	return c, true, nil
}

func (s *ChatStore) GetChat(_ context.Context, chatID int) (models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return models.Chat{}, repositories.ErrChatNotFound
	}
	return c, nil
}

func (s *ChatStore) ListChats(_ context.Context, accountID int) ([]models.ChatSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ChatSummary
	for _, c := range s.chats {
		if !c.HasParticipant(accountID) {
			continue
		}
		out = append(out, models.ChatSummary{
			ChatID:             c.ID,
			PeerID:             c.PeerOf(accountID),
			LastMessagePreview: c.LastMessagePreview,
			LastMessageAt:      c.LastMessageAt,
			CreatedAt:          c.CreatedAt,
		})
	}
	return out, nil
}

func (s *ChatStore) UpdateLastMessage(_ context.Context, chatID int, preview string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return repositories.ErrChatNotFound
	}
	if c.LastMessageAt != nil && c.LastMessageAt.After(at) {
		return nil
	}
	c.LastMessagePreview = preview
	c.LastMessageAt = &at
	s.chats[chatID] = c
	return nil
}

func (s *ChatStore) CreateMessage(_ context.Context, in repositories.NewMessage) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreate > 0 {
		s.FailCreate--
		return models.Message{}, ErrInjected
	}
	if in.DedupKey != "" {
		for _, existing := range s.messages {
			if existing.DedupKey == in.DedupKey {
				return existing.Message, nil
			}
		}
	}
	msg := models.Message{
		ID:        int64(len(s.messages) + 1),
		ChatID:    in.ChatID,
		SenderID:  in.SenderID,
		Kind:      in.Kind.Tag,
		Content:   in.Content,
		Cost:      in.Cost,
		CreatedAt: time.Now(),
	}
	if in.Kind.Tag == models.KindGift {
		tier := in.Kind.Tier
		msg.GiftTier = &tier
	}
	s.messages = append(s.messages, storedMessage{Message: msg, DedupKey: in.DedupKey})
	if s.FailAfterCreate > 0 {
		s.FailAfterCreate--
		return models.Message{}, ErrInjected
	}
	return msg, nil
}

func (s *ChatStore) ListMessages(_ context.Context, chatID int, beforeID int64, limit int) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, msg := range s.messages {
		if msg.ChatID == chatID && (beforeID == 0 || msg.ID < beforeID) {
			out = append(out, msg.Message)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *ChatStore) MarkRead(_ context.Context, chatID, readerID int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for i := range s.messages {
		m := &s.messages[i]
		if m.ChatID == chatID && m.SenderID != readerID && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

// Messages returns a copy of every stored message.
func (s *ChatStore) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, 0, len(s.messages))
	for _, msg := range s.messages {
		out = append(out, msg.Message)
	}
	return out
}
