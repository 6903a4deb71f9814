package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) CreateOrGetChat(ctx context.Context, userID int, operatorID int) (models.Chat, bool, error) {
	args := m.Called(ctx, userID, operatorID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Bool(1), args.Error(2)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) ListChats(ctx context.Context, accountID int) ([]models.ChatSummary, error) {
	args := m.Called(ctx, accountID)
	var list []models.ChatSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatSummary)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) UpdateLastMessage(ctx context.Context, chatID int, preview string, at time.Time) error {
	args := m.Called(ctx, chatID, preview, at)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg repositories.NewMessage) (models.Message, error) {
	args := m.Called(ctx, msg)
	var out models.Message
	if val := args.Get(0); val != nil {
		out = val.(models.Message)
	}
	return out, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, chatID int, beforeID int64, limit int) ([]models.Message, error) {
	args := m.Called(ctx, chatID, beforeID, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, chatID int, readerID int) (int64, error) {
	args := m.Called(ctx, chatID, readerID)
	return args.Get(0).(int64), args.Error(1)
}

type SocialRepositoryMock struct {
	mock.Mock
}

func (m *SocialRepositoryMock) AddFavorite(ctx context.Context, userID, targetID int) (models.Favorite, error) {
	args := m.Called(ctx, userID, targetID)
	var fav models.Favorite
	if val := args.Get(0); val != nil {
		fav = val.(models.Favorite)
	}
	return fav, args.Error(1)
}

func (m *SocialRepositoryMock) RemoveFavorite(ctx context.Context, userID, targetID int) error {
	args := m.Called(ctx, userID, targetID)
	return args.Error(0)
}

func (m *SocialRepositoryMock) ListFavorites(ctx context.Context, userID int) ([]models.ViewerEntry, error) {
	args := m.Called(ctx, userID)
	return entries(args.Get(0)), args.Error(1)
}

func (m *SocialRepositoryMock) ListFans(ctx context.Context, userID int) ([]models.ViewerEntry, error) {
	args := m.Called(ctx, userID)
	return entries(args.Get(0)), args.Error(1)
}

func (m *SocialRepositoryMock) RecordView(ctx context.Context, viewerID, viewedID int) (models.ProfileView, error) {
	args := m.Called(ctx, viewerID, viewedID)
	var view models.ProfileView
	if val := args.Get(0); val != nil {
		view = val.(models.ProfileView)
	}
	return view, args.Error(1)
}

func (m *SocialRepositoryMock) ListViewers(ctx context.Context, viewedID int, limit int) ([]models.ViewerEntry, error) {
	args := m.Called(ctx, viewedID, limit)
	return entries(args.Get(0)), args.Error(1)
}

// entries copies the stored list so callers may mutate the result.
func entries(val any) []models.ViewerEntry {
	if val == nil {
		return nil
	}
	src := val.([]models.ViewerEntry)
	out := make([]models.ViewerEntry, len(src))
	copy(out, src)
	return out
}

type ActivityRepositoryMock struct {
	mock.Mock
}

func (m *ActivityRepositoryMock) CreateActivity(ctx context.Context, accountID int, actionType, description string) (models.Activity, error) {
	args := m.Called(ctx, accountID, actionType, description)
	var a models.Activity
	if val := args.Get(0); val != nil {
		a = val.(models.Activity)
	}
	return a, args.Error(1)
}

func (m *ActivityRepositoryMock) ListRecent(ctx context.Context, limit int) ([]models.Activity, error) {
	args := m.Called(ctx, limit)
	var out []models.Activity
	if val := args.Get(0); val != nil {
		out = val.([]models.Activity)
	}
	return out, args.Error(1)
}

type RecorderMock struct {
	mock.Mock
}

func (m *RecorderMock) Record(ctx context.Context, accountID int, actionType, description string) (models.Activity, error) {
	args := m.Called(ctx, accountID, actionType, description)
	var a models.Activity
	if val := args.Get(0); val != nil {
		a = val.(models.Activity)
	}
	return a, args.Error(1)
}

type MediaStoreMock struct {
	mock.Mock
}

func (m *MediaStoreMock) StoreAndGetURL(ctx context.Context, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, data, contentType)
	return args.String(0), args.Error(1)
}

type VerifierMock struct {
	mock.Mock
}

func (m *VerifierMock) VerifyToken(ctx context.Context, token string) (models.Identity, error) {
	args := m.Called(ctx, token)
	var id models.Identity
	if val := args.Get(0); val != nil {
		id = val.(models.Identity)
	}
	return id, args.Error(1)
}
