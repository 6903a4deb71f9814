package messaging

import (
	"context"
	"errors"

	"messaging-service/internal/apperr"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// StartChat returns the conversation between actor and operatorID, creating it
// on first contact.
func (p *Pipeline) StartChat(ctx context.Context, actor models.Identity, operatorID int) (models.Chat, bool, error) {
	if actor.ID == operatorID {
		return models.Chat{}, false, apperr.InvalidArg("cannot start a chat with yourself")
	}
	peer, err := p.accounts.GetAccount(ctx, operatorID)
	if errors.Is(err, repositories.ErrAccountNotFound) {
		return models.Chat{}, false, apperr.NotFound("operator not found")
	}
	if err != nil {
		return models.Chat{}, false, apperr.Unavailable("account lookup failed", err)
	}
	if peer.Role != models.RoleOperator {
		return models.Chat{}, false, apperr.FailedPrecondition("chats can only be started with an operator")
	}

	chat, created, err := p.chats.CreateOrGetChat(ctx, actor.ID, operatorID)
	switch {
	case errors.Is(err, repositories.ErrAccountNotFound):
		return models.Chat{}, false, apperr.NotFound("account not found")
	case errors.Is(err, repositories.ErrSelfReference):
		return models.Chat{}, false, apperr.InvalidArg("cannot start a chat with yourself")
	case err != nil:
		return models.Chat{}, false, apperr.Unavailable("chat creation failed", err)
	}
	return chat, created, nil
}

// ListChats returns the caller's conversations, most recent activity first.
func (p *Pipeline) ListChats(ctx context.Context, accountID int) ([]models.ChatSummary, error) {
	chats, err := p.chats.ListChats(ctx, accountID)
	if err != nil {
		return nil, apperr.Unavailable("failed to load chats", err)
	}
	return chats, nil
}

// History returns a page of persisted messages. Staff may read any chat.
func (p *Pipeline) History(ctx context.Context, actor models.Identity, chatID int, beforeID int64, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	if _, err := p.Authorize(ctx, chatID, actor.ID); err != nil {
		if !(actor.Role.IsStaff() && apperr.CodeOf(err) == apperr.CodePermissionDenied) {
			return nil, err
		}
	}
	msgs, err := p.messages.ListMessages(ctx, chatID, beforeID, limit)
	if err != nil {
		return nil, apperr.Unavailable("failed to load messages", err)
	}
	return msgs, nil
}

// MarkRead flags the peer's messages as read and notifies the room.
func (p *Pipeline) MarkRead(ctx context.Context, chatID, readerID int) (int64, error) {
	if _, err := p.Authorize(ctx, chatID, readerID); err != nil {
		return 0, err
	}
	n, err := p.messages.MarkRead(ctx, chatID, readerID)
	if err != nil {
		return 0, apperr.Unavailable("failed to mark messages read", err)
	}
	if n > 0 && p.broadcaster != nil {
		p.broadcaster.BroadcastRead(chatID, readerID, n)
	}
	return n, nil
}
