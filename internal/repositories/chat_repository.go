package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatRepository abstracts conversation persistence.
type ChatRepository interface {
	CreateOrGetChat(ctx context.Context, userID int, operatorID int) (models.Chat, bool, error)
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	ListChats(ctx context.Context, accountID int) ([]models.ChatSummary, error)
	UpdateLastMessage(ctx context.Context, chatID int, preview string, at time.Time) error
}

const chatColumns = `id, user_id, operator_id, last_message_preview, last_message_at, created_at`

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// CreateOrGetChat returns the conversation for the pair, creating it on first contact.
// The boolean reports whether a row was created.
func (r *ChatRepo) CreateOrGetChat(ctx context.Context, userID int, operatorID int) (models.Chat, bool, error) {
	if userID == operatorID {
		return models.Chat{}, false, ErrSelfReference
	}

	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `INSERT INTO chats (user_id, operator_id) VALUES ($1, $2)
        ON CONFLICT (user_id, operator_id) DO NOTHING
        RETURNING `+chatColumns, userID, operatorID)
	if err == nil {
		return chat, true, nil
	}
	if pqCode(err) == pqForeignKeyViolation {
		return models.Chat{}, false, ErrAccountNotFound
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, false, err
	}

	// Conflict: the pair already has a conversation.
	err = r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE user_id=$1 AND operator_id=$2`, userID, operatorID)
	return chat, false, err
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// ListChats returns the account's conversations, most recently active first.
func (r *ChatRepo) ListChats(ctx context.Context, accountID int) ([]models.ChatSummary, error) {
	query := `SELECT c.id,
            CASE WHEN c.user_id=$1 THEN c.operator_id ELSE c.user_id END AS peer_id,
            COALESCE(a.display_name, '') AS peer_name,
            COALESCE(a.avatar_url, '') AS peer_avatar_url,
            c.last_message_preview, c.last_message_at, c.created_at
        FROM chats c
        LEFT JOIN accounts a ON a.id = CASE WHEN c.user_id=$1 THEN c.operator_id ELSE c.user_id END
        WHERE c.user_id=$1 OR c.operator_id=$1
        ORDER BY COALESCE(c.last_message_at, c.created_at) DESC, c.id DESC`
	result := []models.ChatSummary{}
	err := r.db.SelectContext(ctx, &result, query, accountID)
	return result, err
}

// UpdateLastMessage refreshes the denormalized listing fields. Older timestamps never win.
func (r *ChatRepo) UpdateLastMessage(ctx context.Context, chatID int, preview string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chats SET last_message_preview=$2, last_message_at=$3
        WHERE id=$1 AND (last_message_at IS NULL OR last_message_at <= $3)`, chatID, preview, at)
	if err != nil {
		return err
	}
	_, err = res.RowsAffected()
	return err
}
