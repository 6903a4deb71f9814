package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

// NewMessage is the data persisted for one pipeline send.
type NewMessage struct {
	ChatID   int
	SenderID int
	Kind     models.MessageKind
	Content  string
	Cost     int64
	// DedupKey makes retried inserts return the row already stored.
	DedupKey string
}

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg NewMessage) (models.Message, error)
	ListMessages(ctx context.Context, chatID int, beforeID int64, limit int) ([]models.Message, error)
	MarkRead(ctx context.Context, chatID int, readerID int) (int64, error)
}

const messageColumns = `id, chat_id, sender_id, kind, gift_tier, content, cost, is_read, created_at`

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message. The returned id fixes its position in the chat.
// A repeated DedupKey returns the existing row instead of inserting again.
func (r *MessageRepo) CreateMessage(ctx context.Context, in NewMessage) (models.Message, error) {
	var tier *int
	if in.Kind.Tag == models.KindGift {
		t := in.Kind.Tier
		tier = &t
	}
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `INSERT INTO messages (chat_id, sender_id, kind, gift_tier, content, cost, dedup_key)
        VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
        ON CONFLICT (dedup_key) DO UPDATE SET dedup_key = EXCLUDED.dedup_key
        RETURNING `+messageColumns,
		in.ChatID, in.SenderID, string(in.Kind.Tag), tier, in.Content, in.Cost, in.DedupKey)
	return msg, err
}

// ListMessages returns up to limit messages older than beforeID in persisted order.
// A zero beforeID starts from the newest message.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID int, beforeID int64, limit int) ([]models.Message, error) {
	query := `SELECT * FROM (
            SELECT ` + messageColumns + ` FROM messages
            WHERE chat_id=$1 AND ($2 = 0 OR id < $2)
            ORDER BY id DESC LIMIT $3
        ) page ORDER BY id ASC`
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, query, chatID, beforeID, limit)
	return msgs, err
}

// MarkRead flags every message not sent by readerID as read and returns how many changed.
func (r *MessageRepo) MarkRead(ctx context.Context, chatID int, readerID int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read = TRUE
        WHERE chat_id=$1 AND sender_id<>$2 AND is_read = FALSE`, chatID, readerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
