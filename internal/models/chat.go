package models

import "time"

// Chat is the conversation between a paying user and an operator.
type Chat struct {
	ID                 int        `db:"id" json:"id"`
	UserID             int        `db:"user_id" json:"user_id"`
	OperatorID         int        `db:"operator_id" json:"operator_id"`
	LastMessagePreview string     `db:"last_message_preview" json:"last_message_preview"`
	LastMessageAt      *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
}

// HasParticipant reports whether accountID is one side of the chat.
func (c Chat) HasParticipant(accountID int) bool {
	return c.UserID == accountID || c.OperatorID == accountID
}

// IsOperator reports whether accountID is the cost-exempt side of the chat.
func (c Chat) IsOperator(accountID int) bool {
	return c.OperatorID == accountID
}

// PeerOf returns the other participant.
func (c Chat) PeerOf(accountID int) int {
	if c.UserID == accountID {
		return c.OperatorID
	}
	return c.UserID
}

// ChatSummary provides API-friendly view of a chat for a user.
type ChatSummary struct {
	ChatID             int        `db:"id" json:"chat_id"`
	PeerID             int        `db:"peer_id" json:"peer_id"`
	PeerName           string     `db:"peer_name" json:"peer_name"`
	PeerAvatarURL      string     `db:"peer_avatar_url" json:"peer_avatar_url"`
	LastMessagePreview string     `db:"last_message_preview" json:"last_message_preview"`
	LastMessageAt      *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
}
