package models

import "time"

// Favorite is a directed like edge.
type Favorite struct {
	UserID       int       `db:"user_id" json:"user_id"`
	TargetUserID int       `db:"target_user_id" json:"target_user_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ProfileView is one view event; a pair may have many.
type ProfileView struct {
	ID           int64     `db:"id" json:"id"`
	ViewerID     int       `db:"viewer_id" json:"viewer_id"`
	ViewedUserID int       `db:"viewed_user_id" json:"viewed_user_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ViewerEntry is one row of a favorites/fans/viewers list.
type ViewerEntry struct {
	UserID      int       `db:"user_id" json:"user_id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	AvatarURL   string    `db:"avatar_url" json:"avatar_url"`
	IsOnline    bool      `db:"-" json:"is_online"`
	At          time.Time `db:"at" json:"at"`
	IsBlurred   bool      `db:"-" json:"is_blurred"`
}
