package models

import "time"

// Role is the account role supplied by the authentication service.
type Role string

const (
	RoleUser      Role = "user"
	RoleOperator  Role = "operator"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
)

// IsStaff reports whether the role may read unredacted data and the activity feed.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleModerator
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleOperator, RoleAdmin, RoleModerator:
		return true
	}
	return false
}

// Account is the local projection of a user with its coin balance and VIP state.
type Account struct {
	ID            int        `db:"id" json:"id"`
	DisplayName   string     `db:"display_name" json:"display_name"`
	AvatarURL     string     `db:"avatar_url" json:"avatar_url"`
	Role          Role       `db:"role" json:"role"`
	Balance       int64      `db:"balance" json:"balance"`
	VipXP         int64      `db:"vip_xp" json:"vip_xp"`
	IsVIP         bool       `db:"is_vip" json:"is_vip"`
	VipExpireDate *time.Time `db:"vip_expire_date" json:"vip_expire_date,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// Identity is what a verified token yields.
type Identity struct {
	ID          int    `json:"id"`
	Role        Role   `json:"role"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}
