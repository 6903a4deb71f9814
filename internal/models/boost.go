package models

import "time"

// Boost is one purchased visibility window. Rows are never updated.
type Boost struct {
	ID        int64     `db:"id" json:"id"`
	AccountID int       `db:"account_id" json:"account_id"`
	StartTime time.Time `db:"start_time" json:"start_time"`
	EndTime   time.Time `db:"end_time" json:"end_time"`
}

// BoostWindow is the interval to insert for a new boost.
type BoostWindow struct {
	Start time.Time
	End   time.Time
}

// BoostStatus is derived at read time from unexpired rows.
type BoostStatus struct {
	IsBoosted bool       `json:"isBoosted"`
	EndTime   *time.Time `json:"endTime,omitempty"`
}
