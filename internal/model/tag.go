package model

import (
	"time"
)

type Tag struct {
	ID         int64     `db:"id" json:"id,string"`
	Name       string    `db:"name" json:"name"`
	UserID     int64     `db:"user_id" json:"user_id,string"`
	UsageCount int64     `db:"usage_count" json:"usage_count"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
