package model

import (
	"time"
)

type AccessLog struct {
	ID         int64     `db:"id" json:"id,string"`
	ContentID  int64     `db:"content_id" json:"content_id,string"`
	UserID     *int64    `db:"user_id" json:"user_id,string"`
	AccessIP   *string   `db:"access_ip" json:"access_ip"`
	UserAgent  *string   `db:"user_agent" json:"user_agent"`
	Referer    *string   `db:"referer" json:"referer"`
	AccessedAt time.Time `db:"accessed_at" json:"accessed_at"`
}
