package model

import (
	"time"
)

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

type User struct {
	ID           int64      `db:"id" json:"id,string"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Salt         string     `db:"salt" json:"-"`
	Status       UserStatus `db:"status" json:"status"`
	LoginCount   int64      `db:"login_count" json:"login_count"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at"`
	LastLoginIP  *string    `db:"last_login_ip" json:"last_login_ip"`
	RegisterIP   *string    `db:"register_ip" json:"-"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at" json:"-"`
}

func (u *User) IsActive() bool {
	return u.Status == UserStatusActive && u.DeletedAt == nil
}

func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}
