package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeCode     ContentType = "code"
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypeURL      ContentType = "url"
)

func (t ContentType) Valid() bool {
	switch t {
	case ContentTypeText, ContentTypeCode, ContentTypeMarkdown, ContentTypeURL:
		return true
	}
	return false
}

type AccessType string

const (
	AccessTypePrivate  AccessType = "private"
	AccessTypePublic   AccessType = "public"
	AccessTypeUnlisted AccessType = "unlisted"
)

func (t AccessType) Valid() bool {
	switch t {
	case AccessTypePrivate, AccessTypePublic, AccessTypeUnlisted:
		return true
	}
	return false
}

type Clip struct {
	ID            int64       `db:"id" json:"id,string"`
	UserID        int64       `db:"user_id" json:"user_id,string"`
	Title         *string     `db:"title" json:"title"`
	Content       string      `db:"content" json:"content"`
	ContentType   ContentType `db:"content_type" json:"content_type"`
	IsEncrypted   bool        `db:"is_encrypted" json:"is_encrypted"`
	EncryptionKey *string     `db:"encryption_key" json:"encryption_key,omitempty"`
	AccessType    AccessType  `db:"access_type" json:"access_type"`
	ExpiresAt     *time.Time  `db:"expires_at" json:"expires_at"`
	ShortURL      string      `db:"short_url" json:"short_url"`
	Tags          TagList     `db:"tags" json:"tags"`
	ViewCount     int64       `db:"view_count" json:"view_count"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
	DeletedAt     *time.Time  `db:"deleted_at" json:"-"`
}

func (c *Clip) IsExpired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}

func (c *Clip) IsDeleted() bool {
	return c.DeletedAt != nil
}

func (c *Clip) IsOwnedBy(userID *int64) bool {
	return userID != nil && *userID == c.UserID
}

// TagList is the set of tag names attached to a clip, persisted as a JSON
// array in clip_contents.tags.
type TagList []string

func (l TagList) Contains(name string) bool {
	return slices.Contains(l, name)
}

// Value always encodes a non-nil array so compare-and-swap updates on the
// column see a stable representation.
func (l TagList) Value() (driver.Value, error) {
	if l == nil {
		l = TagList{}
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *TagList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = TagList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("tag list: unsupported type %T", src)
	}

	if len(raw) == 0 {
		*l = TagList{}
		return nil
	}

	var names []string
	err := json.Unmarshal(raw, &names)
	if err != nil {
		return fmt.Errorf("tag list: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	*l = names
	return nil
}

// MarshalJSON renders a nil list as [] rather than null.
func (l TagList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}
