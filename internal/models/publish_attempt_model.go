package models

import "time"

// PublishAttempt records the outcome of one platform within a publish run.
type PublishAttempt struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	PostID         string    `db:"post_id" json:"post_id"`
	Platform       Platform  `db:"platform" json:"platform"`
	Success        bool      `db:"success" json:"success"`
	PlatformPostID string    `db:"platform_post_id" json:"platform_post_id,omitempty"`
	ErrorMessage   string    `db:"error_message" json:"error_message,omitempty"`
	ErrorCode      string    `db:"error_code" json:"error_code,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
