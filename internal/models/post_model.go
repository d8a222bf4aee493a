package models

import "time"

type MediaType string

const (
	MediaTypeNone  MediaType = "none"
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

type Post struct {
	ID              string      `db:"id" json:"id"`
	UserID          int64       `db:"user_id" json:"user_id"`
	Title           string      `db:"title" json:"title"`
	Content         string      `db:"content" json:"content"`
	MediaURL        string      `db:"media_url" json:"media_url,omitempty"`
	MediaType       MediaType   `db:"media_type" json:"media_type"`
	Platforms       PlatformSet `db:"platforms" json:"platforms"`
	Status          string      `db:"status" json:"status"` // draft, scheduled, published, failed
	ScheduledFor    *time.Time  `db:"scheduled_for" json:"scheduled_for,omitempty"`
	PublishedAt     *time.Time  `db:"published_at" json:"published_at,omitempty"`
	SnapchatPostID  string      `db:"snapchat_post_id" json:"snapchat_post_id,omitempty"`
	InstagramPostID string      `db:"instagram_post_id" json:"instagram_post_id,omitempty"`
	YoutubeVideoID  string      `db:"youtube_video_id" json:"youtube_video_id,omitempty"`
	Analytics       Analytics   `db:"analytics" json:"analytics"`
	Error           *PostError  `db:"error" json:"error,omitempty"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

type PostError struct {
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

// HasMedia reports whether the post references hosted media.
func (p *Post) HasMedia() bool {
	return p.MediaURL != "" && p.MediaType != MediaTypeNone && p.MediaType != ""
}

func (p *Post) PlatformPostID(platform Platform) string {
	switch platform {
	case PlatformSnapchat:
		return p.SnapchatPostID
	case PlatformInstagram:
		return p.InstagramPostID
	case PlatformYoutube:
		return p.YoutubeVideoID
	}
	return ""
}

func (p *Post) SetPlatformPostID(platform Platform, id string) {
	switch platform {
	case PlatformSnapchat:
		p.SnapchatPostID = id
	case PlatformInstagram:
		p.InstagramPostID = id
	case PlatformYoutube:
		p.YoutubeVideoID = id
	}
}

const (
	PostStatusDraft     = "draft"
	PostStatusScheduled = "scheduled"
	PostStatusPublished = "published"
	PostStatusFailed    = "failed"
)
