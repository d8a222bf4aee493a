package transfer

import "time"

type PostCreation struct {
	Title        string     `json:"title" validate:"required,max=300"`
	Content      string     `json:"content" validate:"max=5000"`
	MediaURL     string     `json:"media_url" validate:"omitempty,url"`
	MediaType    string     `json:"media_type" validate:"omitempty,oneof=image video none"`
	Platforms    string     `json:"platforms" validate:"required"`
	ScheduledFor *time.Time `json:"scheduled_for"`
}

type PostUpdate struct {
	Title        *string    `json:"title" validate:"omitempty,max=300"`
	Content      *string    `json:"content" validate:"omitempty,max=5000"`
	MediaURL     *string    `json:"media_url" validate:"omitempty,url"`
	MediaType    *string    `json:"media_type" validate:"omitempty,oneof=image video none"`
	Platforms    *string    `json:"platforms"`
	Status       *string    `json:"status" validate:"omitempty,oneof=draft scheduled"`
	ScheduledFor *time.Time `json:"scheduled_for"`
}
