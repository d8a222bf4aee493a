package models

import "time"

type Analytics struct {
	Snapchat   SnapchatMetrics  `json:"snapchat"`
	Instagram  InstagramMetrics `json:"instagram"`
	Youtube    YoutubeMetrics   `json:"youtube"`
	LastSynced *time.Time       `json:"last_synced,omitempty"`
}

type SnapchatMetrics struct {
	Views       int64 `json:"views"`
	Impressions int64 `json:"impressions"`
	Reach       int64 `json:"reach"`
}

type InstagramMetrics struct {
	Likes       int64 `json:"likes"`
	Comments    int64 `json:"comments"`
	Saves       int64 `json:"saves"`
	Reach       int64 `json:"reach"`
	Impressions int64 `json:"impressions"`
	Engagement  int64 `json:"engagement"`
}

type YoutubeMetrics struct {
	Views     int64 `json:"views"`
	Likes     int64 `json:"likes"`
	Comments  int64 `json:"comments"`
	WatchTime int64 `json:"watch_time"`
}
