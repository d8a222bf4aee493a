package service

import (
	"context"

	"github.com/maheshrc27/crosspost/internal/models"
)

// PlatformPublisher runs one platform's publish protocol. The account's
// access token must already be valid; Publish returns the platform post id.
type PlatformPublisher interface {
	Platform() models.Platform
	Publish(ctx context.Context, acc models.SocialAccount, post *models.Post) (string, error)
}

// PlatformRemover is implemented by publishers whose platform can delete
// published content.
type PlatformRemover interface {
	Delete(ctx context.Context, acc models.SocialAccount, platformPostID string) error
}

// MetricsFetcher is implemented by publishers whose platform exposes post
// level metrics.
type MetricsFetcher interface {
	FetchMetrics(ctx context.Context, acc models.SocialAccount, platformPostID string, into *models.Analytics) error
}
