package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

const analyticsSweepBatch = 200

type AnalyticsService interface {
	Sync(ctx context.Context, post *models.Post) (models.Analytics, error)
	GetPostAnalytics(ctx context.Context, userID int64, postID string, force bool) (*models.Analytics, error)
	SyncAll(ctx context.Context) (*transfer.SweepSummary, error)
}

type analyticsService struct {
	posts      repository.PostRepository
	accounts   repository.SocialAccountRepository
	tokens     TokenService
	fetchers   map[models.Platform]MetricsFetcher
	readFresh  time.Duration
	sweepFresh time.Duration
	now        Clock
}

func NewAnalyticsService(
	posts repository.PostRepository,
	accounts repository.SocialAccountRepository,
	tokens TokenService,
	readFresh, sweepFresh time.Duration,
	publishers ...PlatformPublisher) AnalyticsService {
	fetchers := make(map[models.Platform]MetricsFetcher)
	for _, p := range publishers {
		if f, ok := p.(MetricsFetcher); ok {
			fetchers[p.Platform()] = f
		}
	}
	return &analyticsService{
		posts:      posts,
		accounts:   accounts,
		tokens:     tokens,
		fetchers:   fetchers,
		readFresh:  readFresh,
		sweepFresh: sweepFresh,
		now:        time.Now,
	}
}

// Sync pulls metrics from every targeted platform that exposes them and
// persists the merged record with a new sync time. Platforms that fail keep
// their previous metrics; Sync fails only when nothing could be synced.
func (s *analyticsService) Sync(ctx context.Context, post *models.Post) (models.Analytics, error) {
	analytics := post.Analytics
	synced := 0
	var firstErr error

	for _, platform := range post.Platforms.Platforms() {
		fetcher, ok := s.fetchers[platform]
		if !ok {
			continue
		}
		platformPostID := post.PlatformPostID(platform)
		if platformPostID == "" {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", platform, ErrNotPublished)
			}
			continue
		}

		if err := s.syncPlatform(ctx, post.UserID, platform, platformPostID, fetcher, &analytics); err != nil {
			slog.Info("analytics sync failed", "post_id", post.ID, "platform", platform.String(), "error", err.Error())
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		synced++
	}

	if synced == 0 {
		if firstErr == nil {
			firstErr = ErrNotPublished
		}
		return post.Analytics, firstErr
	}

	now := s.now()
	analytics.LastSynced = &now
	if err := s.posts.UpdateAnalytics(ctx, post.ID, analytics); err != nil {
		return post.Analytics, err
	}
	post.Analytics = analytics
	return analytics, nil
}

func (s *analyticsService) syncPlatform(ctx context.Context, userID int64, platform models.Platform, platformPostID string, fetcher MetricsFetcher, into *models.Analytics) error {
	acc, err := s.accounts.GetByUserAndPlatform(ctx, userID, platform)
	if err != nil {
		return err
	}
	if !acc.Connected() {
		return fmt.Errorf("%s: %w", platform, ErrNotConnected)
	}

	valid, err := s.tokens.ValidAccount(ctx, *acc)
	if err != nil {
		return err
	}
	return fetcher.FetchMetrics(ctx, valid, platformPostID, into)
}

func (s *analyticsService) fresh(post *models.Post, window time.Duration) bool {
	last := post.Analytics.LastSynced
	return last != nil && s.now().Sub(*last) < window
}

// GetPostAnalytics returns stored metrics, re-syncing published posts whose
// metrics are older than the read freshness window or when forced.
func (s *analyticsService) GetPostAnalytics(ctx context.Context, userID int64, postID string, force bool) (*models.Analytics, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrNotFound
	}
	if post.UserID != userID {
		return nil, ErrNotAuthorized
	}

	if post.Status != models.PostStatusPublished || (!force && s.fresh(post, s.readFresh)) {
		return &post.Analytics, nil
	}

	analytics, err := s.Sync(ctx, post)
	if err != nil {
		return nil, err
	}
	return &analytics, nil
}

// SyncAll refreshes published posts whose metrics are older than the sweep
// freshness window. One post's failure never fails the run.
func (s *analyticsService) SyncAll(ctx context.Context) (*transfer.SweepSummary, error) {
	summary := transfer.NewSweepSummary()

	seen := make(map[string]struct{})
	var posts []*models.Post
	for _, platform := range models.AllPlatforms {
		if _, ok := s.fetchers[platform]; !ok {
			continue
		}
		batch, err := s.posts.ListWithPlatformPost(ctx, platform, analyticsSweepBatch)
		if err != nil {
			return nil, err
		}
		for _, post := range batch {
			if _, dup := seen[post.ID]; dup {
				continue
			}
			seen[post.ID] = struct{}{}
			posts = append(posts, post)
		}
	}

	for _, post := range posts {
		summary.Total++
		if s.fresh(post, s.sweepFresh) {
			summary.Skipped++
			continue
		}
		if _, err := s.Sync(ctx, post); err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, transfer.SweepError{PostID: post.ID, Error: err.Error()})
			continue
		}
		summary.Succeeded++
	}

	slog.Info("analytics sweep finished", "run_id", summary.RunID.String(), "total", summary.Total,
		"succeeded", summary.Succeeded, "skipped", summary.Skipped, "failed", summary.Failed)
	return summary, nil
}
