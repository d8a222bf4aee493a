package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

const (
	msgPublishedAll     = "Post published successfully to all platforms"
	msgPublishedPartial = "Post published to some platforms"
	msgFailedAll        = "Failed to publish to all platforms"
)

type PublishService interface {
	Publish(ctx context.Context, userID int64, postID string) (*transfer.PublishResponse, error)
	PublishPost(ctx context.Context, post *models.Post) (*transfer.PublishResponse, error)
}

type publishService struct {
	posts      repository.PostRepository
	accounts   repository.SocialAccountRepository
	subs       repository.SubscriptionRepository
	attempts   repository.PublishAttemptRepository
	locks      repository.PublishLockRepository
	tokens     TokenService
	publishers map[models.Platform]PlatformPublisher
	lockTTL    time.Duration
	now        Clock
}

func NewPublishService(
	posts repository.PostRepository,
	accounts repository.SocialAccountRepository,
	subs repository.SubscriptionRepository,
	attempts repository.PublishAttemptRepository,
	locks repository.PublishLockRepository,
	tokens TokenService,
	lockTTL time.Duration,
	publishers ...PlatformPublisher) PublishService {
	byPlatform := make(map[models.Platform]PlatformPublisher, len(publishers))
	for _, p := range publishers {
		byPlatform[p.Platform()] = p
	}
	return &publishService{
		posts:      posts,
		accounts:   accounts,
		subs:       subs,
		attempts:   attempts,
		locks:      locks,
		tokens:     tokens,
		publishers: byPlatform,
		lockTTL:    lockTTL,
		now:        time.Now,
	}
}

func (s *publishService) Publish(ctx context.Context, userID int64, postID string) (*transfer.PublishResponse, error) {
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
	return s.PublishPost(ctx, post)
}

type platformOutcome struct {
	platform models.Platform
	postID   string
	err      error
}

// PublishPost checks preconditions, publishes to every targeted platform
// concurrently and commits one status for the post. A precondition failure
// is returned as a *PreconditionError and leaves the post untouched. The
// checks run again on a fresh read once the lease is held, so a stale copy
// cannot publish twice.
func (s *publishService) PublishPost(ctx context.Context, post *models.Post) (*transfer.PublishResponse, error) {
	if _, err := s.checkPreconditions(ctx, post); err != nil {
		return nil, err
	}

	release, ok, err := s.locks.Acquire(ctx, post.ID, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire publish lease: %w", err)
	}
	if !ok {
		return nil, reject(ErrPublishInProgress)
	}
	defer release()

	// Another run may have finished between the caller's read and the lease.
	current, err := s.posts.GetByID(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNotFound
	}
	accounts, err := s.checkPreconditions(ctx, current)
	if err != nil {
		return nil, err
	}

	targets := current.Platforms.Platforms()
	outcomes := make([]platformOutcome, len(targets))

	var wg sync.WaitGroup
	for i, platform := range targets {
		wg.Add(1)
		go func(i int, platform models.Platform) {
			defer wg.Done()
			outcomes[i] = s.publishTo(ctx, accounts[platform], current)
		}(i, platform)
	}
	wg.Wait()

	fromStatus := current.Status
	now := s.now()
	updated, resp := s.resolve(current, outcomes, now)

	applied, err := s.posts.FinalizePublish(ctx, updated, fromStatus, updated.Status == models.PostStatusPublished, now)
	if err != nil {
		slog.Error("failed to persist publish result", "post_id", post.ID, "error", err.Error(), "results", resp.Results)
		return nil, err
	}
	if !applied {
		slog.Error("post status changed during publish", "post_id", post.ID, "from_status", fromStatus, "results", resp.Results)
		return nil, ErrPublishConflict
	}
	*post = *updated

	s.recordAttempts(ctx, post, outcomes)

	slog.Info("publish finished", "post_id", post.ID, "user_id", post.UserID, "status", post.Status, "platforms", post.Platforms.String())
	return resp, nil
}

// checkPreconditions runs the ordered publish checks and returns the
// connected account of every target.
func (s *publishService) checkPreconditions(ctx context.Context, post *models.Post) (map[models.Platform]models.SocialAccount, error) {
	if post.Status == models.PostStatusPublished {
		return nil, reject(ErrAlreadyPublished)
	}

	targets := post.Platforms.Platforms()
	if len(targets) == 0 {
		return nil, reject(fmt.Errorf("%w: post has no target platforms", ErrInvalidInput))
	}

	accounts := make(map[models.Platform]models.SocialAccount, len(targets))
	for _, platform := range targets {
		acc, err := s.accounts.GetByUserAndPlatform(ctx, post.UserID, platform)
		if err != nil {
			return nil, err
		}
		if !acc.Connected() {
			return nil, rejectFor(platform, ErrNotConnected)
		}
		if _, ok := s.publishers[platform]; !ok {
			return nil, rejectFor(platform, fmt.Errorf("%w: publishing is not configured", ErrInvalidInput))
		}
		accounts[platform] = *acc
	}

	if post.Platforms.Has(models.PlatformYoutube) && post.MediaType != models.MediaTypeVideo {
		return nil, reject(ErrYoutubeVideoOnly)
	}

	sub, found, err := s.subs.GetByUserID(ctx, post.UserID)
	if err != nil {
		return nil, err
	}
	if !found {
		sub = &models.Subscription{Plan: "free", MonthlyPostLimit: repository.FreePlanMonthlyPosts}
	}
	if !sub.CanPublish(s.now()) {
		return nil, reject(ErrUsageLimitReached)
	}

	if !post.HasMedia() {
		return nil, reject(ErrMediaRequired)
	}
	return accounts, nil
}

func (s *publishService) publishTo(ctx context.Context, acc models.SocialAccount, post *models.Post) (out platformOutcome) {
	out.platform = acc.Platform
	defer func() {
		if r := recover(); r != nil {
			out.err = platformErr(acc.Platform, "publish", fmt.Sprintf("panic: %v", r))
		}
	}()

	acc, err := s.tokens.ValidAccount(ctx, acc)
	if err != nil {
		out.err = err
		return out
	}

	out.postID, out.err = s.publishers[acc.Platform].Publish(ctx, acc, post)
	if out.err == nil && out.postID == "" {
		out.err = platformErr(acc.Platform, "publish", "no post id returned")
	}
	if out.err != nil {
		slog.Info("platform publish failed", "post_id", post.ID, "platform", acc.Platform.String(), "error", out.err.Error())
	}
	return out
}

// resolve reduces per-platform outcomes into the post's next state. Any
// success publishes the post; only a total failure marks it failed.
func (s *publishService) resolve(post *models.Post, outcomes []platformOutcome, now time.Time) (*models.Post, *transfer.PublishResponse) {
	updated := *post
	resp := &transfer.PublishResponse{
		PostID:  post.ID,
		Results: make(map[string]transfer.PlatformResult, len(outcomes)),
	}

	var failed []platformOutcome
	for _, o := range outcomes {
		if o.err != nil {
			failed = append(failed, o)
			resp.Results[o.platform.String()] = transfer.PlatformResult{
				Success:   false,
				Error:     failureMessage(o.err),
				ErrorCode: errorCode(o.err),
			}
			resp.Errors = append(resp.Errors, transfer.PlatformFailure{
				Platform: o.platform.String(),
				Error:    failureMessage(o.err),
			})
			continue
		}
		updated.SetPlatformPostID(o.platform, o.postID)
		resp.Results[o.platform.String()] = transfer.PlatformResult{Success: true, PlatformPostID: o.postID}
	}

	switch {
	case len(failed) == 0:
		updated.Status = models.PostStatusPublished
		updated.PublishedAt = &now
		updated.Error = nil
		resp.Message = msgPublishedAll
	case len(failed) < len(outcomes):
		updated.Status = models.PostStatusPublished
		updated.PublishedAt = &now
		updated.Error = nil
		resp.Message = msgPublishedPartial
	case len(outcomes) == 1:
		updated.Status = models.PostStatusFailed
		updated.Error = &models.PostError{
			Message:   failureMessage(failed[0].err),
			Code:      errorCode(failed[0].err),
			Timestamp: now,
		}
		resp.Message = updated.Error.Message
	default:
		updated.Status = models.PostStatusFailed
		updated.Error = &models.PostError{
			Message:   msgFailedAll,
			Code:      commonErrorCode(failed),
			Timestamp: now,
		}
		resp.Message = msgFailedAll
	}

	resp.Status = updated.Status
	return &updated, resp
}

func (s *publishService) recordAttempts(ctx context.Context, post *models.Post, outcomes []platformOutcome) {
	for _, o := range outcomes {
		attempt := &models.PublishAttempt{
			UserID:         post.UserID,
			PostID:         post.ID,
			Platform:       o.platform,
			Success:        o.err == nil,
			PlatformPostID: o.postID,
		}
		if o.err != nil {
			attempt.ErrorMessage = failureMessage(o.err)
			attempt.ErrorCode = errorCode(o.err)
		}
		if _, err := s.attempts.Create(ctx, attempt); err != nil {
			slog.Info("failed to record publish attempt", "post_id", post.ID, "platform", o.platform.String(), "error", err.Error())
		}
	}
}

// failureMessage is the platform's own message when one was captured.
func failureMessage(err error) string {
	var pe *PlatformError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return err.Error()
}

func commonErrorCode(failed []platformOutcome) string {
	code := errorCode(failed[0].err)
	for _, o := range failed[1:] {
		if errorCode(o.err) != code {
			return "PUBLISH_FAILED"
		}
	}
	return code
}
