package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const cleanupTimeout = 2 * time.Minute

type PostService interface {
	Create(ctx context.Context, userID int64, pc *transfer.PostCreation) (*models.Post, time.Duration, error)
	List(ctx context.Context, userID int64) ([]*models.Post, error)
	Get(ctx context.Context, userID int64, postID string) (*models.Post, error)
	Update(ctx context.Context, userID int64, postID string, pu *transfer.PostUpdate) (*models.Post, time.Duration, error)
	Remove(ctx context.Context, userID int64, postID string) error
	Attempts(ctx context.Context, userID int64, postID string) ([]*models.PublishAttempt, error)
}

type postService struct {
	pr       repository.PostRepository
	ac       repository.SocialAccountRepository
	attempts repository.PublishAttemptRepository
	tokens   TokenService
	removers map[models.Platform]PlatformRemover
	now      Clock
}

func NewPostService(
	pr repository.PostRepository,
	ac repository.SocialAccountRepository,
	attempts repository.PublishAttemptRepository,
	tokens TokenService,
	publishers ...PlatformPublisher) PostService {
	removers := make(map[models.Platform]PlatformRemover)
	for _, p := range publishers {
		if r, ok := p.(PlatformRemover); ok {
			removers[p.Platform()] = r
		}
	}
	return &postService{
		pr:       pr,
		ac:       ac,
		attempts: attempts,
		tokens:   tokens,
		removers: removers,
		now:      time.Now,
	}
}

// Create stores a draft, or a scheduled post when a time is given. The
// returned delay is how long until a scheduled post is due.
func (s *postService) Create(ctx context.Context, userID int64, pc *transfer.PostCreation) (*models.Post, time.Duration, error) {
	if pc == nil {
		err := errors.New("post creation data is nil")
		slog.Info(err.Error())
		return nil, 0, err
	}
	if userID == 0 {
		return nil, 0, ErrNotAuthorized
	}

	platforms, err := models.ParsePlatformSet(pc.Platforms)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	mediaType, err := resolveMediaType(pc.MediaURL, pc.MediaType)
	if err != nil {
		return nil, 0, err
	}

	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return nil, 0, err
	}

	post := &models.Post{
		ID:        id,
		UserID:    userID,
		Title:     pc.Title,
		Content:   pc.Content,
		MediaURL:  pc.MediaURL,
		MediaType: mediaType,
		Platforms: platforms,
		Status:    models.PostStatusDraft,
	}
	if pc.ScheduledFor != nil {
		scheduled := pc.ScheduledFor.UTC()
		post.ScheduledFor = &scheduled
		post.Status = models.PostStatusScheduled
	}

	if err := s.pr.Create(ctx, post); err != nil {
		return nil, 0, fmt.Errorf("error creating post: %w", err)
	}

	slog.Info("post created", "post_id", post.ID, "user_id", userID, "status", post.Status, "platforms", platforms.String())
	return post, s.delay(post), nil
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.Post, error) {
	posts, err := s.pr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return posts, nil
}

func (s *postService) Get(ctx context.Context, userID int64, postID string) (*models.Post, error) {
	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrNotFound
	}
	if post.UserID != userID {
		return nil, ErrNotAuthorized
	}
	return post, nil
}

// Attempts lists the per-platform publish results recorded for a post,
// newest first.
func (s *postService) Attempts(ctx context.Context, userID int64, postID string) ([]*models.PublishAttempt, error) {
	post, err := s.Get(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.attempts.ListByPostID(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("error listing publish attempts: %w", err)
	}
	if attempts == nil {
		attempts = []*models.PublishAttempt{}
	}
	return attempts, nil
}

// Update edits a post that is not yet published. A failed post may be moved
// back to draft or scheduled.
func (s *postService) Update(ctx context.Context, userID int64, postID string, pu *transfer.PostUpdate) (*models.Post, time.Duration, error) {
	post, err := s.Get(ctx, userID, postID)
	if err != nil {
		return nil, 0, err
	}
	if post.Status == models.PostStatusPublished {
		return nil, 0, ErrPostImmutable
	}

	if pu.Title != nil {
		post.Title = *pu.Title
	}
	if pu.Content != nil {
		post.Content = *pu.Content
	}
	if pu.MediaURL != nil || pu.MediaType != nil {
		mediaURL, mediaType := post.MediaURL, string(post.MediaType)
		if pu.MediaURL != nil {
			mediaURL = *pu.MediaURL
			if pu.MediaType == nil {
				mediaType = ""
			}
		}
		if pu.MediaType != nil {
			mediaType = *pu.MediaType
		}
		resolved, err := resolveMediaType(mediaURL, mediaType)
		if err != nil {
			return nil, 0, err
		}
		post.MediaURL, post.MediaType = mediaURL, resolved
	}
	if pu.Platforms != nil {
		platforms, err := models.ParsePlatformSet(*pu.Platforms)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		post.Platforms = platforms
	}
	if pu.ScheduledFor != nil {
		scheduled := pu.ScheduledFor.UTC()
		post.ScheduledFor = &scheduled
	}

	if pu.Status != nil {
		post.Status = *pu.Status
	} else if pu.ScheduledFor != nil {
		post.Status = models.PostStatusScheduled
	}
	if post.Status == models.PostStatusScheduled && post.ScheduledFor == nil {
		return nil, 0, fmt.Errorf("%w: scheduled posts need scheduled_for", ErrInvalidInput)
	}
	if post.Status != models.PostStatusFailed {
		post.Error = nil
	}

	if err := s.pr.Update(ctx, post); err != nil {
		if errors.Is(err, repository.ErrNoRowsUpdated) {
			return nil, 0, ErrPostImmutable
		}
		return nil, 0, err
	}
	return post, s.delay(post), nil
}

// Remove deletes the post and then, without waiting, asks each platform to
// delete what was published there.
func (s *postService) Remove(ctx context.Context, userID int64, postID string) error {
	post, err := s.Get(ctx, userID, postID)
	if err != nil {
		return err
	}

	if err := s.pr.Remove(ctx, post.ID); err != nil {
		return fmt.Errorf("error removing post: %w", err)
	}

	go s.cleanup(post)
	return nil
}

func (s *postService) cleanup(post *models.Post) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	for _, platform := range post.Platforms.Platforms() {
		platformPostID := post.PlatformPostID(platform)
		remover, ok := s.removers[platform]
		if platformPostID == "" || !ok {
			continue
		}

		if err := s.removeFrom(ctx, post.UserID, platform, platformPostID, remover); err != nil {
			slog.Info("platform cleanup failed", "post_id", post.ID, "platform", platform.String(), "error", err.Error())
			continue
		}
		slog.Info("platform content removed", "post_id", post.ID, "platform", platform.String())
	}
}

func (s *postService) removeFrom(ctx context.Context, userID int64, platform models.Platform, platformPostID string, remover PlatformRemover) error {
	acc, err := s.ac.GetByUserAndPlatform(ctx, userID, platform)
	if err != nil {
		return err
	}
	if !acc.Connected() {
		return ErrNotConnected
	}
	valid, err := s.tokens.ValidAccount(ctx, *acc)
	if err != nil {
		return err
	}
	return remover.Delete(ctx, valid, platformPostID)
}

func (s *postService) delay(post *models.Post) time.Duration {
	if post.Status != models.PostStatusScheduled || post.ScheduledFor == nil {
		return 0
	}
	if d := post.ScheduledFor.Sub(s.now()); d > 0 {
		return d
	}
	return 0
}

// resolveMediaType validates a declared media type, or infers it from the
// URL's file extension when none is declared.
func resolveMediaType(mediaURL, declared string) (models.MediaType, error) {
	if mediaURL == "" {
		if declared != "" && declared != string(models.MediaTypeNone) {
			return "", fmt.Errorf("%w: media_type %s without media_url", ErrInvalidInput, declared)
		}
		return models.MediaTypeNone, nil
	}

	switch models.MediaType(declared) {
	case models.MediaTypeImage, models.MediaTypeVideo:
		return models.MediaType(declared), nil
	case "", models.MediaTypeNone:
	default:
		return "", fmt.Errorf("%w: unknown media_type %q", ErrInvalidInput, declared)
	}

	ext := ""
	if u, err := url.Parse(mediaURL); err == nil {
		ext = strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
	}
	switch filetype.GetType(ext).MIME.Type {
	case "video":
		return models.MediaTypeVideo, nil
	case "image":
		return models.MediaTypeImage, nil
	}
	return "", fmt.Errorf("%w: cannot infer media type of %s, set media_type", ErrInvalidInput, mediaURL)
}
