package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/crosspost/internal/models"
)

// FreePlanMonthlyPosts applies to users without a subscription row.
const FreePlanMonthlyPosts = 10

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error)
	ListDue(ctx context.Context, now time.Time, after DueCursor, limit int) ([]*models.Post, error)
	ListWithPlatformPost(ctx context.Context, platform models.Platform, limit int) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	FinalizePublish(ctx context.Context, post *models.Post, fromStatus string, countUsage bool, now time.Time) (bool, error)
	UpdateAnalytics(ctx context.Context, postID string, analytics models.Analytics) error
	Remove(ctx context.Context, id string) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, title, content, media_url, media_type, platforms, status,
	scheduled_for, published_at, snapchat_post_id, instagram_post_id, youtube_video_id,
	analytics, error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var (
		post         models.Post
		userID       sql.NullInt64
		platforms    string
		scheduledFor sql.NullTime
		publishedAt  sql.NullTime
		analytics    []byte
		postErr      []byte
	)

	err := row.Scan(&post.ID, &userID, &post.Title, &post.Content, &post.MediaURL, &post.MediaType,
		&platforms, &post.Status, &scheduledFor, &publishedAt, &post.SnapchatPostID,
		&post.InstagramPostID, &post.YoutubeVideoID, &analytics, &postErr, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}

	post.UserID = userID.Int64
	if err := post.Platforms.UnmarshalText([]byte(platforms)); err != nil {
		return nil, fmt.Errorf("post %s: %w", post.ID, err)
	}
	if scheduledFor.Valid {
		post.ScheduledFor = &scheduledFor.Time
	}
	if publishedAt.Valid {
		post.PublishedAt = &publishedAt.Time
	}
	if len(analytics) > 0 {
		if err := json.Unmarshal(analytics, &post.Analytics); err != nil {
			return nil, fmt.Errorf("post %s analytics: %w", post.ID, err)
		}
	}
	if len(postErr) > 0 && string(postErr) != "null" {
		post.Error = &models.PostError{}
		if err := json.Unmarshal(postErr, post.Error); err != nil {
			return nil, fmt.Errorf("post %s error: %w", post.ID, err)
		}
	}
	return &post, nil
}

func nullableUserID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	analytics, err := json.Marshal(post.Analytics)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO posts (id, user_id, title, content, media_url, media_type, platforms, status, scheduled_for, analytics)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		post.ID,
		nullableUserID(post.UserID),
		post.Title,
		post.Content,
		post.MediaURL,
		post.MediaType,
		post.Platforms.String(),
		post.Status,
		nullableTime(post.ScheduledFor),
		analytics,
	).Scan(&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateKey
		}
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

// DueCursor is the keyset position of the last due post already read.
// The zero value starts from the oldest.
type DueCursor struct {
	ScheduledFor time.Time
	ID           string
}

func DueCursorOf(post *models.Post) DueCursor {
	c := DueCursor{ID: post.ID}
	if post.ScheduledFor != nil {
		c.ScheduledFor = *post.ScheduledFor
	}
	return c
}

// Before reports whether the cursor sorts before (scheduledFor, id).
func (c DueCursor) Before(scheduledFor time.Time, id string) bool {
	if !c.ScheduledFor.Equal(scheduledFor) {
		return c.ScheduledFor.Before(scheduledFor)
	}
	return c.ID < id
}

// ListDue selects one page of scheduled posts whose time has come, ordered
// by (scheduled_for, id) and strictly after the cursor. The status filter is
// the only sweep-level guard; the publish lease and the finalize CAS catch
// overlapping sweeps.
func (r *postRepository) ListDue(ctx context.Context, now time.Time, after DueCursor, limit int) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE status = $1 AND scheduled_for IS NOT NULL AND scheduled_for <= $2
		AND (scheduled_for, id) > ($3, $4)
		ORDER BY scheduled_for ASC, id ASC
		LIMIT $5`
	return r.list(ctx, query, models.PostStatusScheduled, now, after.ScheduledFor, after.ID, limit)
}

func (r *postRepository) ListWithPlatformPost(ctx context.Context, platform models.Platform, limit int) ([]*models.Post, error) {
	var column string
	switch platform {
	case models.PlatformSnapchat:
		column = "snapchat_post_id"
	case models.PlatformInstagram:
		column = "instagram_post_id"
	case models.PlatformYoutube:
		column = "youtube_video_id"
	default:
		return nil, fmt.Errorf("unsupported platform %s", platform)
	}

	query := `SELECT ` + postColumns + ` FROM posts
		WHERE status = $1 AND ` + column + ` <> ''
		ORDER BY (analytics->>'last_synced') ASC NULLS FIRST
		LIMIT $2`
	return r.list(ctx, query, models.PostStatusPublished, limit)
}

func (r *postRepository) list(ctx context.Context, query string, args ...any) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

// Update writes the editable fields. Published posts are never matched, so
// their content stays immutable even under a racing publish.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	postErr, err := marshalPostError(post.Error)
	if err != nil {
		return err
	}

	query := `
		UPDATE posts
		SET title = $1,
			content = $2,
			media_url = $3,
			media_type = $4,
			platforms = $5,
			status = $6,
			scheduled_for = $7,
			error = $8,
			updated_at = NOW()
		WHERE id = $9 AND status <> $10
	`
	result, err := r.db.ExecContext(ctx, query,
		post.Title,
		post.Content,
		post.MediaURL,
		post.MediaType,
		post.Platforms.String(),
		post.Status,
		nullableTime(post.ScheduledFor),
		postErr,
		post.ID,
		models.PostStatusPublished,
	)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		return ErrNoRowsUpdated
	}
	return nil
}

// FinalizePublish commits the outcome of a publish run. The post row is
// updated only while it still has fromStatus; when countUsage is set the
// owner's monthly counter is incremented in the same transaction. It
// reports false when another writer moved the post first.
func (r *postRepository) FinalizePublish(ctx context.Context, post *models.Post, fromStatus string, countUsage bool, now time.Time) (bool, error) {
	postErr, err := marshalPostError(post.Error)
	if err != nil {
		return false, err
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	defer tx.Rollback()

	updatePost := `
		UPDATE posts
		SET status = $1,
			published_at = $2,
			snapchat_post_id = $3,
			instagram_post_id = $4,
			youtube_video_id = $5,
			error = $6,
			updated_at = NOW()
		WHERE id = $7 AND status = $8
	`
	result, err := tx.ExecContext(ctx, updatePost,
		post.Status,
		nullableTime(post.PublishedAt),
		post.SnapchatPostID,
		post.InstagramPostID,
		post.YoutubeVideoID,
		postErr,
		post.ID,
		fromStatus,
	)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	if affected != 1 {
		return false, nil
	}

	if countUsage && post.UserID != 0 {
		period := models.UsagePeriodStart(now)
		incrementUsage := `
			INSERT INTO subscriptions (user_id, plan, monthly_post_limit, monthly_post_count, usage_period, status)
			VALUES ($1, 'free', $2, 1, $3, 'active')
			ON CONFLICT (user_id) DO UPDATE
			SET monthly_post_count = CASE
					WHEN subscriptions.usage_period = EXCLUDED.usage_period THEN subscriptions.monthly_post_count + 1
					ELSE 1
				END,
				usage_period = EXCLUDED.usage_period,
				updated_at = NOW()
		`
		if _, err := tx.ExecContext(ctx, incrementUsage, post.UserID, FreePlanMonthlyPosts, period); err != nil {
			slog.Info(err.Error())
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return true, nil
}

func (r *postRepository) UpdateAnalytics(ctx context.Context, postID string, analytics models.Analytics) error {
	payload, err := json.Marshal(analytics)
	if err != nil {
		return err
	}

	query := `UPDATE posts SET analytics = $1, updated_at = NOW() WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, payload, postID); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) Remove(ctx context.Context, id string) error {
	query := `DELETE FROM posts WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func marshalPostError(e *models.PostError) ([]byte, error) {
	if e == nil {
		return nil, nil
	}
	return json.Marshal(e)
}
