package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/maheshrc27/crosspost/internal/models"
)

type PublishAttemptRepository interface {
	Create(ctx context.Context, attempt *models.PublishAttempt) (int64, error)
	ListByPostID(ctx context.Context, postID string) ([]*models.PublishAttempt, error)
}

type publishAttemptRepository struct {
	db *sql.DB
}

func NewPublishAttemptRepository(db *sql.DB) PublishAttemptRepository {
	return &publishAttemptRepository{db: db}
}

func (r *publishAttemptRepository) Create(ctx context.Context, attempt *models.PublishAttempt) (int64, error) {
	query := `
		INSERT INTO publish_attempts (user_id, post_id, platform, success, platform_post_id, error_message, error_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		nullableUserID(attempt.UserID),
		attempt.PostID,
		attempt.Platform.String(),
		attempt.Success,
		attempt.PlatformPostID,
		attempt.ErrorMessage,
		attempt.ErrorCode,
	).Scan(&attempt.ID, &attempt.CreatedAt)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return attempt.ID, nil
}

func (r *publishAttemptRepository) ListByPostID(ctx context.Context, postID string) ([]*models.PublishAttempt, error) {
	query := `
		SELECT id, user_id, post_id, platform, success, platform_post_id, error_message, error_code, created_at
		FROM publish_attempts
		WHERE post_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var attempts []*models.PublishAttempt
	for rows.Next() {
		var (
			a        models.PublishAttempt
			userID   sql.NullInt64
			platform string
		)
		err := rows.Scan(&a.ID, &userID, &a.PostID, &platform, &a.Success,
			&a.PlatformPostID, &a.ErrorMessage, &a.ErrorCode, &a.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		a.UserID = userID.Int64
		if a.Platform, err = models.ParsePlatform(platform); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		attempts = append(attempts, &a)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return attempts, nil
}
