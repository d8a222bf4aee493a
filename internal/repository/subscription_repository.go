package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/maheshrc27/crosspost/internal/models"
)

type SubscriptionRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*models.Subscription, bool, error)
}

type subscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) GetByUserID(ctx context.Context, userID int64) (*models.Subscription, bool, error) {
	var (
		subscription   models.Subscription
		subscriptionID sql.NullString
		endDate        sql.NullTime
		usagePeriod    sql.NullTime
	)
	query := `
		SELECT id, user_id, subscription_id, plan, monthly_post_limit, monthly_post_count,
			usage_period, subscription_end_date, status, created_at, updated_at
		FROM subscriptions
		WHERE user_id = $1
	`
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&subscription.ID,
		&subscription.UserID,
		&subscriptionID,
		&subscription.Plan,
		&subscription.MonthlyPostLimit,
		&subscription.MonthlyPostCount,
		&usagePeriod,
		&endDate,
		&subscription.Status,
		&subscription.CreatedAt,
		&subscription.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		slog.Info(err.Error())
		return nil, false, err
	}

	subscription.SubscriptionID = subscriptionID.String
	subscription.UsagePeriod = usagePeriod.Time
	subscription.SubscriptionEndDate = endDate.Time
	return &subscription, true, nil
}
