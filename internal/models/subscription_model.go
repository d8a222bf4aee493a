package models

import (
	"time"
)

// UnlimitedPosts is the plan ceiling sentinel that disables the usage check.
const UnlimitedPosts = -1

type Subscription struct {
	ID                  int64     `db:"id" json:"id"`
	UserID              int64     `db:"user_id" json:"user_id"`
	SubscriptionID      string    `db:"subscription_id" json:"subscription_id"`
	Plan                string    `db:"plan" json:"plan"`
	MonthlyPostLimit    int       `db:"monthly_post_limit" json:"monthly_post_limit"`
	MonthlyPostCount    int       `db:"monthly_post_count" json:"monthly_post_count"`
	UsagePeriod         time.Time `db:"usage_period" json:"usage_period"`
	SubscriptionEndDate time.Time `db:"subscription_end_date" json:"subscription_end_date"`
	Status              string    `db:"status" json:"status"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// UsagePeriodStart truncates t to the first instant of its UTC month.
func UsagePeriodStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// PostsUsed returns the post count for the month containing now; a counter
// left over from an earlier month counts as zero.
func (s *Subscription) PostsUsed(now time.Time) int {
	if !UsagePeriodStart(s.UsagePeriod).Equal(UsagePeriodStart(now)) {
		return 0
	}
	return s.MonthlyPostCount
}

func (s *Subscription) CanPublish(now time.Time) bool {
	if s.MonthlyPostLimit == UnlimitedPosts {
		return true
	}
	return s.PostsUsed(now) < s.MonthlyPostLimit
}
