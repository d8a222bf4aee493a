package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/maheshrc27/crosspost/internal/service"
)

type ScheduledPublishJob struct {
	ss      service.SchedulerService
	timeout time.Duration
}

func NewScheduledPublishJob(ss service.SchedulerService, timeout time.Duration) *ScheduledPublishJob {
	return &ScheduledPublishJob{ss: ss, timeout: timeout}
}

func (j *ScheduledPublishJob) PublishDue() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if _, err := j.ss.RunDue(ctx); err != nil {
		slog.Info("scheduled publish sweep failed", "error", err.Error())
	}
}

type AnalyticsSyncJob struct {
	as      service.AnalyticsService
	timeout time.Duration
}

func NewAnalyticsSyncJob(as service.AnalyticsService, timeout time.Duration) *AnalyticsSyncJob {
	return &AnalyticsSyncJob{as: as, timeout: timeout}
}

func (j *AnalyticsSyncJob) SyncAnalytics() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if _, err := j.as.SyncAll(ctx); err != nil {
		slog.Info("analytics sweep failed", "error", err.Error())
	}
}
