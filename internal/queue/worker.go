package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/service"
)

// HandleSchedulePostTask publishes a scheduled post when its task fires.
// Posts that were deleted, rescheduled or already handled by the sweep are
// skipped.
func (j *Queue) HandleSchedulePostTask(ctx context.Context, task *asynq.Task) error {
	var payload SchedulePostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	return j.PublishPost(ctx, payload.PostID, time.Now())
}

func (j *Queue) PublishPost(ctx context.Context, postID string, now time.Time) error {
	post, err := j.pr.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		slog.Info("scheduled post no longer exists", "post_id", postID)
		return nil
	}
	if post.Status != models.PostStatusScheduled || post.ScheduledFor == nil || post.ScheduledFor.After(now) {
		slog.Info("scheduled post not due", "post_id", postID, "status", post.Status)
		return nil
	}

	resp, err := j.ps.PublishPost(ctx, post)
	if err != nil {
		if service.IsRejection(err) || errors.Is(err, service.ErrPublishConflict) {
			slog.Info("scheduled publish skipped", "post_id", postID, "reason", err.Error())
			return nil
		}
		return err
	}

	slog.Info("scheduled post processed", "post_id", postID, "status", resp.Status, "message", resp.Message)
	return nil
}
