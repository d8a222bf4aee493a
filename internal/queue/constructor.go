package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// EnqueuePost schedules a publish task for a post. The task id is derived
// from the post and its due time, so enqueueing the same schedule twice is a
// no-op.
func EnqueuePost(asynqClient *asynq.Client, payload SchedulePostPayload, dueAt time.Time, delay time.Duration) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeSchedulePost, taskPayload)
	taskID := fmt.Sprintf("%s:%d", payload.PostID, dueAt.Unix())

	_, err = asynqClient.Enqueue(task,
		asynq.ProcessIn(delay),
		asynq.TaskID(taskID),
		asynq.MaxRetry(3),
		asynq.Retention(24*time.Hour),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("task scheduled", "post_id", payload.PostID, "delay", delay.String())
	return nil
}
