package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

// stubPosts serves GetByID only; other methods are not used by the worker.
type stubPosts struct {
	repository.PostRepository
	post *models.Post
}

func (s *stubPosts) GetByID(ctx context.Context, id string) (*models.Post, error) {
	if s.post == nil || s.post.ID != id {
		return nil, nil
	}
	cp := *s.post
	return &cp, nil
}

type stubPublisher struct {
	calls int
	err   error
}

func (s *stubPublisher) Publish(ctx context.Context, userID int64, postID string) (*transfer.PublishResponse, error) {
	return nil, errors.New("not used")
}

func (s *stubPublisher) PublishPost(ctx context.Context, post *models.Post) (*transfer.PublishResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &transfer.PublishResponse{PostID: post.ID, Status: models.PostStatusPublished}, nil
}

func TestPublishPostTask(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	due := now.Add(-time.Minute)
	later := now.Add(time.Hour)

	cases := []struct {
		name      string
		post      *models.Post
		pubErr    error
		wantCalls int
		wantErr   bool
	}{
		{"due", &models.Post{ID: "p1", Status: models.PostStatusScheduled, ScheduledFor: &due}, nil, 1, false},
		{"deleted", nil, nil, 0, false},
		{"rescheduled", &models.Post{ID: "p1", Status: models.PostStatusScheduled, ScheduledFor: &later}, nil, 0, false},
		{"already published", &models.Post{ID: "p1", Status: models.PostStatusPublished, ScheduledFor: &due}, nil, 0, false},
		{"rejected", &models.Post{ID: "p1", Status: models.PostStatusScheduled, ScheduledFor: &due},
			&service.PreconditionError{Err: service.ErrMediaRequired}, 1, false},
		{"conflict", &models.Post{ID: "p1", Status: models.PostStatusScheduled, ScheduledFor: &due}, service.ErrPublishConflict, 1, false},
		{"database", &models.Post{ID: "p1", Status: models.PostStatusScheduled, ScheduledFor: &due}, errors.New("connection reset"), 1, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pub := &stubPublisher{err: tc.pubErr}
			q := NewQueue(&stubPosts{post: tc.post}, pub)

			err := q.PublishPost(context.Background(), "p1", now)
			if (err != nil) != tc.wantErr {
				t.Fatalf("PublishPost err = %v, wantErr %v", err, tc.wantErr)
			}
			if pub.calls != tc.wantCalls {
				t.Fatalf("publish calls = %d, want %d", pub.calls, tc.wantCalls)
			}
		})
	}
}

func TestHandleSchedulePostTaskBadPayload(t *testing.T) {
	q := NewQueue(&stubPosts{}, &stubPublisher{})
	err := q.HandleSchedulePostTask(context.Background(), asynq.NewTask(TaskTypeSchedulePost, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}

	payload, _ := json.Marshal(SchedulePostPayload{PostID: "gone"})
	if err := q.HandleSchedulePostTask(context.Background(), asynq.NewTask(TaskTypeSchedulePost, payload)); err != nil {
		t.Fatalf("missing post must be skipped, got %v", err)
	}
}
