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

const dueBatchSize = 100

var errOwnerNotFound = errors.New("post owner not found")

type SchedulerService interface {
	RunDue(ctx context.Context) (*transfer.SweepSummary, error)
}

type schedulerService struct {
	posts       repository.PostRepository
	users       repository.UserRepository
	publisher   PublishService
	concurrency int
	batchSize   int
	now         Clock
}

func NewSchedulerService(
	posts repository.PostRepository,
	users repository.UserRepository,
	publisher PublishService,
	concurrency int) SchedulerService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &schedulerService{
		posts:       posts,
		users:       users,
		publisher:   publisher,
		concurrency: concurrency,
		batchSize:   dueBatchSize,
		now:         time.Now,
	}
}

// RunDue publishes every scheduled post whose time has passed, one page at
// a time. Each post is handled independently and reported in the summary.
// Posts left scheduled by a rejection are stepped over by the cursor.
func (s *schedulerService) RunDue(ctx context.Context) (*transfer.SweepSummary, error) {
	summary := transfer.NewSweepSummary()
	now := s.now()

	var cursor repository.DueCursor
	for {
		posts, err := s.posts.ListDue(ctx, now, cursor, s.batchSize)
		if err != nil {
			if summary.Total == 0 {
				return nil, err
			}
			slog.Info("scheduled publish sweep stopped early", "run_id", summary.RunID.String(), "error", err.Error())
			break
		}
		if len(posts) == 0 {
			break
		}

		s.runBatch(ctx, posts, summary)
		cursor = repository.DueCursorOf(posts[len(posts)-1])

		if len(posts) < s.batchSize || ctx.Err() != nil {
			break
		}
	}

	slog.Info("scheduled publish sweep finished", "run_id", summary.RunID.String(), "total", summary.Total,
		"succeeded", summary.Succeeded, "failed", summary.Failed)
	return summary, nil
}

func (s *schedulerService) runBatch(ctx context.Context, posts []*models.Post, summary *transfer.SweepSummary) {
	summary.Total += len(posts)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		semaphore = make(chan struct{}, s.concurrency)
	)

	for _, post := range posts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(post *models.Post) {
			defer wg.Done()
			defer func() { <-semaphore }()

			published, err := s.publishOne(ctx, post)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				summary.Errors = append(summary.Errors, transfer.SweepError{PostID: post.ID, Error: err.Error()})
				return
			}
			if published {
				summary.Succeeded++
			} else {
				summary.Failed++
				summary.Errors = append(summary.Errors, transfer.SweepError{PostID: post.ID, Error: failureText(post)})
			}
		}(post)
	}
	wg.Wait()
}

func (s *schedulerService) publishOne(ctx context.Context, post *models.Post) (published bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while publishing: %v", r)
		}
	}()

	if post.UserID == 0 {
		return false, errOwnerNotFound
	}
	if _, found, err := s.users.GetByID(ctx, post.UserID); err != nil {
		return false, err
	} else if !found {
		return false, errOwnerNotFound
	}

	resp, err := s.publisher.PublishPost(ctx, post)
	if err != nil {
		return false, err
	}
	return resp.Status == models.PostStatusPublished, nil
}

func failureText(post *models.Post) string {
	if post.Error != nil {
		return post.Error.Message
	}
	return msgFailedAll
}
