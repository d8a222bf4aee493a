package queue

import (
	"github.com/maheshrc27/crosspost/internal/repository"
	"github.com/maheshrc27/crosspost/internal/service"
)

type Queue struct {
	pr repository.PostRepository
	ps service.PublishService
}

func NewQueue(pr repository.PostRepository, ps service.PublishService) *Queue {
	return &Queue{
		pr: pr,
		ps: ps,
	}
}

const TaskTypeSchedulePost = "schedule:post"

type SchedulePostPayload struct {
	PostID string `json:"post_id"`
}
