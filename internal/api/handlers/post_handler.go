package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/queue"
	"github.com/maheshrc27/crosspost/internal/service"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

type PostHandler struct {
	s           service.PostService
	ps          service.PublishService
	as          service.AnalyticsService
	AsynqClient *asynq.Client
}

func NewPostHandler(
	s service.PostService,
	ps service.PublishService,
	as service.AnalyticsService,
	asynqClient *asynq.Client) *PostHandler {
	return &PostHandler{s: s, ps: ps, as: as, AsynqClient: asynqClient}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var pc transfer.PostCreation
	if ok, err := bindAndValidate(c, &pc); !ok {
		return err
	}

	post, delay, err := h.s.Create(c.Context(), userID, &pc)
	if err != nil {
		return handleError(c, err)
	}

	h.enqueue(post, delay)
	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	posts, err := h.s.List(c.Context(), GetUserID(c))
	if err != nil {
		return handleError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	post, err := h.s.Get(c.Context(), GetUserID(c), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	var pu transfer.PostUpdate
	if ok, err := bindAndValidate(c, &pu); !ok {
		return err
	}

	post, delay, err := h.s.Update(c.Context(), GetUserID(c), c.Params("id"), &pu)
	if err != nil {
		return handleError(c, err)
	}

	h.enqueue(post, delay)
	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	if err := h.s.Remove(c.Context(), GetUserID(c), c.Params("id")); err != nil {
		return handleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// PublishPost publishes immediately. A client disconnect does not cancel the
// publish.
func (h *PostHandler) PublishPost(c *fiber.Ctx) error {
	ctx := context.WithoutCancel(c.UserContext())
	resp, err := h.ps.Publish(ctx, GetUserID(c), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *PostHandler) GetAnalytics(c *fiber.Ctx) error {
	analytics, err := h.as.GetPostAnalytics(c.Context(), GetUserID(c), c.Params("id"), c.QueryBool("force", false))
	if err != nil {
		return handleError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(analytics)
}

func (h *PostHandler) ListAttempts(c *fiber.Ctx) error {
	attempts, err := h.s.Attempts(c.Context(), GetUserID(c), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(attempts)
}

// enqueue schedules the delayed publish task. The cron sweep still picks the
// post up if enqueueing fails.
func (h *PostHandler) enqueue(post *models.Post, delay time.Duration) {
	if h.AsynqClient == nil || post.Status != models.PostStatusScheduled || post.ScheduledFor == nil {
		return
	}
	err := queue.EnqueuePost(h.AsynqClient, queue.SchedulePostPayload{PostID: post.ID}, *post.ScheduledFor, delay)
	if err != nil {
		slog.Info("error scheduling post", "post_id", post.ID, "error", err.Error())
	}
}
