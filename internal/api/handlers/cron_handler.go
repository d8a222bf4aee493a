package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/crosspost/internal/service"
)

type CronHandler struct {
	ss service.SchedulerService
	as service.AnalyticsService
}

func NewCronHandler(ss service.SchedulerService, as service.AnalyticsService) *CronHandler {
	return &CronHandler{ss: ss, as: as}
}

func (h *CronHandler) PublishScheduled(c *fiber.Ctx) error {
	summary, err := h.ss.RunDue(c.UserContext())
	if err != nil {
		return handleError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(summary)
}

func (h *CronHandler) SyncAnalytics(c *fiber.Ctx) error {
	summary, err := h.as.SyncAll(c.UserContext())
	if err != nil {
		return handleError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(summary)
}
