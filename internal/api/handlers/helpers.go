package handlers

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/crosspost/internal/service"
)

var validate = validator.New()

func GetUserID(c *fiber.Ctx) int64 {
	raw, _ := c.Locals("user_id").(string)
	userID, _ := strconv.ParseInt(raw, 10, 64)
	return userID
}

// bindAndValidate parses the JSON body into dst and runs its validate tags.
// When it reports false the error response has already been written.
func bindAndValidate(c *fiber.Ctx, dst any) (bool, error) {
	if err := c.BodyParser(dst); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":  "Validation failed",
				"fields": fields,
			})
		}
		return false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return true, nil
}

var rejectionCodes = []struct {
	err    error
	code   string
	status int
}{
	{service.ErrAlreadyPublished, "ALREADY_PUBLISHED", fiber.StatusConflict},
	{service.ErrPublishInProgress, "PUBLISH_IN_PROGRESS", fiber.StatusConflict},
	{service.ErrNotConnected, "NOT_CONNECTED", fiber.StatusUnprocessableEntity},
	{service.ErrYoutubeVideoOnly, "YOUTUBE_VIDEO_ONLY", fiber.StatusUnprocessableEntity},
	{service.ErrUsageLimitReached, "USAGE_LIMIT_REACHED", fiber.StatusForbidden},
	{service.ErrMediaRequired, "MEDIA_REQUIRED", fiber.StatusUnprocessableEntity},
	{service.ErrInvalidInput, "INVALID_INPUT", fiber.StatusUnprocessableEntity},
}

// handleError maps service errors to HTTP responses.
func handleError(c *fiber.Ctx, err error) error {
	if service.IsRejection(err) {
		for _, rc := range rejectionCodes {
			if errors.Is(err, rc.err) {
				return c.Status(rc.status).JSON(fiber.Map{"error": err.Error(), "code": rc.code})
			}
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error(), "code": "PRECONDITION_FAILED"})
	}

	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Post not found"})
	case errors.Is(err, service.ErrNotAuthorized):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not authorized"})
	case errors.Is(err, service.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrPostImmutable), errors.Is(err, service.ErrPublishConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNotPublished), errors.Is(err, service.ErrNotConnected):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrTokenRefreshFailed), errors.Is(err, service.ErrPlatformPublishFailed):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}

	slog.Error(err.Error())
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
}
