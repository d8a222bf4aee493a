package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/transfer"
)

// Container states reported by the Graph API status_code field.
const (
	containerInProgress = "IN_PROGRESS"
	containerFinished   = "FINISHED"
	containerError      = "ERROR"
)

const instagramInsightMetrics = "impressions,reach,saved,total_interactions"

type InstagramService interface {
	PlatformPublisher
	MetricsFetcher
}

type instagramService struct {
	cfg    config.Instagram
	client *http.Client
	poll   PollPolicy
}

func NewInstagramService(cfg *config.Config, client *http.Client) InstagramService {
	return &instagramService{
		cfg:    cfg.Instagram,
		client: client,
		poll: PollPolicy{
			Interval:    cfg.Instagram.PollInterval,
			MaxAttempts: cfg.Instagram.PollAttempts,
		},
	}
}

func (s *instagramService) Platform() models.Platform { return models.PlatformInstagram }

// Publish creates a media container, waits for video processing and then
// publishes the container.
func (s *instagramService) Publish(ctx context.Context, acc models.SocialAccount, post *models.Post) (string, error) {
	if !post.HasMedia() {
		return "", platformErr(models.PlatformInstagram, "container", ErrMediaRequired.Error())
	}

	container := transfer.InstagramContainerRequest{
		Caption:     buildCaption(post),
		AccessToken: acc.AccessToken,
	}
	isVideo := post.MediaType == models.MediaTypeVideo
	if isVideo {
		container.MediaType = "REELS"
		container.VideoURL = post.MediaURL
	} else {
		container.ImageURL = post.MediaURL
	}

	var created transfer.InstagramIDResponse
	if err := s.postJSON(ctx, "container", fmt.Sprintf("%s/%s/media", s.cfg.GraphBaseURL, acc.AccountID), container, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", platformErr(models.PlatformInstagram, "container", "no container id returned from Instagram")
	}

	if isVideo {
		if err := s.waitForContainer(ctx, created.ID, acc.AccessToken); err != nil {
			return "", err
		}
	}

	publish := transfer.InstagramPublishRequest{
		CreationID:  created.ID,
		AccessToken: acc.AccessToken,
	}
	var published transfer.InstagramIDResponse
	if err := s.postJSON(ctx, "publish", fmt.Sprintf("%s/%s/media_publish", s.cfg.GraphBaseURL, acc.AccountID), publish, &published); err != nil {
		return "", err
	}
	if published.ID == "" {
		return "", platformErr(models.PlatformInstagram, "publish", "no media id returned from Instagram")
	}

	slog.Info("instagram media published", "post_id", post.ID, "media_id", published.ID)
	return published.ID, nil
}

// waitForContainer polls the container until FINISHED. ERROR is terminal;
// running out of attempts in any other state is a processing timeout.
func (s *instagramService) waitForContainer(ctx context.Context, containerID, accessToken string) error {
	params := url.Values{}
	params.Set("fields", "status_code,status")
	params.Set("access_token", accessToken)
	statusURL := fmt.Sprintf("%s/%s?%s", s.cfg.GraphBaseURL, containerID, params.Encode())

	var last transfer.InstagramContainerStatus
	err := s.poll.Run(ctx, func(ctx context.Context, attempt int) (bool, error) {
		last = transfer.InstagramContainerStatus{}
		if err := s.getJSON(ctx, "status", statusURL, &last); err != nil {
			return false, err
		}

		switch last.StatusCode {
		case containerFinished:
			return true, nil
		case containerError:
			pe := platformErr(models.PlatformInstagram, "processing", firstNonEmpty(last.Status, "media processing failed"))
			pe.Code = containerError
			return false, pe
		default:
			return false, nil
		}
	})
	if err == errPollExhausted {
		pe := platformErr(models.PlatformInstagram, "processing",
			fmt.Sprintf("container %s still %s after %d attempts", containerID, firstNonEmpty(last.StatusCode, containerInProgress), s.poll.MaxAttempts))
		pe.Kind = ErrProcessingTimeout
		pe.Code = "PROCESSING_TIMEOUT"
		return pe
	}
	return err
}

// FetchMetrics reads like and comment counts, then insights. Insights may be
// unavailable for fresh media or non-business accounts; they then stay zero.
func (s *instagramService) FetchMetrics(ctx context.Context, acc models.SocialAccount, mediaID string, into *models.Analytics) error {
	params := url.Values{}
	params.Set("fields", "id,like_count,comments_count")
	params.Set("access_token", acc.AccessToken)

	var fields transfer.InstagramMediaFields
	if err := s.getJSON(ctx, "metrics", fmt.Sprintf("%s/%s?%s", s.cfg.GraphBaseURL, mediaID, params.Encode()), &fields); err != nil {
		return err
	}

	metrics := models.InstagramMetrics{
		Likes:    fields.LikeCount,
		Comments: fields.CommentsCount,
	}

	params = url.Values{}
	params.Set("metric", instagramInsightMetrics)
	params.Set("access_token", acc.AccessToken)

	var insights transfer.InstagramInsightsResponse
	if err := s.getJSON(ctx, "insights", fmt.Sprintf("%s/%s/insights?%s", s.cfg.GraphBaseURL, mediaID, params.Encode()), &insights); err != nil {
		slog.Info("instagram insights unavailable", "media_id", mediaID, "error", err.Error())
	}
	for _, insight := range insights.Data {
		switch insight.Name {
		case "impressions":
			metrics.Impressions = insight.Value()
		case "reach":
			metrics.Reach = insight.Value()
		case "saved":
			metrics.Saves = insight.Value()
		case "total_interactions":
			metrics.Engagement = insight.Value()
		}
	}

	into.Instagram = metrics
	return nil
}

func (s *instagramService) postJSON(ctx context.Context, step, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, step, out)
}

func (s *instagramService) getJSON(ctx context.Context, step, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	return s.do(req, step, out)
}

func (s *instagramService) do(req *http.Request, step string, out any) error {
	status, body, err := doJSON(s.client, req, out)
	if err != nil {
		pe := platformErr(models.PlatformInstagram, step, err.Error())
		pe.StatusCode = status
		return pe
	}
	if status >= 200 && status < 300 {
		return nil
	}

	var igErr transfer.InstagramErrorResponse
	_ = decodeError(body, &igErr)

	pe := platformErr(models.PlatformInstagram, step, firstNonEmpty(igErr.Error.ErrorUserMsg, igErr.Error.Message, truncateBody(body)))
	pe.StatusCode = status
	if igErr.Error.Code != 0 {
		pe.Code = strconv.Itoa(igErr.Error.Code)
	}
	return pe
}

// buildCaption joins title and body text with a blank line.
func buildCaption(post *models.Post) string {
	parts := make([]string, 0, 2)
	for _, part := range []string{post.Title, post.Content} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "\n\n")
}
