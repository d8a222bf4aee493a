package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/pkg/utils"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	youtubeTitleLimit       = 100
	youtubeDescriptionLimit = 5000
	youtubeMaxTags          = 15
)

type YoutubeService interface {
	PlatformPublisher
	PlatformRemover
	MetricsFetcher
}

type youtubeService struct {
	cfg    config.Youtube
	client *http.Client
	media  MediaService
}

func NewYoutubeService(cfg *config.Config, client *http.Client, media MediaService) YoutubeService {
	return &youtubeService{cfg: cfg.Youtube, client: client, media: media}
}

func (s *youtubeService) Platform() models.Platform { return models.PlatformYoutube }

func (s *youtubeService) service(ctx context.Context, accessToken string) (*youtube.Service, error) {
	if s.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if s.cfg.APIBaseURL != "" {
		opts = append(opts, option.WithEndpoint(s.cfg.APIBaseURL))
	}
	return youtube.NewService(ctx, opts...)
}

// Publish streams the hosted video into videos.insert.
func (s *youtubeService) Publish(ctx context.Context, acc models.SocialAccount, post *models.Post) (string, error) {
	if post.MediaType != models.MediaTypeVideo {
		return "", platformErr(models.PlatformYoutube, "upload", ErrYoutubeVideoOnly.Error())
	}

	stream, err := s.media.Open(ctx, post.MediaURL)
	if err != nil {
		return "", platformErr(models.PlatformYoutube, "upload", err.Error())
	}
	defer stream.Body.Close()

	if stream.Kind == models.MediaTypeImage {
		return "", platformErr(models.PlatformYoutube, "upload", ErrYoutubeVideoOnly.Error())
	}

	svc, err := s.service(ctx, acc.AccessToken)
	if err != nil {
		slog.Info(err.Error())
		return "", platformErr(models.PlatformYoutube, "upload", err.Error())
	}

	call := svc.Videos.Insert([]string{"snippet", "status"}, s.buildVideo(post))
	video, err := call.Media(stream.Body, googleapi.ContentType(stream.ContentType)).Context(ctx).Do()
	if err != nil {
		return "", youtubeErr("upload", err)
	}
	if video.Id == "" {
		return "", platformErr(models.PlatformYoutube, "upload", "no video id returned from YouTube")
	}

	slog.Info("youtube video uploaded", "post_id", post.ID, "video_id", video.Id)
	return video.Id, nil
}

func (s *youtubeService) buildVideo(post *models.Post) *youtube.Video {
	title := strings.NewReplacer("<", "", ">", "").Replace(firstNonEmpty(post.Title, post.Content))
	privacy := s.cfg.PrivacyStatus
	if privacy == "" {
		privacy = "public"
	}

	return &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       utils.TruncateRunes(strings.TrimSpace(title), youtubeTitleLimit),
			Description: utils.TruncateRunes(post.Content, youtubeDescriptionLimit),
			Tags:        utils.ExtractHashtags(post.Content, youtubeMaxTags),
			CategoryId:  s.cfg.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: privacy,
		},
	}
}

func (s *youtubeService) Delete(ctx context.Context, acc models.SocialAccount, videoID string) error {
	svc, err := s.service(ctx, acc.AccessToken)
	if err != nil {
		return err
	}
	if err := svc.Videos.Delete(videoID).Context(ctx).Do(); err != nil {
		return youtubeErr("delete", err)
	}
	return nil
}

func (s *youtubeService) FetchMetrics(ctx context.Context, acc models.SocialAccount, videoID string, into *models.Analytics) error {
	svc, err := s.service(ctx, acc.AccessToken)
	if err != nil {
		return err
	}

	resp, err := svc.Videos.List([]string{"statistics"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return youtubeErr("metrics", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Statistics == nil {
		return platformErr(models.PlatformYoutube, "metrics", fmt.Sprintf("video %s not found", videoID))
	}

	stats := resp.Items[0].Statistics
	into.Youtube.Views = int64(stats.ViewCount)
	into.Youtube.Likes = int64(stats.LikeCount)
	into.Youtube.Comments = int64(stats.CommentCount)
	return nil
}

// youtubeErr keeps the API's message, reason and status.
func youtubeErr(step string, err error) error {
	pe := platformErr(models.PlatformYoutube, step, err.Error())

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		pe.StatusCode = gErr.Code
		pe.Message = firstNonEmpty(gErr.Message, gErr.Body, err.Error())
		if len(gErr.Errors) > 0 {
			pe.Code = gErr.Errors[0].Reason
		}
	}
	return pe
}
