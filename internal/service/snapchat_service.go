package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
	"github.com/maheshrc27/crosspost/internal/transfer"
	"github.com/maheshrc27/crosspost/pkg/utils"
)

// Field limits of the Snapchat creative object.
const (
	snapchatHeadlineLimit  = 34
	snapchatNameLimit      = 375
	snapchatBrandNameLimit = 25
)

// snapchatCreativeIDPaths lists where the creative id may appear in a create
// response, highest precedence first. Numeric segments index arrays.
var snapchatCreativeIDPaths = []string{
	"creatives.0.creative.id",
	"creative.id",
	"data.id",
	"id",
}

type SnapchatService interface {
	PlatformPublisher
	PlatformRemover
}

type snapchatService struct {
	cfg    config.Snapchat
	client *http.Client
	media  MediaService
}

func NewSnapchatService(cfg *config.Config, client *http.Client, media MediaService) SnapchatService {
	return &snapchatService{cfg: cfg.Snapchat, client: client, media: media}
}

func (s *snapchatService) Platform() models.Platform { return models.PlatformSnapchat }

// Publish uploads the post media and creates a creative that references it.
// Creating the creative is the publish.
func (s *snapchatService) Publish(ctx context.Context, acc models.SocialAccount, post *models.Post) (string, error) {
	if !post.HasMedia() {
		return "", platformErr(models.PlatformSnapchat, "media", ErrMediaRequired.Error())
	}

	mediaID, err := s.createMedia(ctx, acc, post)
	if err != nil {
		return "", err
	}
	if err := s.uploadMedia(ctx, acc, mediaID, post.MediaURL); err != nil {
		return "", err
	}

	creative := transfer.SnapchatCreative{
		AdAccountID:    acc.AccountID,
		Name:           utils.TruncateRunes(firstNonEmpty(post.Title, post.Content), snapchatNameLimit),
		Type:           "SNAP_AD",
		Headline:       utils.TruncateRunes(firstNonEmpty(post.Content, post.Title), snapchatHeadlineLimit),
		BrandName:      utils.TruncateRunes(s.cfg.BrandName, snapchatBrandNameLimit),
		Shareable:      true,
		TopSnapMediaID: mediaID,
	}
	body, err := s.sendJSON(ctx, "creative", http.MethodPost,
		fmt.Sprintf("%s/v1/adaccounts/%s/creatives", s.cfg.APIBaseURL, acc.AccountID),
		acc.AccessToken, transfer.SnapchatCreativeRequest{Creatives: []transfer.SnapchatCreative{creative}})
	if err != nil {
		return "", err
	}

	creativeID := extractFirstID(body, snapchatCreativeIDPaths)
	if creativeID == "" {
		return "", platformErr(models.PlatformSnapchat, "creative", "no creative id in response: "+truncateBody(body))
	}

	slog.Info("snapchat creative created", "post_id", post.ID, "creative_id", creativeID)
	return creativeID, nil
}

func (s *snapchatService) createMedia(ctx context.Context, acc models.SocialAccount, post *models.Post) (string, error) {
	mediaType := "IMAGE"
	if post.MediaType == models.MediaTypeVideo {
		mediaType = "VIDEO"
	}

	req := transfer.SnapchatMediaRequest{Media: []transfer.SnapchatMedia{{
		Name:        utils.TruncateRunes(firstNonEmpty(post.Title, post.ID), snapchatNameLimit),
		Type:        mediaType,
		AdAccountID: acc.AccountID,
	}}}
	body, err := s.sendJSON(ctx, "media", http.MethodPost,
		fmt.Sprintf("%s/v1/adaccounts/%s/media", s.cfg.APIBaseURL, acc.AccountID), acc.AccessToken, req)
	if err != nil {
		return "", err
	}

	var resp transfer.SnapchatMediaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", platformErr(models.PlatformSnapchat, "media", fmt.Sprintf("error parsing response: %v", err))
	}
	if len(resp.Media) == 0 || resp.Media[0].Media.ID == "" {
		return "", platformErr(models.PlatformSnapchat, "media", "no media id in response: "+truncateBody(body))
	}
	if sub := resp.Media[0]; sub.SubRequestStatus != "" && sub.SubRequestStatus != "SUCCESS" {
		return "", platformErr(models.PlatformSnapchat, "media", firstNonEmpty(sub.SubRequestErrorReason, sub.SubRequestStatus))
	}
	return resp.Media[0].Media.ID, nil
}

// uploadMedia streams the hosted file into the media object as multipart
// form data without buffering it.
func (s *snapchatService) uploadMedia(ctx context.Context, acc models.SocialAccount, mediaID, mediaURL string) error {
	stream, err := s.media.Open(ctx, mediaURL)
	if err != nil {
		return platformErr(models.PlatformSnapchat, "upload", err.Error())
	}
	defer stream.Body.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", mediaFileName(mediaURL))
		if err == nil {
			_, err = io.Copy(part, stream.Body)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/v1/media/%s/upload", s.cfg.APIBaseURL, mediaID), pr)
	if err != nil {
		pr.Close()
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+acc.AccessToken)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	_, err = s.do(req, "upload")
	pr.Close()
	return err
}

func (s *snapchatService) Delete(ctx context.Context, acc models.SocialAccount, creativeID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/v1/creatives/%s", s.cfg.APIBaseURL, creativeID), nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+acc.AccessToken)

	_, err = s.do(req, "delete")
	return err
}

func (s *snapchatService) sendJSON(ctx context.Context, step, method, endpoint, token string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, step)
}

func (s *snapchatService) do(req *http.Request, step string) ([]byte, error) {
	status, body, err := doJSON(s.client, req, nil)
	if err != nil {
		pe := platformErr(models.PlatformSnapchat, step, err.Error())
		pe.StatusCode = status
		return nil, pe
	}
	if status >= 200 && status < 300 {
		return body, nil
	}

	var snapErr transfer.SnapchatErrorResponse
	_ = decodeError(body, &snapErr)

	pe := platformErr(models.PlatformSnapchat, step, firstNonEmpty(snapErr.DisplayMessage, snapErr.DebugMessage, truncateBody(body)))
	pe.Code = snapErr.ErrorCode
	pe.StatusCode = status
	return nil, pe
}

// extractFirstID returns the first non-empty scalar found at paths, tried in
// order. Dotted segments walk objects; numeric segments index arrays.
func extractFirstID(body []byte, paths []string) string {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return ""
	}

	for _, path := range paths {
		if id := lookupPath(doc, strings.Split(path, ".")); id != "" {
			return id
		}
	}
	return ""
}

func lookupPath(node any, segments []string) string {
	for _, seg := range segments {
		switch v := node.(type) {
		case map[string]any:
			node = v[seg]
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(v) {
				return ""
			}
			node = v[i]
		default:
			return ""
		}
	}

	switch v := node.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func mediaFileName(mediaURL string) string {
	name := mediaURL
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "media"
	}
	return name
}
