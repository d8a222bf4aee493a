package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	config "github.com/maheshrc27/crosspost/configs"
	"github.com/maheshrc27/crosspost/internal/models"
)

// filetype needs at most this many leading bytes to match a signature.
const sniffLen = 262

// MediaStream is an open handle on externally hosted media. Callers must
// close Body.
type MediaStream struct {
	Body        io.ReadCloser
	ContentType string
	Kind        models.MediaType
	Size        int64
}

// MediaService streams post media from where it is hosted. Media is never
// buffered to disk or stored.
type MediaService interface {
	Open(ctx context.Context, mediaURL string) (*MediaStream, error)
}

type mediaService struct {
	cfg    config.R2
	client *http.Client
	r2     *s3.Client
}

func NewMediaService(ctx context.Context, cfg *config.Config, client *http.Client) (MediaService, error) {
	s := &mediaService{cfg: cfg.R2, client: client}
	if cfg.R2.AccountID == "" {
		return s, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2.AccessKey, cfg.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	s.r2 = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2.AccountID))
	})
	return s, nil
}

func (s *mediaService) Open(ctx context.Context, mediaURL string) (*MediaStream, error) {
	if key, ok := s.r2Key(mediaURL); ok {
		return s.openR2(ctx, key)
	}
	return s.openHTTP(ctx, mediaURL)
}

// r2Key maps r2://<key> and URLs under the bucket's public URL to an object
// key. Those are read through the S3 API instead of the public CDN.
func (s *mediaService) r2Key(mediaURL string) (string, bool) {
	if s.r2 == nil {
		return "", false
	}
	if key, ok := strings.CutPrefix(mediaURL, "r2://"); ok {
		return key, key != ""
	}
	if s.cfg.PublicURL != "" {
		if key, ok := strings.CutPrefix(mediaURL, strings.TrimSuffix(s.cfg.PublicURL, "/")+"/"); ok {
			return key, key != ""
		}
	}
	return "", false
}

func (s *mediaService) openR2(ctx context.Context, key string) (*MediaStream, error) {
	out, err := s.r2.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.BucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("fetch media %s from R2: %w", key, err)
	}
	return sniff(out.Body, aws.ToString(out.ContentType), aws.ToInt64(out.ContentLength))
}

func (s *mediaService) openHTTP(ctx context.Context, mediaURL string) (*MediaStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error downloading media: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected media response status: %d", resp.StatusCode)
	}
	return sniff(resp.Body, resp.Header.Get("Content-Type"), resp.ContentLength)
}

type readCloser struct {
	io.Reader
	io.Closer
}

// sniff classifies the stream by its magic bytes without consuming them.
func sniff(body io.ReadCloser, contentType string, size int64) (*MediaStream, error) {
	br := bufio.NewReaderSize(body, 4096)
	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		body.Close()
		return nil, fmt.Errorf("error reading media: %w", err)
	}

	stream := &MediaStream{
		Body:        readCloser{Reader: br, Closer: body},
		ContentType: contentType,
		Kind:        models.MediaTypeNone,
		Size:        size,
	}

	switch {
	case filetype.IsVideo(head):
		stream.Kind = models.MediaTypeVideo
	case filetype.IsImage(head):
		stream.Kind = models.MediaTypeImage
	}
	if kind, err := filetype.Match(head); err == nil && kind != types.Unknown {
		stream.ContentType = kind.MIME.Value
	}
	if stream.ContentType == "" {
		stream.ContentType = "application/octet-stream"
	}
	return stream, nil
}
