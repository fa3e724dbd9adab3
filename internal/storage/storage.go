// package storage uploads cover images to S3-compatible object storage
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/charmbracelet/log"

	"github.com/desertthunder/crosspost/internal/shared"
)

// MaxCoverBytes is the largest accepted cover image.
const MaxCoverBytes = 5 << 20

// ObjectPutter is the subset of [s3.Client] used for uploads.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// CoverUploader stores images in one bucket and returns their public URLs.
type CoverUploader struct {
	client    ObjectPutter
	bucket    string
	publicURL string
	logger    *log.Logger
	now       func() time.Time
	http      *http.Client
}

// NewCoverUploader builds an S3 client from cfg. Endpoint, bucket and both keys are required.
func NewCoverUploader(ctx context.Context, cfg shared.StorageConfig, logger *log.Logger) (*CoverUploader, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, fmt.Errorf("%w: storage endpoint, bucket and credentials are required", shared.ErrMissingConfig)
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = cfg.Endpoint
	}
	return NewCoverUploaderWithClient(client, cfg.Bucket, publicURL, logger), nil
}

// NewCoverUploaderWithClient wraps an existing client. publicURL is the base that bucket/key is appended to.
func NewCoverUploaderWithClient(client ObjectPutter, bucket, publicURL string, logger *log.Logger) *CoverUploader {
	return &CoverUploader{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		logger:    shared.WithLogger(logger, "component", "storage"),
		now:       time.Now,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

// Upload stores data under a fresh key derived from filename and returns the object's public URL.
func (u *CoverUploader) Upload(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image", shared.ErrInvalidInput)
	}
	if len(data) > MaxCoverBytes {
		return "", fmt.Errorf("%w: file too large (max 5MB)", shared.ErrInvalidInput)
	}
	if contentType == "" {
		contentType = DetectContentType(filename, data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: %s is not an image", shared.ErrInvalidInput, contentType)
	}

	key := ObjectKey(filename, contentType, u.now())
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}

	url := u.PublicURL(key)
	u.logger.Info("cover uploaded", "key", key, "bytes", len(data))
	return url, nil
}

// UploadFile reads a local image and uploads it.
func (u *CoverUploader) UploadFile(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if info.Size() > MaxCoverBytes {
		return "", fmt.Errorf("%w: file too large (max 5MB)", shared.ErrInvalidInput)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	return u.Upload(ctx, filepath.Base(path), data, "")
}

// UploadURL downloads a remote image and re-hosts it.
func (u *CoverUploader) UploadURL(ctx context.Context, src string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	resp, err := u.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxCoverBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read image data: %w", err)
	}

	contentType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return u.Upload(ctx, path.Base(req.URL.Path), data, contentType)
}

// PublicURL joins the public base, bucket and key.
func (u *CoverUploader) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", u.publicURL, u.bucket, key)
}

var imageExtensions = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

// ObjectKey builds "covers/YYYY/MM/<uuid><ext>". The extension comes from filename, else from contentType.
func ObjectKey(filename, contentType string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || ext == "." {
		ext = imageExtensions[contentType]
		if ext == "" {
			if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
				ext = exts[0]
			}
		}
	}
	return fmt.Sprintf("covers/%s/%s%s", now.UTC().Format("2006/01"), shared.GenerateID(), ext)
}

// DetectContentType prefers the extension's registered type and falls back to sniffing data.
func DetectContentType(filename string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); t != "" {
		mt, _, err := mime.ParseMediaType(t)
		if err == nil {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mt
}
