package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp" // registers the webp decoder used by imaging.Decode

	"biolink/internal/config"
	"biolink/internal/model"
)

// UploadFile is one file received from a client.
type UploadFile struct {
	Body        io.Reader
	Size        int64  // declared size, -1 when unknown
	ContentType string // declared type, sniffed when empty
}

// Uploader stores media and returns where it can be fetched.
type Uploader interface {
	UploadAvatar(ctx context.Context, file UploadFile) (*model.UploadResult, error)
	UploadBackground(ctx context.Context, file UploadFile) (*model.UploadResult, error)
}

// objectPutter is the part of *s3.Client the service needs.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// MediaService handles media uploads to Cloudflare R2.
type MediaService struct {
	s3Client  objectPutter
	bucket    string
	publicURL string
}

// NewMediaService constructs an S3-compatible client for Cloudflare R2.
func NewMediaService(ctx context.Context, cfg *config.Config) (*MediaService, error) {
	if !cfg.UploadsEnabled() {
		return nil, fmt.Errorf("missing Cloudflare R2 configuration")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2AccessKeyID, cfg.R2SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for R2: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2AccountID)
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return newMediaService(s3Client, cfg.R2BucketName, cfg.R2PublicURL), nil
}

func newMediaService(client objectPutter, bucket, publicURL string) *MediaService {
	return &MediaService{
		s3Client:  client,
		bucket:    bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

// UploadAvatar enforces size/type, normalizes to a square JPEG, and uploads to R2.
func (s *MediaService) UploadAvatar(ctx context.Context, file UploadFile) (*model.UploadResult, error) {
	data, contentType, err := readUpload(file, model.MaxAvatarSizeBytes)
	if err != nil {
		return nil, err
	}
	if !model.IsAllowedImageType(contentType) {
		return nil, model.ErrInvalidMediaType
	}

	jpegBytes, err := resizeToJPEG(data, model.AvatarWidth, model.AvatarHeight, 85)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/%s%s", model.AvatarFolder, uuid.NewString(), model.AvatarExt)
	if err := s.putObject(ctx, key, jpegBytes, model.ContentTypeJPEG); err != nil {
		return nil, err
	}

	return &model.UploadResult{URL: s.publicURL + "/" + key, Key: key, Kind: model.MediaKindImage}, nil
}

// UploadBackground stores an image or video as-is. The kind is derived from the media type.
func (s *MediaService) UploadBackground(ctx context.Context, file UploadFile) (*model.UploadResult, error) {
	data, contentType, err := readUpload(file, model.MaxBackgroundSizeBytes)
	if err != nil {
		return nil, err
	}

	kind, ext, ok := model.MediaKindOf(contentType)
	if !ok {
		return nil, model.ErrInvalidMediaType
	}

	key := fmt.Sprintf("%s/%s%s", model.BackgroundFolder, uuid.NewString(), ext)
	if err := s.putObject(ctx, key, data, contentType); err != nil {
		return nil, err
	}

	return &model.UploadResult{URL: s.publicURL + "/" + key, Key: key, Kind: kind}, nil
}

// readUpload loads the upload into memory with a size check and resolves its content type.
func readUpload(file UploadFile, maxSize int64) ([]byte, string, error) {
	if file.Size > maxSize {
		return nil, "", model.ErrFileTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(file.Body, maxSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, "", model.ErrFileTooLarge
	}
	if len(data) == 0 {
		return nil, "", model.NewFieldError("file", "must not be empty")
	}

	contentType := model.NormalizeContentType(file.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = model.NormalizeContentType(http.DetectContentType(data[:min(len(data), 512)]))
	}

	return data, contentType, nil
}

// resizeToJPEG centers/crops to target size and encodes as JPEG.
func resizeToJPEG(data []byte, width, height, quality int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: cannot decode image", model.ErrInvalidMediaType)
	}

	resized := imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}

	return buf.Bytes(), nil
}

// putObject uploads bytes to R2. Any storage failure is reported as upstream unavailable.
func (s *MediaService) putObject(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(model.MediaCacheControl),
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: upload to r2: %v", model.ErrUpstreamUnavailable, err)
	}
	return nil
}
