package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/hotvault/hotvault-backend/config"
	"github.com/hotvault/hotvault-backend/internal/app/model"
	apperrors "github.com/hotvault/hotvault-backend/internal/errors"
	"github.com/hotvault/hotvault-backend/pkg/logger"
)

// MaxImageSize is the largest accepted image upload.
const MaxImageSize int64 = 5 << 20

var AllowedImageTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
}

var (
	ErrInvalidImageType = apperrors.New(apperrors.ErrValidation, apperrors.UploadInvalidFileType, "Only image files are allowed (JPEG, PNG, GIF, WEBP)")
	ErrImageTooLarge    = apperrors.New(apperrors.ErrValidation, apperrors.UploadFileTooLarge, fmt.Sprintf("Image exceeds maximum allowed size of %d bytes", MaxImageSize))
	ErrUploadFailed     = apperrors.New(errors.New("upload failed"), apperrors.UploadFailed, "Failed to upload image")
)

// objectAPI is the subset of the S3 client used here.
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Storage struct {
	client  objectAPI
	bucket  string
	region  string
	baseURL string
	folder  string
}

func NewS3Storage(cfg config.S3Config) *S3Storage {
	var awsCfg aws.Config
	var err error

	// Static credentials win; otherwise fall back to the default chain
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg = aws.Config{
			Region: cfg.Region,
			Credentials: credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
		}
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.Region),
		)
		if err != nil {
			logger.Warn("Failed to load default AWS config, using region only", map[string]interface{}{
				"error": err.Error(),
			})
			awsCfg = aws.Config{Region: cfg.Region}
		}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Storage(client, cfg)
}

func newS3Storage(client objectAPI, cfg config.S3Config) *S3Storage {
	folder := strings.Trim(cfg.Folder, "/")
	if folder == "" {
		folder = "hotwheels"
	}
	return &S3Storage{
		client:  client,
		bucket:  cfg.Bucket,
		region:  cfg.Region,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		folder:  folder,
	}
}

// Upload stores an image and describes it. The declared content type is not
// trusted; the type is sniffed from the bytes.
func (s *S3Storage) Upload(ctx context.Context, r io.Reader, filename, contentType string) (*model.ImageDescriptor, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := ValidateFileSize(int64(len(data)), MaxImageSize); err != nil {
		return nil, err
	}

	detected := DetectContentType(data)
	if err := ValidateContentType(detected, AllowedImageTypes); err != nil {
		logger.Warn("Rejected upload with invalid content type", map[string]interface{}{
			"filename":      filename,
			"declared_type": contentType,
			"detected_type": detected,
		})
		return nil, err
	}

	width, height, format := describeImage(data, detected)
	key := s.objectKey(filename, format)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(detected),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		logger.Error("Failed to upload image to S3", err, map[string]interface{}{
			"bucket": s.bucket,
			"key":    key,
		})
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	logger.Info("Image uploaded", map[string]interface{}{
		"key":    key,
		"size":   len(data),
		"format": format,
	})

	return &model.ImageDescriptor{
		PublicID: key,
		URL:      s.ObjectURL(key),
		Width:    width,
		Height:   height,
		Format:   format,
	}, nil
}

func (s *S3Storage) Delete(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(publicID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", publicID, err)
	}
	return nil
}

// ObjectURL returns the public URL of a key, preferring the configured CDN
// or custom domain.
func (s *S3Storage) ObjectURL(key string) string {
	if s.baseURL != "" {
		return fmt.Sprintf("%s/%s", s.baseURL, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

func (s *S3Storage) objectKey(filename, format string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" && format != "" {
		ext = "." + format
	}
	return fmt.Sprintf("%s/%s%s", s.folder, uuid.NewString(), ext)
}

// DetectContentType sniffs the media type of data, without parameters.
func DetectContentType(data []byte) string {
	return strings.SplitN(mimetype.Detect(data).String(), ";", 2)[0]
}

// describeImage reads the header for dimensions. Formats without a
// registered decoder keep zero dimensions.
func describeImage(data []byte, contentType string) (int, int, string) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil {
		return cfg.Width, cfg.Height, format
	}
	return 0, 0, strings.TrimPrefix(contentType, "image/")
}

func ValidateFileSize(size int64, maxSize int64) error {
	if size > maxSize {
		return ErrImageTooLarge
	}
	return nil
}

func ValidateContentType(contentType string, allowedTypes []string) error {
	for _, allowed := range allowedTypes {
		if contentType == allowed {
			return nil
		}
	}
	return ErrInvalidImageType
}
