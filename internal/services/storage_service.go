// internal/services/storage_service.go
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bigdiamond/atelier-backend/internal/config"
	"github.com/bigdiamond/atelier-backend/internal/models"
)

var (
	ErrFileTooLarge    = errors.New("file too large")
	ErrFileTypeInvalid = errors.New("file type not allowed")
)

type UploadResult struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

type UploadOptions struct {
	Folder       string
	MaxSize      int64 // in bytes
	AllowedTypes []string
	IsPublic     bool
}

// FileStorage stores project attachments.
type FileStorage interface {
	Upload(ctx context.Context, r io.Reader, filename string, opts UploadOptions) (*UploadResult, error)
	Delete(ctx context.Context, key string) error
}

// StorageService writes to S3 when credentials are configured and to the
// local uploads directory otherwise.
type StorageService struct {
	s3Client  *s3.S3
	aws       config.AWSConfig
	publicURL string
	now       func() time.Time
}

func NewStorageService(cfg config.AWSConfig, publicURL string) (*StorageService, error) {
	s := &StorageService{
		aws:       cfg,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}
	if cfg.AccessKeyID == "" {
		if err := os.MkdirAll(cfg.UploadsDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create uploads directory: %w", err)
		}
		return s, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	s.s3Client = s3.New(sess)
	return s, nil
}

func (s *StorageService) Upload(ctx context.Context, r io.Reader, filename string, opts UploadOptions) (*UploadResult, error) {
	limit := opts.MaxSize
	if limit <= 0 {
		limit = 5 * 1024 * 1024
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, limit)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtension(ext, opts.AllowedTypes) {
		return nil, fmt.Errorf("%w: %s", ErrFileTypeInvalid, ext)
	}

	mimeType := mimetype.Detect(data).String()
	key := s.generateFileName(filename, opts.Folder)

	if s.s3Client != nil {
		return s.uploadToS3(ctx, data, key, mimeType, opts.IsPublic)
	}
	return s.uploadToLocal(data, key, mimeType)
}

func (s *StorageService) uploadToS3(ctx context.Context, data []byte, key, contentType string, isPublic bool) (*UploadResult, error) {
	params := &s3.PutObjectInput{
		Bucket:        aws.String(s.aws.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if isPublic {
		params.ACL = aws.String("public-read")
	}

	if _, err := s.s3Client.PutObjectWithContext(ctx, params); err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &UploadResult{
		URL:      s.getS3URL(key),
		Key:      key,
		Size:     int64(len(data)),
		MimeType: contentType,
	}, nil
}

func (s *StorageService) uploadToLocal(data []byte, key, contentType string) (*UploadResult, error) {
	path := filepath.Join(s.aws.UploadsDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload folder: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	return &UploadResult{
		URL:      fmt.Sprintf("%s/uploads/%s", s.publicURL, key),
		Key:      key,
		Size:     int64(len(data)),
		MimeType: contentType,
	}, nil
}

func (s *StorageService) Delete(ctx context.Context, key string) error {
	if s.s3Client == nil {
		err := os.Remove(filepath.Join(s.aws.UploadsDir, filepath.FromSlash(key)))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete file: %w", err)
		}
		return nil
	}

	_, err := s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.aws.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}

// GeneratePresignedURL gives temporary access to a private CAD file.
func (s *StorageService) GeneratePresignedURL(key string, expiration time.Duration) (string, error) {
	if s.s3Client == nil {
		return fmt.Sprintf("%s/uploads/%s", s.publicURL, key), nil
	}

	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.aws.S3Bucket),
		Key:    aws.String(key),
	})
	url, err := req.Presign(expiration)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url, nil
}

// AttachmentUploadOptions returns the limits for an attachment kind, or
// false for an unknown kind.
func AttachmentUploadOptions(kind models.AttachmentKind, projectID uuid.UUID) (UploadOptions, bool) {
	folder := "projects/" + projectID.String()
	switch kind {
	case models.AttachmentKindInspiration:
		return UploadOptions{
			Folder:       folder + "/inspiration",
			MaxSize:      10 * 1024 * 1024, // 10MB
			AllowedTypes: []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".pdf"},
			IsPublic:     true,
		}, true
	case models.AttachmentKindCAD:
		return UploadOptions{
			Folder:       folder + "/cad",
			MaxSize:      50 * 1024 * 1024, // 50MB
			AllowedTypes: []string{".stl", ".obj", ".3dm", ".step", ".stp", ".pdf", ".jpg", ".jpeg", ".png"},
			IsPublic:     false,
		}, true
	default:
		logrus.WithField("kind", kind).Debug("Unknown attachment kind")
		return UploadOptions{}, false
	}
}

func (s *StorageService) generateFileName(originalName, folder string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	filename := fmt.Sprintf("%s_%s%s", s.now().UTC().Format("20060102"), uuid.New().String()[:8], ext)
	if folder != "" {
		return folder + "/" + filename
	}
	return filename
}

func (s *StorageService) getS3URL(key string) string {
	if s.aws.CloudFrontURL != "" {
		return fmt.Sprintf("%s/%s", strings.TrimRight(s.aws.CloudFrontURL, "/"), key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.aws.S3Bucket, s.aws.Region, key)
}

func allowedExtension(ext string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}
