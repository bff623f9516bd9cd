// internal/services/storage_service.go
package services

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/collabhub/collab-backend/internal/config"
)

// StorageService stores deliverable attachments that fulfillers upload with
// a milestone submission. The milestone keeps only the returned object key in
// its file_refs; downloads go through short-lived presigned URLs so
// attachments stay private to the agreement's parties.
type StorageService struct {
	s3Client *s3.S3
	config   *config.Config
}

type UploadResult struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

var attachmentTypes = []string{".jpg", ".jpeg", ".png", ".gif", ".pdf", ".mp4", ".mp3", ".zip", ".psd", ".ai"}

const maxAttachmentSize = 100 * 1024 * 1024 // 100MB

func NewStorageService(cfg *config.Config) (*StorageService, error) {
	if cfg.AWS.AccessKeyID == "" {
		// No credentials: run without S3, uploads resolve to local URLs.
		return &StorageService{config: cfg}, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &StorageService{
		s3Client: s3.New(sess),
		config:   cfg,
	}, nil
}

// UploadAttachment validates and stores one submission attachment under the
// milestone's folder and returns the object key to put in file_refs.
func (s *StorageService) UploadAttachment(file multipart.File, header *multipart.FileHeader, milestoneID uuid.UUID) (*UploadResult, error) {
	if header.Size > maxAttachmentSize {
		return nil, fmt.Errorf("%w: file size %d bytes exceeds the %d byte limit", ErrValidation, header.Size, int64(maxAttachmentSize))
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	allowed := false
	for _, t := range attachmentTypes {
		if ext == t {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: file type %s is not allowed", ErrValidation, ext)
	}

	key := s.objectKey(header.Filename, milestoneID)

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	contentType := header.Header.Get("Content-Type")
	if s.s3Client == nil {
		return &UploadResult{
			URL:      fmt.Sprintf("http://localhost:8080/uploads/%s", key),
			Key:      key,
			Size:     int64(len(fileBytes)),
			MimeType: contentType,
		}, nil
	}

	_, err = s.s3Client.PutObject(&s3.PutObjectInput{
		Bucket:        aws.String(s.config.AWS.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(fileBytes),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(fileBytes))),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &UploadResult{
		URL:      s.objectURL(key),
		Key:      key,
		Size:     int64(len(fileBytes)),
		MimeType: contentType,
	}, nil
}

// AttachmentURL returns a presigned download URL for a stored attachment.
func (s *StorageService) AttachmentURL(key string, expiration time.Duration) (string, error) {
	if s.s3Client == nil {
		return fmt.Sprintf("http://localhost:8080/uploads/%s", key), nil
	}

	req, _ := s.s3Client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})

	url, err := req.Presign(expiration)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url, nil
}

func (s *StorageService) DeleteAttachment(key string) error {
	if s.s3Client == nil {
		logrus.WithField("key", key).Info("Attachment delete skipped (S3 not configured)")
		return nil
	}

	_, err := s.s3Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(s.config.AWS.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}
	return nil
}

func (s *StorageService) objectKey(originalName string, milestoneID uuid.UUID) string {
	id := uuid.New()
	ext := filepath.Ext(originalName)
	timestamp := time.Now().Format("20060102")
	return fmt.Sprintf("submissions/%s/%s_%s%s", milestoneID, timestamp, id.String()[:8], ext)
}

func (s *StorageService) objectURL(key string) string {
	if s.config.AWS.CloudFrontURL != "" {
		return fmt.Sprintf("%s/%s", s.config.AWS.CloudFrontURL, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s",
		s.config.AWS.S3Bucket, s.config.AWS.Region, key)
}
