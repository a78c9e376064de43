package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"rentcrm/internal/config"
	"rentcrm/internal/domain"
	"rentcrm/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var extensionsByType = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// UploadService stores agent uploads such as vehicle images.
type UploadService struct {
	repo     domain.UploadRepository
	storage  domain.FileStorage
	allowed  map[string]bool
	maxBytes int64
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewUploadService(repo domain.UploadRepository, storage domain.FileStorage, cfg config.StorageConfig, logger *zerolog.Logger) *UploadService {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	allowed := make(map[string]bool, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		allowed[strings.ToLower(t)] = true
	}
	return &UploadService{
		repo:     repo,
		storage:  storage,
		allowed:  allowed,
		maxBytes: int64(cfg.MaxUploadMB) << 20,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// MaxBytes is the upload size cap.
func (s *UploadService) MaxBytes() int64 {
	return s.maxBytes
}

func (s *UploadService) Upload(ctx context.Context, agent domain.Identity, filename, contentType string, r io.Reader) (*models.Upload, error) {
	if agent.AgentID == "" {
		return nil, domain.ErrUnauthorized
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if !s.allowed[contentType] {
		return nil, domain.Validationf("content type %q is not allowed", contentType)
	}

	head, err := sniffContent(r)
	if err != nil {
		return nil, domain.Validationf("read upload: %v", err)
	}
	if detected := baseMediaType(http.DetectContentType(head)); detected != contentType {
		return nil, domain.Validationf("file content is %s, not %s", detected, contentType)
	}
	r = io.MultiReader(bytes.NewReader(head), r)

	ext, ok := extensionsByType[contentType]
	if !ok {
		ext = strings.ToLower(filepath.Ext(filename))
	}
	key := uuid.NewString() + ext

	// read one byte past the cap to detect oversize files
	n, err := s.storage.Save(ctx, key, io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if n > s.maxBytes {
		if err := s.storage.Delete(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Failed to delete oversize upload")
		}
		return nil, domain.Validationf("file exceeds %d bytes", s.maxBytes)
	}

	upload := &models.Upload{
		Key:          key,
		OriginalName: filepath.Base(filename),
		ContentType:  contentType,
		Size:         n,
		AgentID:      agent.AgentID,
		URL:          s.storage.URL(key),
		CreatedAt:    s.now(),
	}
	if err := s.repo.CreateUpload(ctx, upload); err != nil {
		_ = s.storage.Delete(ctx, key)
		return nil, err
	}
	return upload, nil
}

// Open returns the upload metadata and its content.
func (s *UploadService) Open(ctx context.Context, key string) (*models.Upload, io.ReadCloser, error) {
	upload, err := s.repo.GetUpload(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.storage.Open(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	upload.URL = s.storage.URL(key)
	return upload, rc, nil
}

// sniffContent reads the leading bytes used for content type detection.
func sniffContent(r io.Reader) ([]byte, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}
	return head[:n], nil
}

func baseMediaType(ct string) string {
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
