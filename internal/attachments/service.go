package attachments

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/scentstock/scentstock/internal/shared"
)

// PublicPrefix is the URL prefix stored files are served under.
const PublicPrefix = "/uploads/"

// RepositoryPort persists attachment metadata.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]Attachment, error)
	Insert(ctx context.Context, a Attachment) (Attachment, error)
	// Delete removes the row and returns it.
	Delete(ctx context.Context, id int64) (Attachment, error)
}

// Service manages uploaded documents.
type Service struct {
	repo   RepositoryPort
	store  Storage
	logger *slog.Logger
	newID  func() string
}

// NewService builds Service.
func NewService(repo RepositoryPort, store Storage, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, store: store, logger: logger, newID: func() string { return uuid.NewString() }}
}

// List returns attachments newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Attachment, error) {
	return s.repo.List(ctx, filter)
}

// Upload stores the file body and records its metadata. The stored name is
// unique per upload so two files with the same name never collide.
func (s *Service) Upload(ctx context.Context, input UploadInput, body io.Reader) (Attachment, error) {
	original := strings.TrimSpace(input.FileName)
	if original == "" {
		return Attachment{}, fmt.Errorf("%w: no file uploaded", shared.ErrInvalidArgument)
	}
	stored := s.newID() + "-" + SanitizeFilename(original)
	size, err := s.store.Put(ctx, stored, body)
	if err != nil {
		return Attachment{}, err
	}

	a := Attachment{
		FileName:          original,
		StoredFileName:    stored,
		FileType:          input.FileType,
		FileSize:          size,
		FilePath:          PublicPrefix + stored,
		AssociatedOilID:   defaultString(input.AssociatedOilID, GeneralOilID),
		AssociatedOilName: defaultString(input.AssociatedOilName, GeneralOilName),
		UploadedBy:        defaultString(input.UploadedBy, DefaultUploader),
		Notes:             input.Notes,
	}
	saved, err := s.repo.Insert(ctx, a)
	if err != nil {
		if derr := s.store.Delete(ctx, stored); derr != nil {
			s.logger.Warn("remove orphaned upload", slog.String("file", stored), slog.Any("error", derr))
		}
		return Attachment{}, err
	}
	s.logger.Info("attachment uploaded",
		slog.Int64("id", saved.ID),
		slog.String("file", saved.StoredFileName),
		slog.Int64("size", saved.FileSize))
	return saved, nil
}

// Delete removes the metadata row and then the stored file.
func (s *Service) Delete(ctx context.Context, id int64) error {
	a, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, a.StoredFileName); err != nil {
		s.logger.Warn("remove attachment file", slog.String("file", a.StoredFileName), slog.Any("error", err))
	}
	return nil
}

func defaultString(v, fallback string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return fallback
}
