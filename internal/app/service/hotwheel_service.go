package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hotvault/hotvault-backend/internal/app/model"
	"github.com/hotvault/hotvault-backend/internal/app/repository"
	apperrors "github.com/hotvault/hotvault-backend/internal/errors"
	"github.com/hotvault/hotvault-backend/pkg/logger"
)

var (
	ErrInvalidHotwheelID  = apperrors.Malformed(apperrors.ValidationInvalidID, "Invalid hotwheel ID")
	ErrStorageUnavailable = apperrors.New(apperrors.ErrValidation, apperrors.UploadFailed, "Image uploads are not configured")
)

// ObjectStorage persists uploaded images.
type ObjectStorage interface {
	Upload(ctx context.Context, r io.Reader, filename, contentType string) (*model.ImageDescriptor, error)
	Delete(ctx context.Context, publicID string) error
}

// ImageUpload is an image file received with a request.
type ImageUpload struct {
	Reader      io.Reader
	Filename    string
	ContentType string
}

type CreateHotwheelInput struct {
	Model        string
	Year         int
	Name         string
	PurchaseDate time.Time
	Barcode      string
}

// HotwheelPatch is a partial update; nil fields are left unchanged.
type HotwheelPatch struct {
	Model        *string
	Year         *int
	Name         *string
	PurchaseDate *time.Time
	Barcode      *string
}

type ImportResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

type HotwheelService interface {
	CreateHotwheel(ctx context.Context, input CreateHotwheelInput, image *ImageUpload) (*model.Hotwheel, error)
	ListHotwheels(ctx context.Context) ([]model.Hotwheel, error)
	GetHotwheel(ctx context.Context, id string) (*model.Hotwheel, error)
	UpdateHotwheel(ctx context.Context, id string, patch HotwheelPatch, image *ImageUpload) (*model.Hotwheel, error)
	DeleteHotwheel(ctx context.Context, id string) error
	ImportHotwheels(ctx context.Context, inputs []CreateHotwheelInput) (*ImportResult, error)
}

type hotwheelService struct {
	hotwheelRepo repository.HotwheelRepository
	storage      ObjectStorage
}

func NewHotwheelService(hotwheelRepo repository.HotwheelRepository, storage ...ObjectStorage) HotwheelService {
	var st ObjectStorage
	if len(storage) > 0 {
		st = storage[0]
	}
	return &hotwheelService{
		hotwheelRepo: hotwheelRepo,
		storage:      st,
	}
}

// canonicalHotwheelID returns the stored spelling of any id uuid.Parse
// accepts.
func canonicalHotwheelID(id string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", ErrInvalidHotwheelID
	}
	return parsed.String(), nil
}

func (s *hotwheelService) upload(ctx context.Context, image *ImageUpload) (*model.ImageDescriptor, error) {
	if s.storage == nil {
		return nil, ErrStorageUnavailable
	}
	return s.storage.Upload(ctx, image.Reader, image.Filename, image.ContentType)
}

// discardImage removes an uploaded object that no record references.
func (s *hotwheelService) discardImage(ctx context.Context, image *model.ImageDescriptor) {
	if image == nil || s.storage == nil {
		return
	}
	if err := s.storage.Delete(ctx, image.PublicID); err != nil {
		logger.Warn("Failed to delete orphaned image", map[string]interface{}{
			"public_id": image.PublicID,
			"error":     err.Error(),
		})
	}
}

func (s *hotwheelService) CreateHotwheel(ctx context.Context, input CreateHotwheelInput, image *ImageUpload) (*model.Hotwheel, error) {
	hotwheel := &model.Hotwheel{
		Model:        input.Model,
		Year:         input.Year,
		Name:         input.Name,
		PurchaseDate: input.PurchaseDate,
		Barcode:      input.Barcode,
	}
	hotwheel.Normalize()
	if err := hotwheel.Validate(); err != nil {
		return nil, err
	}

	// checked before uploading so a duplicate does not leave an orphaned image
	exists, err := s.hotwheelRepo.ExistsByBarcode(ctx, hotwheel.Barcode)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, repository.ErrDuplicateBarcode
	}

	if image != nil {
		desc, err := s.upload(ctx, image)
		if err != nil {
			return nil, err
		}
		hotwheel.Image = desc
	}

	if err := s.hotwheelRepo.Create(ctx, hotwheel); err != nil {
		s.discardImage(ctx, hotwheel.Image)
		return nil, err
	}

	logger.Info("Hotwheel created", map[string]interface{}{
		"hotwheel_id": hotwheel.ID,
		"barcode":     hotwheel.Barcode,
		"has_image":   hotwheel.Image != nil,
	})
	return hotwheel, nil
}

func (s *hotwheelService) ListHotwheels(ctx context.Context) ([]model.Hotwheel, error) {
	return s.hotwheelRepo.FindAll(ctx)
}

func (s *hotwheelService) GetHotwheel(ctx context.Context, id string) (*model.Hotwheel, error) {
	id, err := canonicalHotwheelID(id)
	if err != nil {
		return nil, err
	}
	return s.hotwheelRepo.FindByID(ctx, id)
}

func (s *hotwheelService) UpdateHotwheel(ctx context.Context, id string, patch HotwheelPatch, image *ImageUpload) (*model.Hotwheel, error) {
	hotwheel, err := s.GetHotwheel(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Model != nil {
		hotwheel.Model = *patch.Model
	}
	if patch.Year != nil {
		hotwheel.Year = *patch.Year
	}
	if patch.Name != nil {
		hotwheel.Name = *patch.Name
	}
	if patch.PurchaseDate != nil {
		hotwheel.PurchaseDate = *patch.PurchaseDate
	}
	if patch.Barcode != nil {
		hotwheel.Barcode = *patch.Barcode
	}
	hotwheel.Normalize()
	if err := hotwheel.Validate(); err != nil {
		return nil, err
	}

	previous := hotwheel.Image
	if image != nil {
		desc, err := s.upload(ctx, image)
		if err != nil {
			return nil, err
		}
		hotwheel.Image = desc
	}

	if err := s.hotwheelRepo.Update(ctx, hotwheel); err != nil {
		if image != nil {
			s.discardImage(ctx, hotwheel.Image)
		}
		return nil, err
	}
	if image != nil {
		s.discardImage(ctx, previous)
	}

	logger.Info("Hotwheel updated", map[string]interface{}{
		"hotwheel_id": hotwheel.ID,
	})
	return hotwheel, nil
}

func (s *hotwheelService) DeleteHotwheel(ctx context.Context, id string) error {
	hotwheel, err := s.GetHotwheel(ctx, id)
	if err != nil {
		return err
	}

	deleted, err := s.hotwheelRepo.DeleteByID(ctx, hotwheel.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return repository.ErrHotwheelNotFound
	}
	s.discardImage(ctx, hotwheel.Image)

	logger.Info("Hotwheel deleted", map[string]interface{}{
		"hotwheel_id": hotwheel.ID,
	})
	return nil
}

// ImportHotwheels creates catalog entries in order, skipping barcodes that
// already exist, including duplicates within the batch. Invalid rows abort
// the import.
func (s *hotwheelService) ImportHotwheels(ctx context.Context, inputs []CreateHotwheelInput) (*ImportResult, error) {
	result := &ImportResult{}
	for i, input := range inputs {
		_, err := s.CreateHotwheel(ctx, input, nil)
		if err == nil {
			result.Created++
			continue
		}
		if errors.Is(err, repository.ErrDuplicateBarcode) {
			logger.Debug("Skipping existing barcode", map[string]interface{}{
				"row":     i + 1,
				"barcode": strings.TrimSpace(input.Barcode),
			})
			result.Skipped++
			continue
		}
		logger.Error("Hotwheel import failed", err, map[string]interface{}{
			"row": i + 1,
		})
		return result, err
	}

	logger.Info("Hotwheel import finished", map[string]interface{}{
		"created": result.Created,
		"skipped": result.Skipped,
	})
	return result, nil
}
