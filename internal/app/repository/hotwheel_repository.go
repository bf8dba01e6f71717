package repository

import (
	"context"
	"errors"

	"github.com/hotvault/hotvault-backend/internal/app/model"
	apperrors "github.com/hotvault/hotvault-backend/internal/errors"
	"github.com/hotvault/hotvault-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrHotwheelNotFound = apperrors.New(apperrors.ErrNotFound, apperrors.HotwheelNotFound, "Hotwheel not found")
	ErrDuplicateBarcode = apperrors.New(apperrors.ErrConflict, apperrors.HotwheelBarcodeExists, "Duplicate barcode")
)

type HotwheelRepository interface {
	Create(ctx context.Context, hotwheel *model.Hotwheel) error
	FindAll(ctx context.Context) ([]model.Hotwheel, error)
	FindByID(ctx context.Context, id string) (*model.Hotwheel, error)
	ExistsByBarcode(ctx context.Context, barcode string) (bool, error)
	Update(ctx context.Context, hotwheel *model.Hotwheel) error
	DeleteByID(ctx context.Context, id string) (bool, error)
}

type hotwheelRepository struct {
	db *gorm.DB
}

func NewHotwheelRepository(db *gorm.DB) HotwheelRepository {
	return &hotwheelRepository{db: db}
}

func prepareHotwheel(hotwheel *model.Hotwheel) error {
	hotwheel.Normalize()
	return hotwheel.Validate()
}

func (r *hotwheelRepository) Create(ctx context.Context, hotwheel *model.Hotwheel) error {
	if err := prepareHotwheel(hotwheel); err != nil {
		return err
	}

	logger.Debug("Creating hotwheel in database", map[string]interface{}{
		"barcode": hotwheel.Barcode,
		"name":    hotwheel.Name,
	})

	if err := r.db.WithContext(ctx).Create(hotwheel).Error; err != nil {
		if apperrors.IsDuplicateKey(err) {
			return ErrDuplicateBarcode
		}
		logger.Error("Failed to create hotwheel in database", err, map[string]interface{}{
			"barcode": hotwheel.Barcode,
		})
		return err
	}

	logger.Debug("Hotwheel created in database", map[string]interface{}{
		"hotwheel_id": hotwheel.ID,
	})
	return nil
}

func (r *hotwheelRepository) FindAll(ctx context.Context) ([]model.Hotwheel, error) {
	hotwheels := []model.Hotwheel{}
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&hotwheels).Error; err != nil {
		logger.Error("Failed to list hotwheels in database", err)
		return nil, err
	}

	logger.Debug("Hotwheels listed from database", map[string]interface{}{
		"count": len(hotwheels),
	})
	return hotwheels, nil
}

func (r *hotwheelRepository) FindByID(ctx context.Context, id string) (*model.Hotwheel, error) {
	var hotwheel model.Hotwheel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&hotwheel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHotwheelNotFound
		}
		logger.Error("Failed to find hotwheel by ID in database", err, map[string]interface{}{
			"hotwheel_id": id,
		})
		return nil, err
	}
	return &hotwheel, nil
}

func (r *hotwheelRepository) ExistsByBarcode(ctx context.Context, barcode string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Hotwheel{}).Where("barcode = ?", barcode).Count(&count).Error
	if err != nil {
		logger.Error("Failed to check hotwheel barcode in database", err, map[string]interface{}{
			"barcode": barcode,
		})
		return false, err
	}
	return count > 0, nil
}

func (r *hotwheelRepository) Update(ctx context.Context, hotwheel *model.Hotwheel) error {
	if err := prepareHotwheel(hotwheel); err != nil {
		return err
	}

	logger.Debug("Updating hotwheel in database", map[string]interface{}{
		"hotwheel_id": hotwheel.ID,
	})

	if err := r.db.WithContext(ctx).Save(hotwheel).Error; err != nil {
		if apperrors.IsDuplicateKey(err) {
			return ErrDuplicateBarcode
		}
		logger.Error("Failed to update hotwheel in database", err, map[string]interface{}{
			"hotwheel_id": hotwheel.ID,
		})
		return err
	}
	return nil
}

func (r *hotwheelRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Hotwheel{})
	if result.Error != nil {
		logger.Error("Failed to delete hotwheel from database", result.Error, map[string]interface{}{
			"hotwheel_id": id,
		})
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
