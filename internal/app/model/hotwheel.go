package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/hotvault/hotvault-backend/internal/errors"
	"gorm.io/gorm"
)

const (
	MinHotwheelYear = 1900
	MaxHotwheelYear = 2100
)

// ImageDescriptor describes an object stored by the upload adapter.
type ImageDescriptor struct {
	PublicID string `json:"publicId"`
	URL      string `json:"url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Format   string `json:"format"`
}

// Hotwheel is a catalog entry for one collectible.
type Hotwheel struct {
	ID           string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	Model        string           `gorm:"not null" json:"model"`
	Year         int              `gorm:"not null" json:"year"`
	Name         string           `gorm:"not null" json:"name"`
	PurchaseDate time.Time        `gorm:"not null" json:"purchaseDate"`
	Barcode      string           `gorm:"type:varchar(64);not null;uniqueIndex:idx_hotwheels_barcode" json:"barcode"`
	Image        *ImageDescriptor `gorm:"type:text;serializer:json" json:"image"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

func (Hotwheel) TableName() string {
	return "hotwheels"
}

func (h *Hotwheel) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}

func (h *Hotwheel) Normalize() {
	h.Model = strings.TrimSpace(h.Model)
	h.Name = strings.TrimSpace(h.Name)
	h.Barcode = strings.TrimSpace(h.Barcode)
}

func (h *Hotwheel) Validate() error {
	switch {
	case h.Model == "":
		return apperrors.Validationf(apperrors.ValidationRequired, "model is required")
	case h.Name == "":
		return apperrors.Validationf(apperrors.ValidationRequired, "name is required")
	case h.Barcode == "":
		return apperrors.Validationf(apperrors.ValidationRequired, "barcode is required")
	case h.Year < MinHotwheelYear || h.Year > MaxHotwheelYear:
		return apperrors.Validationf(apperrors.ValidationInvalidRange, "year must be between %d and %d", MinHotwheelYear, MaxHotwheelYear)
	case h.PurchaseDate.IsZero():
		return apperrors.Validationf(apperrors.ValidationRequired, "purchaseDate is required")
	}
	return nil
}
