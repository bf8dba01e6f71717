package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hotvault/hotvault-backend/internal/app/model"
	apperrors "github.com/hotvault/hotvault-backend/internal/errors"
	"github.com/hotvault/hotvault-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrCartNotFound   = apperrors.New(apperrors.ErrNotFound, apperrors.CartNotFound, "Cart not found")
	ErrOpenCartExists = apperrors.New(apperrors.ErrConflict, apperrors.CartOpenExists, "An open cart already exists for this user")
	// ErrStaleCart means the cart changed between load and save.
	ErrStaleCart = apperrors.New(apperrors.ErrConflict, apperrors.CartConcurrentEdit, "Cart was modified concurrently, please retry")
)

type CartFilter struct {
	UserID string
}

type CartRepository interface {
	Create(ctx context.Context, cart *model.Cart) error
	FindByID(ctx context.Context, id string) (*model.Cart, error)
	FindOpenByUser(ctx context.Context, userID string) (*model.Cart, error)
	FindAll(ctx context.Context, filter CartFilter) ([]model.Cart, error)
	Save(ctx context.Context, cart *model.Cart) error
	DeleteByID(ctx context.Context, id string) (bool, error)
}

type cartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

// prepareCart is the single point where a cart is made consistent before it
// is written: strings trimmed, total recomputed from items, schema checked.
func prepareCart(cart *model.Cart) error {
	cart.Normalize()
	return cart.Validate()
}

func (r *cartRepository) Create(ctx context.Context, cart *model.Cart) error {
	cart.State = model.CartStateOpen
	cart.Version = 1
	if err := prepareCart(cart); err != nil {
		logger.Debug("Rejected invalid cart on create", map[string]interface{}{
			"user_id": cart.UserID,
			"error":   err.Error(),
		})
		return err
	}

	logger.Debug("Creating cart in database", map[string]interface{}{
		"user_id": cart.UserID,
		"items":   len(cart.Items),
		"total":   cart.Total,
	})

	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		if apperrors.IsDuplicateKey(err) {
			logger.Debug("Open cart already exists for user", map[string]interface{}{
				"user_id": cart.UserID,
			})
			return ErrOpenCartExists
		}
		logger.Error("Failed to create cart in database", err, map[string]interface{}{
			"user_id": cart.UserID,
		})
		return err
	}

	logger.Debug("Cart created in database", map[string]interface{}{
		"cart_id": cart.ID,
		"user_id": cart.UserID,
	})
	return nil
}

func (r *cartRepository) FindByID(ctx context.Context, id string) (*model.Cart, error) {
	var cart model.Cart
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCartNotFound
		}
		logger.Error("Failed to find cart by ID in database", err, map[string]interface{}{
			"cart_id": id,
		})
		return nil, err
	}
	return &cart, nil
}

func (r *cartRepository) FindOpenByUser(ctx context.Context, userID string) (*model.Cart, error) {
	var cart model.Cart
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND state = ?", userID, model.CartStateOpen).
		First(&cart).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCartNotFound
		}
		logger.Error("Failed to find open cart by user in database", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return &cart, nil
}

func (r *cartRepository) FindAll(ctx context.Context, filter CartFilter) ([]model.Cart, error) {
	logger.Debug("Listing carts in database", map[string]interface{}{
		"user_id": filter.UserID,
	})

	query := r.db.WithContext(ctx).Model(&model.Cart{})
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}

	carts := []model.Cart{}
	if err := query.Order("created_at DESC").Find(&carts).Error; err != nil {
		logger.Error("Failed to list carts in database", err, map[string]interface{}{
			"user_id": filter.UserID,
		})
		return nil, err
	}

	logger.Debug("Carts listed from database", map[string]interface{}{
		"user_id": filter.UserID,
		"count":   len(carts),
	})
	return carts, nil
}

// Save writes the whole aggregate. The update is conditional on the version
// the cart was loaded with; on success the version is bumped in place.
func (r *cartRepository) Save(ctx context.Context, cart *model.Cart) error {
	if err := prepareCart(cart); err != nil {
		return err
	}

	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("id = ? AND version = ?", cart.ID, cart.Version).
		Updates(map[string]interface{}{
			"user_id":    cart.UserID,
			"state":      cart.State,
			"items":      cart.Items,
			"total":      cart.Total,
			"version":    cart.Version + 1,
			"updated_at": now,
		})
	if result.Error != nil {
		if apperrors.IsDuplicateKey(result.Error) {
			return ErrOpenCartExists
		}
		logger.Error("Failed to save cart in database", result.Error, map[string]interface{}{
			"cart_id": cart.ID,
		})
		return result.Error
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&model.Cart{}).Where("id = ?", cart.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrCartNotFound
		}
		logger.Debug("Stale cart version on save", map[string]interface{}{
			"cart_id": cart.ID,
			"version": cart.Version,
		})
		return ErrStaleCart
	}

	cart.Version++
	cart.UpdatedAt = now

	logger.Debug("Cart saved in database", map[string]interface{}{
		"cart_id": cart.ID,
		"state":   cart.State,
		"items":   len(cart.Items),
		"total":   cart.Total,
		"version": cart.Version,
	})
	return nil
}

func (r *cartRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Cart{})
	if result.Error != nil {
		logger.Error("Failed to delete cart from database", result.Error, map[string]interface{}{
			"cart_id": id,
		})
		return false, result.Error
	}

	logger.Debug("Cart delete executed", map[string]interface{}{
		"cart_id": id,
		"deleted": result.RowsAffected > 0,
	})
	return result.RowsAffected > 0, nil
}
