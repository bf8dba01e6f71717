package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/hotvault/hotvault-backend/internal/app/model"
	"github.com/hotvault/hotvault-backend/internal/app/repository"
	apperrors "github.com/hotvault/hotvault-backend/internal/errors"
	"github.com/hotvault/hotvault-backend/pkg/logger"
)

// maxSaveAttempts bounds the load-apply-save loop when concurrent writers
// keep invalidating the loaded version.
const maxSaveAttempts = 5

var (
	ErrCartClosed        = apperrors.New(apperrors.ErrConflict, apperrors.CartClosed, "Cart is closed")
	ErrCartAlreadyClosed = apperrors.New(apperrors.ErrConflict, apperrors.CartAlreadyClosed, "Cart was already closed")
	ErrCartReopen        = apperrors.New(apperrors.ErrConflict, apperrors.CartInvalidState, "A closed cart cannot be reopened")
	ErrCartItemNotFound  = apperrors.New(apperrors.ErrNotFound, apperrors.CartItemNotFound, "Item not found in cart")
	ErrInvalidCartID     = apperrors.Malformed(apperrors.ValidationInvalidID, "Invalid cart ID")
	ErrUserIDRequired    = apperrors.New(apperrors.ErrValidation, apperrors.ValidationRequired, "userId is required")
	ErrProductIDRequired = apperrors.New(apperrors.ErrValidation, apperrors.ValidationRequired, "productId is required")
	ErrInvalidQuantity   = apperrors.New(apperrors.ErrValidation, apperrors.ValidationInvalidRange, "quantity must be >= 1")
)

// CartLocker serializes work on a key across processes.
type CartLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// AddItemInput describes an item to merge into a cart. Nil fields were not
// supplied by the caller.
type AddItemInput struct {
	ProductID string
	Name      *string
	UnitPrice *float64
	Quantity  *int
}

// ItemPatch is a partial update of one cart line.
type ItemPatch struct {
	Quantity  *int
	UnitPrice *float64
	Name      *string
}

// CartReplacement overwrites the cart fields that are non-nil. Totals are
// derived from items.
type CartReplacement struct {
	UserID *string
	State  *model.CartState
	Items  *model.CartItems
}

type CartService interface {
	CreateCart(ctx context.Context, userID string, items []model.CartItem) (*model.Cart, error)
	GetCart(ctx context.Context, cartID string) (*model.Cart, error)
	GetOrCreateOpenCart(ctx context.Context, userID string) (*model.Cart, error)
	ListCarts(ctx context.Context, userID string) ([]model.Cart, error)
	ReplaceCart(ctx context.Context, cartID string, replacement CartReplacement) (*model.Cart, error)
	DeleteCart(ctx context.Context, cartID string) error
	AddItem(ctx context.Context, cartID string, input AddItemInput) (*model.Cart, error)
	UpdateItem(ctx context.Context, cartID, productID string, patch ItemPatch) (*model.Cart, error)
	RemoveItem(ctx context.Context, cartID, productID string) (*model.Cart, error)
	Checkout(ctx context.Context, cartID string) (*model.Cart, error)
}

type cartService struct {
	cartRepo repository.CartRepository
	locker   CartLocker
}

func NewCartService(cartRepo repository.CartRepository, locker ...CartLocker) CartService {
	var l CartLocker
	if len(locker) > 0 {
		l = locker[0]
	}
	return &cartService{
		cartRepo: cartRepo,
		locker:   l,
	}
}

// errNoChange tells mutate that fn left the cart as it was, so nothing is
// written.
var errNoChange = errors.New("cart unchanged")

// canonicalCartID accepts any spelling uuid.Parse does (upper case, braces,
// urn prefix, no dashes) and returns the form ids are stored in.
func canonicalCartID(cartID string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(cartID))
	if err != nil {
		return "", ErrInvalidCartID
	}
	return id.String(), nil
}

// mergeItems collapses lines sharing a productId: quantities add up, later
// names and prices win.
func mergeItems(items []model.CartItem) model.CartItems {
	merged := make(model.CartItems, 0, len(items))
	for _, item := range items {
		item.ProductID = strings.TrimSpace(item.ProductID)
		if idx := merged.Index(item.ProductID); idx >= 0 {
			merged[idx].Quantity += item.Quantity
			merged[idx].Name = item.Name
			merged[idx].UnitPrice = item.UnitPrice
			continue
		}
		merged = append(merged, item)
	}
	return merged
}

func (s *cartService) CreateCart(ctx context.Context, userID string, items []model.CartItem) (*model.Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}

	logger.Info("Creating cart", map[string]interface{}{
		"user_id": userID,
		"items":   len(items),
	})

	cart := &model.Cart{
		UserID: userID,
		Items:  mergeItems(items),
	}
	if err := s.cartRepo.Create(ctx, cart); err != nil {
		if errors.Is(err, repository.ErrOpenCartExists) {
			logger.Warn("Cannot create cart: open cart already exists", map[string]interface{}{
				"user_id": userID,
			})
		}
		return nil, err
	}

	logger.Info("Cart created successfully", map[string]interface{}{
		"cart_id": cart.ID,
		"user_id": userID,
		"total":   cart.Total,
	})
	return cart, nil
}

func (s *cartService) GetCart(ctx context.Context, cartID string) (*model.Cart, error) {
	id, err := canonicalCartID(cartID)
	if err != nil {
		return nil, err
	}
	return s.cartRepo.FindByID(ctx, id)
}

// GetOrCreateOpenCart returns the user's open cart, creating an empty one if
// needed. A create that loses the race to another request re-reads the
// winner's cart instead of failing.
func (s *cartService) GetOrCreateOpenCart(ctx context.Context, userID string) (*model.Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, "cart-open:"+userID)
		if err != nil {
			// the unique index still guarantees correctness
			logger.Warn("Proceeding without open-cart lock", map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			})
		} else {
			defer unlock()
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		cart, err := s.cartRepo.FindOpenByUser(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, repository.ErrCartNotFound) {
			return nil, err
		}

		cart = &model.Cart{UserID: userID}
		err = s.cartRepo.Create(ctx, cart)
		if err == nil {
			logger.Info("Open cart created implicitly", map[string]interface{}{
				"cart_id": cart.ID,
				"user_id": userID,
			})
			return cart, nil
		}
		if !errors.Is(err, repository.ErrOpenCartExists) {
			return nil, err
		}

		logger.Debug("Lost open cart creation race, re-reading", map[string]interface{}{
			"user_id": userID,
			"attempt": attempt + 1,
		})
		lastErr = err
	}
	return nil, lastErr
}

func (s *cartService) ListCarts(ctx context.Context, userID string) ([]model.Cart, error) {
	return s.cartRepo.FindAll(ctx, repository.CartFilter{UserID: strings.TrimSpace(userID)})
}

// mutate loads the cart, applies fn and saves it, starting over when the save
// loses to a concurrent writer. fn must be safe to run more than once.
func (s *cartService) mutate(ctx context.Context, cartID, operation string, fn func(cart *model.Cart) error) (*model.Cart, error) {
	cartID, err := canonicalCartID(cartID)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		cart, err := s.cartRepo.FindByID(ctx, cartID)
		if err != nil {
			return nil, err
		}
		err = fn(cart)
		if errors.Is(err, errNoChange) {
			return cart, nil
		}
		if err != nil {
			logger.Warn("Cart operation rejected", map[string]interface{}{
				"cart_id":   cartID,
				"operation": operation,
				"reason":    err.Error(),
			})
			return nil, err
		}

		err = s.cartRepo.Save(ctx, cart)
		if err == nil {
			logger.Info("Cart updated", map[string]interface{}{
				"cart_id":   cart.ID,
				"operation": operation,
				"state":     cart.State,
				"total":     cart.Total,
			})
			return cart, nil
		}
		if !errors.Is(err, repository.ErrStaleCart) || attempt >= maxSaveAttempts {
			return nil, err
		}

		logger.Debug("Retrying cart operation after concurrent update", map[string]interface{}{
			"cart_id":   cartID,
			"operation": operation,
			"attempt":   attempt,
		})
	}
}

func (s *cartService) ReplaceCart(ctx context.Context, cartID string, replacement CartReplacement) (*model.Cart, error) {
	return s.mutate(ctx, cartID, "replace", func(cart *model.Cart) error {
		wasClosed := !cart.IsOpen()

		if replacement.State != nil {
			if !replacement.State.Valid() {
				return apperrors.Validationf(apperrors.CartInvalidState, "state must be one of open, closed (got %q)", *replacement.State)
			}
			if wasClosed && *replacement.State == model.CartStateOpen {
				return ErrCartReopen
			}
		}
		if replacement.Items != nil && wasClosed {
			return ErrCartClosed
		}

		if replacement.UserID != nil {
			cart.UserID = *replacement.UserID
		}
		if replacement.Items != nil {
			cart.Items = mergeItems(*replacement.Items)
		}
		if replacement.State != nil {
			cart.State = *replacement.State
		}
		return nil
	})
}

func (s *cartService) DeleteCart(ctx context.Context, cartID string) error {
	cartID, err := canonicalCartID(cartID)
	if err != nil {
		return err
	}

	deleted, err := s.cartRepo.DeleteByID(ctx, cartID)
	if err != nil {
		return err
	}
	if !deleted {
		return repository.ErrCartNotFound
	}

	logger.Info("Cart deleted", map[string]interface{}{
		"cart_id": cartID,
	})
	return nil
}

func (s *cartService) AddItem(ctx context.Context, cartID string, input AddItemInput) (*model.Cart, error) {
	productID := strings.TrimSpace(input.ProductID)
	if productID == "" {
		return nil, ErrProductIDRequired
	}
	quantity := 1
	if input.Quantity != nil {
		quantity = *input.Quantity
	}
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	return s.mutate(ctx, cartID, "add_item", func(cart *model.Cart) error {
		if !cart.IsOpen() {
			return ErrCartClosed
		}

		if idx := cart.Items.Index(productID); idx >= 0 {
			item := &cart.Items[idx]
			item.Quantity += quantity
			if input.UnitPrice != nil {
				item.UnitPrice = *input.UnitPrice
			}
			if input.Name != nil {
				item.Name = *input.Name
			}
			return nil
		}

		item := model.CartItem{ProductID: productID, Quantity: quantity}
		if input.Name != nil {
			item.Name = *input.Name
		}
		if input.UnitPrice != nil {
			item.UnitPrice = *input.UnitPrice
		}
		cart.Items = append(cart.Items, item)
		return nil
	})
}

func (s *cartService) UpdateItem(ctx context.Context, cartID, productID string, patch ItemPatch) (*model.Cart, error) {
	productID = strings.TrimSpace(productID)
	return s.mutate(ctx, cartID, "update_item", func(cart *model.Cart) error {
		if !cart.IsOpen() {
			return ErrCartClosed
		}

		idx := cart.Items.Index(productID)
		if idx < 0 {
			return ErrCartItemNotFound
		}

		item := &cart.Items[idx]
		if patch.Quantity != nil {
			item.Quantity = *patch.Quantity
		}
		if patch.UnitPrice != nil {
			item.UnitPrice = *patch.UnitPrice
		}
		if patch.Name != nil {
			item.Name = *patch.Name
		}
		return nil
	})
}

func (s *cartService) RemoveItem(ctx context.Context, cartID, productID string) (*model.Cart, error) {
	productID = strings.TrimSpace(productID)
	return s.mutate(ctx, cartID, "remove_item", func(cart *model.Cart) error {
		if !cart.IsOpen() {
			return ErrCartClosed
		}
		if cart.Items.Index(productID) < 0 {
			return errNoChange
		}

		kept := make(model.CartItems, 0, len(cart.Items))
		for _, item := range cart.Items {
			if item.ProductID != productID {
				kept = append(kept, item)
			}
		}
		cart.Items = kept
		return nil
	})
}

func (s *cartService) Checkout(ctx context.Context, cartID string) (*model.Cart, error) {
	return s.mutate(ctx, cartID, "checkout", func(cart *model.Cart) error {
		if !cart.IsOpen() {
			return ErrCartAlreadyClosed
		}
		cart.State = model.CartStateClosed
		return nil
	})
}
