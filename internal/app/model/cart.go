package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/hotvault/hotvault-backend/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type CartState string

const (
	CartStateOpen   CartState = "open"
	CartStateClosed CartState = "closed"
)

func (s CartState) Valid() bool {
	return s == CartStateOpen || s == CartStateClosed
}

// CartItem is a line embedded in a cart. ProductID identifies it within
// its cart only.
type CartItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
}

// CartItems is stored as a single JSON document column.
type CartItems []CartItem

// Index returns the position of the line with productID, or -1.
func (ci CartItems) Index(productID string) int {
	for i := range ci {
		if ci[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (ci CartItems) Value() (driver.Value, error) {
	if ci == nil {
		return "[]", nil
	}
	b, err := json.Marshal(ci)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (ci *CartItems) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*ci = CartItems{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cart items: unsupported column type %T", value)
	}

	items := CartItems{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &items); err != nil {
			return fmt.Errorf("cart items: %w", err)
		}
	}
	*ci = items
	return nil
}

func (CartItems) GormDataType() string {
	return "json"
}

func (CartItems) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "jsonb"
	}
	return "text"
}

type Cart struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(128);not null;index" json:"userId"`
	State     CartState `gorm:"type:varchar(16);not null;default:open;index" json:"state"`
	Items     CartItems `gorm:"not null" json:"items"`
	Total     float64   `gorm:"not null;default:0" json:"total"`
	Version   int       `gorm:"not null;default:1" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Cart) TableName() string {
	return "carts"
}

// BeforeCreate assigns the cart id.
func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (c *Cart) IsOpen() bool {
	return c.State == CartStateOpen
}

// RecomputeTotal sets Total to the sum of unit price times quantity.
func (c *Cart) RecomputeTotal() {
	var total float64
	for _, item := range c.Items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	c.Total = total
}

// Normalize trims string fields, defaults state and items, and recomputes
// the total. It runs before every persist.
func (c *Cart) Normalize() {
	c.UserID = strings.TrimSpace(c.UserID)
	if c.State == "" {
		c.State = CartStateOpen
	}
	if c.Items == nil {
		c.Items = CartItems{}
	}
	for i := range c.Items {
		c.Items[i].ProductID = strings.TrimSpace(c.Items[i].ProductID)
		c.Items[i].Name = strings.TrimSpace(c.Items[i].Name)
	}
	c.RecomputeTotal()
}

func (c *Cart) Validate() error {
	if c.UserID == "" {
		return apperrors.Validationf(apperrors.ValidationRequired, "userId is required")
	}
	if !c.State.Valid() {
		return apperrors.Validationf(apperrors.CartInvalidState, "state must be one of open, closed (got %q)", c.State)
	}
	for i, item := range c.Items {
		if err := item.validate(i); err != nil {
			return err
		}
	}
	return nil
}

func (item CartItem) validate(i int) error {
	switch {
	case item.ProductID == "":
		return apperrors.Validationf(apperrors.ValidationRequired, "items[%d].productId is required", i)
	case item.Name == "":
		return apperrors.Validationf(apperrors.ValidationRequired, "items[%d].name is required", i)
	case math.IsNaN(item.UnitPrice) || math.IsInf(item.UnitPrice, 0) || item.UnitPrice < 0:
		return apperrors.Validationf(apperrors.ValidationInvalidRange, "items[%d].unitPrice must be a number >= 0", i)
	case item.Quantity < 1:
		return apperrors.Validationf(apperrors.ValidationInvalidRange, "items[%d].quantity must be >= 1", i)
	}
	return nil
}
