package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/hotvault/hotvault-backend/internal/app/model"
	"github.com/hotvault/hotvault-backend/internal/app/service"
	apperrors "github.com/hotvault/hotvault-backend/internal/errors"
	"github.com/hotvault/hotvault-backend/internal/middleware"
)

type CartController struct {
	cartService service.CartService
}

func NewCartController(cartService service.CartService) *CartController {
	return &CartController{
		cartService: cartService,
	}
}

type CartItemRequest struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
}

// CreateCartRequest has no total field; a supplied total is dropped on decode.
type CreateCartRequest struct {
	UserID string            `json:"userId"`
	Items  []CartItemRequest `json:"items"`
}

type ReplaceCartRequest struct {
	UserID *string            `json:"userId"`
	State  *string            `json:"state"`
	Items  *[]CartItemRequest `json:"items"`
}

type AddItemRequest struct {
	ProductID string   `json:"productId" binding:"required"`
	Name      *string  `json:"name"`
	UnitPrice *float64 `json:"unitPrice"`
	Quantity  *int     `json:"quantity" binding:"omitempty,gte=1"`
}

type UpdateItemRequest struct {
	Quantity  *int     `json:"quantity"`
	UnitPrice *float64 `json:"unitPrice"`
	Name      *string  `json:"name"`
}

func toCartItems(items []CartItemRequest) model.CartItems {
	out := make(model.CartItems, 0, len(items))
	for _, item := range items {
		out = append(out, model.CartItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}
	return out
}

// bindJSON decodes the body and writes a 400 reply when it cannot. Binding
// tag failures are reported as validation errors, anything else as a
// malformed body.
func bindJSON(c *gin.Context, req interface{}) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	log := middleware.GetLoggerFromContext(c)
	log.Warn("Invalid request body", map[string]interface{}{
		"error": err.Error(),
	})

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, describeValidation(verrs))
		return false
	}
	apperrors.BadRequest(c, apperrors.ValidationInvalidBody, "Invalid request body")
	return false
}

func describeValidation(verrs validator.ValidationErrors) string {
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gte":
		return fe.Field() + " must be >= " + fe.Param()
	}
	return fe.Field() + " is invalid"
}

// respondError logs the failure at a level matching its status and writes the
// error reply.
func respondError(c *gin.Context, err error, action string, fields map[string]interface{}) {
	log := middleware.GetLoggerFromContext(c)
	if apperrors.StatusOf(err) >= http.StatusInternalServerError {
		log.Error("Failed to "+action, err, fields)
	} else {
		merged := map[string]interface{}{"reason": err.Error()}
		for k, v := range fields {
			merged[k] = v
		}
		log.Warn("Rejected "+action, merged)
	}
	apperrors.Respond(c, err, action)
}

// CreateCart creates a cart, empty or with initial items
// POST /api/carts
func (ctrl *CartController) CreateCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req CreateCartRequest
	if !bindJSON(c, &req) {
		return
	}

	cart, err := ctrl.cartService.CreateCart(c.Request.Context(), req.UserID, toCartItems(req.Items))
	if err != nil {
		respondError(c, err, "create cart", map[string]interface{}{
			"user_id": req.UserID,
		})
		return
	}

	log.Info("Cart created", map[string]interface{}{
		"cart_id": cart.ID,
		"user_id": cart.UserID,
	})
	c.JSON(http.StatusCreated, cart)
}

// ListCarts returns carts newest first, optionally for one user
// GET /api/carts?userId=
func (ctrl *CartController) ListCarts(c *gin.Context) {
	userID := c.Query("userId")

	carts, err := ctrl.cartService.ListCarts(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "list carts", map[string]interface{}{
			"user_id": userID,
		})
		return
	}

	c.JSON(http.StatusOK, carts)
}

// GetOpenCart returns the user's open cart, creating it when missing
// GET /api/carts/open/:userId
func (ctrl *CartController) GetOpenCart(c *gin.Context) {
	userID := c.Param("userId")

	cart, err := ctrl.cartService.GetOrCreateOpenCart(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "get open cart", map[string]interface{}{
			"user_id": userID,
		})
		return
	}

	c.JSON(http.StatusOK, cart)
}

// GET /api/carts/:id
func (ctrl *CartController) GetCart(c *gin.Context) {
	cartID := c.Param("id")

	cart, err := ctrl.cartService.GetCart(c.Request.Context(), cartID)
	if err != nil {
		respondError(c, err, "get cart", map[string]interface{}{
			"cart_id": cartID,
		})
		return
	}

	c.JSON(http.StatusOK, cart)
}

// ReplaceCart overwrites the supplied fields of a cart
// PUT /api/carts/:id
func (ctrl *CartController) ReplaceCart(c *gin.Context) {
	cartID := c.Param("id")

	var req ReplaceCartRequest
	if !bindJSON(c, &req) {
		return
	}

	replacement := service.CartReplacement{UserID: req.UserID}
	if req.State != nil {
		state := model.CartState(*req.State)
		replacement.State = &state
	}
	if req.Items != nil {
		items := toCartItems(*req.Items)
		replacement.Items = &items
	}

	cart, err := ctrl.cartService.ReplaceCart(c.Request.Context(), cartID, replacement)
	if err != nil {
		respondError(c, err, "replace cart", map[string]interface{}{
			"cart_id": cartID,
		})
		return
	}

	c.JSON(http.StatusOK, cart)
}

// DELETE /api/carts/:id
func (ctrl *CartController) DeleteCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	cartID := c.Param("id")

	if err := ctrl.cartService.DeleteCart(c.Request.Context(), cartID); err != nil {
		respondError(c, err, "delete cart", map[string]interface{}{
			"cart_id": cartID,
		})
		return
	}

	log.Info("Cart deleted", map[string]interface{}{
		"cart_id": cartID,
	})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// AddItem merges an item into the cart by productId
// POST /api/carts/:id/items
func (ctrl *CartController) AddItem(c *gin.Context) {
	cartID := c.Param("id")

	var req AddItemRequest
	if !bindJSON(c, &req) {
		return
	}

	cart, err := ctrl.cartService.AddItem(c.Request.Context(), cartID, service.AddItemInput{
		ProductID: req.ProductID,
		Name:      req.Name,
		UnitPrice: req.UnitPrice,
		Quantity:  req.Quantity,
	})
	if err != nil {
		respondError(c, err, "add item", map[string]interface{}{
			"cart_id":    cartID,
			"product_id": req.ProductID,
		})
		return
	}

	c.JSON(http.StatusOK, cart)
}

// UpdateItem changes quantity, price or name of one line
// PUT /api/carts/:id/items/:productId
func (ctrl *CartController) UpdateItem(c *gin.Context) {
	cartID := c.Param("id")
	productID := c.Param("productId")

	var req UpdateItemRequest
	if !bindJSON(c, &req) {
		return
	}

	cart, err := ctrl.cartService.UpdateItem(c.Request.Context(), cartID, productID, service.ItemPatch{
		Quantity:  req.Quantity,
		UnitPrice: req.UnitPrice,
		Name:      req.Name,
	})
	if err != nil {
		respondError(c, err, "update item", map[string]interface{}{
			"cart_id":    cartID,
			"product_id": productID,
		})
		return
	}

	c.JSON(http.StatusOK, cart)
}

// DELETE /api/carts/:id/items/:productId
func (ctrl *CartController) RemoveItem(c *gin.Context) {
	cartID := c.Param("id")
	productID := c.Param("productId")

	cart, err := ctrl.cartService.RemoveItem(c.Request.Context(), cartID, productID)
	if err != nil {
		respondError(c, err, "remove item", map[string]interface{}{
			"cart_id":    cartID,
			"product_id": productID,
		})
		return
	}

	c.JSON(http.StatusOK, cart)
}

// Checkout closes the cart
// POST /api/carts/:id/checkout
func (ctrl *CartController) Checkout(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	cartID := c.Param("id")

	cart, err := ctrl.cartService.Checkout(c.Request.Context(), cartID)
	if err != nil {
		respondError(c, err, "checkout cart", map[string]interface{}{
			"cart_id": cartID,
		})
		return
	}

	log.Info("Cart checked out", map[string]interface{}{
		"cart_id": cart.ID,
		"total":   cart.Total,
	})
	c.JSON(http.StatusOK, cart)
}
