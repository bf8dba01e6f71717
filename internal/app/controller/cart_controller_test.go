package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hotvault/hotvault-backend/internal/app/repository"
	"github.com/hotvault/hotvault-backend/internal/app/service"
	"github.com/hotvault/hotvault-backend/internal/db"
	apperrors "github.com/hotvault/hotvault-backend/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cartBody struct {
	ID     string  `json:"id"`
	UserID string  `json:"userId"`
	State  string  `json:"state"`
	Total  float64 `json:"total"`
	Items  []struct {
		ProductID string  `json:"productId"`
		Name      string  `json:"name"`
		UnitPrice float64 `json:"unitPrice"`
		Quantity  int     `json:"quantity"`
	} `json:"items"`
}

func setupCartControllerTest(t *testing.T) *gin.Engine {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	cartService := service.NewCartService(repository.NewCartRepository(testDB))
	ctrl := NewCartController(cartService)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	carts := router.Group("/api/carts")
	carts.POST("", ctrl.CreateCart)
	carts.GET("", ctrl.ListCarts)
	carts.GET("/open/:userId", ctrl.GetOpenCart)
	carts.GET("/:id", ctrl.GetCart)
	carts.PUT("/:id", ctrl.ReplaceCart)
	carts.DELETE("/:id", ctrl.DeleteCart)
	carts.POST("/:id/items", ctrl.AddItem)
	carts.PUT("/:id/items/:productId", ctrl.UpdateItem)
	carts.DELETE("/:id/items/:productId", ctrl.RemoveItem)
	carts.POST("/:id/checkout", ctrl.Checkout)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeCart(t *testing.T, w *httptest.ResponseRecorder) cartBody {
	t.Helper()
	var cart cartBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cart))
	return cart
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apperrors.ErrorResponse {
	t.Helper()
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCartController_Lifecycle(t *testing.T) {
	router := setupCartControllerTest(t)

	w := doJSON(t, router, http.MethodPost, "/api/carts", gin.H{"userId": "u1"})
	require.Equal(t, http.StatusCreated, w.Code)
	cart := decodeCart(t, w)
	assert.Equal(t, "open", cart.State)
	assert.NotNil(t, cart.Items)
	assert.Equal(t, 0.0, cart.Total)

	w = doJSON(t, router, http.MethodPost, "/api/carts/"+cart.ID+"/items", gin.H{
		"productId": "p1", "name": "X", "unitPrice": 10, "quantity": 2,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 20.0, decodeCart(t, w).Total)

	w = doJSON(t, router, http.MethodPost, "/api/carts/"+cart.ID+"/items", gin.H{"productId": "p1", "quantity": 3})
	require.Equal(t, http.StatusOK, w.Code)
	cart = decodeCart(t, w)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, 50.0, cart.Total)

	w = doJSON(t, router, http.MethodPut, "/api/carts/"+cart.ID+"/items/p1", gin.H{"unitPrice": 8})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 40.0, decodeCart(t, w).Total)

	w = doJSON(t, router, http.MethodPost, "/api/carts/"+cart.ID+"/checkout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "closed", decodeCart(t, w).State)

	w = doJSON(t, router, http.MethodPost, "/api/carts/"+cart.ID+"/items", gin.H{"productId": "p1"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperrors.CartClosed, decodeError(t, w).Error)

	w = doJSON(t, router, http.MethodPost, "/api/carts/"+cart.ID+"/checkout", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperrors.CartAlreadyClosed, decodeError(t, w).Error)

	w = doJSON(t, router, http.MethodGet, "/api/carts/"+cart.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 40.0, decodeCart(t, w).Total)
}

func TestCartController_CreateCart_Conflict(t *testing.T) {
	router := setupCartControllerTest(t)

	w := doJSON(t, router, http.MethodPost, "/api/carts", gin.H{"userId": "u2"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/carts", gin.H{"userId": "u2"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperrors.CartOpenExists, decodeError(t, w).Error)
}

func TestCartController_CreateCart_IgnoresClientTotal(t *testing.T) {
	router := setupCartControllerTest(t)

	w := doJSON(t, router, http.MethodPost, "/api/carts", gin.H{
		"userId": "u1",
		"total":  999,
		"items": []gin.H{
			{"productId": "p1", "name": "X", "unitPrice": 2.5, "quantity": 2},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 5.0, decodeCart(t, w).Total)
}

func TestCartController_CreateCart_BadInput(t *testing.T) {
	router := setupCartControllerTest(t)

	w := doJSON(t, router, http.MethodPost, "/api/carts", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.ValidationInvalidBody, decodeError(t, w).Error)

	w = doJSON(t, router, http.MethodPost, "/api/carts", gin.H{"items": []gin.H{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.ValidationRequired, decodeError(t, w).Error)

	w = doJSON(t, router, http.MethodPost, "/api/carts", gin.H{
		"userId": "u1",
		"items":  []gin.H{{"productId": "p1", "name": "X", "unitPrice": 1, "quantity": 0}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCartController_GetCart_NotFoundAndMalformed(t *testing.T) {
	router := setupCartControllerTest(t)

	w := doJSON(t, router, http.MethodGet, "/api/carts/0b8f7d44-61a8-4b0e-8a50-3f7c2f9d1e20", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.CartNotFound, decodeError(t, w).Error)

	w = doJSON(t, router, http.MethodGet, "/api/carts/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.ValidationInvalidID, decodeError(t, w).Error)
}

func TestCartController_GetCart_NonCanonicalIDs(t *testing.T) {
	router := setupCartControllerTest(t)

	w := doJSON(t, router, http.MethodPost, "/api/carts", gin.H{"userId": "u1"})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeCart(t, w)

	for _, id := range []string{strings.ToUpper(created.ID), "{" + created.ID + "}"} {
		w = doJSON(t, router, http.MethodGet, "/api/carts/"+url.PathEscape(id), nil)
		require.Equal(t, http.StatusOK, w.Code, id)
		assert.Equal(t, created.ID, decodeCart(t, w).ID)
	}

	w = doJSON(t, router, http.MethodPost, "/api/carts/"+strings.ToUpper(created.ID)+"/items",
		gin.H{"productId": "p1", "name": "X", "unitPrice": 2})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2.0, decodeCart(t, w).Total)

	w = doJSON(t, router, http.MethodGet, "/api/carts/"+url.PathEscape("{"+created.ID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.ValidationInvalidID, decodeError(t, w).Error)
}

func TestCartController_GetOpenCart(t *testing.T) {
	router := setupCartControllerTest(t)

	w := doJSON(t, router, http.MethodGet, "/api/carts/open/u9", nil)
	require.Equal(t, http.StatusOK, w.Code)
	first := decodeCart(t, w)
	assert.Equal(t, "u9", first.UserID)

	w = doJSON(t, router, http.MethodGet, "/api/carts/open/u9", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, first.ID, decodeCart(t, w).ID)
}

func TestCartController_ListCarts(t *testing.T) {
	router := setupCartControllerTest(t)

	doJSON(t, router, http.MethodPost, "/api/carts", gin.H{"userId": "a"})
	doJSON(t, router, http.MethodPost, "/api/carts", gin.H{"userId": "b"})

	w := doJSON(t, router, http.MethodGet, "/api/carts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all []cartBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	w = doJSON(t, router, http.MethodGet, "/api/carts?userId=b", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var onlyB []cartBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &onlyB))
	require.Len(t, onlyB, 1)
	assert.Equal(t, "b", onlyB[0].UserID)

	w = doJSON(t, router, http.MethodGet, "/api/carts?userId=nobody", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestCartController_ReplaceCart(t *testing.T) {
	router := setupCartControllerTest(t)

	w := doJSON(t, router, http.MethodPost, "/api/carts", gin.H{"userId": "u1"})
	id := decodeCart(t, w).ID

	w = doJSON(t, router, http.MethodPut, "/api/carts/"+id, gin.H{
		"items": []gin.H{{"productId": "q", "name": "Q", "unitPrice": 3, "quantity": 3}},
		"total": 1,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 9.0, decodeCart(t, w).Total)

	w = doJSON(t, router, http.MethodPut, "/api/carts/"+id, gin.H{"state": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPut, "/api/carts/"+id, gin.H{"state": "closed"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPut, "/api/carts/"+id, gin.H{"state": "open"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodPut, "/api/carts/0b8f7d44-61a8-4b0e-8a50-3f7c2f9d1e20", gin.H{})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCartController_ItemErrors(t *testing.T) {
	router := setupCartControllerTest(t)

	w := doJSON(t, router, http.MethodPost, "/api/carts", gin.H{"userId": "u1"})
	id := decodeCart(t, w).ID

	w = doJSON(t, router, http.MethodPost, "/api/carts/"+id+"/items", gin.H{"name": "X"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperrors.ValidationInvalidInput, decodeError(t, w).Error)

	w = doJSON(t, router, http.MethodPost, "/api/carts/"+id+"/items", gin.H{"productId": "p1", "name": "X", "unitPrice": 1, "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPut, "/api/carts/"+id+"/items/missing", gin.H{"quantity": 2})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.CartItemNotFound, decodeError(t, w).Error)

	w = doJSON(t, router, http.MethodDelete, "/api/carts/"+id+"/items/missing", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeCart(t, w).Items)

	w = doJSON(t, router, http.MethodPost, "/api/carts/0b8f7d44-61a8-4b0e-8a50-3f7c2f9d1e20/items", gin.H{"productId": "p1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCartController_RemoveItem(t *testing.T) {
	router := setupCartControllerTest(t)

	w := doJSON(t, router, http.MethodPost, "/api/carts", gin.H{
		"userId": "u1",
		"items": []gin.H{
			{"productId": "p1", "name": "X", "unitPrice": 1, "quantity": 1},
			{"productId": "p2", "name": "Y", "unitPrice": 2, "quantity": 1},
		},
	})
	id := decodeCart(t, w).ID

	w = doJSON(t, router, http.MethodDelete, "/api/carts/"+id+"/items/p1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cart := decodeCart(t, w)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2.0, cart.Total)
}

func TestCartController_DeleteCart(t *testing.T) {
	router := setupCartControllerTest(t)

	w := doJSON(t, router, http.MethodPost, "/api/carts", gin.H{"userId": "u1"})
	id := decodeCart(t, w).ID

	w = doJSON(t, router, http.MethodDelete, "/api/carts/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	w = doJSON(t, router, http.MethodDelete, "/api/carts/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/api/carts/not-an-id", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
