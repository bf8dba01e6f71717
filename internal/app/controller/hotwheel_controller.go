package controller

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hotvault/hotvault-backend/internal/app/service"
	apperrors "github.com/hotvault/hotvault-backend/internal/errors"
	"github.com/hotvault/hotvault-backend/internal/middleware"
)

// ImageField is the multipart field carrying the hotwheel picture.
const ImageField = "image"

var errInvalidPurchaseDate = apperrors.Validationf(apperrors.ValidationInvalidInput, "purchaseDate must be a date (YYYY-MM-DD or RFC 3339)")

type HotwheelController struct {
	hotwheelService service.HotwheelService
}

func NewHotwheelController(hotwheelService service.HotwheelService) *HotwheelController {
	return &HotwheelController{
		hotwheelService: hotwheelService,
	}
}

// HotwheelRequest is accepted as JSON or as multipart form fields.
type HotwheelRequest struct {
	Model        *string `json:"model" form:"model"`
	Year         *int    `json:"year" form:"year"`
	Name         *string `json:"name" form:"name"`
	PurchaseDate *string `json:"purchaseDate" form:"purchaseDate"`
	Barcode      *string `json:"barcode" form:"barcode"`
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Time{}, errInvalidPurchaseDate
}

func (r HotwheelRequest) patch() (service.HotwheelPatch, error) {
	patch := service.HotwheelPatch{
		Model:   r.Model,
		Year:    r.Year,
		Name:    r.Name,
		Barcode: r.Barcode,
	}
	if r.PurchaseDate != nil {
		date, err := parseDate(*r.PurchaseDate)
		if err != nil {
			return patch, err
		}
		patch.PurchaseDate = &date
	}
	return patch, nil
}

func (r HotwheelRequest) createInput() (service.CreateHotwheelInput, error) {
	patch, err := r.patch()
	if err != nil {
		return service.CreateHotwheelInput{}, err
	}

	var input service.CreateHotwheelInput
	if patch.Model != nil {
		input.Model = *patch.Model
	}
	if patch.Year != nil {
		input.Year = *patch.Year
	}
	if patch.Name != nil {
		input.Name = *patch.Name
	}
	if patch.PurchaseDate != nil {
		input.PurchaseDate = *patch.PurchaseDate
	}
	if patch.Barcode != nil {
		input.Barcode = *patch.Barcode
	}
	return input, nil
}

// bindHotwheel decodes the request and opens the optional image file. The
// returned close func must be called once the upload is done.
func bindHotwheel(c *gin.Context) (HotwheelRequest, *service.ImageUpload, func(), error) {
	var req HotwheelRequest
	noop := func() {}

	if err := c.ShouldBind(&req); err != nil {
		return req, nil, noop, apperrors.Malformed(apperrors.ValidationInvalidBody, "Invalid request body")
	}

	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		return req, nil, noop, nil
	}

	fileHeader, err := c.FormFile(ImageField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return req, nil, noop, nil
		}
		return req, nil, noop, apperrors.Malformed(apperrors.ValidationInvalidBody, "Invalid image upload")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return req, nil, noop, err
	}
	return req, imageUpload(fileHeader, file), func() { file.Close() }, nil
}

func imageUpload(header *multipart.FileHeader, file multipart.File) *service.ImageUpload {
	return &service.ImageUpload{
		Reader:      file,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}
}

// CreateHotwheel adds a catalog entry, optionally with an image
// POST /api/hotwheels
func (ctrl *HotwheelController) CreateHotwheel(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	req, image, closeImage, err := bindHotwheel(c)
	defer closeImage()
	if err != nil {
		respondError(c, err, "create hotwheel", nil)
		return
	}

	input, err := req.createInput()
	if err != nil {
		respondError(c, err, "create hotwheel", nil)
		return
	}

	hotwheel, err := ctrl.hotwheelService.CreateHotwheel(c.Request.Context(), input, image)
	if err != nil {
		respondError(c, err, "create hotwheel", map[string]interface{}{
			"barcode": input.Barcode,
		})
		return
	}

	log.Info("Hotwheel created", map[string]interface{}{
		"hotwheel_id": hotwheel.ID,
		"barcode":     hotwheel.Barcode,
	})
	c.JSON(http.StatusCreated, hotwheel)
}

// GET /api/hotwheels
func (ctrl *HotwheelController) ListHotwheels(c *gin.Context) {
	hotwheels, err := ctrl.hotwheelService.ListHotwheels(c.Request.Context())
	if err != nil {
		respondError(c, err, "list hotwheels", nil)
		return
	}

	c.JSON(http.StatusOK, hotwheels)
}

// GET /api/hotwheels/:id
func (ctrl *HotwheelController) GetHotwheel(c *gin.Context) {
	id := c.Param("id")

	hotwheel, err := ctrl.hotwheelService.GetHotwheel(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "get hotwheel", map[string]interface{}{
			"hotwheel_id": id,
		})
		return
	}

	c.JSON(http.StatusOK, hotwheel)
}

// UpdateHotwheel applies a partial update, optionally replacing the image
// PUT /api/hotwheels/:id
func (ctrl *HotwheelController) UpdateHotwheel(c *gin.Context) {
	id := c.Param("id")

	req, image, closeImage, err := bindHotwheel(c)
	defer closeImage()
	if err != nil {
		respondError(c, err, "update hotwheel", map[string]interface{}{
			"hotwheel_id": id,
		})
		return
	}

	patch, err := req.patch()
	if err != nil {
		respondError(c, err, "update hotwheel", map[string]interface{}{
			"hotwheel_id": id,
		})
		return
	}

	hotwheel, err := ctrl.hotwheelService.UpdateHotwheel(c.Request.Context(), id, patch, image)
	if err != nil {
		respondError(c, err, "update hotwheel", map[string]interface{}{
			"hotwheel_id": id,
		})
		return
	}

	c.JSON(http.StatusOK, hotwheel)
}

// DELETE /api/hotwheels/:id
func (ctrl *HotwheelController) DeleteHotwheel(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	id := c.Param("id")

	if err := ctrl.hotwheelService.DeleteHotwheel(c.Request.Context(), id); err != nil {
		respondError(c, err, "delete hotwheel", map[string]interface{}{
			"hotwheel_id": id,
		})
		return
	}

	log.Info("Hotwheel deleted", map[string]interface{}{
		"hotwheel_id": id,
	})
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
