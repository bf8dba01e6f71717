package errors

// Error codes returned in the "error" field of every error response.
// Format: CATEGORY_SPECIFIC_DETAIL

const (
	// Validation
	ValidationInvalidInput = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID    = "VALIDATION_INVALID_ID"
	ValidationInvalidBody  = "VALIDATION_INVALID_BODY"
	ValidationRequired     = "VALIDATION_REQUIRED"
	ValidationInvalidRange = "VALIDATION_INVALID_RANGE"

	// Resources
	ResourceNotFound      = "RESOURCE_NOT_FOUND"
	ResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS"
	RouteNotFound         = "ROUTE_NOT_FOUND"

	// Carts
	CartNotFound       = "CART_NOT_FOUND"
	CartItemNotFound   = "CART_ITEM_NOT_FOUND"
	CartOpenExists     = "CART_OPEN_EXISTS"
	CartClosed         = "CART_CLOSED"
	CartAlreadyClosed  = "CART_ALREADY_CLOSED"
	CartInvalidState   = "CART_INVALID_STATE"
	CartConcurrentEdit = "CART_CONCURRENT_EDIT"

	// Catalog
	HotwheelNotFound      = "HOTWHEEL_NOT_FOUND"
	HotwheelBarcodeExists = "HOTWHEEL_BARCODE_EXISTS"

	// Upload
	UploadInvalidFileType = "UPLOAD_INVALID_FILE_TYPE"
	UploadFileTooLarge    = "UPLOAD_FILE_TOO_LARGE"
	UploadFailed          = "UPLOAD_FAILED"

	// Internal
	InternalServerError   = "INTERNAL_SERVER_ERROR"
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR"
)
