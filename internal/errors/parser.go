package errors

import (
	stderrors "errors"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

// ErrorInfo is the reply derived from an error that is not a DomainError.
type ErrorInfo struct {
	Status  int
	Code    string
	Message string
}

// ParseError classifies raw storage errors. Sensitive driver detail never
// reaches the message.
func ParseError(err error, context string) ErrorInfo {
	if err == nil {
		return ErrorInfo{Status: http.StatusInternalServerError, Code: InternalServerError, Message: defaultMessage(context)}
	}

	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorInfo{Status: http.StatusNotFound, Code: ResourceNotFound, Message: "Resource not found"}
	}

	if IsDuplicateKey(err) {
		return ErrorInfo{Status: http.StatusConflict, Code: ResourceAlreadyExists, Message: "Resource already exists"}
	}

	errLower := strings.ToLower(err.Error())
	if strings.Contains(errLower, "not null constraint") || strings.Contains(errLower, "violates not-null constraint") {
		return ErrorInfo{Status: http.StatusBadRequest, Code: ValidationRequired, Message: "A required field is missing"}
	}
	if strings.Contains(errLower, "check constraint") {
		return ErrorInfo{Status: http.StatusBadRequest, Code: ValidationInvalidInput, Message: "Input values are invalid"}
	}
	if strings.Contains(errLower, "connection refused") || strings.Contains(errLower, "timeout") {
		return ErrorInfo{Status: http.StatusInternalServerError, Code: InternalDatabaseError, Message: "Storage is unavailable, please try again later"}
	}

	return ErrorInfo{Status: http.StatusInternalServerError, Code: InternalServerError, Message: defaultMessage(context)}
}

// IsDuplicateKey reports whether err is a unique constraint violation from
// postgres, sqlite, or gorm's translated form.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	errLower := strings.ToLower(err.Error())
	return strings.Contains(errLower, "duplicate key") ||
		strings.Contains(errLower, "unique constraint") ||
		strings.Contains(errLower, "sqlstate 23505")
}

func defaultMessage(context string) string {
	contextLower := strings.ToLower(context)

	switch {
	case strings.Contains(contextLower, "create"):
		return "Failed to create resource, please try again later"
	case strings.Contains(contextLower, "update"), strings.Contains(contextLower, "replace"):
		return "Failed to update resource, please try again later"
	case strings.Contains(contextLower, "delete"):
		return "Failed to delete resource, please try again later"
	}
	return "Internal server error, please try again later"
}
