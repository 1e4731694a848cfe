package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"shapeCluster/internal/ports"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorDetail describes a rejected request.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// DataResponse writes data with statusCode.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

// SuccessResponse writes success response.
func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

// BadRequestResponse writes bad request error.
func BadRequestResponse(c echo.Context, details []ErrorDetail) error {
	return DataResponse(c, http.StatusBadRequest, details)
}

// AppErrorResponse maps a pipeline error to its HTTP status.
func AppErrorResponse(c echo.Context, err error) error {
	status, code := StatusFor(err)
	if status == http.StatusInternalServerError {
		return DataResponse(c, status, "Something went wrong")
	}
	return DataResponse(c, status, []ErrorDetail{{Code: code, Message: err.Error()}})
}

// StatusFor returns the HTTP status and error code for err.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ports.ErrInvalidK):
		return http.StatusBadRequest, "ERR_INVALID_K"
	case errors.Is(err, ports.ErrInvalidRequest):
		return http.StatusBadRequest, "ERR_INVALID_REQUEST"
	case errors.Is(err, ports.ErrDataUnavailable):
		return http.StatusNotFound, "ERR_DATA_UNAVAILABLE"
	case errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound, "ERR_NOT_FOUND"
	case errors.Is(err, ports.ErrEmptyInput):
		return http.StatusUnprocessableEntity, "ERR_EMPTY_INPUT"
	default:
		return http.StatusInternalServerError, "ERR_INTERNAL"
	}
}
