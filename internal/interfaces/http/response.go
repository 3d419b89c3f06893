package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/payment-requests/internal/domain/apperr"
)

// Response represents a standard JSON response
type Response struct {
	Success         bool             `json:"success"`
	Data            interface{}      `json:"data,omitempty"`
	Error           string           `json:"error,omitempty"`
	AvailableBudget *decimal.Decimal `json:"available_budget,omitempty"`
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// statusFor maps the error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrBudgetNotFound):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrBudgetExceeded):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrInsufficientFunds):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(err error) (int, Response) {
	status := statusFor(err)
	resp := Response{Success: false, Error: err.Error()}
	if status == http.StatusInternalServerError {
		resp.Error = "internal server error"
	}

	var exceeded *apperr.BudgetExceededError
	if errors.As(err, &exceeded) {
		available := exceeded.Available
		resp.AvailableBudget = &available
	}
	return status, resp
}

func abortWithError(c *gin.Context, err error) {
	status, resp := errorResponse(err)
	c.AbortWithStatusJSON(status, resp)
}

// fail writes the error and logs server-side failures
func (h *Handlers) fail(c *gin.Context, op string, err error) {
	status, resp := errorResponse(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(op+" failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, resp)
}

// pathID parses the :id parameter
func pathID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("id: must be a positive integer")
	}
	return id, nil
}

// bindJSON decodes the body, reporting decode errors as validation failures
func bindJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return apperr.Validation("invalid request body: %v", err)
	}
	return nil
}
