package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"stockledger/internal/caching"
	"stockledger/internal/config"
	"stockledger/internal/ledger"
	"stockledger/internal/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type contextKey string

const ActorKey contextKey = "actor"

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// CreateErrorResponse creates a standardized error response
func CreateErrorResponse(code string, message string, details map[string]string) *ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Details = details
	return &resp
}

// SendValidationError sends a validation error response
func SendValidationError(c echo.Context, field, message string) error {
	details := map[string]string{
		field: message,
	}
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("VALIDATION_ERROR", "Validation failed", details))
}

// SendClientError sends a client error response
func SendClientError(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("CLIENT_ERROR", message, nil))
}

// SendUnauthorizedError sends an unauthorized error response
func SendUnauthorizedError(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, CreateErrorResponse("UNAUTHORIZED", "Unauthorized access", nil))
}

// HTTPStatus maps a ledger rule violation to its response status
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrEntityNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrInsufficientStock),
		errors.Is(err, ledger.ErrAlreadyProcessed),
		errors.Is(err, ledger.ErrBlockingParentDeleted),
		errors.Is(err, caching.ErrLockBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// SendError writes the envelope for err. Rule violations carry their rule
// text; anything else is logged and answered with a generic message.
func SendError(c echo.Context, logger *logrus.Logger, operation string, err error) error {
	status := HTTPStatus(err)
	code := ledger.Code(err)

	if errors.Is(err, ledger.ErrNegativeResultRejected) {
		logger.WithFields(logrus.Fields{
			"module":    "http",
			"operation": operation,
			"path":      c.Path(),
			"alert":     true,
		}).Error(err.Error())
		return c.JSON(status, CreateErrorResponse(code, ledger.RuleMessage(err), nil))
	}

	if status == http.StatusInternalServerError {
		config.LogError(logger, "common/context_utils.go", "SendError", operation, c.Path(), err)
		return c.JSON(status, CreateErrorResponse("SERVER_ERROR", SecureErrorMessage(operation, err).Error(), nil))
	}
	if errors.Is(err, caching.ErrLockBusy) {
		code = "OPERATION_IN_PROGRESS"
	}
	return c.JSON(status, CreateErrorResponse(code, ledger.RuleMessage(err), nil))
}

// ValidateUUID validates UUID format with comprehensive checks
func ValidateUUID(idStr string, fieldName string) (uuid.UUID, error) {
	if strings.TrimSpace(idStr) == "" {
		return uuid.Nil, fmt.Errorf("%s is required", fieldName)
	}

	idStr = strings.TrimSpace(idStr)
	if len(idStr) != 36 {
		return uuid.Nil, fmt.Errorf("%s must be exactly 36 characters (including hyphens)", fieldName)
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s contains invalid characters: %v", fieldName, err)
	}

	return id, nil
}

// ParamUUID reads a path parameter as a UUID
func ParamUUID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := ValidateUUID(c.Param(name), name)
	if err != nil {
		return uuid.Nil, ledger.Violation(ledger.ErrValidation, "%s", err.Error())
	}
	return id, nil
}

// QueryUUID reads an optional query parameter as a UUID
func QueryUUID(c echo.Context, name string) (*uuid.UUID, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	id, err := ValidateUUID(raw, name)
	if err != nil {
		return nil, ledger.Violation(ledger.ErrValidation, "%s", err.Error())
	}
	return &id, nil
}

// ValidatePaginationParams validates pagination parameters
func ValidatePaginationParams(limit, offset int) (int, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}

	if offset < 0 {
		offset = 0
	}
	if offset > 1000000 {
		return 0, 0, fmt.Errorf("offset cannot exceed 1,000,000")
	}

	return limit, offset, nil
}

// Pagination reads limit and offset query parameters
func Pagination(c echo.Context) (int, int, error) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, offset, err := ValidatePaginationParams(limit, offset)
	if err != nil {
		return 0, 0, ledger.Violation(ledger.ErrValidation, "%s", err.Error())
	}
	return limit, offset, nil
}

// SecureErrorMessage creates standardized error messages to prevent information leakage
func SecureErrorMessage(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: operation could not be completed", operation)
}

// WithActor stores the authenticated actor in ctx
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// GetActorFromContext extracts the authenticated actor from the request context
func GetActorFromContext(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(ActorKey).(models.Actor)
	return actor, ok
}
