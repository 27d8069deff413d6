package handlers

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"stockledger/internal/common"
	"stockledger/internal/ledger"
	"stockledger/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// RequestValidator plugs validator/v10 into echo. Failures are reported as
// ledger validation errors naming each field and the tag it failed.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

func (v *RequestValidator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return ledger.Violation(ledger.ErrValidation, "%s", err.Error())
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fe.Field()+": "+fe.Tag())
	}
	sort.Strings(msgs)
	return ledger.Violation(ledger.ErrValidation, "invalid request: %s", strings.Join(msgs, ", "))
}

// bindAndValidate decodes the request body into dst and validates it
func bindAndValidate(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return ledger.Violation(ledger.ErrValidation, "invalid request body")
	}
	return c.Validate(dst)
}

// actorFrom returns the actor set by the actor middleware
func actorFrom(c echo.Context) (models.Actor, error) {
	actor, ok := common.GetActorFromContext(c.Request().Context())
	if !ok {
		return models.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return actor, nil
}

// ledgerFilter reads plant_id, item_id, cluster_id, from, to, limit and offset
func ledgerFilter(c echo.Context) (*models.LedgerFilter, error) {
	var err error
	f := &models.LedgerFilter{}
	if f.PlantID, err = common.QueryUUID(c, "plant_id"); err != nil {
		return nil, err
	}
	if f.ItemID, err = common.QueryUUID(c, "item_id"); err != nil {
		return nil, err
	}
	if f.ClusterID, err = common.QueryUUID(c, "cluster_id"); err != nil {
		return nil, err
	}
	if f.From, err = queryTime(c, "from"); err != nil {
		return nil, err
	}
	if f.To, err = queryTime(c, "to"); err != nil {
		return nil, err
	}
	if f.Limit, f.Offset, err = common.Pagination(c); err != nil {
		return nil, err
	}
	return f, nil
}

// queryTime accepts RFC 3339 timestamps or plain dates
func queryTime(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, ledger.Violation(ledger.ErrValidation, "%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", name)
}

// respondError passes echo errors through and maps everything else to the
// error envelope
func respondError(c echo.Context, logger *logrus.Logger, operation string, err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	return common.SendError(c, logger, operation, err)
}
