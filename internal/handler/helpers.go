package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"

	"github.com/ethan0sc4r/gestione-vinicola/internal/apierror"
	"github.com/ethan0sc4r/gestione-vinicola/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0 and gt=0 work on it.
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// paramID parses a positive numeric path parameter.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, apierror.New("invalid "+name))
		return 0, false
	}
	return uint(id), true
}

// serviceErrors maps ledger sentinels to status and machine code.
var serviceErrors = []struct {
	err    error
	status int
	code   string
}{
	{service.ErrNotFound, http.StatusNotFound, "not_found"},
	{service.ErrInsufficientCredit, http.StatusUnprocessableEntity, "insufficient_credit"},
	{service.ErrInsufficientFunds, http.StatusUnprocessableEntity, "insufficient_funds"},
	{service.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{service.ErrNothingToCharge, http.StatusBadRequest, "nothing_to_charge"},
	{service.ErrNoChange, http.StatusBadRequest, "no_change"},
	{service.ErrReasonRequired, http.StatusBadRequest, "reason_required"},
	{service.ErrCodeRequired, http.StatusBadRequest, "code_required"},
	{service.ErrNotCancellable, http.StatusConflict, "not_cancellable"},
	{service.ErrRegisterProtected, http.StatusConflict, "register_protected"},
	{service.ErrDuplicateCode, http.StatusConflict, "duplicate_code"},
}

// writeError renders a service error. Unknown errors become a generic 500
// and are attached to the context for the ErrorHandler to log.
func writeError(c *gin.Context, err error) {
	var credit *service.InsufficientCreditError
	if errors.As(err, &credit) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"detail":          "insufficient credit",
			"code":            "insufficient_credit",
			"balance":         credit.Balance.StringFixed(2),
			"effective_limit": credit.EffectiveLimit.StringFixed(2),
		})
		return
	}
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			c.JSON(m.status, apierror.WithCode(m.code, err.Error()))
			return
		}
	}
	log.Error().Err(err).Str("path", c.FullPath()).Msg("unexpected service error")
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, apierror.New("internal server error"))
}
