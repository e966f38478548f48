package dto

import (
	"reflect"
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// maxScale is the number of fractional digits the ledger stores.
const maxScale = 18

var symbolRe = regexp.MustCompile(`^[a-zA-Z0-9]{1,20}$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("symbol", validateSymbol)
		_ = v.RegisterValidation("ledger_scale", validateLedgerScale)
	}
}

// validateSymbol accepts currency tickers such as BTC or usdt.
func validateSymbol(fl validator.FieldLevel) bool {
	return symbolRe.MatchString(fl.Field().String())
}

// validateLedgerScale rejects quantities with more fractional digits than
// the ledger can store. A zero value passes; its sign is the engine's call.
func validateLedgerScale(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return true
		}
		field = field.Elem()
	}
	d, ok := field.Interface().(decimal.Decimal)
	if !ok {
		return false
	}
	return d.Exponent() >= -maxScale || d.Equal(d.Truncate(maxScale))
}
