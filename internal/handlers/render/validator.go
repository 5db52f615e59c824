package render

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/ledger/internal/money"
)

func newValidator() *validator.Validate {
	validate := validator.New()
	configureValidator(validate)
	return validate
}

func configureValidator(validate *validator.Validate) {
	// Decimals are validated as their string form
	validate.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	_ = validate.RegisterValidation("money", validateMoney)
	validate.RegisterTagNameFunc(useJSONTagNames)
}

// Return 'json' tag name instead of struct field name
func useJSONTagNames(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	// skip if tag key says it should be ignored
	if name == "-" {
		return ""
	}
	return name
}

// Out of bounds decimals are not rendered and never pass "money"
func decimalValue(v reflect.Value) any {
	d, ok := v.Interface().(decimal.Decimal)
	if !ok || money.CheckBounds(d) != nil {
		return ""
	}
	return d.String()
}

// Positive amount representable in minor units
func validateMoney(fl validator.FieldLevel) bool {
	amount, err := money.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	return amount.IsPositive()
}
