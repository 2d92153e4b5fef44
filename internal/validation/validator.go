package validation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-procurement-workflow/internal/procurement"
)

// Stable rejection codes. Field-bearing codes are rendered as CODE:<field>.
const (
	CodeMissingField         = "MISSING_FIELD"
	CodeNoOrderLines         = "NO_ORDER_LINES"
	CodeEmptyLineDescription = "EMPTY_LINE_DESCRIPTION"
	CodeInvalidNumber        = "INVALID_NUMBER"
	CodeNegativeUnitPrice    = "NEGATIVE_UNIT_PRICE"
	CodeInvalidAmount        = "INVALID_AMOUNT"
	CodeStaleTotal           = "STALE_TOTAL"
)

// ValidationError is the first rule a draft violated.
type ValidationError struct {
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Code
	}
	return fmt.Sprintf("validation failed: %s (%s)", e.Code, e.Field)
}

// Is makes every ValidationError match procurement.ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == procurement.ErrValidation }

// Validator checks drafts before submission.
type Validator struct {
	v *validatorv10.Validate
}

// New returns a Validator with the procurement rules registered.
func New() *Validator {
	v := validatorv10.New()

	// report json names so codes match the wire format
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	_ = v.RegisterValidation("nonblank", nonBlank)
	v.RegisterStructValidation(orderLineStructValidation, procurement.OrderLine{})
	v.RegisterStructValidation(draftStructValidation, procurement.Draft{})

	return &Validator{v: v}
}

// Validate returns nil or the first violated rule as a *ValidationError. Rules are
// ranked: required request fields in form order, then the line count, then each line
// in order, then the total.
func (val *Validator) Validate(d procurement.Draft) error {
	err := val.v.Struct(d)
	if err == nil {
		return nil
	}
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("validate draft: %w", err)
	}

	var first *ValidationError
	best := math.MaxInt
	for _, fe := range ve {
		r, e := classify(fe)
		if r < best {
			best, first = r, e
		}
	}
	return first
}

// Struct exposes the underlying validator for ad-hoc payloads.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

var requiredFields = map[string]int{
	"requestor_name": 0,
	"title":          1,
	"vendor_name":    2,
	"vat_id":         3,
	"department":     4,
}

const (
	rankLines = 10
	rankLine  = 100
	rankTotal = math.MaxInt - 1
)

// classify maps a validator failure to its rank and stable code.
func classify(fe validatorv10.FieldError) (int, *ValidationError) {
	path := fe.Namespace()
	if i := strings.IndexByte(path, '.'); i >= 0 {
		path = path[i+1:]
	}

	if r, ok := requiredFields[path]; ok {
		return r, &ValidationError{Code: CodeMissingField + ":" + path, Field: path}
	}
	if path == "order_lines" {
		return rankLines, &ValidationError{Code: CodeNoOrderLines, Field: path}
	}
	if path == "total_cost" {
		return rankTotal, &ValidationError{Code: CodeStaleTotal, Field: path}
	}

	if idx, field, ok := linePath(path); ok {
		base := rankLine + idx*10
		switch {
		case field == "position_description":
			return base, &ValidationError{Code: CodeEmptyLineDescription, Field: path}
		case fe.Tag() == "number" && field == procurement.FieldUnitPrice:
			return base + 1, &ValidationError{Code: CodeInvalidNumber + ":" + field, Field: path}
		case fe.Tag() == "number":
			return base + 2, &ValidationError{Code: CodeInvalidNumber + ":" + field, Field: path}
		case field == "unit":
			return base + 3, &ValidationError{Code: CodeMissingField + ":unit", Field: path}
		case field == procurement.FieldUnitPrice:
			return base + 4, &ValidationError{Code: CodeNegativeUnitPrice, Field: path}
		case field == procurement.FieldAmount:
			return base + 5, &ValidationError{Code: CodeInvalidAmount, Field: path}
		}
	}
	return rankTotal - 1, &ValidationError{Code: strings.ToUpper(fe.Tag()), Field: path}
}

// linePath splits "order_lines[3].unit" into 3 and "unit".
func linePath(path string) (int, string, bool) {
	rest, ok := strings.CutPrefix(path, "order_lines[")
	if !ok {
		return 0, "", false
	}
	end := strings.IndexByte(rest, ']')
	if end < 0 || len(rest) < end+2 {
		return 0, "", false
	}
	idx, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0, "", false
	}
	return idx, rest[end+2:], true
}

func nonBlank(fl validatorv10.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func decimalValue(v reflect.Value) interface{} {
	d, ok := v.Interface().(decimal.Decimal)
	if !ok {
		return nil
	}
	f, _ := d.Float64()
	return f
}

// orderLineStructValidation reports fields still holding unparsed user input.
func orderLineStructValidation(sl validatorv10.StructLevel) {
	line := sl.Current().Interface().(procurement.OrderLine)
	for _, f := range line.Invalid() {
		raw, _ := line.RawInput(f)
		sl.ReportError(raw, f, f, "number", "")
	}
}

// draftStructValidation checks total_cost == sum(line totals).
func draftStructValidation(sl validatorv10.StructLevel) {
	d := sl.Current().Interface().(procurement.Draft)
	if len(d.OrderLines) == 0 {
		return
	}
	if !d.TotalCost.Equal(procurement.LinesTotal(d.OrderLines)) {
		sl.ReportError(d.TotalCost, "total_cost", "TotalCost", "line_sum", "")
	}
}
