package procurement

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Field names used in flags and validation codes.
const (
	FieldUnitPrice = "unit_price"
	FieldAmount    = "amount"
)

// OrderLine is one purchased item. TotalPrice is derived and recomputed on every edit.
type OrderLine struct {
	PositionDescription string          `json:"position_description" validate:"nonblank"`
	UnitPrice           decimal.Decimal `json:"unit_price" validate:"gte=0"`
	Amount              int64           `json:"amount" validate:"gte=1"`
	Unit                string          `json:"unit" validate:"nonblank"`
	TotalPrice          decimal.Decimal `json:"total_price"`

	// raw text of a pending invalid edit, keyed by field name
	raw map[string]string
}

// NewOrderLine builds a line with its total already computed.
func NewOrderLine(description string, unitPrice decimal.Decimal, amount int64, unit string) OrderLine {
	l := OrderLine{
		PositionDescription: description,
		UnitPrice:           unitPrice,
		Amount:              amount,
		Unit:                unit,
	}
	l.recompute()
	return l
}

// SetUnitPrice applies user text to the unit price. Text that does not parse as a
// non-negative decimal is kept as raw input and flagged; the numeric price keeps its
// last valid value.
func SetUnitPrice(line *OrderLine, text string) {
	v, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil || v.IsNegative() {
		line.flag(FieldUnitPrice, text)
	} else {
		line.UnitPrice = v
		line.unflag(FieldUnitPrice)
	}
	line.recompute()
}

// SetAmount applies user text to the amount. Anything but a whole number that fits
// in an int64 is kept as raw input and flagged.
func SetAmount(line *OrderLine, text string) {
	v, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil || !v.IsInteger() || !v.BigInt().IsInt64() {
		line.flag(FieldAmount, text)
	} else {
		line.Amount = v.IntPart()
		line.unflag(FieldAmount)
	}
	line.recompute()
}

// SetUnitPriceValue sets a typed unit price and recomputes the line total.
func SetUnitPriceValue(line *OrderLine, v decimal.Decimal) {
	line.UnitPrice = v
	line.unflag(FieldUnitPrice)
	line.recompute()
}

// SetAmountValue sets a typed amount and recomputes the line total.
func SetAmountValue(line *OrderLine, v int64) {
	line.Amount = v
	line.unflag(FieldAmount)
	line.recompute()
}

// Invalid lists fields holding unparsed input, in a stable order.
func (l OrderLine) Invalid() []string {
	var out []string
	for _, f := range []string{FieldUnitPrice, FieldAmount} {
		if _, ok := l.raw[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// RawInput returns the pending text for a flagged field.
func (l OrderLine) RawInput(field string) (string, bool) {
	v, ok := l.raw[field]
	return v, ok
}

type orderLineJSON struct {
	PositionDescription string            `json:"position_description"`
	UnitPrice           json.RawMessage   `json:"unit_price"`
	Amount              json.RawMessage   `json:"amount"`
	Unit                string            `json:"unit"`
	TotalPrice          json.RawMessage   `json:"total_price,omitempty"`
	PendingInput        map[string]string `json:"pending_input,omitempty"`
}

// MarshalJSON adds the raw text of flagged fields under pending_input.
func (l OrderLine) MarshalJSON() ([]byte, error) {
	price, err := json.Marshal(l.UnitPrice)
	if err != nil {
		return nil, err
	}
	total, err := json.Marshal(l.TotalPrice)
	if err != nil {
		return nil, err
	}
	amount, _ := json.Marshal(l.Amount)
	return json.Marshal(orderLineJSON{
		PositionDescription: l.PositionDescription,
		UnitPrice:           price,
		Amount:              amount,
		Unit:                l.Unit,
		TotalPrice:          total,
		PendingInput:        l.raw,
	})
}

// UnmarshalJSON routes unit_price and amount through SetUnitPrice and SetAmount, so
// malformed numbers are flagged rather than rejected. total_price is ignored.
func (l *OrderLine) UnmarshalJSON(b []byte) error {
	var w orderLineJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*l = OrderLine{
		PositionDescription: w.PositionDescription,
		Unit:                w.Unit,
	}
	SetUnitPrice(l, numberText(w.UnitPrice))
	SetAmount(l, numberText(w.Amount))
	return nil
}

func numberText(raw json.RawMessage) string {
	if len(raw) == 0 || isNull(raw) {
		return ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func (l *OrderLine) recompute() {
	l.TotalPrice = l.UnitPrice.Mul(decimal.NewFromInt(l.Amount))
}

func (l *OrderLine) flag(field, text string) {
	if l.raw == nil {
		l.raw = map[string]string{}
	}
	l.raw[field] = text
}

func (l *OrderLine) unflag(field string) {
	delete(l.raw, field)
	if len(l.raw) == 0 {
		l.raw = nil
	}
}

func (l OrderLine) clone() OrderLine {
	if l.raw != nil {
		raw := make(map[string]string, len(l.raw))
		for k, v := range l.raw {
			raw[k] = v
		}
		l.raw = raw
	}
	return l
}

// RecomputeTotal recomputes every line total and sets TotalCost to their sum.
func RecomputeTotal(d *Draft) {
	total := decimal.Zero
	for i := range d.OrderLines {
		d.OrderLines[i].recompute()
		total = total.Add(d.OrderLines[i].TotalPrice)
	}
	d.TotalCost = total
}

// LinesTotal returns the sum of the line totals without touching the draft.
func LinesTotal(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(l.Amount)))
	}
	return total
}

// AddLine appends a line and keeps the total current.
func AddLine(d *Draft, line OrderLine) {
	d.OrderLines = append(d.OrderLines, line)
	RecomputeTotal(d)
}

// RemoveLine drops the line at index. It reports false and leaves the draft alone when
// only one line remains or the index is out of range.
func RemoveLine(d *Draft, index int) bool {
	if len(d.OrderLines) <= 1 || index < 0 || index >= len(d.OrderLines) {
		return false
	}
	lines := make([]OrderLine, 0, len(d.OrderLines)-1)
	lines = append(lines, d.OrderLines[:index]...)
	lines = append(lines, d.OrderLines[index+1:]...)
	d.OrderLines = lines
	RecomputeTotal(d)
	return true
}
