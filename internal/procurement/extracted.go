package procurement

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Extracted is the best-effort partial record returned by the extraction service.
// Empty strings and a nil TotalCost mean "absent". Line numbers stay raw text so they
// go through the same parsing as user input.
type Extracted struct {
	VendorName string           `json:"vendor_name,omitempty"`
	VATID      string           `json:"vat_id,omitempty"`
	Department string           `json:"department,omitempty"`
	TotalCost  *decimal.Decimal `json:"total_cost,omitempty"`
	OrderLines []ExtractedLine  `json:"order_lines,omitempty"`
}

// ExtractedLine is one order line as the extraction service saw it.
type ExtractedLine struct {
	PositionDescription string `json:"position_description,omitempty"`
	UnitPrice           string `json:"unit_price,omitempty"`
	Amount              string `json:"amount,omitempty"`
	Unit                string `json:"unit,omitempty"`
}

// Advisory is a non-fatal note about extraction output that was ignored or adjusted.
type Advisory struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (a Advisory) String() string { return a.Field + ": " + a.Reason }

// DecodeExtracted leniently decodes extraction output. Malformed values are treated as
// absent and reported as advisories; it never fails.
func DecodeExtracted(data []byte) (Extracted, []Advisory) {
	var x Extracted
	var adv []Advisory

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return x, []Advisory{{Field: "document", Reason: "not a JSON object"}}
	}

	x.VendorName = decodeText(doc, "vendor_name", "", &adv)
	x.VATID = decodeText(doc, "vat_id", "", &adv)
	x.Department = decodeText(doc, "department", "", &adv)

	if t := decodeNumber(doc, "total_cost", "", &adv); t != "" {
		v, err := decimal.NewFromString(t)
		if err != nil {
			adv = append(adv, Advisory{Field: "total_cost", Reason: "not a number"})
		} else {
			x.TotalCost = &v
		}
	}

	raw, ok := doc["order_lines"]
	if !ok || isNull(raw) {
		return x, adv
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		adv = append(adv, Advisory{Field: "order_lines", Reason: "not a list"})
		return x, adv
	}
	for i, item := range items {
		prefix := fmt.Sprintf("order_lines[%d].", i)
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
			adv = append(adv, Advisory{Field: fmt.Sprintf("order_lines[%d]", i), Reason: "not an object"})
			continue
		}
		x.OrderLines = append(x.OrderLines, ExtractedLine{
			PositionDescription: decodeText(obj, "position_description", prefix, &adv),
			UnitPrice:           decodeNumber(obj, "unit_price", prefix, &adv),
			Amount:              decodeNumber(obj, "amount", prefix, &adv),
			Unit:                decodeText(obj, "unit", prefix, &adv),
		})
	}
	return x, adv
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

func decodeText(doc map[string]json.RawMessage, key, prefix string, adv *[]Advisory) string {
	raw, ok := doc[key]
	if !ok || isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		*adv = append(*adv, Advisory{Field: prefix + key, Reason: "not a string"})
		return ""
	}
	return strings.TrimSpace(s)
}

// decodeNumber accepts JSON numbers and numeric strings, returning the text form.
func decodeNumber(doc map[string]json.RawMessage, key, prefix string, adv *[]Advisory) string {
	raw, ok := doc[key]
	if !ok || isNull(raw) {
		return ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	*adv = append(*adv, Advisory{Field: prefix + key, Reason: "not a number"})
	return ""
}
