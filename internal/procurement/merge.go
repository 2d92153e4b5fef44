package procurement

import (
	"fmt"
	"strings"
)

// Merge folds extraction output into a draft. Present string fields replace the draft's
// values, absent ones keep what the user typed. A non-empty line list replaces the
// draft's lines wholesale. TotalCost always follows the lines: an extracted total is
// only advisory.
func Merge(d Draft, x Extracted) (Draft, []Advisory) {
	out := d.Clone()
	var adv []Advisory

	if v := strings.TrimSpace(x.VendorName); v != "" {
		out.VendorName = v
	}
	if v := strings.TrimSpace(x.VATID); v != "" {
		out.VATID = v
	}
	if v := strings.TrimSpace(x.Department); v != "" {
		out.Department = v
	}

	if len(x.OrderLines) > 0 {
		lines := make([]OrderLine, 0, len(x.OrderLines))
		for i, xl := range x.OrderLines {
			l := OrderLine{
				PositionDescription: strings.TrimSpace(xl.PositionDescription),
				Unit:                strings.TrimSpace(xl.Unit),
			}
			SetUnitPrice(&l, xl.UnitPrice)
			SetAmount(&l, xl.Amount)
			for _, f := range l.Invalid() {
				adv = append(adv, Advisory{
					Field:  fmt.Sprintf("order_lines[%d].%s", i, f),
					Reason: "needs correction",
				})
			}
			lines = append(lines, l)
		}
		out.OrderLines = lines
	}

	if len(x.OrderLines) > 0 || x.TotalCost != nil {
		RecomputeTotal(&out)
	}
	if x.TotalCost != nil && !x.TotalCost.Equal(out.TotalCost) {
		adv = append(adv, Advisory{
			Field:  "total_cost",
			Reason: fmt.Sprintf("extracted %s replaced by line sum %s", x.TotalCost.StringFixed(2), out.TotalCost.StringFixed(2)),
		})
	}
	return out, adv
}
