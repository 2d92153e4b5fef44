package procurement

import (
	"time"

	"github.com/shopspring/decimal"
)

// NotApplicable is how an absent commodity group is displayed.
const NotApplicable = "N/A"

// Draft is the user-authored part of a procurement request, before or after submission.
type Draft struct {
	RequestorName    string          `json:"requestor_name" validate:"nonblank"`
	Title            string          `json:"title" validate:"nonblank"`
	VendorName       string          `json:"vendor_name" validate:"nonblank"`
	VATID            string          `json:"vat_id" validate:"nonblank"`
	Department       string          `json:"department" validate:"nonblank"`
	CommodityGroupID string          `json:"commodity_group_id,omitempty"`
	CommodityGroup   string          `json:"commodity_group,omitempty"`
	OrderLines       []OrderLine     `json:"order_lines" validate:"min=1,dive"`
	TotalCost        decimal.Decimal `json:"total_cost"`
}

// HasCommodityGroup reports whether the draft carries a classification.
func (d Draft) HasCommodityGroup() bool {
	return d.CommodityGroup != "" && d.CommodityGroup != NotApplicable
}

// Clone returns a deep copy so callers can edit without aliasing line slices.
func (d Draft) Clone() Draft {
	if d.OrderLines != nil {
		lines := make([]OrderLine, len(d.OrderLines))
		for i, l := range d.OrderLines {
			lines[i] = l.clone()
		}
		d.OrderLines = lines
	}
	return d
}

// ProcurementRequest is a submitted draft travelling through the status workflow.
type ProcurementRequest struct {
	ID string `json:"id"`
	Draft
	Status    Status         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	History   []StatusChange `json:"status_history,omitempty"`
}

// Clone returns a deep copy of the request.
func (r ProcurementRequest) Clone() ProcurementRequest {
	r.Draft = r.Draft.Clone()
	if r.History != nil {
		r.History = append([]StatusChange(nil), r.History...)
	}
	return r
}

// StatusChange records one applied transition. From is empty for the creation entry.
type StatusChange struct {
	From      Status    `json:"old_status,omitempty"`
	To        Status    `json:"new_status"`
	Notes     string    `json:"notes,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}
