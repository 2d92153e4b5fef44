package requests

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-procurement-workflow/internal/procurement"
)

var (
	// ErrNotFound is returned by the service when no request has the given id.
	ErrNotFound = errors.New("request not found")

	// ErrStatusMismatch is returned by UpdateStatus when the stored status no longer
	// equals the expected one (a concurrent writer got there first).
	ErrStatusMismatch = errors.New("status mismatch/conditional failed")
)

// Store is the storage collaborator. Create assigns the id (and created_at when unset);
// Get returns (nil, nil) for a missing id; List is ordered newest first; UpdateStatus
// persists next's status, updated_at and latest history entry only if the stored status
// is still expected.
type Store interface {
	Create(ctx context.Context, req *procurement.ProcurementRequest) (string, error)
	Get(ctx context.Context, id string) (*procurement.ProcurementRequest, error)
	List(ctx context.Context) ([]procurement.ProcurementRequest, error)
	UpdateStatus(ctx context.Context, id string, expected procurement.Status, next procurement.ProcurementRequest) error
}

// requestRecord is the persisted shape. Money is kept as decimal strings.
type requestRecord struct {
	RequestID        string          `dynamodbav:"request_id" json:"request_id"`
	RequestorName    string          `dynamodbav:"requestor_name" json:"requestor_name"`
	Title            string          `dynamodbav:"title" json:"title"`
	VendorName       string          `dynamodbav:"vendor_name" json:"vendor_name"`
	VATID            string          `dynamodbav:"vat_id" json:"vat_id"`
	Department       string          `dynamodbav:"department" json:"department"`
	CommodityGroupID string          `dynamodbav:"commodity_group_id,omitempty" json:"commodity_group_id,omitempty"`
	CommodityGroup   string          `dynamodbav:"commodity_group,omitempty" json:"commodity_group,omitempty"`
	TotalCost        string          `dynamodbav:"total_cost" json:"total_cost"`
	Status           string          `dynamodbav:"status" json:"status"`
	OrderLines       []lineRecord    `dynamodbav:"order_lines" json:"order_lines"`
	History          []historyRecord `dynamodbav:"status_history,omitempty" json:"status_history,omitempty"`
	CreatedAt        time.Time       `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `dynamodbav:"updated_at" json:"updated_at"`
}

type lineRecord struct {
	PositionDescription string `dynamodbav:"position_description" json:"position_description"`
	UnitPrice           string `dynamodbav:"unit_price" json:"unit_price"`
	Amount              int64  `dynamodbav:"amount" json:"amount"`
	Unit                string `dynamodbav:"unit" json:"unit"`
	TotalPrice          string `dynamodbav:"total_price" json:"total_price"`
}

type historyRecord struct {
	OldStatus string    `dynamodbav:"old_status,omitempty" json:"old_status,omitempty"`
	NewStatus string    `dynamodbav:"new_status" json:"new_status"`
	Notes     string    `dynamodbav:"notes,omitempty" json:"notes,omitempty"`
	ChangedAt time.Time `dynamodbav:"changed_at" json:"changed_at"`
}

func toRecord(r procurement.ProcurementRequest) requestRecord {
	rec := requestRecord{
		RequestID:        r.ID,
		RequestorName:    r.RequestorName,
		Title:            r.Title,
		VendorName:       r.VendorName,
		VATID:            r.VATID,
		Department:       r.Department,
		CommodityGroupID: r.CommodityGroupID,
		CommodityGroup:   r.CommodityGroup,
		TotalCost:        r.TotalCost.String(),
		Status:           string(r.Status),
		OrderLines:       toLineRecords(r.OrderLines),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	for _, h := range r.History {
		rec.History = append(rec.History, toHistoryRecord(h))
	}
	return rec
}

func toLineRecords(lines []procurement.OrderLine) []lineRecord {
	out := make([]lineRecord, 0, len(lines))
	for _, l := range lines {
		out = append(out, lineRecord{
			PositionDescription: l.PositionDescription,
			UnitPrice:           l.UnitPrice.String(),
			Amount:              l.Amount,
			Unit:                l.Unit,
			TotalPrice:          l.TotalPrice.String(),
		})
	}
	return out
}

func toHistoryRecord(h procurement.StatusChange) historyRecord {
	return historyRecord{
		OldStatus: string(h.From),
		NewStatus: string(h.To),
		Notes:     h.Notes,
		ChangedAt: h.ChangedAt,
	}
}

// fromRecord rebuilds a request; totals are recomputed from the lines so a stale
// stored total is never returned.
func fromRecord(rec requestRecord) (*procurement.ProcurementRequest, error) {
	lines, err := fromLineRecords(rec.OrderLines)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", rec.RequestID, err)
	}
	r := &procurement.ProcurementRequest{
		ID: rec.RequestID,
		Draft: procurement.Draft{
			RequestorName:    rec.RequestorName,
			Title:            rec.Title,
			VendorName:       rec.VendorName,
			VATID:            rec.VATID,
			Department:       rec.Department,
			CommodityGroupID: rec.CommodityGroupID,
			CommodityGroup:   rec.CommodityGroup,
			OrderLines:       lines,
		},
		Status:    procurement.Status(rec.Status),
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	for _, h := range rec.History {
		r.History = append(r.History, procurement.StatusChange{
			From:      procurement.Status(h.OldStatus),
			To:        procurement.Status(h.NewStatus),
			Notes:     h.Notes,
			ChangedAt: h.ChangedAt,
		})
	}
	procurement.RecomputeTotal(&r.Draft)
	return r, nil
}

func fromLineRecords(recs []lineRecord) ([]procurement.OrderLine, error) {
	lines := make([]procurement.OrderLine, 0, len(recs))
	for i, lr := range recs {
		price, err := decimal.NewFromString(lr.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("order line %d unit price %q: %w", i, lr.UnitPrice, err)
		}
		lines = append(lines, procurement.NewOrderLine(lr.PositionDescription, price, lr.Amount, lr.Unit))
	}
	return lines, nil
}

func lastChange(r procurement.ProcurementRequest) (procurement.StatusChange, error) {
	if len(r.History) == 0 {
		return procurement.StatusChange{}, errors.New("transition has no history entry")
	}
	return r.History[len(r.History)-1], nil
}
