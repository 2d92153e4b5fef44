package requests

import (
	"context"
	"time"

	"github.com/imrishuroy/go-procurement-workflow/internal/procurement"
)

// Event types carried in the event_type message attribute.
const (
	EventSubmitted     = "request.submitted"
	EventStatusChanged = "request.status_changed"
)

// Event is the body published after a successful write.
type Event struct {
	Type           string    `json:"event_type"`
	RequestID      string    `json:"request_id"`
	FromStatus     string    `json:"from_status,omitempty"`
	ToStatus       string    `json:"to_status"`
	Department     string    `json:"department,omitempty"`
	CommodityGroup string    `json:"commodity_group,omitempty"`
	TotalCost      string    `json:"total_cost"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// EventPublisher delivers workflow events downstream.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

// JSONSender is satisfied by aws.Publisher.
type JSONSender interface {
	SendJSON(ctx context.Context, payload interface{}, attributes map[string]string) error
}

// QueuePublisher sends events as JSON messages, exposing the type and id as
// message attributes for subscription filtering.
type QueuePublisher struct {
	sender JSONSender
}

// NewQueuePublisher wraps sender.
func NewQueuePublisher(sender JSONSender) *QueuePublisher {
	return &QueuePublisher{sender: sender}
}

func (p *QueuePublisher) Publish(ctx context.Context, ev Event) error {
	return p.sender.SendJSON(ctx, ev, map[string]string{
		"event_type": ev.Type,
		"request_id": ev.RequestID,
		"to_status":  ev.ToStatus,
	})
}

func submittedEvent(r procurement.ProcurementRequest) Event {
	return Event{
		Type:           EventSubmitted,
		RequestID:      r.ID,
		ToStatus:       string(r.Status),
		Department:     r.Department,
		CommodityGroup: r.CommodityGroup,
		TotalCost:      r.TotalCost.StringFixed(2),
		OccurredAt:     r.CreatedAt,
	}
}

func statusChangedEvent(r procurement.ProcurementRequest, from procurement.Status) Event {
	return Event{
		Type:           EventStatusChanged,
		RequestID:      r.ID,
		FromStatus:     string(from),
		ToStatus:       string(r.Status),
		Department:     r.Department,
		CommodityGroup: r.CommodityGroup,
		TotalCost:      r.TotalCost.StringFixed(2),
		OccurredAt:     r.UpdatedAt,
	}
}
