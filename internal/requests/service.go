package requests

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/imrishuroy/go-procurement-workflow/internal/procurement"
	"github.com/imrishuroy/go-procurement-workflow/internal/validation"
)

// Classifier assigns a commodity group to drafts that arrive without one.
type Classifier interface {
	Classify(title string, lines []procurement.OrderLine) (id, group string, ok bool)
	Group(id string) (string, bool)
}

// DraftValidator checks a draft before it is opened.
type DraftValidator interface {
	Validate(d procurement.Draft) error
}

// Recorder receives counts of service outcomes.
type Recorder interface {
	Submitted(r procurement.ProcurementRequest)
	Transitioned(from, to procurement.Status)
	Rejected(code string)
}

type nopRecorder struct{}

func (nopRecorder) Submitted(procurement.ProcurementRequest) {}
func (nopRecorder) Transitioned(from, to procurement.Status) {}
func (nopRecorder) Rejected(string) {}

// Service is the application layer over a Store.
type Service struct {
	store      Store
	validator  DraftValidator
	workflow   *procurement.Workflow
	classifier Classifier
	publisher  EventPublisher
	recorder   Recorder
}

// Option configures a Service.
type Option func(*Service)

// WithWorkflow replaces the default workflow.
func WithWorkflow(w *procurement.Workflow) Option { return func(s *Service) { s.workflow = w } }

// WithValidator replaces the default validator.
func WithValidator(v DraftValidator) Option { return func(s *Service) { s.validator = v } }

// WithClassifier enables commodity classification on submit.
func WithClassifier(c Classifier) Option { return func(s *Service) { s.classifier = c } }

// WithPublisher enables event publishing.
func WithPublisher(p EventPublisher) Option { return func(s *Service) { s.publisher = p } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option { return func(s *Service) { s.recorder = r } }

// NewService builds a Service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		validator: validation.New(),
		workflow:  procurement.NewWorkflow(nil),
		recorder:  nopRecorder{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Prepare recomputes totals and fills in the commodity group, returning the draft
// Submit would validate. d is not modified.
func (s *Service) Prepare(d procurement.Draft) procurement.Draft {
	d = d.Clone()
	procurement.RecomputeTotal(&d)
	if s.classifier == nil {
		return d
	}
	switch {
	case d.CommodityGroupID == "":
		if id, group, ok := s.classifier.Classify(d.Title, d.OrderLines); ok {
			d.CommodityGroupID = id
			d.CommodityGroup = group
		}
	case d.CommodityGroup == "":
		if group, ok := s.classifier.Group(d.CommodityGroupID); ok {
			d.CommodityGroup = group
		}
	}
	return d
}

// Submit validates the draft and stores it as a new Open request. Nothing is
// stored or published when validation fails.
func (s *Service) Submit(ctx context.Context, d procurement.Draft) (*procurement.ProcurementRequest, error) {
	d = s.Prepare(d)
	if err := s.validator.Validate(d); err != nil {
		var ve *validation.ValidationError
		if errors.As(err, &ve) {
			s.recorder.Rejected(ve.Code)
		}
		return nil, err
	}

	req := s.workflow.Open(d)
	if _, err := s.store.Create(ctx, &req); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	s.recorder.Submitted(req)
	s.publish(ctx, submittedEvent(req))
	return &req, nil
}

// Get returns the request or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*procurement.ProcurementRequest, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if r == nil {
		return nil, ErrNotFound
	}
	return r, nil
}

// List returns requests newest first. A non-empty status keeps only requests in
// that status; an unknown label is ErrInvalidStatus.
func (s *Service) List(ctx context.Context, status string) ([]procurement.ProcurementRequest, error) {
	var want procurement.Status
	if status != "" {
		st, err := procurement.ParseStatus(status)
		if err != nil {
			return nil, err
		}
		want = st
	}
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	if want == "" {
		return all, nil
	}
	out := make([]procurement.ProcurementRequest, 0, len(all))
	for _, r := range all {
		if r.Status == want {
			out = append(out, r)
		}
	}
	return out, nil
}

// UpdateStatus moves a request to status. The write only lands if nobody changed
// the status since it was read; otherwise ErrStatusMismatch.
func (s *Service) UpdateStatus(ctx context.Context, id, status, notes string) (*procurement.ProcurementRequest, error) {
	to, err := procurement.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := s.workflow.Transition(*cur, to, notes)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateStatus(ctx, id, cur.Status, next); err != nil {
		if errors.Is(err, ErrStatusMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("update status: %w", err)
	}
	s.recorder.Transitioned(cur.Status, next.Status)
	s.publish(ctx, statusChangedEvent(next, cur.Status))
	return &next, nil
}

// Statistics aggregates one snapshot of all requests.
func (s *Service) Statistics(ctx context.Context) (procurement.Statistics, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return procurement.Statistics{}, fmt.Errorf("list requests: %w", err)
	}
	return procurement.Aggregate(all), nil
}

// Merge decodes raw extraction output and folds it into d.
func (s *Service) Merge(d procurement.Draft, raw []byte) (procurement.Draft, []procurement.Advisory) {
	x, decodeAdv := procurement.DecodeExtracted(raw)
	merged, mergeAdv := procurement.Merge(d, x)
	return merged, append(decodeAdv, mergeAdv...)
}

// publish is best effort; failures are only logged.
func (s *Service) publish(ctx context.Context, ev Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		log.Printf("[requests] publish %s for %s failed: %v", ev.Type, ev.RequestID, err)
	}
}
