package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/aws/aws-lambda-go/events"
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-procurement-workflow/internal/aws"
	"github.com/imrishuroy/go-procurement-workflow/internal/requests"
)

// Processor turns workflow events from SQS into CloudWatch metrics.
type Processor struct {
	cloudwatch aws.CloudWatchAPI
	namespace  string
}

// NewProcessor creates a new worker processor with AWS clients injected.
func NewProcessor(clients *aws.Clients) *Processor {
	return &Processor{cloudwatch: clients.CloudWatch, namespace: metricNamespace}
}

// Handle receives an SQS batch event and processes each message.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	log.Printf("[worker] received %d SQS messages", len(ev.Records))
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Lambda retries the batch; repeated failures land in the DLQ.
			log.Printf("[worker] message %s: %v", rec.MessageId, err)
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg WorkerMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if err := checkMessage(msg); err != nil {
		return err
	}

	log.Printf("[worker] %s request=%s %s->%s", msg.Type, msg.RequestID, msg.FromStatus, msg.ToStatus)

	data, err := metricData(msg)
	if err != nil {
		return err
	}
	_, err = p.cloudwatch.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  sdkaws.String(p.namespace),
		MetricData: data,
	})
	if err != nil {
		return fmt.Errorf("put metric data for request %s: %w", msg.RequestID, err)
	}
	return nil
}

func metricData(msg WorkerMessage) ([]cwtypes.MetricDatum, error) {
	ts := sdkaws.Time(msg.OccurredAt)
	if msg.OccurredAt.IsZero() {
		ts = nil
	}

	switch msg.Type {
	case requests.EventSubmitted:
		dims := []cwtypes.Dimension{{Name: sdkaws.String("Department"), Value: sdkaws.String(orUnknown(msg.Department))}}
		data := []cwtypes.MetricDatum{{
			MetricName: sdkaws.String(metricRequestsSubmitted),
			Dimensions: dims,
			Timestamp:  ts,
			Unit:       cwtypes.StandardUnitCount,
			Value:      sdkaws.Float64(1),
		}}
		if msg.TotalCost != "" {
			total, err := decimal.NewFromString(msg.TotalCost)
			if err != nil {
				return nil, fmt.Errorf("request %s: total_cost %q: %w", msg.RequestID, msg.TotalCost, err)
			}
			data = append(data, cwtypes.MetricDatum{
				MetricName: sdkaws.String(metricSubmittedValue),
				Dimensions: dims,
				Timestamp:  ts,
				Unit:       cwtypes.StandardUnitNone,
				Value:      sdkaws.Float64(total.InexactFloat64()),
			})
		}
		return data, nil
	default:
		return []cwtypes.MetricDatum{{
			MetricName: sdkaws.String(metricStatusTransitions),
			Dimensions: []cwtypes.Dimension{
				{Name: sdkaws.String("FromStatus"), Value: sdkaws.String(orUnknown(msg.FromStatus))},
				{Name: sdkaws.String("ToStatus"), Value: sdkaws.String(orUnknown(msg.ToStatus))},
			},
			Timestamp: ts,
			Unit:      cwtypes.StandardUnitCount,
			Value:     sdkaws.Float64(1),
		}}, nil
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
