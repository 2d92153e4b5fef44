package main

import (
	"errors"
	"fmt"

	"github.com/imrishuroy/go-procurement-workflow/internal/requests"
)

// CloudWatch names emitted by the worker.
const (
	metricNamespace         = "Procurement/Workflow"
	metricRequestsSubmitted = "RequestsSubmitted"
	metricSubmittedValue    = "SubmittedValue"
	metricStatusTransitions = "StatusTransitions"
)

// WorkerMessage is the payload sent from API -> SQS -> Worker.
type WorkerMessage = requests.Event

func checkMessage(msg WorkerMessage) error {
	if msg.RequestID == "" {
		return errors.New("message without request_id")
	}
	switch msg.Type {
	case requests.EventSubmitted, requests.EventStatusChanged:
		return nil
	default:
		return fmt.Errorf("unknown event_type %q for request %s", msg.Type, msg.RequestID)
	}
}
