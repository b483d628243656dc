package ports

import "context"

// Escalation is the channel-agnostic payload of one SLA automation event
// being delivered to humans.
type Escalation struct {
	EventUID       string
	RuleKey        string
	Status         string
	Severity       string
	Summary        string
	MetricValue    float64
	ThresholdValue float64
	PayloadJSON    string
}

// EscalationChannel delivers one escalation over a single medium (operator
// log, webhook, chat). Send failures are retryable per the SLA backoff rules
// and must never roll back the recorded event.
type EscalationChannel interface {
	Name() string
	Send(ctx context.Context, escalation Escalation) error
}
