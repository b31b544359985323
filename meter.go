package sentimentgate

import "time"

// Meter observes pipeline events for monitoring/logging.
type Meter interface {
	// OnIssue is called when an upload target was issued.
	OnIssue(event IssueEvent)

	// OnInvoke is called right before the engine is called.
	OnInvoke(event InvokeEvent)

	// OnResult is called when an inference attempt finished.
	OnResult(event ResultEvent)
}

// IssueEvent describes an issued upload target.
type IssueEvent struct {
	AccountID string
	Key       string
	Extension string
}

// InvokeEvent describes an engine call about to be made.
type InvokeEvent struct {
	Engine        string
	AccountID     string
	Key           string
	ReservationID string
}

// ResultEvent describes the outcome of an inference attempt.
type ResultEvent struct {
	Engine    string
	AccountID string
	Key       string
	Success   bool
	Committed bool
	Conflict  bool // commit lost the race for the last slot
	Duration  time.Duration
	Sentiment string
	Error     error
}

type noopMeter struct{}

func (m *noopMeter) OnIssue(IssueEvent)   {}
func (m *noopMeter) OnInvoke(InvokeEvent) {}
func (m *noopMeter) OnResult(ResultEvent) {}
