package meter

import "github.com/ineyio/sentimentgate"

// NoopMeter is a meter that does nothing.
type NoopMeter struct{}

var _ sentimentgate.Meter = (*NoopMeter)(nil)

func (m *NoopMeter) OnIssue(sentimentgate.IssueEvent)   {}
func (m *NoopMeter) OnInvoke(sentimentgate.InvokeEvent) {}
func (m *NoopMeter) OnResult(sentimentgate.ResultEvent) {}

// Multi fans events out to several meters in order.
type Multi []sentimentgate.Meter

var _ sentimentgate.Meter = Multi(nil)

func (m Multi) OnIssue(e sentimentgate.IssueEvent) {
	for _, mm := range m {
		mm.OnIssue(e)
	}
}

func (m Multi) OnInvoke(e sentimentgate.InvokeEvent) {
	for _, mm := range m {
		mm.OnInvoke(e)
	}
}

func (m Multi) OnResult(e sentimentgate.ResultEvent) {
	for _, mm := range m {
		mm.OnResult(e)
	}
}
