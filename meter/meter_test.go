package meter

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ineyio/sentimentgate"
)

func TestPrometheusMeter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPrometheusMeter(reg)
	require.NoError(t, err)

	m.OnIssue(sentimentgate.IssueEvent{AccountID: "a", Key: "k", Extension: ".mp4"})
	m.OnInvoke(sentimentgate.InvokeEvent{Engine: "mock", AccountID: "a", Key: "k"})
	m.OnResult(sentimentgate.ResultEvent{Engine: "mock", Success: true, Committed: true, Sentiment: "positive", Duration: time.Second})
	m.OnResult(sentimentgate.ResultEvent{Engine: "mock", Success: true, Conflict: true, Sentiment: "negative"})
	m.OnResult(sentimentgate.ResultEvent{Engine: "mock", Error: errors.New("boom")})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.issued.WithLabelValues(".mp4")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocations.WithLabelValues("mock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.results.WithLabelValues("mock", OutcomeCommitted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.results.WithLabelValues("mock", OutcomeConflict)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.results.WithLabelValues("mock", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sentiments.WithLabelValues("positive")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestPrometheusMeter_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusMeter(reg)
	require.NoError(t, err)
	_, err = NewPrometheusMeter(reg)
	assert.Error(t, err)
}

func TestLogMeter(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMeter(slog.New(slog.NewTextHandler(&buf, nil)))

	m.OnIssue(sentimentgate.IssueEvent{AccountID: "acct1", Key: "uploads/acct1/x.mp4", Extension: ".mp4"})
	m.OnResult(sentimentgate.ResultEvent{Engine: "mock", AccountID: "acct1", Error: errors.New("engine down")})

	out := buf.String()
	assert.Contains(t, out, "upload_target_issued")
	assert.Contains(t, out, "key=uploads/acct1/x.mp4")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "engine down")
}

func TestMulti(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm, err := NewPrometheusMeter(reg)
	require.NoError(t, err)

	m := Multi{&NoopMeter{}, pm}
	m.OnInvoke(sentimentgate.InvokeEvent{Engine: "e"})
	m.OnInvoke(sentimentgate.InvokeEvent{Engine: "e"})
	assert.Equal(t, 2.0, testutil.ToFloat64(pm.invocations.WithLabelValues("e")))
}
