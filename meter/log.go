package meter

import (
	"log/slog"

	"github.com/ineyio/sentimentgate"
)

// LogMeter logs pipeline events using slog.
type LogMeter struct {
	Logger *slog.Logger
}

var _ sentimentgate.Meter = (*LogMeter)(nil)

// NewLogMeter creates a LogMeter with the given logger.
// If logger is nil, slog.Default() is used.
func NewLogMeter(logger *slog.Logger) *LogMeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMeter{Logger: logger}
}

func (m *LogMeter) OnIssue(e sentimentgate.IssueEvent) {
	m.Logger.Info("upload_target_issued",
		"account", e.AccountID,
		"key", e.Key,
		"extension", e.Extension,
	)
}

func (m *LogMeter) OnInvoke(e sentimentgate.InvokeEvent) {
	m.Logger.Info("invoke",
		"engine", e.Engine,
		"account", e.AccountID,
		"key", e.Key,
		"reservation", e.ReservationID,
	)
}

func (m *LogMeter) OnResult(e sentimentgate.ResultEvent) {
	if e.Success {
		m.Logger.Info("result",
			"engine", e.Engine,
			"account", e.AccountID,
			"key", e.Key,
			"duration_ms", e.Duration.Milliseconds(),
			"sentiment", e.Sentiment,
			"committed", e.Committed,
			"conflict", e.Conflict,
		)
	} else {
		m.Logger.Warn("result_error",
			"engine", e.Engine,
			"account", e.AccountID,
			"key", e.Key,
			"duration_ms", e.Duration.Milliseconds(),
			"conflict", e.Conflict,
			"error", e.Error,
		)
	}
}
