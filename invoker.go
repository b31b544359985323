package sentimentgate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Invoker runs the inference engine on a stored object and settles the quota.
// Callers must hold a Reservation from Ledger.CheckAndReserve; the Invoker is
// the only component that commits.
type Invoker struct {
	uploads    UploadConfig
	engine     Engine
	ledger     Ledger
	objects    ObjectChecker
	locator    ObjectLocator
	meter      Meter
	health     *HealthTracker
	settlement Settlement
	logger     *slog.Logger
}

// Invoke classifies the object at key for acct.
//
// A missing object (or a key outside the account's namespace) returns
// ErrNotFound and leaves the ledger untouched. Engine failures return
// ErrEngine and are not retried.
func (inv *Invoker) Invoke(ctx context.Context, acct Account, res Reservation, key string) (Analysis, error) {
	fail := func(err error) (Analysis, error) {
		return Analysis{}, &PipelineError{Err: err, Stage: StageAnalyze, AccountID: acct.ID, Key: key}
	}

	if res.AccountID != acct.ID {
		return fail(ErrReservationMismatch)
	}
	if !OwnsKey(inv.uploads, acct.ID, key) {
		return fail(ErrNotFound)
	}

	exists, err := inv.objects.Exists(ctx, key)
	if err != nil {
		return fail(fmt.Errorf("%w: check object: %v", ErrTransport, err))
	}
	if !exists {
		return fail(ErrNotFound)
	}

	engineName := inv.engine.Name()
	if !inv.health.Allow(engineName) {
		return fail(fmt.Errorf("%w: engine %s is unhealthy", ErrEngine, engineName))
	}

	inv.meter.OnInvoke(InvokeEvent{
		Engine:        engineName,
		AccountID:     acct.ID,
		Key:           key,
		ReservationID: res.ID,
	})

	start := time.Now()
	resp, err := inv.engine.Classify(ctx, EngineRequest{Key: key, Location: inv.locator.Locate(key)})
	if err == nil {
		var analysis Analysis
		analysis, err = NormalizeResponse(resp.Body)
		if err == nil {
			inv.health.RecordSuccess(engineName)
			return inv.settle(ctx, acct, res, key, analysis, time.Since(start))
		}
	}
	duration := time.Since(start)

	switch {
	case errors.Is(err, ErrNotFound):
	case errors.Is(err, ErrEngine):
		inv.health.RecordFailure(engineName)
	default:
		inv.health.RecordFailure(engineName)
		err = fmt.Errorf("%w: %v", ErrEngine, err)
	}

	inv.meter.OnResult(ResultEvent{
		Engine:    engineName,
		AccountID: acct.ID,
		Key:       key,
		Success:   false,
		Duration:  duration,
		Error:     err,
	})
	return fail(err)
}

// settle commits the reservation. The commit outlives caller cancellation: the
// engine call has already been made and must be billed.
func (inv *Invoker) settle(ctx context.Context, acct Account, res Reservation, key string, analysis Analysis, duration time.Duration) (Analysis, error) {
	event := ResultEvent{
		Engine:    inv.engine.Name(),
		AccountID: acct.ID,
		Key:       key,
		Success:   true,
		Duration:  duration,
		Sentiment: analysis.OverallSentiment,
	}

	commitErr := inv.ledger.Commit(context.WithoutCancel(ctx), res)
	switch {
	case commitErr == nil:
		event.Committed = true
		inv.meter.OnResult(event)
		return analysis, nil

	case errors.Is(commitErr, ErrQuotaExceeded):
		event.Conflict = true
		inv.logger.WarnContext(ctx, "quota commit lost race for last slot",
			"account", acct.ID,
			"key", key,
			"reservation", res.ID,
		)
		settled, err := inv.settlement.Settle(analysis, commitErr)
		if err != nil {
			event.Success = false
			event.Error = err
			inv.meter.OnResult(event)
			return Analysis{}, &PipelineError{Err: err, Stage: StageAnalyze, AccountID: acct.ID, Key: key}
		}
		inv.meter.OnResult(event)
		return settled, nil

	default:
		event.Success = false
		event.Error = commitErr
		inv.meter.OnResult(event)
		return Analysis{}, &PipelineError{
			Err:       fmt.Errorf("sentimentgate: commit quota: %w", commitErr),
			Stage:     StageAnalyze,
			AccountID: acct.ID,
			Key:       key,
		}
	}
}
