package sentimentgate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ObjectStore is the external object store as seen by the pipeline.
type ObjectStore interface {
	Presigner
	ObjectChecker
	ObjectLocator
}

// Service is the server side of the pipeline: it authenticates callers, issues
// upload targets and runs quota-gated inference.
type Service struct {
	cfg        Config
	store      Store
	engine     Engine
	objects    ObjectStore
	meter      Meter
	health     *HealthTracker
	settlement Settlement
	logger     *slog.Logger

	gate    *Gate
	issuer  *Issuer
	invoker *Invoker
}

// Option configures a Service.
type Option func(*Service)

// WithMeter sets the meter.
func WithMeter(m Meter) Option {
	return func(s *Service) { s.meter = m }
}

// WithHealthTracker sets the engine health tracker.
func WithHealthTracker(h *HealthTracker) Option {
	return func(s *Service) { s.health = h }
}

// WithSettlement sets the policy applied when a commit loses the race for the
// last slot.
func WithSettlement(p Settlement) Option {
	return func(s *Service) { s.settlement = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service. Default components (generous settlement,
// NoopMeter, slog.Default) are used unless overridden via options.
func NewService(cfg Config, store Store, engine Engine, objects ObjectStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("sentimentgate: a quota store is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("sentimentgate: an inference engine is required")
	}
	if objects == nil {
		return nil, fmt.Errorf("sentimentgate: an object store is required")
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		cfg:     cfg,
		store:   store,
		engine:  engine,
		objects: objects,
	}

	for _, opt := range opts {
		opt(s)
	}

	// Apply defaults after options.
	if s.meter == nil {
		s.meter = &noopMeter{}
	}
	if s.settlement == nil {
		s.settlement = &defaultGenerousSettlement{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.health == nil {
		s.health = NewHealthTracker()
	}

	s.gate = NewGate(store)
	s.issuer = NewIssuer(cfg.Uploads, objects, s.meter)
	s.invoker = &Invoker{
		uploads:    cfg.Uploads,
		engine:     engine,
		ledger:     store,
		objects:    objects,
		locator:    objects,
		meter:      s.meter,
		health:     s.health,
		settlement: s.settlement,
		logger:     s.logger,
	}

	return s, nil
}

// Gate returns the Auth Gate.
func (s *Service) Gate() *Gate { return s.gate }

// Issuer returns the Upload Target Issuer.
func (s *Service) Issuer() *Issuer { return s.issuer }

// Invoker returns the Inference Invoker.
func (s *Service) Invoker() *Invoker { return s.invoker }

// Health returns the engine health tracker.
func (s *Service) Health() *HealthTracker { return s.health }

// EngineHealth reports the circuit state of the configured engine.
func (s *Service) EngineHealth() (string, HealthState) {
	name := s.engine.Name()
	return name, s.health.GetHealth(name)
}

// IssueUploadTarget authenticates the Authorization header and issues an
// upload target for fileType.
func (s *Service) IssueUploadTarget(ctx context.Context, authHeader, fileType string) (UploadTarget, error) {
	acct, err := s.gate.Resolve(ctx, authHeader)
	if err != nil {
		return UploadTarget{}, err
	}
	return s.IssueFor(ctx, acct, fileType)
}

// IssueFor issues an upload target for an already authenticated account.
func (s *Service) IssueFor(ctx context.Context, acct Account, fileType string) (UploadTarget, error) {
	return s.issuer.Issue(ctx, acct, fileType)
}

// Analyze authenticates the Authorization header, checks the quota and runs
// the engine on key. The engine is never called once the quota is exhausted.
func (s *Service) Analyze(ctx context.Context, authHeader, key string) (Analysis, error) {
	acct, err := s.gate.Resolve(ctx, authHeader)
	if err != nil {
		return Analysis{}, err
	}
	return s.AnalyzeFor(ctx, acct, key)
}

// AnalyzeFor runs quota-gated inference for an already authenticated account.
func (s *Service) AnalyzeFor(ctx context.Context, acct Account, key string) (Analysis, error) {
	res, err := s.store.CheckAndReserve(ctx, acct.ID)
	if errors.Is(err, ErrAccountNotFound) {
		return Analysis{}, ErrUnauthorized
	}
	if err != nil {
		return Analysis{}, &PipelineError{Err: err, Stage: StageAnalyze, AccountID: acct.ID, Key: key}
	}

	return s.invoker.Invoke(ctx, acct, res, key)
}

// Usage authenticates the Authorization header and returns the quota counters.
func (s *Service) Usage(ctx context.Context, authHeader string) (Usage, error) {
	acct, err := s.gate.Resolve(ctx, authHeader)
	if err != nil {
		return Usage{}, err
	}
	return s.UsageFor(ctx, acct)
}

// UsageFor returns the quota counters of an already authenticated account.
func (s *Service) UsageFor(ctx context.Context, acct Account) (Usage, error) {
	u, err := s.store.Usage(ctx, acct.ID)
	if errors.Is(err, ErrAccountNotFound) {
		return Usage{}, ErrUnauthorized
	}
	return u, err
}

// ProvisionAccounts upserts the seeded accounts into p.
func ProvisionAccounts(ctx context.Context, p Provisioner, accounts []AccountConfig) error {
	for _, acc := range accounts {
		rec := Record{AccountID: acc.ID, SecretKey: acc.SecretKey, MaxRequests: acc.MaxRequests}
		if err := p.Provision(ctx, rec); err != nil {
			return fmt.Errorf("sentimentgate: provision %s: %w", acc.ID, err)
		}
	}
	return nil
}
