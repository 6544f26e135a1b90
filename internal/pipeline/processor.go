package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rockfish84/kakaotalk-server-backend/pkg/dispatch"
)

// Strategy selects how delivery requests are submitted to the provider.
type Strategy string

const (
	// StrategyIndependent sends one provider call per recipient, concurrently.
	StrategyIndependent Strategy = "independent"
	// StrategyBatched sends all recipients through the provider's batch call.
	StrategyBatched Strategy = "batched"
)

// DefaultMaxInFlight bounds concurrent provider calls when none is configured.
const DefaultMaxInFlight = 64

// ParseStrategy maps a config value onto a Strategy. Empty means independent.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyIndependent:
		return StrategyIndependent, nil
	case StrategyBatched:
		return StrategyBatched, nil
	default:
		return "", fmt.Errorf("unknown delivery strategy %q", s)
	}
}

// Observer is notified once per finished dispatch call.
type Observer interface {
	ObserveDispatch(strategy, provider string, report *dispatch.Report, err error, elapsed time.Duration)
}

// EngineConfig selects the delivery strategy and the in-flight bound.
type EngineConfig struct {
	Strategy    Strategy
	MaxInFlight int
}

// Engine fans one payload out to every registered token and aggregates the
// per-recipient outcomes.
type Engine struct {
	tokens   dispatch.TokenLister
	provider dispatch.Provider
	batch    dispatch.BatchProvider
	cfg      EngineConfig
	observer Observer
	logger   *slog.Logger
}

// NewEngine wires the engine. The batched strategy is only accepted when the
// provider implements dispatch.BatchProvider. observer may be nil.
func NewEngine(
	tokens dispatch.TokenLister,
	provider dispatch.Provider,
	cfg EngineConfig,
	observer Observer,
	logger *slog.Logger,
) (*Engine, error) {
	if tokens == nil || provider == nil {
		return nil, fmt.Errorf("engine requires a token lister and a provider")
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyIndependent
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}

	e := &Engine{
		tokens:   tokens,
		provider: provider,
		cfg:      cfg,
		observer: observer,
		logger:   logger.With("component", "DispatchEngine", "provider", provider.Name(), "strategy", string(cfg.Strategy)),
	}

	switch cfg.Strategy {
	case StrategyIndependent:
	case StrategyBatched:
		bp, ok := provider.(dispatch.BatchProvider)
		if !ok {
			return nil, fmt.Errorf("provider %q does not support the batched strategy", provider.Name())
		}
		e.batch = bp
	default:
		return nil, fmt.Errorf("unknown delivery strategy %q", cfg.Strategy)
	}
	return e, nil
}

// Strategy returns the strategy the engine was built with.
func (e *Engine) Strategy() Strategy {
	return e.cfg.Strategy
}

// Dispatch sends payload to every token in a registry snapshot taken at call
// time. It fails only before the provider is reached (empty registry, invalid
// payload) or when the provider rejects a whole batch; individual delivery
// failures are reported inside the returned Report.
func (e *Engine) Dispatch(ctx context.Context, payload dispatch.Payload) (*dispatch.Report, error) {
	start := time.Now()
	report, err := e.dispatch(ctx, payload)
	if e.observer != nil {
		e.observer.ObserveDispatch(string(e.cfg.Strategy), e.provider.Name(), report, err, time.Since(start))
	}
	return report, err
}

func (e *Engine) dispatch(ctx context.Context, payload dispatch.Payload) (*dispatch.Report, error) {
	// 1. Snapshot
	tokens := e.tokens.ListAll()
	if len(tokens) == 0 {
		return nil, dispatch.ErrEmptyRegistry
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	// 2. One request per recipient
	reqs := make([]dispatch.Request, len(tokens))
	for i, token := range tokens {
		reqs[i] = dispatch.Request{
			Token:    token,
			Payload:  payload,
			Priority: dispatch.PriorityHigh,
		}
	}

	// 3. Submit
	var results []dispatch.Result
	switch e.cfg.Strategy {
	case StrategyBatched:
		var err error
		results, err = e.sendBatched(ctx, reqs)
		if err != nil {
			e.logger.Error("Provider rejected dispatch", "recipients", len(reqs), "err", err)
			return nil, err
		}
	default:
		results = e.sendIndependent(ctx, reqs)
	}

	// 4. Aggregate in snapshot order
	report := e.aggregate(reqs, results)
	e.logger.Info("Dispatch complete",
		"recipients", len(reqs),
		"success", report.SuccessCount,
		"failure", report.FailureCount,
	)
	return report, nil
}

// sendIndependent issues one provider call per request. results[i] always
// belongs to reqs[i], whatever order the calls finish in.
func (e *Engine) sendIndependent(ctx context.Context, reqs []dispatch.Request) []dispatch.Result {
	results := make([]dispatch.Result, len(reqs))

	var g errgroup.Group
	g.SetLimit(e.cfg.MaxInFlight)
	for i := range reqs {
		g.Go(func() error {
			id, err := e.provider.Send(ctx, reqs[i])
			results[i] = dispatch.Result{ID: id, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (e *Engine) sendBatched(ctx context.Context, reqs []dispatch.Request) ([]dispatch.Result, error) {
	size := e.batch.MaxBatchSize()
	if size <= 0 {
		size = len(reqs)
	}

	results := make([]dispatch.Result, 0, len(reqs))
	for start := 0; start < len(reqs); start += size {
		end := min(start+size, len(reqs))
		chunk := reqs[start:end]

		chunkResults, err := e.batch.SendBatch(ctx, chunk)
		if err != nil {
			return nil, asProviderWide(e.provider.Name(), err)
		}
		if len(chunkResults) != len(chunk) {
			return nil, &dispatch.ProviderWideError{
				Provider: e.provider.Name(),
				Message:  "batch result count does not match request count",
				Details:  fmt.Sprintf("sent %d requests, got %d results", len(chunk), len(chunkResults)),
			}
		}
		results = append(results, chunkResults...)
	}
	return results, nil
}

func (e *Engine) aggregate(reqs []dispatch.Request, results []dispatch.Result) *dispatch.Report {
	report := &dispatch.Report{Outcomes: make([]dispatch.Outcome, len(reqs))}

	for i, req := range reqs {
		res := results[i]
		if res.Err != nil {
			derr := dispatch.AsDeliveryError(res.Err)
			e.logger.Warn("Delivery failed", "token", req.Token, "code", derr.Code, "err", derr.Message)
			report.Outcomes[i] = dispatch.Outcome{Token: req.Token, Error: derr}
			report.FailureCount++
			continue
		}
		report.Outcomes[i] = dispatch.Outcome{Token: req.Token, Result: res.ID}
		report.SuccessCount++
	}
	return report
}

func asProviderWide(provider string, err error) error {
	var pErr *dispatch.ProviderWideError
	if errors.As(err, &pErr) {
		return pErr
	}
	return &dispatch.ProviderWideError{
		Provider: provider,
		Message:  err.Error(),
		Err:      err,
	}
}
