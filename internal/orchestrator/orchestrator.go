// Package orchestrator drives the page extractor through escalating
// strategies with bounded retries and returns a classified result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/netsheet-cli/internal/config"
	"github.com/sells-group/netsheet-cli/internal/cost"
	"github.com/sells-group/netsheet-cli/internal/extract"
	"github.com/sells-group/netsheet-cli/internal/model"
	"github.com/sells-group/netsheet-cli/internal/resilience"
)

// RunFunc performs one extraction attempt against a document.
type RunFunc func(ctx context.Context, docPath string) (*model.PageResult, error)

// Strategy is one escalation level. Attempts within a strategy are separated
// by Delay; the first attempt of a strategy never waits.
type Strategy struct {
	Method      model.Method
	MaxAttempts int
	Delay       time.Duration
	Run         RunFunc
}

// Config holds the orchestrator limits.
type Config struct {
	// MinSuccessFields is the field count at which an attempt is a full success.
	MinSuccessFields int
	// MaxTotalAttempts caps attempts across every strategy.
	MaxTotalAttempts int
	AttemptTimeout   time.Duration
	TotalFields      int
}

// ConfigFrom maps the extraction config section onto orchestrator limits.
func ConfigFrom(cfg config.ExtractionConfig) Config {
	return Config{
		MinSuccessFields: cfg.MinSuccessFields,
		MaxTotalAttempts: cfg.MaxTotalAttempts,
		AttemptTimeout:   time.Duration(cfg.AttemptTimeoutSecs) * time.Second,
		TotalFields:      extract.TotalFields,
	}
}

// AttemptObserver is called after each attempt record is appended to the log.
type AttemptObserver func(ctx context.Context, attempt model.ExtractionAttempt)

// Orchestrator runs strategies in order for one document at a time. It holds
// no per-document state, so one instance may serve concurrent documents.
type Orchestrator struct {
	cfg        Config
	strategies []Strategy
	observer   AttemptObserver
	costs      *cost.Calculator
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithObserver registers a hook invoked after every attempt.
func WithObserver(obs AttemptObserver) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithCostCalculator sets the calculator used for per-attempt cost.
func WithCostCalculator(c *cost.Calculator) Option {
	return func(o *Orchestrator) { o.costs = c }
}

// WithSleep replaces the inter-attempt delay function.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

// New creates an Orchestrator. Strategies run in the order given.
func New(cfg Config, strategies []Strategy, opts ...Option) *Orchestrator {
	if cfg.MinSuccessFields <= 0 {
		cfg.MinSuccessFields = 15
	}
	if cfg.MaxTotalAttempts <= 0 {
		cfg.MaxTotalAttempts = 10
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 180 * time.Second
	}
	if cfg.TotalFields <= 0 {
		cfg.TotalFields = extract.TotalFields
	}
	o := &Orchestrator{
		cfg:        cfg,
		strategies: strategies,
		costs:      cost.NewCalculator(cost.DefaultRates()),
		sleep:      resilience.Sleep,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// With returns a copy of o with opts applied on top of its current
// settings. The pipeline uses it to attach a per-run observer.
func (o *Orchestrator) With(opts ...Option) *Orchestrator {
	c := *o
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

// Run extracts docPath. Backend failures never surface as errors; they are
// folded into the returned outcome. Only a document-level failure or
// cancellation of ctx returns an error.
func (o *Orchestrator) Run(ctx context.Context, docPath string) (*model.RobustExtractionResult, error) {
	log := zap.L().With(zap.String("document", filepath.Base(docPath)))
	start := o.now()

	var (
		attempts []model.ExtractionAttempt
		best     *model.ExtractionAttempt
		lastErr  string
	)

	finish := func(res *model.RobustExtractionResult) *model.RobustExtractionResult {
		res.Attempts = attempts
		res.Duration = o.now().Sub(start)
		log.Info("orchestrator: run complete",
			zap.String("outcome", string(res.Outcome)),
			zap.String("method", string(res.FinalMethod)),
			zap.Int("fields", res.FieldsExtracted),
			zap.Int("attempts", len(attempts)),
			zap.Float64("cost_usd", res.TotalCostUSD()),
			zap.Duration("duration", res.Duration),
		)
		return res
	}

strategies:
	for _, s := range o.strategies {
		for i := 0; i < s.MaxAttempts; i++ {
			if len(attempts) >= o.cfg.MaxTotalAttempts {
				log.Warn("orchestrator: attempt ceiling reached",
					zap.Int("max_total_attempts", o.cfg.MaxTotalAttempts),
					zap.String("method", string(s.Method)))
				break strategies
			}
			if i > 0 {
				if err := o.sleep(ctx, s.Delay); err != nil {
					return nil, eris.Wrap(err, "orchestrator: wait between attempts")
				}
			}

			a, err := o.attempt(ctx, s, len(attempts)+1, docPath)
			if err != nil && ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "orchestrator: run cancelled")
			}
			attempts = append(attempts, a)
			if o.observer != nil {
				o.observer(ctx, a)
			}
			if err != nil {
				log.Error("orchestrator: document cannot be extracted", zap.Error(err))
				return nil, err
			}

			log.Info("orchestrator: attempt finished",
				zap.Int("attempt", a.AttemptNumber),
				zap.String("method", string(a.Method)),
				zap.Bool("success", a.Success),
				zap.Int("fields", a.FieldsExtracted),
				zap.Bool("timed_out", a.TimedOut),
				zap.Duration("duration", a.Duration),
			)
			if a.Error != "" {
				lastErr = a.Error
			}

			if a.CachedResult != nil && a.FieldsExtracted >= o.cfg.MinSuccessFields {
				return finish(&model.RobustExtractionResult{
					Outcome:         model.OutcomeFullSuccess,
					Data:            a.CachedResult.Data,
					FieldsExtracted: a.FieldsExtracted,
					TotalFields:     o.cfg.TotalFields,
					FinalMethod:     a.Method,
					Corrections:     a.CachedResult.Corrections,
				}), nil
			}
			if a.CachedResult != nil && (best == nil || a.FieldsExtracted > best.FieldsExtracted) {
				b := a
				best = &b
			}
		}
	}

	if best != nil && best.FieldsExtracted > 0 {
		method := model.MethodMinimalPartial
		if best.Method.IsModel() {
			method = model.MethodBestPartial
		}
		return finish(&model.RobustExtractionResult{
			Outcome:         model.OutcomePartialSuccess,
			Data:            best.CachedResult.Data,
			FieldsExtracted: best.FieldsExtracted,
			TotalFields:     o.cfg.TotalFields,
			FinalMethod:     method,
			Corrections:     best.CachedResult.Corrections,
		}), nil
	}

	msg := fmt.Sprintf("no usable fields after %d attempts", len(attempts))
	if lastErr != "" {
		msg += ": last error: " + lastErr
	}
	return finish(&model.RobustExtractionResult{
		Outcome:     model.OutcomeFailure,
		Data:        model.FieldMap{},
		TotalFields: o.cfg.TotalFields,
		FinalMethod: model.MethodNone,
		Error:       msg,
	}), nil
}

type runOutcome struct {
	res *model.PageResult
	err error
}

// attempt runs one strategy call under the per-attempt timeout. The returned
// error is non-nil only for document-level failures and parent cancellation;
// every other failure is recorded on the attempt.
func (o *Orchestrator) attempt(ctx context.Context, s Strategy, n int, docPath string) (model.ExtractionAttempt, error) {
	a := model.ExtractionAttempt{
		AttemptNumber: n,
		Method:        s.Method,
		StartedAt:     o.now(),
	}

	actx, cancel := context.WithTimeout(ctx, o.cfg.AttemptTimeout)
	defer cancel()

	done := make(chan runOutcome, 1)
	go func() {
		res, err := s.Run(actx, docPath)
		done <- runOutcome{res: res, err: err}
	}()

	var out runOutcome
	select {
	case out = <-done:
	case <-actx.Done():
		// The call is cancelled through actx; a backend that ignores the
		// context keeps running until it returns into the buffered channel.
	}
	a.Duration = o.now().Sub(a.StartedAt)

	if ctx.Err() != nil {
		a.Error = ctx.Err().Error()
		return a, ctx.Err()
	}
	if errors.Is(actx.Err(), context.DeadlineExceeded) && (out.res == nil || out.err != nil) {
		a.TimedOut = true
		a.Error = fmt.Sprintf("attempt timed out after %s", o.cfg.AttemptTimeout)
		return a, nil
	}

	if out.res != nil {
		a.CostUSD = o.costs.Usage(out.res.Model, out.res.Usage)
	}

	switch {
	case out.err != nil:
		a.Error = out.err.Error()
		if extract.IsDocumentError(out.err) {
			return a, out.err
		}
	case out.res == nil:
		a.Error = "strategy returned no result"
	default:
		a.FieldsExtracted = model.CountFields(out.res.Data)
		if !out.res.Success && a.FieldsExtracted == 0 {
			a.Error = "no pages extracted"
			break
		}
		a.CachedResult = out.res
		a.Success = out.res.Success
		if !a.Success {
			a.Error = "extraction reported failure"
		}
	}
	return a, nil
}
