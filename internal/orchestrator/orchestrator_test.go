package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/netsheet-cli/internal/config"
	"github.com/sells-group/netsheet-cli/internal/extract"
	"github.com/sells-group/netsheet-cli/internal/model"
)

func testConfig() Config {
	return Config{MinSuccessFields: 15, MaxTotalAttempts: 10, AttemptTimeout: time.Second, TotalFields: 30}
}

func strategies(primary, secondary, minimal *script) []Strategy {
	return []Strategy{
		{Method: model.MethodPrimary, MaxAttempts: 3, Delay: 2 * time.Second, Run: primary.run},
		{Method: model.MethodSecondary, MaxAttempts: 2, Delay: 2 * time.Second, Run: secondary.run},
		{Method: model.MethodMinimal, MaxAttempts: 2, Delay: time.Second, Run: minimal.run},
	}
}

func newTest(cfg Config, s []Strategy, opts ...Option) (*Orchestrator, *sleeps) {
	sl := &sleeps{}
	return New(cfg, s, append([]Option{WithSleep(sl.sleep)}, opts...)...), sl
}

func TestRun_FirstAttemptSucceeds(t *testing.T) {
	t.Parallel()

	primary := &script{steps: []step{ok(18)}}
	secondary := &script{steps: []step{ok(30)}}
	minimal := &script{steps: []step{ok(6)}}
	o, sl := newTest(testConfig(), strategies(primary, secondary, minimal))

	res, err := o.Run(context.Background(), "contract.pdf")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeFullSuccess, res.Outcome)
	assert.Equal(t, model.MethodPrimary, res.FinalMethod)
	assert.Equal(t, 18, res.FieldsExtracted)
	assert.Equal(t, 30, res.TotalFields)
	require.Len(t, res.Attempts, 1)
	assert.True(t, res.Attempts[0].Success)
	assert.Empty(t, res.Attempts[0].Error)
	assert.Equal(t, 1, primary.calls)
	assert.Zero(t, secondary.calls)
	assert.Zero(t, minimal.calls)
	assert.Empty(t, sl.d)
}

func TestRun_AllAttemptsEmpty(t *testing.T) {
	t.Parallel()

	empty := step{res: &model.PageResult{Data: model.FieldMap{}, PagesAttempted: 8, PagesFailed: 8}}
	o, sl := newTest(testConfig(), strategies(
		&script{steps: []step{empty}},
		&script{steps: []step{empty}},
		&script{steps: []step{empty}},
	))

	res, err := o.Run(context.Background(), "contract.pdf")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeFailure, res.Outcome)
	assert.Equal(t, model.MethodNone, res.FinalMethod)
	assert.Empty(t, res.Data)
	assert.Zero(t, res.FieldsExtracted)
	assert.Len(t, res.Attempts, 7)
	assert.Contains(t, res.Error, "no usable fields after 7 attempts")
	for _, a := range res.Attempts {
		assert.False(t, a.Success)
		assert.NotEmpty(t, a.Error)
	}
	// No delay before the first attempt of each strategy.
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second, time.Second}, sl.d)
}

func TestRun_CeilingRespected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		ceiling int
		want    int
	}{
		{"below strategy sum", 4, 4},
		{"default ceiling", 10, 10},
		{"single attempt", 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			cfg.MaxTotalAttempts = tt.ceiling
			s := &script{steps: []step{ok(3)}}
			o, _ := newTest(cfg, []Strategy{
				{Method: model.MethodPrimary, MaxAttempts: 6, Run: s.run},
				{Method: model.MethodSecondary, MaxAttempts: 6, Run: s.run},
				{Method: model.MethodMinimal, MaxAttempts: 6, Run: s.run},
			})

			res, err := o.Run(context.Background(), "doc.pdf")
			require.NoError(t, err)
			assert.Len(t, res.Attempts, tt.want)
			assert.Equal(t, tt.want, s.calls)
			assert.Equal(t, model.OutcomePartialSuccess, res.Outcome)
		})
	}
}

func TestRun_SuccessStopsLaterStrategies(t *testing.T) {
	t.Parallel()

	primary := &script{steps: []step{fail("backend timeout"), ok(4), ok(9)}}
	secondary := &script{steps: []step{ok(12), ok(20)}}
	minimal := &script{steps: []step{ok(6)}}
	o, _ := newTest(testConfig(), strategies(primary, secondary, minimal))

	res, err := o.Run(context.Background(), "doc.pdf")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeFullSuccess, res.Outcome)
	assert.Equal(t, model.MethodSecondary, res.FinalMethod)
	assert.Equal(t, 20, res.FieldsExtracted)
	assert.Len(t, res.Attempts, 5)
	assert.Zero(t, minimal.calls)
	assert.Equal(t, res.Attempts[len(res.Attempts)-1].CachedResult.Data, res.Data)
}

func TestRun_BestPartialAcrossStrategies(t *testing.T) {
	t.Parallel()

	// Partial data with success=false still competes for best-so-far.
	partial := fields(11)
	partial.Success = false

	primary := &script{steps: []step{ok(3), ok(7), ok(5)}}
	secondary := &script{steps: []step{{res: partial}, fail("overloaded")}}
	minimal := &script{steps: []step{ok(6), ok(6)}}
	o, _ := newTest(testConfig(), strategies(primary, secondary, minimal))

	res, err := o.Run(context.Background(), "doc.pdf")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomePartialSuccess, res.Outcome)
	assert.Equal(t, model.MethodBestPartial, res.FinalMethod)
	assert.Equal(t, 11, res.FieldsExtracted)
	assert.Equal(t, partial.Data, res.Data)
	assert.Empty(t, res.Error)

	for _, a := range res.Attempts {
		assert.LessOrEqual(t, a.FieldsExtracted, res.FieldsExtracted)
	}
	assert.False(t, res.Attempts[3].Success)
	assert.Equal(t, "extraction reported failure", res.Attempts[3].Error)
	assert.NotNil(t, res.Attempts[3].CachedResult)
}

func TestRun_BestFromMinimalIsLabelled(t *testing.T) {
	t.Parallel()

	primary := &script{steps: []step{fail("529 overloaded")}}
	secondary := &script{steps: []step{ok(2)}}
	minimal := &script{steps: []step{ok(5), ok(4)}}
	o, _ := newTest(testConfig(), strategies(primary, secondary, minimal))

	res, err := o.Run(context.Background(), "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomePartialSuccess, res.Outcome)
	assert.Equal(t, model.MethodMinimalPartial, res.FinalMethod)
	assert.Equal(t, 5, res.FieldsExtracted)
}

func TestRun_TiesKeepEarlierAttempt(t *testing.T) {
	t.Parallel()

	first := fields(6)
	second := fields(6)
	second.Data["field_01"] = "later"
	o, _ := newTest(testConfig(), []Strategy{
		{Method: model.MethodPrimary, MaxAttempts: 1, Run: (&script{steps: []step{{res: first}}}).run},
		{Method: model.MethodMinimal, MaxAttempts: 1, Run: (&script{steps: []step{{res: second}}}).run},
	})

	res, err := o.Run(context.Background(), "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "value 1", res.Data["field_01"])
	assert.Equal(t, model.MethodBestPartial, res.FinalMethod)
}

func TestRun_StrategyOrder(t *testing.T) {
	t.Parallel()

	o, _ := newTest(testConfig(), strategies(
		&script{steps: []step{ok(1)}},
		&script{steps: []step{ok(2)}},
		&script{steps: []step{ok(3)}},
	))
	res, err := o.Run(context.Background(), "doc.pdf")
	require.NoError(t, err)

	rank := map[model.Method]int{model.MethodPrimary: 0, model.MethodSecondary: 1, model.MethodMinimal: 2}
	for i, a := range res.Attempts {
		assert.Equal(t, i+1, a.AttemptNumber)
		if i > 0 {
			assert.LessOrEqual(t, rank[res.Attempts[i-1].Method], rank[a.Method])
		}
	}
}

func TestRun_AttemptTimeout(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.AttemptTimeout = 20 * time.Millisecond

	var sawCancel atomic.Bool
	hang := func(ctx context.Context, _ string) (*model.PageResult, error) {
		<-ctx.Done()
		sawCancel.Store(true)
		return nil, ctx.Err()
	}
	minimal := &script{steps: []step{ok(5)}}
	o, _ := newTest(cfg, []Strategy{
		{Method: model.MethodPrimary, MaxAttempts: 1, Run: hang},
		{Method: model.MethodMinimal, MaxAttempts: 1, Run: minimal.run},
	})

	res, err := o.Run(context.Background(), "doc.pdf")
	require.NoError(t, err)
	require.Len(t, res.Attempts, 2)
	assert.True(t, res.Attempts[0].TimedOut)
	assert.False(t, res.Attempts[0].Success)
	assert.Contains(t, res.Attempts[0].Error, "timed out")
	assert.Equal(t, model.MethodMinimalPartial, res.FinalMethod)
	assert.Eventually(t, func() bool { return sawCancel.Load() }, time.Second, 5*time.Millisecond)
}

func TestRun_DocumentErrorStopsImmediately(t *testing.T) {
	t.Parallel()

	docErr := &extract.DocumentError{Path: "bad.pdf", Err: errors.New("document has zero pages")}
	primary := &script{steps: []step{{err: docErr}}}
	secondary := &script{steps: []step{ok(20)}}

	var observed []model.ExtractionAttempt
	o, _ := newTest(testConfig(), strategies(primary, secondary, &script{steps: []step{ok(1)}}),
		WithObserver(func(_ context.Context, a model.ExtractionAttempt) { observed = append(observed, a) }))

	res, err := o.Run(context.Background(), "bad.pdf")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, extract.IsDocumentError(err))
	assert.Equal(t, 1, primary.calls)
	assert.Zero(t, secondary.calls)
	require.Len(t, observed, 1)
	assert.Contains(t, observed[0].Error, "zero pages")
}

func TestRun_ParentCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	primary := &script{steps: []step{ok(2)}}
	o := New(testConfig(), strategies(primary, &script{steps: []step{ok(2)}}, &script{steps: []step{ok(2)}}),
		WithSleep(func(context.Context, time.Duration) error {
			cancel()
			return context.Canceled
		}))

	_, err := o.Run(ctx, "doc.pdf")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, primary.calls)
}

func TestRun_ObserverAndCost(t *testing.T) {
	t.Parallel()

	var observed []int
	o, _ := newTest(testConfig(), strategies(
		&script{steps: []step{ok(2), ok(16)}},
		&script{steps: []step{ok(1)}},
		&script{steps: []step{ok(1)}},
	), WithObserver(func(_ context.Context, a model.ExtractionAttempt) { observed = append(observed, a.AttemptNumber) }))

	res, err := o.Run(context.Background(), "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, observed)
	// 1M haiku input tokens at $1/M per attempt.
	assert.InDelta(t, 1.0, res.Attempts[0].CostUSD, 1e-9)
	assert.InDelta(t, 2.0, res.TotalCostUSD(), 1e-9)
}

func TestRun_NilResultIsFailure(t *testing.T) {
	t.Parallel()

	o, _ := newTest(testConfig(), []Strategy{
		{Method: model.MethodPrimary, MaxAttempts: 1, Run: (&script{steps: []step{{}}}).run},
	})
	res, err := o.Run(context.Background(), "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeFailure, res.Outcome)
	assert.Equal(t, "strategy returned no result", res.Attempts[0].Error)
}

func TestConfigFrom(t *testing.T) {
	t.Parallel()

	cfg := ConfigFrom(config.ExtractionConfig{MinSuccessFields: 15, MaxTotalAttempts: 10, AttemptTimeoutSecs: 180})
	assert.Equal(t, 15, cfg.MinSuccessFields)
	assert.Equal(t, 10, cfg.MaxTotalAttempts)
	assert.Equal(t, 180*time.Second, cfg.AttemptTimeout)
	assert.Equal(t, extract.TotalFields, cfg.TotalFields)

	o := New(Config{}, nil)
	assert.Equal(t, 15, o.cfg.MinSuccessFields)
	assert.Equal(t, 10, o.cfg.MaxTotalAttempts)
}

func TestWith_LeavesOriginalUntouched(t *testing.T) {
	t.Parallel()

	var base, perRun int
	o, _ := newTest(testConfig(), []Strategy{
		{Method: model.MethodPrimary, MaxAttempts: 1, Run: (&script{steps: []step{ok(20)}}).run},
	}, WithObserver(func(context.Context, model.ExtractionAttempt) { base++ }))

	scoped := o.With(WithObserver(func(context.Context, model.ExtractionAttempt) { perRun++ }))
	_, err := scoped.Run(context.Background(), "doc.pdf")
	require.NoError(t, err)
	_, err = o.Run(context.Background(), "doc.pdf")
	require.NoError(t, err)

	assert.Equal(t, 1, perRun)
	assert.Equal(t, 1, base)
}
