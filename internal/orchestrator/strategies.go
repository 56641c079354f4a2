package orchestrator

import (
	"context"
	"time"

	"github.com/sells-group/netsheet-cli/internal/config"
	"github.com/sells-group/netsheet-cli/internal/extract"
	"github.com/sells-group/netsheet-cli/internal/model"
)

// PageExtractor runs one page-extraction pass over a document.
type PageExtractor interface {
	Extract(ctx context.Context, docPath string, bindings []extract.PageBinding) (*model.PageResult, error)
}

// Standard builds the primary → secondary → minimal escalation. A nil
// secondary drops that strategy. The minimal strategy runs the critical
// fields only and uses the secondary extractor when there is one, so a
// primary-provider outage does not also sink the last resort.
func Standard(cfg config.ExtractionConfig, bindings extract.BindingSet, primary, secondary PageExtractor) []Strategy {
	delay := time.Duration(cfg.RetryDelayMs) * time.Millisecond
	minimalDelay := time.Duration(cfg.MinimalRetryDelayMs) * time.Millisecond

	strategies := []Strategy{{
		Method:      model.MethodPrimary,
		MaxAttempts: cfg.PrimaryAttempts,
		Delay:       delay,
		Run:         runWith(primary, bindings.Standard),
	}}

	minimal := primary
	if secondary != nil {
		strategies = append(strategies, Strategy{
			Method:      model.MethodSecondary,
			MaxAttempts: cfg.SecondaryAttempts,
			Delay:       delay,
			Run:         runWith(secondary, bindings.Standard),
		})
		minimal = secondary
	}

	return append(strategies, Strategy{
		Method:      model.MethodMinimal,
		MaxAttempts: cfg.MinimalAttempts,
		Delay:       minimalDelay,
		Run:         runWith(minimal, bindings.Minimal),
	})
}

func runWith(pe PageExtractor, bindings []extract.PageBinding) RunFunc {
	return func(ctx context.Context, docPath string) (*model.PageResult, error) {
		return pe.Extract(ctx, docPath, bindings)
	}
}
