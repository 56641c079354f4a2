package intake

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/netsheet-cli/internal/config"
	"github.com/sells-group/netsheet-cli/internal/model"
	"github.com/sells-group/netsheet-cli/internal/pipeline"
)

// Processor runs one document through the pipeline.
type Processor interface {
	Process(ctx context.Context, doc model.Document) (*pipeline.Report, error)
}

// CycleSummary counts what one poll cycle did with the messages it listed.
type CycleSummary struct {
	Listed    int
	Processed int
	Failed    int
	Skipped   int
}

// Poller drains a MailSource on an interval. Messages are handled
// concurrently up to the configured limit; a message that fails stays
// unread and is retried on the next cycle. Attachments that already
// finished are remembered per message and not run again on the retry.
type Poller struct {
	src         MailSource
	proc        Processor
	health      *HealthState
	interval    time.Duration
	concurrency int

	mu   sync.Mutex
	done map[string]map[string]*pipeline.Report // message ID -> attachment name
}

// NewPoller creates a Poller. health may be shared with the HTTP health
// endpoint.
func NewPoller(src MailSource, proc Processor, health *HealthState, cfg config.IntakeConfig) *Poller {
	interval := time.Duration(cfg.PollIntervalSecs) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	concurrency := cfg.MaxConcurrent
	if concurrency <= 0 {
		concurrency = 1
	}
	if health == nil {
		health = NewHealthState(cfg.MaxConsecutiveErrors)
	}
	return &Poller{
		src:         src,
		proc:        proc,
		health:      health,
		interval:    interval,
		concurrency: concurrency,
		done:        make(map[string]map[string]*pipeline.Report),
	}
}

// Health returns the poller's health state.
func (p *Poller) Health() *HealthState { return p.health }

// Run polls immediately and then on every tick until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "intake.poller"))
	log.Info("starting inbox poller",
		zap.Duration("interval", p.interval),
		zap.Int("concurrency", p.concurrency),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		sum, err := p.PollOnce(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			log.Error("intake: poll cycle failed", zap.Error(err))
		case sum.Listed > 0:
			log.Info("intake: poll cycle complete",
				zap.Int("listed", sum.Listed),
				zap.Int("processed", sum.Processed),
				zap.Int("failed", sum.Failed),
				zap.Int("skipped", sum.Skipped),
			)
		}
		if p.health.Degraded() {
			snap := p.health.Snapshot()
			log.Warn("intake: poller degraded",
				zap.Int("consecutive_errors", snap.ConsecutiveErrors),
				zap.String("last_error", snap.LastError),
			)
		}

		select {
		case <-ctx.Done():
			log.Info("inbox poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// PollOnce lists unread messages and processes them. Only a listing failure
// is returned; per-message failures are counted in the summary and in the
// health state.
func (p *Poller) PollOnce(ctx context.Context) (CycleSummary, error) {
	refs, err := p.src.ListUnread(ctx)
	if err != nil {
		p.health.RecordFailure(err)
		return CycleSummary{}, err
	}

	var processed, failed, skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, ref := range refs {
		g.Go(func() error {
			switch p.handle(gctx, ref) {
			case handled:
				processed.Add(1)
			case skippedMsg:
				skipped.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return CycleSummary{
		Listed:    len(refs),
		Processed: int(processed.Load()),
		Failed:    int(failed.Load()),
		Skipped:   int(skipped.Load()),
	}, nil
}

type handleResult int

const (
	handled handleResult = iota
	skippedMsg
	failedMsg
)

func (p *Poller) handle(ctx context.Context, ref MessageRef) handleResult {
	log := zap.L().With(zap.String("message", ref.ID))

	msg, err := p.src.Fetch(ctx, ref)
	if err != nil {
		log.Error("intake: fetch failed", zap.Error(err))
		p.health.RecordFailure(err)
		return failedMsg
	}

	var pdfs []Attachment
	for _, a := range msg.Attachments {
		if strings.EqualFold(filepath.Ext(a.Name), ".pdf") {
			pdfs = append(pdfs, a)
		}
	}
	if len(pdfs) == 0 {
		log.Info("intake: message has no PDF attachments")
		if err := p.src.MarkSeen(ctx, ref); err != nil {
			log.Warn("intake: mark seen failed", zap.Error(err))
		}
		return skippedMsg
	}

	reports := make([]*pipeline.Report, 0, len(pdfs))
	for _, a := range pdfs {
		if rep, ok := p.finished(ref.ID, a.Name); ok {
			log.Debug("intake: attachment already processed", zap.String("attachment", a.Name))
			reports = append(reports, rep)
			continue
		}
		rep, err := p.proc.Process(ctx, model.Document{
			Path:       a.Path,
			Source:     ref.ID,
			Sender:     msg.Sender,
			Subject:    msg.Subject,
			ReceivedAt: msg.ReceivedAt,
		})
		if err != nil {
			log.Error("intake: processing failed, message left unread",
				zap.String("attachment", a.Name), zap.Error(err))
			p.health.RecordFailure(err)
			return failedMsg
		}
		p.remember(ref.ID, a.Name, rep)
		reports = append(reports, rep)
	}

	if n, ok := p.src.(Notifier); ok {
		if err := n.Notify(ctx, msg, reports); err != nil {
			log.Warn("intake: notify failed", zap.Error(err))
		}
	}
	if err := p.src.MarkSeen(ctx, ref); err != nil {
		log.Error("intake: mark seen failed", zap.Error(err))
		p.health.RecordFailure(err)
		return failedMsg
	}

	p.forget(ref.ID)
	p.health.RecordSuccess()
	return handled
}

func (p *Poller) finished(msgID, name string) (*pipeline.Report, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rep, ok := p.done[msgID][name]
	return rep, ok
}

func (p *Poller) remember(msgID, name string, rep *pipeline.Report) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done[msgID] == nil {
		p.done[msgID] = make(map[string]*pipeline.Report)
	}
	p.done[msgID][name] = rep
}

func (p *Poller) forget(msgID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.done, msgID)
}
