// Package pipeline runs one contract through extraction, the net sheet
// calculation and artifact distribution, recording the run in the store.
package pipeline

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/netsheet-cli/internal/extract"
	"github.com/sells-group/netsheet-cli/internal/listing"
	"github.com/sells-group/netsheet-cli/internal/model"
	"github.com/sells-group/netsheet-cli/internal/netsheet"
	"github.com/sells-group/netsheet-cli/internal/orchestrator"
	"github.com/sells-group/netsheet-cli/internal/report"
	"github.com/sells-group/netsheet-cli/internal/store"
)

// Report is the outcome of one processed document.
type Report struct {
	RunID       string                        `json:"run_id"`
	Document    string                        `json:"document"`
	Outcome     model.Outcome                 `json:"outcome"`
	FinalMethod model.Method                  `json:"final_method"`
	NeedsReview bool                          `json:"needs_review"`
	Address     string                        `json:"address,omitempty"`
	Extraction  *model.RobustExtractionResult `json:"extraction,omitempty"`
	Listing     *listing.Resolution           `json:"listing,omitempty"`
	NetSheet    *netsheet.Output              `json:"net_sheet,omitempty"`
	Artifacts   report.Artifacts              `json:"artifacts"`
	Links       map[string]string             `json:"links,omitempty"`
	Error       string                        `json:"error,omitempty"`
}

// Processor holds the long-lived collaborators shared by every document.
// It keeps no per-document state.
type Processor struct {
	orch     *orchestrator.Orchestrator
	store    store.Store
	listings listing.Source
	defaults listing.Defaults
	fees     netsheet.Fees
	outDir   string
	renderer report.Renderer
	uploader report.Uploader
	now      func() time.Time
}

// Deps lists the Processor collaborators. Listings, Renderer and Uploader
// are optional.
type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Store        store.Store
	Listings     listing.Source
	Defaults     listing.Defaults
	Fees         netsheet.Fees
	OutputDir    string
	Renderer     report.Renderer
	Uploader     report.Uploader
}

// New creates a Processor.
func New(d Deps) *Processor {
	out := d.OutputDir
	if out == "" {
		out = "out"
	}
	return &Processor{
		orch:     d.Orchestrator,
		store:    d.Store,
		listings: d.Listings,
		defaults: d.Defaults,
		fees:     d.Fees,
		outDir:   out,
		renderer: d.Renderer,
		uploader: d.Uploader,
		now:      time.Now,
	}
}

// Process runs doc end to end. A FAILURE outcome, including an unreadable
// document, is reported with a nil error and no net sheet. Errors are
// reserved for cancellation and for failures writing artifacts or the run
// record.
func (p *Processor) Process(ctx context.Context, doc model.Document) (*Report, error) {
	name := filepath.Base(doc.Path)
	log := zap.L().With(zap.String("document", name), zap.String("source", doc.Source))
	log.Info("pipeline: starting document")

	run, err := p.store.CreateRun(ctx, name)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log = log.With(zap.String("run_id", run.ID))
	rep := &Report{RunID: run.ID, Document: name}

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.String("status", string(status)), zap.Error(statusErr))
		}
	}
	finish := func(status model.RunStatus, result *model.RunResult) {
		// Record the outcome even when ctx was cancelled mid-run.
		fctx := context.WithoutCancel(ctx)
		if finErr := p.store.FinishRun(fctx, run.ID, status, result); finErr != nil {
			log.Warn("pipeline: failed to record run result", zap.Error(finErr))
		}
	}

	// ===== Extraction =====
	setStatus(model.RunStatusExtracting)
	observer := func(octx context.Context, a model.ExtractionAttempt) {
		if recErr := p.store.RecordAttempt(context.WithoutCancel(octx), run.ID, a); recErr != nil {
			log.Warn("pipeline: failed to record attempt", zap.Int("attempt", a.AttemptNumber), zap.Error(recErr))
		}
	}
	res, err := p.orch.With(orchestrator.WithObserver(observer)).Run(ctx, doc.Path)
	if err != nil {
		result := &model.RunResult{Outcome: model.OutcomeFailure, FinalMethod: model.MethodNone, Error: err.Error()}
		finish(model.RunStatusFailed, result)
		if !extract.IsDocumentError(err) {
			return nil, eris.Wrap(err, "pipeline: extraction")
		}
		log.Error("pipeline: document rejected", zap.Error(err))
		rep.Outcome = model.OutcomeFailure
		rep.FinalMethod = model.MethodNone
		rep.NeedsReview = true
		rep.Error = err.Error()
		return rep, nil
	}

	rep.Extraction = res
	rep.Outcome = res.Outcome
	rep.FinalMethod = res.FinalMethod
	rep.NeedsReview = res.NeedsReview()
	result := model.NewRunResult(res)

	if res.Outcome == model.OutcomeFailure {
		log.Warn("pipeline: extraction failed, no net sheet produced", zap.String("error", res.Error))
		rep.Error = res.Error
		finish(model.RunStatusFailed, result)
		return rep, nil
	}

	// ===== Net sheet =====
	setStatus(model.RunStatusCalculating)
	rep.Address = PropertyAddress(res.Data)
	resolution := listing.Resolve(ctx, p.listings, rep.Address, p.defaults)
	rep.Listing = &resolution

	out := netsheet.Calculate(netsheet.InputFromFields(res.Data, resolution.NetSheet(), p.fees))
	rep.NetSheet = &out
	if out.TaxesDefaulted || out.TaxProrationMissing || out.SurveyEstimated {
		rep.NeedsReview = true
		result.NeedsReview = true
	}
	if raw, mErr := json.Marshal(out); mErr == nil {
		result.NetSheet = raw
	}

	// ===== Artifacts =====
	setStatus(model.RunStatusReporting)
	arts, err := report.Generate(ctx, p.outDir, report.Sheet{
		RunID:       run.ID,
		Address:     rep.Address,
		Outcome:     res.Outcome,
		NeedsReview: rep.NeedsReview,
		Output:      out,
		GeneratedAt: p.now().UTC(),
	}, p.renderer)
	if err != nil {
		result.Error = err.Error()
		finish(model.RunStatusFailed, result)
		return nil, eris.Wrap(err, "pipeline: generate artifacts")
	}
	rep.Artifacts = arts

	if p.uploader != nil {
		links, upErr := report.UploadAll(ctx, p.uploader, arts)
		if upErr != nil {
			log.Warn("pipeline: upload incomplete", zap.Int("uploaded", len(links)), zap.Error(upErr))
			rep.Error = upErr.Error()
		}
		rep.Links = links
		result.Links = links
	}

	finish(store.StatusFor(res.Outcome), result)
	log.Info("pipeline: document complete",
		zap.String("outcome", string(rep.Outcome)),
		zap.Bool("needs_review", rep.NeedsReview),
		zap.String("net_to_seller", out.NetToSeller.StringFixed(2)),
		zap.Int("artifacts", len(arts.Paths())),
	)
	return rep, nil
}

// PropertyAddress joins the extracted street, city and ZIP into one line.
func PropertyAddress(fields model.FieldMap) string {
	var parts []string
	for _, key := range []string{"property_address", "property_city"} {
		if s, ok := fields[key].(string); ok && model.IsPopulated(s) {
			parts = append(parts, strings.TrimSpace(s))
		}
	}
	addr := strings.Join(parts, ", ")
	if zip, ok := fields["property_zip"].(string); ok && model.IsPopulated(zip) {
		addr = strings.TrimSpace(addr + " " + strings.TrimSpace(zip))
	}
	return addr
}
