// Package scanner coordinates the per-file analysis pipeline across a
// file set and assembles the final report. Stage failures stay local to
// their file; only total collapse of every collaborator aborts a run.
package scanner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/user/complyscan/pkg/analysis"
	"github.com/user/complyscan/pkg/budget"
	"github.com/user/complyscan/pkg/cache"
	"github.com/user/complyscan/pkg/engine"
	"github.com/user/complyscan/pkg/knowledge"
	"github.com/user/complyscan/pkg/remedy"
	"github.com/user/complyscan/pkg/vulnfeed"
)

// abortThreshold is how many consecutive infrastructure-dead files (cache
// backend erroring and analysis transport failing, or the file unreadable
// outright) stop the run early with an inconclusive report. Budget denials
// and permanent backend rejections never count: those files still carry a
// completed correlation pass.
const abortThreshold = 3

// Orchestrator wires the pipeline components together for one run. The
// governor and caches are owned by the caller so multiple independent runs
// can coexist in one process.
type Orchestrator struct {
	Cache      *cache.ContentCache
	Retriever  *knowledge.Retriever
	Correlator *vulnfeed.Correlator
	Invoker    *analysis.Invoker // nil disables AI analysis
	Remedy     *remedy.Engine    // nil disables remediation
	Governor   *budget.Governor
	Workers    int
	AutoFix    bool
	Log        *zap.SugaredLogger
}

type fileResult struct {
	findings  []engine.Finding
	errors    []engine.FileError
	skipped   bool // budget exhausted before analysis
	fixed     bool
	usable    bool // at least one stage ran to completion on this file
	cacheHit  bool
	infraFail bool // cache backend and analysis transport both unreachable
}

// Run executes the scan over the given file paths and fills the report.
// Cancellation stops new files from starting; files already in flight
// finish their current external call so billed work still lands in the
// cache.
func (o *Orchestrator) Run(ctx context.Context, paths []string, report *engine.Report) {
	log := o.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	workers := o.Workers
	if workers <= 0 {
		workers = 4
	}

	runCtx, abort := context.WithCancel(ctx)
	defer abort()

	var (
		mu          sync.Mutex
		allFindings []engine.Finding
		hardFails   atomic.Int32
		usableFiles atomic.Int32
		cacheHits   atomic.Int32
		processed   atomic.Int32
		aborted     atomic.Bool
	)

	var g errgroup.Group
	g.SetLimit(workers)

	launched := 0
	for _, path := range paths {
		if runCtx.Err() != nil {
			break
		}
		launched++
		path := path
		g.Go(func() error {
			res := o.scanFile(runCtx, path)
			processed.Add(1)
			if res.usable {
				usableFiles.Add(1)
			}
			if res.cacheHit {
				cacheHits.Add(1)
			}
			if res.infraFail || (!res.usable && len(res.errors) > 0) {
				if hardFails.Add(1) >= abortThreshold && cacheHits.Load() == 0 {
					log.Errorw("cache and analysis backends unreachable, aborting run")
					aborted.Store(true)
					abort()
				}
			} else {
				hardFails.Store(0)
			}

			mu.Lock()
			defer mu.Unlock()
			allFindings = append(allFindings, res.findings...)
			report.Errors = append(report.Errors, res.errors...)
			if res.skipped {
				report.FilesSkipped = append(report.FilesSkipped, path)
			}
			if res.fixed {
				report.FixedFiles = append(report.FixedFiles, path)
			}
			return nil
		})
	}
	g.Wait()

	report.FilesScanned = int(processed.Load())
	report.Partial = ctx.Err() != nil || launched < len(paths)
	report.Inconclusive = aborted.Load() || (processed.Load() > 0 && usableFiles.Load() == 0)
	report.Aggregate(allFindings)

	calls, cost := o.Governor.Spent()
	report.AICalls = calls
	report.CostUSD = cost
	report.MonthlyEstimate = cost * 30
}

// scanFile runs the per-file pipeline: cache check, retrieval and
// correlation, governor-gated analysis, merge, optional remediation, cache
// store.
func (o *Orchestrator) scanFile(ctx context.Context, path string) fileResult {
	log := o.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	var res fileResult

	target, ok, err := engine.ReadTarget(path)
	if err != nil {
		res.errors = append(res.errors, engine.FileError{File: path, Stage: engine.StageRead, Error: err.Error()})
		return res
	}
	if !ok {
		return res
	}

	// In-flight work finishes its current external call even when the run
	// is cancelled, so billed results are never thrown away uncached.
	callCtx := context.WithoutCancel(ctx)

	cached, hit, cacheErr := o.Cache.Lookup(callCtx, target)
	if hit {
		log.Debugw("cache hit", "path", path)
		res.findings = cached
		res.usable = true
		res.cacheHit = true
		return res
	}
	if cacheErr != nil {
		res.errors = append(res.errors, engine.FileError{
			File: path, Stage: engine.StageCache, Error: cacheErr.Error(),
		})
	}

	ruleFindings, feedErr := o.Correlator.Match(callCtx, target)
	if feedErr != nil {
		res.errors = append(res.errors, engine.FileError{
			File: path, Stage: engine.StageCorrelate, Error: feedErr.Error(),
		})
	}
	// The local rule pass completing makes the file's result trustworthy
	// whether or not it surfaced findings.
	res.usable = true

	if ctx.Err() != nil {
		res.findings = ruleFindings
		return res
	}

	kctx, kerr := o.Retriever.Query(callCtx, excerpt(target), target.Language)
	if kerr != nil {
		res.errors = append(res.errors, engine.FileError{
			File: path, Stage: engine.StageKnowledge, Error: kerr.Error(),
		})
	}

	var aiFindings []engine.Finding
	analysisOK := false
	if o.Invoker != nil {
		aiFindings, err = o.Invoker.Analyze(callCtx, target, kctx, o.Governor)
		switch {
		case err == nil:
			analysisOK = true
		case errors.Is(err, analysis.ErrBudgetExhausted):
			res.skipped = true
			res.errors = append(res.errors, engine.FileError{
				File: path, Stage: engine.StageAnalyze, Error: engine.AnalysisSkipped,
			})
		default:
			log.Warnw("analysis failed", "path", path, "error", err)
			res.errors = append(res.errors, engine.FileError{
				File: path, Stage: engine.StageAnalyze,
				Error: engine.AnalysisFailed + ": " + err.Error(),
			})
			// A transport-level analysis failure on top of a dead cache
			// backend means no external collaborator answered for this
			// file.
			res.infraFail = cacheErr != nil && !analysis.IsPermanent(err)
		}
	}

	res.findings = mergeFindings(aiFindings, ruleFindings, kctx.SourceIDs())

	// Only complete finding sets are cached: a set missing AI analysis
	// would be served as authoritative on the next run.
	if analysisOK {
		o.Cache.Store(callCtx, target, res.findings)
	}

	if o.AutoFix && o.Remedy != nil && ctx.Err() == nil {
		var fixErrs []engine.FileError
		res.fixed, fixErrs = o.remediate(callCtx, target, res.findings)
		res.errors = append(res.errors, fixErrs...)
	}
	return res
}

// remediate proposes fixes for the file's findings, most severe first, and
// applies the first PASSED proposal. One write per file per run: applying
// a second fix over an already rewritten file would validate against stale
// content.
func (o *Orchestrator) remediate(ctx context.Context, target engine.ScanTarget, findings []engine.Finding) (bool, []engine.FileError) {
	log := o.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	for i := range findings {
		f := &findings[i]
		if f.Line <= 0 {
			continue
		}
		proposal, err := o.Remedy.Propose(ctx, *f, target, o.Governor)
		if err != nil {
			if errors.Is(err, analysis.ErrBudgetExhausted) {
				return false, nil
			}
			log.Warnw("fix proposal failed", "path", target.Path, "error", err)
			return false, []engine.FileError{{
				File: target.Path, Stage: engine.StageRemediate, Error: err.Error(),
			}}
		}
		f.Fix = remedy.Result(proposal)
		if proposal.Status != engine.FixPassed {
			continue
		}
		if err := o.Remedy.Apply(proposal, target.Path); err != nil {
			log.Warnw("fix write-back failed", "path", target.Path, "error", err)
			f.Fix = &engine.FixResult{Status: engine.FixRejected, Reason: "write-back failed: " + err.Error()}
			return false, []engine.FileError{{
				File: target.Path, Stage: engine.StageRemediate, Error: "write-back failed: " + err.Error(),
			}}
		}
		log.Infow("applied fix", "path", target.Path, "line", f.Line)
		return true, nil
	}
	return false, nil
}

// excerpt builds the single retrieval query for a file from its leading
// content. One concise query per file bounds retrieval spend.
const excerptBytes = 1024

func excerpt(target engine.ScanTarget) string {
	if len(target.Content) <= excerptBytes {
		return string(target.Content)
	}
	return string(target.Content[:excerptBytes])
}

// mergeFindings folds AI findings and correlator findings into one list,
// collapsing every finding that lands on the same line into a single
// entry: severities take the max, standards union, the first vulnerability
// match and the first non-empty description and remediation win. Both
// sources can emit several findings for one line, so deduplication runs
// within each source as well as across them.
func mergeFindings(ai, rule []engine.Finding, sources []string) []engine.Finding {
	byLine := make(map[int]int, len(ai)+len(rule))
	out := make([]engine.Finding, 0, len(ai)+len(rule))

	add := func(f engine.Finding) {
		idx, ok := byLine[f.Line]
		if !ok {
			f.Sources = sources
			byLine[f.Line] = len(out)
			out = append(out, f)
			return
		}
		merged := out[idx]
		merged.Severity = engine.MaxSeverity(merged.Severity, f.Severity)
		merged.Standards = unionStrings(merged.Standards, f.Standards)
		if merged.CVE == nil {
			merged.CVE = f.CVE
		}
		if merged.Description == "" {
			merged.Description = f.Description
		}
		if merged.Remediation == "" {
			merged.Remediation = f.Remediation
		}
		out[idx] = merged
	}

	for _, f := range ai {
		add(f)
	}
	for _, rf := range rule {
		add(rf)
	}
	return out
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := append([]string(nil), a...)
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
