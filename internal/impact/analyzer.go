// Package impact maps revision diffs onto the symbol index and call graph:
// which symbols a change touches, who transitively calls them, and how risky
// the change looks. Results are cached per revision pair; a model-assisted
// analysis permanently supersedes a heuristic one.
package impact

import (
	"context"
	"encoding/json"
	"fmt"

	"cix/internal/cache"
	"cix/internal/classify"
	"cix/internal/config"
	"cix/internal/gitrev"
	"cix/internal/logging"
	"cix/internal/query"
	"cix/internal/symbols"
)

// MaxDiffSize bounds the diff text handed to the classifier, in bytes
const MaxDiffSize = 50_000

// Analyzer runs diff impact analysis against one repository's index
type Analyzer struct {
	git        *gitrev.Provider
	symbols    *symbols.Store
	engine     *query.Engine
	cache      *cache.AnalysisCache
	classifier classify.Classifier // nil means heuristic-only
	history    []HistoryPattern
	cfg        config.ImpactConfig
	logger     *logging.Logger
}

// NewAnalyzer wires the analyzer. classifier may be nil.
func NewAnalyzer(
	git *gitrev.Provider,
	symbolStore *symbols.Store,
	engine *query.Engine,
	analysisCache *cache.AnalysisCache,
	classifier classify.Classifier,
	history []HistoryPattern,
	cfg config.ImpactConfig,
	logger *logging.Logger,
) *Analyzer {
	return &Analyzer{
		git:        git,
		symbols:    symbolStore,
		engine:     engine,
		cache:      analysisCache,
		classifier: classifier,
		history:    history,
		cfg:        cfg,
		logger:     logger.WithComponent("impact"),
	}
}

// Analyze runs the full analysis between two refs. An unresolvable ref is
// a RefNotFound error and nothing is cached; an empty diff is a valid,
// cacheable zero-impact result.
func (a *Analyzer) Analyze(ctx context.Context, fromRef, toRef string) (*Result, error) {
	from, err := a.git.ResolveRef(ctx, fromRef)
	if err != nil {
		return nil, err
	}
	to, err := a.git.ResolveRef(ctx, toRef)
	if err != nil {
		return nil, err
	}

	// A cached result is sufficient when it is model-assisted, or when no
	// classifier is configured so heuristic is the best we could do anyway.
	wantModel := a.classifier != nil
	if entry, err := a.cache.Get(from, to); err != nil {
		return nil, err
	} else if entry != nil && (entry.Method == cache.MethodModelAssisted || !wantModel) {
		var result Result
		if err := json.Unmarshal(entry.Payload, &result); err != nil {
			return nil, fmt.Errorf("failed to decode cached analysis: %w", err)
		}
		result.Cached = true
		a.logger.Debug("Returning cached analysis", map[string]interface{}{
			"fromRev": from,
			"toRev":   to,
			"method":  entry.Method,
		})
		return &result, nil
	}

	// Diff retrieval failures (including timeouts) surface to the caller
	// and are never cached as negative results.
	diffText, err := a.git.UnifiedDiff(ctx, from, to)
	if err != nil {
		return nil, err
	}
	stats, err := a.git.Numstat(ctx, from, to)
	if err != nil {
		return nil, err
	}

	result, err := a.compute(ctx, from, to, diffText, stats)
	if err != nil {
		return nil, err
	}

	a.store(result)
	return result, nil
}

// AnalyzeStaged analyzes the staged changes against HEAD. There is no
// stable revision pair to key on, so nothing is cached.
func (a *Analyzer) AnalyzeStaged(ctx context.Context) (*Result, error) {
	return a.analyzeUncommitted(ctx, "staged",
		a.git.StagedDiff, a.git.StagedNumstat)
}

// AnalyzeWorking analyzes unstaged working tree changes. Not cached.
func (a *Analyzer) AnalyzeWorking(ctx context.Context) (*Result, error) {
	return a.analyzeUncommitted(ctx, "working",
		a.git.WorkingDiff, a.git.WorkingNumstat)
}

func (a *Analyzer) analyzeUncommitted(
	ctx context.Context,
	label string,
	diffFn func(context.Context) (string, error),
	statsFn func(context.Context) (*gitrev.DiffStats, error),
) (*Result, error) {
	head, err := a.git.Head(ctx)
	if err != nil {
		return nil, err
	}
	diffText, err := diffFn(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := statsFn(ctx)
	if err != nil {
		return nil, err
	}
	return a.compute(ctx, head, label, diffText, stats)
}

// compute is the uncached analysis pipeline: parse the diff, overlap hunks
// with symbol spans, walk callers, classify, assess risk.
func (a *Analyzer) compute(ctx context.Context, from, to, diffText string, stats *gitrev.DiffStats) (*Result, error) {
	result := &Result{
		FromRev:      from,
		ToRev:        to,
		Method:       cache.MethodHeuristic,
		FilesChanged: stats.FilesChanged,
		LinesAdded:   stats.LinesAdded,
		LinesRemoved: stats.LinesRemoved,
		Risk:         Risk{Level: RiskLow},
	}

	parsed, err := ParseDiff(diffText)
	if err != nil {
		return nil, err
	}
	if len(parsed.Files) == 0 {
		result.Summary = "No changes between the specified revisions."
		return result, nil
	}

	touched, err := a.mapTouchedSymbols(parsed)
	if err != nil {
		return nil, err
	}
	result.TouchedSymbols = touched

	impactSet, truncated, err := a.buildImpactSet(touched)
	if err != nil {
		return nil, err
	}
	result.ImpactSet = impactSet
	result.Truncated = truncated

	added := addedLineText(diffText)

	var changes []classify.Change
	var flags []string
	if a.classifier != nil {
		// Any classifier failure (missing, crashed, timed out) silently
		// falls back to the heuristic path.
		if cls, err := a.classifier.ClassifyChange(ctx, truncateDiff(diffText)); err == nil {
			result.Method = cache.MethodModelAssisted
			result.Summary = cls.Summary
			changes = cls.Changes
			flags = cls.RiskFlags
		} else {
			a.logger.Debug("Classifier unavailable, using heuristics", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	if result.Method == cache.MethodHeuristic {
		flags = heuristicFlags(added, touched, len(impactSet), a.history)
		result.Summary = heuristicSummary(stats, touched, impactSet)
	}

	result.Changes = changes
	result.Risk = Risk{
		Level: riskLevel(flags, changes),
		Flags: flags,
		Score: impactScore(impactSet),
	}
	return result, nil
}

// mapTouchedSymbols overlaps each file's changed lines with the symbol
// spans recorded for that file. Added lines are new-side, removed lines
// old-side; a symbol is touched when any changed line falls in its span.
func (a *Analyzer) mapTouchedSymbols(parsed *ParsedDiff) ([]TouchedSymbol, error) {
	var touched []TouchedSymbol

	for _, cf := range parsed.Files {
		path := cf.Path()
		if path == "" {
			continue
		}

		syms, err := a.symbols.SymbolsForFile(path)
		if err != nil {
			return nil, err
		}
		if len(syms) == 0 {
			// Untouched by the index (unsupported or never indexed);
			// contributes to stats only
			continue
		}

		var changedLines []int
		for _, hunk := range cf.Hunks {
			changedLines = append(changedLines, hunk.Added...)
			changedLines = append(changedLines, hunk.Removed...)
		}

		for _, sym := range syms {
			overlap := 0
			for _, line := range changedLines {
				if line >= sym.StartLine && line <= sym.EndLine {
					overlap++
				}
			}
			if overlap == 0 {
				continue
			}
			touched = append(touched, TouchedSymbol{
				ID:           sym.ID,
				Name:         sym.Name,
				Kind:         sym.Kind,
				FilePath:     sym.FilePath,
				SpanLines:    sym.EndLine - sym.StartLine + 1,
				ChangedLines: overlap,
			})
		}
	}
	return touched, nil
}

// buildImpactSet unions reachable callers over all touched callable
// symbols, deduplicated, bounded by the configured impact set cap.
func (a *Analyzer) buildImpactSet(touched []TouchedSymbol) ([]ImpactEntry, bool, error) {
	var impactSet []ImpactEntry
	seen := make(map[string]bool)
	truncated := false

	for _, sym := range touched {
		if sym.Kind != "function" && sym.Kind != "method" {
			continue
		}
		if len(impactSet) >= a.cfg.MaxImpactSet {
			truncated = true
			break
		}

		remaining := a.cfg.MaxImpactSet - len(impactSet)
		res, err := a.engine.ReachableCallers(sym.ID, a.cfg.MaxDepth, remaining, a.cfg.MaxCallersPerLevel)
		if err != nil {
			return nil, false, err
		}
		if res.Truncated {
			truncated = true
		}

		for _, caller := range res.Callers {
			if seen[caller.Symbol.ID] {
				continue
			}
			seen[caller.Symbol.ID] = true
			impactSet = append(impactSet, ImpactEntry{
				Name:     caller.Symbol.Name,
				FilePath: caller.Symbol.FilePath,
				Depth:    caller.Depth,
			})
		}
	}
	return impactSet, truncated, nil
}

// store writes the result to the cache; failures are logged, not fatal,
// since the computed result is already in hand.
func (a *Analyzer) store(result *Result) {
	payload, err := json.Marshal(result)
	if err != nil {
		a.logger.Warn("Failed to encode analysis for caching", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	err = a.cache.Put(&cache.Entry{
		FromRev:      result.FromRev,
		ToRev:        result.ToRev,
		Method:       result.Method,
		RiskLevel:    result.Risk.Level,
		Summary:      result.Summary,
		FilesChanged: result.FilesChanged,
		LinesAdded:   result.LinesAdded,
		LinesRemoved: result.LinesRemoved,
		Payload:      payload,
	})
	if err != nil {
		a.logger.Warn("Failed to cache analysis", map[string]interface{}{
			"fromRev": result.FromRev,
			"toRev":   result.ToRev,
			"error":   err.Error(),
		})
	}
}

// truncateDiff caps the diff text sent to the classifier
func truncateDiff(diffText string) string {
	if len(diffText) <= MaxDiffSize {
		return diffText
	}
	return fmt.Sprintf("%s...\n\n[diff truncated - %d more bytes]",
		diffText[:MaxDiffSize], len(diffText)-MaxDiffSize)
}

func heuristicSummary(stats *gitrev.DiffStats, touched []TouchedSymbol, impactSet []ImpactEntry) string {
	return fmt.Sprintf("%d files changed (+%d/-%d), %d symbols touched, %d callers affected",
		stats.FilesChanged, stats.LinesAdded, stats.LinesRemoved, len(touched), len(impactSet))
}
