// Package audit cross-validates the per-stage state files against the docs
// tree. The report is advisory; the checker never writes anything.
package audit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"unicode"

	"docpipe/internal/catalog"
	"docpipe/internal/progress"
	"docpipe/internal/textstat"
)

// Finding kinds, ordered roughly by severity.
const (
	FindingCorruptState  = "corrupt_state"
	FindingMissingOutput = "missing_output"
	FindingEmptyOutput   = "empty_output"
	FindingCollision     = "collision"
	FindingStageGap      = "stage_gap"
	FindingSuspect       = "suspect_translation"
)

// Finding is one advisory inconsistency.
type Finding struct {
	Kind   string
	Stage  string
	Key    string
	Detail string
}

// Report is the checker's full output.
type Report struct {
	Findings []Finding
	// DoneByStage counts done records per stage for the summary line.
	DoneByStage map[string]int
}

// Checker reads state files and the docs tree and reports inconsistencies.
type Checker struct {
	docsRoot  string
	script    *unicode.RangeTable
	threshold float64
}

// Config sets the translation-completeness heuristic. The script ratio is
// approximate, so low scores are reported as suspect rather than failed.
type Config struct {
	DocsRoot  string
	Script    *unicode.RangeTable
	Threshold float64
}

// New builds a Checker. Zero heuristic fields default to cyrillic at 0.35.
func New(cfg Config) *Checker {
	if cfg.Script == nil {
		cfg.Script = unicode.Cyrillic
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.35
	}
	return &Checker{docsRoot: cfg.DocsRoot, script: cfg.Script, threshold: cfg.Threshold}
}

// Audit runs every check and returns the combined report. A corrupt state
// file becomes a finding for its stage; the other stages are still checked.
func (c *Checker) Audit() (Report, error) {
	report := Report{DoneByStage: map[string]int{}}

	stores := map[string]*progress.Store{}
	for _, stage := range []string{"fetch", "translate", "render"} {
		store := progress.NewStore(c.docsRoot, stage)
		if err := store.Load(); err != nil {
			if errors.Is(err, progress.ErrCorruptState) {
				report.Findings = append(report.Findings, Finding{
					Kind:   FindingCorruptState,
					Stage:  stage,
					Detail: err.Error(),
				})
				continue
			}
			return Report{}, fmt.Errorf("load %s state: %w", stage, err)
		}
		stores[stage] = store
		report.DoneByStage[stage] = store.CountByStatus()[progress.StatusDone]
	}

	c.checkFetch(stores["fetch"], &report)
	c.checkTranslate(stores["translate"], &report)
	c.checkRender(stores["render"], &report)
	c.checkStageGaps(stores, &report)

	sortFindings(report.Findings)
	return report, nil
}

// checkFetch verifies every done fetch record against its Markdown file and
// detects distinct source pages colliding on one output path.
func (c *Checker) checkFetch(store *progress.Store, report *Report) {
	if store == nil {
		return
	}
	byOutput := map[string][]string{}
	for key, rec := range store.Records() {
		item := catalog.ItemForURL(key)
		byOutput[item.MarkdownRel] = append(byOutput[item.MarkdownRel], key)
		if rec.Status != progress.StatusDone {
			continue
		}
		c.checkOutputFile("fetch", key, item.MarkdownRel, report)
	}
	for output, keys := range byOutput {
		if len(keys) < 2 {
			continue
		}
		sort.Strings(keys)
		report.Findings = append(report.Findings, Finding{
			Kind:   FindingCollision,
			Stage:  "fetch",
			Key:    keys[0],
			Detail: fmt.Sprintf("%d source pages map to %s: %v", len(keys), output, keys),
		})
	}
}

// checkTranslate verifies done translate records and flags files whose
// target-script ratio falls below the threshold as suspect.
func (c *Checker) checkTranslate(store *progress.Store, report *Report) {
	if store == nil {
		return
	}
	for key, rec := range store.Records() {
		if rec.Status != progress.StatusDone {
			continue
		}
		if !c.checkOutputFile("translate", key, key, report) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(c.docsRoot, filepath.FromSlash(key)))
		if err != nil {
			continue
		}
		score := textstat.ScriptRatio(textstat.StripCode(string(raw)), c.script)
		if score < c.threshold {
			report.Findings = append(report.Findings, Finding{
				Kind:   FindingSuspect,
				Stage:  "translate",
				Key:    key,
				Detail: fmt.Sprintf("target-script ratio %.2f below threshold %.2f", score, c.threshold),
			})
		}
	}
}

func (c *Checker) checkRender(store *progress.Store, report *Report) {
	if store == nil {
		return
	}
	for key, rec := range store.Records() {
		if rec.Status != progress.StatusDone {
			continue
		}
		item := catalog.ItemForMarkdown(key)
		c.checkOutputFile("render", key, item.PDFRel(), report)
	}
}

// checkStageGaps reports items done in an earlier stage but not in a later
// one. A stage with no state file has simply not run yet and stays quiet.
func (c *Checker) checkStageGaps(stores map[string]*progress.Store, report *Report) {
	translateStore, renderStore := stores["translate"], stores["render"]
	if fetchStore := stores["fetch"]; fetchStore != nil && translateStore != nil && translateStore.HasState() {
		for key, rec := range fetchStore.Records() {
			if rec.Status != progress.StatusDone {
				continue
			}
			mdRel := catalog.ItemForURL(key).MarkdownRel
			if r, ok := translateStore.Record(mdRel); !ok || r.Status != progress.StatusDone {
				report.Findings = append(report.Findings, Finding{
					Kind:   FindingStageGap,
					Stage:  "translate",
					Key:    mdRel,
					Detail: "fetched but not translated",
				})
			}
		}
	}
	if translateStore != nil && renderStore != nil && renderStore.HasState() {
		for key, rec := range translateStore.Records() {
			if rec.Status != progress.StatusDone {
				continue
			}
			if r, ok := renderStore.Record(key); !ok || r.Status != progress.StatusDone {
				report.Findings = append(report.Findings, Finding{
					Kind:   FindingStageGap,
					Stage:  "render",
					Key:    key,
					Detail: "translated but not rendered",
				})
			}
		}
	}
}

// checkOutputFile appends a finding when the named output is absent or
// empty, and reports whether the file is present and non-empty.
func (c *Checker) checkOutputFile(stage, key, rel string, report *Report) bool {
	info, err := os.Stat(filepath.Join(c.docsRoot, filepath.FromSlash(rel)))
	switch {
	case err != nil:
		report.Findings = append(report.Findings, Finding{
			Kind:   FindingMissingOutput,
			Stage:  stage,
			Key:    key,
			Detail: rel + " does not exist",
		})
		return false
	case info.Size() == 0:
		report.Findings = append(report.Findings, Finding{
			Kind:   FindingEmptyOutput,
			Stage:  stage,
			Key:    key,
			Detail: rel + " is empty",
		})
		return false
	}
	return true
}

func sortFindings(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Stage != findings[j].Stage {
			return findings[i].Stage < findings[j].Stage
		}
		if findings[i].Kind != findings[j].Kind {
			return findings[i].Kind < findings[j].Kind
		}
		return findings[i].Key < findings[j].Key
	})
}
