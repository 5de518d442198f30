package review

import (
	"context"
	"fmt"

	"github.com/diffreview/internal/ai"
	"github.com/diffreview/internal/batch"
	"github.com/diffreview/internal/diff"
	"github.com/diffreview/internal/llm"
	"github.com/diffreview/pkg/models"
)

const fileAnalysisPrompt = `You are a code analysis expert. Analyze this file diff to identify:
1. Specific code quality issues
2. Potential bugs or edge cases
3. Security considerations
4. Performance implications

Return a JSON object with these fields:
"issues": array of strings
"improvements": array of strings`

// fileFindings is the structured payload one per-file call returns.
type fileFindings struct {
	Issues       []string `json:"issues"`
	Improvements []string `json:"improvements"`
}

// fileTask analyzes one file's diff section on the worker pool.
type fileTask struct {
	change    models.FileChange
	fileDiff  string
	generator ai.Provider
}

func (t *fileTask) ID() string { return t.change.Filename }

func (t *fileTask) Execute(ctx context.Context) (interface{}, error) {
	raw, err := t.generator.Complete(ctx, ai.CompletionRequest{
		SystemPrompt:   fileAnalysisPrompt,
		UserContent:    fmt.Sprintf("File: %s\n\n%s", t.change.Filename, t.fileDiff),
		Temperature:    0.2,
		StructuredJSON: true,
	})
	if err != nil {
		return nil, err
	}

	var findings fileFindings
	if err := llm.DecodeStructured(raw, &findings); err != nil {
		return nil, err
	}

	enriched := t.change
	enriched.DetailedIssues = findings.Issues
	enriched.SuggestedImprovements = findings.Improvements
	return enriched, nil
}

// analyzeFilesInDetail enriches up to MaxFilesDetailed inventory entries
// with per-file findings, fanning out on a bounded worker pool. A failed
// unit keeps its original inventory entry; the set of files never changes.
func (p *Pipeline) analyzeFilesInDetail(ctx context.Context, st State) State {
	if st.Err != "" || st.Diff == "" || len(st.FileChanges) == 0 {
		return st
	}

	sections := diff.SplitByFile(st.Diff)

	limit := p.cfg.MaxFilesDetailed
	if limit > len(st.FileChanges) {
		limit = len(st.FileChanges)
	}

	pool := batch.NewPool(p.cfg.MaxConcurrentFileAnalyses)
	submitted := 0
	for _, change := range st.FileChanges[:limit] {
		section, ok := sections[change.Filename]
		if !ok {
			// Inventory entry without a matching diff section; the model
			// likely reported a path variant. Leave it as-is.
			continue
		}
		pool.Add(&fileTask{change: change, fileDiff: section, generator: p.generator})
		submitted++
	}

	results := pool.ProcessAll(ctx)

	enriched := make(map[string]models.FileChange, len(results))
	for name, result := range results {
		if result.Err != nil {
			p.logger.Warn().Err(result.Err).Str("file", name).Msg("file analysis failed, keeping inventory entry")
			continue
		}
		if change, ok := result.Value.(models.FileChange); ok {
			enriched[name] = change
		}
	}

	out := make([]models.FileChange, 0, len(st.FileChanges))
	for _, change := range st.FileChanges {
		if found, ok := enriched[change.Filename]; ok {
			out = append(out, found)
		} else {
			out = append(out, change)
		}
	}
	st.FileChanges = out

	p.logger.Info().
		Int("submitted", submitted).
		Int("enriched", len(enriched)).
		Int("total", len(out)).
		Msg("detailed file analysis complete")
	return st
}
