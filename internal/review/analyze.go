package review

import (
	"context"
	"fmt"

	"github.com/diffreview/internal/ai"
	"github.com/diffreview/internal/diff"
	"github.com/diffreview/internal/llm"
	"github.com/diffreview/pkg/models"
)

const analysisPrompt = `You are a code analysis expert. Analyze the given diff to extract key information:
1. Identify all changed files and classify each change (added, modified, deleted, renamed)
2. Identify potential risk areas introduced by the change

Return a JSON object with these fields:
"files": array of objects with "filename" and "change_type"
"risk_areas": array of objects with "description" and "severity"`

// chunkInventory is the structured payload one analysis call returns.
type chunkInventory struct {
	Files     []models.FileChange `json:"files"`
	RiskAreas []models.RiskArea   `json:"risk_areas"`
}

// analyzeChanges builds the file inventory and risk list from the whole
// diff, splitting it into chunks when it exceeds the chunking bound. A
// failed or unparseable chunk is dropped; its siblings still contribute.
func (p *Pipeline) analyzeChanges(ctx context.Context, st State) State {
	if st.Err != "" || st.Diff == "" {
		return st
	}

	chunks := diff.Split(st.Diff, p.cfg.MaxChunkSize)
	p.logger.Info().Int("chunks", len(chunks)).Int("diff_bytes", len(st.Diff)).Msg("analyzing changes")

	var files []models.FileChange
	var risks []models.RiskArea

	for i, chunk := range chunks {
		content := chunk
		if len(chunks) > 1 {
			content = fmt.Sprintf("CHUNK %d OF %d:\n\n%s", i+1, len(chunks), chunk)
		}

		raw, err := p.generator.Complete(ctx, ai.CompletionRequest{
			SystemPrompt:   analysisPrompt,
			UserContent:    content,
			Temperature:    0.2,
			StructuredJSON: true,
		})
		if err != nil {
			p.logger.Warn().Err(err).Int("chunk", i+1).Msg("chunk analysis failed, skipping chunk")
			continue
		}

		var inv chunkInventory
		if err := llm.DecodeStructured(raw, &inv); err != nil {
			p.logger.Warn().Err(err).Int("chunk", i+1).Msg("unparseable chunk analysis, skipping chunk")
			continue
		}

		files = append(files, inv.Files...)
		risks = append(risks, inv.RiskAreas...)
	}

	st.FileChanges = dedupeFiles(files)
	st.RiskAreas = dedupeRisks(risks)

	p.logger.Info().
		Int("files", len(st.FileChanges)).
		Int("risk_areas", len(st.RiskAreas)).
		Msg("change analysis complete")
	return st
}

// dedupeFiles keeps the first occurrence per filename. Chunks are cut at
// file boundaries, so a duplicate means the model re-reported a file; the
// first report wins.
func dedupeFiles(files []models.FileChange) []models.FileChange {
	seen := make(map[string]bool, len(files))
	out := make([]models.FileChange, 0, len(files))
	for _, f := range files {
		if f.Filename == "" || seen[f.Filename] {
			continue
		}
		seen[f.Filename] = true
		out = append(out, f)
	}
	return out
}

func dedupeRisks(risks []models.RiskArea) []models.RiskArea {
	seen := make(map[string]bool, len(risks))
	out := make([]models.RiskArea, 0, len(risks))
	for _, r := range risks {
		if r.Description == "" || seen[r.Description] {
			continue
		}
		seen[r.Description] = true
		out = append(out, r)
	}
	return out
}
