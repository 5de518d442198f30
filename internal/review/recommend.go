package review

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/diffreview/internal/ai"
)

const recommendPrompt = `You are an expert code reviewer who provides specific, actionable recommendations.
Focus on code quality, performance, security, and best practices.
Each recommendation should be clear, specific, and actionable.`

var enumerationPrefix = regexp.MustCompile(`^\d+\.\s*`)

// generateRecommendations derives actionable recommendations from a
// bounded slice of the accumulated analysis. On generation failure the
// run continues with no recommendations.
func (p *Pipeline) generateRecommendations(ctx context.Context, st State) State {
	if st.Err != "" {
		return st
	}

	raw, err := p.generator.Complete(ctx, ai.CompletionRequest{
		SystemPrompt: recommendPrompt,
		UserContent:  p.recommendationContext(st),
		Temperature:  0.3,
	})
	if err != nil {
		p.logger.Warn().Err(err).Msg("recommendation generation failed, continuing without recommendations")
		st.Recommendations = nil
		return st
	}

	var recs []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = enumerationPrefix.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)
		if line != "" {
			recs = append(recs, line)
		}
	}
	st.Recommendations = recs

	p.logger.Info().Int("recommendations", len(recs)).Msg("recommendations generated")
	return st
}

// recommendationContext builds the prompt body: a capped file list plus a
// capped combined list of per-file issues and general risk areas. Bounds
// keep the prompt size independent of diff size.
func (p *Pipeline) recommendationContext(st State) string {
	var fileLines []string
	for i, f := range st.FileChanges {
		if i >= p.cfg.MaxContextFiles {
			break
		}
		changeType := f.ChangeType
		if changeType == "" {
			changeType = "modified"
		}
		fileLines = append(fileLines, fmt.Sprintf("- %s: %s", f.Filename, changeType))
	}

	var issueLines []string
	for _, f := range st.FileChanges {
		for i, issue := range f.DetailedIssues {
			if i >= p.cfg.MaxIssuesPerFileContext {
				break
			}
			issueLines = append(issueLines, fmt.Sprintf("- %s: %s", f.Filename, issue))
		}
	}
	for i, r := range st.RiskAreas {
		if i >= p.cfg.MaxContextRisks {
			break
		}
		issueLines = append(issueLines, "- "+r.Description)
	}
	if len(issueLines) > p.cfg.MaxContextIssueLines {
		issueLines = issueLines[:p.cfg.MaxContextIssueLines]
	}

	fileContext := strings.Join(fileLines, "\n")
	if fileContext == "" {
		fileContext = "(no file inventory available)"
	}
	issueContext := strings.Join(issueLines, "\n")
	if issueContext == "" {
		issueContext = "(no specific issues identified)"
	}

	return fmt.Sprintf(
		"Based on these code changes:\n\nFiles changed:\n%s\n\nPotential issues:\n%s\n\nGenerate 3-5 specific, actionable recommendations to improve this code.",
		fileContext, issueContext)
}
