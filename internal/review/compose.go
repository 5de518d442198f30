package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/diffreview/internal/ai"
	"github.com/diffreview/pkg/models"
)

const defaultReviewRubric = `You are a senior software engineer reviewing code changes. Your review should be:
1. Constructive and specific
2. Organized by file when appropriate
3. Include both positive feedback and areas for improvement
4. Mention specific code patterns and best practices
5. Written in markdown format with appropriate headers and code blocks`

const templateRubricPrefix = "You are a senior software engineer reviewing code changes. Use the following template for your review:\n\n"

const summaryPrompt = `You are a technical writer creating a concise executive summary of a code review.
Focus on the most important points and key recommendations.`

// composeReview produces the final review text. It is also the error
// sink: any error recorded upstream is rendered as the review instead of
// calling the model. A generation failure here is itself terminal.
func (p *Pipeline) composeReview(ctx context.Context, st State) State {
	if st.Err != "" {
		st.Review = "Error during review: " + st.Err
		return st
	}

	systemPrompt := defaultReviewRubric
	if st.Template != "" {
		systemPrompt = templateRubricPrefix + st.Template
	}

	diffBody := truncate(st.Diff, p.cfg.DiffTruncationLimit)

	userContent := fmt.Sprintf(
		"Context about the changes:\n%s\nHere is the diff to review:\n%s\n\nPlease provide a comprehensive code review.",
		p.reviewContext(st), diffBody)

	raw, err := p.generator.Complete(ctx, ai.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserContent:  userContent,
		Temperature:  0.4,
	})
	if err != nil {
		msg := fmt.Sprintf("Error generating review: %v", err)
		p.logger.Error().Err(err).Msg("review composition failed")
		st.Err = msg
		st.Review = msg
		return st
	}

	st.Review = raw
	p.logger.Info().Int("review_chars", len(raw)).Msg("review composed")
	return st
}

// reviewContext assembles the analysis digest placed ahead of the diff:
// target kind, change scale, recommendations, and a capped per-file
// findings section.
func (p *Pipeline) reviewContext(st State) string {
	kindLabel := "pull request"
	if st.Kind == models.TargetCommit {
		kindLabel = "commit"
	}

	fileSummary := "Unknown number of files modified"
	if len(st.FileChanges) > 0 {
		fileSummary = fmt.Sprintf("%d files modified", len(st.FileChanges))
	}

	recText := "No specific recommendations."
	if len(st.Recommendations) > 0 {
		var lines []string
		for _, rec := range st.Recommendations {
			lines = append(lines, "- "+rec)
		}
		recText = strings.Join(lines, "\n")
	}

	var fileSections []string
	for i, f := range st.FileChanges {
		if i >= p.cfg.MaxReviewFiles {
			break
		}
		changeType := f.ChangeType
		if changeType == "" {
			changeType = "modified"
		}
		section := fmt.Sprintf("### %s (%s)", f.Filename, changeType)
		for j, issue := range f.DetailedIssues {
			if j >= p.cfg.MaxIssuesPerReviewFile {
				break
			}
			section += "\nIssue: " + issue
		}
		for j, imp := range f.SuggestedImprovements {
			if j >= p.cfg.MaxImprovementsPerReviewFile {
				break
			}
			section += "\nSuggestion: " + imp
		}
		fileSections = append(fileSections, section)
	}
	fileAnalysisText := strings.Join(fileSections, "\n\n")
	if fileAnalysisText == "" {
		fileAnalysisText = "(no detailed file analysis available)"
	}

	return fmt.Sprintf(
		"This is a %s review.\nSummary: %s, %d potential issues identified.\nKey recommendations:\n%s\n\nDetailed file analysis:\n%s\n\n",
		kindLabel, fileSummary, len(st.RiskAreas), recText, fileAnalysisText)
}

// summarizeReview condenses the finished review into an executive
// summary. Skipped when the run errored or produced no review; a
// generation failure degrades silently to no summary.
func (p *Pipeline) summarizeReview(ctx context.Context, st State) State {
	if st.Err != "" || st.Review == "" {
		return st
	}

	userContent := fmt.Sprintf(
		"Here is the full code review:\n\n%s\n\nKey recommendations identified:\n%s\n\nCreate a concise executive summary (3-5 bullet points) highlighting the most important aspects of this review.",
		truncate(st.Review, p.cfg.ReviewTruncationLimit),
		strings.Join(st.Recommendations, ", "))

	raw, err := p.generator.Complete(ctx, ai.CompletionRequest{
		SystemPrompt: summaryPrompt,
		UserContent:  userContent,
		Temperature:  0.3,
	})
	if err != nil {
		p.logger.Warn().Err(err).Msg("summary generation failed, continuing without summary")
		return st
	}

	st.Summary = raw
	return st
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}
