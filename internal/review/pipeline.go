package review

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/diffreview/internal/ai"
	"github.com/diffreview/internal/logging"
	"github.com/diffreview/pkg/models"
)

// stage names one node in the pipeline graph.
type stage string

const (
	stageResolve   stage = "resolve_target"
	stageFetch     stage = "fetch_content"
	stageAnalyze   stage = "analyze_changes"
	stageFiles     stage = "analyze_files"
	stageRecommend stage = "generate_recommendations"
	stageCompose   stage = "compose_review"
	stageSummarize stage = "summarize_review"
	stageDone      stage = "done"
)

// edge keys the transition table: where the run goes from a stage depends
// only on whether the state carries an error after the stage ran.
type edge struct {
	from   stage
	failed bool
}

// Pipeline runs one review end to end. The stage graph is fixed at
// construction from the config flags; Run never re-evaluates them.
type Pipeline struct {
	cfg       Config
	fetcher   ContentFetcher
	generator ai.Provider
	logger    zerolog.Logger

	stages map[stage]func(context.Context, State) State
	edges  map[edge]stage
}

// NewPipeline builds the stage graph for the given config.
func NewPipeline(cfg Config, fetcher ContentFetcher, generator ai.Provider, logger zerolog.Logger) *Pipeline {
	cfg.applyDefaults()

	p := &Pipeline{
		cfg:       cfg,
		fetcher:   fetcher,
		generator: generator,
		logger:    logging.Component(logger, "pipeline"),
	}

	p.stages = map[stage]func(context.Context, State) State{
		stageResolve:   p.resolveTarget,
		stageFetch:     p.fetchContent,
		stageAnalyze:   p.analyzeChanges,
		stageFiles:     p.analyzeFilesInDetail,
		stageRecommend: p.generateRecommendations,
		stageCompose:   p.composeReview,
		stageSummarize: p.summarizeReview,
	}

	afterAnalyze := stageFiles
	if !cfg.IncludeFileDetails {
		afterAnalyze = stageRecommend
	}
	afterCompose := stageSummarize
	if !cfg.IncludeSummary {
		afterCompose = stageDone
	}

	p.edges = map[edge]stage{
		{stageResolve, false}:   stageFetch,
		{stageResolve, true}:    stageCompose,
		{stageFetch, false}:     stageAnalyze,
		{stageFetch, true}:      stageCompose,
		{stageAnalyze, false}:   afterAnalyze,
		{stageAnalyze, true}:    stageCompose,
		{stageFiles, false}:     stageRecommend,
		{stageFiles, true}:      stageCompose,
		{stageRecommend, false}: stageCompose,
		{stageRecommend, true}:  stageCompose,
		{stageCompose, false}:   afterCompose,
		{stageCompose, true}:    stageDone,
		{stageSummarize, false}: stageDone,
		{stageSummarize, true}:  stageDone,
	}

	return p
}

// Run executes the pipeline for a source URL and always returns a report:
// a full review, an error-flavored review, or, on panic, a terminal error
// report carrying the panic message and stack.
func (p *Pipeline) Run(ctx context.Context, sourceURL, template string) (report *models.Report) {
	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			p.logger.Error().Str("panic", fmt.Sprint(r)).Str("stack", stack).Msg("pipeline panicked")
			report = &models.Report{
				Review:          fmt.Sprintf("Error during review: %v", r),
				ReviewType:      string(models.TargetPullRequest),
				Recommendations: []string{},
				Metadata:        models.ReportMetadata{URL: sourceURL},
				Error:           fmt.Sprint(r),
				Traceback:       stack,
			}
		}
	}()

	st := State{SourceURL: sourceURL, Template: template}

	for cur := stageResolve; cur != stageDone; {
		p.logger.Debug().Str("stage", string(cur)).Msg("entering stage")
		st = p.stages[cur](ctx, st)
		cur = p.edges[edge{cur, st.Err != ""}]
	}

	return p.buildReport(st)
}

// fetchContent retrieves metadata and diff for the resolved target. Fetch
// failures and empty diffs are terminal.
func (p *Pipeline) fetchContent(ctx context.Context, st State) State {
	if st.Err != "" {
		return st
	}

	var result *models.FetchResult
	var err error
	label := string(models.TargetPullRequest)
	if st.Kind == models.TargetCommit {
		label = string(models.TargetCommit)
		result, err = p.fetcher.FetchCommit(ctx, st.Owner, st.Repo, st.CommitSHA)
	} else {
		result, err = p.fetcher.FetchPullRequest(ctx, st.Owner, st.Repo, st.PRNumber)
	}
	if err != nil {
		st.Err = fmt.Sprintf("Failed to fetch %s data: %v", label, err)
		return st
	}

	st.Metadata = result.Metadata
	if result.Diff == "" {
		st.Err = "Diff is empty. Nothing to review."
		return st
	}
	st.Diff = result.Diff

	p.logger.Info().Int("diff_bytes", len(st.Diff)).Msg("content fetched")
	return st
}

// buildReport converts the terminal state into the user-visible report.
func (p *Pipeline) buildReport(st State) *models.Report {
	reviewType := string(models.TargetPullRequest)
	if st.Kind == models.TargetCommit {
		reviewType = string(models.TargetCommit)
	}

	recs := st.Recommendations
	if recs == nil {
		recs = []string{}
	}

	report := &models.Report{
		Review:          st.Review,
		ReviewType:      reviewType,
		Recommendations: recs,
		Summary:         st.Summary,
		Metadata: models.ReportMetadata{
			FilesChanged: len(st.FileChanges),
			IssuesFound:  len(st.RiskAreas),
			URL:          st.SourceURL,
		},
		Error: st.Err,
	}

	p.logger.Info().
		Str("review_type", report.ReviewType).
		Int("files_changed", report.Metadata.FilesChanged).
		Int("issues_found", report.Metadata.IssuesFound).
		Bool("errored", report.Error != "").
		Msg("review run finished")
	return report
}
