package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffreview/internal/ai"
	"github.com/diffreview/pkg/models"
)

// fakeFetcher serves a canned fetch result and counts calls.
type fakeFetcher struct {
	result      *models.FetchResult
	err         error
	prCalls     int
	commitCalls int
}

func (f *fakeFetcher) FetchPullRequest(_ context.Context, _, _ string, _ int) (*models.FetchResult, error) {
	f.prCalls++
	return f.result, f.err
}

func (f *fakeFetcher) FetchCommit(_ context.Context, _, _, _ string) (*models.FetchResult, error) {
	f.commitCalls++
	return f.result, f.err
}

// fakeGenerator dispatches on the system prompt so each stage gets a
// stage-appropriate canned answer, and tracks concurrency.
type fakeGenerator struct {
	mu        sync.Mutex
	calls     int
	active    int
	maxActive int
	delay     time.Duration
	respond   func(req ai.CompletionRequest) (string, error)
}

func (g *fakeGenerator) Name() string { return "fake" }

func (g *fakeGenerator) Complete(_ context.Context, req ai.CompletionRequest) (string, error) {
	g.mu.Lock()
	g.calls++
	g.active++
	if g.active > g.maxActive {
		g.maxActive = g.active
	}
	g.mu.Unlock()

	if g.delay > 0 {
		time.Sleep(g.delay)
	}

	g.mu.Lock()
	g.active--
	g.mu.Unlock()

	return g.respond(req)
}

func isChangeAnalysis(req ai.CompletionRequest) bool {
	return strings.Contains(req.SystemPrompt, "Analyze the given diff")
}

func isFileAnalysis(req ai.CompletionRequest) bool {
	return strings.Contains(req.SystemPrompt, "Analyze this file diff")
}

func isRecommendation(req ai.CompletionRequest) bool {
	return strings.Contains(req.SystemPrompt, "actionable recommendations")
}

func isSummary(req ai.CompletionRequest) bool {
	return strings.Contains(req.SystemPrompt, "technical writer")
}

func happyResponder(req ai.CompletionRequest) (string, error) {
	switch {
	case isChangeAnalysis(req):
		return `{"files":[{"filename":"x.py","change_type":"modified"}],"risk_areas":[{"description":"unvalidated input","severity":"medium"}]}`, nil
	case isFileAnalysis(req):
		return `{"issues":["unchecked error"],"improvements":["add tests"]}`, nil
	case isRecommendation(req):
		return "1. Add error handling\n2. Add tests", nil
	case isSummary(req):
		return "Summary text", nil
	default:
		return "Review body", nil
	}
}

func singleFileDiff() string {
	return "diff --git a/x.py b/x.py\n+print(1)\n"
}

func newTestPipeline(cfg Config, fetcher ContentFetcher, gen *fakeGenerator) *Pipeline {
	return NewPipeline(cfg, fetcher, gen, zerolog.Nop())
}

func TestRunPullRequestEndToEnd(t *testing.T) {
	fetcher := &fakeFetcher{result: &models.FetchResult{
		Metadata: map[string]interface{}{"title": "Add x"},
		Diff:     singleFileDiff(),
	}}
	gen := &fakeGenerator{respond: happyResponder}

	p := newTestPipeline(DefaultConfig(), fetcher, gen)
	report := p.Run(context.Background(), "https://github.com/acme/widgets/pull/42", "")

	require.NotNil(t, report)
	assert.Empty(t, report.Error)
	assert.Equal(t, "Review body", report.Review)
	assert.Equal(t, "PR", report.ReviewType)
	assert.Equal(t, "Summary text", report.Summary)
	assert.Equal(t, []string{"Add error handling", "Add tests"}, report.Recommendations)
	assert.Equal(t, 1, report.Metadata.FilesChanged)
	assert.Equal(t, 1, report.Metadata.IssuesFound)
	assert.Equal(t, "https://github.com/acme/widgets/pull/42", report.Metadata.URL)
	assert.Equal(t, 1, fetcher.prCalls)
	assert.Equal(t, 0, fetcher.commitCalls)
}

func TestRunCommitURL(t *testing.T) {
	fetcher := &fakeFetcher{result: &models.FetchResult{Diff: singleFileDiff()}}
	gen := &fakeGenerator{respond: happyResponder}

	p := newTestPipeline(DefaultConfig(), fetcher, gen)
	report := p.Run(context.Background(), "https://github.com/acme/widgets/commit/abc123", "")

	assert.Empty(t, report.Error)
	assert.Equal(t, "commit", report.ReviewType)
	assert.Equal(t, 1, fetcher.commitCalls)
	assert.Equal(t, 0, fetcher.prCalls)
}

func TestRunInvalidURLShortCircuits(t *testing.T) {
	fetcher := &fakeFetcher{}
	gen := &fakeGenerator{respond: happyResponder}

	p := newTestPipeline(DefaultConfig(), fetcher, gen)
	report := p.Run(context.Background(), "https://github.com/acme/widgets/issues/7", "")

	assert.Equal(t, "Invalid GitHub URL. Must be a PR or commit URL", report.Error)
	assert.Equal(t, "Error during review: Invalid GitHub URL. Must be a PR or commit URL", report.Review)
	assert.Equal(t, "PR", report.ReviewType)
	assert.Empty(t, report.Summary)
	assert.Equal(t, 0, fetcher.prCalls+fetcher.commitCalls, "no fetch on invalid URL")
	assert.Equal(t, 0, gen.calls, "no generation on invalid URL")
}

func TestRunFetchFailureShortCircuits(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("boom")}
	gen := &fakeGenerator{respond: happyResponder}

	p := newTestPipeline(DefaultConfig(), fetcher, gen)
	report := p.Run(context.Background(), "https://github.com/acme/widgets/pull/42", "")

	assert.Equal(t, "Failed to fetch PR data: boom", report.Error)
	assert.Equal(t, "Error during review: Failed to fetch PR data: boom", report.Review)
	assert.Equal(t, 0, gen.calls)
}

func TestRunEmptyDiffIsTerminal(t *testing.T) {
	fetcher := &fakeFetcher{result: &models.FetchResult{Diff: ""}}
	gen := &fakeGenerator{respond: happyResponder}

	p := newTestPipeline(DefaultConfig(), fetcher, gen)
	report := p.Run(context.Background(), "https://github.com/acme/widgets/pull/42", "")

	assert.Equal(t, "Diff is empty. Nothing to review.", report.Error)
	assert.Equal(t, "Error during review: Diff is empty. Nothing to review.", report.Review)
	assert.Equal(t, 0, gen.calls)
}

func TestRunChunkedAnalysisDegradesPerChunk(t *testing.T) {
	// Three file sections, chunk bound forces one section per chunk.
	diffText := ""
	for i := 0; i < 3; i++ {
		diffText += fmt.Sprintf("diff --git a/f%d.go b/f%d.go\n%s", i, i, strings.Repeat("+x\n", 30))
	}
	fetcher := &fakeFetcher{result: &models.FetchResult{Diff: diffText}}

	analysisCalls := 0
	gen := &fakeGenerator{respond: func(req ai.CompletionRequest) (string, error) {
		if isChangeAnalysis(req) {
			analysisCalls++
			assert.Contains(t, req.UserContent, fmt.Sprintf("CHUNK %d OF 3:", analysisCalls))
			if analysisCalls == 2 {
				return "", errors.New("transient upstream failure")
			}
			name := strings.TrimSpace(req.UserContent[strings.Index(req.UserContent, "a/")+2 : strings.Index(req.UserContent, " b/")])
			return fmt.Sprintf(`{"files":[{"filename":"%s","change_type":"modified"}],"risk_areas":[]}`, name), nil
		}
		return happyResponder(req)
	}}

	cfg := DefaultConfig()
	cfg.MaxChunkSize = 120
	cfg.IncludeFileDetails = false
	cfg.IncludeSummary = false

	p := newTestPipeline(cfg, fetcher, gen)
	report := p.Run(context.Background(), "https://github.com/acme/widgets/pull/42", "")

	assert.Empty(t, report.Error)
	assert.Equal(t, 3, analysisCalls)
	assert.Equal(t, 2, report.Metadata.FilesChanged, "failed chunk contributes nothing, siblings survive")
}

func TestRunComposeFailureIsTerminal(t *testing.T) {
	fetcher := &fakeFetcher{result: &models.FetchResult{Diff: singleFileDiff()}}
	gen := &fakeGenerator{respond: func(req ai.CompletionRequest) (string, error) {
		if isChangeAnalysis(req) || isFileAnalysis(req) || isRecommendation(req) || isSummary(req) {
			return happyResponder(req)
		}
		return "", errors.New("model offline")
	}}

	p := newTestPipeline(DefaultConfig(), fetcher, gen)
	report := p.Run(context.Background(), "https://github.com/acme/widgets/pull/42", "")

	require.NotEmpty(t, report.Error)
	assert.Contains(t, report.Error, "Error generating review:")
	assert.Equal(t, report.Error, report.Review)
	assert.Empty(t, report.Summary, "summary skipped after compose failure")
}

func TestRunSummaryFailureDegradesSilently(t *testing.T) {
	fetcher := &fakeFetcher{result: &models.FetchResult{Diff: singleFileDiff()}}
	gen := &fakeGenerator{respond: func(req ai.CompletionRequest) (string, error) {
		if isSummary(req) {
			return "", errors.New("model offline")
		}
		return happyResponder(req)
	}}

	p := newTestPipeline(DefaultConfig(), fetcher, gen)
	report := p.Run(context.Background(), "https://github.com/acme/widgets/pull/42", "")

	assert.Empty(t, report.Error)
	assert.Equal(t, "Review body", report.Review)
	assert.Empty(t, report.Summary)
}

func TestRunRecommendationFailureDegrades(t *testing.T) {
	fetcher := &fakeFetcher{result: &models.FetchResult{Diff: singleFileDiff()}}
	gen := &fakeGenerator{respond: func(req ai.CompletionRequest) (string, error) {
		if isRecommendation(req) {
			return "", errors.New("model offline")
		}
		return happyResponder(req)
	}}

	p := newTestPipeline(DefaultConfig(), fetcher, gen)
	report := p.Run(context.Background(), "https://github.com/acme/widgets/pull/42", "")

	assert.Empty(t, report.Error)
	assert.Equal(t, "Review body", report.Review)
	assert.Equal(t, []string{}, report.Recommendations)
}

func TestRunDisabledStagesNeverCalled(t *testing.T) {
	fetcher := &fakeFetcher{result: &models.FetchResult{Diff: singleFileDiff()}}
	gen := &fakeGenerator{respond: func(req ai.CompletionRequest) (string, error) {
		require.False(t, isFileAnalysis(req), "file analysis disabled")
		require.False(t, isSummary(req), "summary disabled")
		return happyResponder(req)
	}}

	cfg := DefaultConfig()
	cfg.IncludeFileDetails = false
	cfg.IncludeSummary = false

	p := newTestPipeline(cfg, fetcher, gen)
	report := p.Run(context.Background(), "https://github.com/acme/widgets/pull/42", "")

	assert.Empty(t, report.Error)
	assert.Empty(t, report.Summary)
	assert.Equal(t, "Review body", report.Review)
}

func TestRunRecoversFromPanic(t *testing.T) {
	fetcher := &fakeFetcher{result: &models.FetchResult{Diff: singleFileDiff()}}
	gen := &fakeGenerator{respond: func(req ai.CompletionRequest) (string, error) {
		if isChangeAnalysis(req) {
			panic("analysis blew up")
		}
		return happyResponder(req)
	}}

	p := newTestPipeline(DefaultConfig(), fetcher, gen)
	report := p.Run(context.Background(), "https://github.com/acme/widgets/pull/42", "")

	require.NotNil(t, report)
	assert.Equal(t, "analysis blew up", report.Error)
	assert.Equal(t, "Error during review: analysis blew up", report.Review)
	assert.NotEmpty(t, report.Traceback)
	assert.Equal(t, "https://github.com/acme/widgets/pull/42", report.Metadata.URL)
}

func TestRunReportIsJSONSerializable(t *testing.T) {
	fetcher := &fakeFetcher{result: &models.FetchResult{Diff: singleFileDiff()}}
	gen := &fakeGenerator{respond: happyResponder}

	p := newTestPipeline(DefaultConfig(), fetcher, gen)
	report := p.Run(context.Background(), "https://github.com/acme/widgets/pull/42", "")

	payload, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "PR", decoded["review_type"])
	assert.NotContains(t, decoded, "traceback")
}

func TestDedupeFilesFirstWins(t *testing.T) {
	files := []models.FileChange{
		{Filename: "a.go", ChangeType: "modified"},
		{Filename: "b.go", ChangeType: "added"},
		{Filename: "a.go", ChangeType: "deleted"},
		{Filename: ""},
	}

	got := dedupeFiles(files)
	require.Len(t, got, 2)
	assert.Equal(t, "modified", got[0].ChangeType)
	assert.Equal(t, "b.go", got[1].Filename)
}

func TestDedupeRisksByDescription(t *testing.T) {
	risks := []models.RiskArea{
		{Description: "sql injection", Severity: "high"},
		{Description: "sql injection", Severity: "low"},
		{Description: "missing auth"},
		{Description: ""},
	}

	got := dedupeRisks(risks)
	require.Len(t, got, 2)
	assert.Equal(t, "high", got[0].Severity)
}
