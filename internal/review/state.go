// Package review implements the diff review pipeline: resolve a GitHub
// PR or commit URL, fetch its diff, analyze the changes in bounded chunks,
// fan out per-file analysis, derive recommendations, and compose the final
// review text. Stages communicate only through the State record; once a
// stage records an error, every later stage except the review composer is
// a pass-through, and the composer renders the error as the review.
package review

import (
	"context"

	"github.com/diffreview/pkg/models"
)

// State is the single record threaded through the pipeline. Each stage
// receives it by value and returns the updated value.
type State struct {
	SourceURL string
	Template  string

	// Target identity, filled by the resolve stage.
	Kind      models.TargetKind
	Owner     string
	Repo      string
	PRNumber  int
	CommitSHA string

	// Fetched content.
	Diff     string
	Metadata map[string]interface{}

	// Accumulated analysis.
	FileChanges     []models.FileChange
	RiskAreas       []models.RiskArea
	Recommendations []string
	Review          string
	Summary         string

	// Err, once non-empty, routes the run straight to the composer.
	Err string
}

// ContentFetcher fetches the metadata and diff for a review target.
type ContentFetcher interface {
	FetchPullRequest(ctx context.Context, owner, repo string, number int) (*models.FetchResult, error)
	FetchCommit(ctx context.Context, owner, repo, sha string) (*models.FetchResult, error)
}

// Config bounds the pipeline's work. Every limit has a working default;
// zero values are replaced by DefaultConfig values in NewPipeline.
type Config struct {
	// MaxChunkSize is the chunking bound, in bytes, for the whole-diff
	// change analysis.
	MaxChunkSize int `koanf:"max_chunk_size" json:"max_chunk_size"`
	// MaxFilesDetailed caps how many files get a dedicated analysis call.
	MaxFilesDetailed int `koanf:"max_files_detailed" json:"max_files_detailed"`
	// MaxConcurrentFileAnalyses bounds the per-file analysis fan-out.
	MaxConcurrentFileAnalyses int `koanf:"max_concurrent_file_analyses" json:"max_concurrent_file_analyses"`
	// DiffTruncationLimit caps the diff bytes included in the compose call.
	DiffTruncationLimit int `koanf:"diff_truncation_limit" json:"diff_truncation_limit"`
	// ReviewTruncationLimit caps the review bytes included in the summary call.
	ReviewTruncationLimit int `koanf:"review_truncation_limit" json:"review_truncation_limit"`

	// Context bounds for the recommendation prompt.
	MaxContextFiles         int `koanf:"max_context_files" json:"max_context_files"`
	MaxIssuesPerFileContext int `koanf:"max_issues_per_file_context" json:"max_issues_per_file_context"`
	MaxContextIssueLines    int `koanf:"max_context_issue_lines" json:"max_context_issue_lines"`
	MaxContextRisks         int `koanf:"max_context_risks" json:"max_context_risks"`

	// Context bounds for the compose prompt.
	MaxReviewFiles               int `koanf:"max_review_files" json:"max_review_files"`
	MaxIssuesPerReviewFile       int `koanf:"max_issues_per_review_file" json:"max_issues_per_review_file"`
	MaxImprovementsPerReviewFile int `koanf:"max_improvements_per_review_file" json:"max_improvements_per_review_file"`

	// Flags that shape the stage graph at construction time.
	IncludeFileDetails bool `koanf:"include_file_details" json:"include_file_details"`
	IncludeSummary     bool `koanf:"include_summary" json:"include_summary"`
}

// DefaultConfig returns the standard pipeline bounds.
func DefaultConfig() Config {
	return Config{
		MaxChunkSize:                 30000,
		MaxFilesDetailed:             10,
		MaxConcurrentFileAnalyses:    5,
		DiffTruncationLimit:          30000,
		ReviewTruncationLimit:        10000,
		MaxContextFiles:              10,
		MaxIssuesPerFileContext:      2,
		MaxContextIssueLines:         10,
		MaxContextRisks:              5,
		MaxReviewFiles:               5,
		MaxIssuesPerReviewFile:       3,
		MaxImprovementsPerReviewFile: 3,
		IncludeFileDetails:           true,
		IncludeSummary:               true,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.MaxChunkSize <= 0 {
		c.MaxChunkSize = def.MaxChunkSize
	}
	if c.MaxFilesDetailed <= 0 {
		c.MaxFilesDetailed = def.MaxFilesDetailed
	}
	if c.MaxConcurrentFileAnalyses <= 0 {
		c.MaxConcurrentFileAnalyses = def.MaxConcurrentFileAnalyses
	}
	if c.DiffTruncationLimit <= 0 {
		c.DiffTruncationLimit = def.DiffTruncationLimit
	}
	if c.ReviewTruncationLimit <= 0 {
		c.ReviewTruncationLimit = def.ReviewTruncationLimit
	}
	if c.MaxContextFiles <= 0 {
		c.MaxContextFiles = def.MaxContextFiles
	}
	if c.MaxIssuesPerFileContext <= 0 {
		c.MaxIssuesPerFileContext = def.MaxIssuesPerFileContext
	}
	if c.MaxContextIssueLines <= 0 {
		c.MaxContextIssueLines = def.MaxContextIssueLines
	}
	if c.MaxContextRisks <= 0 {
		c.MaxContextRisks = def.MaxContextRisks
	}
	if c.MaxReviewFiles <= 0 {
		c.MaxReviewFiles = def.MaxReviewFiles
	}
	if c.MaxIssuesPerReviewFile <= 0 {
		c.MaxIssuesPerReviewFile = def.MaxIssuesPerReviewFile
	}
	if c.MaxImprovementsPerReviewFile <= 0 {
		c.MaxImprovementsPerReviewFile = def.MaxImprovementsPerReviewFile
	}
}
