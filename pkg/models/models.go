package models

// TargetKind identifies what kind of code-change artifact a review targets.
type TargetKind string

const (
	// TargetPullRequest is a GitHub pull request.
	TargetPullRequest TargetKind = "PR"
	// TargetCommit is a single commit.
	TargetCommit TargetKind = "commit"
)

// FileChange describes one changed file extracted from a diff.
// DetailedIssues and SuggestedImprovements are filled in only when the
// per-file analysis stage runs for the file.
type FileChange struct {
	Filename              string   `json:"filename"`
	ChangeType            string   `json:"change_type,omitempty"`
	Summary               string   `json:"summary,omitempty"`
	DetailedIssues        []string `json:"detailed_issues,omitempty"`
	SuggestedImprovements []string `json:"suggested_improvements,omitempty"`
}

// RiskArea is a concern the change analysis flagged across the whole diff.
// Description doubles as the deduplication key.
type RiskArea struct {
	Description string `json:"description"`
	Severity    string `json:"severity,omitempty"`
	Context     string `json:"context,omitempty"`
}

// FetchResult is what the content fetcher returns for a PR or commit:
// the raw unified diff plus the provider's metadata object passed
// through opaquely.
type FetchResult struct {
	Metadata map[string]interface{} `json:"metadata"`
	Diff     string                 `json:"diff"`
}

// ReportMetadata carries the counts surfaced alongside a finished review.
type ReportMetadata struct {
	FilesChanged int    `json:"files_changed"`
	IssuesFound  int    `json:"issues_found"`
	URL          string `json:"url"`
}

// Report is the user-visible outcome of a review run. Exactly one of two
// shapes occurs: a full review (Error empty, Review populated, optional
// Summary), or an error-flavored result where Review holds the literal
// error explanation and Error is set.
type Report struct {
	Review          string         `json:"review"`
	ReviewType      string         `json:"review_type"`
	Recommendations []string       `json:"recommendations"`
	Summary         string         `json:"summary,omitempty"`
	Metadata        ReportMetadata `json:"metadata"`
	Error           string         `json:"error,omitempty"`
	Traceback       string         `json:"traceback,omitempty"`
}
