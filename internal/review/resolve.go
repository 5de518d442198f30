package review

import (
	"context"
	"regexp"
	"strconv"

	"github.com/diffreview/pkg/models"
)

var (
	pullRequestPattern = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+)/pull/(\d+)`)
	commitPattern      = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+)/commit/([^/\s?#]+)`)
)

const errInvalidURL = "Invalid GitHub URL. Must be a PR or commit URL"

// resolveTarget classifies the source URL as a PR or commit and extracts
// the owner/repo/target triple. Anything else is a terminal error.
func (p *Pipeline) resolveTarget(_ context.Context, st State) State {
	if m := pullRequestPattern.FindStringSubmatch(st.SourceURL); m != nil {
		st.Owner = m[1]
		st.Repo = m[2]
		st.PRNumber, _ = strconv.Atoi(m[3])
		st.Kind = models.TargetPullRequest
		p.logger.Info().
			Str("owner", st.Owner).
			Str("repo", st.Repo).
			Int("number", st.PRNumber).
			Msg("resolved pull request target")
		return st
	}

	if m := commitPattern.FindStringSubmatch(st.SourceURL); m != nil {
		st.Owner = m[1]
		st.Repo = m[2]
		st.CommitSHA = m[3]
		st.Kind = models.TargetCommit
		p.logger.Info().
			Str("owner", st.Owner).
			Str("repo", st.Repo).
			Str("sha", st.CommitSHA).
			Msg("resolved commit target")
		return st
	}

	p.logger.Warn().Str("url", st.SourceURL).Msg("unrecognized GitHub URL")
	st.Err = errInvalidURL
	return st
}
