package report

import (
	"context"
	"fmt"

	"github.com/google/go-github/v80/github"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/civicdata/lexcache/pkg/log"
)

// managedLabel marks every issue this reporter creates, so they can be
// filtered in the tracker.
const managedLabel = "indexing-failure"

// issuesService is the slice of the GitHub Issues API the reporter needs.
// Narrowed for testability.
type issuesService interface {
	ListByRepo(ctx context.Context, owner, repo string, opts *github.IssueListByRepoOptions) ([]*github.Issue, *github.Response, error)
	Create(ctx context.Context, owner, repo string, issue *github.IssueRequest) (*github.Issue, *github.Response, error)
	CreateComment(ctx context.Context, owner, repo string, number int, comment *github.IssueComment) (*github.IssueComment, *github.Response, error)
	Edit(ctx context.Context, owner, repo string, number int, issue *github.IssueRequest) (*github.Issue, *github.Response, error)
}

// GitHubReporter upserts one tracker issue per failing work unit, keyed by
// the incident label. Re-runs of a scheduled job that keep failing on the
// same unit comment on the existing issue (reopening it if needed) instead
// of flooding the tracker.
type GitHubReporter struct {
	issues issuesService
	owner  string
	repo   string
	log    zerolog.Logger
}

// GitHubConfig configures the issue tracker target.
type GitHubConfig struct {
	Owner string
	Repo  string
	Token string
}

// NewGitHubReporter creates a reporter against the configured repository.
func NewGitHubReporter(cfg GitHubConfig) (*GitHubReporter, error) {
	if cfg.Owner == "" || cfg.Repo == "" || cfg.Token == "" {
		return nil, fmt.Errorf("github reporter requires owner, repo and token")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	tc := oauth2.NewClient(context.Background(), ts)
	client := github.NewClient(tc)
	return &GitHubReporter{
		issues: client.Issues,
		owner:  cfg.Owner,
		repo:   cfg.Repo,
		log:    log.WithComponent("report"),
	}, nil
}

// Report upserts the incident: search for an issue carrying the exact
// label, append an update comment (reopening if closed), or create a new
// labeled issue when none exists.
func (r *GitHubReporter) Report(ctx context.Context, inc Incident) error {
	existing, _, err := r.issues.ListByRepo(ctx, r.owner, r.repo, &github.IssueListByRepoOptions{
		State:       "all",
		Labels:      []string{inc.Label},
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return fmt.Errorf("search incident %s: %w", inc.Label, err)
	}

	if len(existing) > 0 {
		issue := existing[0]
		number := issue.GetNumber()

		_, _, err = r.issues.CreateComment(ctx, r.owner, r.repo, number, &github.IssueComment{
			Body: github.Ptr(inc.Body),
		})
		if err != nil {
			return fmt.Errorf("comment incident %s: %w", inc.Label, err)
		}

		if issue.GetState() == "closed" {
			_, _, err = r.issues.Edit(ctx, r.owner, r.repo, number, &github.IssueRequest{
				State: github.Ptr("open"),
			})
			if err != nil {
				return fmt.Errorf("reopen incident %s: %w", inc.Label, err)
			}
			r.log.Info().Str("label", inc.Label).Int("issue", number).Msg("reopened incident")
		} else {
			r.log.Info().Str("label", inc.Label).Int("issue", number).Msg("updated incident")
		}
		return nil
	}

	created, _, err := r.issues.Create(ctx, r.owner, r.repo, &github.IssueRequest{
		Title:  github.Ptr(inc.Title),
		Body:   github.Ptr(inc.Body),
		Labels: &[]string{inc.Label, managedLabel},
	})
	if err != nil {
		return fmt.Errorf("create incident %s: %w", inc.Label, err)
	}
	r.log.Info().Str("label", inc.Label).Int("issue", created.GetNumber()).Msg("created incident")
	return nil
}
