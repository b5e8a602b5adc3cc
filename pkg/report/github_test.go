package report

import (
	"context"
	"testing"

	"github.com/google/go-github/v80/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdata/lexcache/pkg/log"
)

// fakeIssues is an in-memory issuesService keyed by label.
type fakeIssues struct {
	byLabel  map[string]*github.Issue
	created  []*github.IssueRequest
	comments map[int][]string
	edits    map[int][]*github.IssueRequest
	nextNum  int
}

func newFakeIssues() *fakeIssues {
	return &fakeIssues{
		byLabel:  map[string]*github.Issue{},
		comments: map[int][]string{},
		edits:    map[int][]*github.IssueRequest{},
		nextNum:  1,
	}
}

func (f *fakeIssues) ListByRepo(ctx context.Context, owner, repo string, opts *github.IssueListByRepoOptions) ([]*github.Issue, *github.Response, error) {
	if len(opts.Labels) == 1 {
		if issue, ok := f.byLabel[opts.Labels[0]]; ok {
			return []*github.Issue{issue}, nil, nil
		}
	}
	return nil, nil, nil
}

func (f *fakeIssues) Create(ctx context.Context, owner, repo string, issue *github.IssueRequest) (*github.Issue, *github.Response, error) {
	f.created = append(f.created, issue)
	num := f.nextNum
	f.nextNum++
	out := &github.Issue{
		Number: github.Ptr(num),
		Title:  issue.Title,
		State:  github.Ptr("open"),
	}
	if issue.Labels != nil {
		for _, l := range *issue.Labels {
			f.byLabel[l] = out
		}
	}
	return out, nil, nil
}

func (f *fakeIssues) CreateComment(ctx context.Context, owner, repo string, number int, comment *github.IssueComment) (*github.IssueComment, *github.Response, error) {
	f.comments[number] = append(f.comments[number], comment.GetBody())
	return comment, nil, nil
}

func (f *fakeIssues) Edit(ctx context.Context, owner, repo string, number int, issue *github.IssueRequest) (*github.Issue, *github.Response, error) {
	f.edits[number] = append(f.edits[number], issue)
	return nil, nil, nil
}

func newTestReporter(issues issuesService) *GitHubReporter {
	return &GitHubReporter{
		issues: issues,
		owner:  "civicdata",
		repo:   "lexcache-incidents",
		log:    log.WithComponent("report"),
	}
}

// TestReportCreatesNewIssue verifies a first-time incident opens a
// labeled issue
func TestReportCreatesNewIssue(t *testing.T) {
	issues := newFakeIssues()
	r := newTestReporter(issues)

	err := r.Report(context.Background(), Incident{
		Title: "Indexing failure: person A3 (congress 20)",
		Body:  "details",
		Label: "person-A3-congress-20",
	})
	require.NoError(t, err)

	require.Len(t, issues.created, 1)
	req := issues.created[0]
	assert.Equal(t, "Indexing failure: person A3 (congress 20)", req.GetTitle())
	require.NotNil(t, req.Labels)
	assert.ElementsMatch(t, []string{"person-A3-congress-20", "indexing-failure"}, *req.Labels)
	assert.Empty(t, issues.comments)
}

// TestReportDeduplicatesByLabel verifies a repeat incident comments
// instead of creating a second issue
func TestReportDeduplicatesByLabel(t *testing.T) {
	issues := newFakeIssues()
	r := newTestReporter(issues)

	inc := Incident{Title: "t", Body: "first", Label: "person-A3-congress-20"}
	require.NoError(t, r.Report(context.Background(), inc))

	inc.Body = "second"
	require.NoError(t, r.Report(context.Background(), inc))

	assert.Len(t, issues.created, 1)
	assert.Equal(t, []string{"second"}, issues.comments[1])
	assert.Empty(t, issues.edits[1])
}

// TestReportReopensClosedIssue verifies a recurrence on a closed issue
// reopens it
func TestReportReopensClosedIssue(t *testing.T) {
	issues := newFakeIssues()
	issues.byLabel["person-A3-congress-20"] = &github.Issue{
		Number: github.Ptr(7),
		State:  github.Ptr("closed"),
	}
	r := newTestReporter(issues)

	err := r.Report(context.Background(), Incident{
		Title: "t", Body: "again", Label: "person-A3-congress-20",
	})
	require.NoError(t, err)

	assert.Empty(t, issues.created)
	assert.Equal(t, []string{"again"}, issues.comments[7])
	require.Len(t, issues.edits[7], 1)
	assert.Equal(t, "open", issues.edits[7][0].GetState())
}

// TestNewGitHubReporterValidation rejects incomplete configuration
func TestNewGitHubReporterValidation(t *testing.T) {
	_, err := NewGitHubReporter(GitHubConfig{Owner: "o", Repo: "r"})
	assert.Error(t, err)

	_, err = NewGitHubReporter(GitHubConfig{Owner: "o", Repo: "r", Token: "tok"})
	assert.NoError(t, err)
}

// TestNoopReporter verifies the disabled reporter accepts everything
func TestNoopReporter(t *testing.T) {
	assert.NoError(t, Noop{}.Report(context.Background(), Incident{Label: "x"}))
}
