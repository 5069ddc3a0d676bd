package ingest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/clintrovert/sarek/pkg/types"
)

// Estimation heuristics for issues without explicit sizing.
const (
	defaultEstimateHours  = 8.0
	smallEstimateHours    = 2.0
	largeEstimateHours    = 16.0
	defaultCapacityHours  = 40.0
	hoursPerAssignedIssue = 4.0
)

// GitHubSource builds a dataset from a repository: open issues become
// work items, contributors become workers.
type GitHubSource struct {
	client *github.Client
	logger *zap.Logger
}

// NewGitHubSource creates a GitHub source. An empty token falls back to
// unauthenticated access with its lower rate limits.
func NewGitHubSource(accessToken string, logger *zap.Logger) *GitHubSource {
	var httpClient *http.Client
	if accessToken != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	return &GitHubSource{
		client: github.NewClient(httpClient),
		logger: logger,
	}
}

// ParseRepoURL accepts "owner/repo" or a full github.com URL.
func ParseRepoURL(raw string) (owner, repo string, err error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "https://github.com/")
	s = strings.TrimPrefix(s, "http://github.com/")
	s = strings.TrimSuffix(s, ".git")
	s = strings.Trim(s, "/")

	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository reference %q, want owner/repo", raw)
	}
	return parts[0], parts[1], nil
}

// FetchItems lists open issues and converts them to work items. Pull
// requests are excluded.
func (s *GitHubSource) FetchItems(ctx context.Context, owner, repo string) ([]types.WorkItem, error) {
	opts := &github.IssueListByRepoOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var items []types.WorkItem
	for {
		issues, resp, err := s.client.Issues.ListByRepo(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list issues for %s/%s: %w", owner, repo, err)
		}

		for _, issue := range issues {
			if issue.IsPullRequest() {
				continue
			}
			items = append(items, issueToItem(repo, issue))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	s.logger.Info("fetched issues",
		zap.String("owner", owner),
		zap.String("repo", repo),
		zap.Int("items", len(items)),
	)
	return items, nil
}

// FetchWorkers lists contributors and converts them to workers. Skills
// come from the repository languages; experience from account age;
// current workload from issues already assigned to the contributor.
func (s *GitHubSource) FetchWorkers(ctx context.Context, owner, repo string) ([]types.Worker, error) {
	langs, _, err := s.client.Repositories.ListLanguages(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to list languages for %s/%s: %w", owner, repo, err)
	}
	skills := make([]string, 0, len(langs))
	for lang := range langs {
		skills = append(skills, strings.ToLower(lang))
	}

	contributors, _, err := s.client.Repositories.ListContributors(ctx, owner, repo,
		&github.ListContributorsOptions{ListOptions: github.ListOptions{PerPage: 30}})
	if err != nil {
		return nil, fmt.Errorf("failed to list contributors for %s/%s: %w", owner, repo, err)
	}

	workers := make([]types.Worker, 0, len(contributors))
	for _, c := range contributors {
		login := c.GetLogin()
		if login == "" || c.GetType() == "Bot" {
			continue
		}

		worker := types.Worker{
			ID:            login,
			Name:          login,
			Skills:        skills,
			CapacityHours: defaultCapacityHours,
		}

		if user, _, err := s.client.Users.Get(ctx, login); err == nil {
			if name := user.GetName(); name != "" {
				worker.Name = name
			}
			worker.ExperienceYears = yearsSince(user.GetCreatedAt().Time)
		} else {
			s.logger.Warn("failed to fetch user profile",
				zap.String("login", login),
				zap.Error(err),
			)
		}

		worker.WorkloadHours = s.assignedWorkload(ctx, owner, repo, login)
		workers = append(workers, worker)
	}

	s.logger.Info("fetched contributors",
		zap.String("owner", owner),
		zap.String("repo", repo),
		zap.Int("workers", len(workers)),
	)
	return workers, nil
}

func (s *GitHubSource) assignedWorkload(ctx context.Context, owner, repo, login string) float64 {
	issues, _, err := s.client.Issues.ListByRepo(ctx, owner, repo, &github.IssueListByRepoOptions{
		State:    "open",
		Assignee: login,
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	})
	if err != nil {
		s.logger.Warn("failed to count assigned issues",
			zap.String("login", login),
			zap.Error(err),
		)
		return 0
	}
	return float64(len(issues)) * hoursPerAssignedIssue
}

func issueToItem(repo string, issue *github.Issue) types.WorkItem {
	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.GetName())
	}

	return types.WorkItem{
		ID:             fmt.Sprintf("%s#%d", repo, issue.GetNumber()),
		Title:          issue.GetTitle(),
		Description:    issue.GetBody(),
		Labels:         labels,
		EstimatedHours: estimateHours(labels),
		SourceURL:      issue.GetHTMLURL(),
	}
}

// estimateHours guesses effort from size-ish labels.
func estimateHours(labels []string) float64 {
	for _, l := range labels {
		switch strings.ToLower(l) {
		case "good first issue", "easy", "size/s", "trivial":
			return smallEstimateHours
		case "epic", "size/xl", "hard", "breaking change":
			return largeEstimateHours
		}
	}
	return defaultEstimateHours
}

func yearsSince(t time.Time) int {
	if t.IsZero() {
		return 0
	}
	years := int(time.Since(t).Hours() / (24 * 365))
	if years < 0 {
		return 0
	}
	return years
}
