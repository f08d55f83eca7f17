package scm

import (
	"context"

	gh "github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

type githubReporter struct {
	client  *gh.Client
	context string
}

func newGitHubReporter(token, statusContext string) *githubReporter {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(context.Background(), ts)
	return &githubReporter{client: gh.NewClient(httpClient), context: statusContext}
}

func (g *githubReporter) report(ctx context.Context, owner, repo, sha string, st state, description string) error {
	ghState := "pending"
	if st == stateFailed {
		ghState = "failure"
	}
	_, _, err := g.client.Repositories.CreateStatus(ctx, owner, repo, sha, &gh.RepoStatus{
		State:       gh.String(ghState),
		Description: gh.String(description),
		Context:     gh.String(g.context),
	})
	return err
}
