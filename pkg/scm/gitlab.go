package scm

import (
	"context"

	gl "github.com/xanzy/go-gitlab"
)

type gitlabReporter struct {
	client  *gl.Client
	context string
}

func newGitLabReporter(token, baseURL, statusContext string) (*gitlabReporter, error) {
	var opts []gl.ClientOptionFunc
	if baseURL != "" {
		opts = append(opts, gl.WithBaseURL(baseURL))
	}
	client, err := gl.NewClient(token, opts...)
	if err != nil {
		return nil, err
	}
	return &gitlabReporter{client: client, context: statusContext}, nil
}

func (g *gitlabReporter) report(ctx context.Context, owner, repo, sha string, st state, description string) error {
	glState := gl.Pending
	if st == stateFailed {
		glState = gl.Failed
	}
	project := owner + "/" + repo
	_, _, err := g.client.Commits.SetCommitStatus(project, sha, &gl.SetCommitStatusOptions{
		State:       glState,
		Context:     gl.Ptr(g.context),
		Description: gl.Ptr(description),
	}, gl.WithContext(ctx))
	return err
}
