package scm

import (
	"context"

	bb "github.com/ktrysmt/go-bitbucket"
)

type bitbucketReporter struct {
	client  *bb.Client
	context string
}

func newBitbucketReporter(token, statusContext string) *bitbucketReporter {
	return &bitbucketReporter{client: bb.NewOAuthbearerToken(token), context: statusContext}
}

// The Bitbucket SDK does not take a context; the reporter's own timeout
// still bounds the caller.
func (b *bitbucketReporter) report(_ context.Context, owner, repo, sha string, st state, description string) error {
	bbState := "INPROGRESS"
	if st == stateFailed {
		bbState = "FAILED"
	}
	_, err := b.client.Repositories.Commits.CreateCommitStatus(
		&bb.CommitsOptions{Owner: owner, RepoSlug: repo, Revision: sha},
		&bb.CommitStatusOptions{Key: b.context, State: bbState, Description: description},
	)
	return err
}
