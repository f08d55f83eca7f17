// Package scm posts commit statuses back to the originating provider after
// a submission attempt, so the change shows whether a run was triggered.
// Reporting is best effort: failures are logged and never affect the
// trigger pipeline.
package scm

import (
	"context"
	"log"
	"strings"
	"time"

	"pipehooks/trigger"
)

// Config enables per-provider reporters. A provider without a token is
// simply not reported to.
type Config struct {
	Enabled bool `yaml:"enabled"`
	// Context is the status context/key shown in the provider UI.
	Context        string `yaml:"context"`
	GitHubToken    string `yaml:"github_token"`
	GitLabToken    string `yaml:"gitlab_token"`
	GitLabBaseURL  string `yaml:"gitlab_base_url"`
	BitbucketToken string `yaml:"bitbucket_token"`
}

type state string

const (
	statePending state = "pending"
	stateFailed  state = "failed"
)

type providerReporter interface {
	report(ctx context.Context, owner, repo, sha string, st state, description string) error
}

// Reporter implements trigger.StatusReporter across the configured
// providers.
type Reporter struct {
	providers map[string]providerReporter
	logger    *log.Logger
	timeout   time.Duration
}

// NewReporter builds a reporter from config. Returns nil when disabled or
// when no provider token is configured; the router treats nil as "no
// reporting".
func NewReporter(cfg Config, logger *log.Logger) (*Reporter, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = log.Default()
	}
	statusContext := cfg.Context
	if statusContext == "" {
		statusContext = "pipehooks"
	}

	providers := map[string]providerReporter{}
	if cfg.GitHubToken != "" {
		providers["github"] = newGitHubReporter(cfg.GitHubToken, statusContext)
	}
	if cfg.GitLabToken != "" {
		reporter, err := newGitLabReporter(cfg.GitLabToken, cfg.GitLabBaseURL, statusContext)
		if err != nil {
			return nil, err
		}
		providers["gitlab"] = reporter
	}
	if cfg.BitbucketToken != "" {
		providers["bitbucket"] = newBitbucketReporter(cfg.BitbucketToken, statusContext)
	}
	if len(providers) == 0 {
		return nil, nil
	}
	return &Reporter{providers: providers, logger: logger, timeout: 5 * time.Second}, nil
}

// Report posts the outcome as a commit status. Only events that carry a
// commit SHA can be reported on.
func (r *Reporter) Report(ctx context.Context, event *trigger.CanonicalEvent, outcome trigger.Outcome) {
	provider, ok := r.providers[event.Provider]
	if !ok || event.CommitSHA == "" {
		return
	}
	owner, repo, ok := splitFullName(event.FullName)
	if !ok {
		return
	}

	st := statePending
	description := "run " + outcome.Resource + " submitted"
	if outcome.Status == trigger.StatusSubmitFailed {
		st = stateFailed
		description = "run submission rejected"
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := provider.report(ctx, owner, repo, event.CommitSHA, st, description); err != nil {
		r.logger.Printf("status report %s %s@%s: %v", event.Provider, event.FullName, shortSHA(event.CommitSHA), err)
	}
}

func splitFullName(fullName string) (owner, repo string, ok bool) {
	i := strings.LastIndex(fullName, "/")
	if i <= 0 || i == len(fullName)-1 {
		return "", "", false
	}
	return fullName[:i], fullName[i+1:], true
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
