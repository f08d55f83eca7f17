package trigger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"pipehooks/pkg/registry"
)

// DefaultEnrichTimeout bounds a single registry lookup round.
const DefaultEnrichTimeout = 3 * time.Second

// Resolver maps an event's repository and branch identity to the registered
// execution-target references. The registry lookup is the only blocking
// stage of the pipeline; every call is bounded by the configured timeout
// and retried exactly once, without backoff, when it times out.
type Resolver struct {
	store   registry.Store
	timeout time.Duration
	logger  *log.Logger
}

func NewResolver(store registry.Store, timeout time.Duration, logger *log.Logger) *Resolver {
	if timeout <= 0 {
		timeout = DefaultEnrichTimeout
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{store: store, timeout: timeout, logger: logger}
}

// Resolve builds the ExtensionContext for an event.
func (r *Resolver) Resolve(ctx context.Context, event *CanonicalEvent) (*ExtensionContext, error) {
	key := NormalizeRepoKey(event.RepoURL)
	if key == "" {
		key = NormalizeRepoKey(event.FullName)
	}
	if key == "" {
		return nil, &EnrichmentNotFoundError{RepoKey: event.RepoURL, Level: "target"}
	}

	ext, err := r.resolveOnce(ctx, key, event)
	var timeout *EnrichmentTimeoutError
	if errors.As(err, &timeout) {
		r.logger.Printf("registry lookup for %s timed out, retrying once", key)
		ext, err = r.resolveOnce(ctx, key, event)
	}
	return ext, err
}

func (r *Resolver) resolveOnce(ctx context.Context, key string, event *CanonicalEvent) (*ExtensionContext, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	target, err := r.store.LookupTarget(ctx, key)
	if err != nil {
		return nil, r.classify(key, "", err)
	}

	branch := event.Branch
	if branch == "" && event.Ref != "" {
		branch = strings.TrimPrefix(event.Ref, "refs/heads/")
	}
	if branch == "" {
		branch = target.DefaultBranch
	}

	record, err := r.store.LookupBranch(ctx, target, branch)
	if err != nil {
		return nil, r.classify(key, branch, err)
	}

	references := make(map[string]string, len(record.Pipelines))
	for kind, ref := range record.Pipelines {
		if !registry.ValidPipelineRef(ref) {
			return nil, fmt.Errorf("registry: malformed pipeline reference %q for %s@%s", ref, key, branch)
		}
		references[kind] = ref
	}

	return &ExtensionContext{Target: *target, References: references, Branch: branch}, nil
}

func (r *Resolver) classify(key, branch string, err error) error {
	switch {
	case errors.Is(err, registry.ErrNotFound) && branch != "":
		return &EnrichmentNotFoundError{RepoKey: key, Branch: branch, Level: "branch"}
	case errors.Is(err, registry.ErrNotFound):
		return &EnrichmentNotFoundError{RepoKey: key, Level: "target"}
	case errors.Is(err, context.DeadlineExceeded):
		return &EnrichmentTimeoutError{RepoKey: key, Timeout: r.timeout}
	default:
		return err
	}
}

// NormalizeRepoKey reduces any repository URL variant to a lowercase
// owner/name key: scheme, credentials, host and the .git suffix are all
// stripped, so https://GitHub.com/Org/App.git and git@github.com:org/app
// land on the same registry record.
func NormalizeRepoKey(repo string) string {
	key := strings.ToLower(strings.TrimSpace(repo))
	if i := strings.Index(key, "://"); i >= 0 {
		key = key[i+3:]
	}
	if i := strings.Index(key, "@"); i >= 0 {
		key = key[i+1:]
	}
	key = strings.TrimSuffix(key, ".git")
	key = strings.Trim(key, "/")
	// Drop the host whether it is followed by a path (host/...), an scp-style
	// path (host:...) or a port (host:29418/...).
	if i := strings.IndexAny(key, "/:"); i >= 0 && strings.Contains(key[:i], ".") {
		key = strings.TrimLeft(key[i+1:], "/")
		if port, rest, ok := strings.Cut(key, "/"); ok {
			if _, err := strconv.Atoi(port); err == nil {
				key = rest
			}
		}
	}
	key = strings.ReplaceAll(key, ":", "/")
	return strings.Trim(key, "/")
}
