// Package registry defines the read-only lookup interface for the codebase
// registry: which repositories are registered, and which pipeline reference
// each branch runs per execution kind. The engine only ever reads from it.
package registry

import (
	"context"
	"errors"
	"regexp"
)

// ErrNotFound is returned by Store lookups when no record exists. Callers
// treat it as a benign miss, not a failure.
var ErrNotFound = errors.New("registry: not found")

// TargetRecord identifies a registered repository.
type TargetRecord struct {
	// Key is the normalized repository key (lowercase owner/name).
	Key string `json:"key"`
	// Name is the registered codebase name used in resource labels.
	Name string `json:"name"`
	// Namespace is the backend namespace resources are created in.
	Namespace     string `json:"namespace"`
	DefaultBranch string `json:"default_branch"`
}

// BranchRecord is the branch-scoped sub-record of a target.
type BranchRecord struct {
	TargetKey string `json:"target_key"`
	Name      string `json:"name"`
	// Pipelines maps an execution kind (build, review, ...) to the pipeline
	// reference registered for this branch.
	Pipelines map[string]string `json:"pipelines"`
}

// Store is the registry read path. Implementations must be safe for
// concurrent use; many events enrich at once.
type Store interface {
	LookupTarget(ctx context.Context, key string) (*TargetRecord, error)
	LookupBranch(ctx context.Context, target *TargetRecord, branch string) (*BranchRecord, error)
	Close() error
}

// Pipeline references follow the platform naming convention: lowercase
// alphanumeric segments joined by single hyphens, e.g.
// github-python-fastapi-app-build-default.
var pipelineRefPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidPipelineRef reports whether ref is a well-formed pipeline reference.
func ValidPipelineRef(ref string) bool {
	return ref != "" && pipelineRefPattern.MatchString(ref)
}
