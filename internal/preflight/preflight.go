package preflight

import (
	"context"

	"fieldsync/internal/config"
	"fieldsync/internal/session"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes the readiness checks for the given config: state
// directories, the queue database, backend reachability, and the stored
// session.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckQueue(ctx, cfg.QueuePath()),
	}

	backendResult := CheckBackendFromConfig(ctx, cfg)
	results = append(results, backendResult)

	// Without a reachable host the session check would only wait out the
	// request timeout.
	if backendResult.Passed {
		results = append(results, CheckSessionFromConfig(ctx, cfg))
	} else {
		results = append(results, CheckSession(ctx, session.Open(cfg), nil))
	}
	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
