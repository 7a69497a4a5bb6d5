package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"fieldsync/internal/backend"
	"fieldsync/internal/netwatch"
	"fieldsync/internal/queue"
	"fieldsync/internal/services"
	"fieldsync/internal/session"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBackend verifies that the API host accepts TCP connections.
func CheckBackend(ctx context.Context, baseURL string, timeout time.Duration) Result {
	const name = "Backend"

	probe, err := netwatch.NewProbe(baseURL, timeout)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if !probe.Online(ctx) {
		return Result{Name: name, Detail: fmt.Sprintf("unreachable (%s); writes will be queued", probe.Address())}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("reachable (%s)", probe.Address())}
}

// Identity resolves the user a token belongs to.
type Identity func(ctx context.Context) (backend.User, error)

// CheckSession verifies that a token is stored and, when the backend answers,
// that it is still accepted. An unreachable backend leaves the stored session
// unverified but passing, since the worker can keep queueing offline.
func CheckSession(ctx context.Context, sessions *session.FileStore, me Identity) Result {
	const name = "Session"

	state, err := sessions.Load()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unreadable session file: %v", err)}
	}
	if !state.LoggedIn() {
		return Result{Name: name, Detail: "not logged in (run fieldsync login)"}
	}
	who := "unknown user"
	if state.User != nil && state.User.Name != "" {
		who = state.User.Name
	}
	if me == nil {
		return Result{Name: name, Passed: true, Detail: "logged in as " + who}
	}

	user, err := me(ctx)
	switch {
	case err == nil:
		if user.Name != "" {
			who = user.Name
		}
		return Result{Name: name, Passed: true, Detail: "logged in as " + who}
	case errors.Is(err, services.ErrUnauthorized):
		return Result{Name: name, Detail: "token rejected (run fieldsync login)"}
	case services.Deferrable(err):
		return Result{Name: name, Passed: true, Detail: "logged in as " + who + " (not verified, backend unreachable)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("session check failed (%v)", err)}
	}
}

// CheckQueue opens the queue database and reports its counters.
func CheckQueue(ctx context.Context, path string) Result {
	const name = "Queue"

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Result{Name: name, Passed: true, Detail: "empty (database not created yet)"}
	}
	store, err := queue.OpenPath(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer store.Close()

	stats, err := store.Stats(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	detail := fmt.Sprintf("%d pending, %d dead letters", stats.Pending, stats.DeadLetter)
	return Result{Name: name, Passed: stats.DeadLetter == 0, Detail: detail}
}
