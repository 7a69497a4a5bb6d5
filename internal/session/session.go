// Package session persists the worker's login tokens and active visit between
// CLI invocations.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"fieldsync/internal/backend"
	"fieldsync/internal/config"
	"fieldsync/internal/queue"
)

// ActiveVisit tracks the store visit in progress. VisitID is empty while the
// check-in itself is still queued.
type ActiveVisit struct {
	StoreID     string    `json:"store_id"`
	StoreName   string    `json:"store_name,omitempty"`
	VisitID     string    `json:"visit_id,omitempty"`
	Queued      bool      `json:"queued,omitempty"`
	CheckedInAt time.Time `json:"checked_in_at"`

	Workflow   *backend.Workflow          `json:"workflow,omitempty"`
	TaskIndex  int                        `json:"task_index"`
	TaskStatus map[string]queue.LogStatus `json:"task_status,omitempty"`
}

// CurrentTask returns the task the worker is on, or false when no workflow is
// started or every task has been handled.
func (v *ActiveVisit) CurrentTask() (backend.Task, bool) {
	if v == nil || v.Workflow == nil {
		return backend.Task{}, false
	}
	if v.TaskIndex < 0 || v.TaskIndex >= len(v.Workflow.Tasks) {
		return backend.Task{}, false
	}
	return v.Workflow.Tasks[v.TaskIndex], true
}

// WorkflowDone reports whether every task of the started workflow was handled.
func (v *ActiveVisit) WorkflowDone() bool {
	return v != nil && v.Workflow != nil && v.TaskIndex >= len(v.Workflow.Tasks)
}

// State is the persisted session.
type State struct {
	AccessToken  string        `json:"access_token,omitempty"`
	RefreshToken string        `json:"refresh_token,omitempty"`
	User         *backend.User `json:"user,omitempty"`
	Visit        *ActiveVisit  `json:"visit,omitempty"`

	// Stores caches the last assigned store list so proximity checks work
	// offline.
	Stores          []backend.Store `json:"stores,omitempty"`
	StoresFetchedAt time.Time       `json:"stores_fetched_at,omitempty"`
}

// LoggedIn reports whether an access token is present.
func (s State) LoggedIn() bool {
	return strings.TrimSpace(s.AccessToken) != ""
}

// FileStore writes session state to a JSON file on disk. Writers also take an
// flock on <path>.lock so the CLI and the daemon never interleave updates.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore builds a FileStore rooted at the provided path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Open returns the session store configured by cfg.
func Open(cfg *config.Config) *FileStore {
	return NewFileStore(cfg.SessionPath())
}

// Path returns the session file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads session state from disk. A missing file resolves to an empty state.
func (s *FileStore) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save persists session state to disk with restricted permissions.
func (s *FileStore) Save(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked(func() error {
		return s.save(state)
	})
}

// Update applies fn to the stored state and saves the result. Nothing is
// written when fn returns an error.
func (s *FileStore) Update(fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.locked(func() error {
		state, err := s.load()
		if err != nil {
			return err
		}
		if err := fn(&state); err != nil {
			return err
		}
		return s.save(state)
	})
}

// Clear removes the session file.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked(func() error {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove session: %w", err)
		}
		return nil
	})
}

// AccessToken implements backend.TokenSource.
func (s *FileStore) AccessToken() (string, error) {
	state, err := s.Load()
	if err != nil {
		return "", err
	}
	return state.AccessToken, nil
}

// locked runs fn while holding the cross-process session lock.
func (s *FileStore) locked(fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("ensure session directory: %w", err)
	}
	lock := flock.New(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock session: %w", err)
	}
	defer func() {
		_ = lock.Unlock()
	}()
	return fn()
}

func (s *FileStore) load() (State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("read session: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("decode session %s: %w", s.path, err)
	}
	return state, nil
}

func (s *FileStore) save(state State) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("ensure session directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	// Write then rename so a crash never leaves a truncated session behind.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*.json")
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}
