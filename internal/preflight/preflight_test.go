package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fieldsync/internal/backend"
	"fieldsync/internal/services"
	"fieldsync/internal/session"
	"fieldsync/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckBackend_Reachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	result := CheckBackend(context.Background(), srv.URL, time.Second)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckBackend_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	result := CheckBackend(context.Background(), url, 500*time.Millisecond)
	if result.Passed {
		t.Fatal("expected failure for closed server")
	}
	if !strings.Contains(result.Detail, "queued") {
		t.Fatalf("detail should mention queueing, got: %s", result.Detail)
	}
}

func TestCheckBackend_InvalidURL(t *testing.T) {
	result := CheckBackend(context.Background(), "://nope", time.Second)
	if result.Passed {
		t.Fatal("expected failure for invalid url")
	}
}

func loggedIn(t *testing.T) *session.FileStore {
	t.Helper()
	store := session.NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	err := store.Save(session.State{AccessToken: "tok", User: &backend.User{ID: "u1", Name: "Kim"}})
	if err != nil {
		t.Fatalf("save session: %v", err)
	}
	return store
}

func TestCheckSession_NotLoggedIn(t *testing.T) {
	store := session.NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	result := CheckSession(context.Background(), store, nil)
	if result.Passed {
		t.Fatal("expected failure without a token")
	}
	if !strings.Contains(result.Detail, "fieldsync login") {
		t.Fatalf("expected login hint, got: %s", result.Detail)
	}
}

func TestCheckSession_Verified(t *testing.T) {
	me := func(context.Context) (backend.User, error) {
		return backend.User{ID: "u1", Name: "Kim Lee"}, nil
	}
	result := CheckSession(context.Background(), loggedIn(t), me)
	if !result.Passed || result.Detail != "logged in as Kim Lee" {
		t.Fatalf("unexpected result %#v", result)
	}
}

func TestCheckSession_TokenRejected(t *testing.T) {
	me := func(context.Context) (backend.User, error) {
		return backend.User{}, &backend.APIError{Status: http.StatusUnauthorized, Message: "Unauthorized"}
	}
	result := CheckSession(context.Background(), loggedIn(t), me)
	if result.Passed {
		t.Fatal("expected failure for rejected token")
	}
}

func TestCheckSession_OfflinePasses(t *testing.T) {
	me := func(context.Context) (backend.User, error) {
		return backend.User{}, services.Wrap(services.ErrTransport, "backend", "GET /api/auth/me", "", errors.New("connection refused"))
	}
	result := CheckSession(context.Background(), loggedIn(t), me)
	if !result.Passed {
		t.Fatalf("offline session should pass, got: %s", result.Detail)
	}
	if !strings.Contains(result.Detail, "not verified") {
		t.Fatalf("expected unverified detail, got: %s", result.Detail)
	}
}

func TestCheckQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	result := CheckQueue(context.Background(), cfg.QueuePath())
	if !result.Passed {
		t.Fatalf("missing database should pass, got: %s", result.Detail)
	}
	if _, err := os.Stat(cfg.QueuePath()); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("check must not create the database")
	}

	store := testsupport.MustOpenStore(t, cfg)
	testsupport.MustAdd(t, store, testsupport.CheckOut("v1"))
	testsupport.MustAdd(t, store, testsupport.CheckOut("v2"))

	result = CheckQueue(context.Background(), cfg.QueuePath())
	if !result.Passed || result.Detail != "2 pending, 0 dead letters" {
		t.Fatalf("unexpected result %#v", result)
	}
}

func TestCheckNetworkWatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if r := CheckNetworkWatch(cfg, true, false); !r.Passed || !strings.HasPrefix(r.Detail, "Disabled") {
		t.Fatalf("unexpected disabled result %#v", r)
	}
	cfg.Sync.WatchNetwork = true
	if r := CheckNetworkWatch(cfg, true, false); r.Passed {
		t.Fatal("expected failure when the monitor is down")
	}
	if r := CheckNetworkWatch(cfg, true, true); !r.Passed {
		t.Fatalf("expected pass, got %s", r.Detail)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatalf("expected nil results for nil config, got %d", len(results))
	}
}

func TestRunAll_Offline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	want := "Data directory,Log directory,Queue,Backend,Session"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("names = %s, want %s", got, want)
	}
	if !Failed(results) {
		t.Fatal("expected failures for unreachable backend and missing session")
	}
	for _, r := range results[:3] {
		if !r.Passed {
			t.Fatalf("%s should pass, got: %s", r.Name, r.Detail)
		}
	}
}
