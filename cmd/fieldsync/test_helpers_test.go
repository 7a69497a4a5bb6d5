package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"fieldsync/internal/backend"
	"fieldsync/internal/config"
	"fieldsync/internal/session"
)

const (
	storeLat = 37.5665
	storeLng = 126.9780
)

// fakeBackend serves the REST endpoints the CLI uses and records writes.
type fakeBackend struct {
	server *httptest.Server

	mu        sync.Mutex
	checkIns  []string
	checkOuts []string
	logs      []map[string]any
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds backend.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"message":"Invalid credentials"}`)
			return
		}
		writeTestJSON(w, backend.LoginResponse{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			User:         backend.User{ID: "u1", Email: creds.Email, Name: "Kim Lee", Role: "worker"},
		})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeTestJSON(w, backend.User{ID: "u1", Email: "kim@example.com", Name: "Kim Lee", Role: "worker"})
	})
	mux.HandleFunc("GET /api/stores/assigned", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, []backend.Store{
			{ID: "store-far", Name: "Far Mart", Address: "Busan", Latitude: 35.1796, Longitude: 129.0756},
			{ID: "store-1", Name: "Seoul Mart", Address: "Jung-gu", Latitude: storeLat, Longitude: storeLng},
		})
	})
	mux.HandleFunc("GET /api/stores/{id}/workflows", func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(w, []backend.Workflow{testWorkflow()})
	})
	mux.HandleFunc("GET /api/workflows/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "wf-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeTestJSON(w, testWorkflow())
	})
	mux.HandleFunc("POST /api/attendance/check-in", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			StoreID string `json:"storeId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		fb.mu.Lock()
		fb.checkIns = append(fb.checkIns, body.StoreID)
		fb.mu.Unlock()
		writeTestJSON(w, backend.StoreVisit{ID: "visit-1", StoreID: body.StoreID, Status: "in_progress"})
	})
	mux.HandleFunc("POST /api/attendance/check-out", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			VisitID string `json:"visitId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		fb.mu.Lock()
		fb.checkOuts = append(fb.checkOuts, body.VisitID)
		fb.mu.Unlock()
		writeTestJSON(w, map[string]string{"status": "completed"})
	})
	mux.HandleFunc("POST /api/workflow-logs", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		fb.mu.Lock()
		fb.logs = append(fb.logs, body)
		fb.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	fb.server = httptest.NewServer(mux)
	t.Cleanup(fb.server.Close)
	return fb
}

func (fb *fakeBackend) snapshot() (checkIns, checkOuts []string, logs []map[string]any) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]string(nil), fb.checkIns...), append([]string(nil), fb.checkOuts...), append([]map[string]any(nil), fb.logs...)
}

func testWorkflow() backend.Workflow {
	return backend.Workflow{
		ID:   "wf-1",
		Name: "Morning round",
		Tasks: []backend.Task{
			{ID: "t2", Name: "Shelf check", Type: backend.TaskCheck, Order: 2, Config: json.RawMessage(`{"items":[{"id":"a","label":"Front shelf"}]}`)},
			{ID: "t1", Name: "Greeting", Type: backend.TaskText, Order: 1, Required: true, Config: json.RawMessage(`{"minLength":2}`)},
		},
	}
}

func writeTestJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// offlineURL returns the address of a server that is no longer listening.
func offlineURL(t *testing.T) string {
	t.Helper()
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()
	return url
}

type cliTestEnv struct {
	baseDir    string
	configPath string
	cfg        *config.Config
}

func setupCLITestEnv(t *testing.T, baseURL string) *cliTestEnv {
	t.Helper()
	t.Setenv("FIELDSYNC_API_URL", "")

	base := t.TempDir()
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(home, ".config", "fieldsync", "config.toml"),
	}
	env.writeConfig(t, baseURL)
	return env
}

// writeConfig points the environment at baseURL and reloads env.cfg.
func (env *cliTestEnv) writeConfig(t *testing.T, baseURL string) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[api]
base_url = %q
request_timeout = 5

[sync]
interval = 1
connectivity_timeout = 1
watch_network = false
`, filepath.Join(env.baseDir, "data"), filepath.Join(env.baseDir, "logs"), baseURL)
	if err := os.MkdirAll(filepath.Dir(env.configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(env.configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	env.cfg = cfg
}

func (env *cliTestEnv) login(t *testing.T) {
	t.Helper()
	err := session.Open(env.cfg).Save(session.State{
		AccessToken: "access-1",
		User:        &backend.User{ID: "u1", Name: "Kim Lee", Role: "worker"},
	})
	if err != nil {
		t.Fatalf("save session: %v", err)
	}
}

func (env *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return env.runWithInput(t, "", args...)
}

func (env *cliTestEnv) runWithInput(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", env.configPath, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
