package main

import (
	"path/filepath"
	"strings"
	"testing"

	"fieldsync/internal/session"
	"fieldsync/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t, "http://127.0.0.1:9")

	target := filepath.Join(env.baseDir, "sample", "config.toml")
	out, err := env.run(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration to "+target)

	if _, err := env.run(t, "config", "init", "--path", target); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected existing file error, got %v", err)
	}
	if _, err := env.run(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, err = env.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+env.configPath)
	requireContains(t, out, "API: http://127.0.0.1:9")
	requireContains(t, out, "Configuration valid")

	out, err = env.run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[sync]")
	requireContains(t, out, "base_url = ")
	requireContains(t, out, "http://127.0.0.1:9")
}

func TestLoginWhoamiLogout(t *testing.T) {
	fb := newFakeBackend(t)
	env := setupCLITestEnv(t, fb.server.URL)

	if _, err := env.run(t, "whoami"); err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Fatalf("expected not logged in error, got %v", err)
	}

	_, err := env.runWithInput(t, "wrong\n", "login", "--email", "kim@example.com", "--password-stdin")
	if err == nil || err.Error() != "login failed: invalid email or password" {
		t.Fatalf("expected credential error, got %v", err)
	}

	out, err := env.runWithInput(t, "secret\n", "login", "--email", "kim@example.com", "--password-stdin")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	requireContains(t, out, "Logged in as Kim Lee (worker)")

	state, err := session.Open(env.cfg).Load()
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if state.AccessToken != "access-1" || state.RefreshToken != "refresh-1" {
		t.Fatalf("unexpected stored tokens %#v", state)
	}

	out, err = env.run(t, "whoami", "--verify")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	requireContains(t, out, "Name:  Kim Lee")
	requireContains(t, out, "Email: kim@example.com")
	requireContains(t, out, "Verified: yes")

	out, err = env.run(t, "logout")
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	requireContains(t, out, "Logged out")

	out, err = env.run(t, "logout")
	if err != nil {
		t.Fatalf("second logout: %v", err)
	}
	requireContains(t, out, "Not logged in")
}

func TestLoginPromptsForEmail(t *testing.T) {
	fb := newFakeBackend(t)
	env := setupCLITestEnv(t, fb.server.URL)

	out, err := env.runWithInput(t, "kim@example.com\nsecret\n", "login", "--password-stdin")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	requireContains(t, out, "Email: ")
	requireContains(t, out, "Logged in as Kim Lee")
}

func TestLogoutRefusesWithPendingQueue(t *testing.T) {
	fb := newFakeBackend(t)
	env := setupCLITestEnv(t, fb.server.URL)
	env.login(t)

	store := testsupport.MustOpenStore(t, env.cfg)
	testsupport.MustAdd(t, store, testsupport.CheckOut("visit-1"))

	_, err := env.run(t, "logout")
	if err == nil || !strings.Contains(err.Error(), "1 queued actions have not synced yet") {
		t.Fatalf("expected pending queue error, got %v", err)
	}

	out, err := env.run(t, "logout", "--force")
	if err != nil {
		t.Fatalf("logout --force: %v", err)
	}
	requireContains(t, out, "Logged out")
}

func TestLogoutOfflineClearsLocalSession(t *testing.T) {
	env := setupCLITestEnv(t, offlineURL(t))
	env.login(t)

	out, err := env.run(t, "logout")
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	requireContains(t, out, "Backend unreachable; removing the local session only")
	requireContains(t, out, "Logged out")

	state, err := session.Open(env.cfg).Load()
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if state.LoggedIn() {
		t.Fatal("expected session to be cleared")
	}
}
