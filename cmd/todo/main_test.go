package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"todoapp/internal/shared/auth"
)

func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{auth.SessionTokenEnv, "DESCOPE_PROJECT_ID", "SUPABASE_URL", "TODO_API_URL"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	return home
}

func sessionToken(t *testing.T, sub string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub}).SignedString([]byte("idp"))
	if err != nil {
		t.Fatalf("sign session: %v", err)
	}
	return signed
}

func TestRun_LoginLogout(t *testing.T) {
	home := setupHome(t)

	if err := run([]string{"login", sessionToken(t, "user_42")}); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, ".todoapp", "credentials.json")); err != nil {
		t.Fatalf("credentials not written: %v", err)
	}
	if err := run([]string{"whoami"}); err != nil {
		t.Errorf("whoami failed: %v", err)
	}
	if err := run([]string{"logout"}); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, ".todoapp", "credentials.json")); !os.IsNotExist(err) {
		t.Errorf("credentials still present after logout: %v", err)
	}
}

func TestRun_LoginRejectsGarbage(t *testing.T) {
	setupHome(t)

	err := run([]string{"login", "not-a-token"})
	if err == nil || !strings.Contains(err.Error(), "session token rejected") {
		t.Errorf("login error = %v, want rejection", err)
	}
}

func TestRun_Usage(t *testing.T) {
	setupHome(t)

	tests := []struct {
		name string
		args []string
	}{
		{"login without token", []string{"login"}},
		{"unknown command", []string{"frobnicate"}},
		{"unknown flag", []string{"--nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := run(tt.args); err == nil {
				t.Errorf("run(%v) succeeded, want error", tt.args)
			}
		})
	}
}

func TestRun_InteractiveRequiresDatastore(t *testing.T) {
	setupHome(t)

	err := run(nil)
	if err == nil || !strings.Contains(err.Error(), "SUPABASE_URL") {
		t.Errorf("run() error = %v, want missing datastore configuration", err)
	}
}

func TestRun_ReadsDefaultConfigFile(t *testing.T) {
	home := setupHome(t)

	dir := filepath.Join(home, ".todoapp")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("api_url = "), 0o600); err != nil {
		t.Fatal(err)
	}

	err := run([]string{"whoami"})
	if err == nil || !strings.Contains(err.Error(), "config.toml") {
		t.Errorf("run() error = %v, want parse error from ~/.todoapp/config.toml", err)
	}
}

func TestRun_Help(t *testing.T) {
	setupHome(t)

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	stderr := os.Stderr
	os.Stderr = w
	t.Cleanup(func() { os.Stderr = stderr })

	runErr := run([]string{"--help"})
	w.Close()
	os.Stderr = stderr
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}

	if runErr != nil {
		t.Fatalf("run(--help) failed: %v", runErr)
	}
	help := string(out)
	if !strings.HasPrefix(help, "todo: a personal todo list") {
		t.Errorf("help starts with %q", strings.SplitN(help, "\n", 2)[0])
	}
	if !strings.Contains(help, "login <token>") {
		t.Errorf("help missing subcommands:\n%s", help)
	}
	if strings.ContainsRune(help, '\u2014') {
		t.Errorf("help contains an em dash:\n%s", help)
	}
}
