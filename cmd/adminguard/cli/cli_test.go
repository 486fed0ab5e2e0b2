package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/consultease/adminguard/internal/credential"
	"github.com/consultease/adminguard/internal/model"
)

const testPassword = "Corr3ct-Horse"

// run executes the command tree against dir and returns stdout.
func run(t *testing.T, dir, stdin string, args ...string) (string, error) {
	t.Helper()
	viper.Reset()

	cmd := newRootCmd("test", "abc123", "today")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--data-dir", dir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func newTestDir(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ADMINGUARD_SECURITY_BCRYPT_COST", "4")
	return t.TempDir()
}

func mustRun(t *testing.T, dir, stdin string, args ...string) string {
	t.Helper()
	out, err := run(t, dir, stdin, args...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out
}

func TestAdminCreateAndList(t *testing.T) {
	dir := newTestDir(t)

	out := mustRun(t, dir, "", "admin", "create", "alice", "--password", testPassword)
	if !strings.Contains(out, `Created admin "alice"`) {
		t.Errorf("create output = %q", out)
	}
	mustRun(t, dir, testPassword+"\n"+testPassword+"\n", "admin", "create", "bob")

	if _, err := run(t, dir, "", "admin", "create", "alice", "--password", testPassword); err == nil ||
		!strings.Contains(err.Error(), "already exists") {
		t.Errorf("duplicate create error = %v", err)
	}

	out = mustRun(t, dir, "", "admin", "list", "--json")
	var admins []model.AdminSummary
	if err := json.Unmarshal([]byte(out), &admins); err != nil {
		t.Fatalf("decode list: %v\n%s", err, out)
	}
	if len(admins) != 2 || admins[0].Username != "alice" || admins[1].Username != "bob" {
		t.Errorf("admins = %+v", admins)
	}
	if strings.Contains(out, "$2a$") {
		t.Error("list leaks password hashes")
	}
}

func TestAdminCreateRejectsWeakPassword(t *testing.T) {
	dir := newTestDir(t)

	_, err := run(t, dir, "", "admin", "create", "alice", "--password", "short")
	if err == nil || !strings.Contains(err.Error(), "password rejected") {
		t.Fatalf("err = %v", err)
	}

	_, err = run(t, dir, testPassword+"\nsomething-else\n", "admin", "create", "alice")
	if err == nil || !strings.Contains(err.Error(), "do not match") {
		t.Fatalf("mismatch err = %v", err)
	}
}

func TestAdminPasswdAndRename(t *testing.T) {
	dir := newTestDir(t)
	mustRun(t, dir, "", "admin", "create", "alice", "--password", testPassword)

	const next = "N3w-Secret!"
	mustRun(t, dir, next+"\n"+next+"\n", "admin", "passwd", "alice")

	// The old password no longer verifies.
	if _, err := run(t, dir, "", "admin", "rename", "alice", "carol", "--password", testPassword); err == nil {
		t.Fatal("rename with old password succeeded")
	}

	out := mustRun(t, dir, "", "admin", "rename", "alice", "carol", "--password", next)
	if !strings.Contains(out, `Renamed "alice" to "carol"`) {
		t.Errorf("rename output = %q", out)
	}

	out = mustRun(t, dir, "", "admin", "status", "carol", "--json")
	var status struct {
		Username string `json:"username"`
		Locked   bool   `json:"locked"`
		Failures int    `json:"failed_login_attempts"`
	}
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatal(err)
	}
	// The failed rename counted, the successful one reset it.
	if status.Username != "carol" || status.Locked || status.Failures != 0 {
		t.Errorf("status = %+v", status)
	}
}

func TestAdminDeactivateLastActive(t *testing.T) {
	dir := newTestDir(t)
	mustRun(t, dir, "", "admin", "create", "alice", "--password", testPassword)

	if _, err := run(t, dir, "", "admin", "deactivate", "alice"); err == nil {
		t.Fatal("deactivating the last active admin succeeded")
	}

	mustRun(t, dir, "", "admin", "create", "bob", "--password", testPassword)
	out := mustRun(t, dir, "", "admin", "deactivate", "alice")
	if !strings.Contains(out, "deactivated") {
		t.Errorf("output = %q", out)
	}
	mustRun(t, dir, "", "admin", "activate", "alice")
}

func TestAdminImport(t *testing.T) {
	dir := newTestDir(t)
	mustRun(t, dir, "", "admin", "create", "ops", "--password", testPassword)

	file := filepath.Join(t.TempDir(), "legacy.yaml")
	content := "admins:\n" +
		"  - username: ops\n" +
		"    password_hash: " + credential.LegacySHA256("s1", "Legacy-Pass1") + "\n" +
		"    salt: s1\n" +
		"  - username: legacy\n" +
		"    password_hash: " + credential.LegacySHA256("s2", "Legacy-Pass2") + "\n" +
		"    salt: s2\n"
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	out := mustRun(t, dir, "", "admin", "import", file)
	if !strings.Contains(out, "1 imported, 1 skipped") {
		t.Errorf("import output = %q", out)
	}

	out = mustRun(t, dir, "", "admin", "status", "legacy")
	if !strings.Contains(out, "legacy SHA-256") {
		t.Errorf("status output = %q", out)
	}

	if _, err := run(t, dir, "", "admin", "status", "ghost"); err == nil {
		t.Error("status of unknown admin succeeded")
	}
}

func TestConfigInitAndShow(t *testing.T) {
	dir := newTestDir(t)
	path := filepath.Join(t.TempDir(), "adminguard.yaml")

	mustRun(t, dir, "", "config", "init", "-o", path)
	if _, err := run(t, dir, "", "config", "init", "-o", path); err == nil {
		t.Error("second init without --force succeeded")
	}
	mustRun(t, dir, "", "config", "init", "-o", path, "--force")

	out := mustRun(t, dir, "", "--config", path, "config", "show")
	for _, want := range []string{"Config file: " + path, "security.password_lockout_threshold: 5", "server.port: 8080"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}
}

func TestOpenAPICommand(t *testing.T) {
	dir := newTestDir(t)
	out := mustRun(t, dir, "", "openapi", "--base-url", "https://auth.example.com")

	var doc struct {
		OpenAPI string `json:"openapi"`
		Servers []struct {
			URL string `json:"url"`
		} `json:"servers"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.OpenAPI != "3.1.0" || len(doc.Servers) != 1 || doc.Servers[0].URL != "https://auth.example.com" {
		t.Errorf("doc = %+v", doc)
	}
}

func TestVersionCommand(t *testing.T) {
	dir := newTestDir(t)
	out := mustRun(t, dir, "", "version", "--json")

	var info versionInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatal(err)
	}
	if info.Version != "test" || info.Commit != "abc123" {
		t.Errorf("info = %+v", info)
	}
}

func TestLoadSettingsFromEnv(t *testing.T) {
	newTestDir(t)
	t.Setenv("ADMINGUARD_SECURITY_PASSWORD_LOCKOUT_THRESHOLD", "3")
	t.Setenv("ADMINGUARD_SECURITY_PASSWORD_LOCKOUT_DURATION", "90s")
	viper.Reset()
	initConfig()

	s := loadSettings()
	p := s.lockoutPolicy()
	if p.Threshold != 3 || p.Duration.Seconds() != 90 {
		t.Errorf("policy = %+v", p)
	}
	if s.MinPasswordLength != credential.DefaultMinLength || s.BcryptCost != 4 {
		t.Errorf("settings = %+v", s)
	}
}

func TestLockoutDurationAcceptsBareSeconds(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"900", 15 * time.Minute},
		{" 60 ", time.Minute},
		{"15m", 15 * time.Minute},
		{"90s", 90 * time.Second},
		{"soon", 0},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			newTestDir(t)
			t.Setenv("ADMINGUARD_SECURITY_PASSWORD_LOCKOUT_DURATION", tt.value)
			viper.Reset()
			initConfig()

			if got := loadSettings().LockoutDuration; got != tt.want {
				t.Errorf("duration from %q = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestLockoutDurationFromConfigFileSeconds(t *testing.T) {
	dir := newTestDir(t)
	path := filepath.Join(dir, "adminguard.yaml")
	content := "security:\n  password_lockout_duration: 900\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	viper.Reset()
	cfgFile = path
	t.Cleanup(func() { cfgFile = "" })
	initConfig()

	if got := loadSettings().lockoutPolicy().Duration; got != 15*time.Minute {
		t.Errorf("duration = %v, want 15m", got)
	}
}
